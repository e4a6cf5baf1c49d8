package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/laudemdeitickets/choir-tickets/app/controllers"
	"github.com/laudemdeitickets/choir-tickets/internal/pkg/env"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	// The checkout and claim pages are served from GitHub Pages, so the
	// API must answer cross-origin requests.
	api := app.Group("/api",
		cors.New(cors.Config{
			AllowOrigins: env.GetEnv("CORS_ALLOW_ORIGINS", "*"),
			AllowMethods: "GET,POST,OPTIONS",
			AllowHeaders: "Content-Type",
		}),
		limiter.New(limiter.Config{
			Max:        60,
			Expiration: time.Minute,
		}),
	)
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"service": "choir-tickets",
			"status":  "ok",
		})
	})

	api.Post("/checkout", controllers.HandleCreateCheckout)

	api.Get("/webhooks/yoco", controllers.HandleYocoWebhookHealth)
	api.Post("/webhooks/yoco", controllers.HandleYocoWebhook)

	api.Get("/tickets/verify", controllers.HandleVerifyTicket)
	api.Post("/tickets/verify", controllers.HandleVerifyTicket)
	api.Get("/tickets/image", controllers.HandleTicketImage)

	api.Post("/email/claim", controllers.HandleClaimEmail)
	api.Post("/send", controllers.HandleSendTicket)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
