package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/laudemdeitickets/choir-tickets/app/models"
	"github.com/laudemdeitickets/choir-tickets/internal/pkg/claimtoken"
	"github.com/laudemdeitickets/choir-tickets/internal/pkg/database"
	"github.com/laudemdeitickets/choir-tickets/internal/pkg/yoco"
)

// CheckoutRequest is the body the checkout page submits.
type CheckoutRequest struct {
	AmountCents int64                    `json:"amountCents" validate:"required,min=100"`
	Description string                   `json:"description" validate:"max=255"`
	SuccessURL  string                   `json:"successUrl" validate:"required,url,startswith=https://"`
	CancelURL   string                   `json:"cancelUrl" validate:"required,url,startswith=https://"`
	Mode        string                   `json:"mode" validate:"omitempty,oneof=test live"`
	Meta        *claimtoken.CheckoutMeta `json:"meta"`
}

func (r *CheckoutRequest) Validate() error {
	v := validator.New()

	return v.Struct(r)
}

// HandleCreateCheckout creates a Yoco hosted checkout session. When a
// signing secret is configured the success URL gains a claim token; a
// missing secret only logs, checkout must keep working without tokens.
func HandleCreateCheckout(c *fiber.Ctx) error {
	var req CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid-json")
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"ok":    false,
			"error": "amountCents must be integer cents >= 100 and successUrl/cancelUrl must be HTTPS",
		})
	}

	mode := "live"
	if strings.EqualFold(req.Mode, "test") {
		mode = "test"
	}

	claim := claimtoken.FromCheckoutMeta(req.Meta, mode, req.AmountCents, time.Now(),
		claimTokenTTL("CLAIM_TOKEN_TTL_SECONDS", defaultClaimTokenTTL))

	successURL := req.SuccessURL
	claimToken := ""
	token, err := newClaimCodec().Mint(claim)
	switch {
	case err == nil:
		claimToken = token
		if withToken, urlErr := appendTokenToURL(successURL, token); urlErr == nil {
			successURL = withToken
		} else {
			log.Printf("[checkout] could not append token to success url: %v", urlErr)
		}
	case errors.Is(err, claimtoken.ErrNoSecret):
		log.Println("[checkout] TICKET_SIGNING_SECRET missing; token not added")
	default:
		log.Printf("[checkout] token generation failed: %v", err)
	}

	metadata := map[string]interface{}{
		"orderId": claim.OrderID,
		"mode":    mode,
	}
	if req.Meta != nil {
		if req.Meta.EventID != "" {
			metadata["eventId"] = req.Meta.EventID
		}
		if req.Meta.EventTitle != "" {
			metadata["eventTitle"] = req.Meta.EventTitle
		}
		if req.Meta.Buyer != nil {
			metadata["buyer"] = req.Meta.Buyer
		}
		if len(req.Meta.Items) > 0 {
			if itemsJSON, err := json.Marshal(req.Meta.Items); err == nil {
				metadata["items"] = string(itemsJSON)
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	checkout, err := yoco.NewClientFromEnv().CreateCheckout(ctx, yoco.CheckoutRequest{
		AmountCents: req.AmountCents,
		Description: req.Description,
		SuccessURL:  successURL,
		CancelURL:   req.CancelURL,
		Mode:        mode,
		Metadata:    metadata,
	})
	if err != nil {
		log.Printf("[checkout] yoco checkout failed: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": err.Error()})
	}

	if db := database.GetDB(); db != nil {
		itemsJSON, _ := json.Marshal(claim.Items)
		order := &models.Order{
			OrderID:     claim.OrderID,
			CheckoutID:  checkout.ID,
			Mode:        mode,
			Status:      models.OrderStatusPending,
			AmountCents: req.AmountCents,
			BuyerEmail:  claim.Buyer.Email,
			ItemsJSON:   string(itemsJSON),
		}
		if err := models.CreateOrder(db, order); err != nil {
			log.Printf("[checkout] could not persist order %s: %v", claim.OrderID, err)
		}
	}

	resp := fiber.Map{
		"ok":          true,
		"checkoutId":  checkout.ID,
		"redirectUrl": checkout.RedirectURL,
		"mode":        mode,
	}
	if claimToken != "" {
		resp["claimToken"] = claimToken
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}
