package controllers

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/laudemdeitickets/choir-tickets/internal/pkg/cache"
	"github.com/laudemdeitickets/choir-tickets/internal/pkg/claimtoken"
	"github.com/laudemdeitickets/choir-tickets/internal/pkg/env"
	"github.com/laudemdeitickets/choir-tickets/internal/pkg/mail"
	"github.com/laudemdeitickets/choir-tickets/internal/pkg/ticketrender"
)

const claimEmailThrottle = 10 * time.Minute

// verifyRequestToken pulls the claim token from the query string or, for
// POST requests, from the JSON body.
func verifyRequestToken(c *fiber.Ctx) string {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		token = strings.TrimSpace(c.Query("t"))
	}
	if token == "" && c.Method() == fiber.MethodPost {
		var body struct {
			Token string `json:"token"`
		}
		if err := c.BodyParser(&body); err == nil {
			token = strings.TrimSpace(body.Token)
		}
	}
	return token
}

// mapVerifyError translates codec errors to HTTP status and error codes.
// A missing secret is a server misconfiguration, a bad signature is the
// caller's problem.
func mapVerifyError(err error) (int, string) {
	switch {
	case errors.Is(err, claimtoken.ErrNoSecret):
		return fiber.StatusInternalServerError, "signing-secret-missing"
	case errors.Is(err, claimtoken.ErrInvalidSignature):
		return fiber.StatusForbidden, "invalid-signature"
	case errors.Is(err, claimtoken.ErrTokenExpired):
		return fiber.StatusBadRequest, "token-expired"
	case errors.Is(err, claimtoken.ErrTokenNotYetValid):
		return fiber.StatusBadRequest, "token-not-yet-valid"
	case errors.Is(err, claimtoken.ErrUnsupportedToken):
		return fiber.StatusBadRequest, "unsupported-token"
	case errors.Is(err, claimtoken.ErrInvalidPayload):
		return fiber.StatusBadRequest, "invalid-payload"
	default:
		return fiber.StatusBadRequest, "malformed-token"
	}
}

func verifyClaim(c *fiber.Ctx) (*claimtoken.OrderClaim, error) {
	token := verifyRequestToken(c)
	if token == "" {
		return nil, jsonError(c, fiber.StatusBadRequest, "token-required")
	}
	claim, err := newClaimCodec().Verify(token)
	if err != nil {
		status, code := mapVerifyError(err)
		return nil, jsonError(c, status, code)
	}
	if claim.Subject != claimtoken.SubjectTicketClaim {
		return nil, jsonError(c, fiber.StatusBadRequest, "unsupported-token")
	}
	return claim, nil
}

// HandleVerifyTicket validates a presented claim token and returns the
// embedded order data for the claim page to render.
func HandleVerifyTicket(c *fiber.Ctx) error {
	claim, err := verifyClaim(c)
	if claim == nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":          true,
		"orderId":     claim.OrderID,
		"email":       claim.Buyer.Email,
		"mode":        claim.Mode,
		"items":       claim.Items,
		"event":       claim.Event,
		"buyer":       claim.Buyer,
		"amountCents": claim.AmountCents,
		"iat":         claim.IssuedAt,
		"exp":         claim.ExpiresAt,
	})
}

// HandleClaimEmail re-sends the claim link to the buyer address embedded
// in the token. Throttled per order so the endpoint cannot be used to
// spam a buyer.
func HandleClaimEmail(c *fiber.Ctx) error {
	claim, err := verifyClaim(c)
	if claim == nil {
		return err
	}
	if claim.Buyer.Email == "" {
		return jsonError(c, fiber.StatusBadRequest, "no-buyer-email")
	}

	if fresh, err := cache.SetIfAbsent("claimmail:"+claim.OrderID, "1", claimEmailThrottle); err != nil {
		log.Printf("[claim-email] throttle unavailable: %v", err)
	} else if !fresh {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"ok": false, "error": "too-many-requests"})
	}

	token := verifyRequestToken(c)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := sendClaimEmail(ctx, token, *claim); err != nil {
		log.Printf("[claim-email] send failed for %s: %v", claim.OrderID, err)
		return jsonError(c, fiber.StatusBadGateway, "email-send-failed")
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "orderId": claim.OrderID})
}

// sendClaimEmail delivers the claim link for an order. Shared by the
// webhook path and the explicit re-send endpoint.
func sendClaimEmail(ctx context.Context, token string, claim claimtoken.OrderClaim) error {
	claimURL := claimURLForToken(token)
	org := env.GetEnv("ORG_NAME", "Laudem Dei")
	first := claim.Buyer.FirstName
	if first == "" {
		first = "there"
	}

	count := 0
	for _, it := range claim.Items {
		if it.Quantity > 0 {
			count += it.Quantity
		} else {
			count++
		}
	}
	plural := "ticket"
	verb := "is"
	if count != 1 {
		plural = "tickets"
		verb = "are"
	}

	htmlBody := fmt.Sprintf(
		`<p>Hi %s,</p>
<p>Thank you for your order <strong>%s</strong>. Your %d %s for <strong>%s</strong> %s ready.</p>
<p><a href="%s">Open your tickets</a></p>
<p>If the button does not work, copy this link into your browser:<br>%s</p>
<p>%s</p>`,
		html.EscapeString(first),
		html.EscapeString(claim.OrderID),
		count, plural,
		html.EscapeString(claim.Event.Title),
		verb,
		claimURL, html.EscapeString(claimURL),
		html.EscapeString(org),
	)
	text := fmt.Sprintf("Hi %s,\n\nThank you for your order %s. Open your tickets:\n%s\n\n%s\n",
		first, claim.OrderID, claimURL, org)

	return mail.Send(ctx, mail.Message{
		To:      claim.Buyer.Email,
		Subject: fmt.Sprintf("Your tickets for %s (%s)", claim.Event.Title, claim.OrderID),
		HTML:    htmlBody,
		Text:    text,
	})
}

// SendTicketRequest is the body of the generic outbound-mail endpoint the
// claim page uses to email a rendered ticket to the buyer.
type SendTicketRequest struct {
	To           string `json:"to"`
	Subject      string `json:"subject"`
	Text         string `json:"text"`
	HTML         string `json:"html"`
	ImageDataURL string `json:"imageDataUrl"`
	Filename     string `json:"filename"`
}

// HandleSendTicket emails arbitrary caller-supplied content, optionally
// attaching a ticket image submitted as a data URL.
func HandleSendTicket(c *fiber.Ctx) error {
	var req SendTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid-json")
	}
	if req.To == "" {
		return jsonError(c, fiber.StatusBadRequest, "to-required")
	}
	if req.Subject == "" {
		req.Subject = "Your ticket"
	}

	msg := mail.Message{
		To:      req.To,
		Subject: req.Subject,
		HTML:    req.HTML,
		Text:    req.Text,
	}
	if req.ImageDataURL != "" {
		att, err := parseImageDataURL(req.ImageDataURL, req.Filename)
		if err != nil {
			return jsonError(c, fiber.StatusBadRequest, "invalid-image")
		}
		msg.Attachments = append(msg.Attachments, att)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := mail.Send(ctx, msg); err != nil {
		log.Printf("[send] mail failed to %s: %v", req.To, err)
		return jsonError(c, fiber.StatusBadGateway, "email-send-failed")
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// HandleTicketImage renders one ticket from a verified claim as a PNG.
// The line is selected with the ?i index, defaulting to the first.
func HandleTicketImage(c *fiber.Ctx) error {
	claim, err := verifyClaim(c)
	if claim == nil {
		return err
	}
	if len(claim.Items) == 0 {
		return jsonError(c, fiber.StatusNotFound, "no-items")
	}

	idx := 0
	if raw := c.Query("i"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 || parsed >= len(claim.Items) {
			return jsonError(c, fiber.StatusBadRequest, "invalid-item-index")
		}
		idx = parsed
	}

	png, err := ticketrender.Render(ticketrender.Input{
		OrgName: env.GetEnv("ORG_NAME", "Laudem Dei"),
		OrderID: claim.OrderID,
		Event:   claim.Event,
		Buyer:   claim.Buyer,
		Item:    claim.Items[idx],
	})
	if err != nil {
		log.Printf("[ticket-image] render failed for %s: %v", claim.OrderID, err)
		return jsonError(c, fiber.StatusInternalServerError, "render-failed")
	}

	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "private, max-age=300")
	return c.Status(fiber.StatusOK).Send(png)
}
