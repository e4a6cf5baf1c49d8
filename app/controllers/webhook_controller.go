package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/laudemdeitickets/choir-tickets/app/models"
	"github.com/laudemdeitickets/choir-tickets/internal/pkg/cache"
	"github.com/laudemdeitickets/choir-tickets/internal/pkg/claimtoken"
	"github.com/laudemdeitickets/choir-tickets/internal/pkg/database"
	"github.com/laudemdeitickets/choir-tickets/internal/pkg/env"
	"github.com/laudemdeitickets/choir-tickets/internal/pkg/orderlog"
	"github.com/laudemdeitickets/choir-tickets/internal/pkg/yoco"
)

type yocoWebhookEvent struct {
	Type string `json:"type"`
	Mode string `json:"mode"`
	Data struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"`
		Checkout struct {
			ID string `json:"id"`
		} `json:"checkout"`
		Metadata map[string]interface{} `json:"metadata"`
	} `json:"data"`
}

// HandleYocoWebhookHealth answers the provider's endpoint probe.
func HandleYocoWebhookHealth(c *fiber.Ctx) error {
	return c.SendString("OK")
}

// HandleYocoWebhook authenticates and processes a payment notification.
// Verification runs over the exact raw body bytes; parsing happens only
// after the signature and timestamp checks passed.
func HandleYocoWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	envelope := yoco.WebhookEnvelope{
		DeliveryID:  strings.TrimSpace(c.Get("Webhook-Id")),
		TimestampMs: strings.TrimSpace(c.Get("Webhook-Timestamp")),
		Signature:   strings.TrimSpace(c.Get("Webhook-Signature")),
		RawBody:     rawBody,
	}

	result, err := yoco.NewVerifierFromEnv().Verify(envelope)
	switch {
	case errors.Is(err, yoco.ErrStaleTimestamp):
		log.Printf("[webhook] stale timestamp: delivery=%s ts=%s", envelope.DeliveryID, envelope.TimestampMs)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"received": false, "error": "stale-timestamp"})
	case errors.Is(err, yoco.ErrInvalidSignature), errors.Is(err, yoco.ErrMissingSignature):
		log.Printf("[webhook] rejected delivery %s: %v", envelope.DeliveryID, err)
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"received": false, "error": "invalid-signature"})
	case err != nil:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"received": false, "error": err.Error()})
	}

	// Fast-path replay guard; the DB unique index below stays the source
	// of truth when redis is down.
	if envelope.DeliveryID != "" {
		fresh, err := cache.SetIfAbsent("webhook:delivery:"+envelope.DeliveryID, "1", 24*time.Hour)
		if err != nil {
			log.Printf("[webhook] replay guard unavailable: %v", err)
		} else if !fresh {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "duplicate": true})
		}
	}

	var evt yocoWebhookEvent
	if err := json.Unmarshal(rawBody, &evt); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"received": false, "error": "invalid-json"})
	}

	db := database.GetDB()
	created, stored, err := models.CreateWebhookEventIfNotExists(db, &models.PaymentWebhookEvent{
		Provider:        "yoco",
		ProviderEventID: envelope.DeliveryID,
		EventType:       evt.Type,
		Mode:            result.Mode,
		PayloadJSON:     string(rawBody),
		SignatureValid:  result.Authenticated,
	})
	if err != nil {
		log.Printf("[webhook] could not persist delivery %s: %v", envelope.DeliveryID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"received": false, "error": "webhook-persist-failed"})
	}
	if !created {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "duplicate": true})
	}

	if evt.Type != "" && !strings.EqualFold(evt.Type, "payment.succeeded") {
		markProcessed(db, stored.ID, "")
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "ignored": true})
	}

	mode := result.Mode
	if mode == "" {
		// Unauthenticated posture: fall back to the payload's own claim.
		mode = evt.Mode
	}

	checkoutID := evt.Data.Checkout.ID
	if checkoutID == "" {
		checkoutID = metaString(evt.Data.Metadata, "checkoutId")
	}
	if checkoutID == "" {
		checkoutID = evt.Data.ID
	}

	meta, amountCents := claimMetaFromWebhook(db, checkoutID, &evt)

	claim := claimtoken.FromCheckoutMeta(meta, mode, amountCents, time.Now(),
		claimTokenTTL("CLAIM_TOKEN_TTL_WEBHOOK_SECONDS", defaultWebhookClaimTokenTTL))
	claim = claimtoken.ExpandTickets(claim)

	token := ""
	if minted, err := newClaimCodec().Mint(claim); err == nil {
		token = minted
	} else if errors.Is(err, claimtoken.ErrNoSecret) {
		log.Println("[webhook] TICKET_SIGNING_SECRET missing; claim token not minted")
	} else {
		log.Printf("[webhook] token generation failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	appendOrderLog(ctx, claim, checkoutID)

	emailed := false
	if env.GetBool("ALLOW_WEBHOOK_EMAIL", false) && claim.Buyer.Email != "" && token != "" {
		if err := sendClaimEmail(ctx, token, claim); err != nil {
			log.Printf("[webhook] claim email failed for %s: %v", claim.OrderID, err)
		} else {
			emailed = true
		}
	}

	markProcessed(db, stored.ID, "")
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "emailed": emailed, "orderId": claim.OrderID})
}

// claimMetaFromWebhook rebuilds the checkout metadata for the claim token.
// The order persisted at checkout time wins; the metadata bag the provider
// echoes back covers checkouts created before the order table existed.
func claimMetaFromWebhook(db *gorm.DB, checkoutID string, evt *yocoWebhookEvent) (*claimtoken.CheckoutMeta, int64) {
	meta := &claimtoken.CheckoutMeta{
		OrderID:       metaString(evt.Data.Metadata, "orderId"),
		EventID:       metaString(evt.Data.Metadata, "eventId"),
		EventTitle:    metaString(evt.Data.Metadata, "eventTitle"),
		EventSubtitle: metaString(evt.Data.Metadata, "eventSubtitle"),
		EventVenue:    metaString(evt.Data.Metadata, "eventVenue"),
		EventAddress:  metaString(evt.Data.Metadata, "eventAddress"),
		EventStartISO: metaString(evt.Data.Metadata, "eventStartISO"),
	}
	if raw, ok := evt.Data.Metadata["buyer"]; ok {
		if buf, err := json.Marshal(raw); err == nil {
			var buyer claimtoken.BuyerMeta
			if json.Unmarshal(buf, &buyer) == nil {
				meta.Buyer = &buyer
			}
		}
	}
	meta.Items = metaItems(evt.Data.Metadata["items"])
	amountCents := evt.Data.Amount

	if db == nil {
		return meta, amountCents
	}
	order, err := models.FindOrderByCheckoutID(db, checkoutID)
	if err != nil {
		return meta, amountCents
	}

	if err := models.MarkOrderPaid(db, order); err != nil {
		log.Printf("[webhook] could not mark order %s paid: %v", order.OrderID, err)
	}

	meta.OrderID = order.OrderID
	if order.AmountCents > 0 {
		amountCents = order.AmountCents
	}
	if order.BuyerEmail != "" && meta.Buyer == nil {
		meta.Buyer = &claimtoken.BuyerMeta{Email: order.BuyerEmail}
	}
	if order.ItemsJSON != "" {
		var items []claimtoken.ClaimItem
		if json.Unmarshal([]byte(order.ItemsJSON), &items) == nil && len(items) > 0 {
			lines := make([]claimtoken.ItemMeta, 0, len(items))
			for _, it := range items {
				lines = append(lines, claimtoken.ItemMeta{
					Code:       it.Code,
					Name:       it.Name,
					Qty:        it.Quantity,
					PriceCents: it.PriceCents,
				})
			}
			meta.Items = lines
		}
	}
	return meta, amountCents
}

// metaItems tolerates both shapes the metadata bag uses for the item
// list: a JSON array and a JSON string holding one.
func metaItems(raw interface{}) []claimtoken.ItemMeta {
	if raw == nil {
		return nil
	}
	var buf []byte
	switch v := raw.(type) {
	case string:
		buf = []byte(v)
	default:
		var err error
		buf, err = json.Marshal(v)
		if err != nil {
			return nil
		}
	}
	var items []claimtoken.ItemMeta
	if err := json.Unmarshal(buf, &items); err != nil {
		return nil
	}
	return items
}

func metaString(meta map[string]interface{}, key string) string {
	if meta == nil {
		return ""
	}
	if s, ok := meta[key].(string); ok {
		return s
	}
	return ""
}

func markProcessed(db *gorm.DB, id uint, processingError string) {
	if db == nil {
		return
	}
	if err := models.MarkWebhookProcessed(db, id, processingError); err != nil {
		log.Printf("[webhook] could not mark event %d processed: %v", id, err)
	}
}

// appendOrderLog writes one row per paid order to the configured CSV in
// GitHub. The log is best effort and never fails the webhook.
func appendOrderLog(ctx context.Context, claim claimtoken.OrderClaim, checkoutID string) {
	client := orderlog.NewClientFromEnv()
	if !client.Configured() {
		return
	}
	names := make([]string, 0, len(claim.Items))
	for _, it := range claim.Items {
		names = append(names, it.Name)
	}
	row := []string{
		time.Now().UTC().Format(time.RFC3339),
		claim.OrderID,
		checkoutID,
		claim.Mode,
		strconv.FormatInt(claim.AmountCents, 10),
		claim.Buyer.FirstName + " " + claim.Buyer.LastName,
		claim.Buyer.Email,
		strings.Join(names, "; "),
	}
	if err := client.AppendRow(ctx, row); err != nil {
		log.Printf("[webhook] order log append failed for %s: %v", claim.OrderID, err)
	}
}
