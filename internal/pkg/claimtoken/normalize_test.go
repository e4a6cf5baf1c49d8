package claimtoken

import (
	"strings"
	"testing"
	"time"
)

func TestFromCheckoutMeta_Defaults(t *testing.T) {
	now := time.Unix(1_760_000_000, 0)

	claim := FromCheckoutMeta(nil, "", 15000, now, 30*time.Minute)
	if claim.Subject != SubjectTicketClaim {
		t.Fatalf("expected ticket-claim subject, got %q", claim.Subject)
	}
	if claim.Mode != "live" {
		t.Fatalf("unknown mode must default to live, got %q", claim.Mode)
	}
	if !strings.HasPrefix(claim.OrderID, "order_") {
		t.Fatalf("missing order id must be generated, got %q", claim.OrderID)
	}
	if claim.Event.ID != "event" || claim.Event.Title != "Event" {
		t.Fatalf("event snapshot not defaulted: %+v", claim.Event)
	}
	if claim.IssuedAt != now.Unix() || claim.ExpiresAt != now.Unix()+1800 {
		t.Fatalf("unexpected validity window: iat=%d exp=%d", claim.IssuedAt, claim.ExpiresAt)
	}
}

func TestFromCheckoutMeta_FieldMappingAndFallbacks(t *testing.T) {
	now := time.Now()
	meta := &CheckoutMeta{
		OrderID:    "order_abc",
		EventTitle: "Spring Concert",
		Venue:      "City Hall",   // legacy field name
		Address:    "1 Main Rd",   // legacy field name
		StartISO:   "2026-10-03T19:00:00+02:00",
		Buyer:      &BuyerMeta{FirstName: "Thandi", Email: "thandi@example.com"},
		Items: []ItemMeta{
			{Code: "GA", Name: "General", Qty: 2, PriceCents: 15000},
			{Code: "VIP", Name: "Front Row", Qty: -1, PriceCents: 30000},
		},
	}

	claim := FromCheckoutMeta(meta, "test", 60000, now, time.Hour)
	if claim.OrderID != "order_abc" || claim.Mode != "test" {
		t.Fatalf("identity fields not mapped: %+v", claim)
	}
	if claim.Event.Venue != "City Hall" || claim.Event.Address != "1 Main Rd" {
		t.Fatalf("legacy venue/address fallbacks not applied: %+v", claim.Event)
	}
	if claim.Buyer.FirstName != "Thandi" || claim.Buyer.Email != "thandi@example.com" {
		t.Fatalf("buyer snapshot not mapped: %+v", claim.Buyer)
	}
	if len(claim.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(claim.Items))
	}
	if claim.Items[1].Quantity != 0 {
		t.Fatalf("negative quantity must clamp to 0, got %d", claim.Items[1].Quantity)
	}
}

func TestFromCheckoutMeta_ItemCap(t *testing.T) {
	meta := &CheckoutMeta{}
	for i := 0; i < MaxItems+5; i++ {
		meta.Items = append(meta.Items, ItemMeta{Code: "GA", Qty: 1})
	}

	claim := FromCheckoutMeta(meta, "live", 0, time.Now(), time.Minute)
	if len(claim.Items) != MaxItems {
		t.Fatalf("expected item list capped at %d, got %d", MaxItems, len(claim.Items))
	}
}

func TestExpandTickets(t *testing.T) {
	claim := FromCheckoutMeta(&CheckoutMeta{
		Items: []ItemMeta{
			{Code: "GA", Name: "General", Qty: 3, PriceCents: 15000},
			{Code: "VIP", Name: "Front Row", Qty: 1, PriceCents: 30000},
		},
	}, "live", 75000, time.Now(), time.Hour)

	expanded := ExpandTickets(claim)
	if len(expanded.Items) != 4 {
		t.Fatalf("expected 4 expanded lines, got %d", len(expanded.Items))
	}

	seen := make(map[string]struct{})
	for _, it := range expanded.Items {
		if it.Quantity != 1 {
			t.Fatalf("expanded line must carry quantity 1, got %d", it.Quantity)
		}
		if it.TicketID == "" {
			t.Fatalf("expanded line missing ticket id: %+v", it)
		}
		if _, dup := seen[it.TicketID]; dup {
			t.Fatalf("ticket id %q not unique within token", it.TicketID)
		}
		seen[it.TicketID] = struct{}{}
	}
	if expanded.Items[0].Code != "GA" || expanded.Items[3].Code != "VIP" {
		t.Fatalf("expansion must preserve item order: %+v", expanded.Items)
	}
}

func TestExpandTickets_CapsTotalLines(t *testing.T) {
	claim := FromCheckoutMeta(&CheckoutMeta{
		Items: []ItemMeta{{Code: "GA", Qty: MaxItems + 10}},
	}, "live", 0, time.Now(), time.Hour)

	expanded := ExpandTickets(claim)
	if len(expanded.Items) != MaxItems {
		t.Fatalf("expected expansion capped at %d, got %d", MaxItems, len(expanded.Items))
	}
}
