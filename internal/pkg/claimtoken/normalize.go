package claimtoken

import (
	"time"

	"github.com/laudemdeitickets/choir-tickets/internal/pkg/idgen"
)

// ItemMeta is one line of the loosely-typed item list the checkout page
// submits. Any field may be absent.
type ItemMeta struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Qty        int    `json:"qty"`
	PriceCents int64  `json:"priceCents"`
}

// BuyerMeta mirrors the optional buyer block of the checkout metadata.
type BuyerMeta struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Cell      string `json:"cell"`
}

// CheckoutMeta is the metadata bag a checkout request may carry. Every
// field is optional; FromCheckoutMeta applies the defaulting rules.
type CheckoutMeta struct {
	OrderID       string     `json:"orderId"`
	EventID       string     `json:"eventId"`
	EventTitle    string     `json:"eventTitle"`
	EventSubtitle string     `json:"eventSubtitle"`
	EventVenue    string     `json:"eventVenue"`
	EventAddress  string     `json:"eventAddress"`
	EventStartISO string     `json:"eventStartISO"`
	Venue         string     `json:"venue"`
	Address       string     `json:"address"`
	StartISO      string     `json:"startISO"`
	Buyer         *BuyerMeta `json:"buyer"`
	Items         []ItemMeta `json:"items"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// FromCheckoutMeta maps a possibly sparse metadata bag to a fully
// defaulted OrderClaim. The mapping is total: a nil meta still yields a
// mintable claim with a generated order id.
func FromCheckoutMeta(meta *CheckoutMeta, mode string, amountCents int64, now time.Time, ttl time.Duration) OrderClaim {
	if meta == nil {
		meta = &CheckoutMeta{}
	}
	if mode != "test" {
		mode = "live"
	}

	orderID := meta.OrderID
	if orderID == "" {
		orderID = idgen.NewOrderID()
	}

	items := make([]ClaimItem, 0, len(meta.Items))
	for _, it := range meta.Items {
		if len(items) == MaxItems {
			break
		}
		qty := it.Qty
		if qty < 0 {
			qty = 0
		}
		items = append(items, ClaimItem{
			Code:       it.Code,
			Name:       it.Name,
			Quantity:   qty,
			PriceCents: it.PriceCents,
		})
	}

	event := EventInfo{
		ID:       firstNonEmpty(meta.EventID, "event"),
		Title:    firstNonEmpty(meta.EventTitle, "Event"),
		Subtitle: meta.EventSubtitle,
		Venue:    firstNonEmpty(meta.EventVenue, meta.Venue),
		Address:  firstNonEmpty(meta.EventAddress, meta.Address),
		StartISO: firstNonEmpty(meta.EventStartISO, meta.StartISO),
	}

	var buyer BuyerInfo
	if meta.Buyer != nil {
		buyer = BuyerInfo{
			FirstName: meta.Buyer.FirstName,
			LastName:  meta.Buyer.LastName,
			Email:     meta.Buyer.Email,
			Cell:      meta.Buyer.Cell,
		}
	}

	issued := now.Unix()
	return OrderClaim{
		Subject:     SubjectTicketClaim,
		OrderID:     orderID,
		Mode:        mode,
		Items:       items,
		Event:       event,
		Buyer:       buyer,
		AmountCents: amountCents,
		IssuedAt:    issued,
		ExpiresAt:   issued + int64(ttl/time.Second),
	}
}

// ExpandTickets returns a copy of the claim in the post-payment shape:
// every unit of quantity becomes its own line carrying a freshly generated
// opaque ticket id. The overall item cap still applies.
func ExpandTickets(claim OrderClaim) OrderClaim {
	expanded := make([]ClaimItem, 0, len(claim.Items))
	for _, it := range claim.Items {
		qty := it.Quantity
		if qty < 1 && it.TicketID != "" {
			// Already expanded lines pass through untouched.
			qty = 1
		}
		for u := 0; u < qty; u++ {
			if len(expanded) == MaxItems {
				claim.Items = expanded
				return claim
			}
			line := ClaimItem{
				Code:       it.Code,
				Name:       it.Name,
				Quantity:   1,
				PriceCents: it.PriceCents,
				TicketID:   it.TicketID,
			}
			if line.TicketID == "" || u > 0 {
				line.TicketID = idgen.NewTicketID()
			}
			expanded = append(expanded, line)
		}
	}
	claim.Items = expanded
	return claim
}
