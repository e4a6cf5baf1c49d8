package ticketrender

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/laudemdeitickets/choir-tickets/internal/pkg/claimtoken"
)

func TestRender_ProducesDecodablePNG(t *testing.T) {
	out, err := Render(Input{
		OrgName: "Laudem Dei",
		OrderID: "order_42",
		Event: claimtoken.EventInfo{
			ID:       "spring-concert",
			Title:    "Spring Concert",
			Venue:    "City Hall",
			Address:  "1 Main Rd",
			StartISO: "2026-10-03T19:00:00+02:00",
		},
		Buyer: claimtoken.BuyerInfo{FirstName: "Thandi", LastName: "Ndlovu", Cell: "+27821234567"},
		Item:  claimtoken.ClaimItem{Code: "GA", Name: "General", Quantity: 1, PriceCents: 15000, TicketID: "TKT-ABC123"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a decodable PNG: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 1000 || b.Dy() != 420 {
		t.Fatalf("unexpected dimensions %dx%d", b.Dx(), b.Dy())
	}
}

func TestRender_EmptyInputStillRenders(t *testing.T) {
	out, err := Render(Input{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(out)); err != nil {
		t.Fatalf("output is not a decodable PNG: %v", err)
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{cents: 15000, want: "R150"},
		{cents: 15049, want: "R150"},
		{cents: 15050, want: "R151"},
		{cents: 0, want: ""},
	}
	for _, tt := range tests {
		if got := formatPrice(tt.cents); got != tt.want {
			t.Fatalf("formatPrice(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}
