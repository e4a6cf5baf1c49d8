package claimtoken

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/laudemdeitickets/choir-tickets/internal/pkg/security"
)

func testClaim(now time.Time) OrderClaim {
	return OrderClaim{
		Subject: SubjectTicketClaim,
		OrderID: "order_42",
		Mode:    "test",
		Items: []ClaimItem{
			{Code: "GA", Name: "General", Quantity: 1, PriceCents: 15000},
		},
		Event: EventInfo{
			ID:       "spring-concert",
			Title:    "Spring Concert",
			Venue:    "City Hall",
			Address:  "1 Main Rd",
			StartISO: "2026-10-03T19:00:00+02:00",
		},
		Buyer: BuyerInfo{
			FirstName: "Thandi",
			LastName:  "Ndlovu",
			Email:     "thandi@example.com",
			Cell:      "+27821234567",
		},
		AmountCents: 15000,
		IssuedAt:    now.Unix(),
		ExpiresAt:   now.Add(30 * time.Minute).Unix(),
	}
}

func codecAt(secrets []string, now time.Time) *Codec {
	c := New(secrets, 0)
	c.now = func() time.Time { return now }
	return c
}

func TestMintVerify_RoundTrip(t *testing.T) {
	now := time.Now()
	c := codecAt([]string{"s3cret"}, now)
	claim := testClaim(now)

	token, err := c.Mint(claim)
	if err != nil {
		t.Fatalf("unexpected mint error: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Fatalf("expected 3-segment token, got %q", token)
	}

	got, err := c.Verify(token)
	if err != nil {
		t.Fatalf("unexpected verify error: %v", err)
	}
	if got.Subject != claim.Subject || got.OrderID != claim.OrderID || got.Mode != claim.Mode {
		t.Fatalf("claim identity fields did not round-trip: %+v", got)
	}
	if got.AmountCents != claim.AmountCents || got.IssuedAt != claim.IssuedAt || got.ExpiresAt != claim.ExpiresAt {
		t.Fatalf("numeric fields did not round-trip: %+v", got)
	}
	if got.Event != claim.Event || got.Buyer != claim.Buyer {
		t.Fatalf("snapshots did not round-trip: %+v", got)
	}
	if len(got.Items) != 1 || got.Items[0] != claim.Items[0] {
		t.Fatalf("items did not round-trip: %+v", got.Items)
	}
}

func TestMint_Deterministic(t *testing.T) {
	now := time.Now()
	c := codecAt([]string{"s3cret"}, now)
	claim := testClaim(now)

	a, err := c.Mint(claim)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := c.Mint(claim)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Fatalf("two mints of the same claim must be byte-identical")
	}
}

func TestMint_NoSecret(t *testing.T) {
	c := New([]string{"", "   "}, 0)
	if _, err := c.Mint(testClaim(time.Now())); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("expected ErrNoSecret, got %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	now := time.Now()
	token, err := codecAt([]string{"s3cret"}, now).Mint(testClaim(now))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := codecAt([]string{"wrong"}, now).Verify(token); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerify_SecretRotation(t *testing.T) {
	now := time.Now()
	retired := codecAt([]string{"old-secret"}, now)
	token, err := retired.Mint(testClaim(now))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rotated := codecAt([]string{"new-secret", "old-secret"}, now)
	if _, err := rotated.Verify(token); err != nil {
		t.Fatalf("token minted with retired secret must verify during rotation: %v", err)
	}

	currentOnly := codecAt([]string{"new-secret"}, now)
	if _, err := currentOnly.Verify(token); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature without the retired secret, got %v", err)
	}
}

func TestVerify_TamperDetection(t *testing.T) {
	now := time.Now()
	c := codecAt([]string{"s3cret"}, now)
	token, err := c.Mint(testClaim(now))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < len(token); i++ {
		if token[i] == '.' {
			continue
		}
		mutated := []byte(token)
		if mutated[i] == 'A' {
			mutated[i] = 'B'
		} else {
			mutated[i] = 'A'
		}
		if string(mutated) == token {
			continue
		}
		_, err := c.Verify(string(mutated))
		switch {
		case errors.Is(err, ErrInvalidSignature),
			errors.Is(err, ErrMalformedToken),
			errors.Is(err, ErrInvalidPayload),
			errors.Is(err, ErrUnsupportedToken):
			// All acceptable rejections.
		case err == nil:
			t.Fatalf("tampered token at byte %d verified successfully", i)
		default:
			t.Fatalf("unexpected error for tampered byte %d: %v", i, err)
		}
	}
}

func TestVerify_Malformed(t *testing.T) {
	c := codecAt([]string{"s3cret"}, time.Now())

	for _, token := range []string{"", "a.b", "a.b.c.d", "..", "a..c", ".b.c"} {
		if _, err := c.Verify(token); !errors.Is(err, ErrMalformedToken) {
			t.Fatalf("expected ErrMalformedToken for %q, got %v", token, err)
		}
	}
}

func TestVerify_ExpiryBoundary(t *testing.T) {
	now := time.Now()
	skew := int64(DefaultSkew / time.Second)

	mk := func(exp int64) string {
		claim := testClaim(now)
		claim.IssuedAt = exp - 1800
		claim.ExpiresAt = exp
		token, err := codecAt([]string{"s3cret"}, now).Mint(claim)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return token
	}

	c := codecAt([]string{"s3cret"}, now)

	if _, err := c.Verify(mk(now.Unix() - skew - 1)); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired just past the tolerance, got %v", err)
	}
	if _, err := c.Verify(mk(now.Unix() - skew + 1)); err != nil {
		t.Fatalf("expected success within the tolerance, got %v", err)
	}
}

func TestVerify_NotYetValid(t *testing.T) {
	now := time.Now()
	skew := int64(DefaultSkew / time.Second)

	claim := testClaim(now)
	claim.IssuedAt = now.Unix() + skew + 10
	claim.ExpiresAt = claim.IssuedAt + 1800

	token, err := codecAt([]string{"s3cret"}, now).Mint(claim)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := codecAt([]string{"s3cret"}, now).Verify(token); !errors.Is(err, ErrTokenNotYetValid) {
		t.Fatalf("expected ErrTokenNotYetValid, got %v", err)
	}
}

func TestVerify_UnsupportedHeader(t *testing.T) {
	now := time.Now()
	secret := "s3cret"

	// A correctly signed token whose header names a different algorithm
	// must be rejected as unsupported, not accepted.
	payload, err := json.Marshal(testClaim(now))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`)) + "." +
		base64.RawURLEncoding.EncodeToString(payload)
	sig := security.SignHMAC([]byte(secret), []byte(data))
	token := data + "." + base64.RawURLEncoding.EncodeToString(sig)

	if _, err := codecAt([]string{secret}, now).Verify(token); !errors.Is(err, ErrUnsupportedToken) {
		t.Fatalf("expected ErrUnsupportedToken, got %v", err)
	}
}
