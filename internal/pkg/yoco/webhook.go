package yoco

import (
	"encoding/base64"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/laudemdeitickets/choir-tickets/internal/pkg/env"
	"github.com/laudemdeitickets/choir-tickets/internal/pkg/security"
)

// DefaultMaxSkew bounds how old (or how far in the future) a delivery
// timestamp may be; it limits replay of captured webhook deliveries.
const DefaultMaxSkew = 3 * time.Minute

var (
	ErrMissingSignature = errors.New("webhook signature material missing")
	ErrStaleTimestamp   = errors.New("webhook timestamp outside allowed skew")
	ErrInvalidSignature = errors.New("webhook signature mismatch")
)

// Verifier authenticates inbound webhook deliveries. The MAC covers
// deliveryID + "." + timestamp + "." + rawBody with the normalized secret;
// the live secret is tried before the test secret and the first match
// resolves the delivery's mode.
type Verifier struct {
	SecretLive string
	SecretTest string

	MaxSkew time.Duration

	// RequireSignature selects the posture when headers or secrets are
	// absent: fail closed (true) or proceed unauthenticated with a logged
	// warning (false).
	RequireSignature bool

	Now func() time.Time
}

func NewVerifierFromEnv() *Verifier {
	maxSkew := DefaultMaxSkew
	if raw := env.GetEnv("YOCO_WEBHOOK_MAX_SKEW_MS", ""); raw != "" {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil && ms > 0 {
			maxSkew = time.Duration(ms) * time.Millisecond
		}
	}
	return &Verifier{
		SecretLive:       strings.TrimSpace(env.GetEnv("YOCO_WEBHOOK_SECRET_LIVE", env.GetEnv("YOCO_WEBHOOK_SECRET", ""))),
		SecretTest:       strings.TrimSpace(env.GetEnv("YOCO_WEBHOOK_SECRET_TEST", "")),
		MaxSkew:          maxSkew,
		RequireSignature: env.GetBool("YOCO_REQUIRE_SIGNATURE", true),
	}
}

// Verify authenticates a delivery. On the proceed-unauthenticated posture
// a missing-material delivery returns Authenticated=false with no error;
// every other failure is terminal for the request.
func (v *Verifier) Verify(envelope WebhookEnvelope) (VerifyResult, error) {
	hasSecrets := v.SecretLive != "" || v.SecretTest != ""
	hasHeaders := envelope.DeliveryID != "" && envelope.TimestampMs != "" && envelope.Signature != ""

	if !hasSecrets || !hasHeaders {
		if v.RequireSignature {
			return VerifyResult{}, ErrMissingSignature
		}
		log.Println("[webhook] missing signature headers/secrets; skipping verification")
		return VerifyResult{Authenticated: false}, nil
	}

	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	maxSkew := v.MaxSkew
	if maxSkew <= 0 {
		maxSkew = DefaultMaxSkew
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(envelope.TimestampMs), 10, 64)
	if err != nil {
		return VerifyResult{}, ErrStaleTimestamp
	}
	drift := now().UnixMilli() - ts
	if drift < 0 {
		drift = -drift
	}
	if drift > maxSkew.Milliseconds() {
		return VerifyResult{}, ErrStaleTimestamp
	}

	provided := extractSignature(envelope.Signature)
	providedMAC, err := base64.StdEncoding.DecodeString(provided)
	if err != nil || len(providedMAC) == 0 {
		return VerifyResult{}, ErrInvalidSignature
	}

	signed := make([]byte, 0, len(envelope.DeliveryID)+len(envelope.TimestampMs)+len(envelope.RawBody)+2)
	signed = append(signed, envelope.DeliveryID...)
	signed = append(signed, '.')
	signed = append(signed, envelope.TimestampMs...)
	signed = append(signed, '.')
	signed = append(signed, envelope.RawBody...)

	for _, candidate := range []struct {
		secret string
		mode   string
	}{
		{v.SecretLive, "live"},
		{v.SecretTest, "test"},
	} {
		if candidate.secret == "" {
			continue
		}
		key, err := security.NormalizeWebhookSecret(candidate.secret)
		if err != nil {
			log.Printf("[webhook] unusable %s webhook secret: %v", candidate.mode, err)
			continue
		}
		if security.SecureCompare(security.SignHMAC(key, signed), providedMAC) {
			return VerifyResult{Mode: candidate.mode, Authenticated: true}, nil
		}
	}
	return VerifyResult{}, ErrInvalidSignature
}

// extractSignature pulls the value the provider associates with its
// current key scheme out of the signature header. The header carries
// space-delimited entries of comma-separated scheme/value pairs, e.g.
// "v1,<base64> v1,<other>"; we take the value of the first entry. This is
// provider-format-specific on purpose: a different provider means swapping
// this one function.
func extractSignature(header string) string {
	first := header
	if idx := strings.IndexByte(first, ' '); idx >= 0 {
		first = first[:idx]
	}
	if idx := strings.IndexByte(first, ','); idx >= 0 {
		return first[idx+1:]
	}
	return ""
}
