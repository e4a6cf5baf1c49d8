// Package claimtoken implements the signed claim artifact a buyer presents
// to retrieve purchased tickets. A token is a compact three-segment string
// (header.payload.signature, URL-safe base64 without padding) whose HMAC is
// computed over the exact encoded header+payload concatenation, so it can
// be verified statelessly by any host holding the signing secret.
package claimtoken

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/laudemdeitickets/choir-tickets/internal/pkg/security"
)

const (
	// SubjectTicketClaim discriminates ticket-claim tokens from any other
	// token this backend might mint in the future.
	SubjectTicketClaim = "ticket-claim"

	// DefaultSkew is the allowed clock drift between the minting and the
	// verifying host before exp/iat checks are enforced strictly.
	DefaultSkew = 5 * time.Minute

	// MaxItems caps the item list so the token stays small enough for a
	// URL query parameter.
	MaxItems = 20
)

var (
	ErrNoSecret         = errors.New("no signing secret configured")
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrInvalidPayload   = errors.New("invalid token payload")
	ErrUnsupportedToken = errors.New("unsupported token type")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenNotYetValid = errors.New("token not yet valid")
)

// EventInfo is the denormalized event snapshot captured at mint time so
// claim-time rendering never has to look the event up again.
type EventInfo struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	Venue    string `json:"venue"`
	Address  string `json:"address"`
	StartISO string `json:"startISO"`
}

// BuyerInfo is the buyer snapshot captured at mint time.
type BuyerInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Cell      string `json:"cell"`
}

// ClaimItem is one purchased line. Checkout-time tokens carry a quantity;
// webhook-time tokens expand each unit into its own line with a TicketID.
type ClaimItem struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Quantity   int    `json:"qty"`
	PriceCents int64  `json:"priceCents"`
	TicketID   string `json:"ticketId,omitempty"`
}

// OrderClaim is the token payload. Timestamps are Unix seconds.
type OrderClaim struct {
	Subject     string      `json:"sub"`
	OrderID     string      `json:"orderId"`
	Mode        string      `json:"mode"`
	Items       []ClaimItem `json:"items"`
	Event       EventInfo   `json:"event"`
	Buyer       BuyerInfo   `json:"buyer"`
	AmountCents int64       `json:"amountCents"`
	IssuedAt    int64       `json:"iat"`
	ExpiresAt   int64       `json:"exp"`
}

type tokenHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

var fixedHeader = tokenHeader{Alg: "HS256", Typ: "JWT"}

// Codec mints and verifies claim tokens. Secrets are ordered: the first is
// used for minting, all are tried during verification so that a retired
// secret keeps verifying while a rotation is in flight.
type Codec struct {
	secrets [][]byte
	skew    time.Duration
	now     func() time.Time
}

// New builds a codec from candidate secrets in rotation order. Empty
// secrets are dropped. A zero skew falls back to DefaultSkew.
func New(secrets []string, skew time.Duration) *Codec {
	keys := make([][]byte, 0, len(secrets))
	for _, s := range secrets {
		if s = strings.TrimSpace(s); s != "" {
			keys = append(keys, []byte(s))
		}
	}
	if skew <= 0 {
		skew = DefaultSkew
	}
	return &Codec{secrets: keys, skew: skew, now: time.Now}
}

// Mint serializes and signs a claim. The result is deterministic for
// identical claim and secret; unforgeability rests on the secret alone,
// not on nonce freshness.
func (c *Codec) Mint(claim OrderClaim) (string, error) {
	if len(c.secrets) == 0 {
		return "", ErrNoSecret
	}

	headerJSON, err := json.Marshal(fixedHeader)
	if err != nil {
		return "", err
	}
	payloadJSON, err := json.Marshal(claim)
	if err != nil {
		return "", err
	}

	data := base64.RawURLEncoding.EncodeToString(headerJSON) + "." +
		base64.RawURLEncoding.EncodeToString(payloadJSON)
	sig := security.SignHMAC(c.secrets[0], []byte(data))
	return data + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// Verify checks a token's structure, signature and temporal validity and
// returns the embedded claim. It is idempotent and never mutates the
// secret store; expiry is the only replay bound.
func (c *Codec) Verify(token string) (*OrderClaim, error) {
	if len(c.secrets) == 0 {
		return nil, ErrNoSecret
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, ErrMalformedToken
	}

	providedSig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, ErrMalformedToken
	}

	// The MAC covers the exact encoded header+payload concatenation, never
	// a re-serialized structure.
	data := []byte(parts[0] + "." + parts[1])
	matched := false
	for _, key := range c.secrets {
		if security.SecureCompare(security.SignHMAC(key, data), providedSig) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, ErrInvalidSignature
	}

	headerBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, ErrInvalidPayload
	}
	var header tokenHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, ErrInvalidPayload
	}
	if header.Alg != fixedHeader.Alg || header.Typ != fixedHeader.Typ {
		return nil, ErrUnsupportedToken
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrInvalidPayload
	}
	var claim OrderClaim
	if err := json.Unmarshal(payloadBytes, &claim); err != nil {
		return nil, ErrInvalidPayload
	}

	now := c.now().Unix()
	skew := int64(c.skew / time.Second)
	if claim.IssuedAt > 0 && claim.IssuedAt > now+skew {
		return nil, ErrTokenNotYetValid
	}
	if claim.ExpiresAt > 0 && claim.ExpiresAt < now-skew {
		return nil, ErrTokenExpired
	}

	return &claim, nil
}
