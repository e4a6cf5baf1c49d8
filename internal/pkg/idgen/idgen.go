package idgen

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GenerateSecureSlug creates a cryptographically secure random Base62 slug.
func GenerateSecureSlug(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid slug length: %d", length)
	}

	// Rejection sampling to avoid modulo bias.
	// 248 is the largest multiple of 62 below 256.
	const maxRandomByte = 248

	slug := make([]byte, length)
	buf := make([]byte, length*2)
	written := 0

	for written < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read secure random bytes: %w", err)
		}

		for _, b := range buf {
			if b >= maxRandomByte {
				continue
			}
			slug[written] = alphabet[int(b)%len(alphabet)]
			written++
			if written == length {
				break
			}
		}
	}

	return string(slug), nil
}

// NewOrderID generates an order identifier for purchases where the
// upstream checkout metadata did not carry one.
func NewOrderID() string {
	slug, err := GenerateSecureSlug(8)
	if err != nil {
		// crypto/rand failing is not recoverable in-request; fall back to a
		// UUID fragment so the order still gets a usable identifier.
		slug = strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
	return "order_" + strings.ToLower(slug)
}

// NewTicketID generates an opaque per-ticket identifier, unique within a
// claim token.
func NewTicketID() string {
	return "TKT-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}
