package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

// SignHMAC computes an HMAC-SHA256 over the exact byte sequence given.
// Callers are responsible for building the message deterministically; the
// MAC is never computed over a re-serialized structure.
func SignHMAC(key, message []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return mac.Sum(nil)
}

// SecureCompare reports whether two MACs are equal without leaking where
// the first differing byte occurs. A length mismatch returns false.
func SecureCompare(a, b []byte) bool {
	return hmac.Equal(a, b)
}

// NormalizeWebhookSecret turns a provider-issued webhook secret into raw
// key bytes. Two historical formats are in circulation: the bare base64
// value, and a prefixed form like "whsec_<base64>" where everything after
// the first underscore is the real secret.
func NormalizeWebhookSecret(secret string) ([]byte, error) {
	s := strings.TrimSpace(secret)
	if s == "" {
		return nil, errors.New("webhook secret is empty")
	}
	if idx := strings.Index(s, "_"); idx >= 0 {
		s = s[idx+1:]
	}
	if s == "" {
		return nil, errors.New("webhook secret has no value after prefix")
	}
	if key, err := base64.StdEncoding.DecodeString(s); err == nil {
		return key, nil
	}
	key, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.New("webhook secret is not valid base64")
	}
	return key, nil
}
