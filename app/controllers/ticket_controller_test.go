package controllers

import (
	"errors"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"github.com/laudemdeitickets/choir-tickets/internal/pkg/claimtoken"
)

func TestMapVerifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"missing secret is a server error", claimtoken.ErrNoSecret, fiber.StatusInternalServerError, "signing-secret-missing"},
		{"bad signature is forbidden", claimtoken.ErrInvalidSignature, fiber.StatusForbidden, "invalid-signature"},
		{"expired token", claimtoken.ErrTokenExpired, fiber.StatusBadRequest, "token-expired"},
		{"future token", claimtoken.ErrTokenNotYetValid, fiber.StatusBadRequest, "token-not-yet-valid"},
		{"wrong algorithm", claimtoken.ErrUnsupportedToken, fiber.StatusBadRequest, "unsupported-token"},
		{"undecodable payload", claimtoken.ErrInvalidPayload, fiber.StatusBadRequest, "invalid-payload"},
		{"anything else is malformed", errors.New("boom"), fiber.StatusBadRequest, "malformed-token"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			status, code := mapVerifyError(tc.err)
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantCode, code)
		})
	}
}
