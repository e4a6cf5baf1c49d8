package controllers

import (
	"encoding/base64"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/laudemdeitickets/choir-tickets/internal/pkg/claimtoken"
	"github.com/laudemdeitickets/choir-tickets/internal/pkg/env"
	"github.com/laudemdeitickets/choir-tickets/internal/pkg/mail"
)

const (
	defaultClaimTokenTTL        = 30 * time.Minute
	defaultWebhookClaimTokenTTL = 7 * 24 * time.Hour
)

// newClaimCodec builds the claim-token codec from the configured signing
// secrets. The previous secret, when set, keeps verifying tokens minted
// before a rotation.
func newClaimCodec() *claimtoken.Codec {
	secrets := []string{
		env.GetEnv("TICKET_SIGNING_SECRET", ""),
		env.GetEnv("TICKET_SIGNING_SECRET_OLD", ""),
	}
	skew := claimtoken.DefaultSkew
	if raw := env.GetEnv("CLAIM_TOKEN_SKEW_SECONDS", ""); raw != "" {
		if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs > 0 {
			skew = time.Duration(secs) * time.Second
		}
	}
	return claimtoken.New(secrets, skew)
}

func claimTokenTTL(envKey string, def time.Duration) time.Duration {
	if raw := env.GetEnv(envKey, ""); raw != "" {
		if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return def
}

// appendTokenToURL adds the claim token as a query parameter on the
// caller-supplied success URL.
func appendTokenToURL(rawURL, token string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func claimURLForToken(token string) string {
	base := env.GetEnv("CLAIM_BASE_URL", "https://laudemdeitickets.github.io/choir-tickets/ticket.html")
	return base + "?paid=1&token=" + url.QueryEscape(token)
}

// parseImageDataURL converts a data URL ("data:image/png;base64,...") into
// a mail attachment.
func parseImageDataURL(dataURL, filename string) (mail.Attachment, error) {
	meta, b64, found := strings.Cut(dataURL, ",")
	if !found || b64 == "" {
		return mail.Attachment{}, errors.New("invalid image data url")
	}

	contentType := "application/octet-stream"
	if strings.Contains(meta, "image/png") {
		contentType = "image/png"
	} else if strings.Contains(meta, "image/jpeg") || strings.Contains(meta, "image/jpg") {
		contentType = "image/jpeg"
	}

	content, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return mail.Attachment{}, errors.New("undecodable image data url")
	}
	if filename == "" {
		filename = "ticket.png"
	}
	return mail.Attachment{Filename: filename, ContentType: contentType, Content: content}, nil
}

func jsonError(c *fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"ok": false, "error": code})
}
