// Package mail delivers transactional email through the Resend HTTP API
// when an API key is configured, falling back to plain SMTP otherwise.
package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/laudemdeitickets/choir-tickets/internal/pkg/env"
)

// Attachment is a file included with a message, typically a rendered
// ticket PNG.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is a single outbound email.
type Message struct {
	To          string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

// Send delivers a message through whichever provider is configured.
func Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return errors.New("recipient address is required")
	}

	if env.GetEnv("RESEND_API_KEY", "") != "" {
		return NewResendClientFromEnv().Send(ctx, msg)
	}
	if env.GetEnv("SMTP_HOST", "") != "" {
		return sendSMTP(msg)
	}
	return errors.New("no email provider configured: set RESEND_API_KEY or SMTP_HOST")
}

func fromAddress() string {
	from := env.GetEnv("FROM_EMAIL", "")
	if from == "" {
		from = fmt.Sprintf("tickets@%s", "no-reply.local")
	}
	return from
}
