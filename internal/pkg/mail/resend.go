package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/laudemdeitickets/choir-tickets/internal/pkg/env"
)

const defaultResendBaseURL = "https://api.resend.com"

type ResendClient struct {
	APIKey  string
	From    string
	ReplyTo string

	BaseURL    string
	HTTPClient *http.Client
}

func NewResendClientFromEnv() *ResendClient {
	return &ResendClient{
		APIKey:  strings.TrimSpace(env.GetEnv("RESEND_API_KEY", "")),
		From:    fromAddress(),
		ReplyTo: strings.TrimSpace(env.GetEnv("REPLY_TO_EMAIL", "")),
		BaseURL: strings.TrimSpace(env.GetEnv("RESEND_API_BASE_URL", defaultResendBaseURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type resendAttachment struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"`
	ContentType string `json:"content_type,omitempty"`
}

func (c *ResendClient) Send(ctx context.Context, msg Message) error {
	payload := map[string]interface{}{
		"from":    c.From,
		"to":      []string{msg.To},
		"subject": msg.Subject,
	}
	if msg.HTML != "" {
		payload["html"] = msg.HTML
	}
	if msg.Text != "" {
		payload["text"] = msg.Text
	}
	if c.ReplyTo != "" {
		payload["reply_to"] = c.ReplyTo
	}
	if len(msg.Attachments) > 0 {
		atts := make([]resendAttachment, 0, len(msg.Attachments))
		for _, a := range msg.Attachments {
			filename := a.Filename
			if filename == "" {
				filename = "ticket.png"
			}
			atts = append(atts, resendAttachment{
				Filename:    filename,
				Content:     base64.StdEncoding.EncodeToString(a.Content),
				ContentType: a.ContentType,
			})
		}
		payload["attachments"] = atts
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := strings.TrimRight(c.BaseURL, "/") + "/emails"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(respBody, &apiErr)
		if apiErr.Message != "" {
			return fmt.Errorf("resend send failed: %s", apiErr.Message)
		}
		return fmt.Errorf("resend send failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}
	return nil
}
