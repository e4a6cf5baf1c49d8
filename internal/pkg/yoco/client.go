package yoco

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/laudemdeitickets/choir-tickets/internal/pkg/env"
)

const defaultAPIBaseURL = "https://payments.yoco.com/api"

// Client talks to the Yoco payments API. Live and test keys are held side
// by side; the requested mode picks the key per call.
type Client struct {
	SecretLive string
	SecretTest string

	APIBaseURL string
	HTTPClient *http.Client
}

func NewClientFromEnv() *Client {
	return &Client{
		SecretLive: strings.TrimSpace(env.GetEnv("YOCO_SECRET_LIVE", env.GetEnv("YOCO_SECRET", ""))),
		SecretTest: strings.TrimSpace(env.GetEnv("YOCO_SECRET_TEST", env.GetEnv("YOCO_SECRET", ""))),
		APIBaseURL: strings.TrimSpace(env.GetEnv("YOCO_API_BASE_URL", defaultAPIBaseURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *Client) keyForMode(mode string) (string, error) {
	if strings.EqualFold(mode, "test") {
		if c.SecretTest == "" {
			return "", errors.New("YOCO_SECRET_TEST is not configured")
		}
		return c.SecretTest, nil
	}
	if c.SecretLive == "" {
		return "", errors.New("YOCO_SECRET_LIVE is not configured")
	}
	return c.SecretLive, nil
}

// CreateCheckout creates a hosted checkout session and returns the
// redirect URL the buyer should be sent to.
func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	key, err := c.keyForMode(req.Mode)
	if err != nil {
		return nil, err
	}
	if req.AmountCents <= 0 {
		return nil, errors.New("amount must be a positive number of cents")
	}

	currency := req.Currency
	if currency == "" {
		currency = "ZAR"
	}
	description := req.Description
	if description == "" {
		description = "Order"
	}

	payload := map[string]interface{}{
		"amount":      req.AmountCents,
		"currency":    currency,
		"successUrl":  req.SuccessURL,
		"cancelUrl":   req.CancelURL,
		"description": description,
	}
	if len(req.Metadata) > 0 {
		payload["metadata"] = req.Metadata
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(c.APIBaseURL, "/") + "/checkouts"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+key)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(respBody, &apiErr)
		if apiErr.Message != "" {
			return nil, fmt.Errorf("yoco checkout failed: %s", apiErr.Message)
		}
		return nil, fmt.Errorf("yoco checkout failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	var raw struct {
		ID          string `json:"id"`
		RedirectURL string `json:"redirectUrl"`
		URL         string `json:"url"`
		SuccessURL  string `json:"successUrl"`
		CancelURL   string `json:"cancelUrl"`
	}
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return nil, fmt.Errorf("invalid yoco checkout response: %w", err)
	}

	redirect := raw.RedirectURL
	if redirect == "" {
		// Older API responses carried the redirect under "url".
		redirect = raw.URL
	}
	if redirect == "" {
		return nil, errors.New("yoco checkout response missing redirect url")
	}

	mode := "live"
	if strings.EqualFold(req.Mode, "test") {
		mode = "test"
	}
	return &Checkout{
		ID:          raw.ID,
		RedirectURL: redirect,
		SuccessURL:  raw.SuccessURL,
		CancelURL:   raw.CancelURL,
		Mode:        mode,
	}, nil
}
