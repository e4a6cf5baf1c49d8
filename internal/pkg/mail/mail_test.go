package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBuildMIME_WithoutAttachments(t *testing.T) {
	body := buildMIME("tickets@example.com", Message{
		To:      "buyer@example.com",
		Subject: "Your tickets",
		HTML:    "<p>hi</p>",
	})
	s := string(body)
	if !strings.Contains(s, "Content-Type: text/html") {
		t.Fatalf("expected html content type, got:\n%s", s)
	}
	if strings.Contains(s, "multipart/mixed") {
		t.Fatalf("plain message must not be multipart:\n%s", s)
	}
}

func TestBuildMIME_WithAttachment(t *testing.T) {
	body := buildMIME("tickets@example.com", Message{
		To:      "buyer@example.com",
		Subject: "Your tickets",
		HTML:    "<p>hi</p>",
		Attachments: []Attachment{
			{Filename: "ticket.png", ContentType: "image/png", Content: []byte{0x89, 'P', 'N', 'G'}},
		},
	})
	s := string(body)
	if !strings.Contains(s, "multipart/mixed") {
		t.Fatalf("expected multipart message:\n%s", s)
	}
	if !strings.Contains(s, `filename="ticket.png"`) {
		t.Fatalf("expected attachment disposition:\n%s", s)
	}
	if !strings.Contains(s, "Content-Transfer-Encoding: base64") {
		t.Fatalf("expected base64 transfer encoding:\n%s", s)
	}
}

func TestResendClient_Send(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/emails" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer re_key" {
			t.Fatalf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("bad body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "email_1"})
	}))
	defer srv.Close()

	c := &ResendClient{
		APIKey:     "re_key",
		From:       "tickets@example.com",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	}
	err := c.Send(context.Background(), Message{
		To:      "buyer@example.com",
		Subject: "Your tickets",
		HTML:    "<p>hi</p>",
		Attachments: []Attachment{
			{Filename: "ticket.png", ContentType: "image/png", Content: []byte("png-bytes")},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	to, _ := got["to"].([]interface{})
	if len(to) != 1 || to[0] != "buyer@example.com" {
		t.Fatalf("unexpected recipients: %v", got["to"])
	}
	atts, _ := got["attachments"].([]interface{})
	if len(atts) != 1 {
		t.Fatalf("expected 1 attachment, got %v", got["attachments"])
	}
}

func TestResendClient_SendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "invalid from address"})
	}))
	defer srv.Close()

	c := &ResendClient{APIKey: "re_key", From: "bad", BaseURL: srv.URL, HTTPClient: srv.Client()}
	err := c.Send(context.Background(), Message{To: "buyer@example.com"})
	if err == nil || !strings.Contains(err.Error(), "invalid from address") {
		t.Fatalf("expected provider message in error, got %v", err)
	}
}
