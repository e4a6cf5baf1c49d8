package mail

import (
	"encoding/base64"
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"github.com/laudemdeitickets/choir-tickets/internal/pkg/env"
)

// sendSMTP delivers a message via plain SMTP. Attachments are encoded as
// a multipart/mixed body.
func sendSMTP(msg Message) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "587")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := fromAddress()

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	err := smtp.SendMail(addr, auth, sender, []string{msg.To}, buildMIME(sender, msg))
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	} else {
		log.Printf("Email sent to %s via %s", msg.To, addr)
	}
	return err
}

func buildMIME(sender string, msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\n", sender, msg.To, msg.Subject)

	if len(msg.Attachments) == 0 {
		b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		b.WriteString(msg.HTML)
		return []byte(b.String())
	}

	const boundary = "ticket-mail-boundary"
	fmt.Fprintf(&b, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s\r\n", boundary, msg.HTML)

	for _, a := range msg.Attachments {
		filename := a.Filename
		if filename == "" {
			filename = "ticket.png"
		}
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		fmt.Fprintf(&b, "Content-Type: %s\r\n", contentType)
		fmt.Fprintf(&b, "Content-Disposition: attachment; filename=%q\r\n", filename)
		b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")

		encoded := base64.StdEncoding.EncodeToString(a.Content)
		// Wrap base64 at 76 characters per RFC 2045.
		for len(encoded) > 76 {
			b.WriteString(encoded[:76])
			b.WriteString("\r\n")
			encoded = encoded[76:]
		}
		b.WriteString(encoded)
		b.WriteString("\r\n")
	}
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}
