// Package ticketrender draws a single-admission ticket card as a PNG:
// event and buyer details on the left, a scannable QR code on the right.
package ticketrender

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/laudemdeitickets/choir-tickets/internal/pkg/claimtoken"
)

const (
	cardWidth  = 1000
	cardHeight = 420
	qrSize     = 180
)

var (
	colorInk     = color.RGBA{R: 0x0f, G: 0x17, B: 0x2a, A: 0xff}
	colorMuted   = color.RGBA{R: 0x64, G: 0x74, B: 0x8b, A: 0xff}
	colorBorder  = color.RGBA{R: 0xe2, G: 0xe8, B: 0xf0, A: 0xff}
	colorDivider = color.RGBA{R: 0xcb, G: 0xd5, B: 0xe1, A: 0xff}
)

// Input is everything needed to draw one ticket.
type Input struct {
	OrgName string
	OrderID string
	Event   claimtoken.EventInfo
	Buyer   claimtoken.BuyerInfo
	Item    claimtoken.ClaimItem
}

// Render draws the ticket card and returns PNG bytes.
func Render(in Input) ([]byte, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, cardWidth, cardHeight))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	strokeRect(canvas, 20, 20, cardWidth-40, cardHeight-40, 2, colorBorder)

	org := in.OrgName
	if org == "" {
		org = "Tickets"
	}
	title := in.Event.Title
	if title == "" {
		title = "Event"
	}

	drawText(canvas, 48, 80, org, colorInk)
	drawText(canvas, 48, 115, title, colorInk)
	if in.Event.Subtitle != "" {
		drawText(canvas, 48, 145, in.Event.Subtitle, colorMuted)
	}

	when := joinNonEmpty(" | ", in.Event.StartISO, in.Event.Venue)
	if when != "" {
		drawText(canvas, 48, 180, when, colorInk)
	}
	if in.Event.Address != "" {
		drawText(canvas, 48, 208, in.Event.Address, colorMuted)
	}
	buyerLine := joinNonEmpty(" ", in.Buyer.FirstName, in.Buyer.LastName)
	if in.Buyer.Cell != "" {
		buyerLine = joinNonEmpty(" | ", buyerLine, in.Buyer.Cell)
	}
	if buyerLine != "" {
		drawText(canvas, 48, 238, "Buyer: "+buyerLine, colorMuted)
	}

	dashedHLine(canvas, 40, cardWidth-40, 270, colorDivider)

	ticketID := in.Item.TicketID
	if ticketID == "" {
		ticketID = "TKT-XXXXXX"
	}
	itemName := in.Item.Name
	if itemName == "" {
		itemName = "Admission"
	}

	drawText(canvas, 48, 310, "Ticket ID", colorMuted)
	drawText(canvas, 48, 335, ticketID, colorInk)
	drawText(canvas, 340, 310, "Type", colorMuted)
	drawText(canvas, 340, 335, itemName, colorInk)
	drawText(canvas, 640, 310, "Price", colorMuted)
	drawText(canvas, 640, 335, formatPrice(in.Item.PriceCents), colorInk)

	qrImg, err := buildQR(in)
	if err != nil {
		return nil, err
	}
	composed := imaging.Overlay(canvas, qrImg, image.Pt(cardWidth-40-qrSize, 60), 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, composed, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildQR(in Input) (image.Image, error) {
	payload, err := json.Marshal(map[string]string{
		"order":   in.OrderID,
		"ticket":  in.Item.TicketID,
		"event":   in.Event.ID,
		"title":   in.Event.Title,
		"dateISO": in.Event.StartISO,
		"venue":   in.Event.Venue,
		"address": in.Event.Address,
		"buyer":   joinNonEmpty(" ", in.Buyer.FirstName, in.Buyer.LastName),
	})
	if err != nil {
		return nil, err
	}
	q, err := qrcode.New(string(payload), qrcode.Medium)
	if err != nil {
		return nil, err
	}
	return q.Image(qrSize), nil
}

func formatPrice(cents int64) string {
	if cents <= 0 {
		return ""
	}
	return fmt.Sprintf("R%d", (cents+50)/100)
}

func joinNonEmpty(sep string, parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += sep
		}
		out += p
	}
	return out
}

func drawText(dst *image.RGBA, x, y int, s string, col color.Color) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func strokeRect(dst *image.RGBA, x, y, w, h, stroke int, col color.Color) {
	uniform := image.NewUniform(col)
	draw.Draw(dst, image.Rect(x, y, x+w, y+stroke), uniform, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(x, y+h-stroke, x+w, y+h), uniform, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(x, y, x+stroke, y+h), uniform, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(x+w-stroke, y, x+w, y+h), uniform, image.Point{}, draw.Src)
}

func dashedHLine(dst *image.RGBA, x0, x1, y int, col color.Color) {
	uniform := image.NewUniform(col)
	for x := x0; x < x1; x += 16 {
		end := x + 8
		if end > x1 {
			end = x1
		}
		draw.Draw(dst, image.Rect(x, y, end, y+1), uniform, image.Point{}, draw.Src)
	}
}
