package template

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"

	"github.com/signintech/gopdf"

	"onfa-ticketing/internal/models"
)

var ErrNoFont = errors.New("no TTF font configured for PDF tickets")

// TicketPDFGenerator lays out a one page A4 ticket. gopdf needs a TTF font
// on disk; without one the generator is disabled.
type TicketPDFGenerator struct {
	fontPath  string
	eventName string
}

func NewTicketPDFGenerator(fontPath, eventName string) *TicketPDFGenerator {
	return &TicketPDFGenerator{fontPath: fontPath, eventName: eventName}
}

func (g *TicketPDFGenerator) Enabled() bool {
	return g != nil && g.fontPath != ""
}

func (g *TicketPDFGenerator) Generate(ticket models.Ticket, qrCode []byte) ([]byte, error) {
	if !g.Enabled() {
		return nil, ErrNoFont
	}

	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := pdf.AddTTFFont("ticket", g.fontPath); err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}

	if err := pdf.SetFont("ticket", "", 22); err != nil {
		return nil, fmt.Errorf("failed to set font: %w", err)
	}
	pdf.SetXY(40, 40)
	pdf.Cell(nil, g.eventName)
	pdf.SetXY(40, 72)
	pdf.Cell(nil, ticket.Tier.Label()+" ticket")

	if err := pdf.SetFont("ticket", "", 13); err != nil {
		return nil, fmt.Errorf("failed to set font: %w", err)
	}
	pdf.SetXY(40, 120)
	for _, row := range ticketRows(ticket) {
		pdf.SetX(40)
		pdf.Cell(nil, row[0]+": "+row[1])
		pdf.Br(22)
	}

	if len(qrCode) > 0 {
		img, err := png.Decode(bytes.NewReader(qrCode))
		if err != nil {
			return nil, fmt.Errorf("decode qr: %w", err)
		}
		if err := pdf.ImageFrom(img, 40, pdf.GetY()+20, &gopdf.Rect{W: 200, H: 200}); err != nil {
			return nil, fmt.Errorf("draw qr: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func ticketRows(ticket models.Ticket) [][2]string {
	return [][2]string{
		{"Ticket ID", ticket.ID},
		{"Name", ticket.Name},
		{"Email", ticket.Email},
		{"Phone", ticket.Phone},
		{"Date of birth", ticket.DOB},
		{"Tier", ticket.Tier.Label()},
	}
}

func PDFFilename(ticketID string) string {
	return fmt.Sprintf("ticket_%s.pdf", ticketID)
}
