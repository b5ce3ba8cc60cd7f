package template

import (
	"bytes"
	_ "embed"
	"fmt"
	htmltemplate "html/template"

	"onfa-ticketing/internal/models"
)

//go:embed ticket_email.html
var ticketEmailHTML string

var ticketEmail = htmltemplate.Must(htmltemplate.New("ticket_email").Parse(ticketEmailHTML))

type emailData struct {
	EventName  string
	TierLabel  string
	TicketID   string
	Name       string
	Email      string
	Phone      string
	DOB        string
	QRFilename string
}

func QRFilename(ticketID string) string {
	return fmt.Sprintf("QR_%s.png", ticketID)
}

func EmailSubject(eventName string) string {
	return fmt.Sprintf("🎫 Your %s ticket - payment confirmed", eventName)
}

// RenderTicketEmail builds the HTML body sent once a ticket is paid.
// Attendee fields are escaped by html/template.
func RenderTicketEmail(eventName string, ticket models.Ticket) (string, error) {
	var buf bytes.Buffer
	err := ticketEmail.Execute(&buf, emailData{
		EventName:  eventName,
		TierLabel:  ticket.Tier.Label(),
		TicketID:   ticket.ID,
		Name:       ticket.Name,
		Email:      ticket.Email,
		Phone:      ticket.Phone,
		DOB:        ticket.DOB,
		QRFilename: QRFilename(ticket.ID),
	})
	if err != nil {
		return "", fmt.Errorf("render ticket email: %w", err)
	}
	return buf.String(), nil
}
