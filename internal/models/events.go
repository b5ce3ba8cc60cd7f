package models

import "time"

type WebhookAction string

const (
	WebhookAppend WebhookAction = "append"
	WebhookUpdate WebhookAction = "update"
)

// WebhookPayload is what the spreadsheet automation receives.
type WebhookPayload struct {
	Event              string        `json:"event"`
	Action             WebhookAction `json:"action"`
	ShouldUpdateSheets bool          `json:"shouldUpdateSheets"`
	Ticket             WebhookTicket `json:"ticket"`
	Timestamp          time.Time     `json:"timestamp"`
}

type WebhookTicket struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	DOB             string    `json:"dob"`
	Tier            string    `json:"tier"`
	Status          Status    `json:"status"`
	RegisteredAt    time.Time `json:"registeredAt"`
	StatusChangedAt time.Time `json:"statusChangedAt"`
}

// CheckInEvent is pushed to door dashboards.
type CheckInEvent struct {
	TicketID     string     `json:"ticketId"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	DOB          string     `json:"dob"`
	Tier         Tier       `json:"tier"`
	Status       Status     `json:"status"`
	PaymentImage string     `json:"paymentImage,omitempty"`
	CheckedInAt  *time.Time `json:"checkedInAt,omitempty"`
}

// TicketEvent is the audit record written to kafka for every accepted change.
type TicketEvent struct {
	EventID    string    `json:"eventId"`
	TicketID   string    `json:"ticketId"`
	FromStatus Status    `json:"fromStatus"`
	ToStatus   Status    `json:"toStatus"`
	FromTier   Tier      `json:"fromTier"`
	ToTier     Tier      `json:"toTier"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurredAt"`
}
