package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID            string     `bun:"id,pk" json:"id"`
	Name          string     `bun:"name,notnull" json:"name"`
	Email         string     `bun:"email,notnull,unique" json:"email"`
	Phone         string     `bun:"phone,notnull" json:"phone"`
	DOB           string     `bun:"dob,notnull" json:"dob"`
	Tier          Tier       `bun:"tier,notnull" json:"tier"`
	PaymentImage  string     `bun:"payment_image,notnull" json:"paymentImage"`
	QRCodeDataURL string     `bun:"-" json:"qrCodeDataURL,omitempty"`
	Status        Status     `bun:"status,notnull" json:"status"`
	RegisteredAt  time.Time  `bun:"registered_at,notnull" json:"registeredAt"`
	CheckedInAt   *time.Time `bun:"checked_in_at,nullzero" json:"checkedInAt,omitempty"`
	UpdatedAt     time.Time  `bun:"updated_at,notnull" json:"updatedAt"`
}

// Summary drops the payment image, which can be a multi-megabyte data URL.
func (t Ticket) Summary() Ticket {
	t.PaymentImage = ""
	return t
}

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusCheckedIn Status = "CHECKED_IN"
	StatusCancelled Status = "CANCELLED"
)

var AllStatuses = []Status{StatusPending, StatusPaid, StatusCheckedIn, StatusCancelled}

func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

type Tier string

const (
	TierSuperVIP Tier = "supervip"
	TierVVIP     Tier = "vvip"
	TierVIP      Tier = "vip"
)

// AllTiers is ordered from the most to the least exclusive.
var AllTiers = []Tier{TierSuperVIP, TierVVIP, TierVIP}

var tierLabels = map[Tier]string{
	TierSuperVIP: "Super VIP",
	TierVVIP:     "VIP",
	TierVIP:      "Superior",
}

func (t Tier) Valid() bool {
	_, ok := tierLabels[t]
	return ok
}

// Label is the attendee facing name of the tier.
func (t Tier) Label() string {
	if l, ok := tierLabels[t]; ok {
		return l
	}
	return string(t)
}

type TierInfo struct {
	Tier      Tier   `json:"tier"`
	Label     string `json:"label"`
	Count     int    `json:"count"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
}

// TicketState is the pair a conditional update is keyed on.
type TicketState struct {
	Status Status
	Tier   Tier
}

func (t *Ticket) State() TicketState {
	return TicketState{Status: t.Status, Tier: t.Tier}
}
