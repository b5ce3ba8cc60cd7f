package models

type RegistrationRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	DOB          string `json:"dob"`
	Tier         Tier   `json:"tier"`
	PaymentImage string `json:"paymentImage"`
}

// TransitionRequest carries the admin edit; nil fields are left untouched.
type TransitionRequest struct {
	Status *Status `json:"status,omitempty"`
	Tier   *Tier   `json:"tier,omitempty"`
}

type UpdateStatusRequest struct {
	TicketID string  `json:"ticketId"`
	Status   *Status `json:"status,omitempty"`
	Tier     *Tier   `json:"tier,omitempty"`
}

type CheckInRequest struct {
	TicketID string `json:"ticketId"`
}

type LoginRequest struct {
	Secret string `json:"secret"`
}
