package tickets

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"onfa-ticketing/internal/metrics"
	"onfa-ticketing/internal/models"
	ticketdb "onfa-ticketing/internal/tickets/db"
)

const maxIDAttempts = 3

// Register admits a new PENDING ticket. Capacity check, duplicate check and
// insert run under the tier lock so the last slot cannot be sold twice.
func (s *TicketService) Register(ctx context.Context, req models.RegistrationRequest) (*models.Ticket, error) {
	req = normalizeRegistration(req)
	if err := validateRegistration(req); err != nil {
		s.track(req.Tier, "invalid")
		return nil, err
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	release, err := s.Locker.Acquire(lockCtx, req.Tier)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			s.Logger.Warn("TICKET", fmt.Sprintf("Registration lock for %s not acquired within %s", req.Tier, s.lockWait))
			s.track(req.Tier, "busy")
			return nil, ErrRegistrationBusy
		}
		s.track(req.Tier, "error")
		return nil, persistence("acquire tier lock", err)
	}
	defer release()

	ticket, err := s.admit(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrCapacityExceeded):
			s.track(req.Tier, "sold_out")
		case errors.Is(err, ErrDuplicateEmail):
			s.track(req.Tier, "duplicate")
		default:
			s.track(req.Tier, "error")
		}
		return nil, err
	}

	s.track(req.Tier, "created")
	s.Logger.LogTicket("REGISTER", ticket.ID, fmt.Sprintf("%s ticket for %s", ticket.Tier, ticket.Email))
	return ticket, nil
}

// admit must run while holding the tier lock.
func (s *TicketService) admit(ctx context.Context, req models.RegistrationRequest) (*models.Ticket, error) {
	count, err := s.DB.CountByTier(ctx, req.Tier)
	if err != nil {
		return nil, persistence("count tier", err)
	}
	if count >= s.limits[req.Tier] {
		return nil, ErrCapacityExceeded
	}

	if err := s.ensureEmailFree(ctx, req.Email); err != nil {
		return nil, err
	}

	now := s.now()
	ticket := &models.Ticket{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		DOB:          req.DOB,
		Tier:         req.Tier,
		PaymentImage: req.PaymentImage,
		Status:       models.StatusPending,
		RegisteredAt: now,
		UpdatedAt:    now,
	}

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		ticket.ID = s.NewTicketID()
		err = s.DB.CreateTicket(ctx, ticket)
		if err == nil {
			return ticket, nil
		}
		if !errors.Is(err, ticketdb.ErrDuplicate) {
			return nil, persistence("create ticket", err)
		}
		// Another instance may have taken the email (different tier lock),
		// otherwise the generated id collided.
		if err := s.ensureEmailFree(ctx, req.Email); err != nil {
			return nil, err
		}
	}
	return nil, persistence("create ticket", errors.New("could not allocate a unique ticket id"))
}

func (s *TicketService) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.DB.GetTicketByEmail(ctx, email)
	if err == nil {
		return ErrDuplicateEmail
	}
	if !errors.Is(err, ticketdb.ErrNotFound) {
		return persistence("find by email", err)
	}
	return nil
}

// NewTicketID is the prefix, the last six digits of the unix millisecond
// clock and four random hex characters, e.g. ONFA482913A7F2.
func (s *TicketService) NewTicketID() string {
	ms := strconv.FormatInt(s.now().UnixMilli(), 10)
	if len(ms) > 6 {
		ms = ms[len(ms)-6:]
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return s.idPrefix + ms + suffix
}

func (s *TicketService) track(tier models.Tier, result string) {
	label := string(tier)
	if !tier.Valid() {
		label = "unknown"
	}
	metrics.TrackRegistration(label, result)
}

func normalizeRegistration(req models.RegistrationRequest) models.RegistrationRequest {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	req.DOB = strings.TrimSpace(req.DOB)
	req.Tier = models.Tier(strings.ToLower(strings.TrimSpace(string(req.Tier))))
	req.PaymentImage = strings.TrimSpace(req.PaymentImage)
	return req
}

func validateRegistration(req models.RegistrationRequest) error {
	fields := []struct {
		name  string
		value string
	}{
		{"name", req.Name},
		{"email", req.Email},
		{"phone", req.Phone},
		{"dob", req.DOB},
		{"paymentImage", req.PaymentImage},
	}
	for _, f := range fields {
		if f.value == "" {
			return missingField(f.name)
		}
	}
	if !req.Tier.Valid() {
		return ErrInvalidTier
	}
	return nil
}
