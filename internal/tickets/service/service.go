package tickets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"onfa-ticketing/internal/logger"
	"onfa-ticketing/internal/models"
	ticketdb "onfa-ticketing/internal/tickets/db"
	qr "onfa-ticketing/internal/tickets/qr_generator"
)

// TicketDBLayer is the ticket store. Absent rows are reported as ticketdb.ErrNotFound.
type TicketDBLayer interface {
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	GetTicketByEmail(ctx context.Context, email string) (*models.Ticket, error)
	CountByTier(ctx context.Context, tier models.Tier) (int, error)
	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	UpdateTicketState(ctx context.Context, expected models.TicketState, next *models.Ticket) (bool, error)
	ListTickets(ctx context.Context) ([]models.Ticket, error)
	GetPaymentImage(ctx context.Context, id string) (string, error)
}

// TierLocker serialises registrations within one tier.
type TierLocker interface {
	Acquire(ctx context.Context, tier models.Tier) (release func(), err error)
}

// Dispatcher runs side effects without blocking the caller.
type Dispatcher interface {
	Dispatch(ticket models.Ticket, before models.TicketState, effects []models.Effect)
}

type Options struct {
	Limits   map[models.Tier]int
	IDPrefix string
	LockWait time.Duration
}

var DefaultLimits = map[models.Tier]int{
	models.TierSuperVIP: 10,
	models.TierVVIP:     5,
	models.TierVIP:      10,
}

type TicketService struct {
	DB       TicketDBLayer
	Locker   TierLocker
	Notifier Dispatcher
	QR       *qr.QRGenerator
	Logger   *logger.Logger

	limits   map[models.Tier]int
	idPrefix string
	lockWait time.Duration
	now      func() time.Time
}

func NewTicketService(db TicketDBLayer, locker TierLocker, notifier Dispatcher, log *logger.Logger, opts Options) *TicketService {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if log == nil {
		log = logger.Nop()
	}
	if opts.IDPrefix == "" {
		opts.IDPrefix = "ONFA"
	}
	if opts.LockWait <= 0 {
		opts.LockWait = 3 * time.Second
	}

	limits := make(map[models.Tier]int, len(models.AllTiers))
	for _, tier := range models.AllTiers {
		limits[tier] = DefaultLimits[tier]
		if v, ok := opts.Limits[tier]; ok && v > 0 {
			limits[tier] = v
		}
	}

	return &TicketService{
		DB:       db,
		Locker:   locker,
		Notifier: notifier,
		QR:       qr.NewQRGenerator(qr.DefaultSize),
		Logger:   log,
		limits:   limits,
		idPrefix: opts.IDPrefix,
		lockWait: opts.LockWait,
		now:      ticketdb.Now,
	}
}

// LimitsFromConfig converts the env keyed limits into tier limits.
func LimitsFromConfig(raw map[string]int) map[models.Tier]int {
	out := make(map[models.Tier]int, len(raw))
	for k, v := range raw {
		if tier := models.Tier(k); tier.Valid() {
			out[tier] = v
		}
	}
	return out
}

func (s *TicketService) Limit(tier models.Tier) int {
	return s.limits[tier]
}

// GetTicket returns the full ticket with its QR code rendered as a data URL.
func (s *TicketService) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	ticket, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	dataURL, err := s.QR.DataURL(ticket.ID)
	if err != nil {
		s.Logger.Warn("TICKET", fmt.Sprintf("QR render failed for %s: %v", ticket.ID, err))
	} else {
		ticket.QRCodeDataURL = dataURL
	}
	return ticket, nil
}

func (s *TicketService) GetPaymentImage(ctx context.Context, id string) (string, error) {
	img, err := s.DB.GetPaymentImage(ctx, id)
	if errors.Is(err, ticketdb.ErrNotFound) {
		return "", ErrTicketNotFound
	}
	if err != nil {
		return "", persistence("get payment image", err)
	}
	return img, nil
}

// QRCode renders the PNG for a known ticket.
func (s *TicketService) QRCode(ctx context.Context, id string) ([]byte, error) {
	ticket, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.QR.PNG(ticket.ID)
}

func (s *TicketService) load(ctx context.Context, id string) (*models.Ticket, error) {
	if id == "" {
		return nil, missingField("ticketId")
	}
	ticket, err := s.DB.GetTicketByID(ctx, id)
	if errors.Is(err, ticketdb.ErrNotFound) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, persistence("get ticket", err)
	}
	return ticket, nil
}
