package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"onfa-ticketing/internal/models"
)

var (
	ErrNotFound  = errors.New("ticket not found")
	ErrDuplicate = errors.New("duplicate ticket")
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &ticket, nil
}

func (d *DB) GetTicketByEmail(ctx context.Context, email string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		ExcludeColumn("payment_image").
		Where("email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &ticket, nil
}

// CreateTicket inserts a new row. A unique violation on id or email is
// reported as ErrDuplicate.
func (d *DB) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	_, err := d.Bun.NewInsert().Model(ticket).Exec(ctx)
	if isUniqueViolation(err) {
		return errors.Join(ErrDuplicate, err)
	}
	return err
}

// UpdateTicketState writes status, tier and the check-in timestamp only if
// the row still holds the expected state. It reports whether the row changed.
func (d *DB) UpdateTicketState(ctx context.Context, expected models.TicketState, next *models.Ticket) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model(next).
		Column("status", "tier", "checked_in_at", "updated_at").
		Where("id = ?", next.ID).
		Where("status = ?", expected.Status).
		Where("tier = ?", expected.Tier).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListTickets returns every ticket, newest first, without payment images.
func (d *DB) ListTickets(ctx context.Context) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		ExcludeColumn("payment_image").
		Order("registered_at DESC", "id DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (d *DB) GetPaymentImage(ctx context.Context, id string) (string, error) {
	var image string
	err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Column("payment_image").
		Where("id = ?", id).
		Limit(1).
		Scan(ctx, &image)
	if err != nil {
		return "", notFound(err)
	}
	return image, nil
}

func (d *DB) Ping(ctx context.Context) error {
	return d.Bun.PingContext(ctx)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Now is truncated to microseconds so values round-trip through postgres unchanged.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
