package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"onfa-ticketing/internal/logger"
	"onfa-ticketing/internal/metrics"
	"onfa-ticketing/internal/models"
)

// ErrSkipped marks a side effect whose transport is not configured.
var ErrSkipped = errors.New("transport not configured")

type TicketMailer interface {
	SendTicket(ctx context.Context, ticket models.Ticket) error
}

type StatusHook interface {
	Notify(ctx context.Context, ticket models.Ticket, action models.WebhookAction) error
}

type Broadcaster interface {
	Broadcast(ctx context.Context, channel string, event models.CheckInEvent) error
}

type EventPublisher interface {
	PublishTicketEvent(ctx context.Context, event models.TicketEvent) error
}

type Timeouts struct {
	Email    time.Duration
	Webhook  time.Duration
	Realtime time.Duration
	Audit    time.Duration
}

// Notifier runs each side effect in its own goroutine with its own deadline.
// Failures are logged and counted, never returned.
type Notifier struct {
	Email    TicketMailer
	Webhook  StatusHook
	Realtime Broadcaster
	Audit    EventPublisher
	Channel  string
	Timeouts Timeouts
	Logger   *logger.Logger

	wg sync.WaitGroup
}

func (n *Notifier) Dispatch(ticket models.Ticket, before models.TicketState, effects []models.Effect) {
	for _, effect := range effects {
		effect := effect
		switch effect.Kind {
		case models.EffectEmail:
			n.run(effect, ticket.ID, n.timeout(n.Timeouts.Email, 30*time.Second), func(ctx context.Context) error {
				if n.Email == nil {
					return ErrSkipped
				}
				return n.Email.SendTicket(ctx, ticket)
			})
		case models.EffectWebhook:
			n.run(effect, ticket.ID, n.timeout(n.Timeouts.Webhook, 10*time.Second), func(ctx context.Context) error {
				if n.Webhook == nil {
					return ErrSkipped
				}
				return n.Webhook.Notify(ctx, ticket, effect.Action)
			})
		case models.EffectRealtime:
			n.run(effect, ticket.ID, n.timeout(n.Timeouts.Realtime, 5*time.Second), func(ctx context.Context) error {
				if n.Realtime == nil {
					return ErrSkipped
				}
				return n.Realtime.Broadcast(ctx, n.Channel, NewCheckInEvent(ticket))
			})
		case models.EffectAudit:
			if n.Audit == nil {
				continue
			}
			n.run(effect, ticket.ID, n.timeout(n.Timeouts.Audit, 5*time.Second), func(ctx context.Context) error {
				return n.Audit.PublishTicketEvent(ctx, models.TicketEvent{
					EventID:    uuid.NewString(),
					TicketID:   ticket.ID,
					FromStatus: before.Status,
					ToStatus:   ticket.Status,
					FromTier:   before.Tier,
					ToTier:     ticket.Tier,
					Email:      ticket.Email,
					OccurredAt: ticket.UpdatedAt,
				})
			})
		default:
			n.log().Error("DISPATCH", fmt.Sprintf("Unknown effect %q for %s", effect.Kind, ticket.ID))
		}
	}
}

// Wait blocks until every dispatched effect has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) timeout(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

func (n *Notifier) run(effect models.Effect, ticketID string, timeout time.Duration, fn func(ctx context.Context) error) {
	n.wg.Add(1)
	metrics.EffectStarted()

	go func() {
		start := time.Now()
		result := "ok"
		defer func() {
			if r := recover(); r != nil {
				result = "panic"
				n.log().Error("DISPATCH", fmt.Sprintf("[%s] %s - panic: %v", effect, ticketID, r))
			}
			metrics.TrackSideEffect(string(effect.Kind), result, time.Since(start))
			metrics.EffectFinished()
			n.wg.Done()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		err := fn(ctx)
		switch {
		case err == nil:
			n.log().LogDispatch(effect.String(), ticketID, fmt.Sprintf("delivered in %s", time.Since(start).Round(time.Millisecond)))
		case errors.Is(err, ErrSkipped):
			result = "skipped"
			n.log().Warn("DISPATCH", fmt.Sprintf("[%s] %s - skipped: %v", effect, ticketID, err))
		case errors.Is(err, context.DeadlineExceeded):
			result = "timeout"
			n.log().Error("DISPATCH", fmt.Sprintf("[%s] %s - timed out after %s: %v", effect, ticketID, timeout, err))
		default:
			result = "error"
			n.log().Error("DISPATCH", fmt.Sprintf("[%s] %s - failed: %v", effect, ticketID, err))
		}
	}()
}

func (n *Notifier) log() *logger.Logger {
	if n.Logger == nil {
		return logger.Nop()
	}
	return n.Logger
}
