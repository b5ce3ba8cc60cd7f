package notify

import (
	"context"
	"errors"
	"fmt"

	pubnub "github.com/pubnub/go"

	"onfa-ticketing/internal/config"
	"onfa-ticketing/internal/models"
	"onfa-ticketing/internal/sse"
)

const (
	CheckInEventName = "ticket-checked-in"

	// Larger payment images are left out of pushes; dashboards fetch them
	// from the image endpoint instead.
	maxInlineImage = 16 << 10
)

func NewCheckInEvent(ticket models.Ticket) models.CheckInEvent {
	event := models.CheckInEvent{
		TicketID:    ticket.ID,
		Name:        ticket.Name,
		Email:       ticket.Email,
		Phone:       ticket.Phone,
		DOB:         ticket.DOB,
		Tier:        ticket.Tier,
		Status:      ticket.Status,
		CheckedInAt: ticket.CheckedInAt,
	}
	if len(ticket.PaymentImage) < maxInlineImage {
		event.PaymentImage = ticket.PaymentImage
	}
	return event
}

// SSEBroadcaster pushes to clients connected to this instance.
type SSEBroadcaster struct {
	Emitter *sse.CheckInEmitter
}

func (b *SSEBroadcaster) Broadcast(_ context.Context, channel string, event models.CheckInEvent) error {
	b.Emitter.Emit(channel, event)
	return nil
}

// PublishFunc sends one message to a managed pub/sub channel.
type PublishFunc func(channel string, message any) error

// PubNubBroadcaster reaches dashboards connected to other instances.
type PubNubBroadcaster struct {
	publish PublishFunc
}

func NewPubNubBroadcaster(cfg config.RealtimeConfig) *PubNubBroadcaster {
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey
	pnConfig.UUID = cfg.PubNubUUID

	pn := pubnub.NewPubNub(pnConfig)
	return &PubNubBroadcaster{publish: func(channel string, message any) error {
		_, _, err := pn.Publish().
			Channel(channel).
			Message(message).
			Execute()
		return err
	}}
}

func NewPubNubBroadcasterWith(publish PublishFunc) *PubNubBroadcaster {
	return &PubNubBroadcaster{publish: publish}
}

// Broadcast gives up when ctx expires; the publish call itself keeps the
// client's own request timeout.
func (b *PubNubBroadcaster) Broadcast(ctx context.Context, channel string, event models.CheckInEvent) error {
	done := make(chan error, 1)
	go func() {
		done <- b.publish(channel, map[string]any{
			"event": CheckInEventName,
			"data":  event,
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("pubnub publish: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MultiBroadcaster delivers to every transport and joins their errors.
type MultiBroadcaster []Broadcaster

func (m MultiBroadcaster) Broadcast(ctx context.Context, channel string, event models.CheckInEvent) error {
	if len(m) == 0 {
		return ErrSkipped
	}
	var errs []error
	for _, b := range m {
		if err := b.Broadcast(ctx, channel, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
