package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onfa-ticketing/internal/logger"
	"onfa-ticketing/internal/models"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeMailer) SendTicket(_ context.Context, ticket models.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, ticket.ID)
	return f.err
}

type fakeHook struct {
	mu      sync.Mutex
	actions []models.WebhookAction
	block   bool
}

func (f *fakeHook) Notify(ctx context.Context, _ models.Ticket, action models.WebhookAction) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
	return nil
}

type panickingBroadcaster struct{}

func (panickingBroadcaster) Broadcast(context.Context, string, models.CheckInEvent) error {
	panic("boom")
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.TicketEvent
}

func (f *fakePublisher) PublishTicketEvent(_ context.Context, event models.TicketEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func paidTicket() models.Ticket {
	return models.Ticket{
		ID:        "ONFA123456ABCD",
		Name:      "Nina",
		Email:     "nina@x.com",
		Tier:      models.TierVIP,
		Status:    models.StatusPaid,
		UpdatedAt: time.Now().UTC(),
	}
}

func TestNotifier_DispatchesEveryEffect(t *testing.T) {
	mailer := &fakeMailer{}
	hook := &fakeHook{}
	audit := &fakePublisher{}
	n := &Notifier{Email: mailer, Webhook: hook, Audit: audit, Logger: logger.Nop()}

	before := models.TicketState{Status: models.StatusPending, Tier: models.TierVIP}
	n.Dispatch(paidTicket(), before, []models.Effect{
		{Kind: models.EffectEmail},
		{Kind: models.EffectWebhook, Action: models.WebhookAppend},
		{Kind: models.EffectAudit},
	})
	n.Wait()

	assert.Equal(t, []string{"ONFA123456ABCD"}, mailer.sent)
	assert.Equal(t, []models.WebhookAction{models.WebhookAppend}, hook.actions)
	require.Len(t, audit.events, 1)
	assert.Equal(t, models.StatusPending, audit.events[0].FromStatus)
	assert.Equal(t, models.StatusPaid, audit.events[0].ToStatus)
	assert.NotEmpty(t, audit.events[0].EventID)
}

func TestNotifier_FailuresAreIsolated(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp down")}
	hook := &fakeHook{}
	n := &Notifier{Email: mailer, Webhook: hook, Realtime: panickingBroadcaster{}}

	n.Dispatch(paidTicket(), models.TicketState{}, []models.Effect{
		{Kind: models.EffectEmail},
		{Kind: models.EffectRealtime},
		{Kind: models.EffectWebhook, Action: models.WebhookUpdate},
	})
	n.Wait()

	assert.Len(t, mailer.sent, 1)
	assert.Equal(t, []models.WebhookAction{models.WebhookUpdate}, hook.actions)
}

func TestNotifier_TimeoutBoundsEffect(t *testing.T) {
	n := &Notifier{
		Webhook:  &fakeHook{block: true},
		Timeouts: Timeouts{Webhook: 20 * time.Millisecond},
	}

	start := time.Now()
	n.Dispatch(paidTicket(), models.TicketState{}, []models.Effect{{Kind: models.EffectWebhook, Action: models.WebhookAppend}})
	n.Wait()
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestNotifier_UnconfiguredTransportsAreSkipped(t *testing.T) {
	n := &Notifier{}
	assert.NotPanics(t, func() {
		n.Dispatch(paidTicket(), models.TicketState{}, []models.Effect{
			{Kind: models.EffectEmail},
			{Kind: models.EffectWebhook, Action: models.WebhookAppend},
			{Kind: models.EffectRealtime},
			{Kind: models.EffectAudit},
		})
		n.Wait()
	})
}
