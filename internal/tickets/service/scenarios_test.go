package tickets_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"onfa-ticketing/internal/database"
	"onfa-ticketing/internal/models"
	ticketdb "onfa-ticketing/internal/tickets/db"
	tickets "onfa-ticketing/internal/tickets/service"
)

type dispatchCall struct {
	Ticket  models.Ticket
	Before  models.TicketState
	Effects []models.Effect
}

type recordingDispatcher struct {
	mu  sync.Mutex
	log []dispatchCall
}

func (r *recordingDispatcher) Dispatch(ticket models.Ticket, before models.TicketState, effects []models.Effect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, dispatchCall{Ticket: ticket, Before: before, Effects: effects})
}

func (r *recordingDispatcher) calls() []dispatchCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dispatchCall(nil), r.log...)
}

func (r *recordingDispatcher) count(kind models.EffectKind, action models.WebhookAction) int {
	n := 0
	for _, c := range r.calls() {
		for _, e := range c.Effects {
			if e.Kind == kind && e.Action == action {
				n++
			}
		}
	}
	return n
}

func setupStore(t *testing.T) *ticketdb.DB {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })
	require.NoError(t, database.EnsureSchema(context.Background(), bunDB))
	return &ticketdb.DB{Bun: bunDB}
}

func setupService(t *testing.T, limits map[models.Tier]int) (*tickets.TicketService, *ticketdb.DB, *recordingDispatcher) {
	store := setupStore(t)
	d := &recordingDispatcher{}
	svc := tickets.NewTicketService(store, nil, d, nil, tickets.Options{Limits: limits, LockWait: 10 * time.Second})
	return svc, store, d
}

func register(t *testing.T, svc *tickets.TicketService, email string, tier models.Tier) (*models.Ticket, error) {
	t.Helper()
	return svc.Register(context.Background(), models.RegistrationRequest{
		Name:         "Attendee " + email,
		Email:        email,
		Phone:        "0900000000",
		DOB:          "1995-05-05",
		Tier:         tier,
		PaymentImage: "https://img.example.com/" + email,
	})
}

// Walks the register, pay, check-in and re-tier flow end to end.
func TestTicketLifecycle(t *testing.T) {
	svc, store, d := setupService(t, nil)
	ctx := context.Background()

	a, err := register(t, svc, "a@x.com", models.TierVIP)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, a.Status)
	n, err := store.CountByTier(ctx, models.TierVIP)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, d.calls(), "registration has no side effects")

	_, err = register(t, svc, "A@X.com", models.TierVVIP)
	assert.ErrorIs(t, err, tickets.ErrDuplicateEmail)
	n, _ = store.CountByTier(ctx, models.TierVVIP)
	assert.Equal(t, 0, n)

	paid := models.StatusPaid
	got, err := svc.ApplyTransition(ctx, a.ID, models.TransitionRequest{Status: &paid})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, got.Status)
	assert.Equal(t, 1, d.count(models.EffectEmail, ""))
	assert.Equal(t, 1, d.count(models.EffectWebhook, models.WebhookAppend))

	// writing PAID again fires nothing
	_, err = svc.ApplyTransition(ctx, a.ID, models.TransitionRequest{Status: &paid})
	require.NoError(t, err)
	assert.Len(t, d.calls(), 1)

	got, err = svc.CheckIn(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCheckedIn, got.Status)
	require.NotNil(t, got.CheckedInAt)
	assert.Equal(t, 1, d.count(models.EffectWebhook, models.WebhookUpdate))
	assert.Equal(t, 1, d.count(models.EffectRealtime, ""))

	_, err = svc.CheckIn(ctx, a.ID)
	assert.ErrorIs(t, err, tickets.ErrAlreadyCheckedIn)
	assert.Len(t, d.calls(), 2)

	vvip := models.TierVVIP
	got, err = svc.ApplyTransition(ctx, a.ID, models.TransitionRequest{Tier: &vvip})
	require.NoError(t, err)
	assert.Equal(t, models.TierVVIP, got.Tier)
	assert.Equal(t, models.StatusCheckedIn, got.Status)
	assert.Equal(t, 2, d.count(models.EffectWebhook, models.WebhookAppend))

	stored, err := store.GetTicketByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TierVVIP, stored.Tier)
	assert.NotNil(t, stored.CheckedInAt)
}

func TestRegister_FillTierThenSoldOut(t *testing.T) {
	svc, _, _ := setupService(t, nil)

	for i := 0; i < 10; i++ {
		_, err := register(t, svc, fmt.Sprintf("vip%d@x.com", i), models.TierVIP)
		require.NoError(t, err)
	}
	_, err := register(t, svc, "late@x.com", models.TierVIP)
	assert.ErrorIs(t, err, tickets.ErrCapacityExceeded)

	// other tiers are unaffected
	_, err = register(t, svc, "late@x.com", models.TierSuperVIP)
	assert.NoError(t, err)
}

func TestRetier_IgnoresCapacity(t *testing.T) {
	svc, store, _ := setupService(t, map[models.Tier]int{models.TierVVIP: 1})
	ctx := context.Background()

	_, err := register(t, svc, "first@x.com", models.TierVVIP)
	require.NoError(t, err)
	b, err := register(t, svc, "second@x.com", models.TierVIP)
	require.NoError(t, err)

	vvip := models.TierVVIP
	_, err = svc.ApplyTransition(ctx, b.ID, models.TransitionRequest{Tier: &vvip})
	require.NoError(t, err)

	n, err := store.CountByTier(ctx, models.TierVVIP)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCheckOut_ClearsCheckedInAt(t *testing.T) {
	svc, _, _ := setupService(t, nil)
	ctx := context.Background()

	a, err := register(t, svc, "undo@x.com", models.TierVIP)
	require.NoError(t, err)
	_, err = svc.CheckIn(ctx, a.ID)
	require.NoError(t, err)

	pending := models.StatusPending
	got, err := svc.ApplyTransition(ctx, a.ID, models.TransitionRequest{Status: &pending})
	require.NoError(t, err)
	assert.Nil(t, got.CheckedInAt)

	// a fresh check-in is allowed again after the correction
	_, err = svc.CheckIn(ctx, a.ID)
	assert.NoError(t, err)
}

func TestConcurrentRegistrations_NeverExceedLimit(t *testing.T) {
	svc, store, _ := setupService(t, map[models.Tier]int{models.TierVIP: 3})

	const attempts = 12
	var wg sync.WaitGroup
	var mu sync.Mutex
	results := map[error]int{}
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := register(t, svc, fmt.Sprintf("race%d@x.com", i), models.TierVIP)
			mu.Lock()
			results[err]++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 3, results[nil])
	assert.Equal(t, attempts-3, results[tickets.ErrCapacityExceeded])

	n, err := store.CountByTier(context.Background(), models.TierVIP)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestConcurrentCheckIns_ExactlyOneWins(t *testing.T) {
	svc, _, d := setupService(t, nil)

	a, err := register(t, svc, "door@x.com", models.TierSuperVIP)
	require.NoError(t, err)

	const scanners = 6
	var wg sync.WaitGroup
	var mu sync.Mutex
	results := map[error]int{}
	for i := 0; i < scanners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CheckIn(context.Background(), a.ID)
			mu.Lock()
			results[err]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, results[nil])
	assert.Equal(t, scanners-1, results[tickets.ErrAlreadyCheckedIn])
	assert.Equal(t, 1, d.count(models.EffectRealtime, ""))
	assert.Equal(t, 1, d.count(models.EffectWebhook, models.WebhookUpdate))
}

func TestStats_MatchListing(t *testing.T) {
	svc, store, _ := setupService(t, nil)
	ctx := context.Background()

	for i, tier := range []models.Tier{models.TierVIP, models.TierVIP, models.TierVVIP, models.TierSuperVIP} {
		ticket, err := register(t, svc, fmt.Sprintf("s%d@x.com", i), tier)
		require.NoError(t, err)
		if i == 0 {
			_, err = svc.CheckIn(ctx, ticket.ID)
			require.NoError(t, err)
		}
	}

	stats, list, err := svc.GetStats(ctx)
	require.NoError(t, err)

	all, err := store.ListTickets(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(all), stats.TotalRegistered)
	assert.Len(t, list, stats.TotalRegistered)
	assert.Equal(t, 1, stats.TotalCheckedIn)
	for _, tier := range models.AllTiers {
		n, err := store.CountByTier(ctx, tier)
		require.NoError(t, err)
		assert.Equal(t, n, stats.Tiers[tier].Count, string(tier))
	}

	avail, err := svc.TierAvailability(ctx)
	require.NoError(t, err)
	require.Len(t, avail, 3)
	assert.Equal(t, models.TierSuperVIP, avail[0].Tier)
	assert.Equal(t, 9, avail[0].Remaining)
}

func TestGetTicket_WithQRAndImage(t *testing.T) {
	svc, _, _ := setupService(t, nil)
	ctx := context.Background()

	a, err := register(t, svc, "qr@x.com", models.TierVIP)
	require.NoError(t, err)

	got, err := svc.GetTicket(ctx, a.ID)
	require.NoError(t, err)
	assert.Contains(t, got.QRCodeDataURL, "data:image/png;base64,")

	img, err := svc.GetPaymentImage(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://img.example.com/qr@x.com", img)

	_, err = svc.GetTicket(ctx, "NOPE")
	assert.ErrorIs(t, err, tickets.ErrTicketNotFound)
	_, err = svc.GetPaymentImage(ctx, "NOPE")
	assert.ErrorIs(t, err, tickets.ErrTicketNotFound)

	png, err := svc.QRCode(ctx, a.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, png)
}
