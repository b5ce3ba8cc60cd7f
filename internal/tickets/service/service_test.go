package tickets_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"onfa-ticketing/internal/models"
	ticketdb "onfa-ticketing/internal/tickets/db"
	tickets "onfa-ticketing/internal/tickets/service"
)

// MockTicketDBLayer is a mock implementation of the TicketDBLayer interface
type MockTicketDBLayer struct {
	mock.Mock
}

func (m *MockTicketDBLayer) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// hand out a copy so the service cannot mutate the fixture
	t := *args.Get(0).(*models.Ticket)
	return &t, args.Error(1)
}

func (m *MockTicketDBLayer) GetTicketByEmail(ctx context.Context, email string) (*models.Ticket, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}

func (m *MockTicketDBLayer) CountByTier(ctx context.Context, tier models.Tier) (int, error) {
	args := m.Called(ctx, tier)
	return args.Int(0), args.Error(1)
}

func (m *MockTicketDBLayer) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	args := m.Called(ctx, ticket)
	return args.Error(0)
}

func (m *MockTicketDBLayer) UpdateTicketState(ctx context.Context, expected models.TicketState, next *models.Ticket) (bool, error) {
	args := m.Called(ctx, expected, next)
	return args.Bool(0), args.Error(1)
}

func (m *MockTicketDBLayer) ListTickets(ctx context.Context) ([]models.Ticket, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Ticket), args.Error(1)
}

func (m *MockTicketDBLayer) GetPaymentImage(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func validRequest() models.RegistrationRequest {
	return models.RegistrationRequest{
		Name:         "Jane Doe",
		Email:        "  Jane@Example.com ",
		Phone:        "0900000000",
		DOB:          "1990-01-01",
		Tier:         models.TierVIP,
		PaymentImage: "data:image/png;base64,AAAA",
	}
}

func newMockService(mockDB *MockTicketDBLayer, d tickets.Dispatcher) *tickets.TicketService {
	return tickets.NewTicketService(mockDB, nil, d, nil, tickets.Options{})
}

func TestRegister_Success(t *testing.T) {
	mockDB := new(MockTicketDBLayer)
	svc := newMockService(mockDB, &recordingDispatcher{})

	mockDB.On("CountByTier", mock.Anything, models.TierVIP).Return(0, nil)
	mockDB.On("GetTicketByEmail", mock.Anything, "jane@example.com").Return(nil, ticketdb.ErrNotFound)
	mockDB.On("CreateTicket", mock.Anything, mock.MatchedBy(func(t *models.Ticket) bool {
		return t.Email == "jane@example.com" && t.Status == models.StatusPending && t.Tier == models.TierVIP
	})).Return(nil)

	ticket, err := svc.Register(context.Background(), validRequest())

	require.NoError(t, err)
	assert.Regexp(t, `^ONFA\d{6}[0-9A-F]{4}$`, ticket.ID)
	assert.Equal(t, models.StatusPending, ticket.Status)
	assert.False(t, ticket.RegisteredAt.IsZero())
	mockDB.AssertExpectations(t)
}

func TestRegister_Validation(t *testing.T) {
	mockDB := new(MockTicketDBLayer)
	svc := newMockService(mockDB, nil)

	req := validRequest()
	req.Phone = " "
	_, err := svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, tickets.ErrMissingField)
	assert.Contains(t, err.Error(), "phone")

	req = validRequest()
	req.Tier = ""
	_, err = svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, tickets.ErrInvalidTier)

	req = validRequest()
	req.Tier = "platinum"
	_, err = svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, tickets.ErrInvalidTier)

	mockDB.AssertNotCalled(t, "CountByTier", mock.Anything, mock.Anything)
}

func TestRegister_CapacityExceeded(t *testing.T) {
	mockDB := new(MockTicketDBLayer)
	svc := newMockService(mockDB, nil)

	mockDB.On("CountByTier", mock.Anything, models.TierVIP).Return(10, nil)

	_, err := svc.Register(context.Background(), validRequest())
	assert.ErrorIs(t, err, tickets.ErrCapacityExceeded)
	mockDB.AssertNotCalled(t, "CreateTicket", mock.Anything, mock.Anything)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	mockDB := new(MockTicketDBLayer)
	svc := newMockService(mockDB, nil)

	mockDB.On("CountByTier", mock.Anything, models.TierVIP).Return(1, nil)
	mockDB.On("GetTicketByEmail", mock.Anything, "jane@example.com").Return(&models.Ticket{ID: "OTHER"}, nil)

	_, err := svc.Register(context.Background(), validRequest())
	assert.ErrorIs(t, err, tickets.ErrDuplicateEmail)
	mockDB.AssertNotCalled(t, "CreateTicket", mock.Anything, mock.Anything)
}

func TestRegister_UniqueViolationOnInsertIsDuplicateEmail(t *testing.T) {
	mockDB := new(MockTicketDBLayer)
	svc := newMockService(mockDB, nil)

	mockDB.On("CountByTier", mock.Anything, models.TierVIP).Return(1, nil)
	mockDB.On("GetTicketByEmail", mock.Anything, "jane@example.com").Return(nil, ticketdb.ErrNotFound).Once()
	mockDB.On("CreateTicket", mock.Anything, mock.Anything).Return(ticketdb.ErrDuplicate).Once()
	mockDB.On("GetTicketByEmail", mock.Anything, "jane@example.com").Return(&models.Ticket{ID: "RACE"}, nil).Once()

	_, err := svc.Register(context.Background(), validRequest())
	assert.ErrorIs(t, err, tickets.ErrDuplicateEmail)
	mockDB.AssertExpectations(t)
}

func TestRegister_PersistenceFailure(t *testing.T) {
	mockDB := new(MockTicketDBLayer)
	svc := newMockService(mockDB, nil)

	mockDB.On("CountByTier", mock.Anything, models.TierVIP).Return(0, errors.New("connection refused"))

	_, err := svc.Register(context.Background(), validRequest())
	assert.ErrorIs(t, err, tickets.ErrPersistence)
}

type blockingLocker struct{}

func (blockingLocker) Acquire(ctx context.Context, _ models.Tier) (func(), error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRegister_LockTimeoutIsBusy(t *testing.T) {
	mockDB := new(MockTicketDBLayer)
	svc := tickets.NewTicketService(mockDB, blockingLocker{}, nil, nil, tickets.Options{LockWait: 20 * time.Millisecond})

	_, err := svc.Register(context.Background(), validRequest())
	assert.ErrorIs(t, err, tickets.ErrRegistrationBusy)
}

func TestApplyTransition_Validation(t *testing.T) {
	mockDB := new(MockTicketDBLayer)
	svc := newMockService(mockDB, nil)
	ctx := context.Background()

	_, err := svc.ApplyTransition(ctx, "ANY", models.TransitionRequest{})
	assert.ErrorIs(t, err, tickets.ErrMissingField)

	bad := models.Status("LOST")
	_, err = svc.ApplyTransition(ctx, "ANY", models.TransitionRequest{Status: &bad})
	assert.ErrorIs(t, err, tickets.ErrInvalidStatus)

	badTier := models.Tier("gold")
	_, err = svc.ApplyTransition(ctx, "ANY", models.TransitionRequest{Tier: &badTier})
	assert.ErrorIs(t, err, tickets.ErrInvalidTier)

	mockDB.On("GetTicketByID", mock.Anything, "MISSING").Return(nil, ticketdb.ErrNotFound)
	paid := models.StatusPaid
	_, err = svc.ApplyTransition(ctx, "MISSING", models.TransitionRequest{Status: &paid})
	assert.ErrorIs(t, err, tickets.ErrTicketNotFound)
}

func TestApplyTransition_RetriesAfterLostRace(t *testing.T) {
	mockDB := new(MockTicketDBLayer)
	d := &recordingDispatcher{}
	svc := newMockService(mockDB, d)

	pending := &models.Ticket{ID: "T1", Email: "a@x.com", Tier: models.TierVIP, Status: models.StatusPending}
	paidTicket := &models.Ticket{ID: "T1", Email: "a@x.com", Tier: models.TierVIP, Status: models.StatusPaid}

	// first read sees PENDING, the CAS loses to a concurrent PAID write,
	// the re-read sees PAID and the request becomes a no-op
	mockDB.On("GetTicketByID", mock.Anything, "T1").Return(pending, nil).Once()
	mockDB.On("UpdateTicketState", mock.Anything, pending.State(), mock.Anything).Return(false, nil).Once()
	mockDB.On("GetTicketByID", mock.Anything, "T1").Return(paidTicket, nil).Once()

	paid := models.StatusPaid
	got, err := svc.ApplyTransition(context.Background(), "T1", models.TransitionRequest{Status: &paid})

	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, got.Status)
	assert.Empty(t, d.calls(), "the losing request must not dispatch")
	mockDB.AssertExpectations(t)
}

func TestApplyTransition_GivesUpAfterRepeatedConflicts(t *testing.T) {
	mockDB := new(MockTicketDBLayer)
	svc := newMockService(mockDB, &recordingDispatcher{})

	pending := &models.Ticket{ID: "T2", Tier: models.TierVIP, Status: models.StatusPending}
	mockDB.On("GetTicketByID", mock.Anything, "T2").Return(pending, nil)
	mockDB.On("UpdateTicketState", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)

	paid := models.StatusPaid
	_, err := svc.ApplyTransition(context.Background(), "T2", models.TransitionRequest{Status: &paid})
	assert.ErrorIs(t, err, tickets.ErrConcurrentUpdate)
	mockDB.AssertNumberOfCalls(t, "UpdateTicketState", 3)
}

func TestApplyTransition_PersistenceFailure(t *testing.T) {
	mockDB := new(MockTicketDBLayer)
	d := &recordingDispatcher{}
	svc := newMockService(mockDB, d)

	pending := &models.Ticket{ID: "T3", Tier: models.TierVIP, Status: models.StatusPending}
	mockDB.On("GetTicketByID", mock.Anything, "T3").Return(pending, nil)
	mockDB.On("UpdateTicketState", mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("disk full"))

	paid := models.StatusPaid
	_, err := svc.ApplyTransition(context.Background(), "T3", models.TransitionRequest{Status: &paid})
	assert.ErrorIs(t, err, tickets.ErrPersistence)
	assert.Empty(t, d.calls())
}

func TestPlanEffects(t *testing.T) {
	base := models.Ticket{ID: "P", Tier: models.TierVIP, Status: models.StatusPending}
	with := func(status models.Status, tier models.Tier) models.Ticket {
		t := base
		t.Status = status
		t.Tier = tier
		return t
	}
	email := models.Effect{Kind: models.EffectEmail}
	appendHook := models.Effect{Kind: models.EffectWebhook, Action: models.WebhookAppend}
	updateHook := models.Effect{Kind: models.EffectWebhook, Action: models.WebhookUpdate}
	realtime := models.Effect{Kind: models.EffectRealtime}
	audit := models.Effect{Kind: models.EffectAudit}

	tests := []struct {
		name   string
		before models.Ticket
		after  models.Ticket
		want   []models.Effect
	}{
		{"to paid", base, with(models.StatusPaid, models.TierVIP), []models.Effect{email, appendHook, audit}},
		{"to checked in", with(models.StatusPaid, models.TierVIP), with(models.StatusCheckedIn, models.TierVIP), []models.Effect{updateHook, realtime, audit}},
		{"to cancelled", base, with(models.StatusCancelled, models.TierVIP), []models.Effect{appendHook, audit}},
		{"back to pending", with(models.StatusCheckedIn, models.TierVIP), base, []models.Effect{appendHook, audit}},
		{"tier only", base, with(models.StatusPending, models.TierVVIP), []models.Effect{appendHook, audit}},
		{"paid and re-tiered", base, with(models.StatusPaid, models.TierSuperVIP), []models.Effect{email, appendHook, audit}},
		{"no change", base, base, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tickets.PlanEffects(tt.before, tt.after))
		})
	}
}

func TestGetStats_FromSnapshot(t *testing.T) {
	mockDB := new(MockTicketDBLayer)
	svc := tickets.NewTicketService(mockDB, nil, nil, nil, tickets.Options{
		Limits: map[models.Tier]int{models.TierVVIP: 2},
	})

	list := []models.Ticket{
		{ID: "1", Tier: models.TierVVIP, Status: models.StatusCheckedIn},
		{ID: "2", Tier: models.TierVVIP, Status: models.StatusCancelled},
		{ID: "3", Tier: models.TierVVIP, Status: models.StatusPaid},
		{ID: "4", Tier: models.TierVIP, Status: models.StatusPending},
	}
	mockDB.On("ListTickets", mock.Anything).Return(list, nil).Once()

	stats, got, err := svc.GetStats(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 4)
	assert.Equal(t, 4, stats.TotalRegistered)
	assert.Equal(t, 1, stats.TotalCheckedIn)

	vvip := stats.Tiers[models.TierVVIP]
	assert.Equal(t, 3, vvip.Count)
	assert.Equal(t, 2, vvip.Limit)
	assert.Equal(t, 0, vvip.Remaining, "remaining never goes negative")
	assert.Equal(t, "VIP", vvip.Label)

	assert.Equal(t, models.TierInfo{Tier: models.TierVIP, Label: "Superior", Count: 1, Limit: 10, Remaining: 9}, stats.Tiers[models.TierVIP])
	assert.Equal(t, 10, stats.Tiers[models.TierSuperVIP].Remaining)
	assert.Equal(t, 1, stats.ByStatus[models.StatusCancelled])
	assert.Equal(t, 1, stats.ByStatus[models.StatusPending])
	mockDB.AssertExpectations(t)
}

func TestLimitsFromConfig(t *testing.T) {
	limits := tickets.LimitsFromConfig(map[string]int{"supervip": 3, "vvip": 2, "bogus": 9})
	assert.Equal(t, map[models.Tier]int{models.TierSuperVIP: 3, models.TierVVIP: 2}, limits)
}

func TestNewTicketID_Unique(t *testing.T) {
	svc := newMockService(new(MockTicketDBLayer), nil)
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id := svc.NewTicketID()
		assert.Len(t, id, len("ONFA")+6+4)
		seen[id] = true
	}
	assert.Greater(t, len(seen), 190)
}
