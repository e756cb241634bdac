package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutriplan/nutriplan-backend/internal/config"
	"github.com/nutriplan/nutriplan-backend/internal/membros"
	"github.com/nutriplan/nutriplan-backend/internal/models"
	"github.com/nutriplan/nutriplan-backend/internal/repository"
)

// memDietStore mirrors the conditional-update semantics of the SQL
// repository: attach-once, write-once response, bounded quota.
type memDietStore struct {
	mu      sync.Mutex
	records map[string]*models.DietRecord
}

func newMemDietStore() *memDietStore {
	return &memDietStore{records: map[string]*models.DietRecord{}}
}

func (m *memDietStore) clone(r *models.DietRecord) *models.DietRecord {
	c := *r
	return &c
}

func (m *memDietStore) Create(_ context.Context, diet *models.DietRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if diet.ID == "" {
		diet.ID = uuid.NewString()
	}
	if diet.PaymentOrderStatus == "" {
		diet.PaymentOrderStatus = models.PaymentPending
	}
	if diet.WorkflowStatus == "" {
		diet.WorkflowStatus = models.WorkflowPending
	}
	m.records[diet.ID] = m.clone(diet)
	return nil
}

func (m *memDietStore) FindByID(_ context.Context, id string) (*models.DietRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[id]; ok {
		return m.clone(r), nil
	}
	return nil, nil
}

func (m *memDietStore) FindByOrderID(_ context.Context, orderID string) (*models.DietRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.PaymentOrderID == orderID && !r.IsRegenerated {
			return m.clone(r), nil
		}
	}
	return nil, nil
}

func (m *memDietStore) FindByOrderAndUser(_ context.Context, orderID, userID string) (*models.DietRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.PaymentOrderID == orderID && r.UserID == userID && !r.IsRegenerated {
			return m.clone(r), nil
		}
	}
	return nil, nil
}

func (m *memDietStore) LatestByUser(_ context.Context, userID string) (*models.DietRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.DietRecord
	for _, r := range m.records {
		if r.UserID == userID {
			latest = r
		}
	}
	if latest == nil {
		return nil, nil
	}
	return m.clone(latest), nil
}

func (m *memDietStore) AttachOrder(_ context.Context, dietID string, order repository.OrderLink) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[dietID]
	if !ok || r.PaymentOrderID != "" {
		return false, nil
	}
	r.PaymentOrderID = order.OrderID
	r.PaymentOrderStatus = order.Status
	r.PixQRCode = order.PixQRCode
	r.PixQRCodeURL = order.PixQRCodeURL
	r.PixExpiresAt = order.PixExpiresAt
	r.AmountMinorUnits = order.AmountMinorUnits
	r.WorkflowStatus = models.WorkflowProcessing
	return true, nil
}

func (m *memDietStore) SetAIResponse(_ context.Context, dietID, response string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[dietID]
	if !ok || r.AIResponse != "" {
		return false, nil
	}
	r.AIResponse = response
	r.PaymentOrderStatus = models.PaymentPaid
	r.WorkflowStatus = models.WorkflowCompleted
	return true, nil
}

func (m *memDietStore) UpdatePaymentStatus(_ context.Context, dietID string, status models.PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[dietID]; ok {
		r.PaymentOrderStatus = status
	}
	return nil
}

func (m *memDietStore) UpdateWorkflowStatus(_ context.Context, dietID string, status models.WorkflowStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[dietID]; ok {
		r.WorkflowStatus = status
	}
	return nil
}

func (m *memDietStore) IncrementRegenerationCount(_ context.Context, dietID string, limit int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[dietID]
	if !ok || r.RegenerationCount >= limit {
		return false, nil
	}
	r.RegenerationCount++
	return true, nil
}

func (m *memDietStore) SetArchiveURL(_ context.Context, dietID, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[dietID]; ok {
		r.ArchiveURL = url
	}
	return nil
}

// fakeGateway scripts order creation and lookups.
type fakeGateway struct {
	mu          sync.Mutex
	createCalls int
	getCalls    int
	orderStatus string
	getErr      error
	createErr   error
}

func (g *fakeGateway) CreateOrder(_ context.Context, _ membros.CreateOrderRequest) (*membros.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCalls++
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &membros.Order{
		ID:          fmt.Sprintf("ord_%d", g.createCalls),
		Status:      "pending",
		TotalAmount: 2999,
		Payments: []membros.OrderPayment{{
			Status:       "pending",
			PixQRCode:    "qr-payload",
			PixQRCodeURL: "https://pix.example/qr.png",
			PixExpiresAt: "2026-01-01T00:00:00Z",
		}},
	}, nil
}

func (g *fakeGateway) GetOrder(_ context.Context, orderID string) (*membros.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.getCalls++
	if g.getErr != nil {
		return nil, g.getErr
	}
	return &membros.Order{ID: orderID, Status: g.orderStatus, TotalAmount: 2999}, nil
}

// fakeGenerator counts invocations and returns a fixed plan.
type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (g *fakeGenerator) Generate(_ context.Context, _ string, _ GenerationParams) (string, *models.StructuredDiet, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return "", nil, g.err
	}
	return fmt.Sprintf(`{"plan":"generated-%d"}`, g.calls), &models.StructuredDiet{}, nil
}

// disconnectingGenerator simulates the triggering client going away
// mid-generation: it cancels the request context as its first action
// and records whether that cancellation reached the backend call.
type disconnectingGenerator struct {
	cancel      context.CancelFunc
	observedErr error
}

func (g *disconnectingGenerator) Generate(ctx context.Context, _ string, _ GenerationParams) (string, *models.StructuredDiet, error) {
	g.cancel()
	g.observedErr = ctx.Err()
	return `{"plan":"generated-after-disconnect"}`, &models.StructuredDiet{}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []string
}

func (n *recordingNotifier) Alert(_ context.Context, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, text)
}

func testUser() *models.User {
	return &models.User{
		ID:           "user-1",
		Name:         "Maria Silva",
		Email:        "maria@example.com",
		CPF:          "123.456.789-00",
		PhoneNumber:  "+55 (11) 98765-4321",
		Weight:       82,
		Height:       178,
		Age:          28,
		Goal:         models.GoalGainMuscle,
		DailyCalories: 3000,
		Gender:       models.GenderMale,
		MealSchedule: "06:00-09:00-12:00-15:00-19:00",
		ActivityLevel: models.ActivityModerate,
		TrainingPlan: models.TrainingGym,
		TrainingFreq: models.Frequency3to5,
		ActivityType: models.ActivityTypeWeights,
		Breakfast:    []string{"ovos"},
		Lunch:        []string{"arroz", "frango"},
		Dinner:       []string{"carne"},
	}
}

func testCheckout(store DietStore, gateway PaymentGateway, generator Generator, notifier Notifier) *CheckoutService {
	cfg := config.Config{
		PlanDescription:      "Plano Nutricional Personalizado",
		PlanAmountMinorUnits: 2999,
		RegenerationLimit:    1,
	}
	return NewCheckoutService(cfg, testLogger(), store, gateway, generator, notifier, nil)
}

func TestEnsureCheckoutCreatesOrderOnce(t *testing.T) {
	ctx := context.Background()
	store := newMemDietStore()
	gateway := &fakeGateway{orderStatus: "pending"}
	svc := testCheckout(store, gateway, &fakeGenerator{}, nil)
	user := testUser()

	record, err := svc.StartDietRequest(ctx, user)
	require.NoError(t, err)
	require.NotEmpty(t, record.Prompt)

	first, err := svc.EnsureCheckout(ctx, user, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "ord_1", first.OrderID)
	assert.Equal(t, "qr-payload", first.PixQRCode)
	assert.Equal(t, 2999, first.AmountMinorUnits)

	// Re-entry does not create a second gateway order.
	second, err := svc.EnsureCheckout(ctx, user, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "ord_1", second.OrderID)
	assert.Equal(t, 1, gateway.createCalls)
}

func TestEnsureCheckoutGatewayDownOnReentry(t *testing.T) {
	ctx := context.Background()
	store := newMemDietStore()
	gateway := &fakeGateway{orderStatus: "pending"}
	svc := testCheckout(store, gateway, &fakeGenerator{}, nil)
	user := testUser()

	record, err := svc.StartDietRequest(ctx, user)
	require.NoError(t, err)
	_, err = svc.EnsureCheckout(ctx, user, record.ID)
	require.NoError(t, err)

	gateway.getErr = errors.New("gateway down")
	result, err := svc.EnsureCheckout(ctx, user, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "ord_1", result.OrderID)
	assert.Equal(t, "qr-payload", result.PixQRCode)
	assert.NotEmpty(t, result.Message)
}

func TestEnsureCheckoutGatewayDownOnCreate(t *testing.T) {
	ctx := context.Background()
	store := newMemDietStore()
	gateway := &fakeGateway{createErr: errors.New("gateway down")}
	svc := testCheckout(store, gateway, &fakeGenerator{}, nil)
	user := testUser()

	record, err := svc.StartDietRequest(ctx, user)
	require.NoError(t, err)

	_, err = svc.EnsureCheckout(ctx, user, record.ID)
	require.ErrorIs(t, err, ErrGatewayUnavailable)

	// No order attached; the next attempt can create one.
	fresh, err := store.FindByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Empty(t, fresh.PaymentOrderID)
}

func TestCheckStatusTriggersGenerationWhenPaid(t *testing.T) {
	ctx := context.Background()
	store := newMemDietStore()
	gateway := &fakeGateway{orderStatus: "pending"}
	generator := &fakeGenerator{}
	svc := testCheckout(store, gateway, generator, nil)
	user := testUser()

	record, err := svc.StartDietRequest(ctx, user)
	require.NoError(t, err)
	checkout, err := svc.EnsureCheckout(ctx, user, record.ID)
	require.NoError(t, err)

	// Still pending: no generation.
	result, err := svc.CheckStatus(ctx, user, checkout.OrderID)
	require.NoError(t, err)
	assert.False(t, result.Paid)
	assert.Equal(t, 0, generator.calls)

	// Payment lands: the poll generates and returns content.
	gateway.orderStatus = "paid"
	result, err = svc.CheckStatus(ctx, user, checkout.OrderID)
	require.NoError(t, err)
	assert.True(t, result.Ready)
	assert.Contains(t, result.AIResponse, "generated-1")
	assert.Equal(t, 1, generator.calls)

	// Subsequent polls serve the stored plan without regenerating.
	result, err = svc.CheckStatus(ctx, user, checkout.OrderID)
	require.NoError(t, err)
	assert.True(t, result.Ready)
	assert.Equal(t, 1, generator.calls)
}

func TestCheckStatusConcurrentPollsGenerateOnce(t *testing.T) {
	ctx := context.Background()
	store := newMemDietStore()
	gateway := &fakeGateway{orderStatus: "paid"}
	generator := &fakeGenerator{}
	svc := testCheckout(store, gateway, generator, nil)
	user := testUser()

	record, err := svc.StartDietRequest(ctx, user)
	require.NoError(t, err)
	checkout, err := svc.EnsureCheckout(ctx, user, record.ID)
	require.NoError(t, err)

	const pollers = 8
	var wg sync.WaitGroup
	responses := make([]string, pollers)
	for i := 0; i < pollers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := svc.CheckStatus(ctx, user, checkout.OrderID)
			if err == nil && result.Ready {
				responses[i] = result.AIResponse
			}
		}(i)
	}
	wg.Wait()

	// Several generations may run, but exactly one is persisted and
	// every poller sees that one.
	fresh, err := store.FindByID(ctx, record.ID)
	require.NoError(t, err)
	require.True(t, fresh.HasAIResponse())
	for i := 0; i < pollers; i++ {
		assert.Equal(t, fresh.AIResponse, responses[i], "poller %d", i)
	}
}

func TestCheckStatusClientDisconnectDoesNotAbortGeneration(t *testing.T) {
	ctx := context.Background()
	store := newMemDietStore()
	gateway := &fakeGateway{orderStatus: "paid"}
	generator := &disconnectingGenerator{}
	svc := testCheckout(store, gateway, generator, nil)
	user := testUser()

	record, err := svc.StartDietRequest(ctx, user)
	require.NoError(t, err)
	checkout, err := svc.EnsureCheckout(ctx, user, record.ID)
	require.NoError(t, err)

	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	generator.cancel = cancel

	result, err := svc.CheckStatus(pollCtx, user, checkout.OrderID)
	require.NoError(t, err)
	assert.True(t, result.Ready)

	// The backend call never saw the poll's cancellation, and the
	// result was persisted despite the disconnect.
	assert.NoError(t, generator.observedErr)
	fresh, err := store.FindByID(ctx, record.ID)
	require.NoError(t, err)
	require.True(t, fresh.HasAIResponse())
	assert.Contains(t, fresh.AIResponse, "generated-after-disconnect")
}

func TestRegenerateClientDisconnectDoesNotAbortGeneration(t *testing.T) {
	ctx := context.Background()
	store := newMemDietStore()
	gateway := &fakeGateway{orderStatus: "paid"}
	svc := testCheckout(store, gateway, &fakeGenerator{}, nil)
	user := testUser()

	record, err := svc.StartDietRequest(ctx, user)
	require.NoError(t, err)
	checkout, err := svc.EnsureCheckout(ctx, user, record.ID)
	require.NoError(t, err)
	_, err = svc.CheckStatus(ctx, user, checkout.OrderID)
	require.NoError(t, err)

	generator := &disconnectingGenerator{}
	svc = testCheckout(store, gateway, generator, nil)

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	generator.cancel = cancel

	regenerated, err := svc.Regenerate(reqCtx, user, record.ID, "menos arroz")
	require.NoError(t, err)
	assert.NoError(t, generator.observedErr)
	assert.True(t, regenerated.HasAIResponse())

	fresh, err := store.FindByID(ctx, regenerated.ID)
	require.NoError(t, err)
	require.NotNil(t, fresh)
	assert.Contains(t, fresh.AIResponse, "generated-after-disconnect")
}

func TestCheckStatusGatewayDownKeepsLocalState(t *testing.T) {
	ctx := context.Background()
	store := newMemDietStore()
	gateway := &fakeGateway{orderStatus: "pending"}
	generator := &fakeGenerator{}
	svc := testCheckout(store, gateway, generator, nil)
	user := testUser()

	record, err := svc.StartDietRequest(ctx, user)
	require.NoError(t, err)
	checkout, err := svc.EnsureCheckout(ctx, user, record.ID)
	require.NoError(t, err)

	gateway.getErr = errors.New("timeout")
	result, err := svc.CheckStatus(ctx, user, checkout.OrderID)
	require.NoError(t, err)
	assert.False(t, result.Paid)
	assert.Equal(t, models.PaymentPending, result.Status)
	assert.Equal(t, 0, generator.calls)
}

func TestCheckStatusFailedPayment(t *testing.T) {
	ctx := context.Background()
	store := newMemDietStore()
	gateway := &fakeGateway{orderStatus: "pending"}
	svc := testCheckout(store, gateway, &fakeGenerator{}, nil)
	user := testUser()

	record, err := svc.StartDietRequest(ctx, user)
	require.NoError(t, err)
	checkout, err := svc.EnsureCheckout(ctx, user, record.ID)
	require.NoError(t, err)

	gateway.orderStatus = "failed"
	result, err := svc.CheckStatus(ctx, user, checkout.OrderID)
	require.NoError(t, err)
	assert.False(t, result.Paid)
	assert.Equal(t, models.PaymentFailed, result.Status)

	fresh, err := store.FindByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, fresh.PaymentOrderStatus)
}

func TestCheckStatusOwnerIsolation(t *testing.T) {
	ctx := context.Background()
	store := newMemDietStore()
	gateway := &fakeGateway{orderStatus: "paid"}
	svc := testCheckout(store, gateway, &fakeGenerator{}, nil)
	owner := testUser()

	record, err := svc.StartDietRequest(ctx, owner)
	require.NoError(t, err)
	checkout, err := svc.EnsureCheckout(ctx, owner, record.ID)
	require.NoError(t, err)

	other := testUser()
	other.ID = "user-2"
	_, err = svc.CheckStatus(ctx, other, checkout.OrderID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGenerationFailureAlertsOperator(t *testing.T) {
	ctx := context.Background()
	store := newMemDietStore()
	gateway := &fakeGateway{orderStatus: "paid"}
	generator := &fakeGenerator{err: errors.New("model unavailable")}
	notifier := &recordingNotifier{}
	svc := testCheckout(store, gateway, generator, notifier)
	user := testUser()

	record, err := svc.StartDietRequest(ctx, user)
	require.NoError(t, err)
	checkout, err := svc.EnsureCheckout(ctx, user, record.ID)
	require.NoError(t, err)

	result, err := svc.CheckStatus(ctx, user, checkout.OrderID)
	require.NoError(t, err)
	assert.True(t, result.Paid)
	assert.True(t, result.Processing)
	assert.False(t, result.Ready)
	require.Len(t, notifier.alerts, 1)
	assert.Contains(t, notifier.alerts[0], checkout.OrderID)
}

func TestRegenerateRequiresPayment(t *testing.T) {
	ctx := context.Background()
	store := newMemDietStore()
	svc := testCheckout(store, &fakeGateway{orderStatus: "pending"}, &fakeGenerator{}, nil)
	user := testUser()

	record, err := svc.StartDietRequest(ctx, user)
	require.NoError(t, err)

	_, err = svc.Regenerate(ctx, user, record.ID, "menos arroz")
	assert.ErrorIs(t, err, ErrNotPaid)
}

func TestRegenerateCreatesLinkedRecord(t *testing.T) {
	ctx := context.Background()
	store := newMemDietStore()
	gateway := &fakeGateway{orderStatus: "paid"}
	generator := &fakeGenerator{}
	svc := testCheckout(store, gateway, generator, nil)
	user := testUser()

	record, err := svc.StartDietRequest(ctx, user)
	require.NoError(t, err)
	checkout, err := svc.EnsureCheckout(ctx, user, record.ID)
	require.NoError(t, err)
	_, err = svc.CheckStatus(ctx, user, checkout.OrderID)
	require.NoError(t, err)

	regenerated, err := svc.Regenerate(ctx, user, record.ID, "menos arroz, mais batata doce")
	require.NoError(t, err)

	assert.True(t, regenerated.IsRegenerated)
	assert.Equal(t, record.ID, regenerated.OriginalDietID)
	assert.Equal(t, checkout.OrderID, regenerated.PaymentOrderID)
	assert.True(t, regenerated.HasAIResponse())
	assert.Equal(t, "menos arroz, mais batata doce", regenerated.RegenerationFeedback)

	// The root record keeps its original plan and carries the quota.
	root, err := store.FindByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, root.RegenerationCount)
	assert.NotEqual(t, root.AIResponse, regenerated.AIResponse)
}

func TestRegenerateQuotaExhausted(t *testing.T) {
	ctx := context.Background()
	store := newMemDietStore()
	gateway := &fakeGateway{orderStatus: "paid"}
	generator := &fakeGenerator{}
	svc := testCheckout(store, gateway, generator, nil)
	user := testUser()

	record, err := svc.StartDietRequest(ctx, user)
	require.NoError(t, err)
	checkout, err := svc.EnsureCheckout(ctx, user, record.ID)
	require.NoError(t, err)
	_, err = svc.CheckStatus(ctx, user, checkout.OrderID)
	require.NoError(t, err)

	first, err := svc.Regenerate(ctx, user, record.ID, "menos arroz")
	require.NoError(t, err)

	// Quota lives on the root, so a second attempt is rejected both on
	// the root and on the regenerated copy.
	_, err = svc.Regenerate(ctx, user, record.ID, "mais frango")
	assert.ErrorIs(t, err, ErrRegenerationQuota)
	_, err = svc.Regenerate(ctx, user, first.ID, "mais frango")
	assert.ErrorIs(t, err, ErrRegenerationQuota)

	root, err := store.FindByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, root.RegenerationCount)
}

func TestHandlePaidOrderIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemDietStore()
	gateway := &fakeGateway{orderStatus: "paid"}
	generator := &fakeGenerator{}
	svc := testCheckout(store, gateway, generator, nil)
	user := testUser()

	record, err := svc.StartDietRequest(ctx, user)
	require.NoError(t, err)
	checkout, err := svc.EnsureCheckout(ctx, user, record.ID)
	require.NoError(t, err)

	_, err = svc.HandlePaidOrder(ctx, checkout.OrderID)
	require.NoError(t, err)
	assert.Equal(t, 1, generator.calls)

	// Redelivery of the same webhook does not regenerate.
	msg, err := svc.HandlePaidOrder(ctx, checkout.OrderID)
	require.NoError(t, err)
	assert.Contains(t, msg, "já gerado")
	assert.Equal(t, 1, generator.calls)
}

func TestHandlePaidOrderUnknownOrder(t *testing.T) {
	svc := testCheckout(newMemDietStore(), &fakeGateway{}, &fakeGenerator{}, nil)
	_, err := svc.HandlePaidOrder(context.Background(), "ord_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
