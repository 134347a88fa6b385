package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"rogerbox/internal/events"
	"rogerbox/internal/gateway/wompi"
	"rogerbox/internal/infra/testdb"
	"rogerbox/internal/models/db_models"
	"rogerbox/internal/repositories"
)

const (
	testIntegritySecret = "test_integrity_secret"
	testEventsSecret    = "test_events_secret"
)

type fakeGateway struct {
	TokenizeCardFunc          func(ctx context.Context, card wompi.CardDetails) (string, error)
	CreateAcceptanceTokenFunc func(ctx context.Context) (string, error)
	CreateTransactionFunc     func(ctx context.Context, req wompi.TransactionRequest) (*wompi.Transaction, error)
	GetTransactionFunc        func(ctx context.Context, id string) (*wompi.Transaction, error)

	mu       sync.Mutex
	requests []wompi.TransactionRequest
}

func (f *fakeGateway) TokenizeCard(ctx context.Context, card wompi.CardDetails) (string, error) {
	if f.TokenizeCardFunc != nil {
		return f.TokenizeCardFunc(ctx, card)
	}
	return "tok_test", nil
}

func (f *fakeGateway) CreateAcceptanceToken(ctx context.Context) (string, error) {
	if f.CreateAcceptanceTokenFunc != nil {
		return f.CreateAcceptanceTokenFunc(ctx)
	}
	return "acc_test", nil
}

func (f *fakeGateway) CreateTransaction(ctx context.Context, req wompi.TransactionRequest) (*wompi.Transaction, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.CreateTransactionFunc != nil {
		return f.CreateTransactionFunc(ctx, req)
	}
	return &wompi.Transaction{
		ID:            "tx_" + req.Reference,
		Reference:     req.Reference,
		Status:        wompi.StatusPending,
		AmountInCents: req.AmountInCents,
		Currency:      req.Currency,
		Raw:           []byte(`{"data":{"status":"PENDING"}}`),
	}, nil
}

func (f *fakeGateway) GetTransaction(ctx context.Context, id string) (*wompi.Transaction, error) {
	if f.GetTransactionFunc != nil {
		return f.GetTransactionFunc(ctx, id)
	}
	return &wompi.Transaction{ID: id, Status: wompi.StatusPending}, nil
}

func (f *fakeGateway) lastRequest() wompi.TransactionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type recordingPublisher struct {
	mu        sync.Mutex
	events    []events.PaymentEvent
	deadlines []time.Duration
	block     bool
}

// Publish records the event and the time left on ctx. With block set it
// waits for ctx to end, like a writer stuck on an unreachable broker.
func (p *recordingPublisher) Publish(ctx context.Context, ev events.PaymentEvent) error {
	p.mu.Lock()
	p.events = append(p.events, ev)
	if deadline, ok := ctx.Deadline(); ok {
		p.deadlines = append(p.deadlines, time.Until(deadline))
	}
	block := p.block
	p.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type recordingInvalidator struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (r *recordingInvalidator) InvalidateCourse(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
}

// harness wires the real repositories against an in-memory database.
type harness struct {
	db          *gorm.DB
	orders      repositories.OrderRepository
	gatewayTxs  repositories.GatewayTransactionRepository
	purchases   repositories.CoursePurchaseRepository
	courses     repositories.CourseRepository
	events      repositories.WebhookEventRepository
	publisher   *recordingPublisher
	invalidator *recordingInvalidator
	reconciler  Reconciler
	gateway     *fakeGateway
	signer      *wompi.Signer
	verifier    *wompi.WebhookVerifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testdb.New(t)

	signer, err := wompi.NewSigner(testIntegritySecret)
	require.NoError(t, err)
	verifier, err := wompi.NewWebhookVerifier(testEventsSecret)
	require.NoError(t, err)

	h := &harness{
		db:          db,
		orders:      repositories.NewOrderRepository(db),
		gatewayTxs:  repositories.NewGatewayTransactionRepository(db),
		purchases:   repositories.NewCoursePurchaseRepository(db),
		courses:     repositories.NewCourseRepository(db),
		events:      repositories.NewWebhookEventRepository(db),
		publisher:   &recordingPublisher{},
		invalidator: &recordingInvalidator{},
		gateway:     &fakeGateway{},
		signer:      signer,
		verifier:    verifier,
	}
	h.reconciler = NewReconciler(db, h.orders, h.gatewayTxs, h.purchases, h.courses, h.publisher, h.invalidator, zap.NewNop())
	return h
}

func (h *harness) paymentService(t *testing.T, cfg PaymentConfig) PaymentService {
	t.Helper()
	svc, err := NewPaymentService(h.courses, h.orders, h.gatewayTxs, h.purchases, h.reconciler, h.gateway, h.signer, cfg, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func (h *harness) webhookService(t *testing.T) WebhookService {
	t.Helper()
	svc, err := NewWebhookService(h.verifier, h.reconciler, h.events, h.gatewayTxs, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func (h *harness) seedCourse(t *testing.T, price int64, published bool) *db_models.Course {
	t.Helper()
	course := &db_models.Course{
		Title:       "Boxeo funcional",
		Slug:        "boxeo-" + uuid.NewString()[:8],
		Price:       decimal.NewFromInt(price),
		Currency:    "COP",
		IsPublished: published,
	}
	require.NoError(t, h.db.Create(course).Error)
	return course
}

func (h *harness) seedOrder(t *testing.T, reference string, course *db_models.Course, userID uuid.UUID) *db_models.Order {
	t.Helper()
	order := &db_models.Order{
		Reference:     reference,
		UserID:        userID,
		CourseID:      course.ID,
		CustomerEmail: "ana@example.com",
		Amount:        course.Price,
		Currency:      "COP",
		Status:        db_models.OrderStatusPending,
		PaymentMethod: PaymentMethodCard,
		ExpiresAt:     time.Now().UTC().Add(30 * time.Minute),
	}
	require.NoError(t, h.orders.Create(context.Background(), order))
	return order
}

func (h *harness) activeEntitlements(t *testing.T, userID, courseID uuid.UUID) int64 {
	t.Helper()
	n, err := h.purchases.CountActive(context.Background(), userID, courseID)
	require.NoError(t, err)
	return n
}

func (h *harness) order(t *testing.T, reference string) *db_models.Order {
	t.Helper()
	o, err := h.orders.FindByReference(context.Background(), reference)
	require.NoError(t, err)
	return o
}

func int64Ptr(v int64) *int64 { return &v }
