package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"rogerbox/internal/events"
	"rogerbox/internal/gateway/wompi"
	"rogerbox/internal/models/db_models"
	"rogerbox/internal/repositories"
)

type ReconcileSource string

const (
	SourceCheckout ReconcileSource = "checkout"
	SourceWebhook  ReconcileSource = "webhook"
	SourceReplay   ReconcileSource = "replay"
)

// ReconcileUpdate is one status report for an order, from the synchronous
// gateway response or from a webhook delivery.
type ReconcileUpdate struct {
	Reference         string
	TransactionID     string
	Status            wompi.TransactionStatus
	StatusMessage     string
	PaymentMethodType string
	// AmountInCents is nil when the report does not carry an amount.
	AmountInCents *int64
	FinalizedAt   *time.Time
	RawPayload    datatypes.JSON
	Source        ReconcileSource
}

type ReconcileResult struct {
	OrderID            uuid.UUID
	PreviousStatus     db_models.OrderStatus
	Status             db_models.OrderStatus
	Transitioned       bool
	EntitlementCreated bool
	AmountMismatch     bool
	// Ignored is set for unknown statuses and reports for settled orders.
	Ignored bool
}

type Reconciler interface {
	Reconcile(ctx context.Context, update ReconcileUpdate) (*ReconcileResult, error)
}

// CourseCacheInvalidator drops cached catalog data for a course.
type CourseCacheInvalidator interface {
	InvalidateCourse(courseID uuid.UUID)
}

type reconciler struct {
	db         *gorm.DB
	orders     repositories.OrderRepository
	gatewayTxs repositories.GatewayTransactionRepository
	purchases  repositories.CoursePurchaseRepository
	courses    repositories.CourseRepository
	publisher  events.Publisher
	catalog    CourseCacheInvalidator
	logger     *zap.Logger
	now        func() time.Time

	publishTimeout time.Duration
}

func NewReconciler(
	db *gorm.DB,
	orders repositories.OrderRepository,
	gatewayTxs repositories.GatewayTransactionRepository,
	purchases repositories.CoursePurchaseRepository,
	courses repositories.CourseRepository,
	publisher events.Publisher,
	catalog CourseCacheInvalidator,
	logger *zap.Logger,
) Reconciler {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &reconciler{
		db:         db,
		orders:     orders,
		gatewayTxs: gatewayTxs,
		purchases:  purchases,
		courses:    courses,
		publisher:  publisher,
		catalog:    catalog,
		logger:     logger.With(zap.String("component", "reconciler")),
		now:        func() time.Time { return time.Now().UTC() },

		publishTimeout: defaultPublishTimeout,
	}
}

// defaultPublishTimeout bounds how long a reconciliation waits on the event bus.
const defaultPublishTimeout = 2 * time.Second

var orderStatusFor = map[wompi.TransactionStatus]db_models.OrderStatus{
	wompi.StatusApproved: db_models.OrderStatusApproved,
	wompi.StatusDeclined: db_models.OrderStatusDeclined,
	wompi.StatusVoided:   db_models.OrderStatusVoided,
	wompi.StatusError:    db_models.OrderStatusError,
}

// Reconcile applies one status report. The order row is locked for the
// duration, so the checkout path and the webhook path serialise on it.
func (r *reconciler) Reconcile(ctx context.Context, u ReconcileUpdate) (*ReconcileResult, error) {
	if u.Reference == "" {
		return nil, errors.New("reconcile: empty reference")
	}
	log := r.logger.With(
		zap.String("reference", u.Reference),
		zap.String("status", u.Status.String()),
		zap.String("source", string(u.Source)),
	)

	res := &ReconcileResult{}
	var order db_models.Order

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := r.orders.WithTx(tx)
		gatewayTxs := r.gatewayTxs.WithTx(tx)
		purchases := r.purchases.WithTx(tx)

		locked, err := orders.FindByReferenceForUpdate(ctx, u.Reference)
		if err != nil {
			return err
		}
		order = *locked
		res.OrderID = order.ID
		res.PreviousStatus = order.Status
		res.Status = order.Status

		expected := wompi.AmountInCents(order.Amount)
		res.AmountMismatch = u.AmountInCents != nil && *u.AmountInCents != expected

		if err := r.recordAudit(ctx, gatewayTxs, &order, u, res.AmountMismatch); err != nil {
			return err
		}
		if u.TransactionID != "" && order.GatewayTransactionID == nil {
			if err := orders.AttachGatewayTransaction(ctx, order.ID, u.TransactionID); err != nil {
				return err
			}
		}

		if res.AmountMismatch {
			log.Error("amount mismatch, entitlement withheld",
				zap.Int64("expected_cents", expected),
				zap.Int64("reported_cents", *u.AmountInCents))
			meta := map[string]interface{}{
				"amount_mismatch":          true,
				"expected_amount_in_cents": expected,
				"reported_amount_in_cents": *u.AmountInCents,
			}
			target := order.Status
			if !order.Status.IsTerminal() {
				target = db_models.OrderStatusError
			}
			if err := orders.UpdateStatus(ctx, order.ID, target, meta); err != nil {
				return err
			}
			res.Transitioned = target != order.Status
			res.Status = target
			return nil
		}

		target, known := orderStatusFor[u.Status]
		switch {
		case u.Status == wompi.StatusPending:
			return nil
		case !known:
			log.Warn("unrecognised gateway status, no action taken")
			res.Ignored = true
			return nil
		case order.Status.IsTerminal():
			if order.Status != target {
				log.Warn("report for settled order ignored", zap.String("order_status", string(order.Status)))
			}
			res.Ignored = true
			return nil
		}

		if err := orders.UpdateStatus(ctx, order.ID, target, nil); err != nil {
			return err
		}
		res.Transitioned = true
		res.Status = target

		if target != db_models.OrderStatusApproved {
			return nil
		}

		created, err := purchases.EnsureActive(ctx, &db_models.CoursePurchase{
			UserID:      order.UserID,
			CourseID:    order.CourseID,
			OrderID:     order.ID,
			PricePaid:   order.Amount,
			PurchasedAt: r.now(),
		})
		if err != nil {
			return err
		}
		res.EntitlementCreated = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Transitioned {
		log.Info("order reconciled",
			zap.String("from", string(res.PreviousStatus)),
			zap.String("to", string(res.Status)),
			zap.Bool("entitlement_created", res.EntitlementCreated))
	}

	r.afterCommit(ctx, &order, u, res, log)
	return res, nil
}

func (r *reconciler) recordAudit(ctx context.Context, gatewayTxs repositories.GatewayTransactionRepository, order *db_models.Order, u ReconcileUpdate, mismatch bool) error {
	if err := gatewayTxs.CreateIfMissing(ctx, &db_models.GatewayTransaction{
		OrderID:              order.ID,
		Reference:            order.Reference,
		GatewayTransactionID: u.TransactionID,
		Currency:             order.Currency,
	}); err != nil {
		return err
	}

	fields := map[string]interface{}{}
	if mismatch {
		fields["amount_mismatch"] = true
	}
	if u.TransactionID != "" {
		fields["gateway_transaction_id"] = u.TransactionID
	}
	if u.Source == SourceCheckout {
		// Status fields already written by a webhook stay authoritative.
		current, err := gatewayTxs.FindByReference(ctx, order.Reference)
		if err != nil {
			return err
		}
		if current.WebhookReceivedAt != nil {
			if len(fields) == 0 {
				return nil
			}
			return gatewayTxs.ApplyWebhook(ctx, order.Reference, fields)
		}
	}

	fields["status"] = u.Status.String()
	if u.StatusMessage != "" {
		fields["status_message"] = u.StatusMessage
	}
	if u.PaymentMethodType != "" {
		fields["payment_method_type"] = u.PaymentMethodType
	}
	if u.AmountInCents != nil {
		fields["amount_in_cents"] = *u.AmountInCents
	}
	if u.FinalizedAt != nil {
		fields["finalized_at"] = *u.FinalizedAt
	}
	if len(u.RawPayload) > 0 {
		fields["raw_payload"] = u.RawPayload
	}
	if u.Source == SourceWebhook {
		fields["webhook_received_at"] = r.now()
	}
	return gatewayTxs.ApplyWebhook(ctx, order.Reference, fields)
}

// afterCommit runs the side effects that must not fail the reconciliation.
func (r *reconciler) afterCommit(ctx context.Context, order *db_models.Order, u ReconcileUpdate, res *ReconcileResult, log *zap.Logger) {
	if res.EntitlementCreated {
		if err := r.courses.IncrementStudents(ctx, order.CourseID); err != nil {
			log.Warn("failed to increment students count", zap.Error(err))
		}
		if r.catalog != nil {
			r.catalog.InvalidateCourse(order.CourseID)
		}
	}

	if !res.Transitioned && !res.AmountMismatch {
		return
	}

	eventType := events.TypeOrderStatusChanged
	if res.AmountMismatch {
		eventType = events.TypeAmountMismatch
	}
	var cents int64
	if u.AmountInCents != nil {
		cents = *u.AmountInCents
	} else {
		cents = wompi.AmountInCents(order.Amount)
	}

	ev := events.PaymentEvent{
		Type:               eventType,
		Reference:          order.Reference,
		OrderID:            order.ID.String(),
		UserID:             order.UserID.String(),
		CourseID:           order.CourseID.String(),
		PreviousStatus:     string(res.PreviousStatus),
		Status:             string(res.Status),
		TransactionID:      u.TransactionID,
		AmountInCents:      cents,
		Currency:           order.Currency,
		EntitlementCreated: res.EntitlementCreated,
		Source:             string(u.Source),
		OccurredAt:         r.now(),
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.publishTimeout)
	defer cancel()
	if err := r.publisher.Publish(pubCtx, ev); err != nil {
		log.Warn("failed to publish payment event", zap.Error(err))
	}
}

