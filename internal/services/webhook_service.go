package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"rogerbox/internal/gateway/wompi"
	"rogerbox/internal/models/db_models"
	"rogerbox/internal/repositories"
	"rogerbox/pkg/utils"
)

const EventTransactionUpdated = "transaction.updated"

type WebhookService interface {
	// HandleWebhook verifies, records and reconciles one delivery. A nil
	// result with a nil error means the event was acknowledged without
	// reconciliation.
	HandleWebhook(ctx context.Context, rawBody []byte, signature string) (*ReconcileResult, error)
	// Replay re-runs reconciliation from the last stored payload of an order.
	Replay(ctx context.Context, reference string) (*ReconcileResult, error)
}

type webhookService struct {
	verifier   *wompi.WebhookVerifier
	reconciler Reconciler
	events     repositories.WebhookEventRepository
	gatewayTxs repositories.GatewayTransactionRepository
	logger     *zap.Logger
	now        func() time.Time
}

func NewWebhookService(
	verifier *wompi.WebhookVerifier,
	reconciler Reconciler,
	events repositories.WebhookEventRepository,
	gatewayTxs repositories.GatewayTransactionRepository,
	logger *zap.Logger,
) (WebhookService, error) {
	if verifier == nil {
		return nil, fmt.Errorf("%w: webhook verifier is required", utils.ErrConfiguration)
	}
	return &webhookService{
		verifier:   verifier,
		reconciler: reconciler,
		events:     events,
		gatewayTxs: gatewayTxs,
		logger:     logger.With(zap.String("component", "webhook")),
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

func (w *webhookService) HandleWebhook(ctx context.Context, rawBody []byte, signature string) (*ReconcileResult, error) {
	if err := w.verifier.Verify(rawBody, signature); err != nil {
		w.logger.Warn("webhook rejected", zap.Error(err), zap.Int("body_bytes", len(rawBody)))
		return nil, err
	}

	ev, err := wompi.ParseEvent(rawBody)
	if err != nil {
		err = fmt.Errorf("%w: malformed webhook payload", utils.ErrValidation)
		w.recordRejected(ctx, err, len(rawBody))
		return nil, err
	}
	txn := ev.Data.Transaction

	record := &db_models.WebhookEvent{
		Event:                ev.Event,
		Reference:            txn.Reference,
		GatewayTransactionID: txn.ID,
		Status:               txn.Status,
		SignatureValid:       true,
		Payload:              datatypes.JSON(rawBody),
		ReceivedAt:           w.now(),
	}
	if err := w.events.Create(ctx, record); err != nil {
		// The audit row is not worth failing the delivery for.
		w.logger.Error("failed to record webhook event", zap.String("reference", txn.Reference), zap.Error(err))
		record = nil
	}

	if ev.Event != EventTransactionUpdated {
		w.logger.Info("webhook event ignored", zap.String("event", ev.Event))
		w.markProcessed(ctx, record, nil)
		return nil, nil
	}
	if txn.Reference == "" {
		err := fmt.Errorf("%w: webhook payload has no transaction reference", utils.ErrValidation)
		w.markProcessed(ctx, record, err)
		return nil, err
	}

	res, err := w.reconciler.Reconcile(ctx, updateFromEvent(txn, rawBody, SourceWebhook))
	w.markProcessed(ctx, record, err)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			w.logger.Warn("webhook for unknown order", zap.String("reference", txn.Reference))
		}
		return nil, err
	}
	return res, nil
}

func (w *webhookService) Replay(ctx context.Context, reference string) (*ReconcileResult, error) {
	gtx, err := w.gatewayTxs.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if len(gtx.RawPayload) == 0 {
		return nil, fmt.Errorf("%w: no stored webhook payload for %s", utils.ErrNotFound, reference)
	}

	ev, err := wompi.ParseEvent(gtx.RawPayload)
	if err != nil {
		return nil, fmt.Errorf("%w: stored payload is malformed", utils.ErrValidation)
	}
	if ev.Data.Transaction.Reference != reference {
		return nil, fmt.Errorf("%w: stored payload belongs to %q", utils.ErrConflict, ev.Data.Transaction.Reference)
	}

	w.logger.Info("replaying webhook payload", zap.String("reference", reference))
	return w.reconciler.Reconcile(ctx, updateFromEvent(ev.Data.Transaction, gtx.RawPayload, SourceReplay))
}

// recordRejected keeps an audit row for a signed body that cannot be parsed.
// The body is not stored since it is not valid JSON.
func (w *webhookService) recordRejected(ctx context.Context, cause error, size int) {
	now := w.now()
	record := &db_models.WebhookEvent{
		SignatureValid:  true,
		ProcessingError: cause.Error(),
		ReceivedAt:      now,
		ProcessedAt:     &now,
	}
	if err := w.events.Create(ctx, record); err != nil {
		w.logger.Error("failed to record rejected webhook", zap.Error(err))
	}
	w.logger.Warn("webhook payload rejected", zap.Error(cause), zap.Int("body_bytes", size))
}

func (w *webhookService) markProcessed(ctx context.Context, record *db_models.WebhookEvent, processingErr error) {
	if record == nil {
		return
	}
	if err := w.events.MarkProcessed(ctx, record.ID, w.now(), processingErr); err != nil {
		w.logger.Warn("failed to mark webhook event processed", zap.Error(err))
	}
}

func updateFromEvent(txn wompi.EventTransaction, raw []byte, source ReconcileSource) ReconcileUpdate {
	return ReconcileUpdate{
		Reference:         txn.Reference,
		TransactionID:     txn.ID,
		Status:            wompi.ParseStatus(txn.Status),
		StatusMessage:     txn.StatusMessage,
		PaymentMethodType: txn.PaymentMethodType,
		AmountInCents:     txn.AmountInCents,
		FinalizedAt:       txn.FinalizedAt,
		RawPayload:        datatypes.JSON(raw),
		Source:            source,
	}
}
