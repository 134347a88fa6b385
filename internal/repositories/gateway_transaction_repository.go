package repositories

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rogerbox/internal/models/db_models"
	"rogerbox/pkg/utils"
)

type GatewayTransactionRepository interface {
	// RecordCheckout stores the synchronous gateway response. When the row
	// already exists only the raw response is refreshed, plus the status
	// fields if no webhook has been applied yet.
	RecordCheckout(ctx context.Context, gtx *db_models.GatewayTransaction) error
	// CreateIfMissing inserts gtx unless a row for its reference exists.
	CreateIfMissing(ctx context.Context, gtx *db_models.GatewayTransaction) error
	FindByReference(ctx context.Context, reference string) (*db_models.GatewayTransaction, error)
	// ApplyWebhook updates the audit fields in place, never the row identity.
	ApplyWebhook(ctx context.Context, reference string, fields map[string]interface{}) error
	WithTx(tx *gorm.DB) GatewayTransactionRepository
}

type gatewayTransactionRepository struct {
	db *gorm.DB
}

func NewGatewayTransactionRepository(db *gorm.DB) GatewayTransactionRepository {
	return &gatewayTransactionRepository{db: db}
}

func (r *gatewayTransactionRepository) WithTx(tx *gorm.DB) GatewayTransactionRepository {
	return &gatewayTransactionRepository{db: tx}
}

func (r *gatewayTransactionRepository) RecordCheckout(ctx context.Context, gtx *db_models.GatewayTransaction) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "reference"}}, DoNothing: true}).
			Create(gtx)
		if res.Error != nil {
			return fmt.Errorf("%w: record checkout transaction: %v", utils.ErrDatabaseError, res.Error)
		}
		if res.RowsAffected > 0 {
			return nil
		}

		scoped := func() *gorm.DB {
			return tx.Model(&db_models.GatewayTransaction{}).Where("reference = ?", gtx.Reference)
		}
		if err := scoped().Updates(map[string]interface{}{"raw_response": gtx.RawResponse}).Error; err != nil {
			return fmt.Errorf("%w: record checkout response: %v", utils.ErrDatabaseError, err)
		}
		if err := scoped().Where("gateway_transaction_id = ?", "").
			Update("gateway_transaction_id", gtx.GatewayTransactionID).Error; err != nil {
			return fmt.Errorf("%w: record checkout transaction id: %v", utils.ErrDatabaseError, err)
		}
		// A webhook that already landed is authoritative for the status.
		err := scoped().Where("webhook_received_at IS NULL").Updates(map[string]interface{}{
			"status":              gtx.Status,
			"status_message":      gtx.StatusMessage,
			"payment_method_type": gtx.PaymentMethodType,
			"amount_in_cents":     gtx.AmountInCents,
			"finalized_at":        gtx.FinalizedAt,
		}).Error
		if err != nil {
			return fmt.Errorf("%w: record checkout status: %v", utils.ErrDatabaseError, err)
		}
		return nil
	})
}

func (r *gatewayTransactionRepository) CreateIfMissing(ctx context.Context, gtx *db_models.GatewayTransaction) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "reference"}}, DoNothing: true}).
		Create(gtx).Error
	if err != nil {
		return fmt.Errorf("%w: create gateway transaction: %v", utils.ErrDatabaseError, err)
	}
	return nil
}

func (r *gatewayTransactionRepository) FindByReference(ctx context.Context, reference string) (*db_models.GatewayTransaction, error) {
	var gtx db_models.GatewayTransaction
	if err := r.db.WithContext(ctx).First(&gtx, "reference = ?", reference).Error; err != nil {
		return nil, notFoundOr(err, "gateway transaction "+reference)
	}
	return &gtx, nil
}

func (r *gatewayTransactionRepository) ApplyWebhook(ctx context.Context, reference string, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&db_models.GatewayTransaction{}).
		Where("reference = ?", reference).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("%w: update gateway transaction: %v", utils.ErrDatabaseError, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: gateway transaction %s", utils.ErrNotFound, reference)
	}
	return nil
}
