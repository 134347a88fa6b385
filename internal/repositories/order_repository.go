package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rogerbox/internal/models/db_models"
	"rogerbox/pkg/utils"
)

type OrderRepository interface {
	Create(ctx context.Context, order *db_models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*db_models.Order, error)
	FindByReference(ctx context.Context, reference string) (*db_models.Order, error)
	// FindByReferenceForUpdate locks the row until the surrounding
	// transaction ends. Only meaningful on a repository from WithTx.
	FindByReferenceForUpdate(ctx context.Context, reference string) (*db_models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status db_models.OrderStatus, metadata map[string]interface{}) error
	AttachGatewayTransaction(ctx context.Context, id uuid.UUID, transactionID string) error
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]db_models.Order, error)
	ListForExport(ctx context.Context, from, to time.Time) ([]db_models.Order, error)
	WithTx(tx *gorm.DB) OrderRepository
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) WithTx(tx *gorm.DB) OrderRepository {
	return &orderRepository{db: tx}
}

func (r *orderRepository) Create(ctx context.Context, order *db_models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("%w: create order: %v", utils.ErrDatabaseError, err)
	}
	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*db_models.Order, error) {
	var order db_models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "order "+id.String())
	}
	return &order, nil
}

func (r *orderRepository) FindByReference(ctx context.Context, reference string) (*db_models.Order, error) {
	var order db_models.Order
	if err := r.db.WithContext(ctx).First(&order, "reference = ?", reference).Error; err != nil {
		return nil, notFoundOr(err, "order "+reference)
	}
	return &order, nil
}

func (r *orderRepository) FindByReferenceForUpdate(ctx context.Context, reference string) (*db_models.Order, error) {
	var order db_models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "reference = ?", reference).Error
	if err != nil {
		return nil, notFoundOr(err, "order "+reference)
	}
	return &order, nil
}

// UpdateStatus sets the status and merges metadata keys into the stored JSON.
func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status db_models.OrderStatus, metadata map[string]interface{}) error {
	updates := map[string]interface{}{"status": status}

	if len(metadata) > 0 {
		order, err := r.FindByID(ctx, id)
		if err != nil {
			return err
		}
		merged, err := order.MergeMetadata(metadata)
		if err != nil {
			return fmt.Errorf("%w: encode order metadata: %v", utils.ErrDatabaseError, err)
		}
		updates["metadata"] = merged
	}

	res := r.db.WithContext(ctx).Model(&db_models.Order{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("%w: update order status: %v", utils.ErrDatabaseError, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: order %s", utils.ErrNotFound, id)
	}
	return nil
}

func (r *orderRepository) AttachGatewayTransaction(ctx context.Context, id uuid.UUID, transactionID string) error {
	res := r.db.WithContext(ctx).Model(&db_models.Order{}).
		Where("id = ?", id).
		Update("gateway_transaction_id", transactionID)
	if res.Error != nil {
		return fmt.Errorf("%w: attach gateway transaction: %v", utils.ErrDatabaseError, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: order %s", utils.ErrNotFound, id)
	}
	return nil
}

func (r *orderRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]db_models.Order, error) {
	var orders []db_models.Order
	q := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", db_models.OrderStatusPending, now).
		Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("%w: list expired orders: %v", utils.ErrDatabaseError, err)
	}
	return orders, nil
}

func (r *orderRepository) ListForExport(ctx context.Context, from, to time.Time) ([]db_models.Order, error) {
	var orders []db_models.Order
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list orders: %v", utils.ErrDatabaseError, err)
	}
	return orders, nil
}
