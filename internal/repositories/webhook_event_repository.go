package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"rogerbox/internal/models/db_models"
	"rogerbox/pkg/utils"
)

type WebhookEventRepository interface {
	Create(ctx context.Context, event *db_models.WebhookEvent) error
	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time, processingErr error) error
	ListByReference(ctx context.Context, reference string) ([]db_models.WebhookEvent, error)
}

type webhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

func (r *webhookEventRepository) Create(ctx context.Context, event *db_models.WebhookEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("%w: record webhook event: %v", utils.ErrDatabaseError, err)
	}
	return nil
}

func (r *webhookEventRepository) MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time, processingErr error) error {
	updates := map[string]interface{}{"processed_at": processedAt}
	if processingErr != nil {
		updates["processing_error"] = processingErr.Error()
	}
	err := r.db.WithContext(ctx).Model(&db_models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
	if err != nil {
		return fmt.Errorf("%w: mark webhook event: %v", utils.ErrDatabaseError, err)
	}
	return nil
}

func (r *webhookEventRepository) ListByReference(ctx context.Context, reference string) ([]db_models.WebhookEvent, error) {
	var out []db_models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("reference = ?", reference).
		Order("received_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list webhook events: %v", utils.ErrDatabaseError, err)
	}
	return out, nil
}
