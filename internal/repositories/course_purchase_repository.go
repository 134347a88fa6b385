package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rogerbox/internal/models/db_models"
	"rogerbox/pkg/utils"
)

type CoursePurchaseRepository interface {
	// EnsureActive inserts an active entitlement unless one already exists
	// for the same user and course. created is false on the no-op path.
	EnsureActive(ctx context.Context, purchase *db_models.CoursePurchase) (created bool, err error)
	FindActive(ctx context.Context, userID, courseID uuid.UUID) (*db_models.CoursePurchase, error)
	CountActive(ctx context.Context, userID, courseID uuid.UUID) (int64, error)
	WithTx(tx *gorm.DB) CoursePurchaseRepository
}

type coursePurchaseRepository struct {
	db *gorm.DB
}

func NewCoursePurchaseRepository(db *gorm.DB) CoursePurchaseRepository {
	return &coursePurchaseRepository{db: db}
}

func (r *coursePurchaseRepository) WithTx(tx *gorm.DB) CoursePurchaseRepository {
	return &coursePurchaseRepository{db: tx}
}

func (r *coursePurchaseRepository) EnsureActive(ctx context.Context, purchase *db_models.CoursePurchase) (bool, error) {
	purchase.IsActive = true
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(purchase)
	if res.Error != nil {
		if IsUniqueViolation(res.Error) {
			return false, nil
		}
		return false, fmt.Errorf("%w: grant entitlement: %v", utils.ErrDatabaseError, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *coursePurchaseRepository) FindActive(ctx context.Context, userID, courseID uuid.UUID) (*db_models.CoursePurchase, error) {
	var purchase db_models.CoursePurchase
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ? AND is_active = ?", userID, courseID, true).
		First(&purchase).Error
	if err != nil {
		return nil, notFoundOr(err, "active purchase")
	}
	return &purchase, nil
}

func (r *coursePurchaseRepository) CountActive(ctx context.Context, userID, courseID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&db_models.CoursePurchase{}).
		Where("user_id = ? AND course_id = ? AND is_active = ?", userID, courseID, true).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("%w: count purchases: %v", utils.ErrDatabaseError, err)
	}
	return n, nil
}
