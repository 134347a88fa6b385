package db_models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CoursePurchase is the entitlement granting a user access to a course.
// At most one active row per (user, course), enforced by a partial unique index.
type CoursePurchase struct {
	BaseModel
	UserID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_course_purchases_active,where:is_active = true"`
	CourseID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_course_purchases_active,where:is_active = true"`
	OrderID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	PricePaid   decimal.Decimal `gorm:"type:numeric(12,2)"`
	IsActive    bool            `gorm:"not null"`
	PurchasedAt time.Time       `gorm:"not null"`
}
