package db_models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusApproved OrderStatus = "approved"
	OrderStatusDeclined OrderStatus = "declined"
	OrderStatusVoided   OrderStatus = "voided"
	OrderStatusError    OrderStatus = "error"
)

// IsTerminal reports whether no further transition is allowed out of s.
func (s OrderStatus) IsTerminal() bool {
	return s != OrderStatusPending
}

// Order is one checkout attempt. Reference is the only key the gateway knows.
type Order struct {
	BaseModel
	Reference     string    `gorm:"size:64;not null;uniqueIndex"`
	UserID        uuid.UUID `gorm:"type:uuid;not null;index"`
	CourseID      uuid.UUID `gorm:"type:uuid;not null;index"`
	CustomerEmail string    `gorm:"not null"`
	CustomerName  string

	Amount   decimal.Decimal `gorm:"type:numeric(12,2);not null"` // major units
	Currency string          `gorm:"size:3;not null"`

	Status               OrderStatus `gorm:"size:16;not null;index"`
	PaymentMethod        string      `gorm:"size:32"`
	GatewayTransactionID *string     `gorm:"size:64;index"`

	// Advisory only, nothing sweeps expired orders.
	ExpiresAt time.Time `gorm:"not null;index"`

	// original_price, discount_amount, gateway failure details...
	Metadata datatypes.JSON `gorm:"type:jsonb"`
}

// IsExpired reports whether the checkout window has passed at now.
func (o *Order) IsExpired(now time.Time) bool {
	return !o.ExpiresAt.IsZero() && now.After(o.ExpiresAt)
}

// MetadataMap decodes Metadata, returning an empty map when unset.
func (o *Order) MetadataMap() map[string]interface{} {
	out := map[string]interface{}{}
	if len(o.Metadata) == 0 {
		return out
	}
	_ = json.Unmarshal(o.Metadata, &out)
	return out
}

// MergeMetadata returns Metadata with extra keys set, overwriting existing ones.
func (o *Order) MergeMetadata(extra map[string]interface{}) (datatypes.JSON, error) {
	m := o.MetadataMap()
	for k, v := range extra {
		m[k] = v
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
