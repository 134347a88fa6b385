package db_models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// GatewayTransaction mirrors the gateway-side transaction of an order.
// It is updated in place when webhooks arrive, never replaced.
type GatewayTransaction struct {
	BaseModel
	OrderID              uuid.UUID `gorm:"type:uuid;not null;index"`
	Reference            string    `gorm:"size:64;not null;uniqueIndex"`
	GatewayTransactionID string    `gorm:"size:64;index"`

	Status            string `gorm:"size:32"` // as reported by the gateway
	StatusMessage     string
	PaymentMethodType string `gorm:"size:32"`

	AmountInCents  int64
	Currency       string `gorm:"size:3"`
	AmountMismatch bool

	// Raw bodies for forensic replay.
	RawResponse datatypes.JSON `gorm:"type:jsonb"`
	RawPayload  datatypes.JSON `gorm:"type:jsonb"`

	FinalizedAt       *time.Time
	WebhookReceivedAt *time.Time
}
