package db_models

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent stores each verified gateway delivery verbatim.
type WebhookEvent struct {
	BaseModel
	Event                string `gorm:"size:64;index"`
	Reference            string `gorm:"size:64;index"`
	GatewayTransactionID string `gorm:"size:64"`
	Status               string `gorm:"size:32"`
	SignatureValid       bool
	Payload              datatypes.JSON `gorm:"type:jsonb"`
	ProcessingError      string
	ReceivedAt           time.Time `gorm:"not null"`
	ProcessedAt          *time.Time
}

// ServiceModels lists every table this service owns, in creation order.
func ServiceModels() []interface{} {
	return []interface{}{
		&Course{},
		&Order{},
		&GatewayTransaction{},
		&CoursePurchase{},
		&WebhookEvent{},
	}
}
