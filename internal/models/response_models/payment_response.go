package response_models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateOrderResponse struct {
	Success       bool   `json:"success"`
	OrderID       string `json:"orderId"`
	Reference     string `json:"reference"`
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

type PaymentConfigResponse struct {
	PublicKey   string `json:"publicKey"`
	Environment string `json:"environment"`
}

type OrderStatusResponse struct {
	OrderID       uuid.UUID       `json:"orderId"`
	Reference     string          `json:"reference"`
	CourseID      uuid.UUID       `json:"courseId"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	TransactionID string          `json:"transactionId,omitempty"`
	ExpiresAt     time.Time       `json:"expiresAt"`
	Expired       bool            `json:"expired"`
	CreatedAt     time.Time       `json:"createdAt"`
	// Entitled reports whether the buyer currently has access to the course.
	Entitled        bool       `json:"entitled"`
	AccessGrantedAt *time.Time `json:"accessGrantedAt,omitempty"`
}

type WebhookAck struct {
	Success bool `json:"success"`
}
