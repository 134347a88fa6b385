package wompi

import (
	"encoding/json"
	"time"
)

type Environment string

const (
	EnvSandbox    Environment = "sandbox"
	EnvProduction Environment = "production"
)

const (
	SandboxBaseURL    = "https://sandbox.wompi.co/v1"
	ProductionBaseURL = "https://production.wompi.co/v1"
)

// BaseURL returns the API root for the environment; unknown values use sandbox.
func (e Environment) BaseURL() string {
	if e == EnvProduction {
		return ProductionBaseURL
	}
	return SandboxBaseURL
}

// CardDetails never leaves the process except in the tokenization call.
type CardDetails struct {
	Number     string `json:"number"`
	CVC        string `json:"cvc"`
	ExpMonth   string `json:"exp_month"`
	ExpYear    string `json:"exp_year"`
	CardHolder string `json:"card_holder"`
}

type PaymentMethod struct {
	Type         string `json:"type"`
	Token        string `json:"token"`
	Installments int    `json:"installments"`
}

type TransactionRequest struct {
	AcceptanceToken string        `json:"acceptance_token"`
	AmountInCents   int64         `json:"amount_in_cents"`
	Currency        string        `json:"currency"`
	Signature       string        `json:"signature"`
	CustomerEmail   string        `json:"customer_email"`
	PaymentMethod   PaymentMethod `json:"payment_method"`
	Reference       string        `json:"reference"`
	RedirectURL     string        `json:"redirect_url,omitempty"`
}

type Transaction struct {
	ID                string            `json:"id"`
	Reference         string            `json:"reference"`
	Status            TransactionStatus `json:"status"`
	StatusMessage     string            `json:"status_message"`
	PaymentMethodType string            `json:"payment_method_type"`
	AmountInCents     int64             `json:"amount_in_cents"`
	Currency          string            `json:"currency"`
	CreatedAt         *time.Time        `json:"created_at,omitempty"`
	FinalizedAt       *time.Time        `json:"finalized_at,omitempty"`

	// Raw is the full response body as returned by the gateway.
	Raw json.RawMessage `json:"-"`
}

type envelope[T any] struct {
	Data T `json:"data"`
}

type tokenData struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type merchantData struct {
	PresignedAcceptance struct {
		AcceptanceToken string `json:"acceptance_token"`
		Permalink       string `json:"permalink"`
	} `json:"presigned_acceptance"`
}

// Event is the body of a webhook delivery.
type Event struct {
	Event string `json:"event"`
	Data  struct {
		Transaction EventTransaction `json:"transaction"`
	} `json:"data"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	Timestamp int64      `json:"timestamp,omitempty"`
}

type EventTransaction struct {
	ID                string     `json:"id"`
	Status            string     `json:"status"`
	StatusMessage     string     `json:"status_message"`
	PaymentMethodType string     `json:"payment_method_type"`
	Reference         string     `json:"reference"`
	AmountInCents     *int64     `json:"amount_in_cents,omitempty"`
	Currency          string     `json:"currency"`
	FinalizedAt       *time.Time `json:"finalized_at,omitempty"`
}

// ParseEvent decodes a webhook body. Callers verify the signature first.
func ParseEvent(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
