package request_models

import "github.com/shopspring/decimal"

// CreateOrderRequest is the checkout body posted by the payment form.
// Required fields are checked by the payment service so that every
// failure uses the same VALIDATION_ERROR envelope.
type CreateOrderRequest struct {
	CourseID       string           `json:"courseId"`
	Amount         decimal.Decimal  `json:"amount"`
	OriginalPrice  *decimal.Decimal `json:"originalPrice,omitempty"`
	DiscountAmount *decimal.Decimal `json:"discountAmount,omitempty"`
	CustomerEmail  string           `json:"customerEmail"`
	CustomerName   string           `json:"customerName"`
	PaymentMethod  string           `json:"paymentMethod"`
	PaymentData    CardPaymentData  `json:"paymentData"`
}

type CardPaymentData struct {
	Number       string `json:"number"`
	CVC          string `json:"cvc"`
	ExpMonth     string `json:"exp_month"`
	ExpYear      string `json:"exp_year"`
	CardHolder   string `json:"card_holder"`
	Installments int    `json:"installments"`
}

type CoursesQuery struct {
	Page     int `form:"page"`
	PageSize int `form:"page_size"`
}

type ExportOrdersQuery struct {
	From string `form:"from"`
	To   string `form:"to"`
}
