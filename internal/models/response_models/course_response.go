package response_models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CourseResponse struct {
	ID               uuid.UUID       `json:"id"`
	Title            string          `json:"title"`
	Slug             string          `json:"slug"`
	ShortDescription string          `json:"short_description"`
	ThumbnailURL     string          `json:"thumbnail_url"`
	Price            decimal.Decimal `json:"price"`
	OriginalPrice    decimal.Decimal `json:"original_price"`
	Currency         string          `json:"currency"`
	StudentsCount    int64           `json:"students_count"`
}

type CourseListResponse struct {
	Items    []CourseResponse `json:"items"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Total    int64            `json:"total"`
}
