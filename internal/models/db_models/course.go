package db_models

import "github.com/shopspring/decimal"

type Course struct {
	BaseModel
	Title            string `gorm:"not null"`
	Slug             string `gorm:"uniqueIndex"`
	ShortDescription string
	ThumbnailURL     string
	Price            decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	OriginalPrice    decimal.Decimal `gorm:"type:numeric(12,2)"`
	Currency         string          `gorm:"size:3"`
	IsPublished      bool            `gorm:"index"`
	StudentsCount    int64
}
