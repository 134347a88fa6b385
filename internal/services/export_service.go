package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/spf13/cast"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"rogerbox/internal/repositories"
	"rogerbox/pkg/utils"
)

const ordersSheet = "Orders"

var orderExportHeader = []interface{}{
	"Reference", "Status", "Amount", "Currency", "Customer email", "Customer name",
	"Course ID", "Original price", "Discount", "Gateway transaction", "Created at", "Expires at",
}

type ExportService interface {
	// ExportOrders renders the orders created in [from, to) as an XLSX workbook.
	ExportOrders(ctx context.Context, from, to time.Time) ([]byte, error)
}

type exportService struct {
	orders repositories.OrderRepository
	logger *zap.Logger
}

func NewExportService(orders repositories.OrderRepository, logger *zap.Logger) ExportService {
	return &exportService{orders: orders, logger: logger.With(zap.String("component", "export"))}
}

func (s *exportService) ExportOrders(ctx context.Context, from, to time.Time) ([]byte, error) {
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: from must be before to", utils.ErrValidation)
	}

	orders, err := s.orders.ListForExport(ctx, from, to)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ordersSheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(ordersSheet, "A1", &orderExportHeader); err != nil {
		return nil, err
	}

	for i, o := range orders {
		meta := o.MetadataMap()
		txID := ""
		if o.GatewayTransactionID != nil {
			txID = *o.GatewayTransactionID
		}
		row := []interface{}{
			o.Reference,
			string(o.Status),
			o.Amount.InexactFloat64(),
			o.Currency,
			o.CustomerEmail,
			o.CustomerName,
			o.CourseID.String(),
			cast.ToFloat64(meta["original_price"]),
			cast.ToFloat64(meta["discount_amount"]),
			txID,
			o.CreatedAt.UTC().Format(time.RFC3339),
			o.ExpiresAt.UTC().Format(time.RFC3339),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(ordersSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	s.logger.Info("orders exported", zap.Int("rows", len(orders)), zap.Time("from", from), zap.Time("to", to))
	return buf.Bytes(), nil
}
