package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"rogerbox/pkg/utils"
)

func TestExportOrders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	course := h.seedCourse(t, 50000, true)
	h.seedOrder(t, "ROGER-X1", course, uuid.New())
	h.seedOrder(t, "ROGER-X2", course, uuid.New())

	svc := NewExportService(h.orders, zap.NewNop())
	now := time.Now().UTC()

	data, err := svc.ExportOrders(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ordersSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Reference", rows[0][0])
	assert.ElementsMatch(t, []string{"ROGER-X1", "ROGER-X2"}, []string{rows[1][0], rows[2][0]})
	assert.Equal(t, "pending", rows[1][1])
}

func TestExportOrders_EmptyRange(t *testing.T) {
	h := newHarness(t)
	svc := NewExportService(h.orders, zap.NewNop())
	now := time.Now().UTC()

	data, err := svc.ExportOrders(context.Background(), now.Add(-48*time.Hour), now.Add(-24*time.Hour))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(ordersSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestExportOrders_InvalidRange(t *testing.T) {
	h := newHarness(t)
	svc := NewExportService(h.orders, zap.NewNop())
	now := time.Now().UTC()

	_, err := svc.ExportOrders(context.Background(), now, now)
	assert.ErrorIs(t, err, utils.ErrValidation)
}
