package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rogerbox/internal/models/request_models"
	"rogerbox/internal/services"
	"rogerbox/pkg/utils"
)

const (
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	defaultExportDays = 30
)

type AdminController struct {
	export services.ExportService
	now    func() time.Time
}

func NewAdminController(export services.ExportService) *AdminController {
	return &AdminController{export: export, now: time.Now}
}

// ExportOrders godoc
// @Summary Download orders as an XLSX workbook
// @Tags Admin
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param from query string false "Start (RFC3339 or YYYY-MM-DD), defaults to 30 days ago"
// @Param to query string false "End, exclusive (RFC3339 or YYYY-MM-DD), defaults to now"
// @Success 200 {file} file
// @Failure 400 {object} utils.APIResponse
// @Security BearerAuth
// @Router /api/admin/orders/export [get]
func (a *AdminController) ExportOrders(c *gin.Context) {
	var query request_models.ExportOrdersQuery
	_ = c.ShouldBindQuery(&query)

	to := a.now().UTC()
	if query.To != "" {
		t, err := parseExportTime(query.To)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, utils.CodeValidation, "Invalid 'to' parameter")
			return
		}
		to = t
	}
	from := to.AddDate(0, 0, -defaultExportDays)
	if query.From != "" {
		t, err := parseExportTime(query.From)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, utils.CodeValidation, "Invalid 'from' parameter")
			return
		}
		from = t
	}

	data, err := a.export.ExportOrders(c.Request.Context(), from, to)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("orders_%s_%s.xlsx", from.Format("20060102"), to.Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

func parseExportTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.ParseInLocation(time.DateOnly, raw, time.UTC)
}
