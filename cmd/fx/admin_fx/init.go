package admin_fx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"rogerbox/internal/api/controllers"
	"rogerbox/internal/repositories"
	"rogerbox/internal/services"
)

var Module = fx.Provide(
	provideExportService, provideAdminController,
)

func provideExportService(orders repositories.OrderRepository, logger *zap.Logger) services.ExportService {
	return services.NewExportService(orders, logger)
}

func provideAdminController(export services.ExportService) *controllers.AdminController {
	return controllers.NewAdminController(export)
}
