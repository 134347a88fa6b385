package catalog_fx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"rogerbox/internal/config"
	"rogerbox/internal/repositories"
	"rogerbox/internal/services"
)

var Module = fx.Provide(
	provideCourseRepo, provideCatalogService, provideCacheInvalidator)

func provideCourseRepo(db *gorm.DB) repositories.CourseRepository {
	return repositories.NewCourseRepository(db)
}

func provideCatalogService(courses repositories.CourseRepository, cfg *config.Config, logger *zap.Logger) services.CatalogService {
	return services.NewCatalogService(courses, cfg.Catalog.CacheTTL, logger)
}

func provideCacheInvalidator(catalog services.CatalogService) services.CourseCacheInvalidator {
	return catalog
}
