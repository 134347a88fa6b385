package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rogerbox/internal/models/db_models"
	"rogerbox/internal/models/response_models"
	"rogerbox/internal/repositories"
	"rogerbox/pkg/memcache"
	"rogerbox/pkg/utils"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type CatalogService interface {
	ListPublished(ctx context.Context, page, pageSize int) (*response_models.CourseListResponse, error)
	GetCourse(ctx context.Context, id uuid.UUID) (*response_models.CourseResponse, error)
	InvalidateCourse(id uuid.UUID)
}

type catalogService struct {
	courses repositories.CourseRepository
	lists   *memcache.TTLCache[*response_models.CourseListResponse]
	details *memcache.TTLCache[*response_models.CourseResponse]
	logger  *zap.Logger
}

func NewCatalogService(courses repositories.CourseRepository, ttl time.Duration, logger *zap.Logger) CatalogService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &catalogService{
		courses: courses,
		lists:   memcache.NewTTLCache[*response_models.CourseListResponse](ttl),
		details: memcache.NewTTLCache[*response_models.CourseResponse](ttl),
		logger:  logger.With(zap.String("component", "catalog")),
	}
}

func (s *catalogService) ListPublished(ctx context.Context, page, pageSize int) (*response_models.CourseListResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	key := fmt.Sprintf("page=%d&page_size=%d", page, pageSize)
	return s.lists.GetOrLoad(ctx, key, func(ctx context.Context) (*response_models.CourseListResponse, error) {
		courses, total, err := s.courses.ListPublished(ctx, page, pageSize)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("catalog page loaded", zap.String("key", key), zap.Int("items", len(courses)))

		out := &response_models.CourseListResponse{
			Items:    make([]response_models.CourseResponse, 0, len(courses)),
			Page:     page,
			PageSize: pageSize,
			Total:    total,
		}
		for i := range courses {
			out.Items = append(out.Items, toCourseResponse(&courses[i]))
		}
		return out, nil
	})
}

func (s *catalogService) GetCourse(ctx context.Context, id uuid.UUID) (*response_models.CourseResponse, error) {
	return s.details.GetOrLoad(ctx, id.String(), func(ctx context.Context) (*response_models.CourseResponse, error) {
		course, err := s.courses.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !course.IsPublished {
			return nil, fmt.Errorf("%w: course %s", utils.ErrNotFound, id)
		}
		resp := toCourseResponse(course)
		return &resp, nil
	})
}

// InvalidateCourse drops the course detail and every cached page, since
// any page may contain the course.
func (s *catalogService) InvalidateCourse(id uuid.UUID) {
	s.details.Invalidate(id.String())
	s.lists.Purge()
}

func toCourseResponse(c *db_models.Course) response_models.CourseResponse {
	return response_models.CourseResponse{
		ID:               c.ID,
		Title:            c.Title,
		Slug:             c.Slug,
		ShortDescription: c.ShortDescription,
		ThumbnailURL:     c.ThumbnailURL,
		Price:            c.Price,
		OriginalPrice:    c.OriginalPrice,
		Currency:         c.Currency,
		StudentsCount:    c.StudentsCount,
	}
}
