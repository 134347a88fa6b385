package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"rogerbox/internal/models/db_models"
	"rogerbox/pkg/utils"
)

type CourseRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*db_models.Course, error)
	ListPublished(ctx context.Context, page, pageSize int) ([]db_models.Course, int64, error)
	IncrementStudents(ctx context.Context, id uuid.UUID) error
}

type courseRepository struct {
	db *gorm.DB
}

func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) FindByID(ctx context.Context, id uuid.UUID) (*db_models.Course, error) {
	var course db_models.Course
	if err := r.db.WithContext(ctx).First(&course, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "course "+id.String())
	}
	return &course, nil
}

func (r *courseRepository) ListPublished(ctx context.Context, page, pageSize int) ([]db_models.Course, int64, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	var (
		courses []db_models.Course
		total   int64
	)
	published := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&db_models.Course{}).Where("is_published = ?", true)
	}
	if err := published().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: count courses: %v", utils.ErrDatabaseError, err)
	}
	if err := published().Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&courses).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: list courses: %v", utils.ErrDatabaseError, err)
	}
	return courses, total, nil
}

func (r *courseRepository) IncrementStudents(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Model(&db_models.Course{}).
		Where("id = ?", id).
		UpdateColumn("students_count", gorm.Expr("students_count + ?", 1)).Error
	if err != nil {
		return fmt.Errorf("%w: increment students: %v", utils.ErrDatabaseError, err)
	}
	return nil
}
