package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"rogerbox/internal/models/request_models"
	"rogerbox/internal/services"
	"rogerbox/pkg/utils"
)

type CourseController struct {
	catalog services.CatalogService
}

func NewCourseController(catalog services.CatalogService) *CourseController {
	return &CourseController{catalog: catalog}
}

// ListCourses godoc
// @Summary List published courses
// @Tags Courses
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size (max 100)" default(20)
// @Success 200 {object} utils.APIResponse{data=response_models.CourseListResponse}
// @Router /api/courses [get]
func (cc *CourseController) ListCourses(c *gin.Context) {
	var query request_models.CoursesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.RespondError(c, http.StatusBadRequest, utils.CodeValidation, "Invalid pagination parameters")
		return
	}

	courses, err := cc.catalog.ListPublished(c.Request.Context(), query.Page, query.PageSize)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, courses, "Fetched courses successfully")
}

// GetCourse godoc
// @Summary Get a published course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} utils.APIResponse{data=response_models.CourseResponse}
// @Failure 404 {object} utils.APIResponse
// @Router /api/courses/{id} [get]
func (cc *CourseController) GetCourse(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, utils.CodeValidation, "Invalid course id")
		return
	}

	course, err := cc.catalog.GetCourse(c.Request.Context(), id)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, course, "Fetched course successfully")
}
