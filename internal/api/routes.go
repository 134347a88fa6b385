package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rogerbox/internal/api/controllers"
	"rogerbox/pkg/middleware"
)

const RoleAdmin = "admin"

type Controllers struct {
	Payments *controllers.PaymentController
	Courses  *controllers.CourseController
	Admin    *controllers.AdminController
}

func RegisterRoutes(r *gin.Engine, ctrl Controllers, jwtSecret []byte) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := middleware.JWTAuthMiddleware(jwtSecret)
	api := r.Group("/api")

	payments := api.Group("/payments")
	payments.POST("/webhook", ctrl.Payments.HandleWebhook)
	payments.GET("/config", ctrl.Payments.GetConfig)
	payments.POST("/create-order", auth, ctrl.Payments.CreateOrder)
	payments.GET("/orders/:reference", auth, ctrl.Payments.GetOrderStatus)

	courses := api.Group("/courses")
	courses.GET("", ctrl.Courses.ListCourses)
	courses.GET("/:id", ctrl.Courses.GetCourse)

	admin := api.Group("/admin", auth, middleware.RoleMiddleware(RoleAdmin))
	admin.GET("/orders/export", ctrl.Admin.ExportOrders)
}
