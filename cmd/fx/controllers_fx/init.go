package controllers_fx

import (
	"go.uber.org/fx"

	"rogerbox/internal/api"
	"rogerbox/internal/api/controllers"
)

var Module = fx.Options(
	fx.Provide(controllers.NewCourseController),
	fx.Provide(provideControllers))

func provideControllers(
	payments *controllers.PaymentController,
	courses *controllers.CourseController,
	admin *controllers.AdminController,
) api.Controllers {
	return api.Controllers{Payments: payments, Courses: courses, Admin: admin}
}
