package payment_service_fx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"rogerbox/internal/api/controllers"
	"rogerbox/internal/config"
	"rogerbox/internal/events"
	"rogerbox/internal/gateway/wompi"
	"rogerbox/internal/repositories"
	"rogerbox/internal/services"
)

var Module = fx.Provide(
	provideOrderRepo,
	provideGatewayTransactionRepo,
	provideCoursePurchaseRepo,
	provideWebhookEventRepo,
	provideReconciler,
	providePaymentService,
	provideWebhookService,
	providePaymentController,
)

func provideOrderRepo(db *gorm.DB) repositories.OrderRepository {
	return repositories.NewOrderRepository(db)
}

func provideGatewayTransactionRepo(db *gorm.DB) repositories.GatewayTransactionRepository {
	return repositories.NewGatewayTransactionRepository(db)
}

func provideCoursePurchaseRepo(db *gorm.DB) repositories.CoursePurchaseRepository {
	return repositories.NewCoursePurchaseRepository(db)
}

func provideWebhookEventRepo(db *gorm.DB) repositories.WebhookEventRepository {
	return repositories.NewWebhookEventRepository(db)
}

func provideReconciler(
	db *gorm.DB,
	orders repositories.OrderRepository,
	gatewayTxs repositories.GatewayTransactionRepository,
	purchases repositories.CoursePurchaseRepository,
	courses repositories.CourseRepository,
	publisher events.Publisher,
	catalog services.CourseCacheInvalidator,
	logger *zap.Logger,
) services.Reconciler {
	return services.NewReconciler(db, orders, gatewayTxs, purchases, courses, publisher, catalog, logger)
}

func providePaymentService(
	courses repositories.CourseRepository,
	orders repositories.OrderRepository,
	gatewayTxs repositories.GatewayTransactionRepository,
	purchases repositories.CoursePurchaseRepository,
	reconciler services.Reconciler,
	gateway wompi.API,
	signer *wompi.Signer,
	cfg *config.Config,
	logger *zap.Logger,
) (services.PaymentService, error) {
	return services.NewPaymentService(courses, orders, gatewayTxs, purchases, reconciler, gateway, signer, services.PaymentConfig{
		PublicKey:       cfg.Wompi.PublicKey,
		Environment:     cfg.Wompi.Environment,
		ReferencePrefix: cfg.Payments.ReferencePrefix,
		Currency:        cfg.Payments.Currency,
		OrderTTL:        cfg.Payments.OrderTTL,
		CheckoutTimeout: cfg.Payments.CheckoutTimeout,
		BlockRepurchase: cfg.Payments.BlockRepurchase,
		CallbackBaseURL: cfg.Wompi.CallbackBaseURL,
	}, logger)
}

func provideWebhookService(
	verifier *wompi.WebhookVerifier,
	reconciler services.Reconciler,
	webhookEvents repositories.WebhookEventRepository,
	gatewayTxs repositories.GatewayTransactionRepository,
	logger *zap.Logger,
) (services.WebhookService, error) {
	return services.NewWebhookService(verifier, reconciler, webhookEvents, gatewayTxs, logger)
}

func providePaymentController(paymentService services.PaymentService, webhookService services.WebhookService, logger *zap.Logger) *controllers.PaymentController {
	return controllers.NewPaymentController(paymentService, webhookService, logger)
}
