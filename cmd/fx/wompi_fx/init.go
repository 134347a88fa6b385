package wompi_fx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"rogerbox/internal/config"
	"rogerbox/internal/gateway/wompi"
)

var Module = fx.Provide(
	provideClient, provideSigner, provideVerifier)

func provideClient(cfg *config.Config, logger *zap.Logger) wompi.API {
	client := wompi.NewClient(cfg.GatewayConfig(), logger)
	logger.Info("payment gateway configured",
		zap.String("environment", string(cfg.Wompi.Environment)),
		zap.String("base_url", client.BaseURL()))
	return client
}

func provideSigner(cfg *config.Config) (*wompi.Signer, error) {
	return wompi.NewSigner(cfg.Wompi.IntegritySecret)
}

func provideVerifier(cfg *config.Config) (*wompi.WebhookVerifier, error) {
	return wompi.NewWebhookVerifier(cfg.Wompi.EventsSecret)
}
