package events_fx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"rogerbox/internal/config"
	"rogerbox/internal/events"
)

var Module = fx.Provide(
	providePublisher)

func providePublisher(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) events.Publisher {
	if len(cfg.Kafka.Brokers) == 0 {
		logger.Info("no kafka brokers configured, payment events are dropped")
		return events.NoopPublisher{}
	}

	publisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.PaymentsTopic, logger)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return publisher.Close()
		},
	})
	return publisher
}
