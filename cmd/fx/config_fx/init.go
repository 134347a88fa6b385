package config_fx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"rogerbox/internal/config"
	"rogerbox/internal/infra"
)

var Module = fx.Provide(
	provideConfig, provideLogger)

func provideConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return infra.NewLogger(cfg.IsProduction(), cfg.LogLevel)
}
