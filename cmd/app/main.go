package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"rogerbox/cmd/fx/admin_fx"
	"rogerbox/cmd/fx/catalog_fx"
	"rogerbox/cmd/fx/config_fx"
	"rogerbox/cmd/fx/controllers_fx"
	"rogerbox/cmd/fx/db_fx"
	"rogerbox/cmd/fx/events_fx"
	"rogerbox/cmd/fx/payment_service_fx"
	"rogerbox/cmd/fx/wompi_fx"
	"rogerbox/internal/api"
	"rogerbox/internal/config"
	"rogerbox/pkg/middleware"
)

func main() {
	app := fx.New(
		config_fx.Module,
		db_fx.Module,
		wompi_fx.Module,
		events_fx.Module,
		catalog_fx.Module,
		payment_service_fx.Module,
		admin_fx.Module,
		controllers_fx.Module,

		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
		fx.Provide(ProvideRouter),
		fx.Invoke(StartServer),
	)

	app.Run()
}

func StartServer(lc fx.Lifecycle, engine *gin.Engine, cfg *config.Config, logger *zap.Logger) {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			logger.Info("starting HTTP server", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Fatal("HTTP server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping HTTP server")
			return srv.Shutdown(ctx)
		},
	})
}

func ProvideRouter(ctrl api.Controllers, cfg *config.Config, logger *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.TraceIDMiddleware())
	r.Use(middleware.RequestLogger(logger.With(zap.String("component", "http"))))
	r.Use(middleware.CORSMiddleware())

	api.RegisterRoutes(r, ctrl, []byte(cfg.JWT.Secret))

	return r
}
