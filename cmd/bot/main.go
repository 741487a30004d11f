package main

import (
	"context"
	"log"

	"screener_bot/internal/modules/config"
	"screener_bot/internal/modules/health"
	marketdata "screener_bot/internal/modules/market_data"
	marketws "screener_bot/internal/modules/market_ws"
	"screener_bot/internal/modules/postgres"
	"screener_bot/internal/modules/screener"
	tradelog "screener_bot/internal/modules/trade_log"
	"screener_bot/internal/runner"
	"screener_bot/pkg/logger"
	"screener_bot/pkg/tracing"

	"go.uber.org/fx"
)

func main() {
	logger.Init()

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		postgres.Module(),
		marketdata.Module(),
		marketws.Module(),
		screener.Module(),
		tradelog.Module(),
		health.Module(),
		runner.Module(),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config) {
			if cfg.Jaeger.Host == "" {
				return
			}
			_, closeTracer, err := tracing.InitTracer(tracing.Config{
				Host: cfg.Jaeger.Host,
				Port: cfg.Jaeger.Port,
			})
			if err != nil {
				logger.Warn("[TRACING] init: %v", err)
				return
			}
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					closeTracer()
					return nil
				},
			})
		}),
	)
	if err := app.Err(); err != nil {
		log.Fatal(err)
	}
	app.Run()
}
