package screener

import (
	"screener_bot/internal/modules/config"
	"screener_bot/internal/modules/screener/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("screener",
		fx.Provide(
			func(cfg *config.Config) *service.Detector {
				return service.NewDetector(cfg.Screener)
			},
		),
	)
}
