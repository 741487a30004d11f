package market_data

import (
	"screener_bot/internal/modules/market_data/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("market_data",
		fx.Provide(
			service.NewClient, // *service.Client
		),
	)
}
