package market_ws

import (
	"screener_bot/internal/modules/market_ws/service"

	"go.uber.org/fx"
)

// Module поднимает WS-стример свечей.
func Module() fx.Option {
	return fx.Module("market_ws",
		fx.Provide(
			service.NewClient, // *service.Client
		),
	)
}
