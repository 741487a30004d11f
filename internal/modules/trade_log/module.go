package trade_log

import (
	"screener_bot/internal/modules/config"
	"screener_bot/internal/modules/trade_log/service"
	"screener_bot/internal/modules/trade_log/service/pg"
	"screener_bot/pkg/db"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("trade_log",
		fx.Provide(
			func(cfg *config.Config, tm *db.PgTxManager) service.Sink {
				if cfg.DB == "" || tm == nil {
					return service.NewStdoutSink()
				}
				return pg.New(tm)
			},
		),
	)
}
