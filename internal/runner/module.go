package runner

import (
	"context"

	"go.uber.org/fx"

	"screener_bot/internal/modules/config"
	"screener_bot/internal/notify"
	"screener_bot/pkg/logger"
)

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			// Notifier: если телеграм не настроен — stdout
			func(cfg *config.Config) notify.Notifier {
				if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
					if tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID); err == nil {
						return tg
					}
					logger.Warn("[NOTIFY] telegram init failed, fallback to stdout")
				}
				return notify.NewStdout()
			},
			NewRunner, // *Runner
		),
		fx.Invoke(func(
			lc fx.Lifecycle,
			r *Runner,
			n notify.Notifier,
			ctx context.Context,
		) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					if tg, ok := n.(*notify.Telegram); ok {
						tg.SetPositionsProvider(r)
						if err := tg.Start(ctx); err != nil {
							return err
						}
					}
					go r.Start(ctx)
					return nil
				},
				OnStop: func(stopCtx context.Context) error {
					r.Shutdown(stopCtx)
					if tg, ok := n.(*notify.Telegram); ok {
						tg.Stop()
					}
					return nil
				},
			})
		}),
	)
}
