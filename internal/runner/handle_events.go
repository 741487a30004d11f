package runner

import (
	"context"

	"screener_bot/internal/models"
	scrsvc "screener_bot/internal/modules/screener/service"
	"screener_bot/internal/paper"
	"screener_bot/pkg/logger"
)

// handleEvents разруливает переходы детектора: сигналы раздаются
// ботам, остальное только логируется.
func (r *Runner) handleEvents(ctx context.Context, events []scrsvc.Event, regime paper.VolatilityRegime) {
	for _, ev := range events {
		switch {
		case ev.Signal != nil:
			r.handleSignal(ctx, *ev.Signal, regime)
		case ev.To == models.StateWatching:
			logger.Info("[SETUP] %s watching: impulse %.2f%%",
				ev.Setup.Key(), ev.Setup.ImpulsePercentMove)
		case ev.To == models.StatePlayedOut:
			logger.Info("[SETUP] %s played out", ev.Setup.Key())
		}
	}
}

// handleSignal: политика каждого бота решает сторону, движок —
// всё остальное. Отказ движка (nil) — это не ошибка.
func (r *Runner) handleSignal(ctx context.Context, sig models.Signal, regime paper.VolatilityRegime) {
	r.n.Sendf("🔔 [%s %s] %s %s | RSI %.1f @ %.6f (%s)",
		sig.Symbol, sig.Timeframe, sig.Kind, sig.Direction, sig.RSI, sig.Price, sig.Setup.QualityTier)

	for _, b := range r.bots {
		dir, ok := b.Policy.Decide(sig)
		if !ok {
			continue
		}

		pos := b.Engine.Open(sig, dir, regime)
		if pos == nil {
			continue
		}

		r.recordOpen(ctx, b, pos)
		r.n.Sendf("✅ [%s] %s открыл %s %s margin=%.2f lev=%.0fx SL=%.6f",
			pos.Symbol, b.ID, dir, pos.Timeframe, pos.MarginUsed, pos.Leverage, pos.CurrentStopLossPrice)
	}
}

func (r *Runner) recordOpen(ctx context.Context, b *Bot, pos *models.Position) {
	ev := models.TradeEvent{
		BotID:      b.ID,
		PositionID: pos.ID,
		Type:       models.TradeOpened,
		Symbol:     pos.Symbol,
		Timeframe:  pos.Timeframe,
		Direction:  pos.Direction,
		Ts:         pos.OpenedAt,
		Position:   *pos,
	}
	if err := r.sink.Record(ctx, ev); err != nil {
		logger.Error("[SINK] open %s/%s: %v", b.ID, pos.ID, err)
	}
}

func (r *Runner) recordClose(ctx context.Context, b *Bot, pos *models.Position) {
	ev := models.TradeEvent{
		BotID:      b.ID,
		PositionID: pos.ID,
		Type:       models.TradeClosed,
		Symbol:     pos.Symbol,
		Timeframe:  pos.Timeframe,
		Direction:  pos.Direction,
		Ts:         pos.ClosedAt,
		Position:   *pos,
	}
	if err := r.sink.Record(ctx, ev); err != nil {
		logger.Error("[SINK] close %s/%s: %v", b.ID, pos.ID, err)
	}

	emoji := "🟥"
	if pos.RealizedPnL >= 0 {
		emoji = "🟩"
	}
	r.n.Sendf("%s [%s] %s закрыл %s: %s | PnL %.2f (%.1f%%) | баланс %.2f",
		emoji, pos.Symbol, b.ID, pos.Direction, pos.ExitReason,
		pos.RealizedPnL, pos.RealizedPnLPercent, b.Engine.Balance())
}
