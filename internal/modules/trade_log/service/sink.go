package service

import (
	"context"

	"screener_bot/internal/models"
	"screener_bot/pkg/logger"
)

// Sink — append-only сток событий сделок, ключ (botId, positionId).
type Sink interface {
	Record(ctx context.Context, ev models.TradeEvent) error
}

// StdoutSink — фолбэк без базы (бэктест, локальный прогон).
type StdoutSink struct{}

func NewStdoutSink() *StdoutSink { return &StdoutSink{} }

func (s *StdoutSink) Record(_ context.Context, ev models.TradeEvent) error {
	logger.Info("[TRADE] bot=%s pos=%s %s %s %s pnl=%.4f",
		ev.BotID, ev.PositionID, ev.Type, ev.Symbol, ev.Direction, ev.Position.RealizedPnL)
	return nil
}
