package models

import "time"

type TradeEventType string

const (
	TradeOpened TradeEventType = "opened"
	TradeClosed TradeEventType = "closed"
)

// TradeEvent — append-only запись для стока событий,
// ключ (BotID, PositionID).
type TradeEvent struct {
	BotID      string
	PositionID string
	Type       TradeEventType
	Symbol     string
	Timeframe  string
	Direction  Direction
	Ts         time.Time
	Position   Position // полный снапшот на момент события
}
