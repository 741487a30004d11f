package models

import "time"

type SignalKind string

const (
	SignalTriggered   SignalKind = "triggered"
	SignalDeepExtreme SignalKind = "deep_extreme"
)

// Signal — actionable-событие детектора: сетап перешёл в triggered
// или углубился в deep_extreme (второй, более сильный вход).
type Signal struct {
	Symbol    string
	Timeframe string
	Direction Direction
	Kind      SignalKind
	Price     float64
	RSI       float64
	Ts        time.Time
	Setup     Setup // снапшот на момент сигнала
	Reason    string
}
