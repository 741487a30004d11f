package models

import "time"

type PositionStatus string

const (
	PositionOpen   PositionStatus = "open"
	PositionClosed PositionStatus = "closed"
)

type ExitReason string

const (
	ExitInitialStop   ExitReason = "initial_stop"
	ExitBreakevenStop ExitReason = "breakeven_stop"
	ExitTrailingStop  ExitReason = "trailing_stop"
	ExitEndOfData     ExitReason = "end_of_data"
	ExitForced        ExitReason = "forced"
)

// Position — плечевая позиция движка. Инварианты:
// стоп двигается только в сторону защиты профита, HighWaterMark и
// TrailLevel не убывают, NotionalSize фиксируется на открытии.
type Position struct {
	ID        string
	Symbol    string
	Timeframe string
	Direction Direction

	EntryPrice          float64 // запрошенная цена
	EffectiveEntryPrice float64 // после слиппеджа
	MarginUsed          float64
	NotionalSize        float64 // MarginUsed * Leverage
	Leverage            float64

	InitialStopLossPrice float64
	CurrentStopLossPrice float64
	HighWaterMark        float64 // пик ROI%
	TrailLevel           int

	EntryCosts float64
	ExitCosts  float64

	OpenedAt  time.Time
	UpdatedAt time.Time
	ClosedAt  time.Time

	Status             PositionStatus
	ExitPrice          float64
	ExitReason         ExitReason
	RealizedPnL        float64
	RealizedPnLPercent float64
}

func (p *Position) Key() string {
	return p.Symbol + "|" + p.Timeframe
}

// PriceChangeRatio — доля изменения цены в сторону позиции.
func (p *Position) PriceChangeRatio(price float64) float64 {
	if p.EffectiveEntryPrice == 0 {
		return 0
	}
	if p.Direction == DirLong {
		return (price - p.EffectiveEntryPrice) / p.EffectiveEntryPrice
	}
	return (p.EffectiveEntryPrice - price) / p.EffectiveEntryPrice
}

// UnrealizedPnL на открытой позиции; входные косты уже вычтены.
func (p *Position) UnrealizedPnL(price float64) float64 {
	return p.PriceChangeRatio(price)*p.NotionalSize - p.EntryCosts
}

// ROIPercent — нереализованный ROI% к марже.
func (p *Position) ROIPercent(price float64) float64 {
	if p.MarginUsed == 0 {
		return 0
	}
	return p.UnrealizedPnL(price) / p.MarginUsed * 100
}
