package models

import "time"

type MarketType string

const (
	MarketSpot    MarketType = "spot"
	MarketFutures MarketType = "futures"
)

// Candle — закрытая свеча. Ядро не заполняет дыры в истории,
// это забота провайдера данных.
type Candle struct {
	Ts          time.Time
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
	QuoteVolume float64
}

// RSIResult выровнен по candles[period:].
type RSIResult struct {
	Value float64 // [0..100]
	Ts    time.Time
}

type Ticker struct {
	Symbol    string
	Last      float64
	Volume24h float64 // quote volume за сутки
	UpdatedAt time.Time
}
