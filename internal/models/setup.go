package models

import "time"

type Direction string

const (
	DirLong  Direction = "long"
	DirShort Direction = "short"
)

func (d Direction) Opposite() Direction {
	if d == DirLong {
		return DirShort
	}
	return DirLong
}

type SetupState string

// Порядок состояний фиксированный, переходы только вперёд.
// played_out достижим из любого нетерминального состояния и терминален.
const (
	StateWatching    SetupState = "watching"
	StateTriggered   SetupState = "triggered"
	StateDeepExtreme SetupState = "deep_extreme"
	StateReversing   SetupState = "reversing"
	StatePlayedOut   SetupState = "played_out"
)

var stateRank = map[SetupState]int{
	StateWatching:    0,
	StateTriggered:   1,
	StateDeepExtreme: 2,
	StateReversing:   3,
	StatePlayedOut:   4,
}

// CanTransition: только вперёд по порядку, из played_out выхода нет.
// Из watching нельзя перескочить сразу в deep_extreme: цена входа
// фиксируется на triggered, углубление идёт отдельным переходом.
func (s SetupState) CanTransition(to SetupState) bool {
	if s == StatePlayedOut {
		return false
	}
	if to == StatePlayedOut {
		return true
	}
	if s == StateWatching {
		return to == StateTriggered
	}
	return stateRank[to] > stateRank[s]
}

type QualityTier string

const (
	TierBluechip QualityTier = "bluechip"
	TierMidcap   QualityTier = "midcap"
	TierShitcoin QualityTier = "shitcoin"
)

type DivergenceType string

const (
	DivBullish DivergenceType = "bullish"
	DivBearish DivergenceType = "bearish"
)

type Divergence struct {
	Type        DivergenceType
	Strength    float64 // 0..1
	Description string
}

// Setup — один живой сетап на (symbol, timeframe, direction).
// Создаёт и мутирует его только детектор; после played_out запись
// инертна и вычищается ретеншеном.
type Setup struct {
	Symbol     string
	Timeframe  string
	Direction  Direction
	MarketType MarketType

	// импульс
	ImpulseHigh        float64
	ImpulseLow         float64
	ImpulseStartTime   time.Time
	ImpulseEndTime     time.Time
	ImpulsePercentMove float64

	// RSI
	CurrentRSI   float64
	RSIAtTrigger float64

	// цены
	CurrentPrice float64
	EntryPrice   float64 // фиксируется один раз на триггере

	DetectedAt  time.Time
	TriggeredAt time.Time
	LastUpdated time.Time
	PlayedOutAt time.Time

	// объём / качество
	ImpulseAvgVolume  float64
	PullbackAvgVolume float64
	VolumeContracting bool
	Volume24h         float64
	QualityTier       QualityTier

	// опциональные подтверждения, на переходы не влияют
	HigherTFBullish bool
	Divergence      *Divergence

	State SetupState
}

func (s *Setup) Key() string {
	return s.Symbol + "|" + s.Timeframe + "|" + string(s.Direction)
}

func (s *Setup) IsTerminal() bool { return s.State == StatePlayedOut }

// Actionable — состояния, в которых сетап может стать сделкой.
func (s *Setup) Actionable() bool {
	return s.State == StateTriggered || s.State == StateDeepExtreme
}
