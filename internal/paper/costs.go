package paper

import (
	"math/rand"
	"time"

	"screener_bot/internal/models"
	"screener_bot/internal/modules/config"
)

type VolatilityRegime string

const (
	RegimeNormal   VolatilityRegime = "normal"
	RegimeElevated VolatilityRegime = "elevated"
	RegimeExtreme  VolatilityRegime = "extreme"
)

// Fill — результат исполнения: цена после слиппеджа и комиссия.
type Fill struct {
	EffectivePrice float64
	Cost           float64
}

// CostModel — модель стоимости исполнения. Слиппедж всегда против
// позиции, комиссия от нотионала. "Плохой филл" — единственный
// источник случайности, rng сидируется из конфига, чтобы бэктест
// был бит-в-бит воспроизводим.
type CostModel struct {
	cfg config.CostConfig
	rng *rand.Rand
}

func NewCostModel(cfg config.CostConfig) *CostModel {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &CostModel{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// EntryFill — вход: long заходит дороже, short — дешевле.
func (m *CostModel) EntryFill(price, notional float64, dir models.Direction, regime VolatilityRegime) Fill {
	slip := m.slippagePct(regime)
	if dir == models.DirLong {
		return m.fill(price*(1+slip/100), notional)
	}
	return m.fill(price*(1-slip/100), notional)
}

// ExitFill — выход: long выходит дешевле, short — дороже.
func (m *CostModel) ExitFill(price, notional float64, dir models.Direction, regime VolatilityRegime) Fill {
	slip := m.slippagePct(regime)
	if dir == models.DirLong {
		return m.fill(price*(1-slip/100), notional)
	}
	return m.fill(price*(1+slip/100), notional)
}

func (m *CostModel) fill(effective, notional float64) Fill {
	return Fill{
		EffectivePrice: effective,
		Cost:           notional * m.cfg.FeePercent / 100,
	}
}

func (m *CostModel) slippagePct(regime VolatilityRegime) float64 {
	var base, badProb float64
	switch regime {
	case RegimeElevated:
		base, badProb = m.cfg.SlippageElevatedPct, m.cfg.BadFillProbElevated
	case RegimeExtreme:
		base, badProb = m.cfg.SlippageExtremePct, m.cfg.BadFillProbExtreme
	default:
		base, badProb = m.cfg.SlippageNormalPct, m.cfg.BadFillProbNormal
	}
	if badProb > 0 && m.rng.Float64() < badProb {
		base += m.cfg.BadFillExtraPct
	}
	return base
}

// RegimeFor — режим волатильности по среднему диапазону последних свечей.
func RegimeFor(candles []models.Candle) VolatilityRegime {
	const window = 14
	if len(candles) == 0 {
		return RegimeNormal
	}
	if len(candles) > window {
		candles = candles[len(candles)-window:]
	}
	var sum float64
	n := 0
	for _, c := range candles {
		if c.Close <= 0 {
			continue
		}
		sum += (c.High - c.Low) / c.Close * 100
		n++
	}
	if n == 0 {
		return RegimeNormal
	}
	avg := sum / float64(n)
	switch {
	case avg >= 5:
		return RegimeExtreme
	case avg >= 2:
		return RegimeElevated
	default:
		return RegimeNormal
	}
}
