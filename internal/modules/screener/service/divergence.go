package service

import (
	"fmt"
	"math"

	"screener_bot/internal/models"
)

// DetectDivergence сравнивает два последних локальных экстремума RSI
// с ценой на тех же свечах. Цена ниже при RSI выше — бычья дивергенция,
// зеркально — медвежья. rsi выровнен по candles[period:].
func DetectDivergence(candles []models.Candle, rsi []models.RSIResult, period int) *models.Divergence {
	if len(rsi) < 5 {
		return nil
	}

	if lo2, lo1, ok := lastTwoExtremes(rsi, false); ok {
		priceLo1 := candles[lo1+period].Low
		priceLo2 := candles[lo2+period].Low
		if priceLo2 < priceLo1 && rsi[lo2].Value > rsi[lo1].Value {
			strength := math.Min((rsi[lo2].Value-rsi[lo1].Value)/10, 1)
			return &models.Divergence{
				Type:     models.DivBullish,
				Strength: strength,
				Description: fmt.Sprintf("price LL %.6f<%.6f, RSI HL %.1f>%.1f",
					priceLo2, priceLo1, rsi[lo2].Value, rsi[lo1].Value),
			}
		}
	}

	if hi2, hi1, ok := lastTwoExtremes(rsi, true); ok {
		priceHi1 := candles[hi1+period].High
		priceHi2 := candles[hi2+period].High
		if priceHi2 > priceHi1 && rsi[hi2].Value < rsi[hi1].Value {
			strength := math.Min((rsi[hi1].Value-rsi[hi2].Value)/10, 1)
			return &models.Divergence{
				Type:     models.DivBearish,
				Strength: strength,
				Description: fmt.Sprintf("price HH %.6f>%.6f, RSI LH %.1f<%.1f",
					priceHi2, priceHi1, rsi[hi2].Value, rsi[hi1].Value),
			}
		}
	}

	return nil
}

// lastTwoExtremes возвращает индексы двух последних локальных
// минимумов (или максимумов) в rsi: сначала более свежий.
func lastTwoExtremes(rsi []models.RSIResult, peaks bool) (recent, prior int, ok bool) {
	found := make([]int, 0, 2)
	for i := len(rsi) - 2; i >= 1 && len(found) < 2; i-- {
		v := rsi[i].Value
		if peaks {
			if v > rsi[i-1].Value && v >= rsi[i+1].Value {
				found = append(found, i)
			}
		} else {
			if v < rsi[i-1].Value && v <= rsi[i+1].Value {
				found = append(found, i)
			}
		}
	}
	if len(found) < 2 {
		return 0, 0, false
	}
	return found[0], found[1], true
}
