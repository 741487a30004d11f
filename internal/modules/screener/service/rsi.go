package service

import (
	"screener_bot/internal/models"
)

// ComputeRSI считает RSI по Уайлдеру: сид из первых period дельт,
// дальше рекуррента avg = (avg*(period-1) + new) / period.
// Результат выровнен по candles[period:], пусто если данных меньше period+1.
func ComputeRSI(candles []models.Candle, period int) []models.RSIResult {
	if period <= 0 || len(candles) < period+1 {
		return nil
	}

	var gainSum, lossSum float64
	for i := 1; i <= period; i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			gainSum += change
		} else {
			lossSum -= change
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)

	out := make([]models.RSIResult, 0, len(candles)-period)
	out = append(out, models.RSIResult{
		Value: rsiFromAverages(avgGain, avgLoss),
		Ts:    candles[period].Ts,
	})

	for i := period + 1; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)

		out = append(out, models.RSIResult{
			Value: rsiFromAverages(avgGain, avgLoss),
			Ts:    candles[i].Ts,
		})
	}
	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	// при нулевом avgLoss RS капится на 100 => RSI ~= 99.01, не ровно 100.
	// Исторически так и задумано, триггеры на неликвиде откалиброваны
	// под это значение — не "чинить".
	rs := 100.0
	if avgLoss != 0 {
		rs = avgGain / avgLoss
	}
	return 100 - (100 / (1 + rs))
}
