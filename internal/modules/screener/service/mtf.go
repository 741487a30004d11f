package service

import "screener_bot/internal/models"

const (
	htfEmaFast = 20
	htfEmaSlow = 50
)

// HigherTFBullish — направление старшего таймфрейма: EMA20 > EMA50
// по закрытиям. Чисто информационное подтверждение.
func HigherTFBullish(candles []models.Candle) bool {
	if len(candles) < htfEmaSlow {
		return false
	}
	fast := emaLast(candles, htfEmaFast)
	slow := emaLast(candles, htfEmaSlow)
	return fast > slow
}

func emaLast(candles []models.Candle, period int) float64 {
	k := 2.0 / float64(period+1)
	ema := candles[0].Close
	for i := 1; i < len(candles); i++ {
		ema = ema + k*(candles[i].Close-ema)
	}
	return ema
}
