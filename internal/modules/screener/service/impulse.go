package service

import (
	"time"

	"screener_bot/internal/models"
)

// Impulse — найденное импульсное движение. Direction — сторона
// сделки на возврат к среднему: после падения ловим long, после
// выноса вверх — short.
type Impulse struct {
	Direction   models.Direction
	High        float64
	Low         float64
	StartTime   time.Time
	EndTime     time.Time
	PercentMove float64 // всегда положительный
	AvgVolume   float64 // средний объём свечей импульса
}

// FindImpulse ищет в последних lookback свечах движение не меньше
// minPct% в сторону, противоположную dir (для long-сетапа — падение).
// Возвращает самое сильное. nil — импульса нет.
func FindImpulse(candles []models.Candle, dir models.Direction, lookback int, minPct float64) *Impulse {
	if len(candles) == 0 || minPct <= 0 {
		return nil
	}
	if lookback > 0 && len(candles) > lookback {
		candles = candles[len(candles)-lookback:]
	}

	var best *Impulse

	if dir == models.DirLong {
		// падение: бежим слева, помним максимум, меряем просадку до текущего low
		maxHigh := candles[0].High
		maxIdx := 0
		for i := 1; i < len(candles); i++ {
			if candles[i].High > maxHigh {
				maxHigh = candles[i].High
				maxIdx = i
				continue
			}
			if maxHigh <= 0 {
				continue
			}
			drop := (maxHigh - candles[i].Low) / maxHigh * 100
			if drop >= minPct && (best == nil || drop > best.PercentMove) {
				best = &Impulse{
					Direction:   models.DirLong,
					High:        maxHigh,
					Low:         candles[i].Low,
					StartTime:   candles[maxIdx].Ts,
					EndTime:     candles[i].Ts,
					PercentMove: drop,
					AvgVolume:   avgVolume(candles[maxIdx : i+1]),
				}
			}
		}
		return best
	}

	// вынос вверх: минимум слева, рост до текущего high
	minLow := candles[0].Low
	minIdx := 0
	for i := 1; i < len(candles); i++ {
		if candles[i].Low < minLow {
			minLow = candles[i].Low
			minIdx = i
			continue
		}
		if minLow <= 0 {
			continue
		}
		rise := (candles[i].High - minLow) / minLow * 100
		if rise >= minPct && (best == nil || rise > best.PercentMove) {
			best = &Impulse{
				Direction:   models.DirShort,
				High:        candles[i].High,
				Low:         minLow,
				StartTime:   candles[minIdx].Ts,
				EndTime:     candles[i].Ts,
				PercentMove: rise,
				AvgVolume:   avgVolume(candles[minIdx : i+1]),
			}
		}
	}
	return best
}

func avgVolume(candles []models.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	var sum float64
	for _, c := range candles {
		sum += c.Volume
	}
	return sum / float64(len(candles))
}
