package helper

import (
	"strings"
	"time"
)

func NormTF(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	s = strings.TrimPrefix(s, "candle")
	switch s {
	case "60m", "1h":
		return "1H"
	case "4h", "240m":
		return "4H"
	case "1d", "24h":
		return "1D"
	default:
		return s
	}
}

// TFDuration — длительность одной свечи таймфрейма.
// Неизвестный таймфрейм считаем минутным, чтобы валидити-окно
// не раздувалось молча.
func TFDuration(tf string) time.Duration {
	switch NormTF(tf) {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1H":
		return time.Hour
	case "4H":
		return 4 * time.Hour
	case "1D":
		return 24 * time.Hour
	default:
		return time.Minute
	}
}
