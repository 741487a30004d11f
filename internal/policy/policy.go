package policy

import (
	"fmt"

	"screener_bot/internal/models"
)

// Policy — вся "стратегия" бота: чистый предикат над сетапом.
// Никакого собственного стейта, движки и так всё помнят.
type Policy interface {
	Name() string
	// Decide возвращает направление сделки по сигналу, ok=false — скип.
	Decide(sig models.Signal) (models.Direction, bool)
}

// New — фабрика вариантов: trend | fade | htf_align.
func New(name string) (Policy, error) {
	switch name {
	case "trend":
		return Trend{}, nil
	case "fade":
		return Fade{}, nil
	case "htf_align":
		return HTFAlign{}, nil
	default:
		return nil, fmt.Errorf("unknown policy %q", name)
	}
}

// Trend следует направлению самого сетапа.
type Trend struct{}

func (Trend) Name() string { return "trend" }

func (Trend) Decide(sig models.Signal) (models.Direction, bool) {
	return sig.Direction, true
}

// Fade торгует против сигнала.
type Fade struct{}

func (Fade) Name() string { return "fade" }

func (Fade) Decide(sig models.Signal) (models.Direction, bool) {
	return sig.Direction.Opposite(), true
}

// HTFAlign сверяет сигнал со старшим таймфреймом: совпадает —
// берём как есть, конфликтует — обычный сигнал скипаем, а
// deep_extreme переворачиваем в сторону макро-биаса.
type HTFAlign struct{}

func (HTFAlign) Name() string { return "htf_align" }

func (HTFAlign) Decide(sig models.Signal) (models.Direction, bool) {
	bias := models.DirShort
	if sig.Setup.HigherTFBullish {
		bias = models.DirLong
	}

	if sig.Direction == bias {
		return sig.Direction, true
	}
	if sig.Kind == models.SignalDeepExtreme {
		return bias, true
	}
	return "", false
}
