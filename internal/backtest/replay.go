package backtest

import (
	"sort"
	"time"

	"screener_bot/internal/models"
	"screener_bot/internal/modules/config"
	scrsvc "screener_bot/internal/modules/screener/service"
	"screener_bot/internal/paper"
	"screener_bot/internal/policy"
)

// Config — параметры одного прогона. Costs.Seed обязан быть
// ненулевым, если нужен воспроизводимый результат.
type Config struct {
	Timeframe  string
	MarketType models.MarketType

	Screener config.ScreenerConfig
	Risk     config.RiskConfig
	Costs    config.CostConfig

	Policy policy.Policy

	WindowBars   int // скользящее окно истории для детектора
	StartBalance float64
}

type Result struct {
	BotID        string
	StartBalance float64
	EndBalance   float64

	Trades []models.Position
	Wins   int
	Losses int

	WinRate        float64
	ProfitFactor   float64
	NetPnL         float64
	MaxDrawdownPct float64
}

// Run — синхронный реплей, строго по возрастанию времени.
// Никакой сети и никакого незасеянного рандома: один и тот же вход
// плюс один сид дают бит-в-бит одинаковые сделки.
func Run(cfg Config, candlesBySymbol map[string][]models.Candle) *Result {
	detector := scrsvc.NewDetector(cfg.Screener)
	engine := paper.NewEngine(cfg.Policy.Name(), cfg.Risk, paper.NewCostModel(cfg.Costs), cfg.StartBalance)

	type step struct {
		sym string
		c   models.Candle
	}
	var steps []step
	for sym, candles := range candlesBySymbol {
		for _, c := range candles {
			steps = append(steps, step{sym: sym, c: c})
		}
	}
	// сортировка по (ts, symbol) — детерминированный порядок
	sort.Slice(steps, func(i, j int) bool {
		if !steps[i].c.Ts.Equal(steps[j].c.Ts) {
			return steps[i].c.Ts.Before(steps[j].c.Ts)
		}
		return steps[i].sym < steps[j].sym
	})

	window := cfg.WindowBars
	if window <= 0 {
		window = 200
	}

	buffers := make(map[string][]models.Candle, len(candlesBySymbol))
	var lastTs time.Time

	peak := cfg.StartBalance
	maxDD := 0.0

	for _, s := range steps {
		buf := append(buffers[s.sym], s.c)
		if len(buf) > window {
			buf = buf[len(buf)-window:]
		}
		buffers[s.sym] = buf
		lastTs = s.c.Ts

		regime := paper.RegimeFor(buf)

		// сначала стоп-чек по свече, потом новые сигналы с её закрытия
		engine.UpdateCandle(s.sym, cfg.Timeframe, s.c, regime)

		events := detector.OnCandles(s.sym, cfg.Timeframe, cfg.MarketType, buf)
		for _, ev := range events {
			if ev.Signal == nil {
				continue
			}
			dir, ok := cfg.Policy.Decide(*ev.Signal)
			if !ok {
				continue
			}
			engine.Open(*ev.Signal, dir, regime)
		}

		// просадка по реализованной кривой
		if b := engine.Balance(); b > peak {
			peak = b
		} else if peak > 0 {
			if dd := (peak - b) / peak * 100; dd > maxDD {
				maxDD = dd
			}
		}
	}

	// конец данных — все открытые закрываются по последней цене
	engine.CloseAll(lastTs)

	return summarize(cfg, engine, maxDD)
}

func summarize(cfg Config, engine *paper.Engine, maxDD float64) *Result {
	res := &Result{
		BotID:          cfg.Policy.Name(),
		StartBalance:   cfg.StartBalance,
		EndBalance:     engine.Balance(),
		Trades:         engine.ClosedPositions(),
		MaxDrawdownPct: maxDD,
	}

	var grossWin, grossLoss float64
	for _, t := range res.Trades {
		res.NetPnL += t.RealizedPnL
		if t.RealizedPnL >= 0 {
			res.Wins++
			grossWin += t.RealizedPnL
		} else {
			res.Losses++
			grossLoss -= t.RealizedPnL
		}
	}
	if n := len(res.Trades); n > 0 {
		res.WinRate = float64(res.Wins) / float64(n) * 100
	}
	if grossLoss > 0 {
		res.ProfitFactor = grossWin / grossLoss
	}
	return res
}
