package paper

import (
	"fmt"
	"sync"
	"time"

	"screener_bot/internal/models"
	"screener_bot/internal/modules/config"
)

// минимальная маржа на позицию, меньше не открываем
const minMargin = 1.0

// Engine — движок жизненного цикла позиций. Один и тот же код крутит
// и лайв-скан, и бэктест: сигнал + риск-конфиг на входе, закрытая
// позиция с посчитанным PnL на выходе. Нарушение инвариантов
// (ослабление стопа, отрицательная маржа) — это баг, а не данные,
// поэтому паника.
type Engine struct {
	botID string
	cfg   config.RiskConfig
	costs *CostModel

	mu         sync.Mutex
	balance    float64
	open       map[string]*models.Position
	closed     []*models.Position
	lastPrice  map[string]float64
	lastRegime map[string]VolatilityRegime
	seq        int
}

func NewEngine(botID string, cfg config.RiskConfig, costs *CostModel, startBalance float64) *Engine {
	return &Engine{
		botID:      botID,
		cfg:        cfg,
		costs:      costs,
		balance:    startBalance,
		open:       make(map[string]*models.Position),
		lastPrice:  make(map[string]float64),
		lastRegime: make(map[string]VolatilityRegime),
	}
}

// Open открывает позицию по сигналу. nil без сайд-эффектов, если:
// направление запрещено longOnly, по ключу уже есть живая позиция,
// маржа меньше минимума или упёрлись в лимит открытых.
func (e *Engine) Open(sig models.Signal, dir models.Direction, regime VolatilityRegime) *models.Position {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cfg.LongOnly && dir != models.DirLong {
		return nil
	}

	key := sig.Symbol + "|" + sig.Timeframe
	if _, exists := e.open[key]; exists {
		return nil
	}

	margin := e.balance * e.cfg.PositionSizePercent / 100
	if margin < 0 {
		panic(fmt.Sprintf("paper: negative margin %.4f (balance %.4f)", margin, e.balance))
	}
	if margin < minMargin {
		return nil
	}

	if e.cfg.MaxOpenPositions > 0 && len(e.open) >= e.cfg.MaxOpenPositions {
		return nil
	}

	notional := margin * e.cfg.Leverage
	fill := e.costs.EntryFill(sig.Price, notional, dir, regime)

	// ROI% -> price%: на плече дистанция до стопа в цене в leverage раз уже
	pricePct := e.cfg.InitialStopLossPercent / 100 / e.cfg.Leverage
	var stop float64
	if dir == models.DirLong {
		stop = fill.EffectivePrice * (1 - pricePct)
	} else {
		stop = fill.EffectivePrice * (1 + pricePct)
	}

	e.seq++
	p := &models.Position{
		ID:        fmt.Sprintf("%s-%d", e.botID, e.seq),
		Symbol:    sig.Symbol,
		Timeframe: sig.Timeframe,
		Direction: dir,

		EntryPrice:          sig.Price,
		EffectiveEntryPrice: fill.EffectivePrice,
		MarginUsed:          margin,
		NotionalSize:        notional,
		Leverage:            e.cfg.Leverage,

		InitialStopLossPrice: stop,
		CurrentStopLossPrice: stop,

		EntryCosts: fill.Cost,

		OpenedAt:  sig.Ts,
		UpdatedAt: sig.Ts,
		Status:    models.PositionOpen,
	}

	e.balance -= margin
	e.open[key] = p
	e.lastPrice[key] = sig.Price
	e.lastRegime[key] = regime

	return p
}

// UpdateCandle прогоняет закрытую свечу через позицию по ключу.
// Порядок намеренно пессимистичный: сначала худший экскурс свечи
// против стопа, и только потом маркировка по close (HWM, трейл).
// Иначе симуляция завышает результат. Возвращает позицию, если
// свеча её закрыла.
func (e *Engine) UpdateCandle(symbol, tf string, c models.Candle, regime VolatilityRegime) *models.Position {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := symbol + "|" + tf
	p, ok := e.open[key]
	if !ok {
		return nil
	}

	e.lastPrice[key] = c.Close
	e.lastRegime[key] = regime

	worst := c.Low
	if p.Direction == models.DirShort {
		worst = c.High
	}
	if stopBreached(p, worst) {
		return e.closeLocked(key, p, p.CurrentStopLossPrice, stopReason(p, e.cfg), c.Ts)
	}

	e.mark(p, c.Close, c.Ts)
	return nil
}

// UpdatePrice — тиковое обновление без экскурсов (лайв-цена).
func (e *Engine) UpdatePrice(symbol, tf string, price float64, ts time.Time) *models.Position {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := symbol + "|" + tf
	p, ok := e.open[key]
	if !ok {
		return nil
	}

	e.lastPrice[key] = price

	if stopBreached(p, price) {
		return e.closeLocked(key, p, p.CurrentStopLossPrice, stopReason(p, e.cfg), ts)
	}
	e.mark(p, price, ts)
	return nil
}

// mark обновляет HWM и двигает трейл-стоп. Стоп только ужесточается.
func (e *Engine) mark(p *models.Position, price float64, ts time.Time) {
	roi := p.ROIPercent(price)
	if roi > p.HighWaterMark {
		p.HighWaterMark = roi
	}
	p.UpdatedAt = ts

	if p.HighWaterMark < e.cfg.TrailTriggerPercent {
		return
	}

	level := 1
	if e.cfg.TrailStepPercent > 0 {
		level = 1 + int((p.HighWaterMark-e.cfg.TrailTriggerPercent)/e.cfg.TrailStepPercent)
	}
	if level <= p.TrailLevel {
		return
	}
	p.TrailLevel = level

	// уровень n фиксирует level1Lock + (n-1)*step ROI%
	lockROI := e.cfg.Level1LockPercent + float64(level-1)*e.cfg.TrailStepPercent
	pricePct := lockROI / 100 / p.Leverage

	var cand float64
	if p.Direction == models.DirLong {
		cand = p.EffectiveEntryPrice * (1 + pricePct)
		if cand > p.CurrentStopLossPrice {
			p.CurrentStopLossPrice = cand
		}
	} else {
		cand = p.EffectiveEntryPrice * (1 - pricePct)
		if cand < p.CurrentStopLossPrice {
			p.CurrentStopLossPrice = cand
		}
	}
}

func stopBreached(p *models.Position, price float64) bool {
	if p.Direction == models.DirLong {
		return price <= p.CurrentStopLossPrice
	}
	return price >= p.CurrentStopLossPrice
}

func stopReason(p *models.Position, cfg config.RiskConfig) models.ExitReason {
	switch {
	case p.TrailLevel == 0:
		return models.ExitInitialStop
	case p.TrailLevel == 1 && cfg.Level1LockPercent <= 0:
		return models.ExitBreakevenStop
	default:
		return models.ExitTrailingStop
	}
}

// Close принудительно закрывает позицию по ключу по указанной цене.
func (e *Engine) Close(symbol, tf string, price float64, reason models.ExitReason, ts time.Time) *models.Position {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := symbol + "|" + tf
	p, ok := e.open[key]
	if !ok {
		return nil
	}
	return e.closeLocked(key, p, price, reason, ts)
}

// CloseAll добивает все открытые позиции по последней известной цене.
// Поток кончился — позиций в подвешенном состоянии не оставляем.
func (e *Engine) CloseAll(ts time.Time) []*models.Position {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*models.Position, 0, len(e.open))
	for key, p := range e.open {
		price := e.lastPrice[key]
		if price == 0 {
			price = p.EffectiveEntryPrice
		}
		out = append(out, e.closeLocked(key, p, price, models.ExitEndOfData, ts))
	}
	return out
}

func (e *Engine) closeLocked(key string, p *models.Position, exitPrice float64, reason models.ExitReason, ts time.Time) *models.Position {
	regime, ok := e.lastRegime[key]
	if !ok {
		regime = RegimeNormal
	}
	fill := e.costs.ExitFill(exitPrice, p.NotionalSize, p.Direction, regime)

	gross := p.PriceChangeRatio(fill.EffectivePrice) * p.NotionalSize

	p.ExitCosts = fill.Cost
	p.ExitPrice = exitPrice
	p.ExitReason = reason
	p.RealizedPnL = gross - p.EntryCosts - p.ExitCosts
	p.RealizedPnLPercent = p.RealizedPnL / p.MarginUsed * 100
	p.Status = models.PositionClosed
	p.ClosedAt = ts
	p.UpdatedAt = ts

	e.balance += p.MarginUsed + p.RealizedPnL

	delete(e.open, key)
	delete(e.lastPrice, key)
	delete(e.lastRegime, key)
	e.closed = append(e.closed, p)

	return p
}

func (e *Engine) Balance() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balance
}

func (e *Engine) OpenPositions() []models.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Position, 0, len(e.open))
	for _, p := range e.open {
		out = append(out, *p)
	}
	return out
}

func (e *Engine) ClosedPositions() []models.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Position, 0, len(e.closed))
	for _, p := range e.closed {
		out = append(out, *p)
	}
	return out
}

func (e *Engine) OpenCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.open)
}
