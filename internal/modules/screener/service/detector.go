package service

import (
	"fmt"
	"sync"
	"time"

	"screener_bot/internal/helper"
	"screener_bot/internal/models"
	"screener_bot/internal/modules/config"
)

const rsiNeutral = 50.0

// Event — переход сетапа. Signal != nil только на actionable-переходах
// (triggered, deep_extreme).
type Event struct {
	From   models.SetupState
	To     models.SetupState
	Setup  models.Setup // снапшот после перехода
	Signal *models.Signal
}

// Detector держит по одному живому сетапу на (symbol, timeframe, direction).
// Мутации по контракту однопоточны в рамках символа, мьютекс нужен чтобы
// конкурентные символы не показали читателям полузаписанную мапу.
type Detector struct {
	cfg config.ScreenerConfig

	mu     sync.RWMutex
	setups map[string]*models.Setup
}

func NewDetector(cfg config.ScreenerConfig) *Detector {
	return &Detector{
		cfg:    cfg,
		setups: make(map[string]*models.Setup),
	}
}

// OnCandles прогоняет обе стороны по свежей истории свечей.
// candles — закрытые свечи по возрастанию времени.
func (d *Detector) OnCandles(symbol, tf string, mt models.MarketType, candles []models.Candle) []Event {
	rsi := ComputeRSI(candles, d.cfg.RSIPeriod)
	if len(rsi) == 0 {
		return nil
	}

	var events []Event
	for _, dir := range []models.Direction{models.DirLong, models.DirShort} {
		events = append(events, d.updateOne(symbol, tf, mt, dir, candles, rsi)...)
	}
	return events
}

func (d *Detector) updateOne(
	symbol, tf string,
	mt models.MarketType,
	dir models.Direction,
	candles []models.Candle,
	rsi []models.RSIResult,
) []Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	last := candles[len(candles)-1]
	curRSI := rsi[len(rsi)-1].Value
	now := last.Ts

	key := symbol + "|" + tf + "|" + string(dir)
	st := d.setups[key]

	var events []Event

	if st == nil || st.IsTerminal() {
		imp := FindImpulse(candles, dir, d.cfg.ImpulseLookback, d.cfg.MinImpulsePercent)
		if imp == nil {
			return nil
		}
		st = &models.Setup{
			Symbol:     symbol,
			Timeframe:  tf,
			Direction:  dir,
			MarketType: mt,

			ImpulseHigh:        imp.High,
			ImpulseLow:         imp.Low,
			ImpulseStartTime:   imp.StartTime,
			ImpulseEndTime:     imp.EndTime,
			ImpulsePercentMove: imp.PercentMove,
			ImpulseAvgVolume:   imp.AvgVolume,

			CurrentRSI:   curRSI,
			CurrentPrice: last.Close,
			DetectedAt:   now,
			LastUpdated:  now,
			State:        models.StateWatching,
		}
		d.setups[key] = st
		events = append(events, Event{From: "", To: models.StateWatching, Setup: *st})
	} else {
		st.CurrentRSI = curRSI
		st.CurrentPrice = last.Close
		st.LastUpdated = now
	}

	// объём отката после импульса
	if pull := candlesSince(candles, st.ImpulseEndTime); len(pull) > 0 {
		st.PullbackAvgVolume = avgVolume(pull)
		st.VolumeContracting = st.ImpulseAvgVolume > 0 && st.PullbackAvgVolume < st.ImpulseAvgVolume
	}

	// дивергенция — только ярлык, на переходы не влияет
	if div := DetectDivergence(candles, rsi, d.cfg.RSIPeriod); div != nil {
		st.Divergence = div
	}

	// валидити-окно: сетап без развязки протухает из любого состояния
	validity := time.Duration(d.cfg.SetupValidityBars) * helper.TFDuration(tf)
	if d.cfg.SetupValidityBars > 0 && now.Sub(st.DetectedAt) > validity {
		events = append(events, d.transition(st, models.StatePlayedOut, now))
		return events
	}

	entryHit, deepHit, recovered, neutral := d.zones(dir, curRSI)

	switch st.State {
	case models.StateWatching:
		if entryHit {
			// цена входа фиксируется ровно один раз
			if st.EntryPrice == 0 {
				st.EntryPrice = last.Close
			}
			st.RSIAtTrigger = curRSI
			st.TriggeredAt = now
			ev := d.transition(st, models.StateTriggered, now)
			ev.Signal = d.signal(st, models.SignalTriggered, last, curRSI)
			events = append(events, ev)

			if deepHit {
				ev := d.transition(st, models.StateDeepExtreme, now)
				ev.Signal = d.signal(st, models.SignalDeepExtreme, last, curRSI)
				events = append(events, ev)
			}
		}

	case models.StateTriggered:
		switch {
		case neutral:
			events = append(events, d.transition(st, models.StatePlayedOut, now))
		case deepHit:
			ev := d.transition(st, models.StateDeepExtreme, now)
			ev.Signal = d.signal(st, models.SignalDeepExtreme, last, curRSI)
			events = append(events, ev)
		case recovered:
			events = append(events, d.transition(st, models.StateReversing, now))
		}

	case models.StateDeepExtreme:
		switch {
		case neutral:
			events = append(events, d.transition(st, models.StatePlayedOut, now))
		case recovered:
			events = append(events, d.transition(st, models.StateReversing, now))
		}

	case models.StateReversing:
		if neutral {
			events = append(events, d.transition(st, models.StatePlayedOut, now))
		}
	}

	return events
}

// zones — пороги для стороны: entryHit — RSI в зоне входа, deepHit —
// в глубокой зоне, recovered — вернулся за порог входа в сторону середины,
// neutral — пересёк 50 против исходного экстремума.
func (d *Detector) zones(dir models.Direction, rsi float64) (entryHit, deepHit, recovered, neutral bool) {
	if dir == models.DirLong {
		entryHit = rsi <= d.cfg.RSIOversoldThreshold
		deepHit = rsi <= d.cfg.RSIDeepOversoldThreshold
		recovered = rsi > d.cfg.RSIOversoldThreshold
		neutral = rsi >= rsiNeutral
		return
	}
	entryHit = rsi >= d.cfg.RSIOverboughtThreshold
	deepHit = rsi >= d.cfg.RSIDeepOverboughtThreshold
	recovered = rsi < d.cfg.RSIOverboughtThreshold
	neutral = rsi <= rsiNeutral
	return
}

func (d *Detector) transition(st *models.Setup, to models.SetupState, now time.Time) Event {
	if !st.State.CanTransition(to) {
		// обратный переход — это баг детектора, не данные
		panic(fmt.Sprintf("setup %s: illegal transition %s -> %s", st.Key(), st.State, to))
	}
	from := st.State
	st.State = to
	st.LastUpdated = now
	if to == models.StatePlayedOut {
		st.PlayedOutAt = now
	}
	return Event{From: from, To: to, Setup: *st}
}

func (d *Detector) signal(st *models.Setup, kind models.SignalKind, last models.Candle, rsi float64) *models.Signal {
	return &models.Signal{
		Symbol:    st.Symbol,
		Timeframe: st.Timeframe,
		Direction: st.Direction,
		Kind:      kind,
		Price:     last.Close,
		RSI:       rsi,
		Ts:        last.Ts,
		Setup:     *st,
		Reason: fmt.Sprintf("impulse %.2f%% + RSI %.1f (%s)",
			st.ImpulsePercentMove, rsi, kind),
	}
}

// Annotate навешивает на живые сетапы символа качество и HTF-биас.
// Ярлыки информационные, стейт-машину не трогают.
func (d *Detector) Annotate(symbol, tf string, vol24h float64, tier models.QualityTier, htfBullish bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, dir := range []models.Direction{models.DirLong, models.DirShort} {
		st, ok := d.setups[symbol+"|"+tf+"|"+string(dir)]
		if !ok || st.IsTerminal() {
			continue
		}
		st.Volume24h = vol24h
		st.QualityTier = tier
		st.HigherTFBullish = htfBullish
	}
}

func (d *Detector) Get(symbol, tf string, dir models.Direction) (models.Setup, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	st, ok := d.setups[symbol+"|"+tf+"|"+string(dir)]
	if !ok {
		return models.Setup{}, false
	}
	return *st, true
}

func (d *Detector) Snapshot() []models.Setup {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.Setup, 0, len(d.setups))
	for _, st := range d.setups {
		out = append(out, *st)
	}
	return out
}

// Purge выкидывает played_out-сетапы старше ретеншена. Возвращает
// количество удалённых.
func (d *Detector) Purge(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for key, st := range d.setups {
		if st.IsTerminal() && now.Sub(st.PlayedOutAt) > d.cfg.RetentionWindow {
			delete(d.setups, key)
			n++
		}
	}
	return n
}

func candlesSince(candles []models.Candle, ts time.Time) []models.Candle {
	for i := range candles {
		if candles[i].Ts.After(ts) {
			return candles[i:]
		}
	}
	return nil
}
