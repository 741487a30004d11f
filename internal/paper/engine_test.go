package paper

import (
	"math"
	"testing"
	"time"

	"screener_bot/internal/models"
	"screener_bot/internal/modules/config"
)

func testRisk() config.RiskConfig {
	return config.RiskConfig{
		Leverage:               10,
		PositionSizePercent:    5,
		InitialStopLossPercent: 20,
		TrailTriggerPercent:    10,
		TrailStepPercent:       5,
		Level1LockPercent:      0,
		MaxOpenPositions:       10,
	}
}

// нулевые косты: без слиппеджа, комиссий и плохих филлов
func zeroCosts() *CostModel {
	return NewCostModel(config.CostConfig{Seed: 1})
}

func testSignal(symbol string, price float64) models.Signal {
	return models.Signal{
		Symbol:    symbol,
		Timeframe: "15m",
		Direction: models.DirLong,
		Kind:      models.SignalTriggered,
		Price:     price,
		Ts:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func candle(close, high, low float64, ts time.Time) models.Candle {
	return models.Candle{Ts: ts, Open: close, High: high, Low: low, Close: close, Volume: 100}
}

func almostEq(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestEngine_OpenSizingAndInitialStop(t *testing.T) {
	e := NewEngine("trend", testRisk(), zeroCosts(), 10000)

	p := e.Open(testSignal("BTC-USDT-SWAP", 100), models.DirLong, RegimeNormal)
	if p == nil {
		t.Fatal("open rejected")
	}
	if !almostEq(p.MarginUsed, 500) {
		t.Errorf("margin = %.4f, want 500", p.MarginUsed)
	}
	if !almostEq(p.NotionalSize, 5000) {
		t.Errorf("notional = %.4f, want 5000", p.NotionalSize)
	}
	if !almostEq(p.EffectiveEntryPrice, 100) {
		t.Errorf("effective entry = %.4f, want 100 with zero slippage", p.EffectiveEntryPrice)
	}
	// 20% ROI на плече 10 => 2% по цене: стоп 98
	if !almostEq(p.InitialStopLossPrice, 98) {
		t.Errorf("initial stop = %.4f, want 98", p.InitialStopLossPrice)
	}
	if !almostEq(e.Balance(), 9500) {
		t.Errorf("balance = %.4f, want 9500 (margin reserved)", e.Balance())
	}
}

func TestEngine_ShortInitialStop(t *testing.T) {
	e := NewEngine("fade", testRisk(), zeroCosts(), 10000)
	p := e.Open(testSignal("BTC-USDT-SWAP", 100), models.DirShort, RegimeNormal)
	if p == nil {
		t.Fatal("open rejected")
	}
	if !almostEq(p.InitialStopLossPrice, 102) {
		t.Errorf("short stop = %.4f, want 102", p.InitialStopLossPrice)
	}
}

func TestEngine_InitialStopHit(t *testing.T) {
	e := NewEngine("trend", testRisk(), zeroCosts(), 10000)
	e.Open(testSignal("BTC-USDT-SWAP", 100), models.DirLong, RegimeNormal)

	ts := time.Date(2025, 6, 1, 0, 15, 0, 0, time.UTC)
	closed := e.UpdateCandle("BTC-USDT-SWAP", "15m", candle(99, 99.5, 97, ts), RegimeNormal)
	if closed == nil {
		t.Fatal("low below stop must close the position")
	}
	if closed.ExitReason != models.ExitInitialStop {
		t.Errorf("exit reason = %s, want initial_stop", closed.ExitReason)
	}
	// исполнение по цене стопа: (98-100)/100 * 5000 = -100
	if !almostEq(closed.RealizedPnL, -100) {
		t.Errorf("pnl = %.4f, want -100", closed.RealizedPnL)
	}
	if !almostEq(closed.RealizedPnLPercent, -20) {
		t.Errorf("pnl%% = %.4f, want -20", closed.RealizedPnLPercent)
	}
	if !almostEq(e.Balance(), 9900) {
		t.Errorf("balance = %.4f, want 9900", e.Balance())
	}
	if e.OpenCount() != 0 {
		t.Errorf("open count = %d", e.OpenCount())
	}
}

func TestEngine_TrailRatchet(t *testing.T) {
	e := NewEngine("trend", testRisk(), zeroCosts(), 10000)
	e.Open(testSignal("BTC-USDT-SWAP", 100), models.DirLong, RegimeNormal)

	base := time.Date(2025, 6, 1, 0, 15, 0, 0, time.UTC)

	// ROI 10% => уровень 1, при level1Lock=0 стоп в безубыток
	if closed := e.UpdateCandle("BTC-USDT-SWAP", "15m", candle(101, 101.2, 100.1, base), RegimeNormal); closed != nil {
		t.Fatal("unexpected close")
	}
	p := e.OpenPositions()[0]
	if p.TrailLevel != 1 {
		t.Fatalf("trail level = %d, want 1", p.TrailLevel)
	}
	if !almostEq(p.CurrentStopLossPrice, 100) {
		t.Errorf("breakeven stop = %.4f, want 100", p.CurrentStopLossPrice)
	}

	// ROI 23% => уровень 1 + floor(13/5) = 3, лок 10% ROI => стоп 101
	if closed := e.UpdateCandle("BTC-USDT-SWAP", "15m", candle(102.3, 102.5, 100.5, base.Add(15*time.Minute)), RegimeNormal); closed != nil {
		t.Fatal("unexpected close")
	}
	p = e.OpenPositions()[0]
	if p.TrailLevel != 3 {
		t.Fatalf("trail level = %d, want 3", p.TrailLevel)
	}
	if !almostEq(p.CurrentStopLossPrice, 101) {
		t.Errorf("trail stop = %.4f, want 101", p.CurrentStopLossPrice)
	}
	if !almostEq(p.HighWaterMark, 23) {
		t.Errorf("hwm = %.4f, want 23", p.HighWaterMark)
	}

	// откат не ослабляет ни стоп, ни HWM, ни уровень
	if closed := e.UpdateCandle("BTC-USDT-SWAP", "15m", candle(101.8, 102, 101.1, base.Add(30*time.Minute)), RegimeNormal); closed != nil {
		t.Fatal("unexpected close on pullback above stop")
	}
	p = e.OpenPositions()[0]
	if p.TrailLevel != 3 || !almostEq(p.CurrentStopLossPrice, 101) || !almostEq(p.HighWaterMark, 23) {
		t.Errorf("ratchet weakened: level=%d stop=%.4f hwm=%.4f", p.TrailLevel, p.CurrentStopLossPrice, p.HighWaterMark)
	}

	// пробой трейла: выход по 101, профит зафиксирован
	closed := e.UpdateCandle("BTC-USDT-SWAP", "15m", candle(100.8, 101.3, 100.7, base.Add(45*time.Minute)), RegimeNormal)
	if closed == nil {
		t.Fatal("trail stop must fire")
	}
	if closed.ExitReason != models.ExitTrailingStop {
		t.Errorf("exit reason = %s, want trailing_stop", closed.ExitReason)
	}
	if !almostEq(closed.RealizedPnL, 50) {
		t.Errorf("pnl = %.4f, want +50", closed.RealizedPnL)
	}
	if !almostEq(e.Balance(), 10050) {
		t.Errorf("balance = %.4f, want 10050", e.Balance())
	}
}

func TestEngine_BreakevenReason(t *testing.T) {
	e := NewEngine("trend", testRisk(), zeroCosts(), 10000)
	e.Open(testSignal("BTC-USDT-SWAP", 100), models.DirLong, RegimeNormal)

	base := time.Date(2025, 6, 1, 0, 15, 0, 0, time.UTC)
	e.UpdateCandle("BTC-USDT-SWAP", "15m", candle(101, 101.2, 100.1, base), RegimeNormal)

	closed := e.UpdateCandle("BTC-USDT-SWAP", "15m", candle(100.2, 100.6, 99.5, base.Add(15*time.Minute)), RegimeNormal)
	if closed == nil {
		t.Fatal("breakeven stop must fire")
	}
	if closed.ExitReason != models.ExitBreakevenStop {
		t.Errorf("exit reason = %s, want breakeven_stop", closed.ExitReason)
	}
	if !almostEq(closed.RealizedPnL, 0) {
		t.Errorf("pnl = %.4f, want 0", closed.RealizedPnL)
	}
	if !almostEq(e.Balance(), 10000) {
		t.Errorf("balance = %.4f, want 10000", e.Balance())
	}
}

func TestEngine_ShortTrailTightensDown(t *testing.T) {
	e := NewEngine("fade", testRisk(), zeroCosts(), 10000)
	e.Open(testSignal("BTC-USDT-SWAP", 100), models.DirShort, RegimeNormal)

	base := time.Date(2025, 6, 1, 0, 15, 0, 0, time.UTC)
	// цена упала на 1% => ROI 10% => безубыток сверху
	e.UpdateCandle("BTC-USDT-SWAP", "15m", candle(99, 99.9, 98.8, base), RegimeNormal)
	p := e.OpenPositions()[0]
	if p.TrailLevel != 1 || !almostEq(p.CurrentStopLossPrice, 100) {
		t.Fatalf("short ratchet: level=%d stop=%.4f, want 1/100", p.TrailLevel, p.CurrentStopLossPrice)
	}

	closed := e.UpdateCandle("BTC-USDT-SWAP", "15m", candle(99.8, 100.4, 99.2, base.Add(15*time.Minute)), RegimeNormal)
	if closed == nil || closed.ExitReason != models.ExitBreakevenStop {
		t.Fatalf("short breakeven stop must fire, got %+v", closed)
	}
}

func TestEngine_WorstExcursionBeforeMark(t *testing.T) {
	// свеча одновременно пробивает стоп лоем и тянет HWM клоузом:
	// закрытие обязано пройти по худшему сценарию, а не по клоузу
	e := NewEngine("trend", testRisk(), zeroCosts(), 10000)
	e.Open(testSignal("BTC-USDT-SWAP", 100), models.DirLong, RegimeNormal)

	ts := time.Date(2025, 6, 1, 0, 15, 0, 0, time.UTC)
	closed := e.UpdateCandle("BTC-USDT-SWAP", "15m", candle(103, 103.5, 97.5, ts), RegimeNormal)
	if closed == nil {
		t.Fatal("stop breached intrabar, position must close")
	}
	if closed.ExitReason != models.ExitInitialStop {
		t.Errorf("exit reason = %s, want initial_stop", closed.ExitReason)
	}
	if !almostEq(closed.RealizedPnL, -100) {
		t.Errorf("pnl = %.4f, want -100 (stop fill, not close)", closed.RealizedPnL)
	}
}

func TestEngine_OpenRejections(t *testing.T) {
	risk := testRisk()
	risk.MaxOpenPositions = 1
	e := NewEngine("trend", risk, zeroCosts(), 10000)

	if p := e.Open(testSignal("BTC-USDT-SWAP", 100), models.DirLong, RegimeNormal); p == nil {
		t.Fatal("first open rejected")
	}
	// дубль по (symbol, timeframe)
	if p := e.Open(testSignal("BTC-USDT-SWAP", 101), models.DirLong, RegimeNormal); p != nil {
		t.Error("duplicate key must be rejected")
	}
	// лимит открытых
	if p := e.Open(testSignal("ETH-USDT-SWAP", 50), models.DirLong, RegimeNormal); p != nil {
		t.Error("max open positions must be enforced")
	}

	longOnly := testRisk()
	longOnly.LongOnly = true
	e2 := NewEngine("trend", longOnly, zeroCosts(), 10000)
	if p := e2.Open(testSignal("BTC-USDT-SWAP", 100), models.DirShort, RegimeNormal); p != nil {
		t.Error("longOnly must reject shorts")
	}

	// маржа ниже минимума
	e3 := NewEngine("trend", testRisk(), zeroCosts(), 10)
	if p := e3.Open(testSignal("BTC-USDT-SWAP", 100), models.DirLong, RegimeNormal); p != nil {
		t.Error("sub-minimum margin must be rejected")
	}
}

func TestEngine_NegativeMarginPanics(t *testing.T) {
	// отрицательный баланс — сломанный инвариант, а не «мелкая маржа»
	e := NewEngine("trend", testRisk(), zeroCosts(), -100)

	defer func() {
		if recover() == nil {
			t.Fatal("negative margin must panic, not be silently rejected")
		}
	}()
	e.Open(testSignal("BTC-USDT-SWAP", 100), models.DirLong, RegimeNormal)
}

func TestEngine_FeesRoundTrip(t *testing.T) {
	costs := NewCostModel(config.CostConfig{FeePercent: 0.05, Seed: 1})
	e := NewEngine("trend", testRisk(), costs, 10000)

	p := e.Open(testSignal("BTC-USDT-SWAP", 100), models.DirLong, RegimeNormal)
	if !almostEq(p.EntryCosts, 2.5) {
		t.Fatalf("entry costs = %.4f, want 2.5 (0.05%% of 5000)", p.EntryCosts)
	}

	ts := time.Date(2025, 6, 1, 1, 0, 0, 0, time.UTC)
	closed := e.Close("BTC-USDT-SWAP", "15m", 100, models.ExitForced, ts)
	if closed == nil {
		t.Fatal("close failed")
	}
	// плоский выход: PnL = -(вход + выход) = -5
	if !almostEq(closed.RealizedPnL, -5) {
		t.Errorf("pnl = %.4f, want -5", closed.RealizedPnL)
	}
	if !almostEq(e.Balance(), 9995) {
		t.Errorf("balance = %.4f, want 9995", e.Balance())
	}
}

func TestEngine_CloseAllEndOfData(t *testing.T) {
	e := NewEngine("trend", testRisk(), zeroCosts(), 10000)
	e.Open(testSignal("BTC-USDT-SWAP", 100), models.DirLong, RegimeNormal)
	e.Open(testSignal("ETH-USDT-SWAP", 50), models.DirLong, RegimeNormal)

	ts := time.Date(2025, 6, 1, 1, 0, 0, 0, time.UTC)
	e.UpdatePrice("BTC-USDT-SWAP", "15m", 100.5, ts)

	closed := e.CloseAll(ts.Add(time.Minute))
	if len(closed) != 2 {
		t.Fatalf("closed %d, want 2", len(closed))
	}
	for _, p := range closed {
		if p.ExitReason != models.ExitEndOfData {
			t.Errorf("%s: exit reason = %s, want end_of_data", p.Symbol, p.ExitReason)
		}
	}
	if e.OpenCount() != 0 {
		t.Errorf("open count = %d after CloseAll", e.OpenCount())
	}
}
