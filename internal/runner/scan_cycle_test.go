package runner

import (
	"context"
	"testing"
	"time"

	"screener_bot/internal/modules/config"
	healthsvc "screener_bot/internal/modules/health/service"
	mdsvc "screener_bot/internal/modules/market_data/service"
	wssvc "screener_bot/internal/modules/market_ws/service"
	scrsvc "screener_bot/internal/modules/screener/service"
	tlsvc "screener_bot/internal/modules/trade_log/service"
	"screener_bot/internal/notify"
	"screener_bot/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	m.Run()
}

func testRunnerConfig() *config.Config {
	cfg := &config.Config{
		MarketType:   "futures",
		Bots:         []string{"trend"},
		StartBalance: 10000,
	}
	cfg.Risk = config.RiskConfig{Leverage: 10, PositionSizePercent: 5, InitialStopLossPercent: 20}
	cfg.Costs = config.CostConfig{Seed: 1}
	cfg.Scan = config.ScanConfig{
		Timeframes:     []string{"15m"},
		WarmupParallel: 2,
		CandleLimit:    200,
		MaxInflight:    1,
		MaxRetries:     0,
		BaseBackoff:    time.Millisecond,
	}
	return cfg
}

func testRunner(t *testing.T) *Runner {
	t.Helper()
	cfg := testRunnerConfig()
	r, err := NewRunner(
		cfg,
		mdsvc.NewClient(cfg),
		wssvc.NewClient(),
		scrsvc.NewDetector(cfg.Screener),
		tlsvc.NewStdoutSink(),
		notify.NewStdout(),
		healthsvc.NewState(),
	)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return r
}

// Отменённый цикл возвращается до CycleDone и не оставляет после
// себя горутин по символам: всё, что успело стартовать, дожато.
func TestScanCycle_CancelledMidWatchlist(t *testing.T) {
	r := testRunner(t)
	r.watch = []string{"BTC-USDT-SWAP", "ETH-USDT-SWAP", "SOL-USDT-SWAP"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		r.ScanCycle(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("cancelled cycle did not return")
	}
	if got := r.health.Cycles(); got != 0 {
		t.Errorf("cycles = %d, cancelled cycle must not count", got)
	}
}

func TestScanCycle_CompletesWithoutSymbols(t *testing.T) {
	r := testRunner(t)

	// короткий дедлайн: сетевые вызовы падают быстро, цикл доходит до конца
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	r.ScanCycle(ctx)

	if got := r.health.Cycles(); got != 1 {
		t.Errorf("cycles = %d, want 1", got)
	}
}
