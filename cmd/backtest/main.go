package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"screener_bot/internal/backtest"
	"screener_bot/internal/models"
	"screener_bot/internal/modules/config"
	"screener_bot/internal/policy"
)

// Оффлайн-прогон детектора и бумажного движка по CSV-истории.
// Формат строки: ts_ms,open,high,low,close,volume[,quote_volume].
// Конфиг: configs/backtest.yaml (переопределяется BACKTEST_CONFIG).

func loadCandlesCSV(path string) ([]models.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open csv")
	}
	defer func() {
		_ = f.Close()
	}()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var out []models.Candle
	for line := 1; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read csv line %d", line)
		}
		if len(rec) < 6 {
			return nil, errors.Errorf("csv line %d: expected at least 6 fields, got %d", line, len(rec))
		}
		// строка-заголовок допустима
		if line == 1 {
			if _, err := strconv.ParseInt(rec[0], 10, 64); err != nil {
				continue
			}
		}

		ts, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "csv line %d: ts", line)
		}
		nums := make([]float64, 0, 6)
		for i := 1; i < len(rec) && i < 7; i++ {
			v, err := strconv.ParseFloat(rec[i], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "csv line %d: field %d", line, i)
			}
			nums = append(nums, v)
		}

		c := models.Candle{
			Ts:     time.UnixMilli(ts).UTC(),
			Open:   nums[0],
			High:   nums[1],
			Low:    nums[2],
			Close:  nums[3],
			Volume: nums[4],
		}
		if len(nums) > 5 {
			c.QuoteVolume = nums[5]
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, errors.Errorf("%s: no candles", path)
	}
	return out, nil
}

func setDefaults() {
	viper.SetDefault("timeframe", "15m")
	viper.SetDefault("market_type", "futures")
	viper.SetDefault("policy", "trend")
	viper.SetDefault("start_balance", 10000.0)
	viper.SetDefault("window_bars", 200)

	viper.SetDefault("screener.rsi_period", 14)
	viper.SetDefault("screener.rsi_oversold", 30.0)
	viper.SetDefault("screener.rsi_deep_oversold", 20.0)
	viper.SetDefault("screener.rsi_overbought", 70.0)
	viper.SetDefault("screener.rsi_deep_overbought", 80.0)
	viper.SetDefault("screener.min_impulse_pct", 5.0)
	viper.SetDefault("screener.impulse_lookback", 24)
	viper.SetDefault("screener.setup_validity_bars", 48)
	viper.SetDefault("screener.retention_window", "6h")

	viper.SetDefault("risk.leverage", 10.0)
	viper.SetDefault("risk.position_size_pct", 5.0)
	viper.SetDefault("risk.initial_stop_loss_pct", 20.0)
	viper.SetDefault("risk.trail_trigger_pct", 10.0)
	viper.SetDefault("risk.trail_step_pct", 5.0)
	viper.SetDefault("risk.level1_lock_pct", 0.0)
	viper.SetDefault("risk.long_only", false)
	viper.SetDefault("risk.max_open_positions", 10)

	viper.SetDefault("costs.fee_pct", 0.05)
	viper.SetDefault("costs.slippage_normal_pct", 0.05)
	viper.SetDefault("costs.slippage_elevated_pct", 0.15)
	viper.SetDefault("costs.slippage_extreme_pct", 0.40)
	viper.SetDefault("costs.bad_fill_prob_normal", 0.05)
	viper.SetDefault("costs.bad_fill_prob_elevated", 0.15)
	viper.SetDefault("costs.bad_fill_prob_extreme", 0.30)
	viper.SetDefault("costs.bad_fill_extra_pct", 0.10)
	viper.SetDefault("costs.seed", 42)
}

func buildConfig(p policy.Policy) backtest.Config {
	mt := models.MarketFutures
	if viper.GetString("market_type") == "spot" {
		mt = models.MarketSpot
	}

	return backtest.Config{
		Timeframe:  viper.GetString("timeframe"),
		MarketType: mt,

		Screener: config.ScreenerConfig{
			RSIPeriod:                  viper.GetInt("screener.rsi_period"),
			RSIOversoldThreshold:       viper.GetFloat64("screener.rsi_oversold"),
			RSIDeepOversoldThreshold:   viper.GetFloat64("screener.rsi_deep_oversold"),
			RSIOverboughtThreshold:     viper.GetFloat64("screener.rsi_overbought"),
			RSIDeepOverboughtThreshold: viper.GetFloat64("screener.rsi_deep_overbought"),
			MinImpulsePercent:          viper.GetFloat64("screener.min_impulse_pct"),
			ImpulseLookback:            viper.GetInt("screener.impulse_lookback"),
			SetupValidityBars:          viper.GetInt("screener.setup_validity_bars"),
			RetentionWindow:            viper.GetDuration("screener.retention_window"),
		},
		Risk: config.RiskConfig{
			Leverage:               viper.GetFloat64("risk.leverage"),
			PositionSizePercent:    viper.GetFloat64("risk.position_size_pct"),
			InitialStopLossPercent: viper.GetFloat64("risk.initial_stop_loss_pct"),
			TrailTriggerPercent:    viper.GetFloat64("risk.trail_trigger_pct"),
			TrailStepPercent:       viper.GetFloat64("risk.trail_step_pct"),
			Level1LockPercent:      viper.GetFloat64("risk.level1_lock_pct"),
			LongOnly:               viper.GetBool("risk.long_only"),
			MaxOpenPositions:       viper.GetInt("risk.max_open_positions"),
		},
		Costs: config.CostConfig{
			FeePercent:          viper.GetFloat64("costs.fee_pct"),
			SlippageNormalPct:   viper.GetFloat64("costs.slippage_normal_pct"),
			SlippageElevatedPct: viper.GetFloat64("costs.slippage_elevated_pct"),
			SlippageExtremePct:  viper.GetFloat64("costs.slippage_extreme_pct"),
			BadFillProbNormal:   viper.GetFloat64("costs.bad_fill_prob_normal"),
			BadFillProbElevated: viper.GetFloat64("costs.bad_fill_prob_elevated"),
			BadFillProbExtreme:  viper.GetFloat64("costs.bad_fill_prob_extreme"),
			BadFillExtraPct:     viper.GetFloat64("costs.bad_fill_extra_pct"),
			Seed:                viper.GetInt64("costs.seed"),
		},

		Policy:       p,
		WindowBars:   viper.GetInt("window_bars"),
		StartBalance: viper.GetFloat64("start_balance"),
	}
}

func main() {
	name := os.Getenv("BACKTEST_CONFIG")
	if name == "" {
		name = "backtest"
	}
	setDefaults()
	viper.SetConfigName(name)
	viper.SetConfigType("yaml")
	viper.AddConfigPath("configs")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	dataFiles := viper.GetStringMapString("data")
	if len(dataFiles) == 0 {
		panic("has no data files in config")
	}

	candles := make(map[string][]models.Candle, len(dataFiles))
	total := 0
	for sym, path := range dataFiles {
		cs, err := loadCandlesCSV(path)
		if err != nil {
			panic(fmt.Errorf("load %s: %w", sym, err))
		}
		candles[sym] = cs
		total += len(cs)
	}

	p, err := policy.New(viper.GetString("policy"))
	if err != nil {
		panic(err)
	}

	cfg := buildConfig(p)
	started := time.Now()
	res := backtest.Run(cfg, candles)

	fmt.Printf("policy=%s symbols=%d candles=%d elapsed=%s\n",
		res.BotID, len(candles), total, time.Since(started).Round(time.Millisecond))
	fmt.Printf("balance: %.2f -> %.2f (net %+.2f)\n", res.StartBalance, res.EndBalance, res.NetPnL)
	fmt.Printf("trades: %d (win %d / loss %d, winrate %.1f%%)\n",
		len(res.Trades), res.Wins, res.Losses, res.WinRate)
	fmt.Printf("profit factor: %.2f, max drawdown: %.2f%%\n", res.ProfitFactor, res.MaxDrawdownPct)

	for _, t := range res.Trades {
		fmt.Printf("  %s %s %s  entry %.4f -> exit %.4f  lvl %d  %s  pnl %+.2f (%.2f%%)\n",
			t.Symbol, t.Timeframe, t.Direction,
			t.EffectiveEntryPrice, t.ExitPrice,
			t.TrailLevel, t.ExitReason, t.RealizedPnL, t.RealizedPnLPercent)
	}
}
