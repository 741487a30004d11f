package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
)

// VolumeTiers — границы qualityTier по суточному объёму (quote).
type VolumeTiers struct {
	Bluechip float64 `yaml:"bluechip"` // >= => bluechip
	Midcap   float64 `yaml:"midcap"`   // >= => midcap, иначе shitcoin
	Lowcap   float64 `yaml:"lowcap"`   // ниже — вообще не смотрим
}

// ScreenerConfig — параметры детектора сетапов.
type ScreenerConfig struct {
	RSIPeriod                  int     `yaml:"rsi_period"`
	RSIOversoldThreshold       float64 `yaml:"rsi_oversold"`
	RSIDeepOversoldThreshold   float64 `yaml:"rsi_deep_oversold"`
	RSIOverboughtThreshold     float64 `yaml:"rsi_overbought"`
	RSIDeepOverboughtThreshold float64 `yaml:"rsi_deep_overbought"`

	MinImpulsePercent float64 `yaml:"min_impulse_pct"`     // напр. 5.0 => 5%
	ImpulseLookback   int     `yaml:"impulse_lookback"`    // свечей в окне поиска импульса
	SetupValidityBars int     `yaml:"setup_validity_bars"` // сколько свечей сетап живёт без триггера

	MinVolume24h float64     `yaml:"min_volume_24h"`
	MinMarketCap float64     `yaml:"min_market_cap"` // источник капитализации внешний, ключ принимаем как есть
	VolumeTiers  VolumeTiers `yaml:"volume_tiers"`

	HTFTimeframe string `yaml:"htf_timeframe"` // для higherTFBullish

	RetentionWindow time.Duration `yaml:"retention_window"` // сколько держим played_out
}

// RiskConfig — параметры движка позиций, потребляются как есть.
type RiskConfig struct {
	Leverage               float64 `yaml:"leverage"`
	PositionSizePercent    float64 `yaml:"position_size_pct"`
	InitialStopLossPercent float64 `yaml:"initial_stop_loss_pct"` // в ROI%
	TrailTriggerPercent    float64 `yaml:"trail_trigger_pct"`
	TrailStepPercent       float64 `yaml:"trail_step_pct"`
	Level1LockPercent      float64 `yaml:"level1_lock_pct"`
	LongOnly               bool    `yaml:"long_only"`
	MaxOpenPositions       int     `yaml:"max_open_positions"`
}

// CostConfig — модель исполнения: комиссия, слиппедж по режимам
// волатильности, вероятность плохого филла, сид для детерминизма.
type CostConfig struct {
	FeePercent float64 `yaml:"fee_pct"` // на нотионал, напр. 0.05

	SlippageNormalPct   float64 `yaml:"slippage_normal_pct"`
	SlippageElevatedPct float64 `yaml:"slippage_elevated_pct"`
	SlippageExtremePct  float64 `yaml:"slippage_extreme_pct"`

	BadFillProbNormal   float64 `yaml:"bad_fill_prob_normal"`
	BadFillProbElevated float64 `yaml:"bad_fill_prob_elevated"`
	BadFillProbExtreme  float64 `yaml:"bad_fill_prob_extreme"`
	BadFillExtraPct     float64 `yaml:"bad_fill_extra_pct"`

	Seed int64 `yaml:"seed"` // 0 => time.Now().UnixNano()
}

// ScanConfig — цикл сканирования и лимиты на сеть.
type ScanConfig struct {
	Interval       time.Duration `yaml:"interval"`
	Timeframes     []string      `yaml:"timeframes"`
	WatchTopN      int           `yaml:"watch_top_n"`
	WarmupParallel int           `yaml:"warmup_parallel"`
	CandleLimit    int           `yaml:"candle_limit"`

	MaxInflight   int           `yaml:"max_inflight"`
	MinGap        time.Duration `yaml:"min_gap"`
	MaxRetries    int           `yaml:"max_retries"`
	BaseBackoff   time.Duration `yaml:"base_backoff"`
	PriceCacheTTL time.Duration `yaml:"price_cache_ttl"`
}

type Config struct {
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	DB string `yaml:"db_dsn"`

	Jaeger struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"jaeger"`
	HealthAddr string `yaml:"health_addr"`

	MarketType string `yaml:"market_type"` // spot | futures

	Screener ScreenerConfig `yaml:"screener"`
	Risk     RiskConfig     `yaml:"risk"`
	Costs    CostConfig     `yaml:"costs"`
	Scan     ScanConfig     `yaml:"scan"`

	// какие бот-варианты поднимать: trend | fade | htf_align
	Bots []string `yaml:"bots"`

	StartBalance float64 `yaml:"start_balance"` // бумажный депозит
}

func NewConfig() (*Config, error) {

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		log.Fatalf("Failed to open config file: %v", err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	config := Config{
		HealthAddr:   getenvDefault("HEALTH_ADDR", ":8080"),
		MarketType:   getenvDefault("MARKET_TYPE", "futures"),
		StartBalance: floatFromEnv("START_BALANCE", 10000),
		Bots:         []string{"trend"},

		Screener: ScreenerConfig{
			RSIPeriod:                  intFromEnv("RSI_PERIOD", 14),
			RSIOversoldThreshold:       floatFromEnv("RSI_OVERSOLD", 30),
			RSIDeepOversoldThreshold:   floatFromEnv("RSI_DEEP_OVERSOLD", 20),
			RSIOverboughtThreshold:     floatFromEnv("RSI_OVERBOUGHT", 70),
			RSIDeepOverboughtThreshold: floatFromEnv("RSI_DEEP_OVERBOUGHT", 80),
			MinImpulsePercent:          floatFromEnv("MIN_IMPULSE_PCT", 5.0),
			ImpulseLookback:            intFromEnv("IMPULSE_LOOKBACK", 24),
			SetupValidityBars:          intFromEnv("SETUP_VALIDITY_BARS", 48),
			MinVolume24h:               floatFromEnv("MIN_VOLUME_24H", 1_000_000),
			MinMarketCap:               floatFromEnv("MIN_MARKET_CAP", 0),
			VolumeTiers: VolumeTiers{
				Bluechip: 100_000_000,
				Midcap:   10_000_000,
				Lowcap:   1_000_000,
			},
			HTFTimeframe:    getenvDefault("HTF_TIMEFRAME", "4H"),
			RetentionWindow: durationFromEnv("SETUP_RETENTION", "6h"),
		},

		Risk: RiskConfig{
			Leverage:               floatFromEnv("LEVERAGE", 10),
			PositionSizePercent:    floatFromEnv("POSITION_SIZE_PCT", 5),
			InitialStopLossPercent: floatFromEnv("INITIAL_SL_PCT", 20),
			TrailTriggerPercent:    floatFromEnv("TRAIL_TRIGGER_PCT", 10),
			TrailStepPercent:       floatFromEnv("TRAIL_STEP_PCT", 5),
			Level1LockPercent:      floatFromEnv("LEVEL1_LOCK_PCT", 0),
			LongOnly:               boolFromEnv("LONG_ONLY", false),
			MaxOpenPositions:       intFromEnv("MAX_OPEN_POSITIONS", 10),
		},

		Costs: CostConfig{
			FeePercent:          0.05,
			SlippageNormalPct:   0.05,
			SlippageElevatedPct: 0.15,
			SlippageExtremePct:  0.40,
			BadFillProbNormal:   0.05,
			BadFillProbElevated: 0.15,
			BadFillProbExtreme:  0.30,
			BadFillExtraPct:     0.10,
		},

		Scan: ScanConfig{
			Interval:       durationFromEnv("SCAN_INTERVAL", "1m"),
			Timeframes:     []string{"15m", "1H"},
			WatchTopN:      intFromEnv("WATCH_TOP_N", 100),
			WarmupParallel: intFromEnv("WARMUP_PARALLEL", 8),
			CandleLimit:    intFromEnv("CANDLE_LIMIT", 200),
			MaxInflight:    intFromEnv("MAX_INFLIGHT", 5),
			MinGap:         durationFromEnv("MIN_GAP", "120ms"),
			MaxRetries:     intFromEnv("MAX_RETRIES", 4),
			BaseBackoff:    durationFromEnv("BASE_BACKOFF", "500ms"),
			PriceCacheTTL:  durationFromEnv("PRICE_CACHE_TTL", "10s"),
		},
	}
	err = decoder.Decode(&config)
	if err != nil {
		log.Fatalf("Failed to decode config file: %v", err)
	}

	token := os.Getenv(tokenTelegramENV)
	if token != "" {
		config.Telegram.Token = token
	}

	dsn := os.Getenv(databaseDSN)
	if dsn != "" {
		config.DB = dsn
	}

	return &config, nil
}

func getenvRequired(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("env %s is required", key))
	}
	return v
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func boolFromEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if v == "1" || v == "true" || v == "TRUE" {
			return true
		}
		if v == "0" || v == "false" || v == "FALSE" {
			return false
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
