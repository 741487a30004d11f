package runner

import (
	"context"
	"log"
	"sync"
	"time"

	"screener_bot/internal/models"
	"screener_bot/internal/modules/config"
	healthsvc "screener_bot/internal/modules/health/service"
	mdsvc "screener_bot/internal/modules/market_data/service"
	wssvc "screener_bot/internal/modules/market_ws/service"
	scrsvc "screener_bot/internal/modules/screener/service"
	tlsvc "screener_bot/internal/modules/trade_log/service"
	"screener_bot/internal/notify"
	"screener_bot/internal/paper"
	"screener_bot/internal/policy"
	"screener_bot/pkg/logger"
)

// Bot — один вариант стратегии: политика + свой движок позиций.
// Вся инженерия в движках, бот — это конфигурация.
type Bot struct {
	ID     string
	Policy policy.Policy
	Engine *paper.Engine
}

// Runner гоняет скан-циклы по ватчлисту и ведёт бумажные позиции
// всех ботов. Состояние символа мутируется только его собственным
// проходом; параллелятся лишь независимые символы.
type Runner struct {
	cfg      *config.Config
	market   *mdsvc.Client
	ws       *wssvc.Client
	detector *scrsvc.Detector
	sink     tlsvc.Sink
	n        notify.Notifier
	health   *healthsvc.State

	bots []*Bot

	mu      sync.RWMutex
	watch   []string
	buffers map[string][]models.Candle // symbol|tf -> закрытые свечи
}

func NewRunner(
	cfg *config.Config,
	market *mdsvc.Client,
	ws *wssvc.Client,
	detector *scrsvc.Detector,
	sink tlsvc.Sink,
	n notify.Notifier,
	health *healthsvc.State,
) (*Runner, error) {
	bots := make([]*Bot, 0, len(cfg.Bots))
	for _, name := range cfg.Bots {
		p, err := policy.New(name)
		if err != nil {
			return nil, err
		}
		bots = append(bots, &Bot{
			ID:     name,
			Policy: p,
			Engine: paper.NewEngine(name, cfg.Risk, paper.NewCostModel(cfg.Costs), cfg.StartBalance),
		})
	}

	return &Runner{
		cfg:      cfg,
		market:   market,
		ws:       ws,
		detector: detector,
		sink:     sink,
		n:        n,
		health:   health,
		bots:     bots,
		buffers:  make(map[string][]models.Candle),
	}, nil
}

func (r *Runner) marketType() models.MarketType {
	if r.cfg.MarketType == "spot" {
		return models.MarketSpot
	}
	return models.MarketFutures
}

// OpenPositions — для /positions в телеграме.
func (r *Runner) OpenPositions() []models.Position {
	var out []models.Position
	for _, b := range r.bots {
		out = append(out, b.Engine.OpenPositions()...)
	}
	return out
}

func (r *Runner) Start(ctx context.Context) {
	if err := r.warmup(ctx); err != nil {
		logger.Error("[RUNNER] warmup failed: %v", err)
		return
	}
	r.health.SetReady(true)

	r.mu.RLock()
	watch := append([]string(nil), r.watch...)
	r.mu.RUnlock()

	r.n.Sendf("📈 Скринер запущен: %d символов, боты: %v", len(watch), r.cfg.Bots)

	// WS — закрытые свечи для детектора и позиций
	out := make(chan wssvc.OutCandle, 1024)
	r.ws.Start(ctx, watch, r.cfg.Scan.Timeframes, out)

	// периодический REST-скан: аннотации, ретеншен, пропущенные символы
	ticker := time.NewTicker(r.cfg.Scan.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case oc := <-out:
			r.health.TouchTick(oc.Candle.Ts)
			r.onCandleClose(ctx, oc.Symbol, oc.Timeframe, oc.Candle)
		case <-ticker.C:
			r.ScanCycle(ctx)
		}
	}
}

// warmup: ватчлист по объёму + REST-прогрев истории свечей,
// параллелизм ограничен, чтобы не ловить лимиты.
func (r *Runner) warmup(ctx context.Context) error {
	mt := r.marketType()
	watch, err := r.market.TopByVolume(ctx, mt, r.cfg.Scan.WatchTopN, r.cfg.Screener.MinVolume24h)
	if err != nil {
		return err
	}
	if len(watch) == 0 {
		logger.Warn("[WATCHLIST] не удалось собрать список инструментов")
	}

	r.mu.Lock()
	r.watch = watch
	r.mu.Unlock()

	log.Printf("[WATCHLIST] топ %d по объёму: %v", len(watch), watch)

	sem := make(chan struct{}, r.cfg.Scan.WarmupParallel)
	var wg sync.WaitGroup
	for _, sym := range watch {
		sym := sym
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			for _, tf := range r.cfg.Scan.Timeframes {
				select {
				case <-ctx.Done():
					return
				default:
				}
				candles, err := r.market.FetchCandles(ctx, sym, tf, mt)
				if err != nil {
					logger.Warn("[WARMUP] %s %s: %v", sym, tf, err)
					continue
				}
				r.putBuffer(sym, tf, candles)
			}
		}()
	}
	wg.Wait()

	log.Printf("[WARMUP] готово: %d символов x %v", len(watch), r.cfg.Scan.Timeframes)
	return nil
}

func bufKey(symbol, tf string) string { return symbol + "|" + tf }

func (r *Runner) putBuffer(symbol, tf string, candles []models.Candle) {
	r.mu.Lock()
	r.buffers[bufKey(symbol, tf)] = candles
	r.mu.Unlock()
}

// appendBuffer дописывает закрытую свечу, буфер капится лимитом.
func (r *Runner) appendBuffer(symbol, tf string, c models.Candle) []models.Candle {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := bufKey(symbol, tf)
	buf := r.buffers[key]
	if n := len(buf); n > 0 && !c.Ts.After(buf[n-1].Ts) {
		return buf // дубль или опоздавшая свеча
	}
	buf = append(buf, c)
	if max := r.cfg.Scan.CandleLimit; max > 0 && len(buf) > max {
		buf = buf[len(buf)-max:]
	}
	r.buffers[key] = buf
	return buf
}

func (r *Runner) getBuffer(symbol, tf string) []models.Candle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.buffers[bufKey(symbol, tf)]
}

// onCandleClose — горячий путь: свеча закрылась, двигаем позиции
// и детектор по этому символу.
func (r *Runner) onCandleClose(ctx context.Context, symbol, tf string, c models.Candle) {
	buf := r.appendBuffer(symbol, tf, c)
	if len(buf) == 0 {
		return
	}

	regime := paper.RegimeFor(buf)

	// сначала позиции: пессимистичный стоп-чек по этой же свече
	for _, b := range r.bots {
		if closed := b.Engine.UpdateCandle(symbol, tf, c, regime); closed != nil {
			r.recordClose(ctx, b, closed)
		}
	}

	events := r.detector.OnCandles(symbol, tf, r.marketType(), buf)
	r.handleEvents(ctx, events, regime)
}

// Shutdown добивает открытые позиции по последней цене — конец
// данных, в подвешенном состоянии ничего не оставляем.
func (r *Runner) Shutdown(ctx context.Context) {
	now := time.Now()
	for _, b := range r.bots {
		for _, closed := range b.Engine.CloseAll(now) {
			r.recordClose(ctx, b, closed)
		}
	}
}
