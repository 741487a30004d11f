package runner

import (
	"context"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"

	"screener_bot/internal/models"
	scrsvc "screener_bot/internal/modules/screener/service"
	"screener_bot/internal/paper"
	"screener_bot/pkg/logger"
)

// ScanCycle — полный REST-проход по ватчлисту: свежая история,
// аннотации качества и HTF-биаса, ретеншен сетапов. Ошибка по
// символу пропускает символ, но не цикл. Отмена контекста
// безопасна между символами: каждый стейт консистентен после
// своего последнего завершённого апдейта.
func (r *Runner) ScanCycle(ctx context.Context) {
	span := opentracing.StartSpan("scan_cycle")
	defer span.Finish()

	started := time.Now()
	mt := r.marketType()

	tickers, err := r.market.Tickers(ctx, mt)
	if err != nil {
		logger.Warn("[SCAN] tickers: %v", err)
		tickers = nil
	}

	r.mu.RLock()
	watch := append([]string(nil), r.watch...)
	r.mu.RUnlock()

	sem := make(chan struct{}, r.cfg.Scan.WarmupParallel)
	var wg sync.WaitGroup
	cancelled := false
	for _, sym := range watch {
		select {
		case <-ctx.Done():
			cancelled = true
		default:
		}
		if cancelled {
			break
		}

		sym := sym
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			r.scanSymbol(ctx, sym, tickers)
		}()
	}
	// дожидаемся уже запущенных символов и при отмене: ни одна
	// горутина не переживает свой цикл
	wg.Wait()

	if cancelled {
		span.SetTag("cancelled", true)
		return
	}

	r.refreshOpenPositions(ctx)

	purged := r.detector.Purge(time.Now())
	r.health.CycleDone()
	span.SetTag("symbols", len(watch))
	span.SetTag("purged", purged)

	logger.Info("[SCAN] cycle done: %d symbols in %s, purged=%d",
		len(watch), time.Since(started).Round(time.Millisecond), purged)
}

// refreshOpenPositions подтягивает открытые позиции к свежей цене
// между закрытиями свечей: стоп может сработать и на тике.
func (r *Runner) refreshOpenPositions(ctx context.Context) {
	now := time.Now()
	for _, b := range r.bots {
		for _, p := range b.Engine.OpenPositions() {
			price, err := r.market.GetCurrentPrice(ctx, p.Symbol)
			if err != nil {
				logger.Warn("[SCAN] price %s: %v", p.Symbol, err)
				continue
			}
			if closed := b.Engine.UpdatePrice(p.Symbol, p.Timeframe, price, now); closed != nil {
				r.recordClose(ctx, b, closed)
			}
		}
	}
}

// scanSymbol обновляет один символ. Символы независимы, их стейт
// не пересекается — поэтому их можно гнать параллельно.
func (r *Runner) scanSymbol(ctx context.Context, sym string, tickers map[string]models.Ticker) {
	mt := r.marketType()

	// HTF для информационного биаса
	htfBullish := false
	if htf := r.cfg.Screener.HTFTimeframe; htf != "" {
		htfCandles, err := r.market.FetchCandles(ctx, sym, htf, mt)
		if err != nil {
			logger.Warn("[SCAN] %s htf %s: %v", sym, htf, err)
		} else {
			htfBullish = scrsvc.HigherTFBullish(htfCandles)
		}
	}

	for _, tf := range r.cfg.Scan.Timeframes {
		candles, err := r.market.FetchCandles(ctx, sym, tf, mt)
		if err != nil {
			// символ пропускаем до следующего цикла, скан живёт дальше
			logger.Warn("[SCAN] %s %s: %v", sym, tf, err)
			continue
		}
		r.putBuffer(sym, tf, candles)

		regime := paper.RegimeFor(candles)
		events := r.detector.OnCandles(sym, tf, mt, candles)

		// аннотации: ярлыки, не переходы
		var vol24h float64
		if t, ok := tickers[sym]; ok {
			vol24h = t.Volume24h
		}
		tier := scrsvc.ClassifyTier(vol24h, r.cfg.Screener.VolumeTiers)
		r.detector.Annotate(sym, tf, vol24h, tier, htfBullish)

		r.handleEvents(ctx, events, regime)
	}
}
