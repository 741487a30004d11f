package service

import (
	"context"
	"sync"
	"time"

	"screener_bot/pkg/logger"
)

// Limiter ограничивает число одновременных запросов и минимальный
// зазор между ними; на rate-limit ретраит с экспоненциальным
// бэкоффом. После maxRetries отдаёт ошибку наверх — вызывающий
// пропускает символ, скан продолжается.
type Limiter struct {
	sem         chan struct{}
	minGap      time.Duration
	maxRetries  int
	baseBackoff time.Duration

	mu     sync.Mutex
	lastAt time.Time

	logMu    sync.Mutex
	lastWarn time.Time
}

func NewLimiter(maxInflight int, minGap time.Duration, maxRetries int, baseBackoff time.Duration) *Limiter {
	if maxInflight <= 0 {
		maxInflight = 1
	}
	return &Limiter{
		sem:         make(chan struct{}, maxInflight),
		minGap:      minGap,
		maxRetries:  maxRetries,
		baseBackoff: baseBackoff,
	}
}

func (l *Limiter) Do(ctx context.Context, what string, fn func() error) error {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.sem }()

	backoff := l.baseBackoff
	var err error
	for attempt := 0; ; attempt++ {
		if gerr := l.waitGap(ctx); gerr != nil {
			return gerr
		}

		err = fn()
		if err == nil {
			return nil
		}
		if IsInvalidData(err) {
			// данные не починятся от повтора
			return err
		}
		if attempt >= l.maxRetries {
			return err
		}

		wait := backoff
		if IsRateLimited(err) {
			// лимитер биржи — ждём дольше и не спамим в лог
			wait *= 4
			l.warnThrottled("[LIMIT] %s: rate limited, retry in %s (attempt %d/%d)",
				what, wait, attempt+1, l.maxRetries)
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
}

func (l *Limiter) waitGap(ctx context.Context) error {
	l.mu.Lock()
	sleep := l.minGap - time.Since(l.lastAt)
	if sleep < 0 {
		sleep = 0
	}
	l.lastAt = time.Now().Add(sleep)
	l.mu.Unlock()

	if sleep == 0 {
		return nil
	}
	select {
	case <-time.After(sleep):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// warnThrottled — не чаще раза в 10 секунд, ретраи при этом идут как шли.
func (l *Limiter) warnThrottled(format string, args ...interface{}) {
	l.logMu.Lock()
	defer l.logMu.Unlock()
	if time.Since(l.lastWarn) < 10*time.Second {
		return
	}
	l.lastWarn = time.Now()
	logger.Warn(format, args...)
}
