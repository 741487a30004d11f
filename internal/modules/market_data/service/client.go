package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"screener_bot/internal/models"
	"screener_bot/internal/modules/config"
)

const baseURL = "https://www.okx.com"

// Client — публичный REST OKX: свечи, тикеры, текущая цена.
// Все запросы идут через лимитер; кэши цен и тикеров — явные
// объекты с TTL, а не глобалки.
type Client struct {
	cfg     *config.Config
	http    *http.Client
	limiter *Limiter

	prices  *priceCache
	tickers *tickerCache
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 10 * time.Second},
		limiter: NewLimiter(
			cfg.Scan.MaxInflight,
			cfg.Scan.MinGap,
			cfg.Scan.MaxRetries,
			cfg.Scan.BaseBackoff,
		),
		prices:  newPriceCache(cfg.Scan.PriceCacheTTL),
		tickers: newTickerCache(cfg.Scan.PriceCacheTTL * 3),
	}
}

func instType(mt models.MarketType) string {
	if mt == models.MarketSpot {
		return "SPOT"
	}
	return "SWAP"
}

// get выполняет запрос под лимитером и возвращает тело.
func (c *Client) get(ctx context.Context, what, path string) ([]byte, error) {
	var body []byte
	err := c.limiter.Do(ctx, what, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path, nil)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		rb, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return ErrRateLimited
		}
		if resp.StatusCode/100 != 2 {
			return fmt.Errorf("http %d: %s", resp.StatusCode, string(rb))
		}
		body = rb
		return nil
	})
	return body, err
}
