package service

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"screener_bot/internal/models"
)

// GetCurrentPrice — последняя цена символа, через TTL-кэш.
func (c *Client) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	if px, ok := c.prices.get(symbol); ok {
		return px, nil
	}

	q := url.Values{}
	q.Set("instId", symbol)
	body, err := c.get(ctx, "ticker "+symbol, "/api/v5/market/ticker?"+q.Encode())
	if err != nil {
		return 0, fmt.Errorf("ticker %s: %w", symbol, err)
	}

	var resp tickersResponse
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return 0, errors.Wrapf(ErrInvalidData, "ticker %s: unmarshal: %v", symbol, err)
	}
	if resp.Code != "0" || len(resp.Data) == 0 {
		return 0, errors.Wrapf(ErrInvalidData, "ticker %s: code=%s msg=%s", symbol, resp.Code, resp.Msg)
	}

	px, err := strconv.ParseFloat(resp.Data[0].Last, 64)
	if err != nil || px <= 0 {
		return 0, errors.Wrapf(ErrInvalidData, "ticker %s: bad last %q", symbol, resp.Data[0].Last)
	}

	c.prices.put(symbol, px)
	return px, nil
}

// Tickers — все тикеры типа рынка, через TTL-кэш. Основа для
// ватчлиста и qualityTier.
func (c *Client) Tickers(ctx context.Context, mt models.MarketType) (map[string]models.Ticker, error) {
	if m, ok := c.tickers.get(); ok {
		return m, nil
	}

	q := url.Values{}
	q.Set("instType", instType(mt))
	body, err := c.get(ctx, "tickers", "/api/v5/market/tickers?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("tickers: %w", err)
	}

	var resp tickersResponse
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrapf(ErrInvalidData, "tickers: unmarshal: %v", err)
	}
	if resp.Code != "0" {
		return nil, errors.Wrapf(ErrInvalidData, "tickers: code=%s msg=%s", resp.Code, resp.Msg)
	}

	out := make(map[string]models.Ticker, len(resp.Data))
	now := time.Now()
	for _, d := range resp.Data {
		last, _ := strconv.ParseFloat(d.Last, 64)
		volQuote, _ := strconv.ParseFloat(d.VolCcy24h, 64)
		if last <= 0 {
			continue
		}
		out[d.InstID] = models.Ticker{
			Symbol:    d.InstID,
			Last:      last,
			Volume24h: volQuote,
			UpdatedAt: now,
		}
	}

	c.tickers.put(out)
	return out, nil
}

// TopByVolume — топ-N символов по суточному quote-объёму,
// ниже minVolume не берём.
func (c *Client) TopByVolume(ctx context.Context, mt models.MarketType, n int, minVolume float64) ([]string, error) {
	tickers, err := c.Tickers(ctx, mt)
	if err != nil {
		return nil, err
	}

	type sv struct {
		sym string
		vol float64
	}
	all := make([]sv, 0, len(tickers))
	for sym, t := range tickers {
		if t.Volume24h >= minVolume {
			all = append(all, sv{sym, t.Volume24h})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].vol > all[j].vol })

	if n > 0 && len(all) > n {
		all = all[:n]
	}
	out := make([]string, 0, len(all))
	for _, s := range all {
		out = append(out, s.sym)
	}
	return out, nil
}
