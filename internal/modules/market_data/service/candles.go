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

	"screener_bot/internal/helper"
	"screener_bot/internal/models"
)

// FetchCandles возвращает закрытые свечи по возрастанию времени.
// Кривой пейлоад — ErrInvalidData: символ пропускается на цикл.
func (c *Client) FetchCandles(ctx context.Context, symbol, timeframe string, mt models.MarketType) ([]models.Candle, error) {
	q := url.Values{}
	q.Set("instId", symbol)
	q.Set("bar", helper.NormTF(timeframe))
	q.Set("limit", strconv.Itoa(c.cfg.Scan.CandleLimit))

	body, err := c.get(ctx, "candles "+symbol, "/api/v5/market/candles?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("fetch candles %s %s: %w", symbol, timeframe, err)
	}

	var resp candlesResponse
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrapf(ErrInvalidData, "candles %s: unmarshal: %v", symbol, err)
	}
	if resp.Code == okxCodeRateLimit {
		return nil, errors.Wrapf(ErrRateLimited, "candles %s", symbol)
	}
	if resp.Code != "0" {
		return nil, errors.Wrapf(ErrInvalidData, "candles %s: code=%s msg=%s", symbol, resp.Code, resp.Msg)
	}

	out := make([]models.Candle, 0, len(resp.Data))
	for _, row := range resp.Data {
		cndl, err := parseCandleRow(row)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidData, "candles %s: %v", symbol, err)
		}
		out = append(out, cndl)
	}

	// OKX отдаёт новые первыми
	sort.Slice(out, func(i, j int) bool { return out[i].Ts.Before(out[j].Ts) })
	return out, nil
}

func parseCandleRow(row []string) (models.Candle, error) {
	// [ts, o, h, l, c, vol, volCcy, ...]
	if len(row) < 7 {
		return models.Candle{}, fmt.Errorf("short row: %d fields", len(row))
	}
	ms, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return models.Candle{}, fmt.Errorf("bad ts %q", row[0])
	}

	vals := make([]float64, 6)
	for i := 1; i <= 6; i++ {
		v, err := strconv.ParseFloat(row[i], 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("bad field %d: %q", i, row[i])
		}
		vals[i-1] = v
	}

	return models.Candle{
		Ts:          time.UnixMilli(ms).UTC(),
		Open:        vals[0],
		High:        vals[1],
		Low:         vals[2],
		Close:       vals[3],
		Volume:      vals[4],
		QuoteVolume: vals[5],
	}, nil
}
