package service

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"screener_bot/internal/helper"
	"screener_bot/internal/models"
)

// StreamCandlesBatch — один WebSocket на таймфрейм с пачкой
// инструментов в args. Отдаёт только закрытые свечи.
func (c *Client) StreamCandlesBatch(ctx context.Context, symbols []string, timeframe string) <-chan OutCandle {
	ch := make(chan OutCandle)

	go func() {
		defer close(ch)

		if len(symbols) == 0 {
			return
		}

		channel := "candle" + helper.NormTF(timeframe)

		args := make([]map[string]string, 0, len(symbols))
		for _, id := range symbols {
			args = append(args, map[string]string{
				"channel": channel,
				"instId":  id,
			})
		}

		for {
			log.Printf("[WS] batch connect %s %d symbols", channel, len(symbols))
			conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
			if err != nil {
				log.Printf("[WS] batch dial error %s: %v", channel, err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}

			sub := map[string]any{
				"op":   "subscribe",
				"args": args,
			}
			if err := conn.WriteJSON(sub); err != nil {
				log.Printf("[WS] batch subscribe error %s: %v", channel, err)
				_ = conn.Close()
				continue
			}

			// done закрывает читающий цикл — пингер обязан выйти вместе
			// с ним, иначе каждый реконнект оставлял бы зомби-горутину.
			done := make(chan struct{})
			go c.keepAlive(ctx, conn, done)

			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					log.Printf("[WS] batch read error %s: %v", channel, err)
					_ = conn.Close()
					break
				}

				var frame struct {
					Arg struct {
						Channel string `json:"channel"`
						InstID  string `json:"instId"`
					} `json:"arg"`
					Data [][]string `json:"data"`
				}
				if err := sonic.Unmarshal(msg, &frame); err != nil {
					continue
				}
				if frame.Arg.Channel != channel || len(frame.Data) == 0 {
					continue
				}

				for _, row := range frame.Data {
					cndl, ok := parseWSCandleRow(row)
					if !ok {
						continue
					}
					out := OutCandle{
						Symbol:    frame.Arg.InstID,
						Timeframe: helper.NormTF(timeframe),
						Candle:    cndl,
					}
					select {
					case ch <- out:
					case <-ctx.Done():
						_ = conn.Close()
						close(done)
						return
					}
				}
			}
			close(done)

			select {
			case <-ctx.Done():
				return
			default:
				time.Sleep(time.Second)
			}
		}
	}()

	return ch
}

// keepAlive шлёт ping каждые pingEvery, пока живо соединение —
// иначе OKX рвёт сокет по таймауту. Выходит по done или ctx.
func (c *Client) keepAlive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	t := time.NewTicker(c.pingEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-t.C:
			_ = conn.WriteJSON(map[string]string{"op": "ping"})
		}
	}
}

// parseWSCandleRow: [ts, o, h, l, c, vol, volCcy, volCcyQuote, confirm].
// confirm всегда последним элементом — не хардкодим индекс.
func parseWSCandleRow(row []string) (models.Candle, bool) {
	if len(row) < 6 {
		return models.Candle{}, false
	}
	if row[len(row)-1] != "1" {
		return models.Candle{}, false // ждём закрытую свечу
	}

	tsMs, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return models.Candle{}, false
	}

	open, err1 := strconv.ParseFloat(row[1], 64)
	high, err2 := strconv.ParseFloat(row[2], 64)
	low, err3 := strconv.ParseFloat(row[3], 64)
	closep, err4 := strconv.ParseFloat(row[4], 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || closep <= 0 {
		return models.Candle{}, false
	}

	var vol float64
	if len(row) >= 6 {
		vol, _ = strconv.ParseFloat(row[5], 64)
	}
	var volQuote float64
	if len(row) >= 8 {
		volQuote, _ = strconv.ParseFloat(row[7], 64)
	}

	return models.Candle{
		Ts:          time.UnixMilli(tsMs).UTC(),
		Open:        open,
		High:        high,
		Low:         low,
		Close:       closep,
		Volume:      vol,
		QuoteVolume: volQuote,
	}, true
}
