package service

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"screener_bot/internal/models"
)

const wsURL = "wss://ws.okx.com:8443/ws/v5/business"

// OutCandle — закрытая свеча из WS-потока.
type OutCandle struct {
	Symbol    string
	Timeframe string
	Candle    models.Candle
}

// Client — WS-стример закрытых свечей OKX: один сокет на таймфрейм,
// пачка инструментов в args, реконнект при обрыве.
type Client struct {
	dialer    *websocket.Dialer
	url       string
	pingEvery time.Duration
}

func NewClient() *Client {
	return &Client{
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		url:       wsURL,
		pingEvery: 20 * time.Second,
	}
}

// Start поднимает по горутине на таймфрейм и льёт закрытые свечи в out.
func (c *Client) Start(ctx context.Context, symbols []string, timeframes []string, out chan<- OutCandle) {
	for _, tf := range timeframes {
		go func(tf string) {
			ticks := c.StreamCandlesBatch(ctx, symbols, tf)
			for {
				select {
				case <-ctx.Done():
					return
				case t, ok := <-ticks:
					if !ok {
						return
					}
					select {
					case out <- t:
					case <-ctx.Done():
						return
					}
				}
			}
		}(tf)
	}
}
