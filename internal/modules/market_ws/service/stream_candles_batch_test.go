package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func wsTestURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// Пингер живёт ровно столько, сколько читающий цикл соединения:
// после обрыва и close(done) он обязан выйти, а не висеть до конца ctx.
func TestKeepAlive_ExitsWhenReadLoopEnds(t *testing.T) {
	var pings int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			atomic.AddInt32(&pings, 1)
		}
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsTestURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	c := &Client{dialer: websocket.DefaultDialer, url: wsTestURL(srv), pingEvery: 5 * time.Millisecond}

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		c.keepAlive(context.Background(), conn, done)
		close(exited)
	}()

	// пинги идут, пока done открыт
	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&pings) < 2 {
		select {
		case <-deadline:
			t.Fatalf("no pings arrived, got %d", atomic.LoadInt32(&pings))
		case <-time.After(time.Millisecond):
		}
	}

	close(done)
	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("keepAlive did not exit after done was closed")
	}
}

// Клиент переживает обрывы: после двух сброшенных соединений третье
// доставляет закрытую свечу, отмена контекста закрывает канал.
func TestStreamCandlesBatch_ReconnectsAndKeepsStreaming(t *testing.T) {
	frame := `{"arg":{"channel":"candle15m","instId":"BTC-USDT-SWAP"},` +
		`"data":[["1757500800000","100","101","99","100.5","1000","0","50000","1"]]}`

	var conns int32
	var relOnce sync.Once
	release := make(chan struct{})
	rel := func() { relOnce.Do(func() { close(release) }) }
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		n := atomic.AddInt32(&conns, 1)
		_, _, _ = conn.ReadMessage() // subscribe
		if n < 3 {
			return // рвём соединение — клиент должен переподключиться
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			return
		}
		<-release
	}))
	defer srv.Close()
	defer rel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := &Client{
		dialer:    &websocket.Dialer{HandshakeTimeout: time.Second},
		url:       wsTestURL(srv),
		pingEvery: 50 * time.Millisecond,
	}
	ch := c.StreamCandlesBatch(ctx, []string{"BTC-USDT-SWAP"}, "15m")

	select {
	case out := <-ch:
		if out.Symbol != "BTC-USDT-SWAP" || out.Timeframe != "15m" {
			t.Errorf("unexpected candle key: %s %s", out.Symbol, out.Timeframe)
		}
		if out.Candle.Close != 100.5 {
			t.Errorf("close = %v, want 100.5", out.Candle.Close)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("no candle after reconnects")
	}

	if got := atomic.LoadInt32(&conns); got < 3 {
		t.Errorf("connections = %d, want >= 3", got)
	}

	cancel()
	rel() // сервер отпускает соединение, клиент видит обрыв и ctx
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream channel not closed after cancel")
		}
	}
}
