package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"screener_bot/internal/models"
)

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// PositionsProvider отдаёт открытые бумажные позиции для /positions.
type PositionsProvider interface {
	OpenPositions() []models.Position
}

// Telegram — пассивный нотифайер + обработка одной команды /positions.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64

	mu        sync.Mutex
	positions PositionsProvider
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{
		bot:    b,
		chatID: chatID,
	}, nil
}

// SetPositionsProvider вызывается раннером после сборки ботов.
func (t *Telegram) SetPositionsProvider(p PositionsProvider) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.positions = p
	t.mu.Unlock()
}

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	_, _ = t.bot.Send(tgbot.NewMessage(t.chatID, msg))
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

// /positions — открытые бумажные позиции по всем ботам.
func (t *Telegram) handlePositions() {
	t.mu.Lock()
	p := t.positions
	t.mu.Unlock()

	if p == nil {
		t.Send("❗️ Раннер ещё не поднялся")
		return
	}
	positions := p.OpenPositions()
	if len(positions) == 0 {
		t.Send("📭 Открытых позиций нет")
		return
	}

	var b strings.Builder
	b.WriteString("📊 Открытые позиции:\n")
	for _, pos := range positions {
		fmt.Fprintf(&b, "- %s [%s] margin=%.2f @ %.6f lev=%.0fx SL=%.6f HWM=%.1f%% lvl=%d\n",
			pos.Symbol, pos.Direction, pos.MarginUsed, pos.EffectiveEntryPrice,
			pos.Leverage, pos.CurrentStopLossPrice, pos.HighWaterMark, pos.TrailLevel)
	}
	t.Send(b.String())
}

// Start: long-polling только ради команд.
func (t *Telegram) Start(ctx context.Context) error {
	if t == nil || t.bot == nil {
		return nil
	}

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}

	updates := t.bot.GetUpdatesChan(u)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd := <-updates:
				if upd.Message != nil && upd.Message.Chat != nil &&
					upd.Message.Chat.ID == t.chatID && upd.Message.IsCommand() {

					switch upd.Message.Command() {
					case "positions":
						go t.handlePositions()
					}
				}
			}
		}
	}()
	return nil
}

func (t *Telegram) Stop() {}

// Stdout — заглушка, всё в лог.
type Stdout struct{}

func NewStdout() *Stdout                           { return &Stdout{} }
func (s *Stdout) Send(msg string)                  { log.Println(msg) }
func (s *Stdout) Sendf(format string, args ...any) { log.Printf(format, args...) }
