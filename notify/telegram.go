// Package notify carries out-of-band alerts: Telegram messages and an
// optional Firebase push channel. Neither is on the critical trading
// path — a notifier failure is logged and swallowed, never propagated
// to the strategy layer.
package notify

import (
	"log"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram broadcasts to a fixed set of chat IDs and exposes /status and
// /stop commands back to the strategy layer.
type Telegram struct {
	bot     *tgbotapi.BotAPI
	chatIDs []int64

	mu         sync.Mutex
	statusFunc func() string
	stopFunc   func()
}

// NewTelegram returns nil (a legal, silently-no-op receiver) when token is
// empty, so Telegram notifications can be left unconfigured entirely.
func NewTelegram(token string, chatIDs []string) *Telegram {
	if token == "" {
		log.Println("⚠️ TELEGRAM: TELEGRAM_BOT_TOKEN not set, notifications disabled")
		return nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		log.Printf("⚠️ TELEGRAM: failed to init bot: %v", err)
		return nil
	}

	ids := make([]int64, 0, len(chatIDs))
	for _, raw := range chatIDs {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			log.Printf("⚠️ TELEGRAM: skipping malformed chat id %q", raw)
			continue
		}
		ids = append(ids, id)
	}

	log.Printf("✅ TELEGRAM: authorized as %s, broadcasting to %d chat(s)", bot.Self.UserName, len(ids))
	return &Telegram{bot: bot, chatIDs: ids}
}

// OnStatus registers the callback used to answer the /status command.
func (t *Telegram) OnStatus(f func() string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.statusFunc = f
	t.mu.Unlock()
}

// OnStop registers the callback invoked by the /stop command.
func (t *Telegram) OnStop(f func()) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.stopFunc = f
	t.mu.Unlock()
}

// Listen polls for commands until the bot's update channel closes. Run it
// in its own goroutine; it never blocks Notify.
func (t *Telegram) Listen() {
	if t == nil {
		return
	}
	log.Println("📢 TELEGRAM: listening for commands")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil || !update.Message.IsCommand() {
			continue
		}

		switch update.Message.Command() {
		case "status":
			t.mu.Lock()
			fn := t.statusFunc
			t.mu.Unlock()
			if fn != nil {
				t.Notify(fn())
			}
		case "stop":
			t.Notify("🛑 stop requested via Telegram, cancelling protective orders and shutting down")
			t.mu.Lock()
			fn := t.stopFunc
			t.mu.Unlock()
			if fn != nil {
				fn()
			}
		}
	}
}

// Notify sends msg to every configured chat, fire-and-forget.
func (t *Telegram) Notify(msg string) {
	if t == nil || t.bot == nil || len(t.chatIDs) == 0 {
		return
	}

	for _, id := range t.chatIDs {
		go func(chatID int64) {
			cfg := tgbotapi.NewMessage(chatID, msg)
			cfg.ParseMode = "Markdown"
			if _, err := t.bot.Send(cfg); err != nil {
				log.Printf("⚠️ TELEGRAM: send to %d failed: %v", chatID, err)
			}
		}(id)
	}
}
