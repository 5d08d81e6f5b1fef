package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"futures-signal-bot/config"
	"futures-signal-bot/gateway"
	"futures-signal-bot/health"
	"futures-signal-bot/notify"
	"futures-signal-bot/stream"
	"futures-signal-bot/strategy"
	"futures-signal-bot/venue"
)

const listenAddr = ":80"

// App owns the full process lifecycle as one struct passed by reference,
// instead of package-level singletons.
type App struct {
	cfg *config.Config

	venue    *venue.Adapter
	stream   *stream.Stream
	core     *strategy.Core
	gw       *gateway.Gateway
	telegram *notify.Telegram
	push     *notify.Push

	restarting atomic.Bool
	cancel     context.CancelFunc
}

func main() {
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Println("🚀 FUTURES SIGNAL BOT starting")
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())

	app := &App{cfg: cfg, cancel: cancel}

	if err := app.start(ctx); err != nil {
		log.Fatalf("❌ STARTUP: %v", err)
	}

	app.waitForSignal()
	app.shutdown()
}

// start builds every component in dependency order: venue adapter ->
// strategy core -> price stream (reader goroutine) + price-event consumer
// goroutine -> startup reconciliation -> health supervisor -> HTTP bind.
func (a *App) start(ctx context.Context) error {
	a.venue = venue.NewAdapter(a.cfg.VenueAPIKey, a.cfg.VenueAPISecret, a.cfg.IsTestnet)

	hedgeMode := a.cfg.Strategy == config.StrategyHedging
	if err := a.venue.Initialize(ctx, a.cfg.Symbol, a.cfg.Leverage, hedgeMode); err != nil {
		return fmt.Errorf("initialize venue adapter: %w", err)
	}

	a.stream = stream.New(a.cfg.Symbol)

	a.core = strategy.NewCore(strategy.Deps{
		Venue:  a.venue,
		Stream: a.stream,
		Cfg:    a.cfg,
	})

	go a.stream.Run(ctx)
	go a.core.RunPriceConsumer(ctx)
	a.core.Reconcile(ctx)

	a.telegram = notify.NewTelegram(a.cfg.TelegramBotToken, a.cfg.TelegramChatIDs)
	if a.telegram != nil {
		a.telegram.OnStatus(a.core.Status)
		a.telegram.OnStop(func() {
			a.shutdown()
			os.Exit(0)
		})
		go a.telegram.Listen()
		a.telegram.Notify("🚀 bot started, symbol=" + a.cfg.Symbol + " strategy=" + string(a.cfg.Strategy))
	}

	a.push = notify.NewPush(a.cfg.FirebaseCredentialsFile)

	supervisor := health.New(
		fmt.Sprintf("http://127.0.0.1%s/health", listenAddr),
		a.stream.IsHealthy,
		a.requestRestart,
	)
	go supervisor.Run(ctx)

	a.gw = gateway.New(listenAddr, a.cfg.AllowedIPs, a.handleWebhook, a.handleHealth)
	go func() {
		if err := a.gw.ListenAndServe(); err != nil {
			log.Printf("❌ GATEWAY: server error: %v", err)
		}
	}()

	log.Println("✅ STARTUP: all components online")
	return nil
}

func (a *App) handleWebhook(body string) gateway.WebhookResult {
	outcome := a.core.ProcessWebhook(context.Background(), body)
	if outcome.Status == "success" {
		if a.telegram != nil {
			a.telegram.Notify(fmt.Sprintf("✅ signal %s accepted for %s", outcome.Action, outcome.Symbol))
		}
		a.push.NotifyPositionEvent(outcome.Symbol, "signal accepted",
			fmt.Sprintf("%s %s", outcome.Symbol, outcome.Action), map[string]string{"action": string(outcome.Action)})
	}
	return gateway.WebhookResult{
		Status: outcome.Status,
		Symbol: outcome.Symbol,
		Action: string(outcome.Action),
		Detail: outcome.Detail,
	}
}

func (a *App) handleHealth() (bool, string) {
	if !a.stream.IsHealthy() {
		return false, "price stream stale"
	}
	return true, "ok"
}

// requestRestart is the single-writer restart gate: only the first
// caller proceeds, every later call while a restart is pending is a no-op.
func (a *App) requestRestart(reason string) {
	if !a.restarting.CompareAndSwap(false, true) {
		log.Printf("ℹ️ LIFECYCLE: restart already in progress, ignoring duplicate request (%s)", reason)
		return
	}

	log.Printf("⚠️ LIFECYCLE: restart requested: %s", reason)
	go a.performRestart()
}

func (a *App) performRestart() {
	a.shutdown()
	time.Sleep(3 * time.Second)

	exe, err := os.Executable()
	if err != nil {
		log.Fatalf("❌ LIFECYCLE: cannot resolve executable for restart: %v", err)
	}

	log.Println("🔁 LIFECYCLE: re-executing process image")
	if err := syscall.Exec(exe, os.Args, os.Environ()); err != nil {
		log.Fatalf("❌ LIFECYCLE: exec failed: %v", err)
	}
}

func (a *App) waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("ℹ️ LIFECYCLE: shutdown signal received")
}

// shutdown stops accepting new signals, cancels all watches and
// protective orders, and tears down the stream and HTTP listener.
func (a *App) shutdown() {
	log.Println("🛑 LIFECYCLE: shutting down")

	if a.gw != nil {
		a.gw.Shutdown()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if a.core != nil {
		a.core.Cleanup(ctx)
	}

	a.cancel()
	log.Println("✅ LIFECYCLE: shutdown complete")
}
