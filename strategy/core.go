package strategy

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/shopspring/decimal"

	"futures-signal-bot/config"
	"futures-signal-bot/venue"
)

// pendingStop is the Stop variant's armed-but-not-yet-placed stop order.
type pendingStop struct {
	entry           decimal.Decimal
	activationPrice decimal.Decimal
	stopLimitPrice  decimal.Decimal
	positionSide    venue.PositionSide
}

// hedgeState is the Hedging variant's full S0-S5 state.
type hedgeState struct {
	mainSide   Action
	mainEntry  decimal.Decimal
	mainVolume decimal.Decimal
	mainSet    bool

	hedgeSide  Action
	hedgeSet   bool
	hedgeEntry decimal.Decimal

	activeStopOrderID string
	lastStopPrice     decimal.Decimal
	failureCount      int

	barrierSet   bool
	barrierPrice decimal.Decimal
	barrierSide  string // "above" | "below"

	placing bool
}

// Core is the single Strategy Core instance for the process. Exactly one
// of {classic, stop, hedging, take} governs its behavior, chosen once at
// construction.
type Core struct {
	deps Deps

	mu sync.Mutex // placement lock: serializes all state mutation

	symbol   string
	kind     config.Strategy
	leverage int

	lastAction   *Action
	lastQuantity decimal.Decimal
	hasQuantity  bool

	// stop variant
	activeStopOrderID string
	pendingStop       *pendingStop

	// hedging variant
	hedge hedgeState
}

// NewCore builds the Strategy Core for the configured variant.
func NewCore(deps Deps) *Core {
	return &Core{
		deps:     deps,
		symbol:   deps.Cfg.Symbol,
		kind:     deps.Cfg.Strategy,
		leverage: deps.Cfg.Leverage,
	}
}

// Reconcile queries the venue position at startup and restores last_action
// / last_quantity from it, so a restart doesn't forget what's already open.
func (c *Core) Reconcile(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos, err := c.deps.Venue.GetCurrentPosition(ctx, c.symbol, venue.PositionBoth)
	if err != nil {
		log.Printf("⚠️ STRATEGY: startup reconciliation query failed: %v", err)
		return
	}
	if pos == nil {
		log.Println("✅ STRATEGY: no open position found at startup")
		return
	}

	action := actionFromPositionSide(pos.Side)
	c.lastAction = &action
	c.lastQuantity = pos.Size
	c.hasQuantity = true

	log.Printf("✅ STRATEGY: restored last_action=%s last_quantity=%s from venue position", action, pos.Size.String())

	if c.kind == config.StrategyHedging {
		c.hedge.mainSide = action
		c.hedge.mainEntry = pos.EntryPrice
		c.hedge.mainVolume = pos.Size
		c.hedge.mainSet = true
	}
}

// ProcessWebhook runs the shared parse -> duplicate-filter -> dispatch
// pipeline and returns the outcome to send back to the caller.
func (c *Core) ProcessWebhook(ctx context.Context, body string) Outcome {
	action, ok := parseSignal(body)
	if !ok {
		return errOutcome("no buy/sell action recognized in message")
	}

	c.mu.Lock()
	duplicate := c.lastAction != nil && *c.lastAction == action
	if !duplicate {
		c.lastAction = &action
	}
	c.mu.Unlock()

	if duplicate {
		log.Printf("ℹ️ STRATEGY: duplicate %s signal ignored", action)
		return ignored(fmt.Sprintf("duplicate %s signal", action))
	}

	var err error
	switch c.kind {
	case config.StrategyClassic:
		err = c.handleClassic(ctx, action)
	case config.StrategyStop:
		err = c.handleStop(ctx, action)
	case config.StrategyHedging:
		err = c.handleHedging(ctx, action)
	case config.StrategyTake:
		err = c.handleTake(ctx, action)
	default:
		err = fmt.Errorf("unknown strategy kind %q", c.kind)
	}

	if err != nil {
		log.Printf("❌ STRATEGY: processing %s failed: %v", action, err)
		return errOutcome(err.Error())
	}
	return success(c.symbol, action)
}

// RunPriceConsumer is the single consumer goroutine for price events,
// resolving the cyclic stream<->strategy callback graph: the stream's
// reader goroutine only ever records a price and enqueues it; every
// watch evaluation (and therefore every OnReach callback's venue calls)
// happens here instead, so a slow venue retry during stop/hedge
// placement can never stall the websocket reader. Run this in its own
// goroutine for the lifetime of the process; it returns when ctx is
// cancelled or the stream's event channel is closed.
func (c *Core) RunPriceConsumer(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.deps.Stream.Events():
			if !ok {
				return
			}
			c.deps.Stream.EvaluateWatches(ev.Price)
		}
	}
}

// currentPrice prefers the live stream tick and falls back to a REST read
// when no tick has arrived yet.
func (c *Core) currentPrice(ctx context.Context) (decimal.Decimal, error) {
	if p, ok := c.deps.Stream.LatestPrice(); ok {
		return p, nil
	}
	log.Println("⚠️ STRATEGY: no stream price yet, falling back to REST")
	return c.deps.Venue.LatestMarketPrice(ctx, c.symbol)
}

// Cleanup cancels all outstanding watches and protective orders, used on
// shutdown.
func (c *Core) Cleanup(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.deps.Stream.CancelAll()

	if c.activeStopOrderID != "" {
		if err := c.deps.Venue.CancelOrder(ctx, c.symbol, c.activeStopOrderID); err != nil {
			log.Printf("⚠️ STRATEGY: cancel active stop on shutdown: %v", err)
		}
	}
	if c.hedge.activeStopOrderID != "" {
		if err := c.deps.Venue.CancelOrder(ctx, c.symbol, c.hedge.activeStopOrderID); err != nil {
			log.Printf("⚠️ STRATEGY: cancel hedge stop on shutdown: %v", err)
		}
	}
	if err := c.deps.Venue.CancelAllStops(ctx, c.symbol, venue.PositionBoth); err != nil {
		log.Printf("⚠️ STRATEGY: cancel-all-stops on shutdown: %v", err)
	}
}

// Status renders a human-readable snapshot for the Telegram /status
// command.
func (c *Core) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	last := "none"
	if c.lastAction != nil {
		last = string(*c.lastAction)
	}

	switch c.kind {
	case config.StrategyHedging:
		return fmt.Sprintf(
			"strategy=hedging symbol=%s last_action=%s main_side=%s hedge_side=%s failure_count=%d/%d barrier_set=%v",
			c.symbol, last, c.hedge.mainSide, c.hedge.hedgeSide, c.hedge.failureCount, c.deps.Cfg.MaxFailures, c.hedge.barrierSet,
		)
	case config.StrategyStop:
		pendingDesc := "none"
		if c.pendingStop != nil {
			pendingDesc = fmt.Sprintf("activation=%s stop_limit=%s", c.pendingStop.activationPrice, c.pendingStop.stopLimitPrice)
		}
		return fmt.Sprintf(
			"strategy=stop symbol=%s last_action=%s last_quantity=%s active_stop=%s pending=%s",
			c.symbol, last, c.lastQuantity.String(), orNone(c.activeStopOrderID), pendingDesc,
		)
	default:
		return fmt.Sprintf("strategy=%s symbol=%s last_action=%s last_quantity=%s", c.kind, c.symbol, last, c.lastQuantity.String())
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
