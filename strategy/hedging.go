package strategy

import (
	"context"
	"log"

	"github.com/shopspring/decimal"

	"futures-signal-bot/stream"
	"futures-signal-bot/venue"
)

// handleHedging dispatches to the S0-S5 state machine based on the
// current main/hedge occupancy.
func (c *Core) handleHedging(ctx context.Context, action Action) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case !c.hedge.mainSet:
		return c.hedgeOpenMain(ctx, action)
	case c.hedge.mainSet && !c.hedge.hedgeSet:
		if c.hedge.mainSide == action {
			log.Printf("ℹ️ STRATEGY: %s matches existing hedging main, no-op", action)
			return nil
		}
		return c.hedgeReplaceMainOnly(ctx, action)
	default:
		return c.hedgeRotateHedgeToMain(ctx, action)
	}
}

// hedgeOpenMain is the S0 -> S1 transition: open the main position and
// arm the activation watch. Callers must hold c.mu.
func (c *Core) hedgeOpenMain(ctx context.Context, action Action) error {
	price, err := c.currentPrice(ctx)
	if err != nil {
		return fmtErr("read current price", err)
	}

	side, posSide := sideOf(action)
	qty := quantityFor(c.deps.Cfg.PositionSize, c.leverage, price)
	if err := c.deps.Venue.OpenMarket(ctx, c.symbol, side, qty, posSide); err != nil {
		return fmtErr("open hedging main", err)
	}

	entry, ok, err := c.deps.Venue.GetExactEntryPrice(ctx, c.symbol, posSide)
	if err != nil {
		return fmtErr("read main entry price", err)
	}
	if !ok {
		return fmtErr("open hedging main", errNoEntryPrice)
	}

	c.hedge = hedgeState{
		mainSide:   action,
		mainEntry:  entry,
		mainVolume: qty,
		mainSet:    true,
	}

	log.Printf("✅ STRATEGY: hedging main opened %s %s entry=%s volume=%s", action, c.symbol, entry.String(), qty.String())
	c.armHedgeActivationLocked()
	return nil
}

// armHedgeActivationLocked registers the activation watch around the
// current mainEntry, honoring any barrier carried over from a prior S4
// transient. Callers must hold c.mu.
func (c *Core) armHedgeActivationLocked() {
	fraction := roiToPriceFraction(c.deps.Cfg.ActivationPnL, c.leverage)
	var target decimal.Decimal
	if c.hedge.mainSide == ActionBuy {
		target = priceForLong(c.hedge.mainEntry, fraction)
	} else {
		target = priceForShort(c.hedge.mainEntry, fraction)
	}
	dir := directionToward(c.hedge.mainEntry, target)

	barrierSet := c.hedge.barrierSet
	barrierPrice := c.hedge.barrierPrice
	barrierSide := stream.BarrierSide(c.hedge.barrierSide)

	c.deps.Stream.Watch(target, dir, barrierSet, barrierPrice, barrierSide, func(decimal.Decimal) {
		c.onHedgeActivationReached(context.Background())
	})

	log.Printf("👁️ STRATEGY: hedging activation armed at %s (barrier=%v)", target.String(), barrierSet)
}

// directionToward picks the watch direction that fires as price moves
// from entry to target: falling targets watch "short", rising "long".
func directionToward(entry, target decimal.Decimal) stream.Direction {
	if target.LessThan(entry) {
		return stream.Short
	}
	return stream.Long
}

// onHedgeActivationReached is the S1 -> S2 transition.
func (c *Core) onHedgeActivationReached(ctx context.Context) {
	c.mu.Lock()
	if !c.hedge.mainSet || c.hedge.hedgeSet || c.hedge.placing {
		c.mu.Unlock()
		return
	}
	c.hedge.placing = true
	mainSide := c.hedge.mainSide
	qty := c.hedge.mainVolume
	c.mu.Unlock()

	hedgeAction := opposite(mainSide)
	side, posSide := sideOf(hedgeAction)

	price, err := c.currentPrice(ctx)
	if err != nil {
		log.Printf("❌ STRATEGY: hedging activation fired but price read failed: %v", err)
		c.clearPlacing()
		return
	}

	if err := c.deps.Venue.OpenMarket(ctx, c.symbol, side, qty, posSide); err != nil {
		log.Printf("❌ STRATEGY: opening hedge failed: %v", err)
		c.clearPlacing()
		return
	}

	entry, ok, err := c.deps.Venue.GetExactEntryPrice(ctx, c.symbol, posSide)
	if err != nil || !ok {
		log.Printf("❌ STRATEGY: reading hedge entry failed: %v", err)
		entry = price
	}

	slFraction := roiToPriceFraction(c.deps.Cfg.SLPnL, c.leverage)
	triggerFraction := roiToPriceFraction(c.deps.Cfg.TriggerPnL, c.leverage)

	var slPrice, triggerPrice decimal.Decimal
	if hedgeAction == ActionBuy {
		slPrice = priceForLong(entry, slFraction)
		triggerPrice = priceForLong(entry, triggerFraction)
	} else {
		slPrice = priceForShort(entry, slFraction)
		triggerPrice = priceForShort(entry, triggerFraction)
	}

	orderID, err := c.deps.Venue.PlaceStopMarketClose(ctx, c.symbol, posSide, slPrice)
	if err != nil {
		log.Printf("❌ STRATEGY: placing hedge SL failed: %v", err)
		c.clearPlacing()
		return
	}

	c.mu.Lock()
	c.hedge.hedgeSide = hedgeAction
	c.hedge.hedgeEntry = entry
	c.hedge.hedgeSet = true
	c.hedge.activeStopOrderID = orderID
	c.hedge.lastStopPrice = slPrice
	c.hedge.placing = false
	c.hedge.barrierSet = false
	c.hedge.barrierPrice = decimal.Zero
	c.hedge.barrierSide = ""
	c.mu.Unlock()

	c.deps.Stream.Watch(slPrice, directionToward(entry, slPrice), false, decimal.Zero, "", func(decimal.Decimal) {
		c.onHedgeSLReached(context.Background())
	})
	c.deps.Stream.Watch(triggerPrice, directionToward(entry, triggerPrice), false, decimal.Zero, "", func(decimal.Decimal) {
		c.onHedgeTriggerReached(context.Background())
	})

	log.Printf("✅ STRATEGY: hedge opened %s entry=%s sl=%s trigger=%s", hedgeAction, entry.String(), slPrice.String(), triggerPrice.String())
}

func (c *Core) clearPlacing() {
	c.mu.Lock()
	c.hedge.placing = false
	c.mu.Unlock()
}

// onHedgeSLReached is the S2 -> {S1, S5} failure path.
func (c *Core) onHedgeSLReached(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hedge.hedgeSet {
		return
	}

	c.deps.Stream.CancelAll()
	c.hedge.hedgeSet = false
	c.hedge.hedgeSide = ""
	c.hedge.hedgeEntry = decimal.Zero
	c.hedge.activeStopOrderID = ""
	c.hedge.failureCount++

	if c.hedge.failureCount >= c.deps.Cfg.MaxFailures {
		log.Printf("⚠️ STRATEGY: hedging disabled after %d failures", c.hedge.failureCount)
		return // S5: no new activation watch
	}

	log.Printf("ℹ️ STRATEGY: hedge SL hit, failure_count=%d, re-arming activation", c.hedge.failureCount)
	c.armHedgeActivationLocked() // back to S1
}

// onHedgeTriggerReached is the S2 -> S3 transition.
func (c *Core) onHedgeTriggerReached(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hedge.hedgeSet {
		return
	}

	c.deps.Stream.CancelAll()

	if c.hedge.activeStopOrderID != "" {
		if err := c.deps.Venue.CancelOrder(ctx, c.symbol, c.hedge.activeStopOrderID); err != nil {
			log.Printf("⚠️ STRATEGY: cancel hedge SL before TP move: %v", err)
		}
	}

	tpFraction := roiToPriceFraction(c.deps.Cfg.TPPnL, c.leverage)
	var tpPrice decimal.Decimal
	_, hedgePosSide := sideOf(c.hedge.hedgeSide)
	if c.hedge.hedgeSide == ActionBuy {
		tpPrice = priceForLong(c.hedge.hedgeEntry, tpFraction)
	} else {
		tpPrice = priceForShort(c.hedge.hedgeEntry, tpFraction)
	}

	orderID, err := c.deps.Venue.PlaceStopMarketClose(ctx, c.symbol, hedgePosSide, tpPrice)
	if err != nil {
		log.Printf("❌ STRATEGY: placing hedge TP failed: %v", err)
		return
	}
	c.hedge.activeStopOrderID = orderID
	c.hedge.lastStopPrice = tpPrice

	c.deps.Stream.Watch(tpPrice, directionToward(c.hedge.hedgeEntry, tpPrice), false, decimal.Zero, "", func(decimal.Decimal) {
		c.onHedgeTPReached(context.Background())
	})

	log.Printf("✅ STRATEGY: hedge trigger hit, stop moved to tp=%s", tpPrice.String())
}

// onHedgeTPReached is the S3 -> S4 -> S1 transition: the exchange-side TP
// order closes the hedge; we re-arm S1 with a barrier at the TP level.
func (c *Core) onHedgeTPReached(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hedge.hedgeSet {
		return
	}

	tpPrice := c.hedge.activeStopPriceHint()

	barrierSide := "above"
	if c.hedge.mainSide == ActionBuy {
		barrierSide = "below"
	}

	c.hedge.hedgeSet = false
	c.hedge.hedgeSide = ""
	c.hedge.hedgeEntry = decimal.Zero
	c.hedge.activeStopOrderID = ""
	c.hedge.barrierSet = true
	c.hedge.barrierPrice = tpPrice
	c.hedge.barrierSide = barrierSide

	log.Printf("✅ STRATEGY: hedge TP closed, barrier armed at %s side=%s", tpPrice.String(), barrierSide)
	c.armHedgeActivationLocked()
}

// hedgeReplaceMainOnly handles a reversing signal while only the main
// leg is open: close main, open the new main, reset to S1.
func (c *Core) hedgeReplaceMainOnly(ctx context.Context, action Action) error {
	closeSide, closePosSide := sideOf(c.hedge.mainSide)
	closeSide = oppositeSide(closeSide)
	if err := c.deps.Venue.OpenMarket(ctx, c.symbol, closeSide, c.hedge.mainVolume, closePosSide); err != nil {
		return fmtErr("close hedging main", err)
	}

	c.deps.Stream.CancelAll()
	c.hedge = hedgeState{}
	return c.hedgeOpenMain(ctx, action)
}

// hedgeRotateHedgeToMain promotes the existing hedge leg to be the new
// main on a fresh signal, closes the former main, and re-enters S1.
func (c *Core) hedgeRotateHedgeToMain(ctx context.Context, action Action) error {
	c.deps.Stream.CancelAll()

	if c.hedge.activeStopOrderID != "" {
		if err := c.deps.Venue.CancelOrder(ctx, c.symbol, c.hedge.activeStopOrderID); err != nil {
			log.Printf("⚠️ STRATEGY: cancel hedge stop during rotation: %v", err)
		}
	}

	closeSide, closePosSide := sideOf(c.hedge.mainSide)
	closeSide = oppositeSide(closeSide)
	if err := c.deps.Venue.OpenMarket(ctx, c.symbol, closeSide, c.hedge.mainVolume, closePosSide); err != nil {
		return fmtErr("close former hedging main", err)
	}

	newEntry := c.hedge.hedgeEntry
	if newEntry.IsZero() {
		if p, err := c.currentPrice(ctx); err == nil {
			newEntry = p
		}
	}

	c.hedge = hedgeState{
		mainSide:   c.hedge.hedgeSide,
		mainEntry:  newEntry,
		mainVolume: c.hedge.mainVolume,
		mainSet:    true,
	}

	log.Printf("✅ STRATEGY: promoted hedge to main side=%s entry=%s", c.hedge.mainSide, newEntry.String())
	c.armHedgeActivationLocked()
	return nil
}

func oppositeSide(s venue.Side) venue.Side {
	if s == venue.SideBuy {
		return venue.SideSell
	}
	return venue.SideBuy
}

// activeStopPriceHint recovers the TP price recorded at S3->S4 for the
// barrier computation. Hedging always knows tpPrice from the live call
// site; this accessor exists so onHedgeTPReached reads a single field.
func (h *hedgeState) activeStopPriceHint() decimal.Decimal {
	return h.lastStopPrice
}
