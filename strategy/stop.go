package strategy

import (
	"context"
	"log"

	"github.com/shopspring/decimal"

	"futures-signal-bot/stream"
	"futures-signal-bot/venue"
)

// handleStop layers a trailing-stop activation chain atop the Classic
// open/reverse rule.
func (c *Core) handleStop(ctx context.Context, action Action) error {
	c.mu.Lock()
	c.cancelStopLocked(ctx)
	if err := c.classicOpenOrReverse(ctx, action); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	return c.armStopActivation(ctx, action)
}

// cancelStopLocked cancels the active stop order and pending activation
// watch. Callers must already hold c.mu.
func (c *Core) cancelStopLocked(ctx context.Context) {
	if c.activeStopOrderID != "" {
		if err := c.deps.Venue.CancelOrder(ctx, c.symbol, c.activeStopOrderID); err != nil {
			log.Printf("⚠️ STRATEGY: cancel active stop %s: %v", c.activeStopOrderID, err)
		}
		c.activeStopOrderID = ""
	}
	if c.pendingStop != nil {
		c.deps.Stream.CancelAll()
		c.pendingStop = nil
	}
}

// armStopActivation queries the exact entry price, computes the
// activation and stop-limit prices, and registers the activation watch.
// The stop order itself is placed only when the watch fires.
func (c *Core) armStopActivation(ctx context.Context, action Action) error {
	_, posSide := sideOf(action)

	entry, ok, err := c.deps.Venue.GetExactEntryPrice(ctx, c.symbol, posSide)
	if err != nil {
		return fmtErr("read exact entry price", err)
	}
	if !ok {
		return fmtErr("arm stop activation", errNoEntryPrice)
	}

	activationFraction := roiToPriceFraction(c.deps.Cfg.ActivationPercent, c.leverage)
	stopFraction := roiToPriceFraction(c.deps.Cfg.StopPercent, c.leverage)

	var activationPrice, stopLimitPrice decimal.Decimal
	var dir stream.Direction
	if action == ActionBuy {
		activationPrice = priceForLong(entry, activationFraction)
		stopLimitPrice = priceForLong(entry, stopFraction)
		dir = stream.Long
	} else {
		activationPrice = priceForShort(entry, activationFraction)
		stopLimitPrice = priceForShort(entry, stopFraction)
		dir = stream.Short
	}

	c.mu.Lock()
	c.pendingStop = &pendingStop{
		entry:           entry,
		activationPrice: activationPrice,
		stopLimitPrice:  stopLimitPrice,
		positionSide:    posSide,
	}
	c.mu.Unlock()

	c.deps.Stream.Watch(activationPrice, dir, false, decimal.Zero, "", func(decimal.Decimal) {
		c.onStopActivationReached(context.Background())
	})

	log.Printf("👁️ STRATEGY: armed stop activation at %s (stop_limit=%s)", activationPrice.String(), stopLimitPrice.String())
	return nil
}

// onStopActivationReached places the reduce-only STOP order exactly once,
// guarded by the placement lock.
func (c *Core) onStopActivationReached(ctx context.Context) {
	c.mu.Lock()
	pending := c.pendingStop
	if pending == nil {
		c.mu.Unlock()
		return
	}
	c.pendingStop = nil
	c.mu.Unlock()

	pos, err := c.deps.Venue.GetCurrentPosition(ctx, c.symbol, pending.positionSide)
	if err == nil && pos == nil {
		err = errNoPosition
	}
	if err != nil {
		log.Printf("❌ STRATEGY: stop activation fired but position re-query failed: %v", err)
		return
	}

	info, ok := c.deps.Venue.InstrumentInfo(c.symbol)
	if !ok {
		log.Println("❌ STRATEGY: no instrument info cached, cannot place activated stop")
		return
	}
	offset := info.TickSize.Mul(decimal.NewFromInt(int64(c.deps.Cfg.StopTickOffsetMultiplier)))

	var stopPrice decimal.Decimal
	var exitSide venue.Side
	if pending.positionSide == venue.PositionLong {
		stopPrice = pending.stopLimitPrice.Add(offset)
		exitSide = venue.SideSell
	} else {
		stopPrice = pending.stopLimitPrice.Sub(offset)
		exitSide = venue.SideBuy
	}

	orderID, err := c.deps.Venue.PlaceStopLimitReduceOnly(ctx, c.symbol, exitSide, pos.Size, stopPrice, pending.stopLimitPrice)
	if err != nil {
		log.Printf("❌ STRATEGY: placing activated stop failed: %v", err)
		return
	}

	c.mu.Lock()
	c.activeStopOrderID = orderID
	c.mu.Unlock()

	log.Printf("✅ STRATEGY: stop order %s placed stop=%s limit=%s", orderID, stopPrice.String(), pending.stopLimitPrice.String())
}
