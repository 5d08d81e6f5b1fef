package strategy

import (
	"context"
	"log"

	"github.com/shopspring/decimal"

	"futures-signal-bot/venue"
)

// handleClassic implements the one-rule Classic variant: open, reverse, or
// no-op on same direction.
func (c *Core) handleClassic(ctx context.Context, action Action) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.classicOpenOrReverse(ctx, action)
}

// classicOpenOrReverse is shared by the Classic, Stop, and Take variants;
// callers already hold c.mu.
func (c *Core) classicOpenOrReverse(ctx context.Context, action Action) error {
	pos, err := c.deps.Venue.GetCurrentPosition(ctx, c.symbol, venue.PositionBoth)
	if err != nil {
		return fmtErr("get current position", err)
	}

	price, err := c.currentPrice(ctx)
	if err != nil {
		return fmtErr("read current price", err)
	}

	if pos == nil {
		return c.openFresh(ctx, action, price)
	}

	positionAction := actionFromPositionSide(pos.Side)
	if positionAction == action {
		log.Printf("ℹ️ STRATEGY: %s signal matches existing %s position, no-op", action, positionAction)
		return nil
	}

	return c.reverse(ctx, action, price)
}

func (c *Core) openFresh(ctx context.Context, action Action, price decimal.Decimal) error {
	qty := quantityFor(c.deps.Cfg.PositionSize, c.leverage, price)
	side, posSide := sideOf(action)

	if err := c.deps.Venue.OpenMarket(ctx, c.symbol, side, qty, posSide); err != nil {
		return fmtErr("open market", err)
	}

	c.lastQuantity = qty
	c.hasQuantity = true
	log.Printf("✅ STRATEGY: opened %s %s quantity=%s", action, c.symbol, qty.String())
	return nil
}

// reverse submits one market order sized last_quantity + new_quantity in
// the opposite direction so it both closes and flips in a single fill.
func (c *Core) reverse(ctx context.Context, action Action, price decimal.Decimal) error {
	newQty := quantityFor(c.deps.Cfg.PositionSize, c.leverage, price)

	total := newQty.Mul(decimal.NewFromInt(2))
	if c.hasQuantity {
		total = c.lastQuantity.Add(newQty)
	} else {
		log.Println("⚠️ STRATEGY: last_quantity unknown, using 2x new quantity for reversal")
	}

	side, posSide := sideOf(action)
	if err := c.deps.Venue.OpenMarket(ctx, c.symbol, side, total, posSide); err != nil {
		return fmtErr("reverse market order", err)
	}

	c.lastQuantity = newQty
	c.hasQuantity = true
	log.Printf("✅ STRATEGY: reversed to %s %s total_quantity=%s (stored=%s)", action, c.symbol, total.String(), newQty.String())
	return nil
}
