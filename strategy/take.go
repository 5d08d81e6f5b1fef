package strategy

import (
	"context"
	"log"

	"github.com/shopspring/decimal"

	"futures-signal-bot/venue"
)

// handleTake opens or reverses exactly like Classic, then lays two
// reduce-only limit take-profit orders across the resulting position.
func (c *Core) handleTake(ctx context.Context, action Action) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos, err := c.deps.Venue.GetCurrentPosition(ctx, c.symbol, venue.PositionBoth)
	if err != nil {
		return fmtErr("get current position", err)
	}

	if pos != nil {
		if err := c.deps.Venue.CancelAllLimitOrders(ctx, c.symbol); err != nil {
			log.Printf("⚠️ STRATEGY: cancel old take-profit orders before reversal: %v", err)
		}
	}

	if err := c.classicOpenOrReverse(ctx, action); err != nil {
		return err
	}

	_, posSide := sideOf(action)
	entry, ok, err := c.deps.Venue.GetExactEntryPrice(ctx, c.symbol, posSide)
	if err != nil {
		return fmtErr("read exact entry for take-profit placement", err)
	}
	if !ok {
		return fmtErr("place take-profit orders", errNoEntryPrice)
	}

	return c.placeTakeProfitOrders(ctx, action, entry, c.lastQuantity)
}

// placeTakeProfitOrders lays two scale-out limit TPs sized as
// configured percentages of the total position quantity.
func (c *Core) placeTakeProfitOrders(ctx context.Context, action Action, entry, totalQty decimal.Decimal) error {
	tp1Fraction := roiToPriceFraction(c.deps.Cfg.TP1Percent, c.leverage)
	tp2Fraction := roiToPriceFraction(c.deps.Cfg.TP2Percent, c.leverage)

	var tp1, tp2 decimal.Decimal
	var exitSide venue.Side
	if action == ActionBuy {
		tp1 = priceForLong(entry, tp1Fraction)
		tp2 = priceForLong(entry, tp2Fraction)
		exitSide = venue.SideSell
	} else {
		tp1 = priceForShort(entry, tp1Fraction)
		tp2 = priceForShort(entry, tp2Fraction)
		exitSide = venue.SideBuy
	}

	qty1 := totalQty.Mul(decimal.NewFromFloat(c.deps.Cfg.Qty1Percent)).Div(decimal.NewFromInt(100))
	qty2 := totalQty.Mul(decimal.NewFromFloat(c.deps.Cfg.Qty2Percent)).Div(decimal.NewFromInt(100))

	if _, err := c.deps.Venue.PlaceLimitReduceOnly(ctx, c.symbol, exitSide, qty1, tp1); err != nil {
		return fmtErr("place tp1", err)
	}
	if _, err := c.deps.Venue.PlaceLimitReduceOnly(ctx, c.symbol, exitSide, qty2, tp2); err != nil {
		return fmtErr("place tp2", err)
	}

	log.Printf("✅ STRATEGY: take-profit orders placed tp1=%s(%s) tp2=%s(%s)", tp1.String(), qty1.String(), tp2.String(), qty2.String())
	return nil
}
