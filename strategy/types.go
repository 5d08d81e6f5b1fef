// Package strategy owns the signal-to-execution state machines. Exactly
// one variant runs per process, selected by configuration, but all
// variants share the same outer interface and the same parse /
// duplicate-filter / startup-reconciliation skeleton.
package strategy

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"futures-signal-bot/config"
	"futures-signal-bot/stream"
	"futures-signal-bot/venue"
)

// Action is a parsed webhook directive.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Outcome is the verdict returned by ProcessWebhook, mirroring the three
// JSON response shapes of the webhook handler.
type Outcome struct {
	Status string // "success" | "ignored" | "error"
	Symbol string
	Action Action
	Detail string
}

func success(symbol string, action Action) Outcome {
	return Outcome{Status: "success", Symbol: symbol, Action: action}
}

func ignored(detail string) Outcome {
	return Outcome{Status: "ignored", Detail: detail}
}

func errOutcome(detail string) Outcome {
	return Outcome{Status: "error", Detail: detail}
}

// sideOf maps a signal action to the order side and position side it
// corresponds to when opening a fresh position.
func sideOf(a Action) (venue.Side, venue.PositionSide) {
	if a == ActionBuy {
		return venue.SideBuy, venue.PositionLong
	}
	return venue.SideSell, venue.PositionShort
}

func opposite(a Action) Action {
	if a == ActionBuy {
		return ActionSell
	}
	return ActionBuy
}

func actionFromPositionSide(side venue.PositionSide) Action {
	if side == venue.PositionLong {
		return ActionBuy
	}
	return ActionSell
}

// roiToPriceFraction converts an ROI percent (PnL as percent of margin)
// into a fractional price move at the configured leverage.
func roiToPriceFraction(pnlPercent float64, leverage int) decimal.Decimal {
	return decimal.NewFromFloat(pnlPercent).Div(decimal.NewFromInt(int64(100 * leverage)))
}

// priceForLong/priceForShort apply a signed ROI fraction to an entry
// price in the direction appropriate for each position side.
func priceForLong(entry decimal.Decimal, fraction decimal.Decimal) decimal.Decimal {
	return entry.Mul(decimal.NewFromInt(1).Add(fraction))
}

func priceForShort(entry decimal.Decimal, fraction decimal.Decimal) decimal.Decimal {
	return entry.Mul(decimal.NewFromInt(1).Sub(fraction))
}

// quantityFor computes order quantity from notional position size,
// leverage, and current price.
func quantityFor(positionSize float64, leverage int, price decimal.Decimal) decimal.Decimal {
	notional := decimal.NewFromFloat(positionSize).Mul(decimal.NewFromInt(int64(leverage)))
	return notional.Div(price)
}

func fmtErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

// VenueOps is the subset of venue.Adapter the strategy layer calls. A
// narrow interface here keeps strategy tests free of the Binance SDK.
type VenueOps interface {
	GetCurrentPosition(ctx context.Context, symbol string, side venue.PositionSide) (*venue.Position, error)
	GetExactEntryPrice(ctx context.Context, symbol string, side venue.PositionSide) (decimal.Decimal, bool, error)
	OpenMarket(ctx context.Context, symbol string, side venue.Side, quantity decimal.Decimal, positionSide venue.PositionSide) error
	PlaceStopMarketClose(ctx context.Context, symbol string, positionSide venue.PositionSide, stopPrice decimal.Decimal) (string, error)
	PlaceStopLimitReduceOnly(ctx context.Context, symbol string, side venue.Side, quantity, stopPrice, limitPrice decimal.Decimal) (string, error)
	PlaceLimitReduceOnly(ctx context.Context, symbol string, side venue.Side, quantity, price decimal.Decimal) (string, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	CancelAllStops(ctx context.Context, symbol string, side venue.PositionSide) error
	CancelAllLimitOrders(ctx context.Context, symbol string) error
	InstrumentInfo(symbol string) (venue.InstrumentInfo, bool)
	LatestMarketPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// StreamOps is the subset of stream.Stream the strategy layer calls.
type StreamOps interface {
	Watch(target decimal.Decimal, direction stream.Direction, barrierSet bool, barrierPx decimal.Decimal, barrierSide stream.BarrierSide, onReach stream.OnReach) string
	CancelWatch(key string)
	CancelAll()
	LatestPrice() (decimal.Decimal, bool)
	Events() <-chan stream.PriceEvent
	EvaluateWatches(price decimal.Decimal)
}

// Deps bundles everything a variant needs: the venue, the price stream,
// and static config. Kept small and passed by reference from main.
type Deps struct {
	Venue  VenueOps
	Stream StreamOps
	Cfg    *config.Config
}
