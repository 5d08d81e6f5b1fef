// Package venue wraps the Binance USD-M futures SDK with typed operations,
// lot/tick rounding, and bounded retry, so the strategy layer never talks
// to the wire protocol or raw floats directly.
package venue

import "github.com/shopspring/decimal"

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// PositionSide is the venue-side position direction. Both is used in
// one-way mode; Long/Short are used in hedge mode.
type PositionSide string

const (
	PositionLong  PositionSide = "LONG"
	PositionShort PositionSide = "SHORT"
	PositionBoth  PositionSide = "BOTH"
)

// Opposite returns the other directional side, used when a reversal or a
// hedge must trade against the existing position.
func (p PositionSide) Opposite() PositionSide {
	if p == PositionLong {
		return PositionShort
	}
	return PositionLong
}

// InstrumentInfo is the per-symbol precision grid, fetched once at startup
// and treated as immutable thereafter.
type InstrumentInfo struct {
	QtyStep        decimal.Decimal
	MinQty         decimal.Decimal
	MaxQty         decimal.Decimal // zero means "not advertised"
	QtyPrecision   int32
	TickSize       decimal.Decimal
	PricePrecision int32
}

// Position is a read-on-demand snapshot of the current venue position for
// one symbol/side. Size is always non-negative; Size.IsZero() means no
// position.
type Position struct {
	Side          PositionSide
	Size          decimal.Decimal
	EntryPrice    decimal.Decimal
	UnrealizedPnL decimal.Decimal
}

// OpenOrder is a minimal view over a resting order, enough for the
// strategy layer to identify and cancel protective orders by prefix/id, or
// to filter resting stops by type/side before a targeted cancel.
type OpenOrder struct {
	OrderID       string
	ClientOrderID string
	Status        string
	Type          string
	Side          string
	PositionSide  string
}

// isStop reports whether the order is a protective stop rather than a
// take-profit, entry, or other resting order.
func (o OpenOrder) isStop() bool {
	return o.Type == "STOP_MARKET" || o.Type == "STOP"
}

// isLimit reports whether the order is a resting LIMIT order (the Take
// variant's scale-out take-profits), as opposed to a protective stop.
func (o OpenOrder) isLimit() bool {
	return o.Type == "LIMIT"
}
