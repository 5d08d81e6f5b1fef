package venue

import "github.com/shopspring/decimal"

// RoundQuantity snaps a raw quantity to the instrument's lot step, floors it
// at MinQty, and rejects anything above MaxQty (when advertised). Formula:
// round(v/s)*s, truncated to the step's decimal count.
func RoundQuantity(raw decimal.Decimal, info InstrumentInfo) (decimal.Decimal, error) {
	rounded := snapToStep(raw, info.QtyStep, info.QtyPrecision)

	if !info.MinQty.IsZero() && rounded.LessThan(info.MinQty) {
		rounded = info.MinQty
	}
	if !info.MaxQty.IsZero() && rounded.GreaterThan(info.MaxQty) {
		return decimal.Zero, errMaxQtyExceeded(rounded, info.MaxQty)
	}
	return rounded, nil
}

// RoundPrice snaps a raw price to the instrument's tick size.
func RoundPrice(raw decimal.Decimal, info InstrumentInfo) decimal.Decimal {
	return snapToStep(raw, info.TickSize, info.PricePrecision)
}

func snapToStep(raw, step decimal.Decimal, precision int32) decimal.Decimal {
	if step.IsZero() {
		return raw.Round(precision)
	}
	multiples := raw.DivRound(step, 16).Round(0)
	return multiples.Mul(step).Truncate(precision)
}

type maxQtyExceededError struct {
	requested, max decimal.Decimal
}

func (e *maxQtyExceededError) Error() string {
	return "quantity " + e.requested.String() + " exceeds max allowed " + e.max.String()
}

func errMaxQtyExceeded(requested, max decimal.Decimal) error {
	return &maxQtyExceededError{requested: requested, max: max}
}
