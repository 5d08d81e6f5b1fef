// Package stream maintains the single price-stream connection to the
// venue's ticker feed and the set of armed price watches that drive
// reactive strategy decisions.
package stream

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side a watch fires on.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// BarrierSide describes which side of a barrier price must be observed
// before a watch is allowed to arm. Empty means no barrier gate.
type BarrierSide string

const (
	Above BarrierSide = "above"
	Below BarrierSide = "below"
)

// PriceEvent is one tick handed from the reader goroutine to whoever
// consumes Stream.Events(). Watch evaluation (and therefore every
// venue-calling OnReach callback) runs on the consumer's goroutine, never
// on the reader, so a slow venue retry can never stall the websocket
// read deadline.
type PriceEvent struct {
	Price decimal.Decimal
	Time  time.Time
}

// OnReach is invoked at most once, from whichever goroutine calls
// Stream.EvaluateWatches (the strategy's single price-event consumer, not
// the Stream's reader goroutine). Callbacks may block on venue I/O; the
// consumer goroutine is free for exactly that purpose.
type OnReach func(target decimal.Decimal)
