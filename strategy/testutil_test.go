package strategy

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"futures-signal-bot/config"
	"futures-signal-bot/stream"
	"futures-signal-bot/venue"
)

type orderCall struct {
	kind      string // "open" | "stop_market" | "stop_limit" | "limit" | "cancel" | "cancel_all"
	side      venue.Side
	posSide   venue.PositionSide
	quantity  decimal.Decimal
	price     decimal.Decimal
	stopPrice decimal.Decimal
	orderID   string
}

type fakeVenue struct {
	position    *venue.Position
	entryPrice  decimal.Decimal
	hasEntry    bool
	instrument  venue.InstrumentInfo
	marketPrice decimal.Decimal

	calls       []orderCall
	nextOrderID int
}

func newFakeVenue() *fakeVenue {
	return &fakeVenue{
		instrument: venue.InstrumentInfo{
			QtyStep:        decimal.NewFromFloat(0.001),
			MinQty:         decimal.NewFromFloat(0.001),
			QtyPrecision:   3,
			TickSize:       decimal.NewFromFloat(0.01),
			PricePrecision: 2,
		},
	}
}

func (f *fakeVenue) GetCurrentPosition(ctx context.Context, symbol string, side venue.PositionSide) (*venue.Position, error) {
	return f.position, nil
}

func (f *fakeVenue) GetExactEntryPrice(ctx context.Context, symbol string, side venue.PositionSide) (decimal.Decimal, bool, error) {
	return f.entryPrice, f.hasEntry, nil
}

func (f *fakeVenue) OpenMarket(ctx context.Context, symbol string, side venue.Side, quantity decimal.Decimal, positionSide venue.PositionSide) error {
	f.calls = append(f.calls, orderCall{kind: "open", side: side, posSide: positionSide, quantity: quantity})
	return nil
}

func (f *fakeVenue) PlaceStopMarketClose(ctx context.Context, symbol string, positionSide venue.PositionSide, stopPrice decimal.Decimal) (string, error) {
	f.nextOrderID++
	id := fmt.Sprintf("stop-market-%d", f.nextOrderID)
	f.calls = append(f.calls, orderCall{kind: "stop_market", posSide: positionSide, stopPrice: stopPrice, orderID: id})
	return id, nil
}

func (f *fakeVenue) PlaceStopLimitReduceOnly(ctx context.Context, symbol string, side venue.Side, quantity, stopPrice, limitPrice decimal.Decimal) (string, error) {
	f.nextOrderID++
	id := fmt.Sprintf("stop-limit-%d", f.nextOrderID)
	f.calls = append(f.calls, orderCall{kind: "stop_limit", side: side, quantity: quantity, stopPrice: stopPrice, price: limitPrice, orderID: id})
	return id, nil
}

func (f *fakeVenue) PlaceLimitReduceOnly(ctx context.Context, symbol string, side venue.Side, quantity, price decimal.Decimal) (string, error) {
	f.nextOrderID++
	id := fmt.Sprintf("limit-%d", f.nextOrderID)
	f.calls = append(f.calls, orderCall{kind: "limit", side: side, quantity: quantity, price: price, orderID: id})
	return id, nil
}

func (f *fakeVenue) CancelOrder(ctx context.Context, symbol, orderID string) error {
	f.calls = append(f.calls, orderCall{kind: "cancel", orderID: orderID})
	return nil
}

func (f *fakeVenue) CancelAllStops(ctx context.Context, symbol string, side venue.PositionSide) error {
	f.calls = append(f.calls, orderCall{kind: "cancel_all"})
	return nil
}

func (f *fakeVenue) CancelAllLimitOrders(ctx context.Context, symbol string) error {
	f.calls = append(f.calls, orderCall{kind: "cancel_all"})
	return nil
}

func (f *fakeVenue) InstrumentInfo(symbol string) (venue.InstrumentInfo, bool) {
	return f.instrument, true
}

func (f *fakeVenue) LatestMarketPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return f.marketPrice, nil
}

type watchCall struct {
	key         string
	target      decimal.Decimal
	direction   stream.Direction
	barrierSet  bool
	barrierPx   decimal.Decimal
	barrierSide stream.BarrierSide
	onReach     stream.OnReach
}

type fakeStream struct {
	price     decimal.Decimal
	hasPrice  bool
	watches   []watchCall
	cancels   []string
	cancelAll int
	events    chan stream.PriceEvent
}

func (f *fakeStream) Watch(target decimal.Decimal, direction stream.Direction, barrierSet bool, barrierPx decimal.Decimal, barrierSide stream.BarrierSide, onReach stream.OnReach) string {
	key := fmt.Sprintf("watch-%d", len(f.watches))
	f.watches = append(f.watches, watchCall{key, target, direction, barrierSet, barrierPx, barrierSide, onReach})
	return key
}

func (f *fakeStream) CancelWatch(key string) {
	f.cancels = append(f.cancels, key)
}

func (f *fakeStream) CancelAll() {
	f.cancelAll++
}

func (f *fakeStream) LatestPrice() (decimal.Decimal, bool) {
	return f.price, f.hasPrice
}

// Events and EvaluateWatches exist only to satisfy strategy.StreamOps;
// these tests fire watches directly via watchCall.onReach rather than
// exercising Core.RunPriceConsumer's channel loop.
func (f *fakeStream) Events() <-chan stream.PriceEvent {
	if f.events == nil {
		f.events = make(chan stream.PriceEvent)
	}
	return f.events
}

func (f *fakeStream) EvaluateWatches(price decimal.Decimal) {}

func (f *fakeStream) lastWatch() watchCall {
	return f.watches[len(f.watches)-1]
}

func testCore(venue *fakeVenue, strm *fakeStream, kind config.Strategy) *Core {
	cfg := &config.Config{
		Symbol:                   "ETHUSDT",
		PositionSize:             1000,
		Leverage:                 4,
		Strategy:                 kind,
		ActivationPercent:        2,
		StopPercent:              1,
		ActivationPnL:            -5,
		SLPnL:                    -3,
		TriggerPnL:               5,
		TPPnL:                    2,
		MaxFailures:              2,
		StopTickOffsetMultiplier: 1,
		TP1Percent:               2,
		Qty1Percent:              50,
		TP2Percent:               4,
		Qty2Percent:              50,
	}
	return NewCore(Deps{Venue: venue, Stream: strm, Cfg: cfg})
}
