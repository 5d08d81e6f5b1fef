package strategy

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"futures-signal-bot/config"
	"futures-signal-bot/stream"
	"futures-signal-bot/venue"
)

// TestStop_ArmsActivationFromFreshEntry covers scenario S-D:
// both the activation and the stop-limit price are computed directly from
// the fresh entry (4000), not chained off one another.
func TestStop_ArmsActivationFromFreshEntry(t *testing.T) {
	fv := newFakeVenue()
	fv.marketPrice = decimal.NewFromInt(4000)
	fv.entryPrice = decimal.NewFromInt(4000)
	fv.hasEntry = true
	fs := &fakeStream{price: decimal.NewFromInt(4000), hasPrice: true}
	c := testCore(fv, fs, config.StrategyStop)

	outcome := c.ProcessWebhook(context.Background(), "buy")

	assert.Equal(t, "success", outcome.Status)
	assert.Len(t, fs.watches, 1)

	w := fs.lastWatch()
	assert.True(t, w.target.Equal(decimal.NewFromFloat(4020)), "activation got %s", w.target)
	assert.Equal(t, stream.Long, w.direction)

	assert.NotNil(t, c.pendingStop)
	assert.True(t, c.pendingStop.stopLimitPrice.Equal(decimal.NewFromFloat(4010.00)), "stop_limit got %s", c.pendingStop.stopLimitPrice)
}

// TestStop_ActivationFiresPlacesOffsetStop confirms the activation watch
// firing places a reduce-only STOP order offset by tickSize *
// StopTickOffsetMultiplier from the stop-limit price.
func TestStop_ActivationFiresPlacesOffsetStop(t *testing.T) {
	fv := newFakeVenue()
	fv.marketPrice = decimal.NewFromInt(4000)
	fv.entryPrice = decimal.NewFromInt(4000)
	fv.hasEntry = true
	fs := &fakeStream{price: decimal.NewFromInt(4000), hasPrice: true}
	c := testCore(fv, fs, config.StrategyStop)

	c.ProcessWebhook(context.Background(), "buy")

	fv.position = &venue.Position{Side: venue.PositionLong, Size: decimal.NewFromInt(2), EntryPrice: decimal.NewFromInt(4000)}

	w := fs.lastWatch()
	w.onReach(w.target)

	var stopCall *orderCall
	for i := range fv.calls {
		if fv.calls[i].kind == "stop_limit" {
			stopCall = &fv.calls[i]
		}
	}
	assert.NotNil(t, stopCall)
	assert.Equal(t, venue.SideSell, stopCall.side)
	assert.True(t, stopCall.price.Equal(decimal.NewFromFloat(4010.00)), "limit got %s", stopCall.price)
	assert.True(t, stopCall.stopPrice.Equal(decimal.NewFromFloat(4010.01)), "stop got %s", stopCall.stopPrice)
	assert.NotEmpty(t, c.activeStopOrderID)
}

// TestStop_NewSignalCancelsPriorStopAndWatch confirms a fresh signal tears
// down any still-armed activation watch and active stop order first.
func TestStop_NewSignalCancelsPriorStopAndWatch(t *testing.T) {
	fv := newFakeVenue()
	fv.marketPrice = decimal.NewFromInt(4000)
	fv.entryPrice = decimal.NewFromInt(4000)
	fv.hasEntry = true
	fs := &fakeStream{price: decimal.NewFromInt(4000), hasPrice: true}
	c := testCore(fv, fs, config.StrategyStop)

	c.ProcessWebhook(context.Background(), "buy")
	fv.position = &venue.Position{Side: venue.PositionLong, Size: decimal.NewFromInt(2), EntryPrice: decimal.NewFromInt(4000)}

	c.ProcessWebhook(context.Background(), "sell")

	assert.Equal(t, 1, fs.cancelAll, "reversing signal must cancel the pending activation watch")
}
