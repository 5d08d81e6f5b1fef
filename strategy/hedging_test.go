package strategy

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"futures-signal-bot/config"
	"futures-signal-bot/stream"
)

// TestHedging_SEActivationThenSL replays scenario S-E: a Long
// main opens, activation arms at 3950, the hedge opens at 3949, and a rise
// to the SL price fires the failure path and re-arms activation with no
// barrier.
func TestHedging_SEActivationThenSL(t *testing.T) {
	fv := newFakeVenue()
	fv.marketPrice = decimal.NewFromInt(4000)
	fv.entryPrice = decimal.NewFromInt(4000)
	fv.hasEntry = true
	fs := &fakeStream{price: decimal.NewFromInt(4000), hasPrice: true}
	c := testCore(fv, fs, config.StrategyHedging)

	outcome := c.ProcessWebhook(context.Background(), "buy")
	assert.Equal(t, "success", outcome.Status)

	assert.Len(t, fs.watches, 1)
	activation := fs.lastWatch()
	assert.True(t, activation.target.Equal(decimal.NewFromFloat(3950)), "activation got %s", activation.target)
	assert.Equal(t, stream.Short, activation.direction)

	// Price falls to 3949: activation fires, hedge opens.
	fs.price = decimal.NewFromInt(3949)
	fv.entryPrice = decimal.NewFromInt(3949)
	activation.onReach(decimal.NewFromInt(3949))

	assert.True(t, c.hedge.hedgeSet)
	wantSL := decimal.NewFromInt(3949).Mul(decimal.NewFromFloat(1.0075))
	wantTrigger := decimal.NewFromInt(3949).Mul(decimal.NewFromFloat(0.9875))
	assert.True(t, c.hedge.lastStopPrice.Equal(wantSL), "sl got %s want %s", c.hedge.lastStopPrice, wantSL)

	var slWatch, triggerWatch watchCall
	for _, w := range fs.watches[1:] {
		if w.target.Equal(wantSL) {
			slWatch = w
		}
		if w.target.Equal(wantTrigger) {
			triggerWatch = w
		}
	}
	assert.NotNil(t, slWatch.onReach)
	assert.NotNil(t, triggerWatch.onReach)

	// Price rises to the SL: failure path fires, re-arms activation, no barrier.
	preWatchCount := len(fs.watches)
	slWatch.onReach(wantSL)

	assert.Equal(t, 1, c.hedge.failureCount)
	assert.False(t, c.hedge.hedgeSet)
	assert.False(t, c.hedge.barrierSet)
	assert.Greater(t, len(fs.watches), preWatchCount, "SL failure must re-arm a new activation watch")
}

// TestHedging_SFTriggerThenBarrierRearm replays scenario S-F from a fresh
// Long main at 4000: a hedge opens at 3950, its trigger fires,
// the stop moves to TP (3930.25, the fixed oracle value), and the TP close
// re-arms activation guarded by a "below" barrier at that same price.
func TestHedging_SFTriggerThenBarrierRearm(t *testing.T) {
	fv := newFakeVenue()
	fv.marketPrice = decimal.NewFromInt(4000)
	fv.entryPrice = decimal.NewFromInt(4000)
	fv.hasEntry = true
	fs := &fakeStream{price: decimal.NewFromInt(4000), hasPrice: true}
	c := testCore(fv, fs, config.StrategyHedging)

	c.ProcessWebhook(context.Background(), "buy")
	activation := fs.lastWatch()

	fs.price = decimal.NewFromInt(3950)
	fv.entryPrice = decimal.NewFromInt(3950)
	activation.onReach(decimal.NewFromInt(3950))

	var triggerWatch watchCall
	wantTrigger := decimal.NewFromInt(3950).Mul(decimal.NewFromFloat(0.9875))
	for _, w := range fs.watches {
		if w.target.Equal(wantTrigger) {
			triggerWatch = w
		}
	}
	assert.NotNil(t, triggerWatch.onReach)

	triggerWatch.onReach(wantTrigger)

	wantTP := decimal.NewFromFloat(3930.25)
	assert.True(t, c.hedge.lastStopPrice.Equal(wantTP), "tp got %s want %s", c.hedge.lastStopPrice, wantTP)

	var tpWatch watchCall
	for _, w := range fs.watches {
		if w.target.Equal(wantTP) {
			tpWatch = w
		}
	}
	assert.NotNil(t, tpWatch.onReach)

	tpWatch.onReach(wantTP)

	assert.False(t, c.hedge.hedgeSet)
	assert.True(t, c.hedge.barrierSet)
	assert.True(t, c.hedge.barrierPrice.Equal(wantTP), "barrier price got %s", c.hedge.barrierPrice)
	assert.Equal(t, "below", c.hedge.barrierSide)

	rearmed := fs.lastWatch()
	assert.True(t, rearmed.barrierSet)
	assert.Equal(t, stream.Below, rearmed.barrierSide)
	assert.True(t, rearmed.barrierPx.Equal(wantTP))
}

// TestHedging_BarrierClearedOnceHedgeReopensAfterTP guards against the
// barrier leaking past the one re-arm it exists for: continuing the S-F
// sequence, the barrier-gated activation watch fires and successfully
// reopens a hedge, and the SL failure that follows must re-arm with no
// barrier at all, not the stale one from the prior TP close.
func TestHedging_BarrierClearedOnceHedgeReopensAfterTP(t *testing.T) {
	fv := newFakeVenue()
	fv.marketPrice = decimal.NewFromInt(4000)
	fv.entryPrice = decimal.NewFromInt(4000)
	fv.hasEntry = true
	fs := &fakeStream{price: decimal.NewFromInt(4000), hasPrice: true}
	c := testCore(fv, fs, config.StrategyHedging)

	c.ProcessWebhook(context.Background(), "buy")
	activation := fs.lastWatch()

	fs.price = decimal.NewFromInt(3950)
	fv.entryPrice = decimal.NewFromInt(3950)
	activation.onReach(decimal.NewFromInt(3950))

	wantTrigger := decimal.NewFromInt(3950).Mul(decimal.NewFromFloat(0.9875))
	var triggerWatch watchCall
	for _, w := range fs.watches {
		if w.target.Equal(wantTrigger) {
			triggerWatch = w
		}
	}
	assert.NotNil(t, triggerWatch.onReach)
	triggerWatch.onReach(wantTrigger)

	wantTP := decimal.NewFromFloat(3930.25)
	var tpWatch watchCall
	for _, w := range fs.watches {
		if w.target.Equal(wantTP) {
			tpWatch = w
		}
	}
	assert.NotNil(t, tpWatch.onReach)
	tpWatch.onReach(wantTP)

	assert.True(t, c.hedge.barrierSet, "precondition: barrier armed after TP close")

	// The barrier-gated activation watch fires again: a new hedge opens.
	rearmed := fs.lastWatch()
	fs.price = decimal.NewFromInt(3949)
	fv.entryPrice = decimal.NewFromInt(3949)
	rearmed.onReach(decimal.NewFromInt(3949))

	assert.True(t, c.hedge.hedgeSet, "hedge must reopen on the barrier-gated activation firing")
	assert.False(t, c.hedge.barrierSet, "barrier must be consumed once the hedge it guarded reopens")
	assert.True(t, c.hedge.barrierPrice.IsZero())
	assert.Equal(t, "", c.hedge.barrierSide)

	// An SL failure on this fresh hedge must re-arm with no barrier at all.
	wantSL := decimal.NewFromInt(3949).Mul(decimal.NewFromFloat(1.0075))
	var slWatch watchCall
	for _, w := range fs.watches {
		if w.target.Equal(wantSL) {
			slWatch = w
		}
	}
	assert.NotNil(t, slWatch.onReach)
	slWatch.onReach(wantSL)

	assert.Equal(t, 1, c.hedge.failureCount)
	rearmAfterSL := fs.lastWatch()
	assert.False(t, rearmAfterSL.barrierSet, "SL-failure re-arm after a barrier-guarded reopen must not leak the stale barrier")
}

// TestHedging_ReplacesMainOnOppositeSignalBeforeHedgeOpens covers the
// main-only branch of the S0-S5 switch: an opposite signal while no hedge
// is open yet closes and flips the main instead of opening a hedge.
func TestHedging_ReplacesMainOnOppositeSignalBeforeHedgeOpens(t *testing.T) {
	fv := newFakeVenue()
	fv.marketPrice = decimal.NewFromInt(4000)
	fv.entryPrice = decimal.NewFromInt(4000)
	fv.hasEntry = true
	fs := &fakeStream{price: decimal.NewFromInt(4000), hasPrice: true}
	c := testCore(fv, fs, config.StrategyHedging)

	c.ProcessWebhook(context.Background(), "buy")
	c.ProcessWebhook(context.Background(), "sell")

	assert.Equal(t, ActionSell, c.hedge.mainSide)
	assert.True(t, c.hedge.mainSet)
	assert.False(t, c.hedge.hedgeSet)
}
