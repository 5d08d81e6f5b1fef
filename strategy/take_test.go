package strategy

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"futures-signal-bot/config"
	"futures-signal-bot/venue"
)

// TestTake_PlacesTwoScaleOutLimitOrders covers the supplemented Take
// variant grounded on take_strategy/strategy.py's calculate_tp_levels: a
// fresh open lays two reduce-only limit TPs sized by configured percentages
// of the resulting quantity.
func TestTake_PlacesTwoScaleOutLimitOrders(t *testing.T) {
	fv := newFakeVenue()
	fv.marketPrice = decimal.NewFromInt(2000)
	fv.entryPrice = decimal.NewFromInt(2000)
	fv.hasEntry = true
	fs := &fakeStream{price: decimal.NewFromInt(2000), hasPrice: true}
	c := testCore(fv, fs, config.StrategyTake)

	outcome := c.ProcessWebhook(context.Background(), "buy")
	assert.Equal(t, "success", outcome.Status)

	var limitCalls []orderCall
	for _, call := range fv.calls {
		if call.kind == "limit" {
			limitCalls = append(limitCalls, call)
		}
	}
	assert.Len(t, limitCalls, 2)

	// qty = 1000*4/2000 = 2; tp1Percent=2%% leverage=4 -> fraction=0.005 -> tp1=2010
	// tp2Percent=4%% -> fraction=0.01 -> tp2=2020; qty split 50/50 -> 1 each.
	assert.True(t, limitCalls[0].price.Equal(decimal.NewFromInt(2010)), "tp1 got %s", limitCalls[0].price)
	assert.True(t, limitCalls[0].quantity.Equal(decimal.NewFromInt(1)), "qty1 got %s", limitCalls[0].quantity)
	assert.True(t, limitCalls[1].price.Equal(decimal.NewFromInt(2020)), "tp2 got %s", limitCalls[1].price)
	assert.True(t, limitCalls[1].quantity.Equal(decimal.NewFromInt(1)), "qty2 got %s", limitCalls[1].quantity)
	assert.Equal(t, venue.SideSell, limitCalls[0].side)
}

// TestTake_ReversalCancelsPriorTakeProfitOrders confirms old TP orders are
// cancelled via CancelAllLimitOrders before a reversal places new ones.
func TestTake_ReversalCancelsPriorTakeProfitOrders(t *testing.T) {
	fv := newFakeVenue()
	fv.marketPrice = decimal.NewFromInt(2000)
	fv.entryPrice = decimal.NewFromInt(2000)
	fv.hasEntry = true
	fs := &fakeStream{price: decimal.NewFromInt(2000), hasPrice: true}
	c := testCore(fv, fs, config.StrategyTake)

	c.ProcessWebhook(context.Background(), "buy")
	fv.position = &venue.Position{Side: venue.PositionLong, Size: decimal.NewFromInt(2), EntryPrice: decimal.NewFromInt(2000)}

	c.ProcessWebhook(context.Background(), "sell")

	var sawCancelAll bool
	for _, call := range fv.calls {
		if call.kind == "cancel_all" {
			sawCancelAll = true
		}
	}
	assert.True(t, sawCancelAll, "reversal must cancel old take-profit orders")
}
