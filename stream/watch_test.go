package stream

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	v, _ := decimal.NewFromString(s)
	return v
}

func TestWatchRegistry_SingleShot(t *testing.T) {
	r := newWatchRegistry()
	fired := 0

	r.add(watchKey(d("4020"), Long, false, decimal.Zero, ""), &watch{
		target:    d("4020"),
		direction: Long,
		onReach:   func(decimal.Decimal) { fired++ },
	})

	r.evaluate(d("4021"))
	r.evaluate(d("4025"))

	assert.Equal(t, 1, fired)
}

func TestWatchRegistry_BarrierGatesFiring(t *testing.T) {
	r := newWatchRegistry()
	fired := 0

	r.add(watchKey(d("3950"), Short, true, d("3930.25"), Below), &watch{
		target:      d("3950"),
		direction:   Short,
		barrierSet:  true,
		barrierPx:   d("3930.25"),
		barrierSide: Below,
		onReach:     func(decimal.Decimal) { fired++ },
	})

	// 3952 is above both the barrier and the short target: nothing fires.
	// 3925 then crosses below the barrier, which arms the watch, and it also
	// satisfies short (price <= 3950), so the watch fires on that same tick.
	r.evaluate(d("3952")) // above barrier, no crossing yet
	assert.Equal(t, 0, fired)

	r.evaluate(d("3925")) // crosses below barrier, arms; also satisfies short<=3950
	assert.Equal(t, 1, fired)
}

func TestWatchRegistry_BarrierBlocksBeforeCrossing(t *testing.T) {
	r := newWatchRegistry()
	fired := 0

	r.add(watchKey(d("3950"), Short, true, d("3930.25"), Below), &watch{
		target:      d("3950"),
		direction:   Short,
		barrierSet:  true,
		barrierPx:   d("3930.25"),
		barrierSide: Below,
		onReach:     func(decimal.Decimal) { fired++ },
	})

	// 3949 satisfies the short direction (price <= 3950) but has not been
	// observed below the barrier yet, so the watch must not fire.
	r.evaluate(d("3949"))
	assert.Equal(t, 0, fired)
}

func TestWatchRegistry_LongDirectionFiresOnRise(t *testing.T) {
	r := newWatchRegistry()
	fired := 0

	r.add(watchKey(d("4020"), Long, false, decimal.Zero, ""), &watch{
		target:    d("4020"),
		direction: Long,
		onReach:   func(decimal.Decimal) { fired++ },
	})

	r.evaluate(d("4019.99"))
	assert.Equal(t, 0, fired)

	r.evaluate(d("4020"))
	assert.Equal(t, 1, fired)
}
