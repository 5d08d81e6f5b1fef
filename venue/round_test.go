package venue

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func instrument() InstrumentInfo {
	return InstrumentInfo{
		QtyStep:        decimal.NewFromFloat(0.001),
		MinQty:         decimal.NewFromFloat(0.001),
		MaxQty:         decimal.NewFromFloat(1000),
		QtyPrecision:   3,
		TickSize:       decimal.NewFromFloat(0.01),
		PricePrecision: 2,
	}
}

func TestRoundQuantity_SnapsToStep(t *testing.T) {
	info := instrument()

	q, err := RoundQuantity(decimal.NewFromFloat(1.0004), info)
	assert.NoError(t, err)
	assert.True(t, q.Equal(decimal.NewFromFloat(1.000)), "got %s", q)
}

func TestRoundQuantity_FloorsAtMinQty(t *testing.T) {
	info := instrument()

	q, err := RoundQuantity(decimal.NewFromFloat(0.0001), info)
	assert.NoError(t, err)
	assert.True(t, q.Equal(info.MinQty))
}

func TestRoundQuantity_RejectsAboveMaxQty(t *testing.T) {
	info := instrument()

	_, err := RoundQuantity(decimal.NewFromFloat(2000), info)
	assert.Error(t, err)
}

func TestRoundPrice_SnapsToTick(t *testing.T) {
	info := instrument()

	p := RoundPrice(decimal.NewFromFloat(4031.047), info)
	assert.True(t, p.Equal(decimal.NewFromFloat(4031.05)), "got %s", p)
}

func TestRoundQuantity_Idempotent(t *testing.T) {
	info := instrument()

	q1, _ := RoundQuantity(decimal.NewFromFloat(1.2345), info)
	q2, _ := RoundQuantity(q1, info)
	assert.True(t, q1.Equal(q2))
}
