package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderFor(t *testing.T) {
	m := Market{ID: "m1", YesTokenID: "yes", NoTokenID: "no", MarketProb: 0.4}

	o := OrderFor(Signal{Side: SideYes, MarketProb: 0.4}, m, 25)
	assert.Equal(t, Order{MarketID: "m1", TokenID: "yes", Action: ActionBuy, Notional: 25, LimitPrice: 0.4}, o)
	assert.Equal(t, 0.41, o.EntryPrice(Fill{Price: 0.41}))

	// NO signals carry side-normalised probabilities
	o = OrderFor(Signal{Side: SideNo, MarketProb: 0.6}, m, 25)
	assert.Equal(t, "no", o.TokenID)
	assert.Equal(t, ActionBuy, o.Action)
	assert.Equal(t, 0.6, o.LimitPrice)

	m.NoTokenID = ""
	o = OrderFor(Signal{Side: SideNo, MarketProb: 0.6}, m, 25)
	assert.Equal(t, "yes", o.TokenID)
	assert.Equal(t, ActionSell, o.Action)
	assert.InDelta(t, 0.4, o.LimitPrice, 1e-12)
	assert.InDelta(t, 0.6, o.EntryPrice(Fill{Price: 0.4}), 1e-12)
}
