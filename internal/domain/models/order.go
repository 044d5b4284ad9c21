package models

import "time"

// OrderAction is the venue-side verb.
type OrderAction string

const (
	ActionBuy  OrderAction = "BUY"
	ActionSell OrderAction = "SELL"
)

// Order is a market order for a notional amount.
type Order struct {
	MarketID string      `json:"market_id"`
	TokenID  string      `json:"token_id"`
	Action   OrderAction `json:"side"`
	Notional float64     `json:"amount"`
	// LimitPrice is the probability we are willing to pay.
	LimitPrice float64 `json:"price"`
}

// Fill is the execution result of an Order.
type Fill struct {
	OrderID  string    `json:"order_id"`
	Price    float64   `json:"price"`
	Notional float64   `json:"amount"`
	FilledAt time.Time `json:"filled_at"`
}

// OrderFor turns a signal on m into a market order for stake dollars.
// NO is bought through the NO token when the market lists one, otherwise it is expressed as a YES sell.
func OrderFor(sig Signal, m Market, stake float64) Order {
	o := Order{
		MarketID:   m.ID,
		TokenID:    m.TokenFor(sig.Side),
		Action:     ActionBuy,
		Notional:   stake,
		LimitPrice: sig.MarketProb,
	}
	if sig.Side == SideNo && m.NoTokenID == "" {
		o.Action = ActionSell
		o.LimitPrice = 1 - sig.MarketProb
	}
	return o
}

// EntryPrice converts a fill into the price paid for the signal's side.
// A YES sell standing in for NO pays 1 - fill price.
func (o Order) EntryPrice(f Fill) float64 {
	if o.Action == ActionSell {
		return 1 - f.Price
	}
	return f.Price
}
