package models

import "time"

// Bar is one OHLCV aggregation over a fixed period.
type Bar struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// TypicalPrice returns (high + low + close) / 3.
func (b Bar) TypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3.0
}

// TradePrint is a single executed trade used for order-flow analysis.
type TradePrint struct {
	Quantity     float64
	BuyerIsMaker bool // true means the seller was the aggressor
}

// FeatureVector is derived per evaluation and never persisted.
type FeatureVector struct {
	RSI           float64 `json:"rsi"`
	VWAPDeviation float64 `json:"vwap_deviation"`
	Volatility    float64 `json:"volatility"`
	Momentum      float64 `json:"momentum"`
	OrderFlow     float64 `json:"order_flow"`
}

// Closes extracts close prices in order.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
