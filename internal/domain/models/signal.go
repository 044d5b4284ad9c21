package models

import "errors"

// ErrDataUnavailable marks an evaluation abandoned for lack of usable data.
var ErrDataUnavailable = errors.New("data unavailable")

// Side is the outcome a position backs.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Direction of a threshold crossing.
type Direction string

const (
	DirectionAbove Direction = "above"
	DirectionBelow Direction = "below"
	DirectionHit   Direction = "hit"
)

// Strategy tags.
const (
	StrategyPrice   = "btc"
	StrategyWeather = "weather"
)

// Signal is the result of evaluating one market. It is never mutated after creation.
type Signal struct {
	MarketID   string  `json:"market_id"`
	Question   string  `json:"question"`
	TokenID    string  `json:"token_id"`
	Strategy   string  `json:"strategy"`
	OurProb    float64 `json:"our_probability"`
	MarketProb float64 `json:"market_probability"`
	Edge       float64 `json:"edge"`
	Side       Side    `json:"side"`
	Rationale  string  `json:"rationale"`
	// Actionable is false when neither side clears the minimum edge.
	Actionable bool `json:"actionable"`
}
