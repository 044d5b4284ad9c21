package models

import "time"

// MarketKind classifies a candidate market by the event it resolves on.
type MarketKind string

const (
	KindPrice         MarketKind = "price"
	KindTemperature   MarketKind = "temperature"
	KindPrecipitation MarketKind = "precipitation"
	KindSnow          MarketKind = "snow"
	KindStorm         MarketKind = "storm"
	KindTornado       MarketKind = "tornado"
	KindWind          MarketKind = "wind"
	KindUnknown       MarketKind = "unknown"
)

// Market is a candidate binary market supplied by the catalog.
type Market struct {
	ID          string
	Question    string
	Description string
	YesTokenID  string
	NoTokenID   string
	// MarketProb is the affirmative probability implied by the venue quote.
	MarketProb float64
}

// Text returns question and description joined for keyword matching.
func (m Market) Text() string {
	return m.Question + " " + m.Description
}

// TokenFor returns the token that resolves in favour of side.
func (m Market) TokenFor(side Side) string {
	if side == SideNo && m.NoTokenID != "" {
		return m.NoTokenID
	}
	return m.YesTokenID
}

// Location is a named coordinate pair.
type Location struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// PriceQuestion is a parsed "will the price be above/below X" market.
type PriceQuestion struct {
	Target    float64
	Direction Direction
}

// WeatherQuestion is a parsed weather threshold market.
type WeatherQuestion struct {
	Kind      MarketKind
	Location  Location
	Direction Direction
	// Threshold is in °F for temperature, mm for precipitation, inches for snow.
	Threshold    float64
	HasThreshold bool
	TargetDate   *time.Time
}

// TemperaturePoint is one hourly temperature forecast.
type TemperaturePoint struct {
	Time    time.Time
	Celsius float64
}

// PrecipitationPoint is one hourly precipitation forecast.
type PrecipitationPoint struct {
	Time           time.Time
	ProbabilityPct float64
	AmountMM       float64
}

// SnowfallPoint is one hourly snowfall forecast.
type SnowfallPoint struct {
	Time time.Time
	CM   float64
}
