package models

// Requests for the portfolio HTTP endpoints.

type PositionsRequest struct {
	Status string `query:"status" json:"status" default:"all" validate:"oneof=open closed expired all"`
}

type ClosePositionRequest struct {
	ExitPrice *float64 `json:"exit_price" validate:"required,gte=0,lte=1"`
	PnL       *float64 `json:"pnl"`
	Reason    string   `json:"reason" default:"resolved" validate:"max=200"`
}

type ExpirePositionRequest struct {
	PnL    *float64 `json:"pnl"`
	Reason string   `json:"reason" default:"expired" validate:"max=200"`
}

type KellyRequest struct {
	OurProb    float64 `query:"our_prob" json:"our_prob" validate:"gt=0,lt=1"`
	MarketProb float64 `query:"market_prob" json:"market_prob" validate:"gt=0,lt=1"`
}
