package edge

import (
	"PolyEdge/internal/domain/models"
)

// Selection is a side-normalised comparison of our probability with the market's.
type Selection struct {
	Side       models.Side
	OurProb    float64
	MarketProb float64
	Edge       float64
	Actionable bool
}

// Selector picks the side to back. It shares MinEdge with the risk sizer so a
// selection it marks actionable is never rejected for edge downstream.
type Selector struct {
	minEdge float64
}

// NewSelector creates a selector using minEdge as the actionable threshold.
func NewSelector(minEdge float64) *Selector {
	return &Selector{minEdge: minEdge}
}

// MinEdge returns the configured threshold.
func (s *Selector) MinEdge() float64 {
	return s.minEdge
}

// Select compares ourProb and marketProb, both quoted for the YES outcome.
func (s *Selector) Select(ourProb, marketProb float64) Selection {
	edge := ourProb - marketProb
	if edge > 0 {
		return Selection{
			Side:       models.SideYes,
			OurProb:    ourProb,
			MarketProb: marketProb,
			Edge:       edge,
			Actionable: edge >= s.minEdge,
		}
	}

	ourNo, marketNo := 1-ourProb, 1-marketProb
	if noEdge := ourNo - marketNo; noEdge > s.minEdge {
		return Selection{
			Side:       models.SideNo,
			OurProb:    ourNo,
			MarketProb: marketNo,
			Edge:       noEdge,
			Actionable: true,
		}
	}

	// neither side clears the threshold; report YES but never act on it
	return Selection{
		Side:       models.SideYes,
		OurProb:    ourProb,
		MarketProb: marketProb,
		Edge:       edge,
	}
}

// Signal builds the signal for market from ourProb.
func (s *Selector) Signal(market models.Market, strategy string, ourProb float64, rationale string) models.Signal {
	sel := s.Select(ourProb, market.MarketProb)
	return models.Signal{
		MarketID:   market.ID,
		Question:   market.Question,
		TokenID:    market.TokenFor(sel.Side),
		Strategy:   strategy,
		OurProb:    sel.OurProb,
		MarketProb: sel.MarketProb,
		Edge:       sel.Edge,
		Side:       sel.Side,
		Rationale:  rationale,
		Actionable: sel.Actionable,
	}
}
