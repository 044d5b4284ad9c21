package risk

import (
	"fmt"

	"PolyEdge/internal/domain/models"
	"PolyEdge/pkg/config"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// KellySize returns the fractional Kelly stake fraction for a binary contract
// bought at marketProb that we believe wins with ourProb. It is 0 whenever
// either probability lies outside (0, 1) or the bet has no positive edge.
func KellySize(ourProb, marketProb, fraction float64) float64 {
	if ourProb <= 0 || ourProb >= 1 || marketProb <= 0 || marketProb >= 1 {
		return 0
	}
	p := decimal.NewFromFloat(ourProb)
	b := one.Div(decimal.NewFromFloat(marketProb)).Sub(one)
	if !b.IsPositive() {
		return 0
	}
	full := p.Mul(b).Sub(one.Sub(p)).Div(b)
	if !full.IsPositive() {
		return 0
	}
	return full.Mul(decimal.NewFromFloat(fraction)).InexactFloat64()
}

// Decision is the outcome of sizing one signal. Reason is empty when approved.
type Decision struct {
	Stake         float64
	KellyFraction float64
	Reason        string
}

// Approved reports whether the decision carries a stake.
func (d Decision) Approved() bool {
	return d.Reason == "" && d.Stake > 0
}

// Sizer converts probabilities into a bounded stake.
type Sizer struct {
	cfg config.RiskConfig
}

// NewSizer creates a sizer with the given limits.
func NewSizer(cfg config.RiskConfig) *Sizer {
	return &Sizer{cfg: cfg}
}

// Kelly applies the configured fraction to KellySize.
func (s *Sizer) Kelly(ourProb, marketProb float64) float64 {
	return KellySize(ourProb, marketProb, s.cfg.KellyFraction)
}

// CalculateBetSize sizes a bet against the current portfolio. Stakes are
// truncated to cents so they never exceed the single-bet or exposure caps.
func (s *Sizer) CalculateBetSize(ourProb, marketProb float64, pf models.Portfolio) Decision {
	edge := ourProb - marketProb
	if edge < s.cfg.MinEdge {
		return Decision{Reason: fmt.Sprintf("edge %.3f below threshold %.3f", edge, s.cfg.MinEdge)}
	}

	kf := s.Kelly(ourProb, marketProb)
	if kf <= 0 {
		return Decision{Reason: "kelly says don't bet (negative EV)"}
	}

	bankroll := decimal.NewFromFloat(pf.Bankroll)
	minBet := decimal.NewFromFloat(s.cfg.MinBetUSD)

	bet := bankroll.Mul(decimal.NewFromFloat(kf))
	maxBet := bankroll.Mul(decimal.NewFromFloat(s.cfg.MaxSingleBetPct))
	if bet.GreaterThan(maxBet) {
		bet = maxBet
	}
	bet = bet.Truncate(2)

	if bet.LessThan(minBet) || !bet.IsPositive() {
		return Decision{KellyFraction: kf, Reason: fmt.Sprintf("stake $%s below minimum $%.2f", bet.StringFixed(2), s.cfg.MinBetUSD)}
	}

	if pf.OpenCount >= s.cfg.MaxOpenPositions {
		return Decision{KellyFraction: kf, Reason: fmt.Sprintf("max open positions (%d) reached", s.cfg.MaxOpenPositions)}
	}

	exposure := decimal.NewFromFloat(pf.OpenExposure)
	limit := bankroll.Mul(decimal.NewFromFloat(s.cfg.MaxExposurePct))
	if exposure.Add(bet).GreaterThan(limit) {
		remaining := limit.Sub(exposure).Truncate(2)
		if remaining.LessThan(minBet) || !remaining.IsPositive() {
			return Decision{KellyFraction: kf, Reason: fmt.Sprintf("total exposure would exceed %.0f%% of bankroll", s.cfg.MaxExposurePct*100)}
		}
		bet = remaining
	}

	return Decision{Stake: bet.InexactFloat64(), KellyFraction: kf}
}
