package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidPosition is returned when position parameters fall outside the probability or price range.
var ErrInvalidPosition = errors.New("invalid position")

// PositionStatus is the lifecycle state of a Position.
type PositionStatus string

const (
	StatusOpen    PositionStatus = "open"
	StatusClosed  PositionStatus = "closed"
	StatusExpired PositionStatus = "expired"
)

// Terminal reports whether no further transition is allowed.
func (s PositionStatus) Terminal() bool {
	return s == StatusClosed || s == StatusExpired
}

// Position is a stake held on one side of a market.
// Only Status and the closing fields change after creation.
type Position struct {
	ID                string         `json:"id"`
	MarketID          string         `json:"market_id"`
	MarketQuestion    string         `json:"market_question"`
	TokenID           string         `json:"token_id"`
	Side              Side           `json:"side"`
	EntryPrice        float64        `json:"entry_price"`
	SizeUSD           float64        `json:"size_usd"`
	Shares            float64        `json:"shares"`
	OurProbability    float64        `json:"our_probability"`
	MarketProbability float64        `json:"market_probability"`
	Edge              float64        `json:"edge"`
	KellyFraction     float64        `json:"kelly_fraction"`
	Strategy          string         `json:"strategy"`
	Reasoning         string         `json:"reasoning"`
	Timestamp         time.Time      `json:"timestamp"`
	Status            PositionStatus `json:"status"`

	ExitPrice   *float64   `json:"exit_price,omitempty"`
	PnL         *float64   `json:"pnl,omitempty"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	CloseReason string     `json:"close_reason,omitempty"`
}

// PositionParams carries everything needed to open a Position.
type PositionParams struct {
	MarketID       string
	MarketQuestion string
	TokenID        string
	Side           Side
	EntryPrice     float64
	SizeUSD        float64
	OurProb        float64
	MarketProb     float64
	KellyFraction  float64
	Strategy       string
	Reasoning      string
}

// Clock returns the current time.
type Clock func() time.Time

// validate requires both probabilities strictly inside (0,1) and a finite entry price in [0,1].
func (p PositionParams) validate() error {
	if !(p.OurProb > 0 && p.OurProb < 1) {
		return fmt.Errorf("%w: our probability %v outside (0,1)", ErrInvalidPosition, p.OurProb)
	}
	if !(p.MarketProb > 0 && p.MarketProb < 1) {
		return fmt.Errorf("%w: market probability %v outside (0,1)", ErrInvalidPosition, p.MarketProb)
	}
	if math.IsNaN(p.EntryPrice) || p.EntryPrice < 0 || p.EntryPrice > 1 {
		return fmt.Errorf("%w: entry price %v outside [0,1]", ErrInvalidPosition, p.EntryPrice)
	}
	return nil
}

// NewPosition builds an open Position stamped by clock and identified by newID.
func NewPosition(clock Clock, newID func() string, p PositionParams) (*Position, error) {
	if clock == nil || newID == nil {
		return nil, fmt.Errorf("position factory: clock and id generator are required")
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	shares := 0.0
	if p.EntryPrice > 0 {
		shares = p.SizeUSD / p.EntryPrice
	}
	return &Position{
		ID:                newID(),
		MarketID:          p.MarketID,
		MarketQuestion:    p.MarketQuestion,
		TokenID:           p.TokenID,
		Side:              p.Side,
		EntryPrice:        p.EntryPrice,
		SizeUSD:           p.SizeUSD,
		Shares:            shares,
		OurProbability:    p.OurProb,
		MarketProbability: p.MarketProb,
		Edge:              p.OurProb - p.MarketProb,
		KellyFraction:     p.KellyFraction,
		Strategy:          p.Strategy,
		Reasoning:         p.Reasoning,
		Timestamp:         clock().UTC(),
		Status:            StatusOpen,
	}, nil
}

// JournalAction tags a journal record.
type JournalAction string

const (
	ActionOpen   JournalAction = "OPEN"
	ActionClose  JournalAction = "CLOSE"
	ActionExpire JournalAction = "EXPIRE"
)

// JournalRecord is one ledger mutation. The same shape is used in the
// snapshot trade history and in the JSONL journal.
type JournalRecord struct {
	Action    JournalAction `json:"action"`
	Timestamp time.Time     `json:"timestamp"`
	Position  Position      `json:"position"`
	ExitPrice *float64      `json:"exit_price,omitempty"`
	PnL       *float64      `json:"pnl,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}

// Settles reports whether the record realized pnl.
func (r JournalRecord) Settles() bool {
	return r.Action == ActionClose || r.Action == ActionExpire
}

// LedgerState is the persisted snapshot.
type LedgerState struct {
	Bankroll     float64         `json:"bankroll"`
	Positions    []Position      `json:"positions"`
	TradeHistory []JournalRecord `json:"trade_history"`
}

// LedgerStats is derived from in-memory ledger state.
type LedgerStats struct {
	Bankroll      float64 `json:"bankroll"`
	OpenPositions int     `json:"open_positions"`
	TotalExposure float64 `json:"total_exposure"`
	ClosedTrades  int     `json:"closed_trades"`
	TotalPnL      float64 `json:"total_pnl"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	WinRate       float64 `json:"win_rate"`
}

// Portfolio is the sizing view of the ledger.
type Portfolio struct {
	Bankroll     float64
	OpenCount    int
	OpenExposure float64
}
