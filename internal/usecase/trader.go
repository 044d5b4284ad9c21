package usecase

import (
	"context"
	"errors"
	"fmt"

	"PolyEdge/internal/domain/models"
	domrepo "PolyEdge/internal/domain/repository"
	"PolyEdge/internal/services/risk"
	applogger "PolyEdge/pkg/logger"
)

// ErrNotActionable is returned for signals whose edge does not clear the threshold on either side.
var ErrNotActionable = errors.New("signal not actionable")

// PositionBook is the part of the ledger the trader reads and writes.
type PositionBook interface {
	Portfolio() models.Portfolio
	Open(ctx context.Context, p models.PositionParams) (models.Position, error)
}

// Execution is the outcome of trading one signal. Position is nil when sizing rejected it.
type Execution struct {
	Decision risk.Decision
	Order    models.Order
	Fill     models.Fill
	Position *models.Position
}

// Trader sizes a signal, submits the order and records the resulting position.
type Trader struct {
	sizer   *risk.Sizer
	exec    domrepo.Executor
	book    PositionBook
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewTrader(sizer *risk.Sizer, exec domrepo.Executor, book PositionBook, metrics domrepo.Metrics) *Trader {
	return &Trader{sizer: sizer, exec: exec, book: book, metrics: metrics, l: applogger.NewNop()}
}

// SetLogger injects a structured logger.
func (t *Trader) SetLogger(l *applogger.Logger) { t.l = l }

// Mode reports the executor in use.
func (t *Trader) Mode() string { return t.exec.Mode() }

// Execute trades sig on m. A sizing rejection is not an error; an execution
// failure is, and leaves the ledger untouched.
func (t *Trader) Execute(ctx context.Context, sig models.Signal, m models.Market) (Execution, error) {
	if !sig.Actionable {
		return Execution{}, ErrNotActionable
	}

	d := t.sizer.CalculateBetSize(sig.OurProb, sig.MarketProb, t.book.Portfolio())
	if !d.Approved() {
		t.metrics.RecordDecision(sig.Strategy, "rejected")
		t.l.Info("signal rejected",
			applogger.String("market", sig.MarketID),
			applogger.String("side", string(sig.Side)),
			applogger.Float64("edge", sig.Edge),
			applogger.String("reason", d.Reason))
		return Execution{Decision: d}, nil
	}

	order := models.OrderFor(sig, m, d.Stake)
	fill, err := t.exec.PlaceOrder(ctx, order)
	if err != nil {
		t.metrics.RecordDecision(sig.Strategy, "failed")
		t.metrics.RecordError("execution")
		return Execution{Decision: d, Order: order}, fmt.Errorf("execute %s %s on %s: %w", t.exec.Mode(), sig.Side, sig.MarketID, err)
	}

	entry := sig.MarketProb
	if fill.Price > 0 {
		entry = order.EntryPrice(fill)
	}
	pos, err := t.book.Open(ctx, models.PositionParams{
		MarketID:       sig.MarketID,
		MarketQuestion: sig.Question,
		TokenID:        order.TokenID,
		Side:           sig.Side,
		EntryPrice:     entry,
		SizeUSD:        d.Stake,
		OurProb:        sig.OurProb,
		MarketProb:     sig.MarketProb,
		KellyFraction:  d.KellyFraction,
		Strategy:       sig.Strategy,
		Reasoning:      sig.Rationale,
	})
	if err != nil {
		t.metrics.RecordError("ledger")
		return Execution{Decision: d, Order: order, Fill: fill}, fmt.Errorf("record position: %w", err)
	}

	t.metrics.RecordDecision(sig.Strategy, "opened")
	t.metrics.RecordStake(sig.Strategy, d.Stake)
	t.l.Info("trade executed",
		applogger.String("mode", t.exec.Mode()),
		applogger.String("order_id", fill.OrderID),
		applogger.String("position_id", pos.ID),
		applogger.String("side", string(sig.Side)),
		applogger.Float64("stake", d.Stake),
		applogger.Float64("kelly", d.KellyFraction),
		applogger.Float64("edge", sig.Edge))
	return Execution{Decision: d, Order: order, Fill: fill, Position: &pos}, nil
}
