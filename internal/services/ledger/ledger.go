package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"PolyEdge/internal/domain/models"
	domrepo "PolyEdge/internal/domain/repository"
	applogger "PolyEdge/pkg/logger"
	"PolyEdge/pkg/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrPositionNotFound = errors.New("position not found")
	ErrPositionNotOpen  = errors.New("position is not open")
	ErrInvalidStake     = errors.New("stake must be positive")
)

// Ledger is the single writer of bankroll and positions. Every mutation
// rewrites the snapshot and appends one journal record; persistence failures
// are logged and the in-memory state stays authoritative.
type Ledger struct {
	mu    sync.RWMutex
	state models.LedgerState

	store   domrepo.StateStore
	sinks   []domrepo.JournalSink
	clock   models.Clock
	newID   func() string
	l       *applogger.Logger
	metrics domrepo.Metrics
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the clock used to stamp positions and records.
func WithClock(c models.Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

// WithIDGenerator overrides position id generation.
func WithIDGenerator(fn func() string) Option {
	return func(l *Ledger) { l.newID = fn }
}

// WithSinks adds downstream journal consumers.
func WithSinks(sinks ...domrepo.JournalSink) Option {
	return func(l *Ledger) { l.sinks = append(l.sinks, sinks...) }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m domrepo.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(lg *applogger.Logger) Option {
	return func(l *Ledger) { l.l = lg }
}

// New loads the snapshot from store, or starts fresh with initialBankroll when none exists.
func New(store domrepo.StateStore, initialBankroll float64, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("ledger: state store is required")
	}
	l := &Ledger{
		store:   store,
		clock:   time.Now,
		newID:   func() string { return uuid.NewString() },
		l:       applogger.NewNop(),
		metrics: metrics.Nop{},
	}
	for _, opt := range opts {
		opt(l)
	}

	st, err := store.Load()
	switch {
	case errors.Is(err, domrepo.ErrStateNotFound):
		l.state = models.LedgerState{Bankroll: initialBankroll}
		l.l.Info("starting fresh ledger", applogger.Float64("bankroll", initialBankroll))
	case err != nil:
		return nil, fmt.Errorf("load ledger state: %w", err)
	default:
		l.state = *st
		l.l.Info("ledger state loaded",
			applogger.Float64("bankroll", st.Bankroll),
			applogger.Int("positions", len(st.Positions)),
			applogger.Int("history", len(st.TradeHistory)))
	}
	l.recordPortfolio()
	return l, nil
}

// Open records a new position and debits its stake from the bankroll.
func (l *Ledger) Open(ctx context.Context, p models.PositionParams) (models.Position, error) {
	if !(p.SizeUSD > 0) {
		return models.Position{}, ErrInvalidStake
	}
	pos, err := models.NewPosition(l.clock, l.newID, p)
	if err != nil {
		return models.Position{}, err
	}

	l.mu.Lock()
	l.state.Positions = append(l.state.Positions, *pos)
	l.state.Bankroll = sub(l.state.Bankroll, pos.SizeUSD)
	rec := models.JournalRecord{Action: models.ActionOpen, Timestamp: pos.Timestamp, Position: *pos}
	l.commit(rec)
	l.mu.Unlock()

	l.l.Info("position opened",
		applogger.String("id", pos.ID),
		applogger.String("market", pos.MarketID),
		applogger.String("side", string(pos.Side)),
		applogger.Float64("stake", pos.SizeUSD),
		applogger.Float64("entry", pos.EntryPrice),
		applogger.Float64("edge", pos.Edge))
	l.publish(ctx, rec)
	return *pos, nil
}

// Close settles an open position and credits stake + pnl to the bankroll.
func (l *Ledger) Close(ctx context.Context, id string, exitPrice, pnl float64, reason string) (models.Position, error) {
	return l.settle(ctx, id, models.StatusClosed, models.ActionClose, &exitPrice, pnl, reason)
}

// Expire settles an open position without an exit price.
func (l *Ledger) Expire(ctx context.Context, id string, pnl float64, reason string) (models.Position, error) {
	return l.settle(ctx, id, models.StatusExpired, models.ActionExpire, nil, pnl, reason)
}

func (l *Ledger) settle(ctx context.Context, id string, status models.PositionStatus, action models.JournalAction, exitPrice *float64, pnl float64, reason string) (models.Position, error) {
	l.mu.Lock()
	idx := l.indexOf(id)
	if idx < 0 {
		l.mu.Unlock()
		return models.Position{}, fmt.Errorf("%w: %s", ErrPositionNotFound, id)
	}
	pos := &l.state.Positions[idx]
	if pos.Status.Terminal() {
		l.mu.Unlock()
		return models.Position{}, fmt.Errorf("%w: %s is %s", ErrPositionNotOpen, id, pos.Status)
	}

	now := l.clock().UTC()
	pos.Status = status
	pos.ExitPrice = exitPrice
	pos.PnL = &pnl
	pos.ClosedAt = &now
	pos.CloseReason = reason
	l.state.Bankroll = add(l.state.Bankroll, add(pos.SizeUSD, pnl))

	rec := models.JournalRecord{
		Action:    action,
		Timestamp: now,
		Position:  *pos,
		ExitPrice: exitPrice,
		PnL:       &pnl,
		Reason:    reason,
	}
	l.commit(rec)
	out := *pos
	l.mu.Unlock()

	l.l.Info("position settled",
		applogger.String("id", id),
		applogger.String("status", string(status)),
		applogger.Float64("pnl", pnl),
		applogger.String("reason", reason))
	l.publish(ctx, rec)
	return out, nil
}

// commit appends rec to history and persists. Callers hold mu.
func (l *Ledger) commit(rec models.JournalRecord) {
	l.state.TradeHistory = append(l.state.TradeHistory, rec)

	snap := l.snapshotLocked()
	if err := l.store.Save(&snap); err != nil {
		l.metrics.RecordError("persist_snapshot")
		l.l.Warn("failed to persist ledger snapshot", applogger.Error(err))
	}
	if err := l.store.AppendJournal(rec); err != nil {
		l.metrics.RecordError("persist_journal")
		l.l.Warn("failed to append journal record", applogger.Error(err))
	}
	l.recordPortfolioLocked()
}

func (l *Ledger) publish(ctx context.Context, rec models.JournalRecord) {
	for _, s := range l.sinks {
		if err := s.Publish(ctx, rec); err != nil {
			l.metrics.RecordError("journal_sink")
			l.l.Warn("journal sink publish failed",
				applogger.String("sink", s.Name()),
				applogger.String("action", string(rec.Action)),
				applogger.Error(err))
		}
	}
}

// Stats derives bankroll, exposure and realized results from memory.
func (l *Ledger) Stats() models.LedgerStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	st := models.LedgerStats{Bankroll: l.state.Bankroll}
	exposure := decimal.Zero
	for _, p := range l.state.Positions {
		if p.Status == models.StatusOpen {
			st.OpenPositions++
			exposure = exposure.Add(decimal.NewFromFloat(p.SizeUSD))
		}
	}
	st.TotalExposure = exposure.InexactFloat64()

	total := decimal.Zero
	for _, rec := range l.state.TradeHistory {
		if !rec.Settles() || rec.PnL == nil {
			continue
		}
		st.ClosedTrades++
		total = total.Add(decimal.NewFromFloat(*rec.PnL))
		if *rec.PnL > 0 {
			st.Wins++
		} else {
			st.Losses++
		}
	}
	st.TotalPnL = total.InexactFloat64()
	if st.ClosedTrades > 0 {
		st.WinRate = float64(st.Wins) / float64(st.ClosedTrades)
	}
	return st
}

// Portfolio returns the state the sizer needs.
func (l *Ledger) Portfolio() models.Portfolio {
	st := l.Stats()
	return models.Portfolio{Bankroll: st.Bankroll, OpenCount: st.OpenPositions, OpenExposure: st.TotalExposure}
}

// Bankroll returns the current bankroll.
func (l *Ledger) Bankroll() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Bankroll
}

// Positions returns copies of positions with the given status, or all when status is empty.
func (l *Ledger) Positions(status models.PositionStatus) []models.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Position, 0, len(l.state.Positions))
	for _, p := range l.state.Positions {
		if status == "" || p.Status == status {
			out = append(out, p)
		}
	}
	return out
}

// Position looks up one position by id.
func (l *Ledger) Position(id string) (models.Position, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx := l.indexOf(id)
	if idx < 0 {
		return models.Position{}, fmt.Errorf("%w: %s", ErrPositionNotFound, id)
	}
	return l.state.Positions[idx], nil
}

// Snapshot returns a copy of the full ledger state.
func (l *Ledger) Snapshot() models.LedgerState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshotLocked()
}

func (l *Ledger) snapshotLocked() models.LedgerState {
	return models.LedgerState{
		Bankroll:     l.state.Bankroll,
		Positions:    append([]models.Position(nil), l.state.Positions...),
		TradeHistory: append([]models.JournalRecord(nil), l.state.TradeHistory...),
	}
}

func (l *Ledger) indexOf(id string) int {
	for i := range l.state.Positions {
		if l.state.Positions[i].ID == id {
			return i
		}
	}
	return -1
}

func (l *Ledger) recordPortfolio() {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.recordPortfolioLocked()
}

func (l *Ledger) recordPortfolioLocked() {
	open, exposure := 0, 0.0
	for _, p := range l.state.Positions {
		if p.Status == models.StatusOpen {
			open++
			exposure += p.SizeUSD
		}
	}
	l.metrics.RecordPortfolio(l.state.Bankroll, exposure, open)
}

// SettlementPnL is the pnl of redeeming pos at exitPrice per share.
func SettlementPnL(pos models.Position, exitPrice float64) float64 {
	shares := decimal.NewFromFloat(pos.Shares)
	return shares.Mul(decimal.NewFromFloat(exitPrice)).Sub(decimal.NewFromFloat(pos.SizeUSD)).Round(6).InexactFloat64()
}

func add(a, b float64) float64 {
	return decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).InexactFloat64()
}

func sub(a, b float64) float64 {
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).InexactFloat64()
}
