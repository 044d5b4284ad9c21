package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"PolyEdge/internal/domain/models"
	domrepo "PolyEdge/internal/domain/repository"
	"PolyEdge/internal/repository"
	"PolyEdge/internal/services/risk"
	"PolyEdge/pkg/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() models.Clock {
	return func() time.Time { return epoch }
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("pos-%d", n)
	}
}

func newFileStore(t *testing.T) *repository.FileStateStore {
	t.Helper()
	dir := t.TempDir()
	s, err := repository.NewFileStateStore(filepath.Join(dir, "state.json"), filepath.Join(dir, "trades.jsonl"))
	require.NoError(t, err)
	return s
}

func newLedger(t *testing.T, store domrepo.StateStore, opts ...Option) *Ledger {
	t.Helper()
	opts = append([]Option{WithClock(fixedClock()), WithIDGenerator(sequentialIDs())}, opts...)
	l, err := New(store, 1000, opts...)
	require.NoError(t, err)
	return l
}

func params(stake, entry float64) models.PositionParams {
	return models.PositionParams{
		MarketID:       "m1",
		MarketQuestion: "Will BTC be above $100,000?",
		TokenID:        "yes-token",
		Side:           models.SideYes,
		EntryPrice:     entry,
		SizeUSD:        stake,
		OurProb:        0.65,
		MarketProb:     0.5,
		KellyFraction:  0.15,
		Strategy:       models.StrategyPrice,
		Reasoning:      "test",
	}
}

type memStore struct {
	state     *models.LedgerState
	journal   []models.JournalRecord
	saveErr   error
	appendErr error
}

func (m *memStore) Load() (*models.LedgerState, error) {
	if m.state == nil {
		return nil, domrepo.ErrStateNotFound
	}
	cp := *m.state
	return &cp, nil
}

func (m *memStore) Save(st *models.LedgerState) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	cp := *st
	m.state = &cp
	return nil
}

func (m *memStore) AppendJournal(rec models.JournalRecord) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.journal = append(m.journal, rec)
	return nil
}

type recordingSink struct {
	got []models.JournalRecord
	err error
}

func (s *recordingSink) Publish(_ context.Context, rec models.JournalRecord) error {
	s.got = append(s.got, rec)
	return s.err
}

func (s *recordingSink) Name() string { return "recording" }

func TestLedger_EndToEndScenario(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, newFileStore(t))

	sizer := risk.NewSizer(config.Default().Risk)
	d := sizer.CalculateBetSize(0.65, 0.50, l.Portfolio())
	require.True(t, d.Approved())

	p := params(d.Stake, 0.5)
	p.KellyFraction = d.KellyFraction
	pos, err := l.Open(ctx, p)
	require.NoError(t, err)

	assert.Equal(t, 50.0, pos.SizeUSD)
	assert.Equal(t, 100.0, pos.Shares)
	assert.InDelta(t, 0.15, pos.Edge, 1e-12)
	assert.Equal(t, epoch, pos.Timestamp)
	assert.Equal(t, 950.0, l.Bankroll())
}

func TestLedger_OpenAndClose(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	l := newLedger(t, store)

	pos, err := l.Open(ctx, params(40, 0.4))
	require.NoError(t, err)
	assert.Equal(t, 960.0, l.Bankroll())
	assert.Equal(t, "pos-1", pos.ID)
	assert.Equal(t, 100.0, pos.Shares)

	closed, err := l.Close(ctx, pos.ID, 1.0, SettlementPnL(pos, 1.0), "resolved")
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, closed.Status)
	require.NotNil(t, closed.PnL)
	assert.Equal(t, 60.0, *closed.PnL)
	assert.Equal(t, 1060.0, l.Bankroll())

	require.Len(t, store.journal, 2)
	assert.Equal(t, models.ActionOpen, store.journal[0].Action)
	assert.Equal(t, models.ActionClose, store.journal[1].Action)
	assert.Equal(t, "resolved", store.journal[1].Reason)
	require.NotNil(t, store.state)
	assert.Equal(t, 1060.0, store.state.Bankroll)
	assert.Len(t, store.state.TradeHistory, 2)
}

func TestLedger_StatusTransitionsAreTerminal(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, &memStore{})

	pos, err := l.Open(ctx, params(10, 0.5))
	require.NoError(t, err)
	_, err = l.Expire(ctx, pos.ID, 0, "expired")
	require.NoError(t, err)

	_, err = l.Close(ctx, pos.ID, 1, 10, "resolved")
	assert.ErrorIs(t, err, ErrPositionNotOpen)
	_, err = l.Expire(ctx, pos.ID, 0, "expired")
	assert.ErrorIs(t, err, ErrPositionNotOpen)

	_, err = l.Close(ctx, "missing", 1, 0, "")
	assert.ErrorIs(t, err, ErrPositionNotFound)
	_, err = l.Position("missing")
	assert.ErrorIs(t, err, ErrPositionNotFound)

	got, err := l.Position(pos.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, got.Status)
	assert.Nil(t, got.ExitPrice)
	assert.Equal(t, 1000.0, l.Bankroll())
}

func TestLedger_RejectsNonPositiveStake(t *testing.T) {
	l := newLedger(t, &memStore{})
	_, err := l.Open(context.Background(), params(0, 0.5))
	assert.ErrorIs(t, err, ErrInvalidStake)
	assert.Empty(t, l.Positions(""))
}

func TestLedger_RejectsProbabilitiesOutsideUnitInterval(t *testing.T) {
	l := newLedger(t, &memStore{})
	ctx := context.Background()

	tests := []struct {
		name string
		edit func(p *models.PositionParams)
	}{
		{"our prob above one", func(p *models.PositionParams) { p.OurProb = 1.5 }},
		{"market prob negative", func(p *models.PositionParams) { p.MarketProb = -0.2 }},
		{"market prob NaN", func(p *models.PositionParams) { p.MarketProb = math.NaN() }},
		{"our prob zero", func(p *models.PositionParams) { p.OurProb = 0 }},
		{"entry price infinite", func(p *models.PositionParams) { p.EntryPrice = math.Inf(1) }},
		{"entry price NaN", func(p *models.PositionParams) { p.EntryPrice = math.NaN() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := params(10, 0.5)
			tt.edit(&p)
			_, err := l.Open(ctx, p)
			assert.ErrorIs(t, err, models.ErrInvalidPosition)
		})
	}
	assert.Empty(t, l.Positions(""))
	assert.Equal(t, 1000.0, l.Bankroll())
}

func TestLedger_ZeroEntryPriceHasNoShares(t *testing.T) {
	l := newLedger(t, &memStore{})
	pos, err := l.Open(context.Background(), params(10, 0))
	require.NoError(t, err)
	assert.Zero(t, pos.Shares)
}

func TestLedger_BankrollIdentity(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, &memStore{})

	stakes := []float64{12.34, 50, 7.77, 20.01, 33.33}
	pnls := []float64{-12.34, 41.1, 0, 5.55}

	want := decimal.NewFromInt(1000)
	var ids []string
	for _, s := range stakes {
		pos, err := l.Open(ctx, params(s, 0.37))
		require.NoError(t, err)
		ids = append(ids, pos.ID)
		want = want.Sub(decimal.NewFromFloat(s))
	}
	for i, pnl := range pnls {
		var err error
		if i%2 == 0 {
			_, err = l.Close(ctx, ids[i], 0.5, pnl, "resolved")
		} else {
			_, err = l.Expire(ctx, ids[i], pnl, "expired")
		}
		require.NoError(t, err)
		want = want.Add(decimal.NewFromFloat(stakes[i])).Add(decimal.NewFromFloat(pnl))
	}

	assert.Equal(t, want.InexactFloat64(), l.Bankroll())

	st := l.Stats()
	assert.Equal(t, 1, st.OpenPositions)
	assert.Equal(t, 33.33, st.TotalExposure)
	assert.Equal(t, 4, st.ClosedTrades)
	assert.Equal(t, 2, st.Wins)
	assert.Equal(t, 2, st.Losses)
	assert.Equal(t, 0.5, st.WinRate)
	assert.InDelta(t, 34.31, st.TotalPnL, 1e-9)
}

func TestLedger_ResumesFromSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)

	l := newLedger(t, store)
	a, err := l.Open(ctx, params(25, 0.5))
	require.NoError(t, err)
	_, err = l.Open(ctx, params(15, 0.3))
	require.NoError(t, err)
	_, err = l.Close(ctx, a.ID, 0, -25, "lost")
	require.NoError(t, err)

	before := l.Snapshot()

	reloaded, err := New(store, 5000)
	require.NoError(t, err)
	after := reloaded.Snapshot()

	assert.Equal(t, before.Bankroll, after.Bankroll)
	assert.Equal(t, before.Positions, after.Positions)
	assert.Len(t, after.TradeHistory, 3)
	assert.Equal(t, 960.0, after.Bankroll)
	assert.Len(t, reloaded.Positions(models.StatusOpen), 1)

	journal, err := store.ReadJournal()
	require.NoError(t, err)
	assert.Len(t, journal, 3)
}

func TestLedger_PersistenceFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	store := &memStore{saveErr: errors.New("disk full"), appendErr: errors.New("disk full")}
	sink := &recordingSink{err: errors.New("broker down")}
	l := newLedger(t, store, WithSinks(sink))

	pos, err := l.Open(ctx, params(30, 0.6))
	require.NoError(t, err)
	assert.Equal(t, 970.0, l.Bankroll())
	assert.Nil(t, store.state)
	assert.Len(t, sink.got, 1)

	_, err = l.Close(ctx, pos.ID, 1, 20, "resolved")
	require.NoError(t, err)
	assert.Equal(t, 1020.0, l.Bankroll())
	assert.Len(t, sink.got, 2)
}

func TestLedger_CorruptSnapshotFailsStartup(t *testing.T) {
	_, err := New(&failingLoad{}, 1000)
	require.Error(t, err)
}

type failingLoad struct{ memStore }

func (f *failingLoad) Load() (*models.LedgerState, error) {
	return nil, errors.New("decode state: unexpected EOF")
}

func TestLedger_PositionsFilter(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, &memStore{})
	a, _ := l.Open(ctx, params(10, 0.5))
	_, _ = l.Open(ctx, params(10, 0.5))
	_, err := l.Close(ctx, a.ID, 1, 10, "resolved")
	require.NoError(t, err)

	assert.Len(t, l.Positions(""), 2)
	assert.Len(t, l.Positions(models.StatusOpen), 1)
	assert.Len(t, l.Positions(models.StatusClosed), 1)
	assert.Empty(t, l.Positions(models.StatusExpired))

	pf := l.Portfolio()
	assert.Equal(t, 1, pf.OpenCount)
	assert.Equal(t, 10.0, pf.OpenExposure)
	assert.Equal(t, 1000.0, pf.Bankroll)
}

func TestSettlementPnL(t *testing.T) {
	pos := models.Position{SizeUSD: 50, Shares: 100}
	assert.Equal(t, 50.0, SettlementPnL(pos, 1))
	assert.Equal(t, -50.0, SettlementPnL(pos, 0))
	assert.Equal(t, 0.0, SettlementPnL(pos, 0.5))
}
