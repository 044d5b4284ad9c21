package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"PolyEdge/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishCall struct {
	topic string
	key   []byte
	value interface{}
}

type fakePublisher struct {
	calls []publishCall
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	f.calls = append(f.calls, publishCall{topic, key, value})
	return f.err
}

type execCall struct {
	query string
	args  []any
}

type fakeExecer struct {
	calls []execCall
	err   error
}

func (f *fakeExecer) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	f.calls = append(f.calls, execCall{query, args})
	return nil, f.err
}

func closeRecord() models.JournalRecord {
	exit, pnl := 1.0, 50.0
	return models.JournalRecord{
		Action:    models.ActionClose,
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Position: models.Position{
			ID:         "pos-1",
			MarketID:   "m1",
			Side:       models.SideYes,
			EntryPrice: 0.5,
			SizeUSD:    50,
			Shares:     100,
			Strategy:   models.StrategyPrice,
			Status:     models.StatusClosed,
		},
		ExitPrice: &exit,
		PnL:       &pnl,
		Reason:    "resolved",
	}
}

func TestKafkaJournalPublisher(t *testing.T) {
	fp := &fakePublisher{}
	p := NewKafkaJournalPublisher(fp, "polyedge.ledger")
	assert.Equal(t, "kafka", p.Name())

	rec := closeRecord()
	require.NoError(t, p.Publish(context.Background(), rec))
	require.Len(t, fp.calls, 1)
	assert.Equal(t, "polyedge.ledger", fp.calls[0].topic)
	assert.Equal(t, []byte("pos-1"), fp.calls[0].key)
	assert.Equal(t, rec, fp.calls[0].value)

	fp.err = errors.New("down")
	assert.Error(t, p.Publish(context.Background(), rec))
}

func TestClickHouseJournalArchive(t *testing.T) {
	fe := &fakeExecer{}
	a := NewClickHouseJournalArchive(fe, "polyedge")
	assert.Equal(t, "clickhouse", a.Name())

	rec := closeRecord()
	require.NoError(t, a.Publish(context.Background(), rec))
	require.Len(t, fe.calls, 1)
	call := fe.calls[0]
	assert.True(t, strings.HasPrefix(call.query, "INSERT INTO polyedge.ledger_journal"))
	require.Len(t, call.args, 12)
	assert.Equal(t, rec.Timestamp, call.args[0])
	assert.Equal(t, "CLOSE", call.args[1])
	assert.Equal(t, "pos-1", call.args[2])
	assert.Equal(t, rec.ExitPrice, call.args[8])

	var pos models.Position
	require.NoError(t, json.Unmarshal([]byte(call.args[11].(string)), &pos))
	assert.Equal(t, rec.Position, pos)

	fe.err = errors.New("timeout")
	assert.ErrorIs(t, a.Publish(context.Background(), rec), fe.err)
}

func TestClickHouseSignalArchive(t *testing.T) {
	fe := &fakeExecer{}
	a := NewClickHouseSignalArchive(fe, "polyedge")
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return at }

	sig := models.Signal{MarketID: "m1", Strategy: models.StrategyWeather, Side: models.SideNo, OurProb: 0.2, MarketProb: 0.3, Edge: 0.1, Actionable: true}
	require.NoError(t, a.StoreSignal(context.Background(), sig))
	require.Len(t, fe.calls, 1)
	assert.Contains(t, fe.calls[0].query, "polyedge.signals")
	assert.Equal(t, at, fe.calls[0].args[0])
	assert.Equal(t, "NO", fe.calls[0].args[5])
	assert.Equal(t, uint8(1), fe.calls[0].args[9])
}

func TestClickHouseSchema(t *testing.T) {
	stmts := ClickHouseSchema("polyedge")
	require.Len(t, stmts, 3)
	assert.Equal(t, "CREATE DATABASE IF NOT EXISTS polyedge", stmts[0])
	assert.Contains(t, stmts[1], "polyedge.ledger_journal")
	assert.Contains(t, stmts[2], "polyedge.signals")
}
