package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"PolyEdge/internal/domain/models"
	domrepo "PolyEdge/internal/domain/repository"
)

const (
	journalTable = "ledger_journal"
	signalTable  = "signals"
)

// Execer is the slice of pkg/clickhouse.Client the archives need.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ClickHouseSchema returns idempotent DDL for the archive tables.
func ClickHouseSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			ts            DateTime64(3, 'UTC'),
			action        LowCardinality(String),
			position_id   String,
			market_id     String,
			strategy      LowCardinality(String),
			side          LowCardinality(String),
			size_usd      Float64,
			entry_price   Float64,
			exit_price    Nullable(Float64),
			pnl           Nullable(Float64),
			reason        String,
			payload       String
		) ENGINE = MergeTree
		PARTITION BY toYYYYMM(ts)
		ORDER BY (position_id, ts)`, database, journalTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			ts                 DateTime64(3, 'UTC'),
			market_id          String,
			strategy           LowCardinality(String),
			question           String,
			token_id           String,
			side               LowCardinality(String),
			our_probability    Float64,
			market_probability Float64,
			edge               Float64,
			actionable         UInt8,
			rationale          String
		) ENGINE = MergeTree
		PARTITION BY toYYYYMM(ts)
		ORDER BY (strategy, market_id, ts)
		TTL toDateTime(ts) + INTERVAL 90 DAY`, database, signalTable),
	}
}

// ClickHouseJournalArchive stores every ledger mutation for analysis.
type ClickHouseJournalArchive struct {
	db    Execer
	table string
}

var _ domrepo.JournalSink = (*ClickHouseJournalArchive)(nil)

// NewClickHouseJournalArchive creates the journal archive sink for database.
func NewClickHouseJournalArchive(db Execer, database string) *ClickHouseJournalArchive {
	return &ClickHouseJournalArchive{db: db, table: database + "." + journalTable}
}

func (a *ClickHouseJournalArchive) Publish(ctx context.Context, rec models.JournalRecord) error {
	payload, err := json.Marshal(rec.Position)
	if err != nil {
		return fmt.Errorf("encode position: %w", err)
	}
	q := fmt.Sprintf(`INSERT INTO %s (ts, action, position_id, market_id, strategy, side, size_usd, entry_price, exit_price, pnl, reason, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, a.table)
	_, err = a.db.ExecContext(ctx, q,
		rec.Timestamp.UTC(),
		string(rec.Action),
		rec.Position.ID,
		rec.Position.MarketID,
		rec.Position.Strategy,
		string(rec.Position.Side),
		rec.Position.SizeUSD,
		rec.Position.EntryPrice,
		rec.ExitPrice,
		rec.PnL,
		rec.Reason,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert journal: %w", err)
	}
	return nil
}

func (a *ClickHouseJournalArchive) Name() string { return "clickhouse" }

// ClickHouseSignalArchive stores every evaluated signal, actionable or not.
type ClickHouseSignalArchive struct {
	db    Execer
	table string
	now   func() time.Time
}

var _ domrepo.SignalArchive = (*ClickHouseSignalArchive)(nil)

// NewClickHouseSignalArchive creates the signal archive for database.
func NewClickHouseSignalArchive(db Execer, database string) *ClickHouseSignalArchive {
	return &ClickHouseSignalArchive{
		db:    db,
		table: database + "." + signalTable,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (a *ClickHouseSignalArchive) StoreSignal(ctx context.Context, s models.Signal) error {
	var actionable uint8
	if s.Actionable {
		actionable = 1
	}
	q := fmt.Sprintf(`INSERT INTO %s (ts, market_id, strategy, question, token_id, side, our_probability, market_probability, edge, actionable, rationale)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, a.table)
	_, err := a.db.ExecContext(ctx, q,
		a.now(),
		s.MarketID,
		s.Strategy,
		s.Question,
		s.TokenID,
		string(s.Side),
		s.OurProb,
		s.MarketProb,
		s.Edge,
		actionable,
		s.Rationale,
	)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}
