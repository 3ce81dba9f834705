package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/quantfolio/fundfacts/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS fund_facts_llm (
	fund_key    TEXT PRIMARY KEY,
	as_of_month DATE NOT NULL,
	payload     TEXT NOT NULL,
	confidence  TEXT NOT NULL,
	sources     TEXT NOT NULL,
	provenance  TEXT NOT NULL,
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS fund_facts_daily_budget (
	date_key   TEXT PRIMARY KEY,
	call_count INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fund_facts_llm_created_at ON fund_facts_llm(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) GetFactEntry(ctx context.Context, fundKey string, ttlDays int) (*model.FactEntry, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(ttlDays) * 24 * time.Hour)

	row := s.db.QueryRowContext(ctx,
		`SELECT fund_key, as_of_month, payload, confidence, sources, provenance, created_at
		 FROM fund_facts_llm
		 WHERE fund_key = ? AND created_at > ?
		 ORDER BY as_of_month DESC LIMIT 1`,
		fundKey, cutoff,
	)

	var e model.FactEntry
	var payloadJSON, sourcesJSON string
	err := row.Scan(&e.FundKey, &e.AsOfMonth, &payloadJSON, &e.Confidence, &sourcesJSON, &e.Provenance, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get fact entry")
	}
	if err := json.Unmarshal([]byte(payloadJSON), &e.Records); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal fact payload")
	}
	if err := json.Unmarshal([]byte(sourcesJSON), &e.Sources); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal fact sources")
	}
	return &e, nil
}

func (s *SQLiteStore) PutFactEntry(ctx context.Context, entry *model.FactEntry) error {
	payloadJSON, err := json.Marshal(entry.Records)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal fact payload")
	}
	sourcesJSON, err := json.Marshal(entry.Sources)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal fact sources")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO fund_facts_llm (fund_key, as_of_month, payload, confidence, sources, provenance, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(fund_key) DO UPDATE SET
			as_of_month = excluded.as_of_month,
			payload     = excluded.payload,
			confidence  = excluded.confidence,
			sources     = excluded.sources,
			provenance  = excluded.provenance,
			created_at  = excluded.created_at`,
		entry.FundKey, entry.AsOfMonth, string(payloadJSON), string(entry.Confidence),
		string(sourcesJSON), string(entry.Provenance), entry.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: put fact entry %s", entry.FundKey)
}

func (s *SQLiteStore) CountFactEntries(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fund_facts_llm`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count fact entries")
}

func (s *SQLiteStore) GetBudget(ctx context.Context, dateKey string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT call_count FROM fund_facts_daily_budget WHERE date_key = ?`,
		dateKey,
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: get budget")
	}
	return count, nil
}

func (s *SQLiteStore) UpsertBudget(ctx context.Context, dateKey string, count int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fund_facts_daily_budget (date_key, call_count, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(date_key) DO UPDATE SET
			call_count = excluded.call_count,
			updated_at = excluded.updated_at`,
		dateKey, count, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert budget %s", dateKey)
}
