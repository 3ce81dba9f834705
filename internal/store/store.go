package store

import (
	"context"

	"github.com/quantfolio/fundfacts/internal/model"
)

// Store defines the persistence interface for the augmentation pipeline:
// the per-fund fact cache and the daily external-call budget counter. Any
// datastore with filtered-read and upsert primitives can implement it; the
// repo ships Postgres, SQLite and an in-memory fake.
type Store interface {
	// GetFactEntry returns the current cache entry for a fund, filtered
	// server-side to rows created within the TTL window, newest as-of-month
	// first. A miss returns (nil, nil); only real store failures error.
	GetFactEntry(ctx context.Context, fundKey string, ttlDays int) (*model.FactEntry, error)

	// PutFactEntry upserts the entry keyed by fund, overwriting any prior
	// row unconditionally. No historical versions are retained.
	PutFactEntry(ctx context.Context, entry *model.FactEntry) error

	// CountFactEntries reports how many funds currently have a cached entry.
	CountFactEntries(ctx context.Context) (int, error)

	// GetBudget returns the call count for a UTC calendar-day key, 0 when
	// no row exists yet.
	GetBudget(ctx context.Context, dateKey string) (int, error)

	// UpsertBudget writes the call count for a day. Read-increment-upsert
	// is best-effort atomic; the budget is a soft cost guard.
	UpsertBudget(ctx context.Context, dateKey string, count int) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
