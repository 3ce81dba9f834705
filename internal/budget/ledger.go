// Package budget tracks the daily external-call counter used as a cost
// control. It is a soft guard: the check fails open and the recorder
// swallows write failures, because neither is allowed to take down the
// response path.
package budget

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quantfolio/fundfacts/internal/store"
)

// Check is the result of a budget inquiry.
type Check struct {
	Allowed    bool   `json:"allowed"`
	CallsToday int    `json:"calls_today"`
	Limit      int    `json:"limit"`
	Reason     string `json:"reason,omitempty"`
}

// LimitError signals budget exhaustion with structured retry guidance.
type LimitError struct {
	CallsToday     int `json:"calls_today"`
	Limit          int `json:"limit"`
	RetryAfterSecs int `json:"retry_after_secs"`
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("daily call budget exhausted (%d/%d), retry in %ds",
		e.CallsToday, e.Limit, e.RetryAfterSecs)
}

// Ledger reads and advances the per-day call counter.
type Ledger struct {
	store store.Store
	limit int
	now   func() time.Time
}

// NewLedger creates a ledger with the given daily call limit.
func NewLedger(st store.Store, limit int) *Ledger {
	return &Ledger{store: st, limit: limit, now: time.Now}
}

// WithNow sets a fixed clock for testing.
func (l *Ledger) WithNow(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// DateKey returns the UTC calendar-day key for t.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Check reads today's counter and compares it against the limit. A store
// read failure fails open: blocking all traffic because budget tracking is
// down is worse than a bounded risk of over-calling once.
func (l *Ledger) Check(ctx context.Context) Check {
	count, err := l.store.GetBudget(ctx, DateKey(l.now()))
	if err != nil {
		zap.L().Warn("budget check failed, failing open", zap.Error(err))
		return Check{Allowed: true, CallsToday: 0, Limit: l.limit}
	}

	c := Check{CallsToday: count, Limit: l.limit}
	if count >= l.limit {
		c.Reason = fmt.Sprintf("daily limit of %d calls reached", l.limit)
		return c
	}
	c.Allowed = true
	return c
}

// Record increments today's counter by one. Failures are logged and
// swallowed; recording must never block the response path.
func (l *Ledger) Record(ctx context.Context) {
	key := DateKey(l.now())
	count, err := l.store.GetBudget(ctx, key)
	if err != nil {
		zap.L().Warn("budget record: read failed", zap.Error(err))
		return
	}
	if err := l.store.UpsertBudget(ctx, key, count+1); err != nil {
		zap.L().Warn("budget record: upsert failed", zap.Error(err))
	}
}

// LimitError converts an exhausted check into a structured error carrying
// seconds until the counter resets at the next UTC midnight.
func (l *Ledger) LimitError(c Check) *LimitError {
	now := l.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	return &LimitError{
		CallsToday:     c.CallsToday,
		Limit:          c.Limit,
		RetryAfterSecs: int(midnight.Sub(now).Seconds()),
	}
}
