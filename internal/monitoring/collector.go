// Package monitoring gathers operational stats for the augmentation
// pipeline and raises webhook alerts when the cost budget runs hot.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/quantfolio/fundfacts/internal/budget"
	"github.com/quantfolio/fundfacts/internal/cost"
	"github.com/quantfolio/fundfacts/internal/resilience"
	"github.com/quantfolio/fundfacts/internal/store"
)

// MetricsSnapshot holds a point-in-time view of pipeline health.
type MetricsSnapshot struct {
	// Cache.
	CachedFunds int `json:"cached_funds"`

	// Daily call budget.
	BudgetCallsToday   int     `json:"budget_calls_today"`
	BudgetLimit        int     `json:"budget_limit"`
	BudgetRemaining    int     `json:"budget_remaining"`
	BudgetUsedFraction float64 `json:"budget_used_fraction"`

	// Estimated external spend for the day.
	EstimatedSpendUSD float64 `json:"estimated_spend_usd"`

	// External call circuit breaker, when a fetcher is wired.
	BreakerState string `json:"breaker_state,omitempty"`

	CollectedAt time.Time `json:"collected_at"`
}

// BreakerStater reports the external-call circuit state.
type BreakerStater interface {
	BreakerState() resilience.CircuitState
}

// Collector gathers metrics from the store and cost calculator.
type Collector struct {
	store   store.Store
	calc    *cost.Calculator
	limit   int
	breaker BreakerStater
	now     func() time.Time
}

// NewCollector creates a metrics collector. breaker may be nil.
func NewCollector(st store.Store, calc *cost.Calculator, dailyCallLimit int, breaker BreakerStater) *Collector {
	return &Collector{
		store:   st,
		calc:    calc,
		limit:   dailyCallLimit,
		breaker: breaker,
		now:     time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (c *Collector) WithNow(now func() time.Time) *Collector {
	c.now = now
	return c
}

// Collect gathers the current snapshot.
func (c *Collector) Collect(ctx context.Context) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		BudgetLimit: c.limit,
		CollectedAt: now,
	}

	cached, err := c.store.CountFactEntries(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count cached funds")
	}
	snap.CachedFunds = cached

	calls, err := c.store.GetBudget(ctx, budget.DateKey(now))
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: read budget")
	}
	snap.BudgetCallsToday = calls
	snap.BudgetRemaining = c.limit - calls
	if snap.BudgetRemaining < 0 {
		snap.BudgetRemaining = 0
	}
	if c.limit > 0 {
		snap.BudgetUsedFraction = float64(calls) / float64(c.limit)
	}

	if c.calc != nil {
		snap.EstimatedSpendUSD = c.calc.FactsSpend(calls)
	}
	if c.breaker != nil {
		snap.BreakerState = c.breaker.BreakerState().String()
	}

	return snap, nil
}
