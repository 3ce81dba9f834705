package augment

import (
	"context"
	"sync"

	"github.com/quantfolio/fundfacts/internal/model"
)

// MetricsProvider supplies the deterministic, database-sourced view of a
// holding. It is owned by the wider product; lookups here are read-only.
// Unknown funds return (nil, nil).
type MetricsProvider interface {
	FundMetrics(ctx context.Context, fund model.FundIdentity) (*model.FundMetrics, error)
}

// StaticMetrics is an in-memory MetricsProvider keyed by fund cache key.
// Used by the CLI and in tests when no portfolio backend is wired.
type StaticMetrics struct {
	mu   sync.RWMutex
	data map[string]model.FundMetrics
}

// NewStaticMetrics creates an empty provider.
func NewStaticMetrics() *StaticMetrics {
	return &StaticMetrics{data: make(map[string]model.FundMetrics)}
}

// Set stores metrics for a fund key.
func (s *StaticMetrics) Set(fundKey string, m model.FundMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[fundKey] = m
}

// FundMetrics returns the metrics for the fund, or (nil, nil) when unknown.
func (s *StaticMetrics) FundMetrics(_ context.Context, fund model.FundIdentity) (*model.FundMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.data[fund.Key()]
	if !ok {
		return nil, nil
	}
	return &m, nil
}
