package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/quantfolio/fundfacts/internal/augment"
	"github.com/quantfolio/fundfacts/internal/budget"
	"github.com/quantfolio/fundfacts/internal/cost"
	"github.com/quantfolio/fundfacts/internal/model"
	"github.com/quantfolio/fundfacts/internal/monitoring"
	"github.com/quantfolio/fundfacts/internal/prompt"
	"github.com/quantfolio/fundfacts/internal/resilience"
	"github.com/quantfolio/fundfacts/internal/store"
	"github.com/quantfolio/fundfacts/pkg/factsapi"
)

// lookupEnv holds the initialized store and the wired lookup pipeline.
type lookupEnv struct {
	Store        store.Store
	Orchestrator *augment.Orchestrator
	Fetcher      *augment.Fetcher
	Collector    *monitoring.Collector
}

// Close releases resources held by the environment.
func (e *lookupEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "fundfacts.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "memory":
		return store.NewMemory(), nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initLookup sets up the store, facts client, and the orchestrator.
// Callers should defer env.Close().
func initLookup(ctx context.Context) (*lookupEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	var clientOpts []factsapi.Option
	if cfg.FactsAPI.BaseURL != "" {
		clientOpts = append(clientOpts, factsapi.WithBaseURL(cfg.FactsAPI.BaseURL))
	}
	if cfg.FactsAPI.Model != "" {
		clientOpts = append(clientOpts, factsapi.WithModel(cfg.FactsAPI.Model))
	}
	client := factsapi.NewClient(cfg.FactsAPI.Key, clientOpts...)

	fetcher := augment.NewFetcher(client, augment.FetcherConfig{
		Model:     cfg.FactsAPI.Model,
		MaxTokens: cfg.FactsAPI.MaxTokens,
		Timeout:   time.Duration(cfg.FactsAPI.TimeoutSecs) * time.Second,
		Retry:     resilience.FromRetryConfig(cfg.Resilience.RetryMaxAttempts, cfg.Resilience.RetryBackoffMs),
		Breaker:   resilience.FromCircuitConfig(cfg.Resilience.BreakerFailureThreshold, cfg.Resilience.BreakerResetSecs),
	})

	renderer, err := prompt.Default()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	ledger := budget.NewLedger(st, cfg.Augment.DailyCallLimit)

	orch := augment.NewOrchestrator(st, ledger, fetcher, renderer, augment.NewStaticMetrics(), augment.Options{
		Enabled:       cfg.Augment.Enabled,
		MinConfidence: model.Confidence(cfg.Augment.MinConfidence),
		CacheTTLDays:  cfg.Augment.CacheTTLDays,
		MaxBatchSize:  cfg.Augment.MaxBatchSize,
	})

	calc := cost.NewCalculator(cost.Rates{Facts: cost.FactsRate{PerQuery: cfg.Pricing.Facts.PerQuery}})
	collector := monitoring.NewCollector(st, calc, cfg.Augment.DailyCallLimit, fetcher)

	if !cfg.Augment.Enabled {
		zap.L().Info("augmentation disabled, lookups serve deterministic data only")
	}

	return &lookupEnv{
		Store:        st,
		Orchestrator: orch,
		Fetcher:      fetcher,
		Collector:    collector,
	}, nil
}
