// Package augment sequences the fund-facts lookup: cache, budget, prompt,
// external fetch, confidence gate, guardrails, sanitize, cache write. No
// failure below the orchestrator propagates to the caller as a hard error;
// every terminal state produces a response, falling back to deterministic
// data with an explanation when enrichment is withheld.
package augment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/quantfolio/fundfacts/internal/budget"
	"github.com/quantfolio/fundfacts/internal/guardrail"
	"github.com/quantfolio/fundfacts/internal/model"
	"github.com/quantfolio/fundfacts/internal/prompt"
	"github.com/quantfolio/fundfacts/internal/redact"
	"github.com/quantfolio/fundfacts/internal/store"
)

// Explanations attached to Notes.LLM when augmentation is withheld. The
// caller must never be left guessing why enrichment didn't apply.
const (
	noteDisabled      = "fund facts enrichment is disabled"
	noteAdapterError  = "fund facts are temporarily unavailable"
	noteEmptyResponse = "no verifiable facts were found for this fund"
	noteLowConfidence = "retrieved facts did not meet the confidence threshold"
	noteGuardrail     = "retrieved facts were withheld: "
)

// Options configures the orchestrator.
type Options struct {
	Enabled       bool
	MinConfidence model.Confidence
	CacheTTLDays  int
	MaxBatchSize  int
}

// DefaultOptions returns the production defaults: feature off, medium
// confidence floor, 30-day cache TTL.
func DefaultOptions() Options {
	return Options{
		MinConfidence: model.ConfidenceMedium,
		CacheTTLDays:  30,
		MaxBatchSize:  10,
	}
}

// Orchestrator handles fund-facts lookups end to end.
type Orchestrator struct {
	store   store.Store
	ledger  *budget.Ledger
	fetcher *Fetcher
	render  *prompt.Renderer
	metrics MetricsProvider
	opts    Options
	now     func() time.Time
}

// NewOrchestrator wires the lookup pipeline.
func NewOrchestrator(st store.Store, ledger *budget.Ledger, fetcher *Fetcher, renderer *prompt.Renderer, metrics MetricsProvider, opts Options) *Orchestrator {
	if opts.CacheTTLDays <= 0 {
		opts.CacheTTLDays = 30
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = 10
	}
	if !opts.MinConfidence.Valid() {
		opts.MinConfidence = model.ConfidenceMedium
	}
	return &Orchestrator{
		store:   st,
		ledger:  ledger,
		fetcher: fetcher,
		render:  renderer,
		metrics: metrics,
		opts:    opts,
		now:     time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (o *Orchestrator) WithNow(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Lookup resolves one fund. The returned error is non-nil only for invalid
// input or budget exhaustion (a *budget.LimitError); every other failure
// falls back to a deterministic response with an explanatory note.
func (o *Orchestrator) Lookup(ctx context.Context, fund model.FundIdentity, minConf model.Confidence) (*model.AugmentedFacts, error) {
	if err := fund.Normalize(); err != nil {
		return nil, err
	}
	if !minConf.Valid() {
		minConf = o.opts.MinConfidence
	}

	audit := newAuditEntry(uuid.NewString(), fund.Key(), o.now())
	defer func() { audit.emit(o.now()) }()

	resp := o.deterministic(ctx, fund, "")

	if !o.opts.Enabled {
		audit.CacheStatus = CacheDisabled
		resp.Notes.LLM = noteDisabled
		return resp, nil
	}

	if entry := o.readCache(ctx, fund, minConf, audit); entry != nil {
		o.mergeEntry(resp, fund, *entry)
		audit.Confidence = entry.Confidence
		return resp, nil
	}

	chk := o.ledger.Check(ctx)
	if !chk.Allowed {
		return nil, o.ledger.LimitError(chk)
	}

	rec, ok := o.fetchOne(ctx, fund, audit, resp)
	if !ok {
		return resp, nil
	}

	audit.Confidence = rec.Confidence
	if !rec.Confidence.AtLeast(minConf) {
		audit.AdapterStatus = AdapterLowConfidence
		resp.Notes.LLM = noteLowConfidence
		return resp, nil
	}

	if g := guardrail.Evaluate(&rec); !g.Passed {
		audit.AdapterStatus = AdapterError
		audit.Err = "guardrail rejected record: " + g.Reason
		resp.Notes.LLM = noteGuardrail + g.Reason
		return resp, nil
	}

	rec.Notes = guardrail.SanitizeNotes(rec.Notes)
	audit.AdapterStatus = AdapterSuccess

	o.ledger.Record(ctx)
	o.writeCache(ctx, fund, rec)

	o.mergeRecord(resp, rec)
	return resp, nil
}

// LookupBatch resolves up to MaxBatchSize funds with a single external call
// covering every cache miss. Per-fund failures degrade that fund to its
// deterministic response; the call as a whole errors only on invalid input
// or budget exhaustion.
func (o *Orchestrator) LookupBatch(ctx context.Context, funds []model.FundIdentity) ([]*model.AugmentedFacts, error) {
	if len(funds) == 0 {
		return nil, eris.New("augment: batch lookup requires at least one fund")
	}
	if len(funds) > o.opts.MaxBatchSize {
		return nil, eris.Errorf("augment: batch size %d exceeds limit %d", len(funds), o.opts.MaxBatchSize)
	}
	for i := range funds {
		if err := funds[i].Normalize(); err != nil {
			return nil, eris.Wrapf(err, "augment: fund %d", i+1)
		}
	}

	requestID := uuid.NewString()
	started := o.now()
	results := make([]*model.AugmentedFacts, len(funds))
	audits := make([]*AuditEntry, len(funds))
	var pending []int

	for i, fund := range funds {
		audits[i] = newAuditEntry(requestID, fund.Key(), started)
		results[i] = o.deterministic(ctx, fund, "")

		if !o.opts.Enabled {
			audits[i].CacheStatus = CacheDisabled
			results[i].Notes.LLM = noteDisabled
			continue
		}
		if entry := o.readCache(ctx, fund, o.opts.MinConfidence, audits[i]); entry != nil {
			o.mergeEntry(results[i], fund, *entry)
			audits[i].Confidence = entry.Confidence
			continue
		}
		pending = append(pending, i)
	}

	defer func() {
		now := o.now()
		for _, a := range audits {
			a.emit(now)
		}
	}()

	if len(pending) == 0 {
		return results, nil
	}

	chk := o.ledger.Check(ctx)
	if !chk.Allowed {
		return nil, o.ledger.LimitError(chk)
	}

	missing := make([]model.FundIdentity, len(pending))
	for n, i := range pending {
		missing[n] = funds[i]
	}

	system, user, err := o.render.Render(missing)
	if err != nil {
		for _, i := range pending {
			audits[i].AdapterStatus = AdapterError
			audits[i].Err = redact.String(err.Error())
			results[i].Notes.LLM = noteAdapterError
		}
		return results, nil
	}
	hash := redact.HashPrompt(system, user)
	for _, i := range pending {
		audits[i].PromptHash = hash
	}

	records, err := o.fetcher.Fetch(ctx, system, user)
	if err != nil {
		for _, i := range pending {
			audits[i].AdapterStatus = AdapterError
			audits[i].Err = redact.String(err.Error())
			results[i].Notes.LLM = noteAdapterError
		}
		return results, nil
	}

	// The external call is billed whether or not individual records survive
	// the gates below.
	o.ledger.Record(ctx)

	for _, i := range pending {
		rec, found := matchRecord(records, funds[i])
		if !found {
			audits[i].AdapterStatus = AdapterEmpty
			results[i].Notes.LLM = noteEmptyResponse
			continue
		}

		audits[i].Confidence = rec.Confidence
		if !rec.Confidence.AtLeast(o.opts.MinConfidence) {
			audits[i].AdapterStatus = AdapterLowConfidence
			results[i].Notes.LLM = noteLowConfidence
			continue
		}
		if g := guardrail.Evaluate(&rec); !g.Passed {
			audits[i].AdapterStatus = AdapterError
			audits[i].Err = "guardrail rejected record: " + g.Reason
			results[i].Notes.LLM = noteGuardrail + g.Reason
			continue
		}

		rec.Notes = guardrail.SanitizeNotes(rec.Notes)
		audits[i].AdapterStatus = AdapterSuccess
		o.writeCache(ctx, funds[i], rec)
		o.mergeRecord(results[i], rec)
	}

	return results, nil
}

// deterministic builds the fallback response: fund identity plus whatever
// portfolio metrics the provider has, no LLM-sourced blocks.
func (o *Orchestrator) deterministic(ctx context.Context, fund model.FundIdentity, note string) *model.AugmentedFacts {
	resp := &model.AugmentedFacts{
		Fund:       fund,
		Provenance: model.ProvenanceDeterministic,
		Notes:      model.ResponseNotes{LLM: note},
	}
	if o.metrics == nil {
		return resp
	}
	metrics, err := o.metrics.FundMetrics(ctx, fund)
	if err != nil {
		zap.L().Warn("metrics provider failed",
			zap.String("fund_key", fund.Key()),
			zap.Error(err))
		return resp
	}
	resp.Metrics = metrics
	return resp
}

// readCache returns a usable cached entry or nil. Store errors are treated
// as a miss; the TTL filter is applied server-side, the confidence floor here.
func (o *Orchestrator) readCache(ctx context.Context, fund model.FundIdentity, minConf model.Confidence, audit *AuditEntry) *model.FactEntry {
	entry, err := o.store.GetFactEntry(ctx, fund.Key(), o.opts.CacheTTLDays)
	if err != nil {
		audit.CacheStatus = CacheError
		zap.L().Warn("fact cache read failed",
			zap.String("fund_key", fund.Key()),
			zap.Error(err))
		return nil
	}
	if entry == nil || !entry.Confidence.AtLeast(minConf) {
		audit.CacheStatus = CacheMiss
		return nil
	}
	audit.CacheStatus = CacheHit
	return entry
}

// fetchOne renders the single-fund prompt and performs the external call.
// On any failure it degrades resp in place and returns ok=false.
func (o *Orchestrator) fetchOne(ctx context.Context, fund model.FundIdentity, audit *AuditEntry, resp *model.AugmentedFacts) (model.FactRecord, bool) {
	system, user, err := o.render.Render([]model.FundIdentity{fund})
	if err != nil {
		audit.AdapterStatus = AdapterError
		audit.Err = redact.String(err.Error())
		resp.Notes.LLM = noteAdapterError
		return model.FactRecord{}, false
	}
	audit.PromptHash = redact.HashPrompt(system, user)

	records, err := o.fetcher.Fetch(ctx, system, user)
	if err != nil {
		audit.AdapterStatus = AdapterError
		audit.Err = redact.String(err.Error())
		resp.Notes.LLM = noteAdapterError
		return model.FactRecord{}, false
	}
	if len(records) == 0 {
		audit.AdapterStatus = AdapterEmpty
		resp.Notes.LLM = noteEmptyResponse
		return model.FactRecord{}, false
	}

	rec, found := matchRecord(records, fund)
	if !found {
		rec = records[0]
	}
	return rec, true
}

// writeCache persists the record as the fund's current cache entry. Failure
// is logged and otherwise ignored: freshly fetched data is still returned.
func (o *Orchestrator) writeCache(ctx context.Context, fund model.FundIdentity, rec model.FactRecord) {
	now := o.now()
	entry := model.FactEntry{
		FundKey:    fund.Key(),
		AsOfMonth:  model.MonthStart(now),
		Records:    []model.FactRecord{rec},
		Confidence: rec.Confidence,
		Sources:    rec.Sources,
		Provenance: model.ProvenanceLLMCited,
		CreatedAt:  now,
	}
	if err := o.store.PutFactEntry(ctx, &entry); err != nil {
		zap.L().Warn("fact cache write failed",
			zap.String("fund_key", fund.Key()),
			zap.Error(err))
	}
}

// mergeEntry merges a cached entry into the response.
func (o *Orchestrator) mergeEntry(resp *model.AugmentedFacts, fund model.FundIdentity, entry model.FactEntry) {
	rec, found := matchRecord(entry.Records, fund)
	if !found {
		if len(entry.Records) == 0 {
			return
		}
		rec = entry.Records[0]
	}
	o.mergeRecord(resp, rec)
}

// mergeRecord attaches the LLM-sourced blocks to the response and flips
// provenance to llm+cited.
func (o *Orchestrator) mergeRecord(resp *model.AugmentedFacts, rec model.FactRecord) {
	facts := rec.Facts
	perf := rec.Performance
	risk := rec.RiskMetrics

	resp.Facts = &facts
	resp.Performance = &perf
	resp.RiskMetrics = &risk
	resp.Provenance = model.ProvenanceLLMCited
	resp.LLMConfidence = rec.Confidence
	resp.LLMAsOf = rec.Performance.AsOf
	if resp.LLMAsOf == "" {
		resp.LLMAsOf = rec.RiskMetrics.AsOf
	}
	resp.AttachSources(rec.Sources)
	resp.Notes.LLM = rec.Notes
}

// matchRecord finds the record belonging to the fund: registry code match
// first, then case-insensitive name match against the resolved identity.
func matchRecord(records []model.FactRecord, fund model.FundIdentity) (model.FactRecord, bool) {
	if fund.RegistryCode != "" {
		for _, rec := range records {
			if rec.Identity.AMFICode == fund.RegistryCode {
				return rec, true
			}
		}
	}
	for _, rec := range records {
		if nameMatches(rec.Identity.QueryName, fund) || nameMatches(rec.Identity.SchemeName, fund) {
			return rec, true
		}
	}
	return model.FactRecord{}, false
}

func nameMatches(name string, fund model.FundIdentity) bool {
	if name == "" {
		return false
	}
	folded := foldName(name)
	return folded == foldName(fund.Name) || folded == foldName(fund.OfficialName)
}

func foldName(s string) string {
	return model.FundIdentity{Name: s}.Key()
}
