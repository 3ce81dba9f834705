package augment

import (
	"time"

	"go.uber.org/zap"

	"github.com/quantfolio/fundfacts/internal/model"
	"github.com/quantfolio/fundfacts/internal/redact"
)

// Cache statuses recorded in the audit entry.
const (
	CacheHit      = "hit"
	CacheMiss     = "miss"
	CacheDisabled = "disabled"
	CacheError    = "error"
)

// Adapter statuses recorded in the audit entry.
const (
	AdapterSuccess       = "success"
	AdapterError         = "error"
	AdapterSkipped       = "skipped"
	AdapterLowConfidence = "low_confidence"
	AdapterEmpty         = "empty_response"
)

// AuditEntry is the single structured log record emitted per lookup,
// written once when the request reaches a terminal state. It never carries
// raw prompt text or credentials: prompts appear only as a one-way hash and
// every field passes through the redaction layer before logging.
type AuditEntry struct {
	RequestID     string
	FundKey       string
	CacheStatus   string
	AdapterStatus string
	Confidence    model.Confidence
	PromptHash    string
	Err           string

	started time.Time
}

func newAuditEntry(requestID, fundKey string, started time.Time) *AuditEntry {
	return &AuditEntry{
		RequestID:     requestID,
		FundKey:       fundKey,
		CacheStatus:   CacheMiss,
		AdapterStatus: AdapterSkipped,
		started:       started,
	}
}

// emit writes the entry through the global logger with end-to-end latency.
func (e *AuditEntry) emit(now time.Time) {
	fields := map[string]any{
		"request_id":     e.RequestID,
		"fund_key":       e.FundKey,
		"cache_status":   e.CacheStatus,
		"adapter_status": e.AdapterStatus,
		"latency_ms":     now.Sub(e.started).Milliseconds(),
	}
	if e.Confidence != "" {
		fields["confidence"] = string(e.Confidence)
	}
	if e.PromptHash != "" {
		fields["prompt_hash"] = e.PromptHash
	}
	if e.Err != "" {
		fields["error"] = e.Err
	}

	zap.L().Info("fund facts lookup", zap.Any("audit", redact.Deep(fields)))
}
