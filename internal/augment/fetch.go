package augment

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/quantfolio/fundfacts/internal/model"
	"github.com/quantfolio/fundfacts/internal/resilience"
	"github.com/quantfolio/fundfacts/internal/validate"
	"github.com/quantfolio/fundfacts/pkg/factsapi"
)

// FetcherConfig controls the external fact-retrieval call.
type FetcherConfig struct {
	Model     string
	MaxTokens int

	// Timeout bounds each individual attempt, not the whole retry sequence.
	Timeout time.Duration

	// Retry overrides the retry policy for provider calls. A zero
	// MaxAttempts selects the linear default.
	Retry resilience.RetryConfig

	// Breaker tunes the circuit breaker. Zero values use the defaults.
	Breaker resilience.CircuitBreakerConfig
}

// DefaultFetcherConfig returns the production fetch settings.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		MaxTokens: 2048,
		Timeout:   20 * time.Second,
	}
}

// Fetcher retrieves fact records from the external provider. It owns the
// retry policy and the circuit breaker; the client underneath is a single
// HTTP round trip.
type Fetcher struct {
	client  factsapi.Client
	cfg     FetcherConfig
	breaker *resilience.CircuitBreaker
}

// NewFetcher creates a Fetcher around the given client.
func NewFetcher(client factsapi.Client, cfg FetcherConfig) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = resilience.LinearRetryConfig()
	}
	return &Fetcher{
		client:  client,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker(cfg.Breaker),
	}
}

// BreakerState exposes the circuit state for health reporting.
func (f *Fetcher) BreakerState() resilience.CircuitState {
	return f.breaker.State()
}

// Fetch sends the rendered prompt pair and returns the parsed, validated
// fact records. Transport failures and retryable HTTP statuses are retried
// per the configured policy (3 attempts with linear backoff by default);
// parse and validation failures are terminal. An empty (but well-formed)
// result is not an error.
func (f *Fetcher) Fetch(ctx context.Context, system, user string) ([]model.FactRecord, error) {
	cfg := f.cfg.Retry
	cfg.OnRetry = resilience.RetryLogger("factsapi", "chat_completion")

	return resilience.ExecuteVal(ctx, f.breaker, func(ctx context.Context) ([]model.FactRecord, error) {
		resp, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*factsapi.ChatCompletionResponse, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
			defer cancel()
			return f.client.ChatCompletion(attemptCtx, f.buildRequest(system, user))
		})
		if err != nil {
			return nil, eris.Wrap(err, "augment: fetch facts")
		}
		return parseRecords(resp.Completion())
	})
}

func (f *Fetcher) buildRequest(system, user string) factsapi.ChatCompletionRequest {
	temperature := 0.0
	maxTokens := f.cfg.MaxTokens
	return factsapi.ChatCompletionRequest{
		Model: f.cfg.Model,
		Messages: []factsapi.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}
}

// parseRecords decodes the completion text into fact records. The provider
// is asked for raw JSON but sometimes wraps it in a markdown fence, and may
// return a single object instead of an array for single-fund prompts. A
// completion with no JSON in it at all (refusal prose, truncated output) is
// a parse failure, not an empty result.
func parseRecords(text string) ([]model.FactRecord, error) {
	cleaned := CleanJSON(text)
	if cleaned == "" {
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
		return nil, eris.Errorf("augment: no JSON in completion: %q", preview(text))
	}

	var records []model.FactRecord
	if strings.HasPrefix(cleaned, "[") {
		if err := json.Unmarshal([]byte(cleaned), &records); err != nil {
			return nil, eris.Wrap(err, "augment: parse fact records")
		}
	} else {
		var rec model.FactRecord
		if err := json.Unmarshal([]byte(cleaned), &rec); err != nil {
			return nil, eris.Wrap(err, "augment: parse fact record")
		}
		records = []model.FactRecord{rec}
	}

	if len(records) == 0 {
		return nil, nil
	}
	if err := validate.Records(records); err != nil {
		return nil, eris.Wrap(err, "augment: validate fact records")
	}
	return records, nil
}

// preview truncates raw completion text for inclusion in error messages.
func preview(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}

// CleanJSON extracts a JSON object or array from text that may contain
// markdown code fences or other wrapping.
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	text = strings.TrimSpace(text)

	// Find the outermost object or array, whichever starts first.
	objStart := strings.Index(text, "{")
	arrStart := strings.Index(text, "[")

	if arrStart >= 0 && (objStart < 0 || arrStart < objStart) {
		if end := strings.LastIndex(text, "]"); end > arrStart {
			return text[arrStart : end+1]
		}
		return ""
	}
	if objStart >= 0 {
		if end := strings.LastIndex(text, "}"); end > objStart {
			return text[objStart : end+1]
		}
		return ""
	}
	return ""
}
