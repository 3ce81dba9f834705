package model

// Provenance distinguishes internally computed data from externally
// retrieved, citation-backed data in a response.
type Provenance string

const (
	ProvenanceDeterministic Provenance = "deterministic"
	ProvenanceLLMCited      Provenance = "llm+cited"
)

// FundMetrics is the deterministic, database-sourced view of a holding.
// It is computed elsewhere in the product and consumed here read-only.
type FundMetrics struct {
	Invested     float64 `json:"invested"`
	CurrentValue float64 `json:"current_value"`
	XIRRPct      float64 `json:"xirr_pct"`
	Units        float64 `json:"units,omitempty"`
}

// maxResponseSources caps how many citations a response carries.
const maxResponseSources = 3

// ResponseNotes carries explanations attached to a response.
type ResponseNotes struct {
	// LLM explains why augmentation was withheld (feature disabled, low
	// confidence, guardrail rejection, adapter failure). Empty when
	// augmentation applied.
	LLM string `json:"llm,omitempty"`
}

// AugmentedFacts is the merged fact bundle returned to the caller. The
// deterministic metrics are always present when the provider has them; the
// LLM-sourced blocks appear only under provenance llm+cited.
type AugmentedFacts struct {
	Fund          FundIdentity      `json:"fund"`
	Metrics       *FundMetrics      `json:"metrics,omitempty"`
	Facts         *FactBlock        `json:"facts,omitempty"`
	Performance   *PerformanceBlock `json:"performance,omitempty"`
	RiskMetrics   *RiskBlock        `json:"risk_metrics,omitempty"`
	Provenance    Provenance        `json:"provenance"`
	LLMConfidence Confidence        `json:"llm_confidence,omitempty"`
	LLMAsOf       string            `json:"llm_as_of,omitempty"`
	Sources       []SourceCitation  `json:"sources,omitempty"`
	Notes         ResponseNotes     `json:"notes"`
}

// AttachSources sets the response citations, truncated to the cap.
func (a *AugmentedFacts) AttachSources(sources []SourceCitation) {
	if len(sources) > maxResponseSources {
		sources = sources[:maxResponseSources]
	}
	a.Sources = sources
}
