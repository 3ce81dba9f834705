package guardrail

import (
	"testing"

	"github.com/quantfolio/fundfacts/internal/model"
)

func passingRecord() model.FactRecord {
	return model.FactRecord{
		Identity: model.RecordIdentity{
			SchemeName: "HDFC Index Fund - NIFTY 50 Plan",
			QueryName:  "hdfc nifty index",
			AMFICode:   "101525",
		},
		Sources: []model.SourceCitation{
			{Field: "benchmark", URL: "https://www.hdfcfund.com/"},
		},
		Confidence: model.ConfidenceHigh,
	}
}

func TestEvaluate_Passes(t *testing.T) {
	rec := passingRecord()
	res := Evaluate(&rec)
	if !res.Passed {
		t.Fatalf("expected pass, got reason %q", res.Reason)
	}
	if res.Reason != "" {
		t.Errorf("passing result should carry no reason, got %q", res.Reason)
	}
}

func TestEvaluate_LowConfidenceAlwaysFails(t *testing.T) {
	rec := passingRecord()
	rec.Confidence = model.ConfidenceLow

	res := Evaluate(&rec)
	if res.Passed {
		t.Fatal("low confidence must fail")
	}
	if res.Reason != "confidence is low" {
		t.Errorf("reason = %q", res.Reason)
	}
}

func TestEvaluate_IdentityRule(t *testing.T) {
	tests := []struct {
		name       string
		scheme     string
		query      string
		amfi       string
		isin       string
		wantPassed bool
	}{
		{"official name only", "HDFC Index Fund", "", "", "", true},
		{"query name only", "", "hdfc index", "", "", true},
		{"registry code only", "", "", "101525", "", true},
		{"whitespace everywhere", "  ", "\t", " ", "", false},
		// An ISIN alone is not accepted as identity evidence.
		{"isin only", "", "", "", "INF179K01VY8", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := passingRecord()
			rec.Identity = model.RecordIdentity{
				SchemeName: tt.scheme,
				QueryName:  tt.query,
				AMFICode:   tt.amfi,
				ISIN:       tt.isin,
			}
			res := Evaluate(&rec)
			if res.Passed != tt.wantPassed {
				t.Errorf("passed = %v, want %v (reason %q)", res.Passed, tt.wantPassed, res.Reason)
			}
			if !tt.wantPassed && res.Reason != "both scheme_name and amfi_code are missing" {
				t.Errorf("reason = %q", res.Reason)
			}
		})
	}
}

func TestEvaluate_EmptySourcesFailsRegardless(t *testing.T) {
	rec := passingRecord()
	rec.Sources = nil

	res := Evaluate(&rec)
	if res.Passed {
		t.Fatal("empty sources must fail")
	}
	if res.Reason != "sources is empty" {
		t.Errorf("reason = %q", res.Reason)
	}
}

func TestEvaluate_OrderIsFixed(t *testing.T) {
	// A record failing every rule reports the first one.
	rec := model.FactRecord{Confidence: model.ConfidenceLow}
	if res := Evaluate(&rec); res.Reason != "confidence is low" {
		t.Errorf("first failure should win, got %q", res.Reason)
	}
}

func TestSanitizeNotes_DropsAdvice(t *testing.T) {
	advisory := []string{
		"You should invest in this fund",
		"you must consider the exit load before redeeming",
		"We recommend holding for 5+ years",
		"Investors ought to avoid it during volatile markets",
		"This is the best fund in its category",
	}
	for _, s := range advisory {
		if got := SanitizeNotes(s); got != "" {
			t.Errorf("SanitizeNotes(%q) = %q, want empty", s, got)
		}
	}
}

func TestSanitizeNotes_KeepsFactualContent(t *testing.T) {
	factual := "Benchmark changed from NIFTY 500 to NIFTY 500 TRI in Jan 2025. Expense ratio as of May 2025."
	if got := SanitizeNotes(factual); got != factual {
		t.Errorf("factual note modified: %q", got)
	}
}

func TestSanitizeNotes_Empty(t *testing.T) {
	if got := SanitizeNotes(""); got != "" {
		t.Errorf("got %q", got)
	}
}

func TestMatchedRule(t *testing.T) {
	if name := MatchedRule("You should invest in this fund"); name != "imperative_advice" {
		t.Errorf("MatchedRule = %q", name)
	}
	if name := MatchedRule("plain factual text"); name != "" {
		t.Errorf("MatchedRule = %q, want empty", name)
	}
}

func TestRulesVersion(t *testing.T) {
	if RulesVersion() < 1 {
		t.Error("rules version should be set")
	}
}
