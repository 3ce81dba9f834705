// Package guardrail holds the trust rules a retrieved record must pass
// before it is cached or surfaced, plus the notes sanitizer.
package guardrail

import (
	"strings"

	"github.com/quantfolio/fundfacts/internal/model"
)

// Result reports a guardrail evaluation. Never persisted.
type Result struct {
	Passed bool
	Reason string
}

// Evaluate runs three ordered checks against a validated record; the first
// failure wins. An ISIN alone does not satisfy the identity rule — only a
// resolved name or a registry code counts as identity evidence.
func Evaluate(rec *model.FactRecord) Result {
	if rec.Confidence == model.ConfidenceLow {
		return Result{Passed: false, Reason: "confidence is low"}
	}

	if blank(rec.Identity.SchemeName) && blank(rec.Identity.QueryName) && blank(rec.Identity.AMFICode) {
		return Result{Passed: false, Reason: "both scheme_name and amfi_code are missing"}
	}

	if len(rec.Sources) == 0 {
		return Result{Passed: false, Reason: "sources is empty"}
	}

	return Result{Passed: true}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
