package model

import "time"

// FactEntry is the persisted cache unit: one current entry per fund key,
// versioned naturally by the first-of-month as-of date. Batch responses may
// carry more than one record; the single-fund lookup path stores exactly one.
type FactEntry struct {
	FundKey    string           `json:"fund_key"`
	AsOfMonth  time.Time        `json:"as_of_month"`
	Records    []FactRecord     `json:"records"`
	Confidence Confidence       `json:"confidence"`
	Sources    []SourceCitation `json:"sources"`
	Provenance Provenance       `json:"provenance"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Fresh reports whether the entry is within the TTL window relative to now.
func (e FactEntry) Fresh(now time.Time, ttlDays int) bool {
	return now.Sub(e.CreatedAt) <= time.Duration(ttlDays)*24*time.Hour
}

// Usable reports whether a cached entry may serve a caller: fresh within
// the TTL and tagged with confidence meeting the caller's floor.
func (e FactEntry) Usable(now time.Time, ttlDays int, min Confidence) bool {
	return e.Fresh(now, ttlDays) && e.Confidence.AtLeast(min)
}

// MonthStart truncates t to the first of its month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
