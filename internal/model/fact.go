package model

// FactRecord is one retrieved fact bundle for a single fund. It is built
// from each external call and lives only in memory until it passes schema
// validation and guardrails, at which point it is persisted as part of a
// FactEntry.
type FactRecord struct {
	Identity    RecordIdentity   `json:"identity"`
	Facts       FactBlock        `json:"facts"`
	Performance PerformanceBlock `json:"performance"`
	RiskMetrics RiskBlock        `json:"risk_metrics"`
	Sources     []SourceCitation `json:"sources" validate:"dive"`
	Confidence  Confidence       `json:"confidence" validate:"required,oneof=high medium low"`
	Notes       string           `json:"notes,omitempty"`
}

// RecordIdentity carries the identity fields the external service resolved.
type RecordIdentity struct {
	SchemeName string `json:"scheme_name"`
	QueryName  string `json:"query_name"`
	AMFICode   string `json:"amfi_code"`
	ISIN       string `json:"isin"`
}

// FactBlock holds static descriptive facts. Leaves are nullable: the
// service returns null for anything it could not source.
type FactBlock struct {
	Category     *string  `json:"category"`
	Benchmark    *string  `json:"benchmark"`
	ExpenseRatio *float64 `json:"expense_ratio" validate:"omitempty,gte=0,lte=100"`
	AUM          *float64 `json:"aum" validate:"omitempty,gte=0"`
}

// PerformanceBlock holds trailing returns as of a stated date.
type PerformanceBlock struct {
	AsOf           string   `json:"as_of" validate:"omitempty,datefmt"`
	Return1Y       *float64 `json:"return_1y"`
	Return3Y       *float64 `json:"return_3y"`
	Return5Y       *float64 `json:"return_5y"`
	SinceInception *float64 `json:"since_inception"`
}

// RiskBlock holds risk ratios and where they came from.
type RiskBlock struct {
	AsOf   string   `json:"as_of" validate:"omitempty,datefmt"`
	Sharpe *float64 `json:"sharpe"`
	Beta   *float64 `json:"beta"`
	StdDev *float64 `json:"std_dev"`
	Source string   `json:"source"`
}

// SourceCitation ties a retrieved field to the URL it was sourced from.
type SourceCitation struct {
	Field string `json:"field" validate:"required"`
	URL   string `json:"url" validate:"required,url"`
	AsOf  string `json:"as_of" validate:"omitempty,datefmt"`
}
