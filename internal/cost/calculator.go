// Package cost estimates external API spend for budget reporting.
package cost

// Rates holds pricing configuration.
type Rates struct {
	Facts FactsRate `yaml:"facts" mapstructure:"facts"`
}

// FactsRate prices one fact-retrieval query (flat per-query billing).
type FactsRate struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// Calculator computes estimated costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// FactsQuery returns the flat cost of a single fact-retrieval call.
func (c *Calculator) FactsQuery() float64 {
	return c.rates.Facts.PerQuery
}

// FactsSpend estimates total spend for a number of calls.
func (c *Calculator) FactsSpend(calls int) float64 {
	return float64(calls) * c.rates.Facts.PerQuery
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{Facts: FactsRate{PerQuery: 0.005}}
}
