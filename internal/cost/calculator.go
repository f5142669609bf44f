// Package cost estimates what document extraction spends on model calls.
package cost

import (
	"sync"

	"github.com/shopspring/decimal"
)

var perMillion = decimal.NewFromInt(1_000_000)

// ModelRate holds per-model token pricing in USD per million tokens.
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// Rates maps model IDs to pricing.
type Rates map[string]ModelRate

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost of one Claude call. Unknown models cost zero.
func (c *Calculator) Claude(model string, input, output, cacheWrite, cacheRead int64) decimal.Decimal {
	rate, ok := c.rates[model]
	if !ok {
		return decimal.Zero
	}

	in := decimal.NewFromFloat(rate.Input)
	tokens := func(n int64) decimal.Decimal { return decimal.NewFromInt(n).Div(perMillion) }

	return tokens(input).Mul(in).
		Add(tokens(output).Mul(decimal.NewFromFloat(rate.Output))).
		Add(tokens(cacheWrite).Mul(in).Mul(decimal.NewFromFloat(rate.CacheWriteMul))).
		Add(tokens(cacheRead).Mul(in).Mul(decimal.NewFromFloat(rate.CacheReadMul)))
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		"claude-haiku-4-5-20251001": {
			Input: 1.00, Output: 5.00, CacheWriteMul: 1.25, CacheReadMul: 0.1,
		},
		"claude-sonnet-4-5-20250929": {
			Input: 3.00, Output: 15.00, CacheWriteMul: 1.25, CacheReadMul: 0.1,
		},
	}
}

// Tracker accumulates spend across concurrent extractions.
type Tracker struct {
	calc *Calculator

	mu    sync.Mutex
	total decimal.Decimal
	calls int
}

// NewTracker creates a Tracker over calc.
func NewTracker(calc *Calculator) *Tracker {
	return &Tracker{calc: calc}
}

// Record adds one call and returns its cost.
func (t *Tracker) Record(model string, input, output, cacheWrite, cacheRead int64) decimal.Decimal {
	c := t.calc.Claude(model, input, output, cacheWrite, cacheRead)
	t.mu.Lock()
	t.total = t.total.Add(c)
	t.calls++
	t.mu.Unlock()
	return c
}

// Total returns the accumulated cost and call count.
func (t *Tracker) Total() (decimal.Decimal, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total, t.calls
}
