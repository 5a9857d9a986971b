// Package indicators provides streaming technical indicators for bars.
package indicators

import "github.com/rustyeddy/regimetrader/market"

// Indicator computes a streaming value from bars.
// It is deterministic and safe to use in live and backtest sessions.
type Indicator interface {
	// Name returns a descriptive label like "EMA(20)" or "RSI(14)".
	Name() string

	// Warmup returns how many bars are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next closed bar.
	Update(b market.Bar)

	// Ready reports whether Value() is meaningful.
	Ready() bool

	// Value returns the primary output; 0 until Ready.
	Value() float64
}

// MultiValue is implemented by indicators that publish extra series next
// to their primary value, e.g. Bollinger bands.
type MultiValue interface {
	Values() map[string]float64
}
