package sim

import (
	"fmt"
	"math"
)

// Cost model modes.
const (
	CostNone     = "none"
	CostPercent  = "percent"  // fraction of price or notional, 0.0004 = 4 bps
	CostAbsolute = "absolute" // price units for slippage
	CostFixed    = "fixed"    // account currency per fill for fees
)

// CostModel describes either slippage or a fee.
type CostModel struct {
	Mode  string  `json:"mode" yaml:"mode" default:"none"`
	Value float64 `json:"value" yaml:"value"`
}

func (c CostModel) validate(what string, modes ...string) error {
	if math.IsNaN(c.Value) || math.IsInf(c.Value, 0) || c.Value < 0 {
		return fmt.Errorf("execution.%s.value must be a non-negative number", what)
	}
	if c.Mode == "" || c.Mode == CostNone {
		return nil
	}
	for _, m := range modes {
		if c.Mode == m {
			return nil
		}
	}
	return fmt.Errorf("execution.%s.mode %q is not one of none, %v", what, c.Mode, modes)
}

// Slip worsens price for the trader: buys fill higher, sells lower.
func (c CostModel) Slip(price float64, buy bool) float64 {
	var d float64
	switch c.Mode {
	case CostPercent:
		d = price * c.Value
	case CostAbsolute:
		d = c.Value
	default:
		return price
	}
	if buy {
		return price + d
	}
	return price - d
}

// Fee is the commission charged on one fill of the given notional.
func (c CostModel) Fee(notional float64) float64 {
	switch c.Mode {
	case CostPercent:
		return math.Abs(notional) * c.Value
	case CostFixed:
		return c.Value
	}
	return 0
}
