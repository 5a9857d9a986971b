// Package risk sizes orders and enforces account-level limits.
package risk

import (
	"fmt"
	"math"
)

// Policy selects how a signal is turned into a quantity.
type Policy string

const (
	PolicyFixed       Policy = "fixed"
	PolicyRiskPercent Policy = "risk_percent"
	PolicyKelly       Policy = "kelly"
	PolicyVolatility  Policy = "volatility_adjusted"
)

// Params configure sizing. They are immutable for a session.
type Params struct {
	Policy Policy `json:"policy" yaml:"policy" default:"fixed"`

	// fixed
	Quantity float64 `json:"quantity" yaml:"quantity" default:"1"`

	// risk_percent, also the kelly fallback
	RiskFraction    float64 `json:"risk_fraction" yaml:"risk_fraction" default:"0.01"`
	StopATRMultiple float64 `json:"stop_atr_multiple" yaml:"stop_atr_multiple" default:"2"`

	// kelly
	KellyFraction  float64 `json:"kelly_fraction" yaml:"kelly_fraction" default:"0.25"`
	KellyCap       float64 `json:"kelly_cap" yaml:"kelly_cap" default:"0.2"`
	KellyLookback  int     `json:"kelly_lookback" yaml:"kelly_lookback" default:"100"`
	KellyMinTrades int     `json:"kelly_min_trades" yaml:"kelly_min_trades" default:"30"`

	// volatility_adjusted
	VolatilityIndicator string  `json:"volatility_indicator" yaml:"volatility_indicator" default:"atr"`
	VolMultiplier       float64 `json:"vol_multiplier" yaml:"vol_multiplier" default:"2"`
	TargetRiskFraction  float64 `json:"target_risk_fraction" yaml:"target_risk_fraction" default:"0.01"`

	// clamps
	MinUnit     float64 `json:"min_unit" yaml:"min_unit" default:"0.001"`
	MaxLeverage float64 `json:"max_leverage" yaml:"max_leverage" default:"1"`
}

// DefaultParams is fixed sizing of one unit.
func DefaultParams() Params {
	return Params{
		Policy:              PolicyFixed,
		Quantity:            1,
		RiskFraction:        0.01,
		StopATRMultiple:     2,
		KellyFraction:       0.25,
		KellyCap:            0.2,
		KellyLookback:       100,
		KellyMinTrades:      30,
		VolatilityIndicator: "atr",
		VolMultiplier:       2,
		TargetRiskFraction:  0.01,
		MinUnit:             0.001,
		MaxLeverage:         1,
	}
}

func positive(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("risk.%s must be positive", name)
	}
	return nil
}

func fraction(name string, v float64) error {
	if math.IsNaN(v) || v <= 0 || v > 1 {
		return fmt.Errorf("risk.%s must be in (0, 1]", name)
	}
	return nil
}

// Validate checks the scalars the selected policy needs.
func (p Params) Validate() error {
	if err := positive("min_unit", p.MinUnit); err != nil {
		return err
	}
	if err := positive("max_leverage", p.MaxLeverage); err != nil {
		return err
	}

	switch p.Policy {
	case PolicyFixed:
		return positive("quantity", p.Quantity)

	case PolicyRiskPercent:
		if err := fraction("risk_fraction", p.RiskFraction); err != nil {
			return err
		}
		if p.StopATRMultiple < 0 {
			return fmt.Errorf("risk.stop_atr_multiple must not be negative")
		}
		return nil

	case PolicyKelly:
		if err := fraction("risk_fraction", p.RiskFraction); err != nil {
			return err
		}
		if err := fraction("kelly_fraction", p.KellyFraction); err != nil {
			return err
		}
		if err := fraction("kelly_cap", p.KellyCap); err != nil {
			return err
		}
		if p.KellyLookback <= 0 {
			return fmt.Errorf("risk.kelly_lookback must be positive")
		}
		if p.KellyMinTrades < 0 || p.KellyMinTrades > p.KellyLookback {
			return fmt.Errorf("risk.kelly_min_trades must be between 0 and kelly_lookback")
		}
		return nil

	case PolicyVolatility:
		if p.VolatilityIndicator == "" {
			return fmt.Errorf("risk.volatility_indicator is required")
		}
		if err := positive("vol_multiplier", p.VolMultiplier); err != nil {
			return err
		}
		return fraction("target_risk_fraction", p.TargetRiskFraction)
	}
	return fmt.Errorf("unknown risk.policy %q", p.Policy)
}

// NeedsVolatility reports whether sizing reads the volatility indicator.
func (p Params) NeedsVolatility() bool {
	return p.Policy == PolicyVolatility ||
		((p.Policy == PolicyRiskPercent || p.Policy == PolicyKelly) && p.StopATRMultiple > 0)
}
