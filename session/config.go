package session

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rustyeddy/regimetrader/indicators"
	"github.com/rustyeddy/regimetrader/market"
	"github.com/rustyeddy/regimetrader/regime"
	"github.com/rustyeddy/regimetrader/risk"
	"github.com/rustyeddy/regimetrader/sim"
)

// Config fixes everything about a session at creation.
type Config struct {
	Symbol          string            `json:"symbol"`
	Exchange        string            `json:"exchange,omitempty"`
	Timeframe       market.Timeframe  `json:"timeframe"`
	StartingCapital float64           `json:"starting_capital"`
	Indicators      []indicators.Spec `json:"indicators"`
	Regime          regime.Thresholds `json:"regime"`
	Risk            risk.Params       `json:"risk"`
	Guard           risk.Limits       `json:"guard"`
	Execution       sim.Config        `json:"execution"`
}

// DefaultConfig is a 100k fixed-size session on the default indicator
// set.
func DefaultConfig(symbol string, tf market.Timeframe) Config {
	return Config{
		Symbol:          symbol,
		Timeframe:       tf,
		StartingCapital: 100000,
		Indicators:      indicators.DefaultSpecs(),
		Regime:          regime.DefaultThresholds(),
		Risk:            risk.DefaultParams(),
		Guard:           risk.DefaultLimits(),
	}
}

// Key is the symbol|timeframe key of the stream.
func (c Config) Key() string {
	return market.StreamKey(c.Symbol, c.Timeframe)
}

// Validate reports the first configuration error.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Symbol) == "" {
		return errors.New("session.symbol is required")
	}
	if c.Timeframe <= 0 {
		return errors.New("session.timeframe is required")
	}
	if math.IsNaN(c.StartingCapital) || math.IsInf(c.StartingCapital, 0) || c.StartingCapital <= 0 {
		return errors.New("session.starting_capital must be positive")
	}
	if len(c.Indicators) == 0 {
		return errors.New("session.indicators must not be empty")
	}
	if err := c.Regime.Validate(); err != nil {
		return err
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	if err := c.Guard.Validate(); err != nil {
		return err
	}
	return c.Execution.Validate()
}

// checkInputs verifies every snapshot name in need is produced by one of
// specs. Multi-value names ("bb.upper") match on the part before the dot.
func checkInputs(specs []indicators.Spec, need []string, who string) error {
	have := make(map[string]bool, len(specs))
	for _, s := range specs {
		have[s.Name] = true
	}
	for _, n := range need {
		base, _, _ := strings.Cut(n, ".")
		if !have[base] {
			return fmt.Errorf("%s needs indicator %q which is not configured", who, n)
		}
	}
	return nil
}
