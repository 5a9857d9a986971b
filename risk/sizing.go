package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/rustyeddy/regimetrader/sim"
)

// ErrSizingDegenerate means no tradable quantity could be computed. The
// caller must hold rather than substitute a size.
var ErrSizingDegenerate = errors.New("sizing degenerate")

// Input is everything the sizer may look at for one entry.
type Input struct {
	Direction  sim.Direction
	Price      float64 // reference entry price
	Stop       float64 // 0 when the signal carries none
	Equity     float64
	Volatility float64 // e.g. ATR; 0 when unavailable
	Stats      TradeStats
}

// Result is a sized order.
type Result struct {
	Quantity     float64
	StopDistance float64
	RiskAmount   float64
	Fraction     float64 // kelly fraction applied, if any
	Policy       Policy  // policy actually used, kelly may fall back
}

func degenerate(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSizingDegenerate, fmt.Sprintf(format, args...))
}

// Size converts an entry into a quantity under p, clamped to the minimum
// unit and to equity times MaxLeverage.
func Size(in Input, p Params) (Result, error) {
	if !finitePositive(in.Price) {
		return Result{}, degenerate("price %v", in.Price)
	}
	if !finitePositive(in.Equity) {
		return Result{}, degenerate("equity %v", in.Equity)
	}

	var (
		res Result
		err error
	)
	switch p.Policy {
	case PolicyFixed:
		res = Result{Quantity: p.Quantity, Policy: PolicyFixed}
	case PolicyRiskPercent:
		res, err = riskPercent(in, p)
	case PolicyKelly:
		res, err = kelly(in, p)
	case PolicyVolatility:
		res, err = volatility(in, p)
	default:
		return Result{}, fmt.Errorf("unknown risk policy %q", p.Policy)
	}
	if err != nil {
		return Result{}, err
	}

	q, err := clamp(res.Quantity, in.Price, in.Equity, p)
	if err != nil {
		return Result{}, err
	}
	res.Quantity = q
	if res.StopDistance > 0 {
		res.RiskAmount = q * res.StopDistance
	}
	return res, nil
}

func riskPercent(in Input, p Params) (Result, error) {
	dist, err := stopDistance(in, p)
	if err != nil {
		return Result{}, err
	}
	risk := in.Equity * p.RiskFraction
	return Result{
		Quantity:     risk / dist,
		StopDistance: dist,
		Policy:       PolicyRiskPercent,
	}, nil
}

// stopDistance prefers the signal's stop and falls back to a volatility
// multiple. A stop on the wrong side of the entry is degenerate.
func stopDistance(in Input, p Params) (float64, error) {
	if in.Stop > 0 {
		var d float64
		switch in.Direction {
		case sim.Short:
			d = in.Stop - in.Price
		default:
			d = in.Price - in.Stop
		}
		if !finitePositive(d) {
			return 0, degenerate("stop %v is not beyond entry %v", in.Stop, in.Price)
		}
		return d, nil
	}

	d := in.Volatility * p.StopATRMultiple
	if !finitePositive(d) {
		return 0, degenerate("no stop and volatility %v", in.Volatility)
	}
	return d, nil
}

func kelly(in Input, p Params) (Result, error) {
	s := in.Stats
	if s.Trades < p.KellyMinTrades || s.Wins == 0 || s.Losses == 0 || s.AvgLoss == 0 {
		return riskPercent(in, p)
	}

	f := s.Kelly()
	if !finitePositive(f) {
		return Result{}, degenerate("kelly fraction %v, no edge", f)
	}
	f = math.Min(f, 1) * p.KellyFraction
	f = math.Min(f, p.KellyCap)

	return Result{
		Quantity: in.Equity * f / in.Price,
		Fraction: f,
		Policy:   PolicyKelly,
	}, nil
}

func volatility(in Input, p Params) (Result, error) {
	unitRisk := in.Volatility * p.VolMultiplier
	if !finitePositive(unitRisk) {
		return Result{}, degenerate("volatility %v", in.Volatility)
	}
	return Result{
		Quantity:     in.Equity * p.TargetRiskFraction / unitRisk,
		StopDistance: unitRisk,
		Policy:       PolicyVolatility,
	}, nil
}

func clamp(q, price, equity float64, p Params) (float64, error) {
	if !finitePositive(q) {
		return 0, degenerate("quantity %v", q)
	}

	maxQ := equity * p.MaxLeverage / price
	if q > maxQ {
		q = maxQ
	}

	// floor to a whole number of minimum units
	units := math.Floor(q/p.MinUnit + 1e-9)
	if units < 1 {
		return 0, degenerate("quantity %v below minimum unit %v", q, p.MinUnit)
	}
	if snapped := units * p.MinUnit; snapped < q {
		q = snapped
	}
	return q, nil
}

func finitePositive(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0) && x > 0
}
