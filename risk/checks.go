package risk

import (
	"fmt"
	"math"
)

// Limits are the account circuit breakers. Zero disables a check.
type Limits struct {
	MaxDrawdownPct  float64 `json:"max_drawdown_pct" yaml:"max_drawdown_pct"`
	MaxDailyLossPct float64 `json:"max_daily_loss_pct" yaml:"max_daily_loss_pct"`
	MaxDailyTrades  int     `json:"max_daily_trades" yaml:"max_daily_trades"`
	MaxRiskPct      float64 `json:"max_risk_pct" yaml:"max_risk_pct"`
	MinRR           float64 `json:"min_rr" yaml:"min_rr"`
}

// DefaultLimits mirrors a conservative paper account: 20% drawdown, 5%
// daily loss, 50 entries a day.
func DefaultLimits() Limits {
	return Limits{MaxDrawdownPct: 0.20, MaxDailyLossPct: 0.05, MaxDailyTrades: 50}
}

func (l Limits) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"max_drawdown_pct", l.MaxDrawdownPct},
		{"max_daily_loss_pct", l.MaxDailyLossPct},
		{"max_risk_pct", l.MaxRiskPct},
	} {
		if math.IsNaN(f.v) || f.v < 0 || f.v > 1 {
			return fmt.Errorf("guard.%s must be in [0, 1]", f.name)
		}
	}
	if l.MaxDailyTrades < 0 {
		return fmt.Errorf("guard.max_daily_trades must not be negative")
	}
	if l.MinRR < 0 {
		return fmt.Errorf("guard.min_rr must not be negative")
	}
	return nil
}

type Violation struct {
	Code string
	Msg  string
}

type Decision struct {
	Allowed    bool
	Violations []Violation

	PlannedRisk    float64
	PlannedRiskPct float64
	PlannedRR      float64
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Codes joins the violation codes, for logs.
func (d Decision) Codes() []string {
	out := make([]string, len(d.Violations))
	for i, v := range d.Violations {
		out[i] = v.Code
	}
	return out
}

// TradeIntent is a sized entry awaiting approval.
type TradeIntent struct {
	Quantity float64
	Entry    float64
	Stop     float64
	Target   float64
}

type AccountSnapshot struct {
	StartingCapital float64
	Equity          float64
	PeakEquity      float64
}

type PnLSnapshot struct {
	DayRealized float64
	DayTrades   int
}

// Evaluate applies the limits to a proposed entry.
func Evaluate(l Limits, intent TradeIntent, acct AccountSnapshot, pnl PnLSnapshot) Decision {
	d := Decision{Allowed: true}

	if intent.Stop > 0 {
		d.PlannedRisk = PlannedRisk(intent.Quantity, intent.Entry, intent.Stop)
		d.PlannedRiskPct = RiskPct(d.PlannedRisk, acct.Equity)
		d.PlannedRR = RR(intent.Entry, intent.Stop, intent.Target)

		if l.MaxRiskPct > 0 && d.PlannedRiskPct > l.MaxRiskPct {
			d.add("RISK_TOO_HIGH", fmt.Sprintf("planned risk %.2f%% exceeds max %.2f%%",
				100*d.PlannedRiskPct, 100*l.MaxRiskPct))
		}
		if l.MinRR > 0 && intent.Target > 0 && d.PlannedRR < l.MinRR {
			d.add("RR_TOO_LOW", fmt.Sprintf("RR %.2f below minimum %.2f", d.PlannedRR, l.MinRR))
		}
	}

	peak := math.Max(acct.PeakEquity, acct.StartingCapital)
	if l.MaxDrawdownPct > 0 && peak > 0 {
		dd := (peak - acct.Equity) / peak
		if dd >= l.MaxDrawdownPct {
			d.add("MAX_DRAWDOWN", fmt.Sprintf("drawdown %.2f%% >= limit %.2f%%", 100*dd, 100*l.MaxDrawdownPct))
		}
	}

	if l.MaxDailyLossPct > 0 && acct.StartingCapital > 0 {
		dayLimit := -l.MaxDailyLossPct * acct.StartingCapital
		if pnl.DayRealized <= dayLimit {
			d.add("DAILY_LOSS_LIMIT", fmt.Sprintf("day realized %.2f <= limit %.2f", pnl.DayRealized, dayLimit))
		}
	}

	if l.MaxDailyTrades > 0 && pnl.DayTrades >= l.MaxDailyTrades {
		d.add("DAILY_TRADE_LIMIT", fmt.Sprintf("day trades %d >= max %d", pnl.DayTrades, l.MaxDailyTrades))
	}

	return d
}
