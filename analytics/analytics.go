// Package analytics turns a session's ledger and equity curve into
// performance statistics.
package analytics

import (
	"math"
	"time"

	"github.com/rustyeddy/regimetrader/sim"
)

// EquityPoint is one sample of a session's equity curve. Equity is the
// realized balance; Mark adds the open position's unrealized P/L.
type EquityPoint struct {
	Time   time.Time `json:"time"`
	Equity float64   `json:"equity"`
	Mark   float64   `json:"mark"`
}

// Input is everything Compute needs.
type Input struct {
	Symbol          string
	Timeframe       string
	Strategy        string
	StartingCapital float64
	Trades          []sim.Trade
	Curve           []EquityPoint

	// PeriodsPerYear annualizes Sharpe and Sortino. Zero leaves them
	// per-bar.
	PeriodsPerYear float64
}

// Summary is the aggregate view of one session.
type Summary struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Strategy  string    `json:"strategy,omitempty"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Bars      int       `json:"bars"`

	StartingCapital float64 `json:"starting_capital"`
	FinalEquity     float64 `json:"final_equity"`
	NetPnL          float64 `json:"net_pnl"`
	ReturnPct       float64 `json:"return_pct"`
	Fees            float64 `json:"fees"`

	Trades       int     `json:"trades"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"win_rate"`
	AvgWin       float64 `json:"avg_win"`
	AvgLoss      float64 `json:"avg_loss"`
	ProfitFactor float64 `json:"profit_factor"`
	Expectancy   float64 `json:"expectancy"`
	AvgBarsHeld  float64 `json:"avg_bars_held"`

	MaxDrawdown    float64 `json:"max_drawdown"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	Sharpe         float64 `json:"sharpe"`
	Sortino        float64 `json:"sortino"`
}

// Compute builds a Summary. WinRate and ReturnPct are percentages.
func Compute(in Input) Summary {
	s := Summary{
		Symbol:          in.Symbol,
		Timeframe:       in.Timeframe,
		Strategy:        in.Strategy,
		StartingCapital: in.StartingCapital,
		FinalEquity:     in.StartingCapital,
		Trades:          len(in.Trades),
		Bars:            len(in.Curve),
	}

	var grossWin, grossLoss, bars float64
	for _, t := range in.Trades {
		s.NetPnL += t.PnL
		s.Fees += t.Fees
		bars += float64(t.DurationBars)
		if t.Win() {
			s.Wins++
			grossWin += t.PnL
		} else {
			s.Losses++
			grossLoss += -t.PnL
		}
	}
	s.FinalEquity = in.StartingCapital + s.NetPnL

	if s.Trades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Trades) * 100
		s.Expectancy = s.NetPnL / float64(s.Trades)
		s.AvgBarsHeld = bars / float64(s.Trades)
	}
	if s.Wins > 0 {
		s.AvgWin = grossWin / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = grossLoss / float64(s.Losses)
	}
	s.ProfitFactor = ProfitFactor(grossWin, grossLoss)

	if in.StartingCapital > 0 {
		s.ReturnPct = s.NetPnL / in.StartingCapital * 100
	}

	if n := len(in.Curve); n > 0 {
		s.Start = in.Curve[0].Time
		s.End = in.Curve[n-1].Time
	}
	marks := make([]float64, 0, len(in.Curve)+1)
	marks = append(marks, in.StartingCapital)
	for _, p := range in.Curve {
		marks = append(marks, p.Mark)
	}
	s.MaxDrawdown, s.MaxDrawdownPct = MaxDrawdown(marks)

	rets := Returns(marks)
	s.Sharpe = Sharpe(rets, in.PeriodsPerYear)
	s.Sortino = Sortino(rets, in.PeriodsPerYear)
	return s
}

// ProfitFactor is gross wins over gross losses (both positive). It is
// undefined, and reported as 0, until there is a loss.
func ProfitFactor(grossWin, grossLoss float64) float64 {
	if grossLoss <= 0 {
		return 0
	}
	return grossWin / grossLoss
}

// MaxDrawdown returns the largest peak-to-trough fall of series, in
// currency and as a percent of the peak.
func MaxDrawdown(series []float64) (abs, pct float64) {
	if len(series) == 0 {
		return 0, 0
	}
	peak := series[0]
	for _, v := range series {
		if v > peak {
			peak = v
		}
		dd := peak - v
		if dd > abs {
			abs = dd
		}
		if peak > 0 && dd/peak*100 > pct {
			pct = dd / peak * 100
		}
	}
	return abs, pct
}

// Returns are simple period returns of series. Points following a
// non-positive value are skipped.
func Returns(series []float64) []float64 {
	if len(series) < 2 {
		return nil
	}
	out := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		if series[i-1] <= 0 {
			continue
		}
		out = append(out, series[i]/series[i-1]-1)
	}
	return out
}

// Sharpe is mean/stddev of returns (zero risk-free rate), scaled by
// sqrt(periodsPerYear) when that is positive. Fewer than two returns or a
// flat series give 0.
func Sharpe(returns []float64, periodsPerYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, sd := meanStd(returns)
	if sd == 0 {
		return 0
	}
	return mean / sd * annualize(periodsPerYear)
}

// Sortino is Sharpe with only downside deviation in the denominator.
func Sortino(returns []float64, periodsPerYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, _ := meanStd(returns)
	var sq float64
	for _, r := range returns {
		if r < 0 {
			sq += r * r
		}
	}
	dd := math.Sqrt(sq / float64(len(returns)))
	if dd == 0 {
		return 0
	}
	return mean / dd * annualize(periodsPerYear)
}

// meanStd uses the sample standard deviation.
func meanStd(xs []float64) (mean, sd float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(sq / float64(len(xs)-1))
}

func annualize(periodsPerYear float64) float64 {
	if periodsPerYear <= 0 {
		return 1
	}
	return math.Sqrt(periodsPerYear)
}
