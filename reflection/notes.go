package reflection

import (
	"fmt"

	"github.com/rustyeddy/regimetrader/analytics"
)

// rating scores a session from 1 to 10 starting at 5.
func rating(s analytics.Summary) int {
	score := 5.0

	switch {
	case s.ReturnPct > 20:
		score += 2
	case s.ReturnPct > 10:
		score++
	case s.ReturnPct < -10:
		score -= 2
	case s.ReturnPct < 0:
		score--
	}

	switch {
	case s.Sharpe > 2:
		score++
	case s.Sharpe > 1:
		score += 0.5
	case s.Sharpe < 0:
		score--
	}

	switch {
	case s.Trades == 0:
	case s.WinRate > 60:
		score += 0.5
	case s.WinRate < 40:
		score -= 0.5
	}

	switch {
	case s.ProfitFactor > 2:
		score += 0.5
	case s.Losses > 0 && s.ProfitFactor < 1:
		score--
	}

	switch {
	case s.MaxDrawdownPct > 20:
		score -= 2
	case s.MaxDrawdownPct > 10:
		score--
	}

	if s.Trades < 10 {
		score--
	}

	n := int(score)
	if n < 1 {
		n = 1
	}
	if n > 10 {
		n = 10
	}
	return n
}

func strengths(s analytics.Summary) []string {
	var out []string
	if s.ReturnPct > 0 {
		out = append(out, fmt.Sprintf("positive return (%.2f%%)", s.ReturnPct))
	}
	if s.Sharpe > 1 {
		out = append(out, fmt.Sprintf("good risk-adjusted return (sharpe %.2f)", s.Sharpe))
	}
	if s.Trades > 0 && s.WinRate > 50 {
		out = append(out, fmt.Sprintf("win rate %.1f%%", s.WinRate))
	}
	if s.ProfitFactor > 1.5 {
		out = append(out, fmt.Sprintf("profit factor %.2f", s.ProfitFactor))
	}
	if s.Trades > 0 && s.MaxDrawdownPct < 15 {
		out = append(out, fmt.Sprintf("drawdown contained (max %.2f%%)", s.MaxDrawdownPct))
	}
	if s.Trades > 50 {
		out = append(out, fmt.Sprintf("large sample (%d trades)", s.Trades))
	}
	if s.Expectancy > 0 {
		out = append(out, fmt.Sprintf("positive expectancy (%.2f per trade)", s.Expectancy))
	}
	return out
}

func weaknesses(s analytics.Summary) []string {
	var out []string
	if s.ReturnPct < 0 {
		out = append(out, fmt.Sprintf("negative return (%.2f%%)", s.ReturnPct))
	}
	if s.Trades > 0 && s.Sharpe < 0.5 {
		out = append(out, fmt.Sprintf("weak risk-adjusted return (sharpe %.2f)", s.Sharpe))
	}
	if s.Trades > 0 && s.WinRate < 40 {
		out = append(out, fmt.Sprintf("low win rate (%.1f%%)", s.WinRate))
	}
	if s.Losses > 0 && s.ProfitFactor < 1 {
		out = append(out, fmt.Sprintf("profit factor below 1 (%.2f)", s.ProfitFactor))
	}
	if s.MaxDrawdownPct > 20 {
		out = append(out, fmt.Sprintf("deep drawdown (max %.2f%%)", s.MaxDrawdownPct))
	}
	if s.Trades < 20 {
		out = append(out, fmt.Sprintf("small sample (%d trades)", s.Trades))
	}
	if s.Expectancy < 0 {
		out = append(out, fmt.Sprintf("negative expectancy (%.2f per trade)", s.Expectancy))
	}
	if s.AvgWin > 0 && s.AvgLoss > 1.5*s.AvgWin {
		out = append(out, "average loss is well above average win")
	}
	return out
}

func nextActions(r Report) []string {
	s := r.Summary
	var out []string
	if s.Trades == 0 {
		return []string{"no trades: check warm-up length and entry filters"}
	}
	if s.WinRate < 40 {
		out = append(out, "tighten entry conditions")
	}
	if s.AvgWin > 0 && s.AvgLoss > 1.5*s.AvgWin {
		out = append(out, "reduce stop distance or add a profit target")
	}
	if s.MaxDrawdownPct > 15 {
		out = append(out, "lower risk per trade or enable the drawdown guard")
	}
	if s.Trades < 20 {
		out = append(out, "run over a longer history")
	}
	for _, b := range r.ByRegime {
		if b.Trades >= 3 && b.NetPnL < 0 {
			out = append(out, fmt.Sprintf("review entries in %s regime (net %.2f over %d trades)", b.Key, b.NetPnL, b.Trades))
		}
	}
	for _, b := range r.ByDirection {
		if b.Trades >= 3 && b.NetPnL < 0 {
			out = append(out, fmt.Sprintf("review %s entries (net %.2f over %d trades)", b.Key, b.NetPnL, b.Trades))
		}
	}
	if r.Rating >= 8 {
		out = append(out, "paper trade the same configuration live")
	}
	return out
}
