package sim

import "github.com/rustyeddy/regimetrader/market"

const (
	ReasonStopLoss   = "stop_loss"
	ReasonTakeProfit = "take_profit"
)

// CheckExit models stop/target hits within a bar. If both are touched in
// the same bar the stop wins, the worst case for the trader. A bar that
// opens beyond the stop fills at the open.
func CheckExit(p Position, b market.Bar) (exitPx float64, reason string, hit bool) {
	hasStop := p.Stop > 0
	hasTarget := p.Target > 0

	switch p.Direction {
	case Long:
		if hasStop && b.Low <= p.Stop {
			if b.Open < p.Stop {
				return b.Open, ReasonStopLoss, true
			}
			return p.Stop, ReasonStopLoss, true
		}
		if hasTarget && b.High >= p.Target {
			if b.Open > p.Target {
				return b.Open, ReasonTakeProfit, true
			}
			return p.Target, ReasonTakeProfit, true
		}
	case Short:
		if hasStop && b.High >= p.Stop {
			if b.Open > p.Stop {
				return b.Open, ReasonStopLoss, true
			}
			return p.Stop, ReasonStopLoss, true
		}
		if hasTarget && b.Low <= p.Target {
			if b.Open < p.Target {
				return b.Open, ReasonTakeProfit, true
			}
			return p.Target, ReasonTakeProfit, true
		}
	}
	return 0, "", false
}
