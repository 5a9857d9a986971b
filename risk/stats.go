package risk

// TradeStats summarises trailing trade results for Kelly sizing.
type TradeStats struct {
	Trades  int
	Wins    int
	Losses  int
	AvgWin  float64
	AvgLoss float64 // positive magnitude
}

// WinRate is Wins / Trades.
func (s TradeStats) WinRate() float64 {
	if s.Trades == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Trades)
}

// Payoff is the average win over the average loss.
func (s TradeStats) Payoff() float64 {
	if s.AvgLoss == 0 {
		return 0
	}
	return s.AvgWin / s.AvgLoss
}

// Kelly is the full Kelly fraction W - (1-W)/R, 0 when undefined.
func (s TradeStats) Kelly() float64 {
	r := s.Payoff()
	if r == 0 {
		return 0
	}
	w := s.WinRate()
	return w - (1-w)/r
}

// StatsFromPnL builds stats from the last lookback pnls (all of them when
// lookback <= 0). Break-even trades count as losses.
func StatsFromPnL(pnls []float64, lookback int) TradeStats {
	if lookback > 0 && len(pnls) > lookback {
		pnls = pnls[len(pnls)-lookback:]
	}

	var s TradeStats
	var sumWin, sumLoss float64
	for _, p := range pnls {
		s.Trades++
		if p > 0 {
			s.Wins++
			sumWin += p
		} else {
			s.Losses++
			sumLoss += -p
		}
	}
	if s.Wins > 0 {
		s.AvgWin = sumWin / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = sumLoss / float64(s.Losses)
	}
	return s
}
