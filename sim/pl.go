package sim

func grossPnL(d Direction, entry, exit, qty float64) float64 {
	return (exit - entry) * qty * d.Sign()
}

// ReturnPct is pnl as a percentage of the capital committed at entry.
func ReturnPct(pnl, entry, qty float64) float64 {
	notional := entry * qty
	if notional == 0 {
		return 0
	}
	return pnl / notional * 100
}
