package risk

import "math"

// PlannedRisk is the account-currency loss if the stop is hit.
func PlannedRisk(qty, entry, stop float64) float64 {
	return qty * math.Abs(entry-stop)
}

// RR is reward over risk for an entry with stop and target.
func RR(entry, stop, target float64) float64 {
	risk := math.Abs(entry - stop)
	if risk == 0 || target == 0 {
		return 0
	}
	return math.Abs(target-entry) / risk
}

// RiskPct expresses a planned risk as a fraction of equity.
func RiskPct(plannedRisk, equity float64) float64 {
	if equity <= 0 {
		return math.Inf(1)
	}
	return plannedRisk / equity
}
