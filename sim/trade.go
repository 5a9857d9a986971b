package sim

import "time"

// Trade is the immutable record of a closed position.
type Trade struct {
	Seq          int       `json:"seq"`
	Symbol       string    `json:"symbol"`
	Direction    Direction `json:"direction"`
	EntryTime    time.Time `json:"entry_time"`
	ExitTime     time.Time `json:"exit_time"`
	EntryPrice   float64   `json:"entry_price"`
	ExitPrice    float64   `json:"exit_price"`
	Quantity     float64   `json:"quantity"`
	Fees         float64   `json:"fees"`
	PnL          float64   `json:"pnl"`
	ReturnPct    float64   `json:"return_pct"`
	DurationBars int       `json:"duration_bars"`
	EntryReason  string    `json:"entry_reason,omitempty"`
	ExitReason   string    `json:"exit_reason,omitempty"`
	Regime       string    `json:"regime,omitempty"`
}

// Win reports whether the trade made money after fees.
func (t Trade) Win() bool {
	return t.PnL > 0
}

// Duration is the wall-clock holding time.
func (t Trade) Duration() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}
