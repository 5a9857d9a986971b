// Package journal persists closed trades, equity samples and session
// summaries. Sinks sit outside the decision path: drivers hand records to
// a Journal after ProcessBar returns.
package journal

import (
	"time"

	"github.com/rustyeddy/regimetrader/analytics"
	"github.com/rustyeddy/regimetrader/internal/id"
	"github.com/rustyeddy/regimetrader/sim"
)

// TradeRecord is one closed trade as stored.
type TradeRecord struct {
	TradeID      string    `json:"trade_id"`
	SessionID    string    `json:"session_id"`
	Seq          int       `json:"seq"`
	Symbol       string    `json:"symbol"`
	Timeframe    string    `json:"timeframe"`
	Direction    string    `json:"direction"`
	Quantity     float64   `json:"quantity"`
	EntryPrice   float64   `json:"entry_price"`
	ExitPrice    float64   `json:"exit_price"`
	OpenTime     time.Time `json:"open_time"`
	CloseTime    time.Time `json:"close_time"`
	RealizedPL   float64   `json:"realized_pl"`
	Fees         float64   `json:"fees"`
	ReturnPct    float64   `json:"return_pct"`
	DurationBars int       `json:"duration_bars"`
	EntryReason  string    `json:"entry_reason"`
	Reason       string    `json:"reason"`
	Regime       string    `json:"regime"`
}

// NewTradeRecord converts a ledger entry.
func NewTradeRecord(sessionID, timeframe string, t sim.Trade) TradeRecord {
	return TradeRecord{
		TradeID:      id.Trade(sessionID, t.Seq),
		SessionID:    sessionID,
		Seq:          t.Seq,
		Symbol:       t.Symbol,
		Timeframe:    timeframe,
		Direction:    t.Direction.String(),
		Quantity:     t.Quantity,
		EntryPrice:   t.EntryPrice,
		ExitPrice:    t.ExitPrice,
		OpenTime:     t.EntryTime,
		CloseTime:    t.ExitTime,
		RealizedPL:   t.PnL,
		Fees:         t.Fees,
		ReturnPct:    t.ReturnPct,
		DurationBars: t.DurationBars,
		EntryReason:  t.EntryReason,
		Reason:       t.ExitReason,
		Regime:       t.Regime,
	}
}

// EquitySnapshot is one point of a session's equity curve. Balance is
// realized; Equity includes the open position.
type EquitySnapshot struct {
	SessionID string    `json:"session_id"`
	Time      time.Time `json:"time"`
	Balance   float64   `json:"balance"`
	Equity    float64   `json:"equity"`
}

func NewEquitySnapshot(sessionID string, p analytics.EquityPoint) EquitySnapshot {
	return EquitySnapshot{SessionID: sessionID, Time: p.Time, Balance: p.Equity, Equity: p.Mark}
}

// SessionRecord is the summary of one backtest or live session.
type SessionRecord struct {
	SessionID string    `json:"session_id"`
	Created   time.Time `json:"created"`
	Mode      string    `json:"mode"` // backtest or live
	Dataset   string    `json:"dataset,omitempty"`
	Config    []byte    `json:"config,omitempty"`

	analytics.Summary

	Notes       []string `json:"notes,omitempty"`
	NextActions []string `json:"next_actions,omitempty"`
}

// Journal is a persistence sink.
type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	RecordSession(SessionRecord) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordTrade(TradeRecord) error     { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) RecordSession(SessionRecord) error { return nil }
func (Nop) Close() error                      { return nil }
