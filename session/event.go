package session

import (
	"time"
)

// EventKind classifies a rejected or degraded bar cycle.
type EventKind string

const (
	EventDataQuality         EventKind = "data_quality"
	EventInsufficientHistory EventKind = "insufficient_history"
	EventSizingDegenerate    EventKind = "sizing_degenerate"
	EventConflictingSignal   EventKind = "conflicting_signal"
	EventRiskLimit           EventKind = "risk_limit"
	EventQueueOverflow       EventKind = "queue_overflow"
)

// EventKinds lists every kind in a stable order.
func EventKinds() []EventKind {
	return []EventKind{
		EventDataQuality,
		EventInsufficientHistory,
		EventSizingDegenerate,
		EventConflictingSignal,
		EventRiskLimit,
		EventQueueOverflow,
	}
}

// Event is one entry of a session's event log.
type Event struct {
	Kind    EventKind `json:"kind"`
	Time    time.Time `json:"time"`
	BarTime time.Time `json:"bar_time"`
	Detail  string    `json:"detail,omitempty"`
}

// Observer is notified after each bar, outside the session lock. A nil
// Observer is allowed.
type Observer interface {
	ObserveBar(symbol, timeframe string, accepted bool, d time.Duration)
	ObserveEvent(symbol, timeframe, kind string)
	ObserveTrade(symbol, timeframe string, pnl float64)
	ObserveEquity(symbol, timeframe string, equity float64)
}

// DefaultEventLimit bounds the retained event log. Counts are kept for
// every event regardless.
const DefaultEventLimit = 10000
