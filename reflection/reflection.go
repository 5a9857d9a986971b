// Package reflection reviews finished sessions after the fact: it splits
// the ledger by entry regime and by direction, lists regime transitions and
// derives a rating plus plain notes for the journal. Nothing here runs on
// the decision path.
package reflection

import (
	"sort"
	"time"

	"github.com/rustyeddy/regimetrader/analytics"
	"github.com/rustyeddy/regimetrader/regime"
	"github.com/rustyeddy/regimetrader/sim"
)

// Bucket aggregates the trades that share a key.
type Bucket struct {
	Key          string  `json:"key"`
	Trades       int     `json:"trades"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"win_rate"`
	NetPnL       float64 `json:"net_pnl"`
	AvgReturnPct float64 `json:"avg_return_pct"`
	ProfitFactor float64 `json:"profit_factor"`
	Expectancy   float64 `json:"expectancy"`
}

// Transition is a change of confirmed regime.
type Transition struct {
	Time time.Time `json:"time"`
	From string    `json:"from"`
	To   string    `json:"to"`
	// Trades entered at or after Time and before the next transition.
	Trades       int     `json:"trades"`
	AvgReturnPct float64 `json:"avg_return_pct"`
}

// Report is the review of one session.
type Report struct {
	SessionID   string            `json:"session_id"`
	Summary     analytics.Summary `json:"summary"`
	Rating      int               `json:"rating"` // 1..10
	ByRegime    []Bucket          `json:"by_regime"`
	ByDirection []Bucket          `json:"by_direction"`
	Transitions []Transition      `json:"transitions"`
	Strengths   []string          `json:"strengths"`
	Weaknesses  []string          `json:"weaknesses"`
	NextActions []string          `json:"next_actions"`
}

// Notes flattens strengths and weaknesses into journal observations.
func (r Report) Notes() []string {
	out := make([]string, 0, len(r.Strengths)+len(r.Weaknesses))
	for _, s := range r.Strengths {
		out = append(out, "+ "+s)
	}
	for _, w := range r.Weaknesses {
		out = append(out, "- "+w)
	}
	return out
}

// Analyze builds a Report from a session's summary, ledger and regime
// history.
func Analyze(sessionID string, s analytics.Summary, trades []sim.Trade, history []regime.Point) Report {
	r := Report{
		SessionID:   sessionID,
		Summary:     s,
		ByRegime:    group(trades, func(t sim.Trade) string { return orUnknown(t.Regime) }),
		ByDirection: group(trades, func(t sim.Trade) string { return t.Direction.String() }),
		Transitions: transitions(history, trades),
	}
	r.Rating = rating(s)
	r.Strengths = strengths(s)
	r.Weaknesses = weaknesses(s)
	r.NextActions = nextActions(r)
	return r
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func group(trades []sim.Trade, key func(sim.Trade) string) []Bucket {
	type acc struct {
		Bucket
		grossWin, grossLoss, ret float64
	}
	m := map[string]*acc{}
	for _, t := range trades {
		k := key(t)
		a, ok := m[k]
		if !ok {
			a = &acc{Bucket: Bucket{Key: k}}
			m[k] = a
		}
		a.Trades++
		a.NetPnL += t.PnL
		a.ret += t.ReturnPct
		if t.Win() {
			a.Wins++
			a.grossWin += t.PnL
		} else {
			a.Losses++
			a.grossLoss += -t.PnL
		}
	}

	out := make([]Bucket, 0, len(m))
	for _, a := range m {
		b := a.Bucket
		n := float64(b.Trades)
		b.WinRate = float64(b.Wins) / n * 100
		b.AvgReturnPct = a.ret / n
		b.Expectancy = b.NetPnL / n
		b.ProfitFactor = analytics.ProfitFactor(a.grossWin, a.grossLoss)
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// transitions walks the ready points of history and attributes each trade
// to the regime period it was entered in.
func transitions(history []regime.Point, trades []sim.Trade) []Transition {
	var out []Transition
	var prev *regime.Point
	for i := range history {
		p := &history[i]
		if !p.State.Ready {
			continue
		}
		if prev != nil && p.State.Kind != prev.State.Kind {
			out = append(out, Transition{
				Time: p.Time,
				From: prev.State.Kind.String(),
				To:   p.State.Kind.String(),
			})
		}
		prev = p
	}

	for i := range out {
		var end time.Time
		if i+1 < len(out) {
			end = out[i+1].Time
		}
		var sum float64
		for _, t := range trades {
			if t.EntryTime.Before(out[i].Time) {
				continue
			}
			if !end.IsZero() && !t.EntryTime.Before(end) {
				continue
			}
			out[i].Trades++
			sum += t.ReturnPct
		}
		if out[i].Trades > 0 {
			out[i].AvgReturnPct = sum / float64(out[i].Trades)
		}
	}
	return out
}
