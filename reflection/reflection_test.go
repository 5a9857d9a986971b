package reflection

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/regimetrader/analytics"
	"github.com/rustyeddy/regimetrader/journal"
	"github.com/rustyeddy/regimetrader/regime"
	"github.com/rustyeddy/regimetrader/sim"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func hour(i int) time.Time { return t0.Add(time.Duration(i) * time.Hour) }

func trade(seq, entry int, dir sim.Direction, reg string, pnl, ret float64) sim.Trade {
	return sim.Trade{
		Seq:       seq,
		Symbol:    "BTCUSD",
		Direction: dir,
		EntryTime: hour(entry),
		ExitTime:  hour(entry + 1),
		PnL:       pnl,
		ReturnPct: ret,
		Regime:    reg,
	}
}

func point(i int, k regime.Kind, ready bool) regime.Point {
	return regime.Point{Time: hour(i), State: regime.State{Kind: k, Ready: ready}}
}

func TestAnalyzeBuckets(t *testing.T) {
	t.Parallel()

	trades := []sim.Trade{
		trade(1, 1, sim.Long, "bullish", 100, 2),
		trade(2, 3, sim.Long, "bullish", -50, -1),
		trade(3, 5, sim.Short, "bearish", 30, 1),
		trade(4, 7, sim.Short, "", -10, -0.5),
	}

	r := Analyze("S1", analytics.Summary{Trades: 4}, trades, nil)
	assert.Equal(t, "S1", r.SessionID)

	require.Len(t, r.ByRegime, 3)
	assert.Equal(t, "bearish", r.ByRegime[0].Key)
	bull := r.ByRegime[1]
	assert.Equal(t, "bullish", bull.Key)
	assert.Equal(t, 2, bull.Trades)
	assert.Equal(t, 1, bull.Wins)
	assert.Equal(t, 1, bull.Losses)
	assert.InDelta(t, 50.0, bull.WinRate, 1e-9)
	assert.InDelta(t, 50.0, bull.NetPnL, 1e-9)
	assert.InDelta(t, 0.5, bull.AvgReturnPct, 1e-9)
	assert.InDelta(t, 2.0, bull.ProfitFactor, 1e-9)
	assert.InDelta(t, 25.0, bull.Expectancy, 1e-9)
	assert.Equal(t, "unknown", r.ByRegime[2].Key)

	require.Len(t, r.ByDirection, 2)
	assert.Equal(t, "long", r.ByDirection[0].Key)
	assert.Equal(t, "short", r.ByDirection[1].Key)
	assert.InDelta(t, 20.0, r.ByDirection[1].NetPnL, 1e-9)
	assert.InDelta(t, 2.0, r.ByDirection[0].ProfitFactor, 1e-9)
}

func TestAnalyzeTransitions(t *testing.T) {
	t.Parallel()

	history := []regime.Point{
		point(0, regime.Sideways, false),
		point(1, regime.Bullish, false),
		point(2, regime.Sideways, true),
		point(3, regime.Bullish, true),
		point(4, regime.Bullish, true),
		point(6, regime.Bearish, true),
	}
	trades := []sim.Trade{
		trade(1, 2, sim.Long, "sideways", 1, 1),
		trade(2, 3, sim.Long, "bullish", 1, 2),
		trade(3, 5, sim.Long, "bullish", 1, 4),
		trade(4, 6, sim.Short, "bearish", 1, -1),
	}

	r := Analyze("S1", analytics.Summary{}, trades, history)
	require.Len(t, r.Transitions, 2)

	first := r.Transitions[0]
	assert.Equal(t, hour(3), first.Time)
	assert.Equal(t, "sideways", first.From)
	assert.Equal(t, "bullish", first.To)
	assert.Equal(t, 2, first.Trades)
	assert.InDelta(t, 3.0, first.AvgReturnPct, 1e-9)

	second := r.Transitions[1]
	assert.Equal(t, "bullish", second.From)
	assert.Equal(t, "bearish", second.To)
	assert.Equal(t, 1, second.Trades)
	assert.InDelta(t, -1.0, second.AvgReturnPct, 1e-9)
}

func TestRating(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		s    analytics.Summary
		want int
	}{
		{"neutral", analytics.Summary{Trades: 20, WinRate: 50, Losses: 10, ProfitFactor: 1.2}, 5},
		{"strong", analytics.Summary{Trades: 60, ReturnPct: 25, Sharpe: 2.5, WinRate: 65, Losses: 20, ProfitFactor: 2.5, MaxDrawdownPct: 5}, 9},
		{"weak", analytics.Summary{Trades: 3, ReturnPct: -15, Sharpe: -1, WinRate: 20, Losses: 2, ProfitFactor: 0.5, MaxDrawdownPct: 30}, 1},
		{"no trades", analytics.Summary{}, 4},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, rating(tt.s))
		})
	}
}

func TestNotesAndActions(t *testing.T) {
	t.Parallel()

	losing := []sim.Trade{
		trade(1, 1, sim.Short, "bearish", -10, -1),
		trade(2, 3, sim.Short, "bearish", -10, -1),
		trade(3, 5, sim.Short, "bearish", -10, -1),
	}
	s := analytics.Summary{Trades: 3, Losses: 3, ReturnPct: -0.03, Expectancy: -10, AvgLoss: 10}

	r := Analyze("S1", s, losing, nil)
	assert.Contains(t, r.Weaknesses, "negative return (-0.03%)")
	assert.Contains(t, r.Weaknesses, "small sample (3 trades)")
	assert.Contains(t, r.NextActions, "review entries in bearish regime (net -30.00 over 3 trades)")
	assert.Contains(t, r.NextActions, "review short entries (net -30.00 over 3 trades)")

	notes := r.Notes()
	require.Len(t, notes, len(r.Strengths)+len(r.Weaknesses))
	assert.Contains(t, notes, "- small sample (3 trades)")

	empty := Analyze("S2", analytics.Summary{}, nil, nil)
	assert.Equal(t, []string{"no trades: check warm-up length and entry filters"}, empty.NextActions)
	assert.Empty(t, empty.ByRegime)
	assert.Empty(t, empty.Transitions)
}

type recorder struct {
	journal.Nop
	mu       sync.Mutex
	sessions []journal.SessionRecord
}

func (r *recorder) RecordSession(s journal.SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, s)
	return nil
}

func TestFeed(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	f := NewFeed(rec, 4, zerolog.Nop())

	in := Input{
		Record: journal.SessionRecord{SessionID: "S1", Summary: analytics.Summary{Trades: 1, Wins: 1, ReturnPct: 1}},
		Trades: []sim.Trade{trade(1, 1, sim.Long, "bullish", 100, 1)},
	}
	require.NoError(t, f.Submit(in))
	f.Close()

	r, ok := f.Report("S1")
	require.True(t, ok)
	assert.Len(t, r.ByRegime, 1)

	require.Len(t, rec.sessions, 1)
	got := rec.sessions[0]
	assert.Equal(t, "S1", got.SessionID)
	assert.Equal(t, r.Notes(), got.Notes)
	assert.Equal(t, r.NextActions, got.NextActions)

	assert.ErrorIs(t, f.Submit(in), ErrFeedClosed)
	f.Close()

	_, ok = f.Report("missing")
	assert.False(t, ok)
}
