package backtest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/regimetrader/feed"
	"github.com/rustyeddy/regimetrader/journal"
	"github.com/rustyeddy/regimetrader/market"
	"github.com/rustyeddy/regimetrader/session"
	"github.com/rustyeddy/regimetrader/sim"
	"github.com/rustyeddy/regimetrader/strategies"
)

var t0 = time.Date(2026, 1, 24, 0, 0, 0, 0, time.UTC)

func at(i int) time.Time { return t0.Add(time.Duration(i) * time.Hour) }

func bar(i int, px float64) market.Bar {
	return market.Bar{
		Symbol:    "BTCUSD",
		Timeframe: market.H1,
		OpenTime:  at(i),
		Open:      px,
		High:      px + 5,
		Low:       px - 5,
		Close:     px,
		Volume:    10,
	}
}

// mockFeed is a simple in-memory feed for testing
type mockFeed struct {
	*feed.SliceSource
	closed bool
}

func newMockFeed(bars ...market.Bar) *mockFeed {
	return &mockFeed{SliceSource: feed.NewSliceSource(bars)}
}

func (m *mockFeed) Close() error {
	m.closed = true
	return nil
}

// errorFeed returns an error on Next()
type errorFeed struct{}

func (errorFeed) Next() (market.Bar, bool, error) {
	return market.Bar{}, false, errors.New("mock error")
}

func (errorFeed) Close() error { return nil }

func newSession(t *testing.T, strat strategies.Strategy) *session.Session {
	t.Helper()
	s, err := session.New(session.DefaultConfig("BTCUSD", market.H1), strat, session.WithID("BT1"))
	require.NoError(t, err)
	return s
}

func script(entries map[int]sim.Intent) *strategies.Scripted {
	sc := &strategies.Scripted{Script: map[time.Time]sim.Intent{}}
	for i, in := range entries {
		sc.Script[at(i)] = in
	}
	return sc
}

func TestRunner_Run_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("missing session", func(t *testing.T) {
		t.Parallel()

		r := &Runner{Feed: newMockFeed()}
		_, err := r.Run(ctx)
		require.Error(t, err)
		assert.Equal(t, "backtest: Session is required", err.Error())
	})

	t.Run("missing feed", func(t *testing.T) {
		t.Parallel()

		r := &Runner{Session: newSession(t, strategies.Noop{})}
		_, err := r.Run(ctx)
		require.Error(t, err)
		assert.Equal(t, "backtest: Feed is required", err.Error())
	})
}

func TestRunner_Run_Success(t *testing.T) {
	t.Parallel()

	f := newMockFeed(bar(0, 2450), bar(1, 2500), bar(2, 2550), bar(3, 2540))
	r := &Runner{
		Session: newSession(t, script(map[int]sim.Intent{1: sim.EnterLong, 2: sim.ExitLong})),
		Feed:    f,
		Log:     zerolog.Nop(),
	}

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, f.closed, "expected feed to be closed")
	assert.Equal(t, "BT1", res.SessionID)
	assert.Equal(t, 4, res.Bars)
	assert.Zero(t, res.Rejected)
	assert.True(t, res.Start.Equal(at(0)))
	assert.True(t, res.End.Equal(at(3)))

	assert.Equal(t, 1, res.Summary.Trades)
	assert.InDelta(t, 50.0, res.Summary.NetPnL, 1e-9)
	assert.InDelta(t, 100050.0, res.Summary.FinalEquity, 1e-9)
	assert.True(t, r.Session.Stopped())
}

func TestRunner_Run_EmptyFeed(t *testing.T) {
	t.Parallel()

	r := &Runner{Session: newSession(t, strategies.Noop{}), Feed: newMockFeed()}
	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, res.Bars)
	assert.True(t, res.Start.IsZero())
	assert.True(t, res.End.IsZero())
	assert.Equal(t, 100000.0, res.Summary.FinalEquity)
}

func TestRunner_Run_FeedError(t *testing.T) {
	t.Parallel()

	r := &Runner{Session: newSession(t, strategies.Noop{}), Feed: errorFeed{}}
	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mock error")
}

func TestRunner_Run_RejectedBars(t *testing.T) {
	t.Parallel()

	bad := bar(2, 100)
	bad.High = 50
	bars := []market.Bar{bar(0, 100), bar(1, 101), bar(1, 102), bad, bar(3, 103)}

	r := &Runner{Session: newSession(t, strategies.Noop{}), Feed: newMockFeed(bars...)}
	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Bars)
	assert.Equal(t, 2, res.Rejected)
	assert.Equal(t, 2, res.Events[session.EventDataQuality])

	strict := &Runner{
		Session: newSession(t, strategies.Noop{}),
		Feed:    newMockFeed(bars...),
		Options: RunnerOptions{StrictBars: true},
	}
	res, err = strict.Run(context.Background())
	assert.ErrorIs(t, err, session.ErrDuplicateBar)
	assert.Equal(t, 2, res.Bars)
}

func TestRunner_Run_UnknownAction(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "signals.csv")
	require.NoError(t, os.WriteFile(path, []byte(`time,open,high,low,close,volume,action
2026-01-24T00:00:00Z,100,101,99,100,10,buy
2026-01-24T01:00:00Z,100,106,99,105,10,buyy
2026-01-24T02:00:00Z,105,111,104,110,10,close_long
`), 0o644))
	src, err := feed.NewCSVSource(path, "BTCUSD", market.H1, feed.Window{})
	require.NoError(t, err)

	r := &Runner{Session: newSession(t, strategies.External{}), Feed: src}
	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Bars)
	assert.Equal(t, 1, res.Rejected)
	assert.Equal(t, 1, res.Events[session.EventDataQuality])
	assert.Equal(t, 1, res.Summary.Trades)

	strict := &Runner{
		Session: newSession(t, strategies.External{}),
		Feed:    newMockFeed(bar(0, 100), func() market.Bar { b := bar(1, 101); b.Action = "buyy"; return b }()),
		Options: RunnerOptions{StrictBars: true},
	}
	_, err = strict.Run(context.Background())
	assert.ErrorIs(t, err, session.ErrMalformedBar)
	assert.ErrorIs(t, err, market.ErrInvalidBar)
}

func TestRunner_Run_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &Runner{Session: newSession(t, strategies.Noop{}), Feed: newMockFeed(bar(0, 100))}
	res, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Bars)
}

func TestRunner_Run_CloseEnd(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		reason string
		want   string
	}{
		{"custom reason", "test_end", "test_end"},
		{"default reason", "", "end_of_data"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := &Runner{
				Session: newSession(t, script(map[int]sim.Intent{0: sim.EnterLong})),
				Feed:    newMockFeed(bar(0, 100), bar(1, 110)),
				Options: RunnerOptions{CloseEnd: true, CloseReason: tt.reason},
			}
			res, err := r.Run(context.Background())
			require.NoError(t, err)

			assert.Nil(t, r.Session.Position())
			trades := r.Session.Trades()
			require.Len(t, trades, 1)
			assert.Equal(t, tt.want, trades[0].ExitReason)
			assert.InDelta(t, 10.0, res.Summary.NetPnL, 1e-9)
		})
	}
}

func TestRunner_Run_WithJournal(t *testing.T) {
	t.Parallel()

	j, err := journal.NewSQLite(filepath.Join(t.TempDir(), "journal.sqlite"))
	require.NoError(t, err)
	defer j.Close()

	r := &Runner{
		Session: newSession(t, script(map[int]sim.Intent{1: sim.EnterLong, 2: sim.ExitLong, 3: sim.EnterShort})),
		Feed:    newMockFeed(bar(0, 2450), bar(1, 2500), bar(2, 2550), bar(3, 2540), bar(4, 2530)),
		Journal: j,
		Options: RunnerOptions{CloseEnd: true, Dataset: "mock", Config: []byte("symbol: BTCUSD\n")},
	}
	_, err = r.Run(context.Background())
	require.NoError(t, err)

	trades, err := j.ListTradesBySession("BT1")
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "BT1-0001", trades[0].TradeID)
	assert.Equal(t, "long", trades[0].Direction)
	assert.Equal(t, "BT1-0002", trades[1].TradeID)
	assert.Equal(t, "end_of_data", trades[1].Reason)

	equity, err := j.ListEquityBySession("BT1")
	require.NoError(t, err)
	assert.Len(t, equity, 5)

	rec, err := j.GetSession("BT1")
	require.NoError(t, err)
	assert.Equal(t, "backtest", rec.Mode)
	assert.Equal(t, "mock", rec.Dataset)
	assert.Equal(t, 2, rec.Trades)
	assert.InDelta(t, 60.0, rec.NetPnL, 1e-9)
}
