package strategies

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/regimetrader/indicators"
	"github.com/rustyeddy/regimetrader/market"
	"github.com/rustyeddy/regimetrader/regime"
	"github.com/rustyeddy/regimetrader/sim"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func bar(i int, px, volume float64) market.Bar {
	return market.Bar{
		Symbol:    "BTCUSD",
		Timeframe: market.H1,
		OpenTime:  t0.Add(time.Duration(i) * time.Hour),
		Open:      px,
		High:      px + 1,
		Low:       px - 1,
		Close:     px,
		Volume:    volume,
	}
}

func input(b market.Bar, vals map[string]float64, st regime.State, pos *sim.Position) Input {
	return Input{Bar: b, Snapshot: indicators.NewSnapshot(b.OpenTime, vals), Regime: st, Position: pos}
}

var (
	bull     = regime.State{Kind: regime.Bullish, Strength: 0.8, Ready: true}
	bear     = regime.State{Kind: regime.Bearish, Strength: 0.6, Ready: true}
	sideways = regime.State{Kind: regime.Sideways, Strength: 1, Ready: true}
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	names := Names()
	for _, n := range []string{"noop", "external", "ema_cross", "ema_bb_turtle", "rsi_reversion"} {
		assert.Contains(t, names, n)
	}

	s, err := New("EMA-BB-Turtle", nil)
	require.NoError(t, err)
	assert.Equal(t, "ema_bb_turtle", s.Name())

	_, err = New("nope", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy")

	_, err = New("ema_cross", Params{"fast": "ema", "slow": "ema"})
	require.Error(t, err)

	_, err = New("rsi_reversion", Params{"oversold": "x"})
	require.Error(t, err)
}

func TestParams(t *testing.T) {
	t.Parallel()

	p := Params{"a": 2, "b": "1.5", "c": true, "d": "yes?", "e": []int{1}}

	f, err := p.Float("a", 0)
	require.NoError(t, err)
	assert.Equal(t, 2.0, f)

	f, err = p.Float("b", 0)
	require.NoError(t, err)
	assert.Equal(t, 1.5, f)

	f, err = p.Float("missing", 7)
	require.NoError(t, err)
	assert.Equal(t, 7.0, f)

	_, err = p.Float("e", 0)
	assert.Error(t, err)

	b, err := p.Bool("c", false)
	require.NoError(t, err)
	assert.True(t, b)

	_, err = p.Bool("d", false)
	assert.Error(t, err)

	_, err = p.String("a", "")
	assert.Error(t, err)
}

func TestNoop(t *testing.T) {
	t.Parallel()

	sig := Noop{}.Decide(input(bar(0, 100, 1), nil, bull, nil))
	assert.Equal(t, sim.Hold, sig.Intent)
	assert.Equal(t, t0, sig.BarTime)
}

func TestExternal(t *testing.T) {
	t.Parallel()

	long := &sim.Position{Direction: sim.Long, Quantity: 1, EntryPrice: 100}

	tests := []struct {
		name   string
		action string
		pos    *sim.Position
		want   sim.Intent
	}{
		{"no action", "", nil, sim.Hold},
		{"garbage", "moon", nil, sim.Hold},
		{"buy flat", "buy", nil, sim.EnterLong},
		{"sell flat", "sell", nil, sim.EnterShort},
		{"sell while long closes", "sell", long, sim.ExitLong},
		{"explicit close", "close_long", long, sim.ExitLong},
		{"buy while long passes through", "buy", long, sim.EnterLong},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := bar(0, 100, 1)
			b.Action = tt.action
			sig := External{}.Decide(input(b, nil, bull, tt.pos))
			assert.Equal(t, tt.want, sig.Intent)
		})
	}
}

func TestScripted(t *testing.T) {
	t.Parallel()

	s := &Scripted{
		Script: map[time.Time]sim.Intent{t0.Add(time.Hour): sim.EnterLong},
		Stops:  map[time.Time]float64{t0.Add(time.Hour): 90},
	}
	assert.Equal(t, sim.Hold, s.Decide(input(bar(0, 100, 1), nil, bull, nil)).Intent)

	sig := s.Decide(input(bar(1, 100, 1), nil, bull, nil))
	assert.Equal(t, sim.EnterLong, sig.Intent)
	assert.Equal(t, 90.0, sig.Stop)
}

func TestEMACross(t *testing.T) {
	t.Parallel()

	s, err := NewEMACross(EMACrossConfigDefaults())
	require.NoError(t, err)

	vals := func(fast, slow float64) map[string]float64 {
		return map[string]float64{"ema_fast": fast, "ema_slow": slow, "atr": 2}
	}

	// warmup
	assert.Equal(t, "warmup", s.Decide(input(bar(0, 100, 1), map[string]float64{"ema_fast": 1}, bull, nil)).Reason)

	assert.Equal(t, sim.Hold, s.Decide(input(bar(1, 100, 1), vals(99, 100), bull, nil)).Intent)

	sig := s.Decide(input(bar(2, 100, 1), vals(101, 100), bull, nil))
	require.Equal(t, sim.EnterLong, sig.Intent)
	assert.Equal(t, 96.0, sig.Stop)

	pos := &sim.Position{Direction: sim.Long, Quantity: 1, EntryPrice: 100}
	assert.Equal(t, sim.Hold, s.Decide(input(bar(3, 100, 1), vals(102, 100), bull, pos)).Intent)
	assert.Equal(t, sim.ExitLong, s.Decide(input(bar(4, 100, 1), vals(99, 100), bull, pos)).Intent)
}

func TestEMACross_RegimeFilter(t *testing.T) {
	t.Parallel()

	s, err := NewEMACross(EMACrossConfigDefaults())
	require.NoError(t, err)

	v := func(f float64) map[string]float64 { return map[string]float64{"ema_fast": f, "ema_slow": 100, "atr": 1} }

	s.Decide(input(bar(0, 100, 1), v(99), bear, nil))
	assert.Equal(t, sim.Hold, s.Decide(input(bar(1, 100, 1), v(101), bear, nil)).Intent, "bull cross in bear regime")
	assert.Equal(t, sim.EnterShort, s.Decide(input(bar(2, 100, 1), v(99), bear, nil)).Intent)
}

func TestEMABBTurtle(t *testing.T) {
	t.Parallel()

	vals := map[string]float64{"bb.lower": 95, "bb.upper": 105, "atr": 2, "vol_ma": 10}

	tests := []struct {
		name   string
		prev   float64
		close  float64
		volume float64
		st     regime.State
		want   sim.Intent
	}{
		{"bullish pullback", 96, 95, 10, bull, sim.EnterLong},
		{"bullish but already below", 94, 94, 10, bull, sim.Hold},
		{"bullish volume too thin", 96, 95, 2, bull, sim.Hold},
		{"bullish volume spike", 96, 95, 40, bull, sim.Hold},
		{"bearish rally", 104, 105, 10, bear, sim.EnterShort},
		{"sideways ignored", 96, 95, 10, sideways, sim.Hold},
		{"regime not ready", 96, 95, 10, regime.State{Kind: regime.Bullish}, sim.Hold},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, err := NewEMABBTurtle(EMABBTurtleConfigDefaults())
			require.NoError(t, err)

			s.Decide(input(bar(0, tt.prev, 10), vals, tt.st, nil))
			sig := s.Decide(input(bar(1, tt.close, tt.volume), vals, tt.st, nil))
			assert.Equal(t, tt.want, sig.Intent)
			if tt.want.IsEntry() {
				assert.InDelta(t, tt.close-tt.want.Direction().Sign()*4, sig.Stop, 1e-9)
				assert.Zero(t, sig.Target)
			}
		})
	}
}

func TestEMABBTurtle_Exits(t *testing.T) {
	t.Parallel()

	cfg := EMABBTurtleConfigDefaults()
	cfg.MaxBars = 5
	s, err := NewEMABBTurtle(cfg)
	require.NoError(t, err)

	vals := map[string]float64{"bb.lower": 95, "bb.upper": 105, "atr": 2, "vol_ma": 10}
	pos := &sim.Position{Direction: sim.Long, Quantity: 1, EntryPrice: 100, Regime: regime.Bullish.String()}

	in := input(bar(1, 100, 10), vals, bull, pos)
	in.BarsInTrade = 2
	assert.Equal(t, sim.Hold, s.Decide(in).Intent)

	in = input(bar(2, 100, 10), vals, sideways, pos)
	sig := s.Decide(in)
	assert.Equal(t, sim.ExitLong, sig.Intent)
	assert.Equal(t, "regime_exit", sig.Reason)

	in = input(bar(3, 100, 10), vals, bull, pos)
	in.BarsInTrade = 5
	sig = s.Decide(in)
	assert.Equal(t, sim.ExitLong, sig.Intent)
	assert.Equal(t, "time_exit", sig.Reason)
}

func TestEMABBTurtle_AdjustStop(t *testing.T) {
	t.Parallel()

	s, err := NewEMABBTurtle(EMABBTurtleConfigDefaults())
	require.NoError(t, err)

	vals := map[string]float64{"atr": 2}
	long := &sim.Position{Direction: sim.Long, EntryPrice: 100, Stop: 96}
	short := &sim.Position{Direction: sim.Short, EntryPrice: 100, Stop: 104}

	_, ok := s.AdjustStop(input(bar(1, 99, 1), vals, bull, long))
	assert.False(t, ok, "no trail until price moves in favour")

	stop, ok := s.AdjustStop(input(bar(1, 103, 1), vals, bull, long))
	require.True(t, ok)
	assert.Equal(t, 99.0, stop)

	stop, ok = s.AdjustStop(input(bar(1, 97, 1), vals, bear, short))
	require.True(t, ok)
	assert.Equal(t, 101.0, stop)

	_, ok = s.AdjustStop(input(bar(1, 97, 1), vals, bear, nil))
	assert.False(t, ok)
}

func TestNewEMABBTurtle_Invalid(t *testing.T) {
	t.Parallel()

	cfg := EMABBTurtleConfigDefaults()
	cfg.TrailOn = "sometimes"
	_, err := NewEMABBTurtle(cfg)
	assert.Error(t, err)

	cfg = EMABBTurtleConfigDefaults()
	cfg.VolumeMin, cfg.VolumeMax = 2, 1
	_, err = NewEMABBTurtle(cfg)
	assert.Error(t, err)

	cfg = EMABBTurtleConfigDefaults()
	cfg.StopATR = 0
	_, err = NewEMABBTurtle(cfg)
	assert.Error(t, err)
}

func TestRSIReversion(t *testing.T) {
	t.Parallel()

	s, err := NewRSIReversion(RSIReversionConfigDefaults())
	require.NoError(t, err)

	v := func(rsi float64) map[string]float64 { return map[string]float64{"rsi": rsi, "atr": 1} }

	sig := s.Decide(input(bar(0, 100, 1), v(20), sideways, nil))
	assert.Equal(t, sim.EnterLong, sig.Intent)
	assert.Equal(t, 98.0, sig.Stop)

	assert.Equal(t, sim.EnterShort, s.Decide(input(bar(0, 100, 1), v(80), sideways, nil)).Intent)
	assert.Equal(t, sim.Hold, s.Decide(input(bar(0, 100, 1), v(20), bull, nil)).Intent)
	assert.Equal(t, sim.Hold, s.Decide(input(bar(0, 100, 1), v(50), sideways, nil)).Intent)

	long := &sim.Position{Direction: sim.Long, EntryPrice: 100}
	assert.Equal(t, sim.Hold, s.Decide(input(bar(0, 100, 1), v(40), bull, long)).Intent)
	assert.Equal(t, sim.ExitLong, s.Decide(input(bar(0, 100, 1), v(55), bull, long)).Intent)
}
