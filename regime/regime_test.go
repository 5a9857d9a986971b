package regime

import (
	"testing"
	"time"

	"github.com/rustyeddy/regimetrader/indicators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// emas builds a snapshot whose fast/mid separation and mid/slow separation
// are both sepPct percent.
func emas(sepPct float64) indicators.Snapshot {
	slow := 100.0
	mid := slow * (1 + sepPct/100)
	fast := mid * (1 + sepPct/100)
	return indicators.NewSnapshot(t0, map[string]float64{
		"ema_fast": fast,
		"ema_mid":  mid,
		"ema_slow": slow,
	})
}

func ready(k Kind) State {
	return State{Kind: k, Ready: true, Candidate: k}
}

func TestClassifyAlignment(t *testing.T) {
	t.Parallel()

	th := DefaultThresholds()

	tests := []struct {
		name string
		sep  float64
		prev State
		want Kind
	}{
		{name: "strong bull from sideways", sep: 0.2, prev: ready(Sideways), want: Bullish},
		{name: "strong bear from sideways", sep: -0.2, prev: ready(Sideways), want: Bearish},
		{name: "weak bull stays sideways", sep: 0.07, prev: ready(Sideways), want: Sideways},
		{name: "weak bull sustains bull", sep: 0.07, prev: ready(Bullish), want: Bullish},
		{name: "weak bear sustains bear", sep: -0.07, prev: ready(Bearish), want: Bearish},
		{name: "fading bull drops to sideways", sep: 0.02, prev: ready(Bullish), want: Sideways},
		{name: "bull flips to strong bear", sep: -0.3, prev: ready(Bullish), want: Bearish},
		{name: "first classification adopts raw", sep: 0.2, prev: State{}, want: Bullish},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Classify(emas(tt.sep), tt.prev, th)
			assert.True(t, got.Ready)
			assert.Equal(t, tt.want, got.Kind)
			assert.GreaterOrEqual(t, got.Strength, 0.0)
			assert.LessOrEqual(t, got.Strength, 1.0)
		})
	}
}

func TestClassifyMisalignedIsSideways(t *testing.T) {
	t.Parallel()

	snap := indicators.NewSnapshot(t0, map[string]float64{
		"ema_fast": 101, "ema_mid": 100, "ema_slow": 102,
	})
	got := Classify(snap, ready(Bullish), DefaultThresholds())
	assert.Equal(t, Sideways, got.Kind)
}

func TestClassifyHysteresisPreventsFlapping(t *testing.T) {
	t.Parallel()

	th := DefaultThresholds()
	// separations oscillate between the sustain and enter thresholds
	seps := []float64{0.15, 0.06, 0.09, 0.06, 0.08, 0.06}

	s := State{}
	for _, sep := range seps {
		s = Classify(emas(sep), s, th)
		assert.Equal(t, Bullish, s.Kind)
	}
}

func TestClassifyNotReady(t *testing.T) {
	t.Parallel()

	prev := ready(Bearish)
	snap := indicators.NewSnapshot(t0, map[string]float64{"ema_fast": 1})
	got := Classify(snap, prev, DefaultThresholds())
	assert.False(t, got.Ready)
	assert.Equal(t, Bearish, got.Kind)

	th := DefaultThresholds()
	th.ADX, th.MinADX = "adx", 20
	got = Classify(emas(0.2), ready(Sideways), th)
	assert.False(t, got.Ready)
}

func TestClassifyADXGate(t *testing.T) {
	t.Parallel()

	th := DefaultThresholds()
	th.ADX, th.MinADX, th.ADXBand = "adx", 25, 5

	with := func(sep, adx float64) indicators.Snapshot {
		m := emas(sep).Map()
		m["adx"] = adx
		return indicators.NewSnapshot(t0, m)
	}

	assert.Equal(t, Sideways, Classify(with(0.2, 18), ready(Sideways), th).Kind)
	assert.Equal(t, Bullish, Classify(with(0.2, 26), ready(Sideways), th).Kind)
	assert.Equal(t, Bullish, Classify(with(0.2, 21), ready(Bullish), th).Kind)
	assert.Equal(t, Sideways, Classify(with(0.2, 19), ready(Bullish), th).Kind)
}

func TestClassifyConfirmBars(t *testing.T) {
	t.Parallel()

	th := DefaultThresholds()
	th.ConfirmBars = 3

	s := ready(Sideways)
	s = Classify(emas(0.2), s, th)
	assert.Equal(t, Sideways, s.Kind)
	assert.Equal(t, Bullish, s.Candidate)
	assert.Equal(t, 1, s.CandidateBars)

	s = Classify(emas(0.2), s, th)
	assert.Equal(t, Sideways, s.Kind)
	assert.Equal(t, 2, s.CandidateBars)

	s = Classify(emas(0.2), s, th)
	assert.Equal(t, Bullish, s.Kind)
	assert.Equal(t, 0, s.CandidateBars)

	// an interrupted candidate starts over
	s = ready(Sideways)
	s = Classify(emas(0.2), s, th)
	s = Classify(emas(0.0), s, th)
	assert.Equal(t, 0, s.CandidateBars)
	s = Classify(emas(0.2), s, th)
	assert.Equal(t, 1, s.CandidateBars)
	assert.Equal(t, Sideways, s.Kind)
}

func TestClassifyDeterministic(t *testing.T) {
	t.Parallel()

	th := DefaultThresholds()
	th.ConfirmBars = 2
	seps := []float64{0, 0.05, 0.12, 0.2, 0.09, 0.04, -0.03, -0.15, -0.2, -0.06, 0.01}

	run := func() []State {
		var out []State
		s := State{}
		for _, sep := range seps {
			s = Classify(emas(sep), s, th)
			out = append(out, s)
		}
		return out
	}
	assert.Equal(t, run(), run())
}

func TestThresholdsValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(th *Thresholds)
		errMsg string
	}{
		{name: "default"},
		{name: "no fast", mutate: func(th *Thresholds) { th.Fast = "" }, errMsg: "fast, mid and slow"},
		{name: "zero enter", mutate: func(th *Thresholds) { th.EnterPct = 0 }, errMsg: "enter_pct must be positive"},
		{name: "sustain above enter", mutate: func(th *Thresholds) { th.SustainPct = 0.5 }, errMsg: "sustain_pct"},
		{name: "adx without min", mutate: func(th *Thresholds) { th.ADX = "adx" }, errMsg: "min_adx"},
		{name: "adx band too wide", mutate: func(th *Thresholds) { th.ADX, th.MinADX, th.ADXBand = "adx", 10, 20 }, errMsg: "adx_band"},
		{name: "negative confirm", mutate: func(th *Thresholds) { th.ConfirmBars = -1 }, errMsg: "confirm_bars"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			th := DefaultThresholds()
			if tt.mutate != nil {
				tt.mutate(&th)
			}
			err := th.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestKindText(t *testing.T) {
	t.Parallel()

	for _, k := range []Kind{Sideways, Bullish, Bearish} {
		b, err := k.MarshalText()
		require.NoError(t, err)
		var back Kind
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, k, back)
	}
	_, err := ParseKind("moon")
	assert.Error(t, err)
	assert.Equal(t, []string{"ema_fast", "ema_mid", "ema_slow"}, DefaultThresholds().Indicators())
}
