package risk

import (
	"errors"
	"math"
	"testing"

	"github.com/rustyeddy/regimetrader/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func params(policy Policy) Params {
	p := DefaultParams()
	p.Policy = policy
	return p
}

func TestSizeFixed(t *testing.T) {
	t.Parallel()

	res, err := Size(Input{Direction: sim.Long, Price: 2500, Equity: 100000}, params(PolicyFixed))
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Quantity)
	assert.Equal(t, PolicyFixed, res.Policy)
}

func TestSizeRiskPercent(t *testing.T) {
	t.Parallel()

	p := params(PolicyRiskPercent)

	tests := []struct {
		name    string
		in      Input
		want    float64
		wantErr bool
	}{
		{
			name: "long with stop",
			in:   Input{Direction: sim.Long, Price: 100, Stop: 98, Equity: 10000},
			// 1% of 10000 over a 2.0 stop
			want: 50,
		},
		{
			name: "short with stop",
			in:   Input{Direction: sim.Short, Price: 100, Stop: 104, Equity: 10000},
			want: 25,
		},
		{
			name: "atr fallback",
			in:   Input{Direction: sim.Long, Price: 100, Equity: 10000, Volatility: 1},
			want: 50,
		},
		{
			name:    "stop on wrong side",
			in:      Input{Direction: sim.Long, Price: 100, Stop: 101, Equity: 10000},
			wantErr: true,
		},
		{
			name:    "no stop no volatility",
			in:      Input{Direction: sim.Long, Price: 100, Equity: 10000},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := Size(tt.in, p)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrSizingDegenerate))
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, res.Quantity, 1e-9)
			assert.InDelta(t, 100.0, res.RiskAmount, 1e-6)
		})
	}
}

func TestSizeKelly(t *testing.T) {
	t.Parallel()

	p := params(PolicyKelly)
	p.KellyMinTrades = 4

	t.Run("falls back to risk percent without history", func(t *testing.T) {
		t.Parallel()
		res, err := Size(Input{Direction: sim.Long, Price: 100, Stop: 98, Equity: 10000}, p)
		require.NoError(t, err)
		assert.Equal(t, PolicyRiskPercent, res.Policy)
		assert.InDelta(t, 50.0, res.Quantity, 1e-9)
	})

	t.Run("edge is scaled and capped", func(t *testing.T) {
		t.Parallel()
		// W = 0.6, R = 2 => f* = 0.6 - 0.4/2 = 0.4; quarter kelly = 0.1
		stats := StatsFromPnL([]float64{20, 20, 20, -10, -10}, 0)
		require.InDelta(t, 0.4, stats.Kelly(), 1e-12)

		res, err := Size(Input{Direction: sim.Long, Price: 100, Equity: 10000, Stats: stats}, p)
		require.NoError(t, err)
		assert.Equal(t, PolicyKelly, res.Policy)
		assert.InDelta(t, 0.1, res.Fraction, 1e-12)
		assert.InDelta(t, 10.0, res.Quantity, 1e-9)

		capped := p
		capped.KellyCap = 0.05
		res, err = Size(Input{Direction: sim.Long, Price: 100, Equity: 10000, Stats: stats}, capped)
		require.NoError(t, err)
		assert.InDelta(t, 5.0, res.Quantity, 1e-9)
	})

	t.Run("negative edge is degenerate", func(t *testing.T) {
		t.Parallel()
		stats := StatsFromPnL([]float64{5, -10, -10, -10}, 0)
		_, err := Size(Input{Direction: sim.Long, Price: 100, Equity: 10000, Stats: stats}, p)
		assert.True(t, errors.Is(err, ErrSizingDegenerate))
	})
}

func TestSizeVolatilityAdjusted(t *testing.T) {
	t.Parallel()

	p := params(PolicyVolatility)

	res, err := Size(Input{Direction: sim.Long, Price: 100, Equity: 10000, Volatility: 2.5}, p)
	require.NoError(t, err)
	// 1% of 10000 over 2*2.5 of unit risk
	assert.InDelta(t, 20.0, res.Quantity, 1e-9)

	for _, vol := range []float64{0, math.NaN(), math.Inf(1), -1} {
		_, err := Size(Input{Direction: sim.Long, Price: 100, Equity: 10000, Volatility: vol}, p)
		require.Error(t, err, "vol=%v", vol)
		assert.True(t, errors.Is(err, ErrSizingDegenerate))
	}
}

func TestSizeClamps(t *testing.T) {
	t.Parallel()

	t.Run("capped at equity", func(t *testing.T) {
		t.Parallel()
		p := params(PolicyFixed)
		p.Quantity = 1000
		res, err := Size(Input{Price: 2500, Equity: 100000}, p)
		require.NoError(t, err)
		assert.InDelta(t, 40.0, res.Quantity, 1e-9)
	})

	t.Run("floored to min unit", func(t *testing.T) {
		t.Parallel()
		p := params(PolicyFixed)
		p.Quantity = 1.23456
		p.MinUnit = 0.01
		res, err := Size(Input{Price: 10, Equity: 100000}, p)
		require.NoError(t, err)
		assert.InDelta(t, 1.23, res.Quantity, 1e-9)
	})

	t.Run("below min unit is degenerate", func(t *testing.T) {
		t.Parallel()
		p := params(PolicyFixed)
		p.Quantity = 0.4
		p.MinUnit = 1
		_, err := Size(Input{Price: 10, Equity: 100000}, p)
		assert.True(t, errors.Is(err, ErrSizingDegenerate))
	})

	t.Run("bad equity and price", func(t *testing.T) {
		t.Parallel()
		_, err := Size(Input{Price: 10, Equity: 0}, params(PolicyFixed))
		assert.True(t, errors.Is(err, ErrSizingDegenerate))
		_, err = Size(Input{Price: math.NaN(), Equity: 10}, params(PolicyFixed))
		assert.True(t, errors.Is(err, ErrSizingDegenerate))
	})
}

func TestParamsValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(p *Params)
		errMsg string
	}{
		{name: "default"},
		{name: "unknown policy", mutate: func(p *Params) { p.Policy = "yolo" }, errMsg: `unknown risk.policy "yolo"`},
		{name: "fixed zero", mutate: func(p *Params) { p.Quantity = 0 }, errMsg: "risk.quantity must be positive"},
		{name: "risk fraction", mutate: func(p *Params) { p.Policy, p.RiskFraction = PolicyRiskPercent, 2 }, errMsg: "risk.risk_fraction"},
		{name: "kelly cap", mutate: func(p *Params) { p.Policy, p.KellyCap = PolicyKelly, 0 }, errMsg: "risk.kelly_cap"},
		{name: "kelly trades", mutate: func(p *Params) { p.Policy, p.KellyMinTrades = PolicyKelly, 500 }, errMsg: "kelly_min_trades"},
		{name: "vol indicator", mutate: func(p *Params) { p.Policy, p.VolatilityIndicator = PolicyVolatility, "" }, errMsg: "volatility_indicator"},
		{name: "min unit", mutate: func(p *Params) { p.MinUnit = 0 }, errMsg: "risk.min_unit"},
		{name: "leverage", mutate: func(p *Params) { p.MaxLeverage = math.Inf(1) }, errMsg: "risk.max_leverage"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := DefaultParams()
			if tt.mutate != nil {
				tt.mutate(&p)
			}
			err := p.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestStatsFromPnL(t *testing.T) {
	t.Parallel()

	s := StatsFromPnL([]float64{100, -50, 0, 30, 70}, 4)
	assert.Equal(t, 4, s.Trades)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 2, s.Losses)
	assert.InDelta(t, 50.0, s.AvgWin, 1e-12)
	assert.InDelta(t, 25.0, s.AvgLoss, 1e-12)
	assert.InDelta(t, 0.5, s.WinRate(), 1e-12)
	assert.InDelta(t, 2.0, s.Payoff(), 1e-12)

	assert.Equal(t, 0.0, TradeStats{}.Kelly())
	assert.True(t, params(PolicyVolatility).NeedsVolatility())
	assert.False(t, params(PolicyFixed).NeedsVolatility())
}
