package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/rustyeddy/regimetrader/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func bars(closes ...float64) []market.Bar {
	out := make([]market.Bar, len(closes))
	for i, c := range closes {
		out[i] = market.Bar{
			Symbol:    "TEST",
			Timeframe: market.H1,
			OpenTime:  baseTime.Add(time.Duration(i) * time.Hour),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000 + float64(i)*100,
		}
	}
	return out
}

func hlc(h, l, c float64) market.Bar {
	return market.Bar{Symbol: "TEST", High: h, Low: l, Close: c, Open: c}
}

func feed(ind Indicator, bs []market.Bar) {
	for _, b := range bs {
		ind.Update(b)
	}
}

func TestSimpleMAStreaming(t *testing.T) {
	t.Parallel()

	bs := bars(102, 105, 106, 108, 110)

	ma := NewSMA(3)
	assert.Equal(t, "SMA(3)", ma.Name())
	assert.Equal(t, 3, ma.Warmup())
	assert.False(t, ma.Ready())
	assert.Equal(t, 0.0, ma.Value())

	feed(ma, bs[:2])
	assert.False(t, ma.Ready())

	ma.Update(bs[2])
	require.True(t, ma.Ready())
	assert.InDelta(t, (102.0+105.0+106.0)/3.0, ma.Value(), 1e-9)

	ma.Update(bs[3])
	assert.InDelta(t, (105.0+106.0+108.0)/3.0, ma.Value(), 1e-9)

	ma.Reset()
	assert.False(t, ma.Ready())
	assert.Equal(t, 0.0, ma.Value())
}

func TestEMASeededWithSMA(t *testing.T) {
	t.Parallel()

	e := NewEMA(3)
	feed(e, bars(1, 2, 3))
	require.True(t, e.Ready())
	assert.InDelta(t, 2.0, e.Value(), 1e-12)

	e.Update(bars(0, 0, 0, 6)[3])
	// multiplier 0.5: (6-2)*0.5 + 2
	assert.InDelta(t, 4.0, e.Value(), 1e-12)
}

func TestATRWilder(t *testing.T) {
	t.Parallel()

	bs := []market.Bar{
		hlc(10, 8, 9),
		hlc(11, 9, 10),
		hlc(12, 10, 11),
		hlc(11, 9, 10),
		hlc(12, 10, 11),
		hlc(13, 11, 12),
	}

	a := NewATR(3)
	assert.Equal(t, 4, a.Warmup())
	feed(a, bs[:3])
	assert.False(t, a.Ready())
	a.Update(bs[3])
	require.True(t, a.Ready())
	assert.InDelta(t, 2.0, a.Value(), 1e-12)

	feed(a, bs[4:])
	assert.InDelta(t, 2.0, a.Value(), 1e-12)
}

func TestTrueRange(t *testing.T) {
	t.Parallel()

	tr := trueRange(hlc(110, 100, 105), hlc(0, 0, 104))
	assert.Equal(t, 10.0, tr)

	// gap up beyond the previous close
	tr = trueRange(hlc(120, 115, 118), hlc(0, 0, 100))
	assert.Equal(t, 20.0, tr)
}

func TestRSI(t *testing.T) {
	t.Parallel()

	t.Run("only gains", func(t *testing.T) {
		t.Parallel()
		r := NewRSI(3)
		feed(r, bars(1, 2, 3, 4))
		require.True(t, r.Ready())
		assert.Equal(t, 100.0, r.Value())
	})

	t.Run("balanced", func(t *testing.T) {
		t.Parallel()
		r := NewRSI(2)
		feed(r, bars(1, 2, 1))
		require.True(t, r.Ready())
		assert.InDelta(t, 50.0, r.Value(), 1e-9)
	})

	t.Run("flat", func(t *testing.T) {
		t.Parallel()
		r := NewRSI(2)
		feed(r, bars(5, 5, 5))
		assert.Equal(t, 50.0, r.Value())
	})
}

func TestBollinger(t *testing.T) {
	t.Parallel()

	b := NewBollinger(3, 2)
	feed(b, bars(1, 2))
	assert.Nil(t, b.Values())

	b.Update(bars(0, 0, 3)[2])
	require.True(t, b.Ready())

	sd := math.Sqrt(2.0 / 3.0)
	v := b.Values()
	assert.InDelta(t, 2.0, b.Value(), 1e-12)
	assert.InDelta(t, 2+2*sd, v["upper"], 1e-9)
	assert.InDelta(t, 2-2*sd, v["lower"], 1e-9)
	assert.InDelta(t, 4*sd/2, v["width"], 1e-9)

	s := NewStdDev(3)
	feed(s, bars(1, 2, 3))
	assert.InDelta(t, sd, s.Value(), 1e-9)
}

func TestADXTrending(t *testing.T) {
	t.Parallel()

	closes := make([]float64, 12)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	a := NewADX(3)
	bs := bars(closes...)

	feed(a, bs[:a.Warmup()-1])
	assert.False(t, a.Ready())
	a.Update(bs[a.Warmup()-1])
	require.True(t, a.Ready())
	assert.InDelta(t, 100.0, a.Value(), 1e-9)

	feed(a, bs[a.Warmup():])
	di := a.Values()
	assert.Greater(t, di["plus_di"], di["minus_di"])

	a.Reset()
	assert.False(t, a.Ready())
	assert.Equal(t, 3, a.period)
}

func TestVolumeMA(t *testing.T) {
	t.Parallel()

	v := NewVolumeMA(2)
	feed(v, bars(1, 1, 1))
	// volumes 1100 and 1200
	assert.InDelta(t, 1150.0, v.Value(), 1e-9)
}
