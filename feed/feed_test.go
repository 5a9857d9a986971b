package feed

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/regimetrader/market"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestCSVSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		window  Window
		want    int
		wantErr bool
		check   func(t *testing.T, bars []market.Bar)
	}{
		{
			name: "header rfc3339",
			body: "time,open,high,low,close,volume\n" +
				"2024-01-01T00:00:00Z,100,110,95,105,12.5\n" +
				"2024-01-01T01:00:00Z,105,112,101,110,8\n",
			want: 2,
			check: func(t *testing.T, bars []market.Bar) {
				b := bars[0]
				assert.Equal(t, "BTCUSD", b.Symbol)
				assert.Equal(t, market.H1, b.Timeframe)
				assert.True(t, t0.Equal(b.OpenTime))
				assert.Equal(t, 100.0, b.Open)
				assert.Equal(t, 110.0, b.High)
				assert.Equal(t, 95.0, b.Low)
				assert.Equal(t, 105.0, b.Close)
				assert.Equal(t, 12.5, b.Volume)
				assert.Empty(t, b.Action)
			},
		},
		{
			name: "no header unix seconds",
			body: "1704067200,100,110,95,105,1\n1704070800,105,112,101,110,1\n",
			want: 2,
			check: func(t *testing.T, bars []market.Bar) {
				assert.True(t, t0.Add(time.Hour).Equal(bars[1].OpenTime))
			},
		},
		{
			name: "reordered columns with action",
			body: "timestamp,close,open,low,high,action\n" +
				"2024-01-01T00:00:00Z,105,100,95,110,buy\n" +
				"\n" +
				"# comment\n" +
				"2024-01-01T01:00:00Z,110,105,101,112,\n",
			want: 2,
			check: func(t *testing.T, bars []market.Bar) {
				assert.Equal(t, 105.0, bars[0].Close)
				assert.Equal(t, 110.0, bars[0].High)
				assert.Equal(t, "buy", bars[0].Action)
				assert.Zero(t, bars[0].Volume)
				assert.Empty(t, bars[1].Action)
			},
		},
		{
			name: "window",
			body: "time,open,high,low,close,volume\n" +
				"2024-01-01T00:00:00Z,1,1,1,1,1\n" +
				"2024-01-01T01:00:00Z,1,1,1,1,1\n" +
				"2024-01-01T02:00:00Z,1,1,1,1,1\n",
			window: Window{From: t0.Add(time.Hour), To: t0.Add(2 * time.Hour)},
			want:   1,
			check: func(t *testing.T, bars []market.Bar) {
				assert.True(t, t0.Add(time.Hour).Equal(bars[0].OpenTime))
			},
		},
		{
			name:    "bad price",
			body:    "time,open,high,low,close,volume\n2024-01-01T00:00:00Z,x,1,1,1,1\n",
			wantErr: true,
		},
		{
			name:    "bad time",
			body:    "yesterday,1,1,1,1,1\n",
			wantErr: true,
		},
		{
			name:    "header missing close",
			body:    "time,open,high,low,volume\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src, err := NewCSVSource(writeFile(t, "bars.csv", tt.body), "BTCUSD", market.H1, tt.window)
			require.NoError(t, err)

			bars, err := ReadAll(src)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, bars, tt.want)
			if tt.check != nil {
				tt.check(t, bars)
			}
		})
	}
}

func TestCSVSource_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := NewCSVSource(filepath.Join(t.TempDir(), "nope.csv"), "BTCUSD", market.H1, Window{})
	assert.Error(t, err)
}

func TestSliceSource(t *testing.T) {
	t.Parallel()

	in := []market.Bar{{Symbol: "A", OpenTime: t0}, {Symbol: "A", OpenTime: t0.Add(time.Hour)}}
	src := NewSliceSource(in)

	out, err := ReadAll(src)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, ok, err := src.Next()
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteSource(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bars.db")
	var bars []market.Bar
	for i := 0; i < 5; i++ {
		bars = append(bars, market.Bar{
			Symbol:    "BTCUSD",
			Timeframe: market.H1,
			OpenTime:  t0.Add(time.Duration(i) * time.Hour),
			Open:      100 + float64(i),
			High:      110 + float64(i),
			Low:       90 + float64(i),
			Close:     105 + float64(i),
			Volume:    float64(i),
		})
	}
	bars[2].Action = "sell"
	// another stream in the same table
	other := bars[0]
	other.Timeframe = market.M15

	// insert out of order to check the ORDER BY
	n, err := ImportBars(path, []market.Bar{bars[3], bars[0], bars[4], bars[1], bars[2], other})
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	src, err := NewSQLiteSource(path, "BTCUSD", market.H1, Window{})
	require.NoError(t, err)
	got, err := ReadAll(src)
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i := range got {
		assert.True(t, bars[i].OpenTime.Equal(got[i].OpenTime), "bar %d", i)
		assert.Equal(t, bars[i].Close, got[i].Close)
		assert.Equal(t, market.H1, got[i].Timeframe)
	}
	assert.Equal(t, "sell", got[2].Action)

	src, err = NewSQLiteSource(path, "BTCUSD", market.H1, Window{From: t0.Add(3 * time.Hour)})
	require.NoError(t, err)
	got, err = ReadAll(src)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSQLiteSource_NoTable(t *testing.T) {
	t.Parallel()

	_, err := NewSQLiteSource(filepath.Join(t.TempDir(), "empty.db"), "BTCUSD", market.H1, Window{})
	assert.Error(t, err)
}
