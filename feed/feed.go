// Package feed provides pull-based bar sources for backtests.
package feed

import (
	"time"

	"github.com/rustyeddy/regimetrader/market"
)

// Source yields bars one at a time in OpenTime order. Implementations
// return (ok=false, err=nil) at the end of the data.
type Source interface {
	Next() (b market.Bar, ok bool, err error)
	Close() error
}

// Window restricts a source to bars with OpenTime in [From, To). Zero
// bounds are open.
type Window struct {
	From time.Time
	To   time.Time
}

func (w Window) contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && !t.Before(w.To) {
		return false
	}
	return true
}

// SliceSource replays bars held in memory.
type SliceSource struct {
	bars []market.Bar
	i    int
}

func NewSliceSource(bars []market.Bar) *SliceSource {
	return &SliceSource{bars: bars}
}

func (s *SliceSource) Next() (market.Bar, bool, error) {
	if s.i >= len(s.bars) {
		return market.Bar{}, false, nil
	}
	b := s.bars[s.i]
	s.i++
	return b, true, nil
}

func (s *SliceSource) Close() error { return nil }

// ReadAll drains src into a slice and closes it.
func ReadAll(src Source) ([]market.Bar, error) {
	defer src.Close()

	var out []market.Bar
	for {
		b, ok, err := src.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, b)
	}
}
