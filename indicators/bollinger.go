package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/regimetrader/market"
)

// StdDev is the rolling population standard deviation of closes.
type StdDev struct {
	period int
	w      *window
}

func NewStdDev(period int) *StdDev {
	return &StdDev{period: period, w: newWindow(period)}
}

func (s *StdDev) Name() string { return fmt.Sprintf("StdDev(%d)", s.period) }
func (s *StdDev) Warmup() int { return s.period }
func (s *StdDev) Reset() { s.w.reset() }
func (s *StdDev) Ready() bool { return s.w.full() }
func (s *StdDev) Update(b market.Bar) { s.w.push(b.Close) }

func (s *StdDev) Value() float64 {
	if !s.Ready() {
		return 0
	}
	return math.Sqrt(s.w.variance())
}

// Bollinger publishes the middle band as its value and upper, lower and
// width (relative to the middle) as extra series.
type Bollinger struct {
	period int
	k      float64
	w      *window
}

func NewBollinger(period int, k float64) *Bollinger {
	return &Bollinger{period: period, k: k, w: newWindow(period)}
}

func (b *Bollinger) Name() string {
	return fmt.Sprintf("BB(%d,%g)", b.period, b.k)
}

func (b *Bollinger) Warmup() int { return b.period }
func (b *Bollinger) Reset()      { b.w.reset() }
func (b *Bollinger) Ready() bool { return b.w.full() }

func (b *Bollinger) Update(bar market.Bar) {
	b.w.push(bar.Close)
}

func (b *Bollinger) Value() float64 {
	if !b.Ready() {
		return 0
	}
	return b.w.mean()
}

func (b *Bollinger) Values() map[string]float64 {
	if !b.Ready() {
		return nil
	}
	mid := b.w.mean()
	dev := b.k * math.Sqrt(b.w.variance())
	out := map[string]float64{
		"upper":  mid + dev,
		"lower":  mid - dev,
		"middle": mid,
	}
	if mid != 0 {
		out["width"] = 2 * dev / mid
	}
	return out
}
