package indicators

import (
	"fmt"

	"github.com/rustyeddy/regimetrader/market"
)

// SimpleMA is a streaming simple moving average of closes.
type SimpleMA struct {
	period int
	w      *window
}

// NewSMA creates a simple moving average over period bars.
func NewSMA(period int) *SimpleMA {
	return &SimpleMA{period: period, w: newWindow(period)}
}

func (m *SimpleMA) Name() string {
	return fmt.Sprintf("SMA(%d)", m.period)
}

func (m *SimpleMA) Warmup() int {
	return m.period
}

func (m *SimpleMA) Reset() {
	m.w.reset()
}

func (m *SimpleMA) Update(b market.Bar) {
	m.w.push(b.Close)
}

func (m *SimpleMA) Ready() bool {
	return m.w.full()
}

func (m *SimpleMA) Value() float64 {
	if !m.Ready() {
		return 0
	}
	return m.w.mean()
}

// ExponentialMA is a streaming exponential moving average of closes,
// seeded with the SMA of the first period bars.
type ExponentialMA struct {
	period     int
	multiplier float64
	ema        float64
	count      int
	warmupSum  float64
}

// NewEMA creates an exponential moving average with the given period.
func NewEMA(period int) *ExponentialMA {
	return &ExponentialMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *ExponentialMA) Name() string {
	return fmt.Sprintf("EMA(%d)", e.period)
}

func (e *ExponentialMA) Warmup() int {
	return e.period
}

func (e *ExponentialMA) Reset() {
	e.ema = 0
	e.count = 0
	e.warmupSum = 0
}

func (e *ExponentialMA) Update(b market.Bar) {
	if e.count < e.period {
		e.warmupSum += b.Close
		e.count++
		if e.count == e.period {
			e.ema = e.warmupSum / float64(e.period)
		}
		return
	}
	e.ema = (b.Close-e.ema)*e.multiplier + e.ema
}

func (e *ExponentialMA) Ready() bool {
	return e.count >= e.period
}

func (e *ExponentialMA) Value() float64 {
	if !e.Ready() {
		return 0
	}
	return e.ema
}

// VolumeMA averages bar volume; the signal layer uses it as the volume filter baseline.
type VolumeMA struct {
	period int
	w      *window
}

func NewVolumeMA(period int) *VolumeMA {
	return &VolumeMA{period: period, w: newWindow(period)}
}

func (v *VolumeMA) Name() string {
	return fmt.Sprintf("VolumeMA(%d)", v.period)
}

func (v *VolumeMA) Warmup() int {
	return v.period
}

func (v *VolumeMA) Reset() {
	v.w.reset()
}

func (v *VolumeMA) Update(b market.Bar) {
	v.w.push(b.Volume)
}

func (v *VolumeMA) Ready() bool {
	return v.w.full()
}

func (v *VolumeMA) Value() float64 {
	if !v.Ready() {
		return 0
	}
	return v.w.mean()
}
