package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/regimetrader/market"
)

// ADX implements Wilder's Average Directional Index (trend strength).
// It also publishes the +DI and -DI lines as extra series.
type ADX struct {
	period int

	prev     market.Bar
	havePrev bool

	// Wilder-smoothed values after warmup
	tr  float64
	pdm float64
	mdm float64

	pdi, mdi float64

	adx   float64
	dxSum float64

	// bars processed, including the first seed
	count int
	ready bool
}

func NewADX(period int) *ADX {
	return &ADX{period: period}
}

func (a *ADX) Name() string {
	return fmt.Sprintf("ADX(%d)", a.period)
}

// Warmup is period bars to seed TR/DM, period DX values to seed ADX, plus
// the initial previous bar.
func (a *ADX) Warmup() int {
	return 2*a.period + 1
}

func (a *ADX) Reset() {
	*a = ADX{period: a.period}
}

func (a *ADX) Ready() bool {
	return a.ready
}

func (a *ADX) Value() float64 {
	if !a.ready {
		return 0
	}
	return a.adx
}

func (a *ADX) Values() map[string]float64 {
	if !a.ready {
		return nil
	}
	return map[string]float64{"plus_di": a.pdi, "minus_di": a.mdi}
}

func (a *ADX) Update(b market.Bar) {
	if !a.havePrev {
		a.prev = b
		a.havePrev = true
		a.count = 1
		return
	}

	upMove := b.High - a.prev.High
	downMove := a.prev.Low - b.Low

	var pdm, mdm float64
	if upMove > downMove && upMove > 0 {
		pdm = upMove
	}
	if downMove > upMove && downMove > 0 {
		mdm = downMove
	}
	tr := trueRange(b, a.prev)

	a.prev = b
	a.count++

	p := float64(a.period)

	// Phase A: simple averages of the first period samples seed the smoothing.
	if a.count <= a.period+1 {
		a.tr += tr
		a.pdm += pdm
		a.mdm += mdm
		if a.count == a.period+1 {
			a.tr /= p
			a.pdm /= p
			a.mdm /= p
		}
		return
	}

	a.tr = (a.tr*(p-1) + tr) / p
	a.pdm = (a.pdm*(p-1) + pdm) / p
	a.mdm = (a.mdm*(p-1) + mdm) / p

	dx := 0.0
	if a.tr > 0 {
		a.pdi = 100 * a.pdm / a.tr
		a.mdi = 100 * a.mdm / a.tr
		if den := a.pdi + a.mdi; den > 0 {
			dx = 100 * math.Abs(a.pdi-a.mdi) / den
		}
	}

	// Phase B: average the first period DX values to seed ADX.
	seedADXCount := 2*a.period + 1
	if !a.ready {
		a.dxSum += dx
		if a.count == seedADXCount {
			a.adx = a.dxSum / p
			a.ready = true
		}
		return
	}

	a.adx = (a.adx*(p-1) + dx) / p
}
