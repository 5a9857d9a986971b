package indicators

import (
	"fmt"

	"github.com/rustyeddy/regimetrader/market"
)

// RSI is Wilder's Relative Strength Index.
type RSI struct {
	period    int
	prevClose float64
	havePrev  bool
	count     int
	avgGain   float64
	avgLoss   float64
}

func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string {
	return fmt.Sprintf("RSI(%d)", r.period)
}

func (r *RSI) Warmup() int {
	return r.period + 1
}

func (r *RSI) Reset() {
	*r = RSI{period: r.period}
}

func (r *RSI) Update(b market.Bar) {
	if !r.havePrev {
		r.prevClose = b.Close
		r.havePrev = true
		return
	}

	change := b.Close - r.prevClose
	r.prevClose = b.Close
	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	if r.count < r.period {
		r.avgGain += gain
		r.avgLoss += loss
		r.count++
		if r.count == r.period {
			r.avgGain /= float64(r.period)
			r.avgLoss /= float64(r.period)
		}
		return
	}

	p := float64(r.period)
	r.avgGain = (r.avgGain*(p-1) + gain) / p
	r.avgLoss = (r.avgLoss*(p-1) + loss) / p
}

func (r *RSI) Ready() bool {
	return r.count >= r.period
}

func (r *RSI) Value() float64 {
	if !r.Ready() {
		return 0
	}
	if r.avgLoss == 0 {
		if r.avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs)
}
