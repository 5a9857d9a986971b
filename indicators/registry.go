package indicators

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// Params carries the numeric knobs of one indicator instance.
type Params map[string]float64

// Period reads a positive integer parameter, falling back to def when the
// key is absent.
func (p Params) Period(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok {
		if def <= 0 {
			return 0, fmt.Errorf("%s is required", key)
		}
		return def, nil
	}
	if v <= 0 || v != math.Trunc(v) {
		return 0, fmt.Errorf("%s must be a positive integer, got %v", key, v)
	}
	return int(v), nil
}

// Float reads a positive parameter with a default.
func (p Params) Float(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s must be positive, got %v", key, v)
	}
	return v, nil
}

// Factory builds an indicator from its parameters.
type Factory func(p Params) (Indicator, error)

var (
	regMu    sync.RWMutex
	registry = map[string]Factory{}
)

// Register makes an indicator kind available to Engine. It panics on an
// empty kind or a duplicate registration, like database/sql drivers.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()

	if kind == "" || f == nil {
		panic("indicators: Register with empty kind or nil factory")
	}
	if _, dup := registry[kind]; dup {
		panic("indicators: Register called twice for " + kind)
	}
	registry[kind] = f
}

// New builds an indicator of the registered kind.
func New(kind string, p Params) (Indicator, error) {
	regMu.RLock()
	f, ok := registry[kind]
	regMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown indicator kind %q", kind)
	}
	return f(p)
}

// Kinds lists registered kinds in sorted order.
func Kinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()

	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func periodOnly(def int, build func(int) Indicator) Factory {
	return func(p Params) (Indicator, error) {
		n, err := p.Period("period", def)
		if err != nil {
			return nil, err
		}
		return build(n), nil
	}
}

func init() {
	Register("sma", periodOnly(0, func(n int) Indicator { return NewSMA(n) }))
	Register("ema", periodOnly(0, func(n int) Indicator { return NewEMA(n) }))
	Register("stddev", periodOnly(20, func(n int) Indicator { return NewStdDev(n) }))
	Register("atr", periodOnly(14, func(n int) Indicator { return NewATR(n) }))
	Register("rsi", periodOnly(14, func(n int) Indicator { return NewRSI(n) }))
	Register("adx", periodOnly(14, func(n int) Indicator { return NewADX(n) }))
	Register("volume_sma", periodOnly(20, func(n int) Indicator { return NewVolumeMA(n) }))
	Register("bollinger", func(p Params) (Indicator, error) {
		n, err := p.Period("period", 20)
		if err != nil {
			return nil, err
		}
		k, err := p.Float("stddev", 2)
		if err != nil {
			return nil, err
		}
		return NewBollinger(n, k), nil
	})
}
