package indicators

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/rustyeddy/regimetrader/market"
)

// Spec names one indicator instance in a session's indicator set.
type Spec struct {
	Name   string `json:"name" yaml:"name" validate:"required"`
	Kind   string `json:"kind" yaml:"kind" validate:"required"`
	Params Params `json:"params,omitempty" yaml:"params,omitempty"`
}

var nameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// DefaultSpecs is the EMA/Bollinger/ATR set the regime detector and the
// bundled strategies expect.
func DefaultSpecs() []Spec {
	return []Spec{
		{Name: "ema_fast", Kind: "ema", Params: Params{"period": 20}},
		{Name: "ema_mid", Kind: "ema", Params: Params{"period": 40}},
		{Name: "ema_slow", Kind: "ema", Params: Params{"period": 80}},
		{Name: "bb", Kind: "bollinger", Params: Params{"period": 20, "stddev": 2}},
		{Name: "atr", Kind: "atr", Params: Params{"period": 20}},
		{Name: "vol_ma", Kind: "volume_sma", Params: Params{"period": 20}},
		{Name: "rsi", Kind: "rsi", Params: Params{"period": 14}},
		{Name: "adx", Kind: "adx", Params: Params{"period": 14}},
	}
}

// Snapshot is the set of indicator values after one bar. A name that is
// absent has not finished warming up.
type Snapshot struct {
	Time   time.Time
	values map[string]float64
}

// NewSnapshot copies values into a snapshot.
func NewSnapshot(t time.Time, values map[string]float64) Snapshot {
	m := make(map[string]float64, len(values))
	for k, v := range values {
		m[k] = v
	}
	return Snapshot{Time: t, values: m}
}

// Get returns the value for name; ok is false while it is unavailable.
func (s Snapshot) Get(name string) (float64, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Missing returns the names from the argument list that are unavailable.
func (s Snapshot) Missing(names ...string) []string {
	var out []string
	for _, n := range names {
		if _, ok := s.values[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

func (s Snapshot) Len() int {
	return len(s.values)
}

// Names lists available values in sorted order.
func (s Snapshot) Names() []string {
	out := make([]string, 0, len(s.values))
	for k := range s.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Map returns a copy of the values.
func (s Snapshot) Map() map[string]float64 {
	m := make(map[string]float64, len(s.values))
	for k, v := range s.values {
		m[k] = v
	}
	return m
}

// Engine feeds every configured indicator once per bar.
type Engine struct {
	specs []Spec
	inds  []Indicator
	bars  int
}

// NewEngine builds the indicator set. Unknown kinds, bad parameters and
// duplicate names are configuration errors.
func NewEngine(specs []Spec) (*Engine, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("indicator set is empty")
	}

	e := &Engine{}
	seen := make(map[string]bool, len(specs))
	for _, sp := range specs {
		if !nameRe.MatchString(sp.Name) {
			return nil, fmt.Errorf("indicator name %q must match %s", sp.Name, nameRe)
		}
		if seen[sp.Name] {
			return nil, fmt.Errorf("duplicate indicator name %q", sp.Name)
		}
		seen[sp.Name] = true

		ind, err := New(sp.Kind, sp.Params)
		if err != nil {
			return nil, fmt.Errorf("indicator %q: %w", sp.Name, err)
		}
		e.specs = append(e.specs, sp)
		e.inds = append(e.inds, ind)
	}
	return e, nil
}

// Update advances every indicator with b and returns the new snapshot.
func (e *Engine) Update(b market.Bar) Snapshot {
	e.bars++
	snap := Snapshot{Time: b.OpenTime, values: make(map[string]float64, len(e.inds)+4)}

	for i, ind := range e.inds {
		ind.Update(b)
		if !ind.Ready() {
			continue
		}
		name := e.specs[i].Name
		snap.values[name] = ind.Value()
		if mv, ok := ind.(MultiValue); ok {
			for k, v := range mv.Values() {
				snap.values[name+"."+k] = v
			}
		}
	}
	return snap
}

// Reset clears every indicator.
func (e *Engine) Reset() {
	e.bars = 0
	for _, ind := range e.inds {
		ind.Reset()
	}
}

// Warmup is the longest warmup in the set.
func (e *Engine) Warmup() int {
	w := 0
	for _, ind := range e.inds {
		if ind.Warmup() > w {
			w = ind.Warmup()
		}
	}
	return w
}

// Bars is the number of bars consumed since the last reset.
func (e *Engine) Bars() int {
	return e.bars
}

// Ready reports whether every indicator has warmed up.
func (e *Engine) Ready() bool {
	for _, ind := range e.inds {
		if !ind.Ready() {
			return false
		}
	}
	return true
}

// Specs returns a copy of the configured set.
func (e *Engine) Specs() []Spec {
	return append([]Spec(nil), e.specs...)
}
