// Package strategies turns bars, indicators and regime into one signal per bar.
package strategies

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rustyeddy/regimetrader/indicators"
	"github.com/rustyeddy/regimetrader/market"
	"github.com/rustyeddy/regimetrader/regime"
	"github.com/rustyeddy/regimetrader/sim"
)

// Signal is the per-bar trading intent before sizing.
type Signal struct {
	Intent   sim.Intent `json:"intent"`
	Strength float64    `json:"strength"`
	BarTime  time.Time  `json:"bar_time"`
	Stop     float64    `json:"stop,omitempty"`
	Target   float64    `json:"target,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

// Hold is the no-op signal for b.
func Hold(b market.Bar, reason string) Signal {
	return Signal{Intent: sim.Hold, BarTime: b.OpenTime, Reason: reason}
}

// Input is what a strategy sees on one bar. Position is a copy and nil
// when flat.
type Input struct {
	Bar         market.Bar
	Snapshot    indicators.Snapshot
	Regime      regime.State
	Position    *sim.Position
	BarsInTrade int
}

// Strategy maps one bar of state to exactly one Signal. Implementations
// may keep private state between bars; a session owns its instance.
type Strategy interface {
	Name() string
	Decide(in Input) Signal
}

// StopAdjuster is implemented by strategies that trail their stop. The
// session only ever moves the stop in the position's favour.
type StopAdjuster interface {
	AdjustStop(in Input) (stop float64, ok bool)
}

// Requirer lists the snapshot names a strategy reads, so a session can
// refuse to start with an indicator set that cannot feed it.
type Requirer interface {
	Requires() []string
}

// Params are strategy options as decoded from config.
type Params map[string]any

// Float reads a number, accepting ints, floats and numeric strings.
func (p Params) Float(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case string:
		n, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		f = n
	default:
		return 0, fmt.Errorf("%s: want a number, got %T", key, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s must be finite", key)
	}
	return f, nil
}

// String reads a string option.
func (p Params) String(key, def string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: want a string, got %T", key, v)
	}
	return s, nil
}

// Bool reads a boolean option.
func (p Params) Bool(key string, def bool) (bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		return strconv.ParseBool(x)
	}
	return false, fmt.Errorf("%s: want a bool, got %T", key, v)
}

// Factory builds a fresh strategy instance.
type Factory func(p Params) (Strategy, error)

var (
	regMu    sync.RWMutex
	registry = map[string]Factory{}
)

// Register adds a strategy under name; a second registration replaces the
// first.
func Register(name string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[normalize(name)] = f
}

// New builds the named strategy.
func New(name string, p Params) (Strategy, error) {
	regMu.RLock()
	f, ok := registry[normalize(name)]
	regMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
	return f(p)
}

// Names lists registered strategies.
func Names() []string {
	regMu.RLock()
	defer regMu.RUnlock()

	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
}

func init() {
	Register("noop", func(Params) (Strategy, error) { return Noop{}, nil })
	Register("external", func(Params) (Strategy, error) { return External{}, nil })
	Register("ema_cross", NewEMACrossFromParams)
	Register("ema_bb_turtle", NewEMABBTurtleFromParams)
	Register("rsi_reversion", NewRSIReversionFromParams)
}
