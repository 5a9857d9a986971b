// Package regime classifies market state from indicator snapshots.
package regime

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rustyeddy/regimetrader/indicators"
)

// Kind is the market regime. The zero value is Sideways.
type Kind int

const (
	Sideways Kind = iota
	Bullish
	Bearish
)

func (k Kind) String() string {
	switch k {
	case Sideways:
		return "sideways"
	case Bullish:
		return "bullish"
	case Bearish:
		return "bearish"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sideways":
		return Sideways, nil
	case "bullish", "bull":
		return Bullish, nil
	case "bearish", "bear":
		return Bearish, nil
	}
	return Sideways, fmt.Errorf("unknown regime %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// State is the regime after one bar. Candidate and CandidateBars track a
// pending switch that has not been confirmed yet.
type State struct {
	Kind          Kind    `json:"kind"`
	Strength      float64 `json:"strength"`
	Ready         bool    `json:"ready"`
	Candidate     Kind    `json:"candidate"`
	CandidateBars int     `json:"candidate_bars"`
}

// Point is one entry of a session's regime history.
type Point struct {
	Time  time.Time `json:"time"`
	State State     `json:"state"`
}

// Thresholds configure EMA-alignment classification. Separations are in
// percent: (fast-mid)/mid*100 and (mid-slow)/slow*100.
type Thresholds struct {
	Fast string `json:"fast" yaml:"fast" default:"ema_fast"`
	Mid  string `json:"mid" yaml:"mid" default:"ema_mid"`
	Slow string `json:"slow" yaml:"slow" default:"ema_slow"`

	// EnterPct is the separation needed to switch into a trend,
	// SustainPct the smaller one needed to stay in it.
	EnterPct   float64 `json:"enter_pct" yaml:"enter_pct" default:"0.1"`
	SustainPct float64 `json:"sustain_pct" yaml:"sustain_pct" default:"0.05"`

	// ADX gating is optional; empty name disables it.
	ADX     string  `json:"adx,omitempty" yaml:"adx,omitempty"`
	MinADX  float64 `json:"min_adx,omitempty" yaml:"min_adx,omitempty"`
	ADXBand float64 `json:"adx_band,omitempty" yaml:"adx_band,omitempty"`

	// ConfirmBars is how many consecutive bars a new regime must hold
	// before it replaces the current one.
	ConfirmBars int `json:"confirm_bars" yaml:"confirm_bars" default:"1"`
}

// DefaultThresholds matches indicators.DefaultSpecs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Fast:        "ema_fast",
		Mid:         "ema_mid",
		Slow:        "ema_slow",
		EnterPct:    0.1,
		SustainPct:  0.05,
		ConfirmBars: 1,
	}
}

// Validate reports configuration errors.
func (th Thresholds) Validate() error {
	if th.Fast == "" || th.Mid == "" || th.Slow == "" {
		return fmt.Errorf("regime fast, mid and slow indicators are required")
	}
	if th.EnterPct <= 0 {
		return fmt.Errorf("regime.enter_pct must be positive")
	}
	if th.SustainPct < 0 || th.SustainPct > th.EnterPct {
		return fmt.Errorf("regime.sustain_pct must be between 0 and enter_pct")
	}
	if th.ADX != "" {
		if th.MinADX <= 0 {
			return fmt.Errorf("regime.min_adx must be positive when adx is set")
		}
		if th.ADXBand < 0 || th.ADXBand > th.MinADX {
			return fmt.Errorf("regime.adx_band must be between 0 and min_adx")
		}
	}
	if th.ConfirmBars < 0 {
		return fmt.Errorf("regime.confirm_bars must not be negative")
	}
	return nil
}

// Indicators lists the snapshot names Classify reads.
func (th Thresholds) Indicators() []string {
	names := []string{th.Fast, th.Mid, th.Slow}
	if th.ADX != "" {
		names = append(names, th.ADX)
	}
	return names
}

// Classify returns the regime for snap given the previous state. It is a
// pure function: the same snapshot sequence always yields the same states.
// When an input is unavailable the previous kind is carried with Ready
// false.
func Classify(snap indicators.Snapshot, prev State, th Thresholds) State {
	fast, ok1 := snap.Get(th.Fast)
	mid, ok2 := snap.Get(th.Mid)
	slow, ok3 := snap.Get(th.Slow)
	if !ok1 || !ok2 || !ok3 || mid == 0 || slow == 0 {
		return notReady(prev)
	}

	adx := math.Inf(1)
	if th.ADX != "" {
		v, ok := snap.Get(th.ADX)
		if !ok {
			return notReady(prev)
		}
		adx = v
	}

	sepFM := (fast - mid) / mid * 100
	sepMS := (mid - slow) / slow * 100
	bull := math.Min(sepFM, sepMS)
	bear := math.Min(-sepFM, -sepMS)

	raw := rawKind(prev, bull, bear, adx, th)

	next := State{Ready: true, Kind: raw, Candidate: raw}
	if prev.Ready && raw != prev.Kind {
		n := 1
		if prev.CandidateBars > 0 && prev.Candidate == raw {
			n = prev.CandidateBars + 1
		}
		if n < th.ConfirmBars {
			next.Kind = prev.Kind
			next.CandidateBars = n
		}
	}

	switch next.Kind {
	case Bullish:
		next.Strength = clamp01(bull / th.EnterPct)
	case Bearish:
		next.Strength = clamp01(bear / th.EnterPct)
	default:
		next.Strength = 1 - clamp01(math.Max(math.Abs(sepFM), math.Abs(sepMS))/th.EnterPct)
	}
	return next
}

func rawKind(prev State, bull, bear, adx float64, th Thresholds) Kind {
	sustainADX := th.MinADX - th.ADXBand

	if prev.Ready {
		switch prev.Kind {
		case Bullish:
			if bull >= th.SustainPct && adx >= sustainADX {
				return Bullish
			}
		case Bearish:
			if bear >= th.SustainPct && adx >= sustainADX {
				return Bearish
			}
		}
	}

	switch {
	case bull >= th.EnterPct && adx >= th.MinADX:
		return Bullish
	case bear >= th.EnterPct && adx >= th.MinADX:
		return Bearish
	}
	return Sideways
}

func notReady(prev State) State {
	prev.Ready = false
	return prev
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x) || x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
