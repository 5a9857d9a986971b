package strategies

import (
	"errors"
	"fmt"

	"github.com/rustyeddy/regimetrader/regime"
	"github.com/rustyeddy/regimetrader/sim"
)

const (
	TrailFavorable = "favorable_move"
	TrailAlways    = "always"
)

// EMABBTurtle buys pullbacks to the lower Bollinger band in a bullish EMA
// regime and sells rallies to the upper band in a bearish one.
//
// A long needs the close to cross down through the lower band (previous
// close above it, this close at or below it) with volume/vol_ma inside
// [VolumeMin, VolumeMax]. Shorts mirror this on the upper band. Positions
// exit when the regime changes from the one they were opened in, after
// MaxBars bars, or on the trailing ATR stop.
type EMABBTurtle struct {
	EMABBTurtleConfig

	prevClose float64
	prevLower float64
	prevUpper float64
	havePrev  bool
}

type EMABBTurtleConfig struct {
	Bands      string  `json:"bands" yaml:"bands"`
	ATR        string  `json:"atr" yaml:"atr"`
	VolumeMA   string  `json:"volume_ma" yaml:"volume_ma"`
	VolumeMin  float64 `json:"volume_min" yaml:"volume_min"`
	VolumeMax  float64 `json:"volume_max" yaml:"volume_max"`
	StopATR    float64 `json:"stop_atr" yaml:"stop_atr"`
	TargetATR  float64 `json:"target_atr" yaml:"target_atr"`
	TrailATR   float64 `json:"trail_atr" yaml:"trail_atr"`
	TrailOn    string  `json:"trail_on" yaml:"trail_on"`
	RegimeExit bool    `json:"regime_exit" yaml:"regime_exit"`
	MaxBars    int     `json:"max_bars" yaml:"max_bars"`
}

func EMABBTurtleConfigDefaults() EMABBTurtleConfig {
	return EMABBTurtleConfig{
		Bands:      "bb",
		ATR:        "atr",
		VolumeMA:   "vol_ma",
		VolumeMin:  0.5,
		VolumeMax:  3.0,
		StopATR:    2.0,
		TrailATR:   2.0,
		TrailOn:    TrailFavorable,
		RegimeExit: true,
		MaxBars:    1440,
	}
}

func NewEMABBTurtle(cfg EMABBTurtleConfig) (*EMABBTurtle, error) {
	if cfg.Bands == "" || cfg.ATR == "" {
		return nil, errors.New("ema_bb_turtle: bands and atr indicator names are required")
	}
	if cfg.StopATR <= 0 {
		return nil, errors.New("ema_bb_turtle: stop_atr must be positive")
	}
	if cfg.TargetATR < 0 || cfg.TrailATR < 0 {
		return nil, errors.New("ema_bb_turtle: target_atr and trail_atr must be >= 0")
	}
	if cfg.VolumeMin < 0 || (cfg.VolumeMax > 0 && cfg.VolumeMax < cfg.VolumeMin) {
		return nil, fmt.Errorf("ema_bb_turtle: bad volume window [%v, %v]", cfg.VolumeMin, cfg.VolumeMax)
	}
	if cfg.MaxBars < 0 {
		return nil, errors.New("ema_bb_turtle: max_bars must be >= 0")
	}
	switch cfg.TrailOn {
	case "":
		cfg.TrailOn = TrailFavorable
	case TrailFavorable, TrailAlways:
	default:
		return nil, fmt.Errorf("ema_bb_turtle: unknown trail_on %q", cfg.TrailOn)
	}
	return &EMABBTurtle{EMABBTurtleConfig: cfg}, nil
}

// NewEMABBTurtleFromParams is the registry factory.
func NewEMABBTurtleFromParams(p Params) (Strategy, error) {
	cfg := EMABBTurtleConfigDefaults()
	var err error
	for _, s := range []struct {
		key string
		dst *string
	}{
		{"bands", &cfg.Bands}, {"atr", &cfg.ATR}, {"volume_ma", &cfg.VolumeMA}, {"trail_on", &cfg.TrailOn},
	} {
		if *s.dst, err = p.String(s.key, *s.dst); err != nil {
			return nil, err
		}
	}
	for _, f := range []struct {
		key string
		dst *float64
	}{
		{"volume_min", &cfg.VolumeMin}, {"volume_max", &cfg.VolumeMax},
		{"stop_atr", &cfg.StopATR}, {"target_atr", &cfg.TargetATR}, {"trail_atr", &cfg.TrailATR},
	} {
		if *f.dst, err = p.Float(f.key, *f.dst); err != nil {
			return nil, err
		}
	}
	if cfg.RegimeExit, err = p.Bool("regime_exit", cfg.RegimeExit); err != nil {
		return nil, err
	}
	maxBars, err := p.Float("max_bars", float64(cfg.MaxBars))
	if err != nil {
		return nil, err
	}
	cfg.MaxBars = int(maxBars)
	return NewEMABBTurtle(cfg)
}

func (s *EMABBTurtle) Name() string { return "ema_bb_turtle" }

func (s *EMABBTurtle) lower() string { return s.Bands + ".lower" }
func (s *EMABBTurtle) upper() string { return s.Bands + ".upper" }

func (s *EMABBTurtle) Requires() []string {
	req := []string{s.lower(), s.upper(), s.ATR}
	if s.VolumeMA != "" {
		req = append(req, s.VolumeMA)
	}
	return req
}

func (s *EMABBTurtle) Decide(in Input) Signal {
	if m := in.Snapshot.Missing(s.Requires()...); len(m) > 0 {
		return Hold(in.Bar, "warmup")
	}
	lower, _ := in.Snapshot.Get(s.lower())
	upper, _ := in.Snapshot.Get(s.upper())
	atr, _ := in.Snapshot.Get(s.ATR)

	px := in.Bar.Close
	crossedDown := s.havePrev && s.prevClose > s.prevLower && px <= lower
	crossedUp := s.havePrev && s.prevClose < s.prevUpper && px >= upper
	s.prevClose, s.prevLower, s.prevUpper, s.havePrev = px, lower, upper, true

	if in.Position != nil {
		return s.exit(in)
	}
	if !in.Regime.Ready || !s.volumeOK(in) {
		return Hold(in.Bar, "")
	}

	var intent sim.Intent
	switch {
	case in.Regime.Kind == regime.Bullish && crossedDown:
		intent = sim.EnterLong
	case in.Regime.Kind == regime.Bearish && crossedUp:
		intent = sim.EnterShort
	default:
		return Hold(in.Bar, "")
	}

	sign := intent.Direction().Sign()
	sig := Signal{
		Intent:   intent,
		Strength: in.Regime.Strength,
		BarTime:  in.Bar.OpenTime,
		Stop:     px - sign*atr*s.StopATR,
		Reason:   "bb_pullback",
	}
	if s.TargetATR > 0 {
		sig.Target = px + sign*atr*s.TargetATR
	}
	return sig
}

func (s *EMABBTurtle) exit(in Input) Signal {
	p := in.Position
	out := Signal{Intent: sim.ExitFor(p.Direction), Strength: 1, BarTime: in.Bar.OpenTime}

	if s.RegimeExit && in.Regime.Ready && p.Regime != "" && in.Regime.Kind.String() != p.Regime {
		out.Reason = "regime_exit"
		return out
	}
	if s.MaxBars > 0 && in.BarsInTrade >= s.MaxBars {
		out.Reason = "time_exit"
		return out
	}
	return Hold(in.Bar, "")
}

// volumeOK applies the volume/vol_ma window. A zero average passes.
func (s *EMABBTurtle) volumeOK(in Input) bool {
	if s.VolumeMA == "" {
		return true
	}
	avg, _ := in.Snapshot.Get(s.VolumeMA)
	if avg <= 0 {
		return true
	}
	ratio := in.Bar.Volume / avg
	if ratio < s.VolumeMin {
		return false
	}
	return s.VolumeMax <= 0 || ratio <= s.VolumeMax
}

// AdjustStop trails the stop TrailATR x ATR behind the close.
func (s *EMABBTurtle) AdjustStop(in Input) (float64, bool) {
	p := in.Position
	if p == nil || s.TrailATR <= 0 {
		return 0, false
	}
	atr, ok := in.Snapshot.Get(s.ATR)
	if !ok {
		return 0, false
	}
	sign := p.Direction.Sign()
	if s.TrailOn == TrailFavorable && (in.Bar.Close-p.EntryPrice)*sign <= 0 {
		return 0, false
	}
	return in.Bar.Close - sign*atr*s.TrailATR, true
}
