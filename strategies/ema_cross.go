package strategies

import (
	"errors"
	"fmt"

	"github.com/rustyeddy/regimetrader/regime"
	"github.com/rustyeddy/regimetrader/sim"
)

// EMACross trades a fast/slow EMA crossover.
//   - Enters only on a cross, and only when the regime does not oppose it
//   - Exits on the opposite cross
//   - Stop is StopATR x ATR from the entry close when StopATR > 0
type EMACross struct {
	EMACrossConfig

	lastDiff     float64
	haveLastDiff bool
}

type EMACrossConfig struct {
	Fast         string  `json:"fast" yaml:"fast"`
	Slow         string  `json:"slow" yaml:"slow"`
	ATR          string  `json:"atr" yaml:"atr"`
	StopATR      float64 `json:"stop_atr" yaml:"stop_atr"`
	RegimeFilter bool    `json:"regime_filter" yaml:"regime_filter"`
}

func EMACrossConfigDefaults() EMACrossConfig {
	return EMACrossConfig{
		Fast:         "ema_fast",
		Slow:         "ema_slow",
		ATR:          "atr",
		StopATR:      2,
		RegimeFilter: true,
	}
}

func NewEMACross(cfg EMACrossConfig) (*EMACross, error) {
	if cfg.Fast == "" || cfg.Slow == "" {
		return nil, errors.New("ema_cross: fast and slow indicator names are required")
	}
	if cfg.Fast == cfg.Slow {
		return nil, fmt.Errorf("ema_cross: fast and slow are both %q", cfg.Fast)
	}
	if cfg.StopATR < 0 {
		return nil, errors.New("ema_cross: stop_atr must be >= 0")
	}
	return &EMACross{EMACrossConfig: cfg}, nil
}

// NewEMACrossFromParams is the registry factory.
func NewEMACrossFromParams(p Params) (Strategy, error) {
	cfg := EMACrossConfigDefaults()
	var err error
	if cfg.Fast, err = p.String("fast", cfg.Fast); err != nil {
		return nil, err
	}
	if cfg.Slow, err = p.String("slow", cfg.Slow); err != nil {
		return nil, err
	}
	if cfg.ATR, err = p.String("atr", cfg.ATR); err != nil {
		return nil, err
	}
	if cfg.StopATR, err = p.Float("stop_atr", cfg.StopATR); err != nil {
		return nil, err
	}
	if cfg.RegimeFilter, err = p.Bool("regime_filter", cfg.RegimeFilter); err != nil {
		return nil, err
	}
	return NewEMACross(cfg)
}

func (s *EMACross) Name() string { return "ema_cross" }

func (s *EMACross) Requires() []string {
	req := []string{s.Fast, s.Slow}
	if s.StopATR > 0 {
		req = append(req, s.ATR)
	}
	return req
}

func (s *EMACross) Decide(in Input) Signal {
	if m := in.Snapshot.Missing(s.Requires()...); len(m) > 0 {
		return Hold(in.Bar, "warmup")
	}
	fast, _ := in.Snapshot.Get(s.Fast)
	slow, _ := in.Snapshot.Get(s.Slow)
	diff := fast - slow

	// Need a previous diff to detect a cross.
	if !s.haveLastDiff {
		s.lastDiff = diff
		s.haveLastDiff = true
		return Hold(in.Bar, "")
	}

	bullCross := diff > 0 && s.lastDiff <= 0
	bearCross := diff < 0 && s.lastDiff >= 0
	s.lastDiff = diff

	if in.Position != nil {
		switch {
		case in.Position.Direction == sim.Long && bearCross:
			return Signal{Intent: sim.ExitLong, Strength: 1, BarTime: in.Bar.OpenTime, Reason: "ema_cross_down"}
		case in.Position.Direction == sim.Short && bullCross:
			return Signal{Intent: sim.ExitShort, Strength: 1, BarTime: in.Bar.OpenTime, Reason: "ema_cross_up"}
		}
		return Hold(in.Bar, "")
	}

	var intent sim.Intent
	switch {
	case bullCross && s.allows(in.Regime, regime.Bearish):
		intent = sim.EnterLong
	case bearCross && s.allows(in.Regime, regime.Bullish):
		intent = sim.EnterShort
	default:
		return Hold(in.Bar, "")
	}

	sig := Signal{
		Intent:   intent,
		Strength: in.Regime.Strength,
		BarTime:  in.Bar.OpenTime,
		Reason:   "ema_cross",
	}
	if s.StopATR > 0 {
		atr, _ := in.Snapshot.Get(s.ATR)
		sig.Stop = in.Bar.Close - intent.Direction().Sign()*atr*s.StopATR
	}
	return sig
}

// allows reports whether the regime filter lets a trade through. A regime
// that has not warmed up blocks entries.
func (s *EMACross) allows(st regime.State, opposed regime.Kind) bool {
	if !s.RegimeFilter {
		return true
	}
	return st.Ready && st.Kind != opposed
}
