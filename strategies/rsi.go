package strategies

import (
	"errors"

	"github.com/rustyeddy/regimetrader/regime"
	"github.com/rustyeddy/regimetrader/sim"
)

// RSIReversion fades RSI extremes while the market is ranging and exits
// at the midline.
type RSIReversion struct {
	RSIReversionConfig
}

type RSIReversionConfig struct {
	RSI        string  `json:"rsi" yaml:"rsi"`
	ATR        string  `json:"atr" yaml:"atr"`
	Oversold   float64 `json:"oversold" yaml:"oversold"`
	Overbought float64 `json:"overbought" yaml:"overbought"`
	Midline    float64 `json:"midline" yaml:"midline"`
	StopATR    float64 `json:"stop_atr" yaml:"stop_atr"`
}

func RSIReversionConfigDefaults() RSIReversionConfig {
	return RSIReversionConfig{
		RSI:        "rsi",
		ATR:        "atr",
		Oversold:   30,
		Overbought: 70,
		Midline:    50,
		StopATR:    2,
	}
}

func NewRSIReversion(cfg RSIReversionConfig) (*RSIReversion, error) {
	if cfg.RSI == "" {
		return nil, errors.New("rsi_reversion: rsi indicator name is required")
	}
	if !(0 < cfg.Oversold && cfg.Oversold < cfg.Midline && cfg.Midline < cfg.Overbought && cfg.Overbought < 100) {
		return nil, errors.New("rsi_reversion: need 0 < oversold < midline < overbought < 100")
	}
	if cfg.StopATR < 0 {
		return nil, errors.New("rsi_reversion: stop_atr must be >= 0")
	}
	return &RSIReversion{RSIReversionConfig: cfg}, nil
}

// NewRSIReversionFromParams is the registry factory.
func NewRSIReversionFromParams(p Params) (Strategy, error) {
	cfg := RSIReversionConfigDefaults()
	var err error
	if cfg.RSI, err = p.String("rsi", cfg.RSI); err != nil {
		return nil, err
	}
	if cfg.ATR, err = p.String("atr", cfg.ATR); err != nil {
		return nil, err
	}
	for _, f := range []struct {
		key string
		dst *float64
	}{
		{"oversold", &cfg.Oversold}, {"overbought", &cfg.Overbought},
		{"midline", &cfg.Midline}, {"stop_atr", &cfg.StopATR},
	} {
		if *f.dst, err = p.Float(f.key, *f.dst); err != nil {
			return nil, err
		}
	}
	return NewRSIReversion(cfg)
}

func (s *RSIReversion) Name() string { return "rsi_reversion" }

func (s *RSIReversion) Requires() []string {
	if s.StopATR > 0 {
		return []string{s.RSI, s.ATR}
	}
	return []string{s.RSI}
}

func (s *RSIReversion) Decide(in Input) Signal {
	if m := in.Snapshot.Missing(s.Requires()...); len(m) > 0 {
		return Hold(in.Bar, "warmup")
	}
	rsi, _ := in.Snapshot.Get(s.RSI)

	if p := in.Position; p != nil {
		if (p.Direction == sim.Long && rsi >= s.Midline) || (p.Direction == sim.Short && rsi <= s.Midline) {
			return Signal{Intent: sim.ExitFor(p.Direction), Strength: 1, BarTime: in.Bar.OpenTime, Reason: "rsi_midline"}
		}
		return Hold(in.Bar, "")
	}

	if !in.Regime.Ready || in.Regime.Kind != regime.Sideways {
		return Hold(in.Bar, "")
	}

	var intent sim.Intent
	var strength float64
	switch {
	case rsi <= s.Oversold:
		intent, strength = sim.EnterLong, (s.Oversold-rsi)/s.Oversold
	case rsi >= s.Overbought:
		intent, strength = sim.EnterShort, (rsi-s.Overbought)/(100-s.Overbought)
	default:
		return Hold(in.Bar, "")
	}

	sig := Signal{Intent: intent, Strength: clamp01(strength), BarTime: in.Bar.OpenTime, Reason: "rsi_extreme"}
	if s.StopATR > 0 {
		atr, _ := in.Snapshot.Get(s.ATR)
		sig.Stop = in.Bar.Close - intent.Direction().Sign()*atr*s.StopATR
	}
	return sig
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
