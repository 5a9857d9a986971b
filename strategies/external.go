package strategies

import (
	"time"

	"github.com/rustyeddy/regimetrader/sim"
)

// External follows the action carried on each bar, e.g. a TradingView
// alert's "action" field or an "action" column in a CSV replay. Bars
// without an action hold.
type External struct{}

func (External) Name() string { return "external" }

func (External) Decide(in Input) Signal {
	intent, err := sim.ParseIntent(in.Bar.Action)
	if err != nil || intent == sim.Hold {
		return Hold(in.Bar, "")
	}

	// "sell" while long means close, not reverse
	if in.Position != nil && intent.IsEntry() && intent.Direction() != in.Position.Direction {
		intent = sim.ExitFor(in.Position.Direction)
	}
	return Signal{Intent: intent, Strength: 1, BarTime: in.Bar.OpenTime, Reason: "external:" + in.Bar.Action}
}

// Scripted emits preset intents at preset bar times. It is used to replay
// recorded decisions and in tests.
type Scripted struct {
	Script map[time.Time]sim.Intent
	Stops  map[time.Time]float64
}

func (s *Scripted) Name() string { return "scripted" }

func (s *Scripted) Decide(in Input) Signal {
	intent, ok := s.Script[in.Bar.OpenTime]
	if !ok {
		return Hold(in.Bar, "")
	}
	return Signal{
		Intent:   intent,
		Strength: 1,
		BarTime:  in.Bar.OpenTime,
		Stop:     s.Stops[in.Bar.OpenTime],
		Reason:   "scripted",
	}
}
