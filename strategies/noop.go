package strategies

// Noop never trades.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) Decide(in Input) Signal {
	return Hold(in.Bar, "")
}
