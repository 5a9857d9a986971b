// Package session owns the per-stream trading state and the single
// ProcessBar entry point shared by backtest and live drivers.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/regimetrader/analytics"
	"github.com/rustyeddy/regimetrader/indicators"
	"github.com/rustyeddy/regimetrader/internal/id"
	"github.com/rustyeddy/regimetrader/market"
	"github.com/rustyeddy/regimetrader/regime"
	"github.com/rustyeddy/regimetrader/risk"
	"github.com/rustyeddy/regimetrader/sim"
	"github.com/rustyeddy/regimetrader/strategies"
)

var (
	ErrDuplicateBar  = errors.New("duplicate bar")
	ErrOutOfOrderBar = errors.New("out-of-order bar")
	ErrMalformedBar  = errors.New("malformed bar")
	ErrStopped       = errors.New("session stopped")
)

// Update describes what one accepted bar did.
type Update struct {
	SessionID string
	Bar       market.Bar
	Snapshot  indicators.Snapshot
	Regime    regime.State
	Signal    strategies.Signal

	// Quantity is the sized quantity of an entry signal, 0 otherwise.
	Quantity float64
	Opened   *sim.Position
	Closed   *sim.Trade
	Pending  bool

	Equity analytics.EquityPoint
	Events []Event
}

// Session is one symbol/timeframe stream. All methods are safe for
// concurrent use; ProcessBar calls are serialized.
type Session struct {
	mu sync.Mutex

	id       string
	cfg      Config
	strat    strategies.Strategy
	adjuster strategies.StopAdjuster
	required []string
	engine   *indicators.Engine
	sim      *sim.Simulator

	log        zerolog.Logger
	obs        Observer
	now        func() time.Time
	eventLimit int

	stopped  bool
	bars     int
	last     market.Bar
	haveLast bool

	equity float64
	peak   float64
	pos    *sim.Position
	trades []sim.Trade

	regime  regime.State
	regimes []regime.Point
	curve   []analytics.EquityPoint

	events []Event
	counts map[EventKind]int

	day         time.Time
	dayRealized float64
	dayTrades   int
}

// Option configures a Session.
type Option func(*Session)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.log = l }
}

func WithObserver(o Observer) Option {
	return func(s *Session) { s.obs = o }
}

// WithClock sets the clock used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithEventLimit bounds how many events are retained.
func WithEventLimit(n int) Option {
	return func(s *Session) { s.eventLimit = n }
}

// New validates cfg and builds a session around strat. Any configuration
// problem is returned here; a session that exists can always run.
func New(cfg Config, strat strategies.Strategy, opts ...Option) (*Session, error) {
	if strat == nil {
		return nil, errors.New("session: strategy is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	engine, err := indicators.NewEngine(cfg.Indicators)
	if err != nil {
		return nil, fmt.Errorf("session.indicators: %w", err)
	}

	required := cfg.Regime.Indicators()
	if err := checkInputs(cfg.Indicators, required, "regime"); err != nil {
		return nil, err
	}
	if r, ok := strat.(strategies.Requirer); ok {
		if err := checkInputs(cfg.Indicators, r.Requires(), "strategy "+strat.Name()); err != nil {
			return nil, err
		}
		required = append(required, r.Requires()...)
	}
	if cfg.Risk.NeedsVolatility() {
		if err := checkInputs(cfg.Indicators, []string{cfg.Risk.VolatilityIndicator}, "risk"); err != nil {
			return nil, err
		}
	}

	simulator, err := sim.New(cfg.Symbol, cfg.Execution)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:        cfg,
		strat:      strat,
		required:   required,
		engine:     engine,
		sim:        simulator,
		log:        zerolog.Nop(),
		now:        time.Now,
		eventLimit: DefaultEventLimit,
		equity:     cfg.StartingCapital,
		peak:       cfg.StartingCapital,
		counts:     make(map[EventKind]int),
	}
	s.adjuster, _ = strat.(strategies.StopAdjuster)

	for _, o := range opts {
		o(s)
	}
	if s.id == "" {
		s.id = id.New()
	}
	s.log = s.log.With().
		Str("session", s.id).
		Str("symbol", cfg.Symbol).
		Str("timeframe", cfg.Timeframe.String()).
		Logger()
	return s, nil
}

// ProcessBar runs one bar through indicators, regime, strategy, sizing
// and execution. A rejected bar returns an error wrapping ErrDuplicateBar,
// ErrOutOfOrderBar, ErrMalformedBar or ErrStopped and changes nothing but
// the event log.
func (s *Session) ProcessBar(b market.Bar) (Update, error) {
	start := time.Now()

	s.mu.Lock()
	upd, err := s.process(b)
	equity := s.equity
	s.mu.Unlock()

	s.notify(upd, err == nil, equity, time.Since(start))
	return upd, err
}

func (s *Session) process(b market.Bar) (Update, error) {
	upd := Update{SessionID: s.id, Bar: b}

	if s.stopped {
		return upd, ErrStopped
	}
	if err := s.admit(&b); err != nil {
		upd.Events = append(upd.Events, s.record(EventDataQuality, b.OpenTime, err.Error()))
		s.log.Warn().Err(err).Time("bar_time", b.OpenTime).Str("event", string(EventDataQuality)).Msg("bar rejected")
		return upd, err
	}
	upd.Bar = b

	idx := s.bars
	s.bars++
	s.last, s.haveLast = b, true
	s.rollDay(b.OpenTime)

	// a next-open order from the previous bar fills before anything else
	s.apply(s.sim.Settle(s.pos, b, idx), &upd)

	if s.pos != nil {
		if px, reason, hit := sim.CheckExit(*s.pos, b); hit {
			s.apply(s.sim.StopOut(s.pos, px, reason, b, idx), &upd)
		}
	}

	snap := s.engine.Update(b)
	s.regime = regime.Classify(snap, s.regime, s.cfg.Regime)
	s.regimes = append(s.regimes, regime.Point{Time: b.OpenTime, State: s.regime})
	upd.Snapshot = snap
	upd.Regime = s.regime

	if missing := snap.Missing(s.required...); len(missing) > 0 || !s.regime.Ready {
		upd.Events = append(upd.Events, s.record(EventInsufficientHistory, b.OpenTime,
			fmt.Sprintf("warming up, %d/%d bars", s.engine.Bars(), s.engine.Warmup())))
	}

	in := strategies.Input{Bar: b, Snapshot: snap, Regime: s.regime}
	if s.pos != nil {
		p := *s.pos
		in.Position = &p
		in.BarsInTrade = idx - s.pos.EntryBar
	}

	sig := s.strat.Decide(in)
	if sig.BarTime.IsZero() {
		sig.BarTime = b.OpenTime
	}
	upd.Signal = sig

	if s.pos != nil && s.adjuster != nil {
		if stop, ok := s.adjuster.AdjustStop(in); ok && s.pos.TightenStop(stop) {
			s.log.Debug().Time("bar_time", b.OpenTime).Float64("stop", stop).Msg("stop trailed")
		}
	}

	if sig.Intent != sim.Hold {
		s.decide(sig, b, snap, idx, &upd)
	}

	upd.Equity = s.mark(b)
	s.curve = append(s.curve, upd.Equity)
	return upd, nil
}

// admit validates b and checks it against the stream's ordering.
func (s *Session) admit(b *market.Bar) error {
	if b.Timeframe == 0 {
		b.Timeframe = s.cfg.Timeframe
	}
	if err := b.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedBar, err)
	}
	if _, err := sim.ParseIntent(b.Action); err != nil {
		return fmt.Errorf("%w: %w: action: %w", ErrMalformedBar, market.ErrInvalidBar, err)
	}
	if b.Symbol != s.cfg.Symbol || b.Timeframe != s.cfg.Timeframe {
		return fmt.Errorf("%w: bar %s does not belong to session %s", ErrMalformedBar, b.Key(), s.cfg.Key())
	}
	if s.haveLast {
		switch {
		case b.OpenTime.Equal(s.last.OpenTime):
			return fmt.Errorf("%w: %s already processed", ErrDuplicateBar, b.OpenTime.UTC().Format(time.RFC3339))
		case b.OpenTime.Before(s.last.OpenTime):
			return fmt.Errorf("%w: %s is before last bar %s", ErrOutOfOrderBar,
				b.OpenTime.UTC().Format(time.RFC3339), s.last.OpenTime.UTC().Format(time.RFC3339))
		}
	}
	return nil
}

// decide turns a non-hold signal into an order, or drops it with an event.
func (s *Session) decide(sig strategies.Signal, b market.Bar, snap indicators.Snapshot, idx int, upd *Update) {
	order := sim.Order{
		Intent: sig.Intent,
		Stop:   sig.Stop,
		Target: sig.Target,
		Reason: sig.Reason,
		Regime: s.regime.Kind.String(),
	}

	if err := s.sim.Check(s.pos, order); err != nil {
		s.drop(EventConflictingSignal, b, err, upd)
		return
	}

	if sig.Intent.IsEntry() {
		if d := s.guard(risk.TradeIntent{}, s.accountLimits()); !d.Allowed {
			s.drop(EventRiskLimit, b, fmt.Errorf("%v: %s", d.Codes(), d.Violations[0].Msg), upd)
			return
		}

		vol, _ := snap.Get(s.cfg.Risk.VolatilityIndicator)
		res, err := risk.Size(risk.Input{
			Direction:  sig.Intent.Direction(),
			Price:      b.Close,
			Stop:       sig.Stop,
			Equity:     s.equity,
			Volatility: vol,
			Stats:      risk.StatsFromPnL(s.pnls(), s.cfg.Risk.KellyLookback),
		}, s.cfg.Risk)
		if err != nil {
			s.drop(EventSizingDegenerate, b, err, upd)
			return
		}
		order.Quantity = res.Quantity
		if order.Stop == 0 && res.Policy == risk.PolicyRiskPercent && res.StopDistance > 0 {
			order.Stop = b.Close - sig.Intent.Direction().Sign()*res.StopDistance
		}

		intent := risk.TradeIntent{Quantity: order.Quantity, Entry: b.Close, Stop: order.Stop, Target: order.Target}
		if d := s.guard(intent, s.plannedLimits()); !d.Allowed {
			s.drop(EventRiskLimit, b, fmt.Errorf("%v: %s", d.Codes(), d.Violations[0].Msg), upd)
			return
		}
		upd.Quantity = order.Quantity
	}

	fill, err := s.sim.Apply(s.pos, order, b, idx)
	if err != nil {
		s.drop(EventConflictingSignal, b, err, upd)
		return
	}
	upd.Pending = fill.Pending
	s.apply(fill, upd)
}

func (s *Session) accountLimits() risk.Limits {
	l := s.cfg.Guard
	l.MaxRiskPct, l.MinRR = 0, 0
	return l
}

func (s *Session) plannedLimits() risk.Limits {
	return risk.Limits{MaxRiskPct: s.cfg.Guard.MaxRiskPct, MinRR: s.cfg.Guard.MinRR}
}

func (s *Session) guard(intent risk.TradeIntent, l risk.Limits) risk.Decision {
	return risk.Evaluate(l, intent,
		risk.AccountSnapshot{StartingCapital: s.cfg.StartingCapital, Equity: s.equity, PeakEquity: s.peak},
		risk.PnLSnapshot{DayRealized: s.dayRealized, DayTrades: s.dayTrades})
}

func (s *Session) drop(kind EventKind, b market.Bar, err error, upd *Update) {
	upd.Events = append(upd.Events, s.record(kind, b.OpenTime, err.Error()))
	s.log.Info().Err(err).Time("bar_time", b.OpenTime).Str("event", string(kind)).Msg("signal dropped")
}

// apply folds a fill into the session state.
func (s *Session) apply(f sim.Fill, upd *Update) {
	if f.Closed != nil {
		t := *f.Closed
		t.Seq = len(s.trades) + 1
		s.trades = append(s.trades, t)
		s.pos = nil

		s.equity += t.PnL
		if s.equity > s.peak {
			s.peak = s.equity
		}
		s.dayRealized += t.PnL
		upd.Closed = &t

		s.log.Info().
			Int("seq", t.Seq).
			Str("direction", t.Direction.String()).
			Float64("entry", t.EntryPrice).
			Float64("exit", t.ExitPrice).
			Float64("pnl", t.PnL).
			Str("reason", t.ExitReason).
			Time("bar_time", t.ExitTime).
			Msg("trade closed")
	}
	if f.Opened != nil {
		s.pos = f.Opened
		s.dayTrades++
		p := *f.Opened
		upd.Opened = &p

		s.log.Info().
			Str("direction", p.Direction.String()).
			Float64("qty", p.Quantity).
			Float64("entry", p.EntryPrice).
			Float64("stop", p.Stop).
			Str("reason", p.Reason).
			Time("bar_time", p.EntryTime).
			Msg("position opened")
	}
}

func (s *Session) mark(b market.Bar) analytics.EquityPoint {
	pt := analytics.EquityPoint{Time: b.OpenTime, Equity: s.equity, Mark: s.equity}
	if s.pos != nil {
		pt.Mark += s.pos.UnrealizedPnL(b.Close)
	}
	return pt
}

// rollDay resets the daily guard counters on the first bar of a UTC day.
func (s *Session) rollDay(t time.Time) {
	day := t.UTC().Truncate(24 * time.Hour)
	if !day.Equal(s.day) {
		s.day = day
		s.dayRealized = 0
		s.dayTrades = 0
	}
}

func (s *Session) pnls() []float64 {
	out := make([]float64, len(s.trades))
	for i, t := range s.trades {
		out[i] = t.PnL
	}
	return out
}

func (s *Session) record(kind EventKind, barTime time.Time, detail string) Event {
	ev := Event{Kind: kind, Time: s.now(), BarTime: barTime, Detail: detail}
	s.counts[kind]++
	s.events = append(s.events, ev)
	if s.eventLimit > 0 && len(s.events) > s.eventLimit {
		s.events = append(s.events[:0:0], s.events[len(s.events)-s.eventLimit:]...)
	}
	return ev
}

// RecordEvent logs an event raised outside ProcessBar, such as a live
// queue overflow.
func (s *Session) RecordEvent(kind EventKind, barTime time.Time, detail string) {
	s.mu.Lock()
	ev := s.record(kind, barTime, detail)
	s.mu.Unlock()

	s.log.Warn().Time("bar_time", barTime).Str("event", string(kind)).Msg(detail)
	if s.obs != nil {
		s.obs.ObserveEvent(s.cfg.Symbol, s.cfg.Timeframe.String(), string(ev.Kind))
	}
}

func (s *Session) notify(upd Update, accepted bool, equity float64, d time.Duration) {
	if s.obs == nil {
		return
	}
	sym, tf := s.cfg.Symbol, s.cfg.Timeframe.String()
	s.obs.ObserveBar(sym, tf, accepted, d)
	for _, ev := range upd.Events {
		s.obs.ObserveEvent(sym, tf, string(ev.Kind))
	}
	if upd.Closed != nil {
		s.obs.ObserveTrade(sym, tf, upd.Closed.PnL)
	}
	if accepted {
		s.obs.ObserveEquity(sym, tf, equity)
	}
}

// Stop waits for any in-flight bar and refuses later ones. An order
// queued for the next open is cancelled; an open position stays open.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	if o, ok := s.sim.Pending(); ok {
		s.log.Info().Str("intent", o.Intent.String()).Msg("pending order cancelled")
	}
	s.sim.Cancel()
}

// Flatten closes the open position at the last accepted bar's close. It
// returns nil when there is nothing to close.
func (s *Session) Flatten(reason string) (*sim.Trade, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, ErrStopped
	}
	if s.pos == nil || !s.haveLast {
		s.mu.Unlock()
		return nil, nil
	}

	var upd Update
	s.apply(s.sim.StopOut(s.pos, s.last.Close, reason, s.last, s.bars-1), &upd)
	if len(s.curve) > 0 {
		s.curve[len(s.curve)-1] = s.mark(s.last)
	}
	s.mu.Unlock()

	if s.obs != nil && upd.Closed != nil {
		sym, tf := s.cfg.Symbol, s.cfg.Timeframe.String()
		s.obs.ObserveTrade(sym, tf, upd.Closed.PnL)
		s.obs.ObserveEquity(sym, tf, s.Equity())
	}
	return upd.Closed, nil
}

// Close stops the session and returns its summary.
func (s *Session) Close() analytics.Summary {
	s.Stop()
	return s.Summary()
}

// Summary computes performance statistics over the session so far.
func (s *Session) Summary() analytics.Summary {
	s.mu.Lock()
	in := analytics.Input{
		Symbol:          s.cfg.Symbol,
		Timeframe:       s.cfg.Timeframe.String(),
		Strategy:        s.strat.Name(),
		StartingCapital: s.cfg.StartingCapital,
		Trades:          append([]sim.Trade(nil), s.trades...),
		Curve:           append([]analytics.EquityPoint(nil), s.curve...),
		PeriodsPerYear:  s.cfg.Timeframe.PeriodsPerYear(),
	}
	s.mu.Unlock()
	return analytics.Compute(in)
}

func (s *Session) ID() string { return s.id }

func (s *Session) Key() string { return s.cfg.Key() }

func (s *Session) Config() Config { return s.cfg }

func (s *Session) StrategyName() string { return s.strat.Name() }

// Equity is starting capital plus realized P/L.
func (s *Session) Equity() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.equity
}

// Position returns a copy of the open position, or nil when flat.
func (s *Session) Position() *sim.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos == nil {
		return nil
	}
	p := *s.pos
	return &p
}

// Trades returns the closed-trade ledger in exit order.
func (s *Session) Trades() []sim.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sim.Trade(nil), s.trades...)
}

func (s *Session) RegimeHistory() []regime.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]regime.Point(nil), s.regimes...)
}

func (s *Session) EquityCurve() []analytics.EquityPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]analytics.EquityPoint(nil), s.curve...)
}

func (s *Session) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// EventCounts returns the number of events of every kind ever recorded.
func (s *Session) EventCounts() map[EventKind]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[EventKind]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// LastBar returns the last accepted bar.
func (s *Session) LastBar() (market.Bar, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.haveLast
}

// Bars is the number of accepted bars.
func (s *Session) Bars() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bars
}

func (s *Session) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
