package sim

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/regimetrader/market"
)

// ErrConflictingSignal is returned for an entry while a position is open
// or pending, or an exit that does not match the open position.
var ErrConflictingSignal = errors.New("conflicting signal")

// Intent is what a strategy asks for on one bar.
type Intent int

const (
	Hold Intent = iota
	EnterLong
	EnterShort
	ExitLong
	ExitShort
)

func (i Intent) String() string {
	switch i {
	case Hold:
		return "hold"
	case EnterLong:
		return "enter_long"
	case EnterShort:
		return "enter_short"
	case ExitLong:
		return "exit_long"
	case ExitShort:
		return "exit_short"
	}
	return "unknown"
}

// ParseIntent accepts the names above plus the webhook verbs buy, sell,
// long, short, close_long and close_short.
func ParseIntent(s string) (Intent, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hold", "none":
		return Hold, nil
	case "enter_long", "buy", "long":
		return EnterLong, nil
	case "enter_short", "sell", "short":
		return EnterShort, nil
	case "exit_long", "close_long":
		return ExitLong, nil
	case "exit_short", "close_short":
		return ExitShort, nil
	}
	return Hold, fmt.Errorf("unknown intent %q", s)
}

func (i Intent) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

func (i *Intent) UnmarshalText(b []byte) error {
	v, err := ParseIntent(string(b))
	if err != nil {
		return err
	}
	*i = v
	return nil
}

func (i Intent) IsEntry() bool { return i == EnterLong || i == EnterShort }
func (i Intent) IsExit() bool { return i == ExitLong || i == ExitShort }

// Direction is the side the intent opens or closes.
func (i Intent) Direction() Direction {
	switch i {
	case EnterLong, ExitLong:
		return Long
	case EnterShort, ExitShort:
		return Short
	}
	return Flat
}

// ExitFor returns the exit intent that closes a position of direction d.
func ExitFor(d Direction) Intent {
	if d == Short {
		return ExitShort
	}
	return ExitLong
}

// FillTiming selects the reference price for orders.
type FillTiming int

const (
	// FillClose fills at the close of the signalling bar.
	FillClose FillTiming = iota
	// FillNextOpen fills at the open of the following bar.
	FillNextOpen
)

func (f FillTiming) String() string {
	if f == FillNextOpen {
		return "next_open"
	}
	return "close"
}

func (f FillTiming) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *FillTiming) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "close", "":
		*f = FillClose
	case "next_open", "next-open":
		*f = FillNextOpen
	default:
		return fmt.Errorf("unknown fill timing %q", b)
	}
	return nil
}

// Config is fixed for the lifetime of a session.
type Config struct {
	FillTiming FillTiming `json:"fill_timing" yaml:"fill_timing"`
	Slippage   CostModel  `json:"slippage" yaml:"slippage"`
	Fee        CostModel  `json:"fee" yaml:"fee"`
}

func (c Config) Validate() error {
	if c.FillTiming != FillClose && c.FillTiming != FillNextOpen {
		return fmt.Errorf("execution.fill_timing is invalid")
	}
	if err := c.Slippage.validate("slippage", CostPercent, CostAbsolute); err != nil {
		return err
	}
	return c.Fee.validate("fee", CostPercent, CostFixed)
}

// Order is a sized signal handed to the simulator.
type Order struct {
	Intent   Intent
	Quantity float64
	Stop     float64
	Target   float64
	Reason   string
	Regime   string
}

// Fill is the outcome of Apply or Settle. At most one of Opened and
// Closed is set; Pending means the order waits for the next bar.
type Fill struct {
	Opened  *Position
	Closed  *Trade
	Price   float64
	Pending bool
}

// Simulator turns orders into positions and trades. It holds only the
// order queued for the next open; the position itself belongs to the
// caller.
type Simulator struct {
	cfg     Config
	symbol  string
	pending *Order
}

// New validates cfg and returns a simulator for symbol.
func New(symbol string, cfg Config) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Simulator{cfg: cfg, symbol: symbol}, nil
}

func (s *Simulator) Config() Config {
	return s.cfg
}

// Pending returns the order queued for the next bar, if any.
func (s *Simulator) Pending() (Order, bool) {
	if s.pending == nil {
		return Order{}, false
	}
	return *s.pending, true
}

// Check reports whether o is consistent with pos and the pending queue
// without changing anything.
func (s *Simulator) Check(pos *Position, o Order) error {
	switch {
	case o.Intent == Hold:
		return nil
	case s.pending != nil:
		return fmt.Errorf("%w: %s while %s is pending", ErrConflictingSignal, o.Intent, s.pending.Intent)
	case o.Intent.IsEntry() && pos != nil:
		return fmt.Errorf("%w: %s while %s position is open", ErrConflictingSignal, o.Intent, pos.Direction)
	case o.Intent.IsExit() && pos == nil:
		return fmt.Errorf("%w: %s while flat", ErrConflictingSignal, o.Intent)
	case o.Intent.IsExit() && pos.Direction != o.Intent.Direction():
		return fmt.Errorf("%w: %s against %s position", ErrConflictingSignal, o.Intent, pos.Direction)
	}
	return nil
}

// Apply executes o against bar b (index barIndex within the session).
// With FillNextOpen the order is queued and Fill.Pending is set.
func (s *Simulator) Apply(pos *Position, o Order, b market.Bar, barIndex int) (Fill, error) {
	if err := s.Check(pos, o); err != nil {
		return Fill{}, err
	}
	if o.Intent == Hold {
		return Fill{}, nil
	}
	if o.Intent.IsEntry() && o.Quantity <= 0 {
		return Fill{}, fmt.Errorf("entry quantity must be positive, got %v", o.Quantity)
	}

	if s.cfg.FillTiming == FillNextOpen {
		q := o
		s.pending = &q
		return Fill{Pending: true}, nil
	}
	return s.execute(pos, o, b.Close, b.OpenTime, barIndex), nil
}

// Settle fills a queued order at the open of b. It is a no-op when
// nothing is queued.
func (s *Simulator) Settle(pos *Position, b market.Bar, barIndex int) Fill {
	if s.pending == nil {
		return Fill{}
	}
	o := *s.pending
	s.pending = nil
	return s.execute(pos, o, b.Open, b.OpenTime, barIndex)
}

// Cancel drops a queued order.
func (s *Simulator) Cancel() {
	s.pending = nil
}

// StopOut closes pos at a triggered stop or target price. Resting exits
// fill intrabar regardless of fill timing.
func (s *Simulator) StopOut(pos *Position, price float64, reason string, b market.Bar, barIndex int) Fill {
	s.pending = nil
	return s.execute(pos, Order{Intent: ExitFor(pos.Direction), Reason: reason}, price, b.OpenTime, barIndex)
}

func (s *Simulator) execute(pos *Position, o Order, ref float64, at time.Time, barIndex int) Fill {
	if o.Intent.IsEntry() {
		d := o.Intent.Direction()
		px := s.cfg.Slippage.Slip(ref, d == Long)
		p := &Position{
			Direction:  d,
			Quantity:   o.Quantity,
			EntryPrice: px,
			EntryTime:  at,
			EntryBar:   barIndex,
			Stop:       o.Stop,
			Target:     o.Target,
			EntryFee:   s.cfg.Fee.Fee(o.Quantity * px),
			Reason:     o.Reason,
			Regime:     o.Regime,
		}
		return Fill{Opened: p, Price: px}
	}

	// closing a short buys back
	px := s.cfg.Slippage.Slip(ref, pos.Direction == Short)
	exitFee := s.cfg.Fee.Fee(pos.Quantity * px)
	fees := pos.EntryFee + exitFee
	pnl := grossPnL(pos.Direction, pos.EntryPrice, px, pos.Quantity) - fees

	t := &Trade{
		Symbol:       s.symbol,
		Direction:    pos.Direction,
		EntryTime:    pos.EntryTime,
		ExitTime:     at,
		EntryPrice:   pos.EntryPrice,
		ExitPrice:    px,
		Quantity:     pos.Quantity,
		Fees:         fees,
		PnL:          pnl,
		ReturnPct:    ReturnPct(pnl, pos.EntryPrice, pos.Quantity),
		DurationBars: barIndex - pos.EntryBar,
		EntryReason:  pos.Reason,
		ExitReason:   o.Reason,
		Regime:       pos.Regime,
	}
	return Fill{Closed: t, Price: px}
}
