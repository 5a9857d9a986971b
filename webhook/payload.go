package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/regimetrader/market"
)

// ErrPlaceholder means an alert template variable was sent unreplaced,
// e.g. "{{close}}".
var ErrPlaceholder = errors.New("unreplaced template placeholder")

func isPlaceholder(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{{") && strings.HasSuffix(s, "}}")
}

// Number accepts a JSON number or a numeric string.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		if isPlaceholder(s) {
			return fmt.Errorf("%w: %s", ErrPlaceholder, s)
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", s)
	}
	*n = Number(f)
	return nil
}

// Stamp accepts an epoch number (s, ms or µs), a numeric string or an
// RFC3339 string.
type Stamp struct {
	Time time.Time
}

func (t *Stamp) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		if isPlaceholder(s) {
			return fmt.Errorf("%w: %s", ErrPlaceholder, s)
		}
	}
	v, err := market.ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = v
	return nil
}

// Payload is a TradingView alert body. Alternate field names used by
// common alert templates (ticker, interval, time, price) are accepted.
type Payload struct {
	Symbol       string `json:"symbol" validate:"required"`
	Ticker       string `json:"ticker,omitempty"`
	Exchange     string `json:"exchange" default:"BINANCE"`
	Timeframe    string `json:"timeframe" validate:"required"`
	Interval     string `json:"interval,omitempty"`
	Timestamp    Stamp  `json:"timestamp"`
	AltTime      Stamp  `json:"time"`
	Open         Number `json:"open" validate:"gte=0"`
	High         Number `json:"high" validate:"gte=0"`
	Low          Number `json:"low" validate:"gte=0"`
	Close        Number `json:"close" validate:"gt=0"`
	Price        Number `json:"price,omitempty"`
	Volume       Number `json:"volume" validate:"gte=0"`
	Action       string `json:"action,omitempty" validate:"omitempty,oneof=buy sell long short close_long close_short exit_long exit_short enter_long enter_short hold none"`
	StrategyName string `json:"strategy_name,omitempty"`
	Secret       string `json:"secret,omitempty"`
}

// normalize folds alternate fields into the canonical ones. It runs
// before validation.
func (p *Payload) normalize() {
	p.Symbol = strings.TrimSpace(p.Symbol)
	if p.Symbol == "" {
		p.Symbol = strings.TrimSpace(p.Ticker)
	}
	p.Timeframe = strings.TrimSpace(p.Timeframe)
	if p.Timeframe == "" {
		p.Timeframe = strings.TrimSpace(p.Interval)
	}
	if p.Timestamp.Time.IsZero() {
		p.Timestamp = p.AltTime
	}
	if p.Close == 0 {
		p.Close = p.Price
	}
	if p.Open == 0 {
		p.Open = p.Close
	}
	if p.High == 0 {
		p.High = max(p.Open, p.Close)
	}
	if p.Low == 0 {
		p.Low = min(p.Open, p.Close)
	}
	p.Action = strings.ToLower(strings.TrimSpace(p.Action))
}

// placeholders lists string fields still holding template variables.
func (p *Payload) placeholders() []string {
	var out []string
	for _, f := range []struct{ name, v string }{
		{"symbol", p.Symbol},
		{"exchange", p.Exchange},
		{"timeframe", p.Timeframe},
		{"action", p.Action},
	} {
		if isPlaceholder(f.v) {
			out = append(out, f.name)
		}
	}
	return out
}

// Bar converts a validated payload. A missing timestamp takes the start of
// the timeframe period containing now.
func (p *Payload) Bar(now time.Time) (market.Bar, error) {
	tf, err := market.ParseTimeframe(p.Timeframe)
	if err != nil {
		return market.Bar{}, err
	}

	ts := p.Timestamp.Time
	if ts.IsZero() {
		ts = now.UTC().Truncate(tf.Duration())
	}

	b := market.Bar{
		Symbol:    p.Symbol,
		Exchange:  p.Exchange,
		Timeframe: tf,
		OpenTime:  ts.UTC(),
		Open:      float64(p.Open),
		High:      float64(p.High),
		Low:       float64(p.Low),
		Close:     float64(p.Close),
		Volume:    float64(p.Volume),
		Action:    p.Action,
	}
	if err := b.Validate(); err != nil {
		return market.Bar{}, err
	}
	return b, nil
}
