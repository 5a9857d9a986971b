// Package market holds the bar model shared by every stage of the engine.
package market

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidBar is wrapped by every Validate failure.
var ErrInvalidBar = errors.New("invalid bar")

// Bar is one closed OHLCV interval. Bars are values and are never
// modified once they enter a session.
type Bar struct {
	Symbol    string    `json:"symbol"`
	Exchange  string    `json:"exchange,omitempty"`
	Timeframe Timeframe `json:"timeframe"`
	OpenTime  time.Time `json:"open_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`

	// Action is an optional instruction carried by an external signal
	// source ("buy", "sell", "close_long", ...). Only the external
	// strategy reads it.
	Action string `json:"action,omitempty"`
}

// Key identifies the stream a bar belongs to.
func (b Bar) Key() string {
	return StreamKey(b.Symbol, b.Timeframe)
}

// StreamKey joins a symbol and timeframe into a session key.
func StreamKey(symbol string, tf Timeframe) string {
	return symbol + "|" + tf.String()
}

// Range is High - Low.
func (b Bar) Range() float64 {
	return b.High - b.Low
}

// Validate reports the first structural problem with b.
func (b Bar) Validate() error {
	if b.Symbol == "" {
		return fmt.Errorf("%w: symbol is empty", ErrInvalidBar)
	}
	if b.OpenTime.IsZero() {
		return fmt.Errorf("%w: open_time is zero", ErrInvalidBar)
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"open", b.Open}, {"high", b.High}, {"low", b.Low}, {"close", b.Close},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v <= 0 {
			return fmt.Errorf("%w: %s must be a positive number, got %v", ErrInvalidBar, f.name, f.v)
		}
	}
	if math.IsNaN(b.Volume) || math.IsInf(b.Volume, 0) || b.Volume < 0 {
		return fmt.Errorf("%w: volume must be non-negative, got %v", ErrInvalidBar, b.Volume)
	}
	if b.High < math.Max(b.Open, b.Close) {
		return fmt.Errorf("%w: high %v below open/close", ErrInvalidBar, b.High)
	}
	if b.Low > math.Min(b.Open, b.Close) {
		return fmt.Errorf("%w: low %v above open/close", ErrInvalidBar, b.Low)
	}
	return nil
}

func (b Bar) String() string {
	return fmt.Sprintf("%s %s %s O=%.5f H=%.5f L=%.5f C=%.5f V=%.2f",
		b.Symbol, b.Timeframe, b.OpenTime.UTC().Format(time.RFC3339),
		b.Open, b.High, b.Low, b.Close, b.Volume)
}
