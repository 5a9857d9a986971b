// Package sim simulates fills for a single-position paper account.
package sim

import (
	"fmt"
	"strings"
	"time"
)

// Direction is the side of a position.
type Direction int

const (
	Flat  Direction = 0
	Long  Direction = 1
	Short Direction = -1
)

// Sign is +1 for long and -1 for short.
func (d Direction) Sign() float64 {
	return float64(d)
}

func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "flat"
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "long":
		*d = Long
	case "short":
		*d = Short
	case "flat", "":
		*d = Flat
	default:
		return fmt.Errorf("unknown direction %q", b)
	}
	return nil
}

// Position is the single open exposure of a session.
type Position struct {
	Direction  Direction `json:"direction"`
	Quantity   float64   `json:"quantity"`
	EntryPrice float64   `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`
	EntryBar   int       `json:"entry_bar"`
	Stop       float64   `json:"stop,omitempty"`
	Target     float64   `json:"target,omitempty"`
	EntryFee   float64   `json:"entry_fee"`
	Reason     string    `json:"reason,omitempty"`
	Regime     string    `json:"regime,omitempty"`
}

// Reserved is the capital set aside by the position.
func (p Position) Reserved() float64 {
	return p.Quantity * p.EntryPrice
}

// UnrealizedPnL marks the position at price, net of the entry fee.
func (p Position) UnrealizedPnL(price float64) float64 {
	return grossPnL(p.Direction, p.EntryPrice, price, p.Quantity) - p.EntryFee
}

// TightenStop moves the stop toward price, never away from it. It
// reports whether the stop changed.
func (p *Position) TightenStop(stop float64) bool {
	if stop <= 0 {
		return false
	}
	switch p.Direction {
	case Long:
		if p.Stop == 0 || stop > p.Stop {
			p.Stop = stop
			return true
		}
	case Short:
		if p.Stop == 0 || stop < p.Stop {
			p.Stop = stop
			return true
		}
	}
	return false
}
