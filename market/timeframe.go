package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Timeframe is the bar interval.
type Timeframe time.Duration

const (
	M1  = Timeframe(time.Minute)
	M5  = Timeframe(5 * time.Minute)
	M15 = Timeframe(15 * time.Minute)
	M30 = Timeframe(30 * time.Minute)
	H1  = Timeframe(time.Hour)
	H4  = Timeframe(4 * time.Hour)
	D1  = Timeframe(24 * time.Hour)
	W1  = Timeframe(7 * 24 * time.Hour)
)

const year = 365 * 24 * time.Hour

// ParseTimeframe accepts "15m", "1h", "4h", "1d", "1w" style strings as
// well as TradingView's interval values ("1", "60", "240", "D", "W").
func ParseTimeframe(s string) (Timeframe, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty timeframe")
	}

	switch strings.ToUpper(s) {
	case "D", "1D":
		return D1, nil
	case "W", "1W":
		return W1, nil
	}

	// bare minutes, as TradingView sends them
	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("invalid timeframe %q", s)
		}
		return Timeframe(time.Duration(n) * time.Minute), nil
	}

	unit := s[len(s)-1]
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid timeframe %q", s)
	}
	switch unit {
	case 'm':
		return Timeframe(time.Duration(n) * time.Minute), nil
	case 'h', 'H':
		return Timeframe(time.Duration(n) * time.Hour), nil
	case 'd':
		return Timeframe(time.Duration(n) * 24 * time.Hour), nil
	case 'w':
		return Timeframe(time.Duration(n) * 7 * 24 * time.Hour), nil
	}
	return 0, fmt.Errorf("invalid timeframe %q", s)
}

// MustTimeframe is ParseTimeframe for constants and tests.
func MustTimeframe(s string) Timeframe {
	tf, err := ParseTimeframe(s)
	if err != nil {
		panic(err)
	}
	return tf
}

func (tf Timeframe) Duration() time.Duration {
	return time.Duration(tf)
}

// PeriodsPerYear is the number of bars in a calendar year, used to
// annualize per-bar ratios. Crypto markets trade around the clock.
func (tf Timeframe) PeriodsPerYear() float64 {
	if tf <= 0 {
		return 0
	}
	return float64(year) / float64(tf)
}

func (tf Timeframe) String() string {
	d := time.Duration(tf)
	switch {
	case d <= 0:
		return ""
	case d%(7*24*time.Hour) == 0:
		return fmt.Sprintf("%dw", d/(7*24*time.Hour))
	case d%(24*time.Hour) == 0:
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	}
	return d.String()
}

func (tf Timeframe) MarshalText() ([]byte, error) {
	return []byte(tf.String()), nil
}

func (tf *Timeframe) UnmarshalText(b []byte) error {
	v, err := ParseTimeframe(string(b))
	if err != nil {
		return err
	}
	*tf = v
	return nil
}
