package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rustyeddy/regimetrader/market"
)

var defaultColumns = []string{"time", "open", "high", "low", "close", "volume", "action"}

// CSVSource reads OHLCV rows:
//
//	time,open,high,low,close,volume[,action]
//
// time is RFC3339, RFC3339Nano or a unix epoch. A header row is optional;
// when present its names select the columns, so extra columns and other
// orders are accepted. Empty rows are skipped.
type CSVSource struct {
	f      *os.File
	r      *csv.Reader
	symbol string
	tf     market.Timeframe
	window Window

	cols     map[string]int
	sawFirst bool
	line     int
}

// NewCSVSource opens path. Every bar is stamped with symbol and tf.
func NewCSVSource(path, symbol string, tf market.Timeframe, w Window) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return newCSVSource(f, symbol, tf, w), nil
}

func newCSVSource(f *os.File, symbol string, tf market.Timeframe, w Window) *CSVSource {
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comment = '#'

	return &CSVSource{f: f, r: r, symbol: symbol, tf: tf, window: w, cols: columns(defaultColumns)}
}

func columns(names []string) map[string]int {
	m := make(map[string]int, len(names))
	for i, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		switch n {
		case "timestamp", "date", "datetime", "open_time":
			n = "time"
		case "vol":
			n = "volume"
		}
		if _, dup := m[n]; !dup {
			m[n] = i
		}
	}
	return m
}

func (s *CSVSource) Close() error {
	if s.f != nil {
		return s.f.Close()
	}
	return nil
}

func (s *CSVSource) Next() (market.Bar, bool, error) {
	for {
		row, err := s.r.Read()
		if err == io.EOF {
			return market.Bar{}, false, nil
		}
		if err != nil {
			return market.Bar{}, false, err
		}
		s.line++
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		// Allow a single header row
		if !s.sawFirst {
			s.sawFirst = true
			if isHeader(row) {
				s.cols = columns(row)
				if err := s.checkColumns(); err != nil {
					return market.Bar{}, false, err
				}
				continue
			}
		}

		b, err := s.parseRow(row)
		if err != nil {
			return market.Bar{}, false, fmt.Errorf("line %d: %w", s.line, err)
		}
		if !s.window.contains(b.OpenTime) {
			continue
		}
		return b, true, nil
	}
}

func isHeader(row []string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(row[len(row)-1]), 64)
	first := strings.ToLower(strings.TrimSpace(row[0]))
	return err != nil && (first == "time" || first == "timestamp" || first == "date" || first == "datetime" || first == "open_time")
}

func (s *CSVSource) checkColumns() error {
	for _, c := range defaultColumns[:5] {
		if _, ok := s.cols[c]; !ok {
			return fmt.Errorf("csv header missing %q column", c)
		}
	}
	return nil
}

func (s *CSVSource) field(row []string, name string) string {
	i, ok := s.cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (s *CSVSource) parseRow(row []string) (market.Bar, error) {
	t, err := market.ParseTimestamp(s.field(row, "time"))
	if err != nil {
		return market.Bar{}, err
	}

	b := market.Bar{
		Symbol:    s.symbol,
		Timeframe: s.tf,
		OpenTime:  t,
		Action:    s.field(row, "action"),
	}
	for _, f := range []struct {
		name     string
		dst      *float64
		optional bool
	}{
		{"open", &b.Open, false},
		{"high", &b.High, false},
		{"low", &b.Low, false},
		{"close", &b.Close, false},
		{"volume", &b.Volume, true},
	} {
		v := s.field(row, f.name)
		if v == "" && f.optional {
			continue
		}
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return market.Bar{}, fmt.Errorf("bad %s %q: %w", f.name, v, err)
		}
		*f.dst = x
	}
	return b, nil
}
