package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"
)

var (
	tradeHeader   = []string{"trade_id", "session_id", "seq", "symbol", "timeframe", "direction", "quantity", "entry_price", "exit_price", "open_time", "close_time", "realized_pl", "fees", "return_pct", "duration_bars", "entry_reason", "reason", "regime"}
	equityHeader  = []string{"session_id", "time", "balance", "equity"}
	sessionHeader = []string{"session_id", "created", "mode", "dataset", "strategy", "symbol", "timeframe", "start", "end", "bars", "trades", "wins", "losses", "start_balance", "end_balance", "net_pl", "fees", "return_pct", "win_rate", "profit_factor", "expectancy", "max_dd_pct", "sharpe", "sortino"}
)

// CSV appends records to three CSV files. Writes are flushed per record.
type CSV struct {
	mu       sync.Mutex
	trades   *csv.Writer
	equity   *csv.Writer
	sessions *csv.Writer
	files    []*os.File
}

func NewCSV(tradesPath, equityPath, sessionsPath string) (*CSV, error) {
	j := &CSV{}
	var err error
	if j.trades, err = j.create(tradesPath, tradeHeader); err != nil {
		j.closeFiles()
		return nil, err
	}
	if j.equity, err = j.create(equityPath, equityHeader); err != nil {
		j.closeFiles()
		return nil, err
	}
	if j.sessions, err = j.create(sessionsPath, sessionHeader); err != nil {
		j.closeFiles()
		return nil, err
	}
	return j, nil
}

func (j *CSV) create(path string, header []string) (*csv.Writer, error) {
	fh, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	j.files = append(j.files, fh)

	w := csv.NewWriter(fh)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	w.Flush()
	return w, w.Error()
}

func (j *CSV) RecordTrade(t TradeRecord) error {
	return j.write(j.trades, []string{
		t.TradeID,
		t.SessionID,
		strconv.Itoa(t.Seq),
		t.Symbol,
		t.Timeframe,
		t.Direction,
		f(t.Quantity),
		f(t.EntryPrice),
		f(t.ExitPrice),
		ts(t.OpenTime),
		ts(t.CloseTime),
		f(t.RealizedPL),
		f(t.Fees),
		f(t.ReturnPct),
		strconv.Itoa(t.DurationBars),
		t.EntryReason,
		t.Reason,
		t.Regime,
	})
}

func (j *CSV) RecordEquity(e EquitySnapshot) error {
	return j.write(j.equity, []string{
		e.SessionID,
		ts(e.Time),
		f(e.Balance),
		f(e.Equity),
	})
}

func (j *CSV) RecordSession(r SessionRecord) error {
	s := r.Summary
	return j.write(j.sessions, []string{
		r.SessionID,
		ts(r.Created),
		r.Mode,
		r.Dataset,
		s.Strategy,
		s.Symbol,
		s.Timeframe,
		ts(s.Start),
		ts(s.End),
		strconv.Itoa(s.Bars),
		strconv.Itoa(s.Trades),
		strconv.Itoa(s.Wins),
		strconv.Itoa(s.Losses),
		f(s.StartingCapital),
		f(s.FinalEquity),
		f(s.NetPnL),
		f(s.Fees),
		f(s.ReturnPct),
		f(s.WinRate),
		f(s.ProfitFactor),
		f(s.Expectancy),
		f(s.MaxDrawdownPct),
		f(s.Sharpe),
		f(s.Sortino),
	})
}

func (j *CSV) write(w *csv.Writer, rec []string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := w.Write(rec); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (j *CSV) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, w := range []*csv.Writer{j.trades, j.equity, j.sessions} {
		w.Flush()
		if err := w.Error(); err != nil {
			j.closeFiles()
			return err
		}
	}
	return j.closeFiles()
}

func (j *CSV) closeFiles() error {
	var first error
	for _, fh := range j.files {
		if err := fh.Close(); err != nil && first == nil {
			first = err
		}
	}
	j.files = nil
	return first
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

func ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
