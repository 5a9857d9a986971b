package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite stores records in a single sqlite database file.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, session_id, seq, symbol, timeframe, direction, quantity, entry_price, exit_price,
		 open_time, close_time, realized_pl, fees, return_pct, duration_bars, entry_reason, reason, regime)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.SessionID, t.Seq, t.Symbol, t.Timeframe, t.Direction, t.Quantity, t.EntryPrice, t.ExitPrice,
		t.OpenTime.UTC(), t.CloseTime.UTC(), t.RealizedPL, t.Fees, t.ReturnPct, t.DurationBars,
		t.EntryReason, t.Reason, t.Regime,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(session_id, time, balance, equity)
		VALUES (?, ?, ?, ?)`,
		e.SessionID, e.Time.UTC(), e.Balance, e.Equity,
	)
	return err
}

// RecordSession inserts or replaces the summary row, so a live session can
// be checkpointed repeatedly.
func (j *SQLite) RecordSession(r SessionRecord) error {
	s := r.Summary
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO sessions
		(session_id, created, mode, dataset, strategy, symbol, timeframe, start_time, end_time,
		 bars, trades, wins, losses, start_balance, end_balance, net_pl, fees, return_pct,
		 win_rate, profit_factor, expectancy, max_dd_pct, sharpe, sortino, config)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.Created.UTC(), r.Mode, r.Dataset, s.Strategy, s.Symbol, s.Timeframe,
		s.Start.UTC(), s.End.UTC(), s.Bars, s.Trades, s.Wins, s.Losses,
		s.StartingCapital, s.FinalEquity, s.NetPnL, s.Fees, s.ReturnPct,
		s.WinRate, s.ProfitFactor, s.Expectancy, s.MaxDrawdownPct, s.Sharpe, s.Sortino, string(r.Config),
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
