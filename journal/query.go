package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by lookups that match nothing.
var ErrNotFound = errors.New("not found")

const tradeColumns = `trade_id, session_id, seq, symbol, timeframe, direction, quantity, entry_price, exit_price,
	open_time, close_time, realized_pl, fees, return_pct, duration_bars, entry_reason, reason, regime`

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (TradeRecord, error) {
	var rec TradeRecord
	err := s.Scan(
		&rec.TradeID,
		&rec.SessionID,
		&rec.Seq,
		&rec.Symbol,
		&rec.Timeframe,
		&rec.Direction,
		&rec.Quantity,
		&rec.EntryPrice,
		&rec.ExitPrice,
		&rec.OpenTime,
		&rec.CloseTime,
		&rec.RealizedPL,
		&rec.Fees,
		&rec.ReturnPct,
		&rec.DurationBars,
		&rec.EntryReason,
		&rec.Reason,
		&rec.Regime,
	)
	return rec, err
}

// GetTrade returns a single trade record by ID.
func (j *SQLite) GetTrade(tradeID string) (TradeRecord, error) {
	row := j.db.QueryRow(`SELECT `+tradeColumns+` FROM trades WHERE trade_id = ?`, tradeID)

	rec, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TradeRecord{}, fmt.Errorf("trade %q: %w", tradeID, ErrNotFound)
		}
		return TradeRecord{}, err
	}
	return rec, nil
}

// ListTradesBySession returns a session's ledger in sequence order.
func (j *SQLite) ListTradesBySession(sessionID string) ([]TradeRecord, error) {
	return j.queryTrades(`SELECT `+tradeColumns+` FROM trades WHERE session_id = ? ORDER BY seq ASC`, sessionID)
}

// ListTradesClosedBetween returns trades whose close_time is within [start, end).
func (j *SQLite) ListTradesClosedBetween(start, end time.Time) ([]TradeRecord, error) {
	return j.queryTrades(`SELECT `+tradeColumns+` FROM trades
		WHERE close_time >= ? AND close_time < ?
		ORDER BY close_time ASC`, start.UTC(), end.UTC())
}

func (j *SQLite) queryTrades(q string, args ...any) ([]TradeRecord, error) {
	rows, err := j.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEquityBySession returns a session's equity curve in time order.
func (j *SQLite) ListEquityBySession(sessionID string) ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT session_id, time, balance, equity
		FROM equity
		WHERE session_id = ?
		ORDER BY time ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var e EquitySnapshot
		if err := rows.Scan(&e.SessionID, &e.Time, &e.Balance, &e.Equity); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

const sessionColumns = `session_id, created, mode, dataset, strategy, symbol, timeframe, start_time, end_time,
	bars, trades, wins, losses, start_balance, end_balance, net_pl, fees, return_pct,
	win_rate, profit_factor, expectancy, max_dd_pct, sharpe, sortino, config`

func scanSession(s scanner) (SessionRecord, error) {
	var (
		r   SessionRecord
		cfg sql.NullString
	)
	err := s.Scan(
		&r.SessionID, &r.Created, &r.Mode, &r.Dataset,
		&r.Strategy, &r.Symbol, &r.Timeframe, &r.Start, &r.End,
		&r.Bars, &r.Trades, &r.Wins, &r.Losses,
		&r.StartingCapital, &r.FinalEquity, &r.NetPnL, &r.Fees, &r.ReturnPct,
		&r.WinRate, &r.ProfitFactor, &r.Expectancy, &r.MaxDrawdownPct, &r.Sharpe, &r.Sortino,
		&cfg,
	)
	if cfg.Valid && cfg.String != "" {
		r.Config = []byte(cfg.String)
	}
	return r, err
}

// GetSession returns one session summary.
func (j *SQLite) GetSession(sessionID string) (SessionRecord, error) {
	row := j.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, sessionID)
	r, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SessionRecord{}, fmt.Errorf("session %q: %w", sessionID, ErrNotFound)
		}
		return SessionRecord{}, err
	}
	return r, nil
}

// ListSessions returns every session, newest first.
func (j *SQLite) ListSessions() ([]SessionRecord, error) {
	rows, err := j.db.Query(`SELECT ` + sessionColumns + ` FROM sessions ORDER BY created DESC, session_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		r, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ExportSessionOrg loads a session and its trades and renders the Org
// report.
func (j *SQLite) ExportSessionOrg(sessionID string) (string, error) {
	r, err := j.GetSession(sessionID)
	if err != nil {
		return "", err
	}
	trades, err := j.ListTradesBySession(sessionID)
	if err != nil {
		return "", err
	}
	return FormatSessionOrg(r, trades)
}
