package feed

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/regimetrader/market"
)

// BarsSchema is the bar table read by SQLiteSource.
const BarsSchema = `
CREATE TABLE IF NOT EXISTS bars (
	symbol     TEXT NOT NULL,
	timeframe  TEXT NOT NULL,
	open_time  DATETIME NOT NULL,
	open       REAL NOT NULL,
	high       REAL NOT NULL,
	low        REAL NOT NULL,
	close      REAL NOT NULL,
	volume     REAL NOT NULL DEFAULT 0,
	action     TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (symbol, timeframe, open_time)
);
`

// SQLiteSource streams one symbol and timeframe from a bars table.
type SQLiteSource struct {
	db     *sql.DB
	rows   *sql.Rows
	tf     market.Timeframe
	window Window
}

func NewSQLiteSource(path, symbol string, tf market.Timeframe, w Window) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`
		SELECT symbol, open_time, open, high, low, close, volume, action
		FROM bars
		WHERE symbol = ? AND timeframe = ?
		ORDER BY open_time ASC`,
		symbol, tf.String(),
	)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("query bars: %w", err)
	}

	return &SQLiteSource{db: db, rows: rows, tf: tf, window: w}, nil
}

func (s *SQLiteSource) Next() (market.Bar, bool, error) {
	for s.rows.Next() {
		b := market.Bar{Timeframe: s.tf}
		if err := s.rows.Scan(&b.Symbol, &b.OpenTime, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.Action); err != nil {
			return market.Bar{}, false, err
		}
		if !s.window.contains(b.OpenTime) {
			continue
		}
		return b, true, nil
	}
	return market.Bar{}, false, s.rows.Err()
}

func (s *SQLiteSource) Close() error {
	err := s.rows.Close()
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	return err
}

// ImportBars writes bars into the table at path, creating it if needed.
// Existing rows with the same key are replaced.
func ImportBars(path string, bars []market.Bar) (int, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	if _, err := db.Exec(BarsSchema); err != nil {
		return 0, err
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO bars
		(symbol, timeframe, open_time, open, high, low, close, volume, action)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.Exec(b.Symbol, b.Timeframe.String(), b.OpenTime.UTC(),
			b.Open, b.High, b.Low, b.Close, b.Volume, b.Action); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(bars), nil
}
