package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	timeframe TEXT NOT NULL,
	direction TEXT NOT NULL,
	quantity REAL NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	realized_pl REAL NOT NULL,
	fees REAL NOT NULL,
	return_pct REAL NOT NULL,
	duration_bars INTEGER NOT NULL,
	entry_reason TEXT NOT NULL,
	reason TEXT NOT NULL,
	regime TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_session ON trades(session_id, seq);
CREATE INDEX IF NOT EXISTS idx_trades_close ON trades(close_time);

CREATE TABLE IF NOT EXISTS equity (
	session_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	balance REAL NOT NULL,
	equity REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(session_id, time);

CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	mode TEXT NOT NULL,
	dataset TEXT NOT NULL,
	strategy TEXT NOT NULL,
	symbol TEXT NOT NULL,
	timeframe TEXT NOT NULL,
	start_time DATETIME,
	end_time DATETIME,
	bars INTEGER NOT NULL,
	trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	start_balance REAL NOT NULL,
	end_balance REAL NOT NULL,
	net_pl REAL NOT NULL,
	fees REAL NOT NULL,
	return_pct REAL NOT NULL,
	win_rate REAL NOT NULL,
	profit_factor REAL NOT NULL,
	expectancy REAL NOT NULL,
	max_dd_pct REAL NOT NULL,
	sharpe REAL NOT NULL,
	sortino REAL NOT NULL,
	config TEXT
);
`
