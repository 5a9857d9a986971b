package journal

import (
	"time"

	"github.com/rustyeddy/regimetrader/analytics"
)

var (
	openT  = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	closeT = time.Date(2024, 1, 2, 4, 5, 6, 0, time.UTC)
)

func sampleTrade(id string, seq int, closed time.Time, pl float64) TradeRecord {
	return TradeRecord{
		TradeID:      id,
		SessionID:    "S1",
		Seq:          seq,
		Symbol:       "BTCUSD",
		Timeframe:    "1h",
		Direction:    "long",
		Quantity:     1.5,
		EntryPrice:   2500,
		ExitPrice:    2550,
		OpenTime:     openT,
		CloseTime:    closed,
		RealizedPL:   pl,
		Fees:         1.25,
		ReturnPct:    2,
		DurationBars: 3,
		EntryReason:  "bb_pullback",
		Reason:       "stop_loss",
		Regime:       "bullish",
	}
}

func sampleSession(id string, created time.Time) SessionRecord {
	return SessionRecord{
		SessionID: id,
		Created:   created,
		Mode:      "backtest",
		Dataset:   "btc_1h.csv",
		Config:    []byte("symbol: BTCUSD\n"),
		Summary: analytics.Summary{
			Symbol:          "BTCUSD",
			Timeframe:       "1h",
			Strategy:        "ema_bb_turtle",
			Start:           openT,
			End:             closeT,
			Bars:            10,
			StartingCapital: 100000,
			FinalEquity:     100050,
			NetPnL:          50,
			ReturnPct:       0.05,
			Trades:          2,
			Wins:            1,
			Losses:          1,
			WinRate:         50,
			ProfitFactor:    2,
			Expectancy:      25,
			MaxDrawdownPct:  1.5,
			Sharpe:          0.8,
			Sortino:         1.1,
		},
	}
}
