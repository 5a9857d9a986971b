package analytics

import (
	"fmt"
	"io"
	"time"
)

// PrintSummary writes a human readable report of s.
func PrintSummary(w io.Writer, s Summary) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Session Result")
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintf(w, "Symbol:        %s\n", s.Symbol)
	fmt.Fprintf(w, "Timeframe:     %s\n", s.Timeframe)
	if s.Strategy != "" {
		fmt.Fprintf(w, "Strategy:      %s\n", s.Strategy)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Period")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start:         %s\n", formatTime(s.Start))
	fmt.Fprintf(w, "End:           %s\n", formatTime(s.End))
	fmt.Fprintf(w, "Bars:          %d\n", s.Bars)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d\n", s.Trades)
	fmt.Fprintf(w, "Wins:          %d\n", s.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", s.Losses)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", s.WinRate)
	fmt.Fprintf(w, "Avg Win:       %.2f\n", s.AvgWin)
	fmt.Fprintf(w, "Avg Loss:      %.2f\n", s.AvgLoss)
	fmt.Fprintf(w, "Expectancy:    %.2f\n", s.Expectancy)
	fmt.Fprintf(w, "Avg Bars Held: %.1f\n", s.AvgBarsHeld)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start Balance: %.2f\n", s.StartingCapital)
	fmt.Fprintf(w, "End Balance:   %.2f\n", s.FinalEquity)
	fmt.Fprintf(w, "Net P/L:       %.2f\n", s.NetPnL)
	fmt.Fprintf(w, "Fees:          %.2f\n", s.Fees)
	fmt.Fprintf(w, "Return:        %.2f%%\n", s.ReturnPct)

	if s.ProfitFactor > 0 {
		fmt.Fprintf(w, "Profit Factor: %.2f\n", s.ProfitFactor)
	}
	if s.MaxDrawdownPct > 0 {
		fmt.Fprintf(w, "Max Drawdown:  %.2f%% (%.2f)\n", s.MaxDrawdownPct, s.MaxDrawdown)
	}
	fmt.Fprintf(w, "Sharpe:        %.2f\n", s.Sharpe)
	fmt.Fprintf(w, "Sortino:       %.2f\n", s.Sortino)

	fmt.Fprintln(w, "==================================================")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
