package journal

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"
)

var sessionOrgFuncs = template.FuncMap{
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "(none)"
		}
		return t.UTC().Format("2006-01-02")
	},
	"trade": FormatTradeOrg,
}

var sessionOrg = template.Must(template.New("session").Funcs(sessionOrgFuncs).Parse(SessionOrgTemplate))

type sessionOrgView struct {
	SessionRecord
	TradeList []TradeRecord
}

// FormatSessionOrg renders a session summary and its trades as an Org
// document.
func FormatSessionOrg(r SessionRecord, trades []TradeRecord) (string, error) {
	var buf bytes.Buffer
	if err := sessionOrg.Execute(&buf, sessionOrgView{SessionRecord: r, TradeList: trades}); err != nil {
		return "", fmt.Errorf("render session %s: %w", r.SessionID, err)
	}
	return buf.String(), nil
}

// WriteSessionOrg renders the report to path.
func WriteSessionOrg(path string, r SessionRecord, trades []TradeRecord) error {
	s, err := FormatSessionOrg(r, trades)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(s), 0644)
}

const SessionOrgTemplate = `
* {{if eq .Mode "live"}}LIVE{{else}}BACKTEST{{end}}: {{.Strategy}} {{.Symbol}} {{.Timeframe}}
:PROPERTIES:
:SESSION_ID:  {{.SessionID}}
:STRATEGY:    {{.Strategy}}
:TIMEFRAME:   {{.Timeframe}}
:SYMBOL:      {{.Symbol}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:START_DATE:  {{date .Start}}
:END_DATE:    {{date .End}}
:START_BAL:   {{printf "%.2f" .StartingCapital}}
:END_BAL:     {{printf "%.2f" .FinalEquity}}
:NET_PL:      {{printf "%.2f" .NetPnL}}
:RETURN_PCT:  {{printf "%.2f" .ReturnPct}}
:MAX_DD_PCT:  {{printf "%.2f" .MaxDrawdownPct}}
:TRADES:      {{.Trades}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:WIN_RATE:    {{printf "%.2f" .WinRate}}
:PROFIT_FAC:  {{if ne .ProfitFactor 0.0}}{{printf "%.2f" .ProfitFactor}}{{else}}(no losses){{end}}
:SHARPE:      {{printf "%.2f" .Sharpe}}
:SORTINO:     {{printf "%.2f" .Sortino}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

{{- if .Config }}

** Configuration
#+begin_src yaml
{{printf "%s" .Config}}
#+end_src
{{- end }}

** Performance Summary
- Net P/L:          *{{printf "%.2f" .NetPnL}}*
- Return:           *{{printf "%.2f" .ReturnPct}}%*
- Max Drawdown:     *{{printf "%.2f" .MaxDrawdownPct}}%*
- Win Rate:         *{{printf "%.2f" .WinRate}}%*
- Expectancy:       *{{printf "%.2f" .Expectancy}}*
- Fees:             *{{printf "%.2f" .Fees}}*

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Wins}} |
| Losses  | {{.Losses}} |
| Total   | {{.Trades}} |

{{- if .TradeList }}

** Trades
{{ range $i, $t := .TradeList }}{{if $i}}
{{end}}{{trade $t}}{{end}}
{{- end }}

{{- if .Notes }}

** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}

{{- if .NextActions }}

** Notes / Next Actions
{{- range .NextActions }}
- [ ] {{.}}
{{- end }}
{{- end }}
`

// FormatTradeOrg renders a TradeRecord as an Org-mode block suitable for
// pasting into a journal. Structured facts live in the PROPERTIES drawer
// for search; the narrative headings are left empty.
func FormatTradeOrg(t TradeRecord) string {
	heading := fmt.Sprintf("*** Trade: %s %s (%s)", t.Symbol, t.Direction, shortID(t.TradeID))
	// RFC3339 for copy/paste friendliness.
	open := t.OpenTime.UTC().Format(time.RFC3339)
	closed := t.CloseTime.UTC().Format(time.RFC3339)

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	b.WriteString(fmt.Sprintf(":TRADE_ID: %s\n", t.TradeID))
	b.WriteString(fmt.Sprintf(":SESSION_ID: %s\n", t.SessionID))
	b.WriteString(fmt.Sprintf(":SYMBOL: %s\n", t.Symbol))
	b.WriteString(fmt.Sprintf(":DIRECTION: %s\n", t.Direction))
	b.WriteString(fmt.Sprintf(":QUANTITY: %g\n", t.Quantity))
	b.WriteString(fmt.Sprintf(":ENTRY_PRICE: %.5f\n", t.EntryPrice))
	b.WriteString(fmt.Sprintf(":EXIT_PRICE: %.5f\n", t.ExitPrice))
	b.WriteString(fmt.Sprintf(":OPEN_TIME: %s\n", open))
	b.WriteString(fmt.Sprintf(":CLOSE_TIME: %s\n", closed))
	b.WriteString(fmt.Sprintf(":REALIZED_PL: %.2f\n", t.RealizedPL))
	b.WriteString(fmt.Sprintf(":FEES: %.2f\n", t.Fees))
	b.WriteString(fmt.Sprintf(":BARS: %d\n", t.DurationBars))
	b.WriteString(fmt.Sprintf(":REGIME: %s\n", t.Regime))
	b.WriteString(fmt.Sprintf(":ENTRY_REASON: %s\n", t.EntryReason))
	b.WriteString(fmt.Sprintf(":REASON: %s\n", t.Reason))
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("**** Thesis\n- \n\n")
	b.WriteString("**** Execution\n- \n\n")
	b.WriteString("**** Review\n- \n")

	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []TradeRecord) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
