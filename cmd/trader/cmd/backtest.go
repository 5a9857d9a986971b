package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/regimetrader/analytics"
	"github.com/rustyeddy/regimetrader/backtest"
	"github.com/rustyeddy/regimetrader/config"
	"github.com/rustyeddy/regimetrader/feed"
	"github.com/rustyeddy/regimetrader/journal"
	"github.com/rustyeddy/regimetrader/reflection"
	"github.com/rustyeddy/regimetrader/session"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay historical bars through every configured session",
	Long: `Run each configured session over historical bars.

Data is read from a CSV file (time,open,high,low,close[,volume][,action])
or from a SQLite database populated with "trader data import".

Examples:
  trader backtest -c trader.yaml --data bars.csv
  trader backtest -c trader.yaml --data bars.db --from 2024-01-01 --to 2024-06-01
  trader backtest -c trader.yaml --org-dir ./reports`,
	RunE: runBacktest,
}

var (
	btData   string
	btFrom   string
	btTo     string
	btOrgDir string
	btStrict bool
	btKeep   bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVar(&btData, "data", "", "bars file (.csv) or SQLite database; overrides backtest.data")
	backtestCmd.Flags().StringVar(&btFrom, "from", "", "first bar time, RFC3339 or YYYY-MM-DD (inclusive)")
	backtestCmd.Flags().StringVar(&btTo, "to", "", "last bar time, RFC3339 or YYYY-MM-DD (exclusive)")
	backtestCmd.Flags().StringVar(&btOrgDir, "org-dir", "", "write an Org report per session into this directory")
	backtestCmd.Flags().BoolVar(&btStrict, "strict", false, "stop on the first rejected bar")
	backtestCmd.Flags().BoolVar(&btKeep, "keep-open", false, "leave positions open at the end of data")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	if err := applyBacktestFlags(cfg); err != nil {
		return err
	}

	j, err := cfg.OpenJournal(false, log)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	review := reflection.NewFeed(j, len(cfg.Sessions), log)
	out := cmd.OutOrStdout()

	var done []*session.Session
	for _, sc := range cfg.Sessions {
		s, err := runSession(ctx, cfg, sc, j, log, out)
		if s != nil {
			done = append(done, s)
			path := cfg.DataPath(sc)
			if err := review.Submit(reflection.FromSession(s, "backtest", path, sc.YAML())); err != nil {
				log.Warn().Err(err).Str("session", s.ID()).Msg("review skipped")
			}
		}
		if err != nil {
			review.Close()
			return err
		}
	}
	review.Close()

	for _, s := range done {
		rep, ok := review.Report(s.ID())
		if !ok {
			continue
		}
		printReview(out, rep)
		if cfg.Backtest.OrgDir != "" {
			if err := writeOrg(cfg.Backtest.OrgDir, s, rep); err != nil {
				return err
			}
		}
	}
	return nil
}

func applyBacktestFlags(cfg *config.Config) error {
	if btData != "" {
		cfg.Backtest.Data = btData
		for i := range cfg.Sessions {
			cfg.Sessions[i].Data = ""
		}
	}
	if btFrom != "" {
		t, err := parseDay(btFrom)
		if err != nil {
			return fmt.Errorf("--from: %w", err)
		}
		cfg.Backtest.From = t
	}
	if btTo != "" {
		t, err := parseDay(btTo)
		if err != nil {
			return fmt.Errorf("--to: %w", err)
		}
		cfg.Backtest.To = t
	}
	if btOrgDir != "" {
		cfg.Backtest.OrgDir = btOrgDir
	}
	if btStrict {
		cfg.Backtest.Strict = true
	}
	if btKeep {
		keep := false
		cfg.Backtest.CloseEnd = &keep
	}
	return cfg.Validate()
}

func runSession(ctx context.Context, cfg *config.Config, sc config.SessionConfig, j journal.Journal, log zerolog.Logger, out io.Writer) (*session.Session, error) {
	path := cfg.DataPath(sc)
	src, err := openFeed(path, sc, feed.Window{From: cfg.Backtest.From, To: cfg.Backtest.To})
	if err != nil {
		return nil, err
	}

	s, err := sc.NewSession(session.WithLogger(log))
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("%s: %w", sc.Key(), err)
	}

	r := &backtest.Runner{
		Session: s,
		Feed:    src,
		Journal: j,
		Log:     log,
		Options: backtest.RunnerOptions{
			CloseEnd:   cfg.Backtest.CloseAtEnd(),
			Dataset:    path,
			Config:     sc.YAML(),
			StrictBars: cfg.Backtest.Strict,
		},
	}

	res, err := r.Run(ctx)
	fmt.Fprintf(out, "\n%s  session %s\n", sc.Key(), res.SessionID)
	analytics.PrintSummary(out, res.Summary)
	if res.Rejected > 0 {
		fmt.Fprintf(out, "Rejected bars: %d\n", res.Rejected)
	}
	for _, kind := range session.EventKinds() {
		if n := res.Events[kind]; n > 0 {
			fmt.Fprintf(out, "  %-22s %d\n", kind, n)
		}
	}
	if err != nil {
		return s, fmt.Errorf("%s: %w", sc.Key(), err)
	}
	return s, nil
}

func openFeed(path string, sc config.SessionConfig, w feed.Window) (feed.Source, error) {
	if path == "" {
		return nil, fmt.Errorf("%s: no bar data (set backtest.data or --data)", sc.Key())
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		src, err := feed.NewCSVSource(path, sc.Symbol, sc.Timeframe, w)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		src, err := feed.NewSQLiteSource(path, sc.Symbol, sc.Timeframe, w)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
}

func printReview(out io.Writer, rep reflection.Report) {
	fmt.Fprintf(out, "\nReview %s  rating %d/10\n", rep.SessionID, rep.Rating)
	for _, n := range rep.Notes() {
		fmt.Fprintf(out, "  %s\n", n)
	}
	for _, a := range rep.NextActions {
		fmt.Fprintf(out, "  > %s\n", a)
	}
}

func writeOrg(dir string, s *session.Session, rep reflection.Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("org dir: %w", err)
	}

	rec := journal.NewSessionRecord(s, "backtest", "", nil)
	rec.Notes = rep.Notes()
	rec.NextActions = rep.NextActions

	tf := s.Config().Timeframe.String()
	trades := make([]journal.TradeRecord, 0, len(s.Trades()))
	for _, t := range s.Trades() {
		trades = append(trades, journal.NewTradeRecord(s.ID(), tf, t))
	}

	path := filepath.Join(dir, s.ID()+".org")
	if err := journal.WriteSessionOrg(path, rec, trades); err != nil {
		return fmt.Errorf("write org: %w", err)
	}
	return nil
}

func parseDay(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.ParseInLocation("2006-01-02", s, time.UTC)
}
