package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/regimetrader/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query trade journal data",
	Long: `Query and display journal records from a SQLite database.

Subcommands:
  sessions   - List recorded sessions
  session    - Show one session as an Org report
  export-org - Write a session's Org report to a file
  trade      - Get details of a specific trade by ID
  today      - List trades closed today
  day        - List trades closed on a specific day

Examples:
  trader journal sessions
  trader journal session <session-id>
  trader journal export-org <session-id> -o report.org
  trader journal trade <trade-id>
  trader journal day 2024-01-15`,
}

var journalSessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded sessions",
	Args:  cobra.NoArgs,
	RunE:  runJournalSessions,
}

var journalSessionCmd = &cobra.Command{
	Use:   "session <session-id>",
	Short: "Show a session as an Org report",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalSession,
}

var journalExportCmd = &cobra.Command{
	Use:   "export-org <session-id>",
	Short: "Write a session's Org report to a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalExport,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <trade-id>",
	Short: "Get details of a specific trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List trades closed today",
	Args:  cobra.NoArgs,
	RunE:  runJournalToday,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List trades closed on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var (
	journalDBPath string
	journalOutput string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalSessionsCmd)
	journalCmd.AddCommand(journalSessionCmd)
	journalCmd.AddCommand(journalExportCmd)
	journalCmd.AddCommand(journalTradeCmd)
	journalCmd.AddCommand(journalTodayCmd)
	journalCmd.AddCommand(journalDayCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "", "path to SQLite journal DB (default journal.db_path)")
	journalExportCmd.Flags().StringVarP(&journalOutput, "output", "o", "", "output file (default <session-id>.org)")
}

func openJournalDB() (*journal.SQLite, error) {
	path := journalDBPath
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.Journal.DBPath
	}
	if path == "" {
		return nil, fmt.Errorf("no journal database (use --db)")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	j, err := journal.NewSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func runJournalSessions(cmd *cobra.Command, args []string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	recs, err := j.ListSessions()
	if err != nil {
		return fmt.Errorf("query sessions: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tMODE\tSTREAM\tSTRATEGY\tTRADES\tNET P/L\tRETURN")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s|%s\t%s\t%d\t%.2f\t%.2f%%\n",
			r.SessionID, r.Mode, r.Symbol, r.Timeframe, r.Strategy, r.Trades, r.NetPnL, r.ReturnPct)
	}
	return w.Flush()
}

func runJournalSession(cmd *cobra.Command, args []string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	org, err := j.ExportSessionOrg(args[0])
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), org)
	return nil
}

func runJournalExport(cmd *cobra.Command, args []string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	id := args[0]
	r, err := j.GetSession(id)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	trades, err := j.ListTradesBySession(id)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}

	path := journalOutput
	if path == "" {
		path = id + ".org"
	}
	if err := journal.WriteSessionOrg(path, r, trades); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s (%d trades)\n", path, len(trades))
	return nil
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	rec, err := j.GetTrade(args[0])
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradeOrg(rec))
	return nil
}

func runJournalToday(cmd *cobra.Command, args []string) error {
	return listDay(cmd, time.Now().In(time.Local).Format("2006-01-02"))
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	return listDay(cmd, args[0])
}

func listDay(cmd *cobra.Command, day string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	start, end, err := dayBounds(time.Local, day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	recs, err := j.ListTradesClosedBetween(start, end)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradesOrg(recs))
	return nil
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}
