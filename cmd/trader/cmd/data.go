package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/regimetrader/feed"
	"github.com/rustyeddy/regimetrader/market"
)

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Manage historical bar data",
}

var dataImportCmd = &cobra.Command{
	Use:   "import <bars.csv>",
	Short: "Import a CSV of bars into a SQLite bar store",
	Long: `Read a CSV of bars for one symbol and timeframe and upsert them
into the bars table of a SQLite database, which "trader backtest" can
then read by stream.

Example:
  trader data import btc_1h.csv --symbol BTCUSDT --timeframe 1h --db bars.db`,
	Args: cobra.ExactArgs(1),
	RunE: runDataImport,
}

var (
	importSymbol    string
	importTimeframe string
	importDB        string
)

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataImportCmd)

	dataImportCmd.Flags().StringVarP(&importSymbol, "symbol", "s", "", "symbol of the bars (required)")
	dataImportCmd.Flags().StringVarP(&importTimeframe, "timeframe", "t", "1h", "timeframe of the bars, e.g. 15m, 1h, 60")
	dataImportCmd.Flags().StringVar(&importDB, "db", "bars.db", "SQLite database to write")
	_ = dataImportCmd.MarkFlagRequired("symbol")
}

func runDataImport(cmd *cobra.Command, args []string) error {
	tf, err := market.ParseTimeframe(importTimeframe)
	if err != nil {
		return err
	}

	src, err := feed.NewCSVSource(args[0], importSymbol, tf, feed.Window{})
	if err != nil {
		return err
	}
	bars, err := feed.ReadAll(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	n, err := feed.ImportBars(importDB, bars)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d bars for %s into %s\n",
		n, market.StreamKey(importSymbol, tf), importDB)
	return nil
}
