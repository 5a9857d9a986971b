// Package cmd holds the trader command line.
package cmd

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/regimetrader/config"
	"github.com/rustyeddy/regimetrader/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "A regime-aware trading decision engine",
	Long: `Trader runs bar-driven trading sessions: indicators, market regime,
strategy, risk checks and simulated execution.

The same session pipeline serves both drivers:
  backtest - replay historical bars from CSV or SQLite
  live     - accept TradingView webhook alerts as they arrive

Results are journaled to SQLite, CSV or Kafka and every finished
session is reviewed with strengths, weaknesses and next actions.`,
	SilenceUsage: true,
}

var (
	cfgFile  string
	logLevel string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON); built-in defaults when empty")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
}

func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(cfgFile)
}

func newLogger(cfg *config.Config) (zerolog.Logger, error) {
	lc := cfg.Log
	if logLevel != "" {
		lc.Level = logLevel
	}
	return logger.New(lc)
}

// setup loads the config and builds the logger every run command needs.
func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, log, nil
}
