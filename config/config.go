// Package config loads the trader configuration: the sessions to run,
// their data, journaling, logging and the live webhook listener.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/regimetrader/indicators"
	"github.com/rustyeddy/regimetrader/internal/logger"
	"github.com/rustyeddy/regimetrader/journal"
	"github.com/rustyeddy/regimetrader/market"
	"github.com/rustyeddy/regimetrader/regime"
	"github.com/rustyeddy/regimetrader/risk"
	"github.com/rustyeddy/regimetrader/session"
	"github.com/rustyeddy/regimetrader/sim"
	"github.com/rustyeddy/regimetrader/strategies"
	"github.com/rustyeddy/regimetrader/webhook"
)

var validate = newValidator()

// newValidator reports fields by their yaml names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Config is the complete trader configuration.
type Config struct {
	Log      logger.Config   `json:"log" yaml:"log"`
	Sessions []SessionConfig `json:"sessions" yaml:"sessions" validate:"required,min=1,dive"`
	Backtest BacktestConfig  `json:"backtest" yaml:"backtest"`
	Live     LiveConfig      `json:"live" yaml:"live"`
	Journal  JournalConfig   `json:"journal" yaml:"journal"`
}

// SessionConfig describes one symbol/timeframe stream.
type SessionConfig struct {
	Symbol          string            `json:"symbol" yaml:"symbol" validate:"required"`
	Exchange        string            `json:"exchange,omitempty" yaml:"exchange,omitempty"`
	Timeframe       market.Timeframe  `json:"timeframe" yaml:"timeframe" validate:"required"`
	StartingCapital float64           `json:"starting_capital" yaml:"starting_capital" default:"100000" validate:"gt=0"`
	Strategy        StrategyConfig    `json:"strategy" yaml:"strategy"`
	Indicators      []indicators.Spec `json:"indicators,omitempty" yaml:"indicators,omitempty" validate:"dive"`
	Regime          regime.Thresholds `json:"regime" yaml:"regime"`
	Risk            risk.Params       `json:"risk" yaml:"risk"`
	Guard           risk.Limits       `json:"guard" yaml:"guard"`
	Execution       sim.Config        `json:"execution" yaml:"execution"`

	// Data overrides backtest.data for this session.
	Data string `json:"data,omitempty" yaml:"data,omitempty"`
}

// StrategyConfig names a registered strategy and its options.
type StrategyConfig struct {
	Name   string            `json:"name" yaml:"name" default:"ema_bb_turtle"`
	Params strategies.Params `json:"params,omitempty" yaml:"params,omitempty"`
}

// BacktestConfig selects historical data and end-of-run behaviour.
type BacktestConfig struct {
	Data     string    `json:"data,omitempty" yaml:"data,omitempty"` // .csv file or sqlite database
	From     time.Time `json:"from,omitempty" yaml:"from,omitempty"`
	To       time.Time `json:"to,omitempty" yaml:"to,omitempty"`
	CloseEnd *bool     `json:"close_at_end,omitempty" yaml:"close_at_end,omitempty" default:"true"`
	Strict   bool      `json:"strict_bars,omitempty" yaml:"strict_bars,omitempty"`
	OrgDir   string    `json:"org_dir,omitempty" yaml:"org_dir,omitempty"`
}

// CloseAtEnd reports whether open positions are flattened on the last bar.
func (b BacktestConfig) CloseAtEnd() bool {
	return b.CloseEnd == nil || *b.CloseEnd
}

// LiveConfig configures the webhook-driven runners.
type LiveConfig struct {
	Webhook   webhook.Config `json:"webhook" yaml:"webhook"`
	QueueSize int            `json:"queue_size" yaml:"queue_size" default:"256" validate:"gt=0"`
	Metrics   *bool          `json:"metrics,omitempty" yaml:"metrics,omitempty" default:"true"`
}

// MetricsEnabled reports whether /metrics is served.
func (l LiveConfig) MetricsEnabled() bool {
	return l.Metrics == nil || *l.Metrics
}

// JournalConfig selects the persistence sink.
type JournalConfig struct {
	Type         string              `json:"type" yaml:"type" default:"sqlite" validate:"oneof=sqlite csv kafka none"`
	DBPath       string              `json:"db_path,omitempty" yaml:"db_path,omitempty" validate:"required_if=Type sqlite"`
	TradesFile   string              `json:"trades_file,omitempty" yaml:"trades_file,omitempty" validate:"required_if=Type csv"`
	EquityFile   string              `json:"equity_file,omitempty" yaml:"equity_file,omitempty" validate:"required_if=Type csv"`
	SessionsFile string              `json:"sessions_file,omitempty" yaml:"sessions_file,omitempty"`
	Kafka        journal.KafkaConfig `json:"kafka" yaml:"kafka"`
	Buffer       int                 `json:"buffer" yaml:"buffer" default:"1024" validate:"gt=0"` // async queue for live runs
}

// Default returns a runnable single-session configuration.
func Default() *Config {
	cfg := &Config{
		Sessions: []SessionConfig{{
			Symbol:    "BTCUSDT",
			Exchange:  "BINANCE",
			Timeframe: market.H1,
		}},
		Journal: JournalConfig{DBPath: "./trader.db"},
	}
	if err := cfg.applyDefaults(); err != nil {
		panic(err)
	}
	return cfg
}

// LoadFromFile loads configuration from a YAML or JSON file, fills
// defaults and validates it.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, falling back to JSON.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = &Config{}
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", errors.Join(err, jerr))
		}
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes YAML for .yaml/.yml paths and indented JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("apply defaults: %w", err)
	}
	for i := range c.Sessions {
		if len(c.Sessions[i].Indicators) == 0 {
			c.Sessions[i].Indicators = indicators.DefaultSpecs()
		}
	}
	return nil
}

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return describe(err)
	}

	seen := make(map[string]bool, len(c.Sessions))
	for i, s := range c.Sessions {
		if err := s.EngineConfig().Validate(); err != nil {
			return fmt.Errorf("sessions[%d]: %w", i, err)
		}
		if _, err := strategies.New(s.Strategy.Name, s.Strategy.Params); err != nil {
			return fmt.Errorf("sessions[%d].strategy: %w", i, err)
		}
		key := s.Key()
		if seen[key] {
			return fmt.Errorf("sessions[%d]: duplicate stream %s", i, key)
		}
		seen[key] = true
	}

	if !c.Backtest.From.IsZero() && !c.Backtest.To.IsZero() && !c.Backtest.To.After(c.Backtest.From) {
		return errors.New("backtest.to must be after backtest.from")
	}
	if c.Journal.Type == "kafka" && len(c.Journal.Kafka.Brokers) == 0 {
		return errors.New("journal.kafka.brokers required for kafka type")
	}
	return nil
}

// describe turns the first validator error into a dotted-path message.
func describe(err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return err
	}
	fe := ves[0]
	path := fe.Namespace()
	if i := strings.IndexByte(path, '.'); i >= 0 {
		path = path[i+1:]
	}

	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Errorf("%s is required", path)
	case "min":
		return fmt.Errorf("%s needs at least %s entries", path, fe.Param())
	case "oneof":
		return fmt.Errorf("%s must be one of: %s", path, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Errorf("%s must be greater than %s", path, fe.Param())
	default:
		return fmt.Errorf("%s failed %s validation", path, fe.Tag())
	}
}

// Key is the symbol|timeframe stream key.
func (s SessionConfig) Key() string {
	return market.StreamKey(s.Symbol, s.Timeframe)
}

// EngineConfig converts to the engine's session configuration.
func (s SessionConfig) EngineConfig() session.Config {
	return session.Config{
		Symbol:          s.Symbol,
		Exchange:        s.Exchange,
		Timeframe:       s.Timeframe,
		StartingCapital: s.StartingCapital,
		Indicators:      s.Indicators,
		Regime:          s.Regime,
		Risk:            s.Risk,
		Guard:           s.Guard,
		Execution:       s.Execution,
	}
}

// NewSession builds a fresh strategy and session.
func (s SessionConfig) NewSession(opts ...session.Option) (*session.Session, error) {
	strat, err := strategies.New(s.Strategy.Name, s.Strategy.Params)
	if err != nil {
		return nil, err
	}
	return session.New(s.EngineConfig(), strat, opts...)
}

// YAML renders the session block, stored with journaled session records.
func (s SessionConfig) YAML() []byte {
	b, err := yaml.Marshal(s)
	if err != nil {
		return nil
	}
	return b
}

// DataPath is the historical data location for s.
func (c *Config) DataPath(s SessionConfig) string {
	if s.Data != "" {
		return s.Data
	}
	return c.Backtest.Data
}

// OpenJournal opens the configured sink. Live runs wrap it in an async
// buffer so slow storage never blocks bar processing.
func (c *Config) OpenJournal(live bool, log zerolog.Logger) (journal.Journal, error) {
	var j journal.Journal
	switch c.Journal.Type {
	case "sqlite":
		s, err := journal.NewSQLite(c.Journal.DBPath)
		if err != nil {
			return nil, err
		}
		j = s
	case "csv":
		sessions := c.Journal.SessionsFile
		if sessions == "" {
			sessions = filepath.Join(filepath.Dir(c.Journal.TradesFile), "sessions.csv")
		}
		s, err := journal.NewCSV(c.Journal.TradesFile, c.Journal.EquityFile, sessions)
		if err != nil {
			return nil, err
		}
		j = s
	case "kafka":
		k, err := journal.NewKafka(c.Journal.Kafka)
		if err != nil {
			return nil, err
		}
		j = k
	case "none", "":
		return journal.Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown journal type %q", c.Journal.Type)
	}

	if live {
		return journal.NewAsync(j, c.Journal.Buffer, log), nil
	}
	return j, nil
}
