package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/regimetrader/analytics"
	"github.com/rustyeddy/regimetrader/internal/metrics"
	"github.com/rustyeddy/regimetrader/live"
	"github.com/rustyeddy/regimetrader/reflection"
	"github.com/rustyeddy/regimetrader/session"
	"github.com/rustyeddy/regimetrader/webhook"
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Serve TradingView webhooks and run every configured session",
	Long: `Start one runner per configured session and accept bars on
POST /webhook/tradingview. Each bar is routed by symbol and timeframe.

On SIGINT or SIGTERM the listener stops, queued bars are drained, and
every session is closed, reviewed and journaled.

Examples:
  trader live -c trader.yaml
  trader live -c trader.yaml --listen :9000 --secret $WEBHOOK_SECRET`,
	RunE: runLive,
}

var (
	liveListen string
	liveSecret string
)

func init() {
	rootCmd.AddCommand(liveCmd)

	liveCmd.Flags().StringVar(&liveListen, "listen", "", "override live.webhook.listen")
	liveCmd.Flags().StringVar(&liveSecret, "secret", "", "override live.webhook.secret")
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	if liveListen != "" {
		cfg.Live.Webhook.Listen = liveListen
	}
	if liveSecret != "" {
		cfg.Live.Webhook.Secret = liveSecret
	}

	j, err := cfg.OpenJournal(true, log)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	var rec *metrics.Recorder
	if cfg.Live.MetricsEnabled() {
		rec = metrics.New()
	}

	m := live.NewManager(log)
	configs := make(map[string][]byte, len(cfg.Sessions))
	for _, sc := range cfg.Sessions {
		opts := []session.Option{session.WithLogger(log)}
		if rec != nil {
			opts = append(opts, session.WithObserver(rec))
		}
		s, err := sc.NewSession(opts...)
		if err != nil {
			return fmt.Errorf("%s: %w", sc.Key(), err)
		}
		if _, err := m.Add(s,
			live.WithQueueSize(cfg.Live.QueueSize),
			live.WithJournal(j),
			live.WithLogger(log),
		); err != nil {
			return err
		}
		configs[s.Key()] = sc.YAML()
	}

	// Runners use their own context so Shutdown can drain queued bars
	// after the listener is gone.
	m.Start(context.Background())

	srvOpts := []webhook.Option{webhook.WithLogger(log)}
	if rec != nil {
		srvOpts = append(srvOpts, webhook.WithMetrics(rec.Handler()))
	}
	srv := webhook.New(cfg.Live.Webhook, m, srvOpts...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Strs("streams", m.Keys()).Msg("live sessions started")
	runErr := srv.Run(ctx)

	sums := m.Shutdown()
	review := reflection.NewFeed(j, len(sums), log)
	for _, s := range m.Sessions() {
		if err := review.Submit(reflection.FromSession(s, "live", "webhook", configs[s.Key()])); err != nil {
			log.Warn().Err(err).Str("session", s.ID()).Msg("review skipped")
		}
	}
	review.Close()

	out := cmd.OutOrStdout()
	for _, s := range m.Sessions() {
		fmt.Fprintf(out, "\n%s  session %s\n", s.Key(), s.ID())
		analytics.PrintSummary(out, sums[s.Key()])
		if rep, ok := review.Report(s.ID()); ok {
			printReview(out, rep)
		}
	}
	return runErr
}
