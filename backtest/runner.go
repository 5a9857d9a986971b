// Package backtest drives a historical bar feed through a session.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/regimetrader/analytics"
	"github.com/rustyeddy/regimetrader/feed"
	"github.com/rustyeddy/regimetrader/journal"
	"github.com/rustyeddy/regimetrader/session"
)

// RunnerOptions controls how the backtest runner behaves.
type RunnerOptions struct {
	// If true, close any open position at the last bar's close.
	// Close reason will be CloseReason (or "end_of_data" if empty).
	CloseEnd    bool
	CloseReason string

	// Dataset and Config are copied into the journaled session record.
	Dataset string
	Config  []byte

	// StrictBars stops the run on the first rejected bar instead of
	// counting it and moving on.
	StrictBars bool
}

// Result is a summary of a backtest run.
type Result struct {
	SessionID string
	Summary   analytics.Summary

	Bars     int
	Rejected int
	Events   map[session.EventKind]int

	Start time.Time
	End   time.Time
}

// Runner pulls bars from Feed through Session.
type Runner struct {
	Session *session.Session
	Feed    feed.Source
	Journal journal.Journal
	Log     zerolog.Logger
	Options RunnerOptions
}

// Run executes the backtest loop:
//  1. read next bar
//  2. session.ProcessBar(bar)
//  3. journal the closed trade and equity point
//
// Cancellation is checked between bars. The session is closed on return
// and, when a journal is set, its summary is recorded.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if r.Session == nil {
		return Result{}, fmt.Errorf("backtest: Session is required")
	}
	if r.Feed == nil {
		return Result{}, fmt.Errorf("backtest: Feed is required")
	}
	defer r.Feed.Close()

	j := r.Journal
	if j == nil {
		j = journal.Nop{}
	}

	res := Result{SessionID: r.Session.ID()}
	log := r.Log.With().Str("session", res.SessionID).Logger()

	for {
		if err := ctx.Err(); err != nil {
			return r.finish(j, res, log, err)
		}

		b, ok, err := r.Feed.Next()
		if err != nil {
			return r.finish(j, res, log, fmt.Errorf("backtest: feed: %w", err))
		}
		if !ok {
			break
		}

		upd, err := r.Session.ProcessBar(b)
		if err != nil {
			if !isBarRejection(err) || r.Options.StrictBars {
				return r.finish(j, res, log, fmt.Errorf("backtest: %w", err))
			}
			res.Rejected++
			continue
		}

		res.Bars++
		if res.Start.IsZero() {
			res.Start = upd.Bar.OpenTime
		}
		res.End = upd.Bar.OpenTime

		if err := journal.RecordUpdate(j, upd); err != nil {
			log.Error().Err(err).Time("bar_time", upd.Bar.OpenTime).Msg("journal write failed")
		}
	}

	if r.Options.CloseEnd {
		reason := r.Options.CloseReason
		if reason == "" {
			reason = "end_of_data"
		}
		tr, err := r.Session.Flatten(reason)
		if err != nil {
			return r.finish(j, res, log, fmt.Errorf("backtest: %w", err))
		}
		if tr != nil {
			rec := journal.NewTradeRecord(res.SessionID, r.Session.Config().Timeframe.String(), *tr)
			if err := j.RecordTrade(rec); err != nil {
				log.Error().Err(err).Msg("journal write failed")
			}
		}
	}

	return r.finish(j, res, log, nil)
}

func (r *Runner) finish(j journal.Journal, res Result, log zerolog.Logger, runErr error) (Result, error) {
	res.Summary = r.Session.Close()
	res.Events = r.Session.EventCounts()

	rec := journal.NewSessionRecord(r.Session, "backtest", r.Options.Dataset, r.Options.Config)
	if err := j.RecordSession(rec); err != nil {
		log.Error().Err(err).Msg("journal session write failed")
	}

	ev := log.Info()
	if runErr != nil {
		ev = log.Warn().Err(runErr)
	}
	ev.Int("bars", res.Bars).
		Int("rejected", res.Rejected).
		Int("trades", res.Summary.Trades).
		Float64("equity", res.Summary.FinalEquity).
		Msg("backtest finished")

	return res, runErr
}

func isBarRejection(err error) bool {
	return errors.Is(err, session.ErrDuplicateBar) ||
		errors.Is(err, session.ErrOutOfOrderBar) ||
		errors.Is(err, session.ErrMalformedBar)
}
