package reflection

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/regimetrader/journal"
	"github.com/rustyeddy/regimetrader/regime"
	"github.com/rustyeddy/regimetrader/session"
	"github.com/rustyeddy/regimetrader/sim"
)

var (
	ErrFeedFull   = errors.New("reflection queue full")
	ErrFeedClosed = errors.New("reflection feed closed")
)

// Input is what the feed needs from a finished session.
type Input struct {
	Record  journal.SessionRecord
	Trades  []sim.Trade
	Regimes []regime.Point
}

// FromSession snapshots s for the feed.
func FromSession(s *session.Session, mode, dataset string, config []byte) Input {
	return Input{
		Record:  journal.NewSessionRecord(s, mode, dataset, config),
		Trades:  s.Trades(),
		Regimes: s.RegimeHistory(),
	}
}

// Feed analyzes sessions on a background goroutine and writes the session
// record, with its notes attached, to a journal.
type Feed struct {
	j   journal.Journal
	log zerolog.Logger

	mu      sync.RWMutex
	closed  bool
	ch      chan Input
	done    chan struct{}
	reports map[string]Report
}

// NewFeed starts the worker. j may be nil to keep reports in memory only.
func NewFeed(j journal.Journal, size int, log zerolog.Logger) *Feed {
	if size <= 0 {
		size = 16
	}
	f := &Feed{
		j:       j,
		log:     log,
		ch:      make(chan Input, size),
		done:    make(chan struct{}),
		reports: map[string]Report{},
	}
	go f.run()
	return f
}

// Submit queues in without waiting.
func (f *Feed) Submit(in Input) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return ErrFeedClosed
	}
	select {
	case f.ch <- in:
		return nil
	default:
		f.log.Warn().Str("session", in.Record.SessionID).Msg("reflection queue full")
		return ErrFeedFull
	}
}

func (f *Feed) run() {
	defer close(f.done)
	for in := range f.ch {
		r := f.process(in)

		f.mu.Lock()
		f.reports[r.SessionID] = r
		f.mu.Unlock()
	}
}

func (f *Feed) process(in Input) Report {
	rec := in.Record
	r := Analyze(rec.SessionID, rec.Summary, in.Trades, in.Regimes)

	f.log.Info().
		Str("session", r.SessionID).
		Int("rating", r.Rating).
		Int("trades", r.Summary.Trades).
		Int("transitions", len(r.Transitions)).
		Msg("session reviewed")

	if f.j != nil {
		rec.Notes = append(rec.Notes, r.Notes()...)
		rec.NextActions = append(rec.NextActions, r.NextActions...)
		if err := f.j.RecordSession(rec); err != nil {
			f.log.Error().Err(err).Str("session", r.SessionID).Msg("record reviewed session")
		}
	}
	return r
}

// Report returns the review of a session once it has been processed.
func (f *Feed) Report(sessionID string) (Report, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	r, ok := f.reports[sessionID]
	return r, ok
}

// Close waits for queued sessions to be reviewed. It does not close the
// journal.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	close(f.ch)
	f.mu.Unlock()

	<-f.done
}
