// Package live feeds pushed bars into sessions. Each session gets a
// bounded queue drained by one worker, so a slow session never blocks the
// sender and bars are applied in arrival order.
package live

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/regimetrader/journal"
	"github.com/rustyeddy/regimetrader/market"
	"github.com/rustyeddy/regimetrader/session"
)

const DefaultQueueSize = 256

var (
	ErrQueueFull      = errors.New("live: queue full")
	ErrRunnerClosed   = errors.New("live: runner closed")
	ErrUnknownSession = errors.New("live: unknown session")
)

// Option configures a Runner.
type Option func(*Runner)

func WithQueueSize(n int) Option {
	return func(r *Runner) { r.size = n }
}

func WithJournal(j journal.Journal) Option {
	return func(r *Runner) { r.j = j }
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithUpdateHook is called on the worker goroutine after every bar,
// accepted or not.
func WithUpdateHook(fn func(session.Update, error)) Option {
	return func(r *Runner) { r.hook = fn }
}

// Stats counts what a runner has seen.
type Stats struct {
	Submitted int `json:"submitted"`
	Processed int `json:"processed"`
	Rejected  int `json:"rejected"`
	Dropped   int `json:"dropped"`
}

// Runner owns one session's queue and worker.
type Runner struct {
	s    *session.Session
	j    journal.Journal
	log  zerolog.Logger
	hook func(session.Update, error)
	size int

	mu     sync.RWMutex
	closed bool
	ch     chan market.Bar

	statMu sync.Mutex
	stats  Stats
}

func NewRunner(s *session.Session, opts ...Option) *Runner {
	r := &Runner{s: s, j: journal.Nop{}, log: zerolog.Nop(), size: DefaultQueueSize}
	for _, opt := range opts {
		opt(r)
	}
	if r.size <= 0 {
		r.size = DefaultQueueSize
	}
	r.ch = make(chan market.Bar, r.size)
	r.log = r.log.With().Str("session", s.ID()).Str("stream", s.Key()).Logger()
	return r
}

func (r *Runner) Session() *session.Session { return r.s }

// Submit queues b without blocking. A full queue drops the bar, records a
// queue_overflow event on the session and returns ErrQueueFull.
func (r *Runner) Submit(b market.Bar) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ErrRunnerClosed
	}
	select {
	case r.ch <- b:
		r.count(func(s *Stats) { s.Submitted++ })
		return nil
	default:
		r.count(func(s *Stats) { s.Dropped++ })
		r.s.RecordEvent(session.EventQueueOverflow, b.OpenTime,
			fmt.Sprintf("queue full (%d), bar dropped", cap(r.ch)))
		return ErrQueueFull
	}
}

// Run processes queued bars until ctx is done or the runner is closed and
// drained. Bars still queued when ctx ends are not processed.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info().Int("queue", cap(r.ch)).Msg("live runner started")
	defer r.log.Info().Msg("live runner stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-r.ch:
			if !ok {
				return nil
			}
			r.process(b)
		}
	}
}

func (r *Runner) process(b market.Bar) {
	upd, err := r.s.ProcessBar(b)
	if err != nil {
		r.count(func(s *Stats) { s.Rejected++ })
		if !errors.Is(err, session.ErrStopped) {
			r.log.Warn().Err(err).Time("bar_time", b.OpenTime).Msg("bar rejected")
		}
	} else {
		r.count(func(s *Stats) { s.Processed++ })
		if jerr := journal.RecordUpdate(r.j, upd); jerr != nil {
			r.log.Error().Err(jerr).Time("bar_time", b.OpenTime).Msg("journal write failed")
		}
	}
	if r.hook != nil {
		r.hook(upd, err)
	}
}

// Close stops accepting bars. Run returns once the queue is drained.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.ch)
}

func (r *Runner) Pending() int { return len(r.ch) }

func (r *Runner) Stats() Stats {
	r.statMu.Lock()
	defer r.statMu.Unlock()
	return r.stats
}

func (r *Runner) count(fn func(*Stats)) {
	r.statMu.Lock()
	fn(&r.stats)
	r.statMu.Unlock()
}
