package journal

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrJournalFull is returned when the async buffer is full. The record is
// dropped.
var ErrJournalFull = errors.New("journal buffer full")

// ErrJournalClosed is returned after Close.
var ErrJournalClosed = errors.New("journal closed")

// Async moves writes to a background goroutine so callers never wait on
// disk or network. Record* calls never block; write errors are logged.
type Async struct {
	next Journal
	log  zerolog.Logger

	mu     sync.RWMutex
	closed bool
	ch     chan func() error
	done   chan struct{}

	errMu   sync.Mutex
	dropped int
	failed  int
}

// NewAsync wraps next with a buffer of size records.
func NewAsync(next Journal, size int, log zerolog.Logger) *Async {
	if size <= 0 {
		size = 1024
	}
	a := &Async{
		next: next,
		log:  log,
		ch:   make(chan func() error, size),
		done: make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for op := range a.ch {
		if err := op(); err != nil {
			a.errMu.Lock()
			a.failed++
			a.errMu.Unlock()
			a.log.Error().Err(err).Msg("journal write failed")
		}
	}
}

func (a *Async) enqueue(op func() error) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return ErrJournalClosed
	}
	select {
	case a.ch <- op:
		return nil
	default:
		a.errMu.Lock()
		a.dropped++
		a.errMu.Unlock()
		a.log.Warn().Msg("journal buffer full, record dropped")
		return ErrJournalFull
	}
}

func (a *Async) RecordTrade(t TradeRecord) error {
	return a.enqueue(func() error { return a.next.RecordTrade(t) })
}

func (a *Async) RecordEquity(e EquitySnapshot) error {
	return a.enqueue(func() error { return a.next.RecordEquity(e) })
}

func (a *Async) RecordSession(r SessionRecord) error {
	return a.enqueue(func() error { return a.next.RecordSession(r) })
}

// Stats reports records dropped on a full buffer and writes that failed.
func (a *Async) Stats() (dropped, failed int) {
	a.errMu.Lock()
	defer a.errMu.Unlock()
	return a.dropped, a.failed
}

// Close drains the buffer, then closes the wrapped journal.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.ch)
	a.mu.Unlock()

	<-a.done
	return a.next.Close()
}
