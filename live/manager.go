package live

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/regimetrader/analytics"
	"github.com/rustyeddy/regimetrader/market"
	"github.com/rustyeddy/regimetrader/session"
)

// Manager routes bars to per-session runners by stream key.
type Manager struct {
	sessions *session.Manager
	log      zerolog.Logger

	mu      sync.RWMutex
	runners map[string]*Runner
	started bool
	wg      sync.WaitGroup
}

func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		sessions: session.NewManager(),
		log:      log,
		runners:  make(map[string]*Runner),
	}
}

// Add registers s with its own runner. Sessions must be added before Start.
func (m *Manager) Add(s *session.Session, opts ...Option) (*Runner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil, errors.New("live: manager already started")
	}
	if err := m.sessions.Add(s); err != nil {
		return nil, err
	}
	r := NewRunner(s, append([]Option{WithLogger(m.log)}, opts...)...)
	m.runners[s.Key()] = r
	return r, nil
}

// Start launches one worker per runner. Workers stop when ctx is done or
// on Shutdown.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true

	for _, r := range m.runners {
		m.wg.Add(1)
		go func(r *Runner) {
			defer m.wg.Done()
			if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				m.log.Error().Err(err).Str("stream", r.s.Key()).Msg("live runner failed")
			}
		}(r)
	}
}

// Dispatch queues b on the runner for its stream.
func (m *Manager) Dispatch(b market.Bar) error {
	m.mu.RLock()
	r, ok := m.runners[b.Key()]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, b.Key())
	}
	return r.Submit(b)
}

// Runner returns the runner for a stream key.
func (m *Manager) Runner(key string) (*Runner, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runners[key]
	return r, ok
}

// Keys lists stream keys in order.
func (m *Manager) Keys() []string {
	return m.sessions.Keys()
}

// Sessions returns the managed sessions ordered by key.
func (m *Manager) Sessions() []*session.Session {
	return m.sessions.Sessions()
}

// Shutdown closes every queue, waits for workers to drain them and closes
// the sessions. It returns the final summaries by stream key.
func (m *Manager) Shutdown() map[string]analytics.Summary {
	m.mu.RLock()
	for _, r := range m.runners {
		r.Close()
	}
	m.mu.RUnlock()

	m.wg.Wait()
	return m.sessions.CloseAll()
}
