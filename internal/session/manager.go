package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/pixil98/go-colony/internal/game"
	"github.com/pixil98/go-colony/internal/world"
)

// Subscriber delivers messages published on a subject until the returned
// function is called.
type Subscriber interface {
	Subscribe(subject string, handler func(data []byte)) (func(), error)
}

type ManagerOpt func(*Manager)

// WithRateLimits caps how many commands one session may issue per window.
func WithRateLimits(rates map[time.Duration]int) ManagerOpt {
	return func(m *Manager) {
		m.rates = rates
	}
}

// WithReady delays bus subscriptions until ready is closed.
func WithReady(ready <-chan struct{}) ManagerOpt {
	return func(m *Manager) {
		m.ready = ready
	}
}

// Manager runs user sessions against the world.
type Manager struct {
	world *world.World
	area  *game.Area
	bus   Subscriber
	ready <-chan struct{}

	rates   map[time.Duration]int
	limiter *catrate.Limiter

	mu       sync.Mutex
	names    map[string]string
	sessions map[string]*Session
}

func NewManager(w *world.World, area *game.Area, bus Subscriber, opts ...ManagerOpt) (*Manager, error) {
	m := &Manager{
		world:    w,
		area:     area,
		bus:      bus,
		names:    map[string]string{},
		sessions: map[string]*Session{},
	}
	for _, opt := range opts {
		opt(m)
	}

	if len(m.rates) > 0 {
		limiter, err := newLimiter(m.rates)
		if err != nil {
			return nil, err
		}
		m.limiter = limiter
	}

	return m, nil
}

func newLimiter(rates map[time.Duration]int) (l *catrate.Limiter, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid rate limits: %v", r)
		}
	}()
	return catrate.NewLimiter(rates), nil
}

func (m *Manager) Start(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// RunSession drives one connection from login to logoff.
func (m *Manager) RunSession(ctx context.Context, conn io.ReadWriter) error {
	s := newSession(m, conn)
	defer s.input.stop()
	defer m.release(s.id)

	if err := s.login(ctx); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := s.enter(ctx); err != nil {
		return fmt.Errorf("entering world: %w", err)
	}
	defer s.leave()

	m.register(s)
	defer m.unregister(s)

	unsubscribe, err := s.subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribing: %w", err)
	}
	defer unsubscribe()

	slog.InfoContext(ctx, "session started", "session", s.id, "name", s.name)
	err = s.play(ctx)
	slog.InfoContext(ctx, "session ended", "session", s.id, "name", s.name, "error", err)
	return err
}

// reserve claims name for a session. Names are case insensitive.
func (m *Manager) reserve(name, sessionID string) bool {
	key := strings.ToLower(name)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.names[key]; taken {
		return false
	}
	m.names[key] = sessionID
	return true
}

func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, id := range m.names {
		if id == sessionID {
			delete(m.names, name)
		}
	}
}

func (m *Manager) register(s *Session) {
	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
}

func (m *Manager) unregister(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s.id)
	m.mu.Unlock()
}

// Who lists the names of everyone playing, sorted.
func (m *Manager) Who() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.sessions))
	for _, s := range m.sessions {
		names = append(names, s.name)
	}
	sort.Strings(names)
	return names
}

// allow reports whether the session may issue another command now.
func (m *Manager) allow(sessionID string) (time.Time, bool) {
	return m.limiter.Allow(sessionID)
}
