package listener

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

// ConnInfo describes where a connection came from.
type ConnInfo struct {
	Protocol string
	Remote   string
}

type connInfoKey struct{}

func WithConnInfo(ctx context.Context, info ConnInfo) context.Context {
	return context.WithValue(ctx, connInfoKey{}, info)
}

// ConnInfoFrom returns the ConnInfo a listener attached to ctx.
func ConnInfoFrom(ctx context.Context) (ConnInfo, bool) {
	info, ok := ctx.Value(connInfoKey{}).(ConnInfo)
	return info, ok
}

// SessionRunner drives one connection until the user leaves.
type SessionRunner interface {
	RunSession(ctx context.Context, conn io.ReadWriter) error
}

type ConnectionManagerOpt func(*ConnectionManager)

// WithMaxConnections turns away connections beyond n. Zero means no limit.
func WithMaxConnections(n int) ConnectionManagerOpt {
	return func(m *ConnectionManager) {
		m.max = int64(n)
	}
}

// ConnectionManager hands accepted connections from every listener to the
// session runner.
type ConnectionManager struct {
	sessions SessionRunner
	max      int64
	active   atomic.Int64
	total    atomic.Uint64
}

func NewConnectionManager(sr SessionRunner, opts ...ConnectionManagerOpt) *ConnectionManager {
	m := &ConnectionManager{sessions: sr}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *ConnectionManager) AcceptConnection(ctx context.Context, conn io.ReadWriter) {
	n := m.active.Add(1)
	defer m.active.Add(-1)
	m.total.Add(1)

	info, _ := ConnInfoFrom(ctx)
	logger := slog.With("protocol", info.Protocol, "remote", info.Remote)

	if m.max > 0 && n > m.max {
		logger.WarnContext(ctx, "turning away connection", "active", n-1, "max", m.max)
		_, _ = io.WriteString(conn, "The colony is full, please try again later.\n")
		return
	}

	start := time.Now()
	logger.InfoContext(ctx, "connection opened", "active", n)
	if err := m.sessions.RunSession(ctx, conn); err != nil {
		logger.WarnContext(ctx, "user session", "error", err)
	}
	logger.InfoContext(ctx, "connection closed", "duration", time.Since(start).Round(time.Millisecond))
}

// Active is the number of connections currently being served.
func (m *ConnectionManager) Active() int {
	return int(m.active.Load())
}

// Total is the number of connections accepted since start.
func (m *ConnectionManager) Total() uint64 {
	return m.total.Load()
}
