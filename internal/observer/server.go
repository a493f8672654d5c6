package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pixil98/go-colony/internal/messaging"
	"github.com/pixil98/go-colony/internal/world"
)

const (
	MsgHello   = "HELLO"
	MsgChanges = "CHANGES"
	MsgEvents  = "EVENTS"

	clientBuffer = 256
	writeTimeout = 5 * time.Second
	readTimeout  = 60 * time.Second
)

// Message is what observers receive. Hello carries a snapshot; the others
// carry one flushed batch each.
type Message struct {
	Type     string             `json:"type"`
	Tick     int                `json:"tick"`
	Snapshot *world.Snapshot    `json:"snapshot,omitempty"`
	Records  []messaging.Record `json:"records,omitempty"`
}

type ServerOpt func(*Server)

// WithAddr sets the address the HTTP server listens on.
func WithAddr(addr string) ServerOpt {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithLoopbackOnly refuses observers that are not on this machine.
func WithLoopbackOnly(only bool) ServerOpt {
	return func(s *Server) {
		s.loopbackOnly = only
	}
}

// Server streams world changes and events to websocket observers, such as a
// map viewer or a test harness.
type Server struct {
	world        *world.World
	addr         string
	loopbackOnly bool
	upgrader     websocket.Upgrader

	mu      sync.Mutex
	closed  bool
	nextID  uint64
	clients map[uint64]chan []byte

	dropped atomic.Uint64
}

func NewServer(w *world.World, opts ...ServerOpt) *Server {
	s := &Server{
		world:   w,
		addr:    ":8081",
		clients: map[uint64]chan []byte{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start serves observers until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	detach := s.Attach()
	defer detach()

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	slog.InfoContext(ctx, "observer listening", "addr", s.addr)

	select {
	case err := <-errCh:
		return fmt.Errorf("serving observers on %s: %w", s.addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.closeClients()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down observer server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Attach subscribes to the world's bus and returns a function that undoes it.
func (s *Server) Attach() func() {
	unsubChanges := s.world.SubscribeChanges(func(changes []world.Change) {
		if len(changes) == 0 {
			return
		}
		records, err := messaging.ChangeRecords(changes)
		s.broadcast(MsgChanges, records, err)
	})
	unsubEvents := s.world.SubscribeEvents(func(events []world.Event) {
		if len(events) == 0 {
			return
		}
		records, err := messaging.EventRecords(events)
		s.broadcast(MsgEvents, records, err)
	})
	return func() {
		unsubChanges()
		unsubEvents()
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/snapshot", s.SnapshotHandler())
	mux.HandleFunc("/ws", s.WSHandler())
	return mux
}

// Dropped is how many messages were not delivered to slow observers.
func (s *Server) Dropped() uint64 {
	return s.dropped.Load()
}

// Observers is the number of connected observers.
func (s *Server) Observers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) SnapshotHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		rw.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(rw).Encode(s.world.Snapshot()); err != nil {
			slog.Warn("writing snapshot", "error", err)
		}
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		id, out, ok := s.join()
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
			return
		}
		defer s.leave(id)

		snap := s.world.Snapshot()
		hello, err := json.Marshal(Message{Type: MsgHello, Tick: snap.Tick, Snapshot: &snap})
		if err != nil {
			slog.Error("encoding observer hello", "error", err)
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
			return
		}
		slog.Info("observer connected", "observer", id, "remote", r.RemoteAddr)

		writeErr := make(chan error, 1)
		go func() {
			for b := range out {
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					writeErr <- err
					return
				}
			}
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
			writeErr <- nil
		}()

		// Observers do not send anything; reading notices when they leave.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		slog.Info("observer disconnected", "observer", id)

		s.leave(id)
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *Server) join() (uint64, chan []byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, nil, false
	}
	s.nextID++
	out := make(chan []byte, clientBuffer)
	s.clients[s.nextID] = out
	return s.nextID, out, true
}

// leave closes the observer's queue once; later calls do nothing.
func (s *Server) leave(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if out, ok := s.clients[id]; ok {
		delete(s.clients, id)
		close(out)
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for id, out := range s.clients {
		delete(s.clients, id)
		close(out)
	}
}

func (s *Server) broadcast(kind string, records []messaging.Record, err error) {
	if err != nil {
		slog.Warn("encoding observer batch", "type", kind, "error", err)
		return
	}
	b, err := json.Marshal(Message{Type: kind, Tick: s.world.TickNumber(), Records: records})
	if err != nil {
		slog.Warn("encoding observer batch", "type", kind, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, out := range s.clients {
		select {
		case out <- b:
		default:
			s.dropped.Add(1)
		}
	}
}

func (s *Server) allowed(r *http.Request) bool {
	return !s.loopbackOnly || isLoopbackRemote(r.RemoteAddr)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
