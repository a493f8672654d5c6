package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pixil98/go-colony/internal/world"
	"github.com/pixil98/go-testutil"
)

type noteChange struct {
	Text string `json:"text"`
}

func (noteChange) ChangeKind() string { return "note" }

func newTestServer(t *testing.T, opts ...ServerOpt) (*world.World, *Server, *httptest.Server) {
	t.Helper()

	w, err := world.New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := NewServer(w, opts...)
	detach := s.Attach()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.closeClients()
		ts.Close()
		detach()
	})
	return w, s, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dialing observer: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading message: %v", err)
	}
	return msg
}

func TestServer_Streams(t *testing.T) {
	w, s, ts := newTestServer(t)
	conn := dial(t, ts)

	hello := readMessage(t, conn)
	testutil.AssertEqual(t, "hello type", hello.Type, MsgHello)
	if hello.Snapshot == nil {
		t.Fatal("hello without snapshot")
	}
	testutil.AssertEqual(t, "hello state", hello.Snapshot.StateName, "idle")
	testutil.AssertEqual(t, "observers", s.Observers(), 1)

	ctx := context.Background()

	// A quiet unit of work sends nothing.
	w.BeginInvokeInstant(func(*world.World) {})
	w.Pump(ctx)

	w.BeginInvokeInstant(func(w *world.World) {
		w.RecordChange(noteChange{Text: "hello"})
	})
	w.Pump(ctx)

	msg := readMessage(t, conn)
	testutil.AssertEqual(t, "type", msg.Type, MsgChanges)
	testutil.AssertEqual(t, "records", len(msg.Records), 1)
	testutil.AssertEqual(t, "kind", msg.Records[0].Kind, "note")

	var note noteChange
	if err := msg.Records[0].Decode(&note); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "text", note.Text, "hello")

	// With nobody connected, ticks start only on request.
	w.RequestTickStart()
	w.Pump(ctx)

	msg = readMessage(t, conn)
	testutil.AssertEqual(t, "turn type", msg.Type, MsgChanges)
	testutil.AssertEqual(t, "turn start", msg.Records[0].Kind, world.KindTurnStart)

	msg = readMessage(t, conn)
	testutil.AssertEqual(t, "tick type", msg.Type, MsgEvents)
	testutil.AssertEqual(t, "tick start", msg.Records[0].Kind, world.KindTickStart)
	testutil.AssertEqual(t, "tick", msg.Tick, 1)
}

func TestServer_ObserverLeaves(t *testing.T) {
	_, s, ts := newTestServer(t)
	conn := dial(t, ts)
	readMessage(t, conn)

	conn.Close()

	deadline := time.Now().Add(3 * time.Second)
	for s.Observers() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("observer was not removed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServer_Shutdown(t *testing.T) {
	_, s, ts := newTestServer(t)
	conn := dial(t, ts)
	readMessage(t, conn)

	s.closeClients()

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := conn.ReadMessage()
	testutil.AssertEqual(t, "going away", websocket.IsCloseError(err, websocket.CloseGoingAway), true)

	_, _, ok := s.join()
	testutil.AssertEqual(t, "join after close", ok, false)
}

func TestServer_SlowObserverDrops(t *testing.T) {
	w, s, _ := newTestServer(t)
	_, out, ok := s.join()
	if !ok {
		t.Fatal("join refused")
	}

	for i := 0; i < clientBuffer+3; i++ {
		w.BeginInvokeInstant(func(w *world.World) {
			w.RecordChange(noteChange{Text: "spam"})
		})
		w.Pump(context.Background())
	}

	testutil.AssertEqual(t, "queued", len(out), clientBuffer)
	testutil.AssertEqual(t, "dropped", s.Dropped(), uint64(3))
}

func TestSnapshotHandler(t *testing.T) {
	tests := map[string]struct {
		method   string
		remote   string
		loopback bool
		expCode  int
	}{
		"get":              {method: http.MethodGet, remote: "127.0.0.1:5000", expCode: http.StatusOK},
		"post":             {method: http.MethodPost, remote: "127.0.0.1:5000", expCode: http.StatusMethodNotAllowed},
		"remote allowed":   {method: http.MethodGet, remote: "203.0.113.5:5000", expCode: http.StatusOK},
		"remote refused":   {method: http.MethodGet, remote: "203.0.113.5:5000", loopback: true, expCode: http.StatusForbidden},
		"ipv6 loopback":    {method: http.MethodGet, remote: "[::1]:5000", loopback: true, expCode: http.StatusOK},
		"unparseable addr": {method: http.MethodGet, remote: "somewhere", loopback: true, expCode: http.StatusForbidden},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			w, err := world.New()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			s := NewServer(w, WithLoopbackOnly(tt.loopback))

			req := httptest.NewRequest(tt.method, "/snapshot", nil)
			req.RemoteAddr = tt.remote
			rec := httptest.NewRecorder()
			s.SnapshotHandler()(rec, req)

			testutil.AssertEqual(t, "status", rec.Code, tt.expCode)
			if tt.expCode != http.StatusOK {
				return
			}

			var snap world.Snapshot
			if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
				t.Fatalf("decoding snapshot: %v", err)
			}
			testutil.AssertEqual(t, "state", snap.StateName, "idle")
			testutil.AssertEqual(t, "method", snap.Method, world.TickSimultaneous)
		})
	}
}
