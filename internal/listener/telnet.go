package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"syscall"

	"github.com/iammegalith/telnet"
)

type TelnetListener struct {
	addr string
	cm   *ConnectionManager
}

func NewTelnetListener(port uint16, cm *ConnectionManager, opts ...ListenerOpt) *TelnetListener {
	return &TelnetListener{
		addr: newListenConfig(port, opts).addr(),
		cm:   cm,
	}
}

func (l *TelnetListener) Start(ctx context.Context) error {
	connCtx, cancelConns := context.WithCancel(context.WithoutCancel(ctx))
	handler := &telnetHandler{
		cm:          l.cm,
		ctx:         WithConnInfo(connCtx, ConnInfo{Protocol: "telnet"}),
		cancelConns: cancelConns,
	}

	svr := telnet.NewServer(l.addr, handler)
	slog.InfoContext(ctx, "listening for telnet", "addr", l.addr)

	stop := context.AfterFunc(ctx, func() {
		svr.Stop()
		handler.stop()
	})
	defer stop()

	err := svr.ListenAndServe()
	if err != nil && ctx.Err() == nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("%s is already in use (another server running?)", l.addr)
		}
		return fmt.Errorf("serving telnet on %s: %w", l.addr, err)
	}

	return nil
}

// telnetHandler runs each telnet connection as a session until the listener
// stops, then waits for the sessions to end.
type telnetHandler struct {
	wg          sync.WaitGroup
	cm          *ConnectionManager
	ctx         context.Context
	cancelConns context.CancelFunc
}

func (h *telnetHandler) HandleTelnet(conn *telnet.Connection) {
	h.wg.Add(1)
	defer h.wg.Done()
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Warn("closing telnet connection", "error", err)
		}
	}()

	h.cm.AcceptConnection(h.ctx, newLineEndings(conn))
}

func (h *telnetHandler) stop() {
	h.cancelConns()
	h.wg.Wait()
}
