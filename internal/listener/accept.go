package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
)

type ListenerOpt func(*listenConfig)

type listenConfig struct {
	host string
	port uint16
}

// WithHost binds the listener to host instead of every interface.
func WithHost(host string) ListenerOpt {
	return func(c *listenConfig) {
		c.host = host
	}
}

func newListenConfig(port uint16, opts []ListenerOpt) listenConfig {
	c := listenConfig{port: port}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c listenConfig) addr() string {
	return net.JoinHostPort(c.host, strconv.Itoa(int(c.port)))
}

// serve accepts connections on ln until ctx is canceled, then waits for every
// handler to return. Handlers share a context that is canceled at shutdown.
func serve(ctx context.Context, ln net.Listener, handle func(context.Context, net.Conn)) error {
	connCtx, cancelConns := context.WithCancel(context.WithoutCancel(ctx))
	var wg sync.WaitGroup
	defer func() {
		cancelConns()
		wg.Wait()
	}()

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("accepting on %s: %w", ln.Addr(), err)
			}
			slog.WarnContext(ctx, "accepting connection", "addr", ln.Addr(), "error", err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { _ = conn.Close() }()
			handle(connCtx, conn)
		}()
	}
}
