package command

import (
	"fmt"
	"net"

	"github.com/pixil98/go-colony/internal/observer"
	"github.com/pixil98/go-colony/internal/world"
)

// ObserverConfig enables the read-only websocket feed when Addr is set.
type ObserverConfig struct {
	Addr         string `json:"addr"`
	LoopbackOnly bool   `json:"loopback_only"`
}

func (c *ObserverConfig) validate() error {
	if c.Addr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("observer: invalid addr %q: %w", c.Addr, err)
	}
	return nil
}

func (c *ObserverConfig) buildServer(w *world.World) *observer.Server {
	if c.Addr == "" {
		return nil
	}
	return observer.NewServer(w, observer.WithAddr(c.Addr), observer.WithLoopbackOnly(c.LoopbackOnly))
}
