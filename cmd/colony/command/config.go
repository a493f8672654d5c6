package command

import (
	"fmt"
	"os"
	"time"

	"github.com/pixil98/go-errors"
)

type Config struct {
	Tuning    string           `json:"tuning"`
	Species   AssetConfig      `json:"species"`
	Listeners []ListenerConfig `json:"listeners"`
	Sessions  SessionConfig    `json:"sessions"`
	Nats      NatsConfig       `json:"nats"`
	Observer  ObserverConfig   `json:"observer"`
	Journal   JournalConfig    `json:"journal"`
	Console   ConsoleConfig    `json:"console"`
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	if c.Tuning != "" {
		if _, err := os.Stat(c.Tuning); err != nil {
			el.Add(fmt.Errorf("tuning: invalid path %q: %w", c.Tuning, err))
		}
	}

	el.Add(c.Species.validate("species"))

	if len(c.Listeners) == 0 {
		el.Add(fmt.Errorf("at least one listener is required"))
	}
	for i, l := range c.Listeners {
		err := l.validate()
		if err != nil {
			el.Add(fmt.Errorf("listener %d: %w", i, err))
		}
	}

	el.Add(c.Sessions.validate())
	el.Add(c.Nats.validate())
	el.Add(c.Observer.validate())
	el.Add(c.Journal.validate())
	el.Add(c.Console.validate())

	return el.Err()
}

type SessionConfig struct {
	MaxConnections int `json:"max_connections"`
}

func (c *SessionConfig) validate() error {
	if c.MaxConnections < 0 {
		return fmt.Errorf("sessions: max_connections must not be negative")
	}
	return nil
}

type ConsoleConfig struct {
	Enabled bool   `json:"enabled"`
	Refresh string `json:"refresh"`
}

func (c *ConsoleConfig) validate() error {
	if c.Refresh == "" {
		return nil
	}
	d, err := time.ParseDuration(c.Refresh)
	if err != nil {
		return fmt.Errorf("console: parsing refresh: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("console: refresh must be positive")
	}
	return nil
}
