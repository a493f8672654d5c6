package command

import (
	"fmt"

	"github.com/pixil98/go-colony/internal/journal"
	"github.com/pixil98/go-colony/internal/world"
)

// JournalConfig enables the on-disk record journal when Dir is set.
type JournalConfig struct {
	Dir       string `json:"dir"`
	QueueSize int    `json:"queue_size"`
}

func (c *JournalConfig) validate() error {
	if c.QueueSize < 0 {
		return fmt.Errorf("journal: queue_size must not be negative")
	}
	return nil
}

func (c *JournalConfig) buildJournal(w *world.World) *journal.Journal {
	if c.Dir == "" {
		return nil
	}
	var opts []journal.JournalOpt
	if c.QueueSize > 0 {
		opts = append(opts, journal.WithQueueSize(c.QueueSize))
	}
	return journal.New(w, c.Dir, opts...)
}
