package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"github.com/pixil98/go-colony/internal/world"
)

// Conn is the part of a NATS connection the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Publisher forwards every flushed change and event batch from the world to
// NATS. Empty batches are not sent.
type Publisher struct {
	conn  Conn
	world *world.World
	ready <-chan struct{}

	seq    atomic.Uint64
	failed atomic.Uint64
}

func NewPublisher(conn Conn, w *world.World, ready <-chan struct{}) *Publisher {
	return &Publisher{
		conn:  conn,
		world: w,
		ready: ready,
	}
}

// Start subscribes to the world once the connection is ready and stays
// subscribed until ctx is canceled.
func (p *Publisher) Start(ctx context.Context) error {
	if p.ready != nil {
		select {
		case <-p.ready:
		case <-ctx.Done():
			return nil
		}
	}

	detach := p.Attach()
	slog.InfoContext(ctx, "publishing world updates", "changes", SubjectChanges, "events", SubjectEvents)

	<-ctx.Done()
	detach()
	return nil
}

// Attach subscribes to the world's bus and returns a function that undoes it.
func (p *Publisher) Attach() func() {
	unsubChanges := p.world.SubscribeChanges(p.publishChanges)
	unsubEvents := p.world.SubscribeEvents(p.publishEvents)
	return func() {
		unsubChanges()
		unsubEvents()
	}
}

// Failed returns how many batches could not be published.
func (p *Publisher) Failed() uint64 {
	return p.failed.Load()
}

func (p *Publisher) publishChanges(changes []world.Change) {
	if len(changes) == 0 {
		return
	}
	records, err := ChangeRecords(changes)
	p.send(SubjectChanges, records, err)
}

func (p *Publisher) publishEvents(events []world.Event) {
	if len(events) == 0 {
		return
	}
	records, err := EventRecords(events)
	p.send(SubjectEvents, records, err)
}

func (p *Publisher) send(subject string, records []Record, err error) {
	if err == nil {
		var data []byte
		data, err = json.Marshal(Batch{
			Seq:     p.seq.Add(1),
			Tick:    p.world.TickNumber(),
			Records: records,
		})
		if err == nil {
			err = p.conn.Publish(subject, data)
		}
	}
	if err != nil {
		p.failed.Add(1)
		slog.Warn("publishing world batch", "subject", subject, "error", err)
	}
}
