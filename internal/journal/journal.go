package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pixil98/go-colony/internal/messaging"
	"github.com/pixil98/go-colony/internal/registry"
	"github.com/pixil98/go-colony/internal/world"
)

const (
	StreamChange = "change"
	StreamEvent  = "event"

	timeLayout = time.RFC3339Nano
	indexFile  = "journal.sqlite"
	logPrefix  = "journal"
)

// Entry is one journaled change or event.
type Entry struct {
	Seq      uint64          `json:"seq"`
	Tick     int             `json:"tick"`
	Time     time.Time       `json:"time"`
	Stream   string          `json:"stream"`
	Kind     string          `json:"kind"`
	ObjectID *registry.ID    `json:"object_id,omitempty"`
	Data     json.RawMessage `json:"data"`
}

type JournalOpt func(*Journal)

// WithQueueSize bounds how many batches may wait for the writer. Batches that
// do not fit are dropped and counted.
func WithQueueSize(n int) JournalOpt {
	return func(j *Journal) {
		j.queueSize = n
	}
}

// Journal records every flushed change and event to rotating compressed log
// files and a sqlite index. Writing happens on one goroutine so the scheduler
// never waits on the disk.
type Journal struct {
	world     *world.World
	dir       string
	queueSize int
	now       func() time.Time

	mu     sync.RWMutex
	queue  chan []Entry
	closed bool
	ready  chan struct{}

	seq     atomic.Uint64
	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64

	log   *LogFile
	index *Index
}

func New(w *world.World, dir string, opts ...JournalOpt) *Journal {
	j := &Journal{
		world:     w,
		dir:       dir,
		queueSize: 4096,
		now:       time.Now,
		ready:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Start journals world output until ctx is canceled, then drains what is
// queued and closes the files.
func (j *Journal) Start(ctx context.Context) error {
	index, err := OpenIndex(filepath.Join(j.dir, indexFile))
	if err != nil {
		return fmt.Errorf("opening journal index: %w", err)
	}
	last, err := index.LastSeq(ctx)
	if err != nil {
		_ = index.Close()
		return fmt.Errorf("reading journal index: %w", err)
	}
	j.seq.Store(last)
	j.index = index
	j.log = NewLogFile(j.dir, logPrefix)
	j.log.now = j.now

	j.mu.Lock()
	j.queue = make(chan []Entry, j.queueSize)
	j.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		j.loop()
	}()

	detach := j.attach()
	close(j.ready)
	slog.InfoContext(ctx, "journal started", "dir", j.dir, "seq", last)

	<-ctx.Done()

	detach()
	j.mu.Lock()
	j.closed = true
	close(j.queue)
	j.mu.Unlock()
	<-done

	err = errors.Join(j.log.Close(), j.index.Close())
	slog.InfoContext(ctx, "journal stopped", "written", j.written.Load(), "dropped", j.dropped.Load(), "failed", j.failed.Load())
	return err
}

// Ready is closed once the journal is subscribed to the world.
func (j *Journal) Ready() <-chan struct{} {
	return j.ready
}

func (j *Journal) Index() *Index {
	return j.index
}

// Written, Dropped and Failed count batches.
func (j *Journal) Written() uint64 { return j.written.Load() }
func (j *Journal) Dropped() uint64 { return j.dropped.Load() }
func (j *Journal) Failed() uint64  { return j.failed.Load() }

func (j *Journal) attach() func() {
	unsubChanges := j.world.SubscribeChanges(func(changes []world.Change) {
		if len(changes) == 0 {
			return
		}
		records, err := messaging.ChangeRecords(changes)
		j.enqueue(StreamChange, records, err)
	})
	unsubEvents := j.world.SubscribeEvents(func(events []world.Event) {
		if len(events) == 0 {
			return
		}
		records, err := messaging.EventRecords(events)
		j.enqueue(StreamEvent, records, err)
	})
	return func() {
		unsubChanges()
		unsubEvents()
	}
}

func (j *Journal) enqueue(stream string, records []messaging.Record, err error) {
	if err != nil {
		j.failed.Add(1)
		slog.Warn("encoding journal batch", "stream", stream, "error", err)
		return
	}

	tick := j.world.TickNumber()
	now := j.now()
	entries := make([]Entry, 0, len(records))
	for _, r := range records {
		entries = append(entries, Entry{
			Seq:      j.seq.Add(1),
			Tick:     tick,
			Time:     now,
			Stream:   stream,
			Kind:     r.Kind,
			ObjectID: objectOf(r),
			Data:     r.Data,
		})
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return
	}
	select {
	case j.queue <- entries:
	default:
		j.dropped.Add(1)
	}
}

// objectOf returns the object a record is about, if it names one.
func objectOf(r messaging.Record) *registry.ID {
	var v struct {
		ObjectID *registry.ID `json:"object_id"`
	}
	if err := json.Unmarshal(r.Data, &v); err != nil || v.ObjectID == nil || v.ObjectID.IsNull() {
		return nil
	}
	return v.ObjectID
}

func (j *Journal) loop() {
	ctx := context.Background()
	for entries := range j.queue {
		if err := j.write(ctx, entries); err != nil {
			j.failed.Add(1)
			slog.Error("writing journal batch", "error", err)
			continue
		}
		j.written.Add(1)

		if len(j.queue) == 0 {
			if err := j.log.Flush(); err != nil {
				slog.Error("flushing journal", "error", err)
			}
		}
	}
}

func (j *Journal) write(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		if err := j.log.Write(e); err != nil {
			return fmt.Errorf("appending to log: %w", err)
		}
	}
	return j.index.add(ctx, entries)
}
