package console

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/pixil98/go-colony/internal/display"
	"github.com/pixil98/go-colony/internal/messaging"
	"github.com/pixil98/go-colony/internal/world"
	"github.com/rivo/tview"
)

const maxLogLines = 200

// Gauge reports a number from another part of the server, such as open
// connections, for display next to the world's own counters.
type Gauge struct {
	Name  string
	Value func() uint64
}

type ConsoleOpt func(*Console)

// WithRefresh sets how often the status pane is redrawn.
func WithRefresh(d time.Duration) ConsoleOpt {
	return func(c *Console) {
		c.refresh = d
	}
}

// WithScreen draws on screen instead of the terminal.
func WithScreen(screen tcell.Screen) ConsoleOpt {
	return func(c *Console) {
		c.screen = screen
	}
}

// WithGauges adds extra counters to the status pane.
func WithGauges(gauges ...Gauge) ConsoleOpt {
	return func(c *Console) {
		c.gauges = append(c.gauges, gauges...)
	}
}

// Console is an operator view of the scheduler: its state, queues and
// counters, and a log of rendered world records. Keys: t starts a tick,
// s wakes the scheduler, q closes the console.
type Console struct {
	world   *world.World
	refresh time.Duration
	screen  tcell.Screen
	gauges  []Gauge

	app    *tview.Application
	status *tview.TextView
	log    *tview.TextView

	mu    sync.Mutex
	lines []string
	dirty atomic.Bool

	restoreLogs atomic.Pointer[func()]
}

func New(w *world.World, opts ...ConsoleOpt) *Console {
	c := &Console{
		world:   w,
		refresh: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.status = tview.NewTextView().SetDynamicColors(true)
	c.status.SetBorder(true).SetTitle(" World ")

	c.log = tview.NewTextView().SetDynamicColors(true).SetScrollable(true)
	c.log.SetBorder(true).SetTitle(" Records ")

	help := tview.NewTextView().SetText(" [t] start tick  [s] signal  [q] close console")

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(c.status, 0, 1, false).
		AddItem(c.log, 0, 2, false).
		AddItem(help, 1, 0, false)

	c.app = tview.NewApplication().SetRoot(root, true).SetInputCapture(c.handleKey)
	if c.screen != nil {
		c.app.SetScreen(c.screen)
	}

	return c
}

// Start runs the console until ctx is canceled or the operator closes it.
func (c *Console) Start(ctx context.Context) error {
	detach := c.attach()
	defer detach()
	defer c.releaseLogs()

	c.draw()

	runErr := make(chan error, 1)
	go func() {
		runErr <- c.app.Run()
	}()

	ticker := time.NewTicker(c.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.app.Stop()
			<-runErr
			return nil
		case err := <-runErr:
			if err != nil {
				return fmt.Errorf("running console: %w", err)
			}
			// The server keeps running without its console.
			c.releaseLogs()
			slog.InfoContext(ctx, "console closed")
			<-ctx.Done()
			return nil
		case <-ticker.C:
			c.app.QueueUpdateDraw(c.draw)
		}
	}
}

func (c *Console) handleKey(ev *tcell.EventKey) *tcell.EventKey {
	if ev.Key() != tcell.KeyRune {
		return ev
	}
	switch ev.Rune() {
	case 't':
		c.world.RequestTickStart()
		c.appendLine("[yellow]operator requested a tick[-]")
	case 's':
		c.world.Signal()
	case 'q':
		c.app.Stop()
	default:
		return ev
	}
	return nil
}

func (c *Console) attach() func() {
	unsubChanges := c.world.SubscribeChanges(func(changes []world.Change) {
		if len(changes) == 0 {
			return
		}
		records, err := messaging.ChangeRecords(changes)
		c.appendRecords(records, err)
	})
	unsubEvents := c.world.SubscribeEvents(func(events []world.Event) {
		if len(events) == 0 {
			return
		}
		records, err := messaging.EventRecords(events)
		c.appendRecords(records, err)
	})
	return func() {
		unsubChanges()
		unsubEvents()
	}
}

func (c *Console) appendRecords(records []messaging.Record, err error) {
	if err != nil {
		c.appendLine(fmt.Sprintf("[red]%s[-]", tview.Escape(err.Error())))
		return
	}
	for _, r := range records {
		text, ok, err := display.RenderRecord(r.Kind, r.Data)
		switch {
		case err != nil:
			c.appendLine(fmt.Sprintf("[red]%s: %s[-]", r.Kind, tview.Escape(err.Error())))
		case ok:
			c.appendLine(tview.Escape(text))
		}
	}
}

// appendLine keeps the newest lines for the next redraw. It never blocks the
// caller, which may be the scheduler.
func (c *Console) appendLine(line string) {
	c.mu.Lock()
	c.lines = append(c.lines, line)
	if len(c.lines) > maxLogLines {
		c.lines = c.lines[len(c.lines)-maxLogLines:]
	}
	c.mu.Unlock()
	c.dirty.Store(true)
}

// Write adds log output to the records pane, one line per line written.
func (c *Console) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		c.appendLine("[gray]" + tview.Escape(line) + "[-]")
	}
	return len(p), nil
}

// CaptureLogs sends the default slog logger's output to the records pane
// until the console closes, then puts the previous logger back.
func (c *Console) CaptureLogs() {
	prev := slog.Default()
	prevOut, prevFlags := log.Writer(), log.Flags()
	restore := func() {
		slog.SetDefault(prev)
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	}
	c.restoreLogs.Store(&restore)
	slog.SetDefault(slog.New(slog.NewTextHandler(c, nil)))
}

func (c *Console) releaseLogs() {
	if restore := c.restoreLogs.Swap(nil); restore != nil {
		(*restore)()
	}
}

// Lines returns the record log, oldest first.
func (c *Console) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

// draw refreshes both panes. It runs on the console's event loop.
func (c *Console) draw() {
	c.drawStatus()
	if c.dirty.Swap(false) {
		c.log.SetText(strings.Join(c.Lines(), "\n")).ScrollToEnd()
	}
}

func (c *Console) drawStatus() {
	c.status.SetText(statusText(c.world.Snapshot(), c.gauges))
}

func statusText(snap world.Snapshot, gauges []Gauge) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[::b]Tick[::-] %d   [::b]State[::-] %s   [::b]Method[::-] %s\n", snap.Tick, snap.StateName, snap.Method)
	fmt.Fprintf(&b, "[::b]Actors[::-] %d   [::b]Objects[::-] %d   [::b]Users[::-] %d\n", len(snap.Roster), snap.Objects, snap.Users)
	fmt.Fprintf(&b, "[::b]Pending[::-] instant %d  pre-tick %d  add %d  remove %d\n",
		snap.PendingInstant, snap.PendingPreTick, snap.PendingAdd, snap.PendingRemove)

	st := snap.Stats
	fmt.Fprintf(&b, "[::b]Processed[::-] instant %d (peak %d)  pre-tick %d (peak %d)  faults %d\n",
		st.InstantProcessed, st.InstantHighWater, st.PreTickProcessed, st.PreTickHighWater, st.WorkFaults)
	fmt.Fprintf(&b, "[::b]Ticks[::-] %d  forced %d  skipped actors %d  action faults %d  flushes %d",
		st.Ticks, st.ForcedProgressions, st.SkippedActors, st.ActionFaults, st.Flushes)

	for _, g := range gauges {
		fmt.Fprintf(&b, "\n[::b]%s[::-] %d", g.Name, g.Value())
	}
	return b.String()
}
