package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/pixil98/go-colony/internal/display"
	"github.com/pixil98/go-colony/internal/game"
	"github.com/pixil98/go-colony/internal/messaging"
	"github.com/pixil98/go-colony/internal/registry"
	"github.com/pixil98/go-colony/internal/world"
)

const (
	minNameLength = 2
	maxNameLength = 16
	maxNameTries  = 5
	viewRadius    = 5
	messageBuffer = 64
)

var errQuit = errors.New("quit")

// Session is one connected user controlling one living.
type Session struct {
	id    string
	name  string
	conn  io.ReadWriter
	input *lineReader
	mgr   *Manager

	species *game.Species
	living  *game.Living
	msgs    chan string
	nextTx  int
}

func newSession(m *Manager, conn io.ReadWriter) *Session {
	return &Session{
		id:    uuid.NewString(),
		conn:  conn,
		input: newLineReader(conn),
		mgr:   m,
		msgs:  make(chan string, messageBuffer),
	}
}

func (s *Session) Id() string {
	return s.id
}

func (s *Session) Name() string {
	return s.name
}

func (s *Session) login(ctx context.Context) error {
	if err := s.writeLine("Welcome to the colony!"); err != nil {
		return err
	}

	name, err := prompt(ctx, s.input, s.conn, "By what name do you wish to be known? ",
		withMaxTries(maxNameTries),
		withValidator(func(str string) (bool, string) {
			if !validName(str) {
				return false, fmt.Sprintf("Names are %d to %d letters, please try another.\n", minNameLength, maxNameLength)
			}
			if !s.mgr.reserve(str, s.id) {
				return false, "That name is in use, please try another.\n"
			}
			return true, ""
		}),
	)
	if err != nil {
		return err
	}
	s.name = display.Title(strings.ToLower(name))

	options := s.mgr.area.Species()
	switch len(options) {
	case 0:
		return fmt.Errorf("no playable species")
	case 1:
		s.species = options[0]
		return s.writeLine(fmt.Sprintf("You will be a %s.", options[0].Name))
	default:
		s.species, err = newMenu(options).Prompt(ctx, s.input, s.conn, "What are you?")
		return err
	}
}

func validName(name string) bool {
	n := len([]rune(name))
	if n < minNameLength || n > maxNameLength {
		return false
	}
	for _, r := range name {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

type spawnResult struct {
	living *game.Living
	err    error
}

// enter creates the session's living while the world is idle and marks the
// user connected.
func (s *Session) enter(ctx context.Context) error {
	res := make(chan spawnResult, 1)
	s.mgr.world.BeginInvoke(func(w *world.World) {
		l, err := s.mgr.area.SpawnLiving(w, s.name, s.species, game.InteractiveAI{})
		if err == nil {
			l.SetController(s.id)
		}
		res <- spawnResult{living: l, err: err}
	})

	select {
	case <-ctx.Done():
		// The spawn may still happen; take the living back out if it does.
		go func() {
			if r := <-res; r.err == nil {
				s.mgr.world.BeginInvokeInstant(departure(r.living, s.id))
			}
		}()
		return ctx.Err()
	case r := <-res:
		if r.err != nil {
			return r.err
		}
		s.living = r.living
	}

	s.mgr.world.AddUser(s.id)
	return nil
}

// leave removes the session's living without waiting for the tick to end.
func (s *Session) leave() {
	s.mgr.world.BeginInvokeInstant(departure(s.living, s.id))
}

// departure is the instant work that logs a user off. A living leaving
// mid-tick is given a wait so the tick is not held up by it; it is destroyed
// once the world is idle again.
func departure(l *game.Living, userID string) world.Work {
	return func(w *world.World) {
		w.RemoveUser(userID)
		if !l.HasAction() {
			if err := l.SetAction(w, game.WaitAction(1)); err != nil {
				slog.Warn("parking departing living", "living", l.Name(), "error", err)
			}
		}
		w.RequestRemoveActor(l)
		w.BeginInvoke(func(w *world.World) {
			l.Destroy(w)
		})
	}
}

// subscribe forwards rendered bus messages to the session.
func (s *Session) subscribe(ctx context.Context) (func(), error) {
	if s.mgr.ready != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.mgr.ready:
		}
	}

	f := feed{userID: s.id, objectID: s.living.ID()}
	handler := func(data []byte) {
		b, err := messaging.DecodeBatch(data)
		if err != nil {
			slog.Warn("dropping batch", "session", s.id, "error", err)
			return
		}
		for _, line := range f.render(b) {
			select {
			case s.msgs <- line:
			default:
				slog.Warn("session backlog full, dropping message", "session", s.id)
			}
		}
	}

	var unsubs []func()
	unsubscribe := func() {
		for _, u := range unsubs {
			u()
		}
	}
	for _, subject := range []string{messaging.SubjectChanges, messaging.SubjectEvents} {
		u, err := s.mgr.bus.Subscribe(subject, handler)
		if err != nil {
			unsubscribe()
			return nil, fmt.Errorf("subject %s: %w", subject, err)
		}
		unsubs = append(unsubs, u)
	}
	return unsubscribe, nil
}

func (s *Session) play(ctx context.Context) error {
	if err := s.writeBlock(s.look()); err != nil {
		return err
	}
	if err := s.prompt(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg := <-s.msgs:
			if err := s.writeLine("\n" + msg); err != nil {
				return err
			}
			if err := s.prompt(); err != nil {
				return err
			}

		case line, ok := <-s.input.lines:
			if !ok {
				err := s.input.closedErr()
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}

			if line != "" {
				err := s.exec(line)
				if errors.Is(err, errQuit) {
					return s.writeLine("Goodbye!")
				}
				var userErr *UserError
				if errors.As(err, &userErr) {
					err = s.writeLine(userErr.Message)
				}
				if err != nil {
					return err
				}
			}

			if err := s.prompt(); err != nil {
				return err
			}
		}
	}
}

func (s *Session) exec(line string) error {
	if next, ok := s.mgr.allow(s.id); !ok {
		wait := time.Until(next).Round(time.Second)
		return NewUserError(fmt.Sprintf("You are doing that too fast. Try again in %s.", max(wait, time.Second)))
	}

	cmd, err := ParseCommand(line)
	if err != nil {
		return err
	}

	if a, ok := cmd.Action(); ok {
		s.nextTx++
		a.UserID = s.id
		a.TransactionID = s.nextTx
		l := s.living
		s.mgr.world.BeginInvokeInstant(func(w *world.World) {
			if err := l.SetAction(w, a); err != nil {
				slog.Warn("setting action", "living", l.Name(), "action", a, "error", err)
			}
		})
		return s.writeLine(fmt.Sprintf("You prepare to %s.", a))
	}

	switch cmd.Kind {
	case CmdProceed:
		s.mgr.world.BeginInvokeInstant(func(w *world.World) {
			w.RequestTickStart()
		})
		return s.writeLine("You ask the world to move on.")
	case CmdLook:
		return s.writeBlock(s.look())
	case CmdWho:
		names := s.mgr.Who()
		return s.writeLine(fmt.Sprintf("Players (%d): %s", len(names), strings.Join(names, ", ")))
	case CmdHelp:
		return s.writeBlock(helpPage())
	case CmdQuit:
		return errQuit
	default:
		return NewUserError("Nothing happens.")
	}
}

// look renders the map around the session's living.
func (s *Session) look() string {
	var b strings.Builder
	s.mgr.world.Read(func(w *world.World) {
		env := s.living.Environment()
		if env == nil {
			b.WriteString("You are nowhere.")
			return
		}

		pos := s.living.Position()
		rows := env.View(pos, viewRadius, func(id registry.ID) rune {
			if id == s.living.ID() {
				return '@'
			}
			obj, ok := w.FindObject(id)
			if !ok {
				return '?'
			}
			l, ok := obj.(*game.Living)
			if !ok {
				return '?'
			}
			if sym := []rune(l.Species().Symbol); len(sym) > 0 {
				return sym[0]
			}
			return '?'
		})

		fmt.Fprintf(&b, "Tick %d. You are at %d,%d on level %d.\n", w.TickNumber(), pos.X, pos.Y, pos.Z)
		b.WriteString(strings.Join(rows, "\n"))
		if a, ok := s.living.CurrentAction(); ok {
			fmt.Fprintf(&b, "\nYou are busy: %s.", a)
		}
	})
	return b.String()
}

func (s *Session) prompt() error {
	_, err := io.WriteString(s.conn, "> ")
	return err
}

func (s *Session) writeLine(msg string) error {
	_, err := io.WriteString(s.conn, display.Wrap(msg)+"\n")
	return err
}

// writeBlock writes preformatted text as is.
func (s *Session) writeBlock(text string) error {
	_, err := io.WriteString(s.conn, text+"\n")
	return err
}
