package session

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	mermaid "github.com/AlexanderGrooff/mermaid-ascii/cmd"
	"github.com/AlexanderGrooff/mermaid-ascii/pkg/diagram"
	"github.com/pixil98/go-colony/internal/display"
	"github.com/pixil98/go-colony/internal/game"
	"github.com/pixil98/go-colony/internal/world"
)

// UserError is shown to the user instead of ending the session.
type UserError struct {
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

func NewUserError(msg string) *UserError {
	return &UserError{Message: msg}
}

type CommandKind int

const (
	CmdMove CommandKind = iota + 1
	CmdMine
	CmdWait
	CmdProceed
	CmdLook
	CmdWho
	CmdHelp
	CmdQuit
)

var commandNames = map[string]CommandKind{
	"move":    CmdMove,
	"go":      CmdMove,
	"mine":    CmdMine,
	"dig":     CmdMine,
	"wait":    CmdWait,
	"proceed": CmdProceed,
	"look":    CmdLook,
	"l":       CmdLook,
	"who":     CmdWho,
	"help":    CmdHelp,
	"quit":    CmdQuit,
}

const helpText = `Commands:
  move <direction>   walk one tile (or just type the direction)
  mine <direction>   dig out the wall next to you
  wait [turns]       do nothing for a number of turns
  proceed            start the next tick without waiting
  look               show your surroundings
  who                list who is playing
  quit               leave the game`

// tickCycle is the world's tick state machine as a mermaid flowchart.
var tickCycle = fmt.Sprintf(`graph LR
%[1]s -->|ready| %[2]s
%[2]s -->|all acted| %[3]s
%[3]s -->|next work| %[1]s`, world.StateIdle, world.StateTickOngoing, world.StateTickEnded)

// renderTickCycle draws tickCycle in plain ASCII so any terminal can show it.
func renderTickCycle() (string, error) {
	cfg := diagram.DefaultConfig()
	cfg.UseAscii = true
	return mermaid.RenderDiagram(tickCycle, cfg)
}

// helpPage is the help text followed by the tick diagram. The diagram is
// dropped if it fails to render.
var helpPage = sync.OnceValue(func() string {
	chart, err := renderTickCycle()
	if err != nil {
		slog.Warn("rendering tick diagram", "error", err)
		return helpText
	}
	return helpText + "\n\nHow a tick goes:\n" + strings.TrimRight(chart, "\n")
})

// Command is one parsed line of user input.
type Command struct {
	Kind      CommandKind
	Direction game.Direction
	Turns     int
}

// ParseCommand reads a command line. A bare direction is a move.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return Command{}, NewUserError("Say what?")
	}
	name, args := fields[0], fields[1:]

	kind, ok := commandNames[name]
	if !ok {
		d, err := game.ParseDirection(name)
		if err != nil {
			return Command{}, NewUserError(fmt.Sprintf("Unknown command %q. Type 'help' for a list.", name))
		}
		return Command{Kind: CmdMove, Direction: d}, nil
	}

	cmd := Command{Kind: kind}
	switch kind {
	case CmdMove, CmdMine:
		if len(args) != 1 {
			return Command{}, NewUserError(fmt.Sprintf("%s which way?", display.Capitalize(name)))
		}
		d, err := game.ParseDirection(args[0])
		if err != nil {
			return Command{}, NewUserError(fmt.Sprintf("%q is not a direction.", args[0]))
		}
		cmd.Direction = d
	case CmdWait:
		cmd.Turns = 1
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return Command{}, NewUserError("Wait how many turns?")
			}
			cmd.Turns = n
		}
	}
	return cmd, nil
}

// Action returns the world action the command asks for, if any.
func (c Command) Action() (game.Action, bool) {
	switch c.Kind {
	case CmdMove:
		return game.MoveAction(c.Direction), true
	case CmdMine:
		return game.MineAction(c.Direction), true
	case CmdWait:
		return game.WaitAction(c.Turns), true
	default:
		return game.Action{}, false
	}
}

