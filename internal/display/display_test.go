package display

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/pixil98/go-colony/internal/game"
	"github.com/pixil98/go-colony/internal/registry"
	"github.com/pixil98/go-colony/internal/world"
	"github.com/pixil98/go-testutil"
)

func TestWrap(t *testing.T) {
	long := strings.Repeat("dig ", 30)
	for _, line := range strings.Split(Wrap(long), "\n") {
		if len(line) > DefaultWidth {
			t.Errorf("line longer than %d: %q", DefaultWidth, line)
		}
	}
	testutil.AssertEqual(t, "narrow", WrapWidth("mine the north wall", 10), "mine the\nnorth wall")
}

func TestCasing(t *testing.T) {
	tests := map[string]struct {
		in       string
		expCap   string
		expTitle string
	}{
		"empty":     {in: "", expCap: "", expTitle: ""},
		"one word":  {in: "goblin", expCap: "Goblin", expTitle: "Goblin"},
		"many":      {in: "cave troll 2", expCap: "Cave troll 2", expTitle: "Cave Troll 2"},
		"shouting":  {in: "URIST", expCap: "URIST", expTitle: "Urist"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, "capitalize", Capitalize(tt.in), tt.expCap)
			testutil.AssertEqual(t, "title", Title(tt.in), tt.expTitle)
		})
	}
}

func TestTitle_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for n := 0; n < 200; n++ {
				if got := Title("cave troll"); got != "Cave Troll" {
					results[i] = got
					return
				}
			}
			results[i] = "Cave Troll"
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		testutil.AssertEqual(t, fmt.Sprintf("goroutine %d", i), got, "Cave Troll")
	}
}

func TestExpandTemplate(t *testing.T) {
	tests := map[string]struct {
		tmplStr string
		data    any
		exp     string
		expErr  string
	}{
		"plain string": {
			tmplStr: "hello world",
			data:    struct{}{},
			exp:     "hello world",
		},
		"struct field": {
			tmplStr: "{{ .Name | title }} digs",
			data:    struct{ Name string }{Name: "urist"},
			exp:     "Urist digs",
		},
		"sprig function": {
			tmplStr: `{{ .Count | add 1 }} {{ "ore" | upper }}`,
			data:    map[string]any{"Count": 2},
			exp:     "3 ORE",
		},
		"invalid syntax": {
			tmplStr: "{{ .Invalid",
			data:    struct{}{},
			expErr:  "parsing template",
		},
		"missing field": {
			tmplStr: "{{ .Nonexistent }}",
			data:    struct{}{},
			expErr:  "executing template",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ExpandTemplate(tt.tmplStr, tt.data)
			if tt.expErr != "" {
				testutil.AssertErrorContains(t, err, tt.expErr)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testutil.AssertEqual(t, "result", got, tt.exp)
		})
	}
}

func TestRenderRecord(t *testing.T) {
	id := registry.ID{Index: 3, Gen: 1}

	tests := map[string]struct {
		kind    string
		record  any
		exp     string
		expShow bool
	}{
		"tick start": {
			kind:    world.KindTickStart,
			record:  world.TickStartEvent{Tick: 7},
			exp:     "-- Tick 7 --",
			expShow: true,
		},
		"quiet tick end": {
			kind:   world.KindTickEnd,
			record: world.TickEndEvent{Tick: 7},
		},
		"tick end with skips": {
			kind:    world.KindTickEnd,
			record:  world.TickEndEvent{Tick: 7, Skipped: 2},
			exp:     "Tick 7 ended without 2 actors.",
			expShow: true,
		},
		"action done": {
			kind:    game.KindActionDone,
			record:  game.ActionDoneChange{ObjectID: id, Action: game.MoveAction(game.DirNorth)},
			exp:     "You finish: move north.",
			expShow: true,
		},
		"action failed": {
			kind:    game.KindActionDone,
			record:  game.ActionDoneChange{ObjectID: id, Action: game.MineAction(game.DirEast), Error: "nothing to mine"},
			exp:     "You could not mine east: nothing to mine.",
			expShow: true,
		},
		"wait done": {
			kind:    game.KindActionDone,
			record:  game.ActionDoneChange{ObjectID: id, Action: game.WaitAction(2)},
			exp:     "You finish: wait.",
			expShow: true,
		},
		"move": {
			kind:    game.KindObjectMove,
			record:  game.ObjectMoveChange{ObjectID: id, Name: "goblin 1", To: game.Point{X: 4, Y: 5}},
			exp:     "Goblin 1 moves to 4,5.",
			expShow: true,
		},
		"map": {
			kind:    game.KindMap,
			record:  game.MapChange{Location: game.Point{X: 1, Y: 2}, Tile: game.Tile{Terrain: game.TerrainFloor, Material: "granite"}},
			exp:     "The granite at 1,2 is now floor.",
			expShow: true,
		},
		"turn markers are silent": {
			kind:   world.KindTurnStart,
			record: world.TurnStartChange{},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			data, err := json.Marshal(tt.record)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got, show, err := RenderRecord(tt.kind, data)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testutil.AssertEqual(t, "show", show, tt.expShow)
			testutil.AssertEqual(t, "text", got, tt.exp)
		})
	}
}

func TestRenderRecord_BadPayload(t *testing.T) {
	_, _, err := RenderRecord(world.KindTickStart, json.RawMessage(`[1,2]`))
	testutil.AssertErrorContains(t, err, "decoding tick_start")
}
