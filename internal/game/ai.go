package game

import (
	"math/rand/v2"

	"github.com/pixil98/go-colony/internal/world"
)

// AI decides what a living does next. Decide is called by the scheduler with
// the write lock held and returns false when it has nothing to offer.
type AI interface {
	Decide(w *world.World, l *Living) (Action, bool)
}

// InteractiveAI never decides anything; the controlling user supplies actions.
type InteractiveAI struct{}

func (InteractiveAI) Decide(*world.World, *Living) (Action, bool) {
	return Action{}, false
}

// WanderAI walks in a random open direction, or idles when boxed in.
type WanderAI struct {
	rng      *rand.Rand
	idleTurn int
}

func NewWanderAI(seed uint64) *WanderAI {
	return &WanderAI{
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		idleTurn: 1,
	}
}

func (a *WanderAI) Decide(_ *world.World, l *Living) (Action, bool) {
	env := l.Environment()
	if env == nil {
		return Action{}, false
	}

	var open []Direction
	for _, d := range PlanarDirections {
		if env.CanEnter(l.Position().Add(d.Vector())) {
			open = append(open, d)
		}
	}

	// Pause now and then so the colony does not look frantic.
	if len(open) == 0 || a.rng.IntN(4) == 0 {
		return WaitAction(a.idleTurn), true
	}

	return MoveAction(open[a.rng.IntN(len(open))]), true
}
