package session

import (
	"log/slog"

	"github.com/pixil98/go-colony/internal/display"
	"github.com/pixil98/go-colony/internal/game"
	"github.com/pixil98/go-colony/internal/messaging"
	"github.com/pixil98/go-colony/internal/registry"
	"github.com/pixil98/go-colony/internal/world"
)

// feed decides which published records one session sees and renders them.
type feed struct {
	userID   string
	objectID registry.ID
}

type recordOwner struct {
	ObjectID registry.ID `json:"object_id"`
	UserID   string      `json:"user_id"`
}

// wants filters records addressed to someone else. Other livings' moves are
// left out; the map view shows them on demand.
func (f feed) wants(r messaging.Record) bool {
	switch r.Kind {
	case world.KindActionRequired, world.KindActionFault, game.KindActionDone:
		owner, ok := decodeOwner(r)
		return ok && owner.ObjectID == f.objectID
	case game.KindActionProgress:
		owner, ok := decodeOwner(r)
		return ok && owner.UserID == f.userID
	case game.KindObjectMove:
		return false
	default:
		return true
	}
}

func decodeOwner(r messaging.Record) (recordOwner, bool) {
	var owner recordOwner
	if err := r.Decode(&owner); err != nil {
		slog.Warn("unreadable record", "kind", r.Kind, "error", err)
		return owner, false
	}
	return owner, true
}

// render returns the lines the session should print for a batch.
func (f feed) render(b messaging.Batch) []string {
	var lines []string
	for _, r := range b.Records {
		if !f.wants(r) {
			continue
		}
		text, ok, err := display.RenderRecord(r.Kind, r.Data)
		if err != nil {
			slog.Warn("rendering record", "kind", r.Kind, "error", err)
			continue
		}
		if ok {
			lines = append(lines, text)
		}
	}
	return lines
}
