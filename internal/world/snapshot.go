package world

import "github.com/pixil98/go-colony/internal/registry"

// Snapshot is a consistent, read-locked view of the scheduler.
type Snapshot struct {
	Tick           int           `json:"tick"`
	State          State         `json:"-"`
	StateName      string        `json:"state"`
	Method         TickMethod    `json:"method"`
	Roster         []registry.ID `json:"roster"`
	Objects        int           `json:"objects"`
	Users          int           `json:"users"`
	PendingInstant int           `json:"pending_instant"`
	PendingPreTick int           `json:"pending_pre_tick"`
	PendingAdd     int           `json:"pending_add"`
	PendingRemove  int           `json:"pending_remove"`
	Stats          Stats         `json:"stats"`
}

// Snapshot takes the read lock and copies the scheduler's state. It must not
// be called from deferred work or actions.
func (w *World) Snapshot() Snapshot {
	w.lock.RLock()
	defer w.lock.RUnlock()

	return Snapshot{
		Tick:           w.TickNumber(),
		State:          w.state,
		StateName:      w.state.String(),
		Method:         w.method,
		Roster:         w.rosterIDs(),
		Objects:        w.objects.Len(),
		Users:          w.UserCount(),
		PendingInstant: w.queue.instant.len(),
		PendingPreTick: w.queue.preTick.len(),
		PendingAdd:     w.addActors.len(),
		PendingRemove:  w.removeActors.len(),
		Stats:          w.statsSnapshot(),
	}
}

// Read runs fn with the read lock held. fn may inspect world state and look up
// objects but must not mutate anything.
func (w *World) Read(fn func(w *World)) {
	w.lock.RLock()
	defer w.lock.RUnlock()
	fn(w)
}
