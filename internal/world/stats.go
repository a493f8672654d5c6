package world

import "sync/atomic"

type stats struct {
	instantProcessed atomic.Uint64
	preTickProcessed atomic.Uint64
	workFaults       atomic.Uint64
	ticks            atomic.Uint64
	forced           atomic.Uint64
	skipped          atomic.Uint64
	actionFaults     atomic.Uint64
	flushes          atomic.Uint64
}

// Stats is a point-in-time copy of the scheduler's counters. The high-water
// marks surface producer backlogs; the scheduler never rejects work.
type Stats struct {
	InstantProcessed   uint64 `json:"instant_processed"`
	PreTickProcessed   uint64 `json:"pre_tick_processed"`
	WorkFaults         uint64 `json:"work_faults"`
	Ticks              uint64 `json:"ticks"`
	ForcedProgressions uint64 `json:"forced_progressions"`
	SkippedActors      uint64 `json:"skipped_actors"`
	ActionFaults       uint64 `json:"action_faults"`
	Flushes            uint64 `json:"flushes"`
	InstantHighWater   int    `json:"instant_high_water"`
	PreTickHighWater   int    `json:"pre_tick_high_water"`
}

func (w *World) statsSnapshot() Stats {
	return Stats{
		InstantProcessed:   w.stats.instantProcessed.Load(),
		PreTickProcessed:   w.stats.preTickProcessed.Load(),
		WorkFaults:         w.stats.workFaults.Load(),
		Ticks:              w.stats.ticks.Load(),
		ForcedProgressions: w.stats.forced.Load(),
		SkippedActors:      w.stats.skipped.Load(),
		ActionFaults:       w.stats.actionFaults.Load(),
		Flushes:            w.stats.flushes.Load(),
		InstantHighWater:   w.queue.instant.peak(),
		PreTickHighWater:   w.queue.preTick.peak(),
	}
}
