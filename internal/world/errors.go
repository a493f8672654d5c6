package world

import "errors"

var (
	// ErrNotWritable is raised (as a panic) when world state is mutated without
	// the write lock held.
	ErrNotWritable = errors.New("world is not writable")
	// ErrActorExists is raised when an actor already in the roster is added again.
	ErrActorExists = errors.New("actor already in roster")
	// ErrActorNotFound is raised when removing an actor that is not in the roster.
	ErrActorNotFound = errors.New("actor not in roster")

	// ErrActionPanic wraps a panic recovered while performing an actor's action.
	ErrActionPanic = errors.New("action panicked")
)

// invariantViolation reports whether a recovered panic value is one of the
// programming errors that must never be swallowed.
func invariantViolation(r any) bool {
	err, ok := r.(error)
	if !ok {
		return false
	}
	return errors.Is(err, ErrNotWritable) ||
		errors.Is(err, ErrActorExists) ||
		errors.Is(err, ErrActorNotFound)
}
