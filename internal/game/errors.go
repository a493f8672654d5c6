package game

import "errors"

var (
	ErrOutOfBounds   = errors.New("location out of bounds")
	ErrBlocked       = errors.New("path is blocked")
	ErrNotMinable    = errors.New("nothing to mine")
	ErrNotSpawned    = errors.New("living is not in an environment")
	ErrNoSpawnPoint  = errors.New("no free tile to spawn on")
	ErrUnknownAction = errors.New("unknown action")
)
