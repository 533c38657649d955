package playback

import "errors"

// Playback errors
var (
	ErrPlayerNotFound  = errors.New("player not found")
	ErrManagerStopped  = errors.New("player manager has been stopped")
	ErrNoMediaItems    = errors.New("at least one media item is required")
	ErrUnknownCommand  = errors.New("unknown player command")
	ErrPlayerReleased  = errors.New("player has been released")
	ErrNilLoader       = errors.New("asset loader cannot be nil")
	ErrInvalidDuration = errors.New("duration must be greater than 0")
)
