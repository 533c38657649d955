package playback

import (
	"errors"
	"fmt"
	"time"
)

// Command is a host action applied to a player
type Command string

// Player commands
const (
	CommandPlay       Command = "play"
	CommandPause      Command = "pause"
	CommandSeek       Command = "seek"
	CommandStop       Command = "stop"
	CommandPrepare    Command = "prepare"
	CommandNext       Command = "next"
	CommandSkipCredit Command = "skip-credit"
	CommandStall      Command = "stall"
	CommandError      Command = "error"
)

// IsValid checks if the command is a known value
func (c Command) IsValid() bool {
	switch c {
	case CommandPlay, CommandPause, CommandSeek, CommandStop, CommandPrepare,
		CommandNext, CommandSkipCredit, CommandStall, CommandError:
		return true
	default:
		return false
	}
}

// ControlRequest carries a command and its arguments
type ControlRequest struct {
	Command    Command `json:"command"`
	PositionMs int64   `json:"position_ms,omitempty"`
	DurationMs int64   `json:"duration_ms,omitempty"`
	Message    string  `json:"message,omitempty"`
}

// Validate checks the arguments the command needs
func (r ControlRequest) Validate() error {
	if !r.Command.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, r.Command)
	}
	if r.Command == CommandStall && r.DurationMs <= 0 {
		return fmt.Errorf("%w: stall", ErrInvalidDuration)
	}
	return nil
}

// stallDuration converts the request duration
func (r ControlRequest) stallDuration() time.Duration {
	return time.Duration(r.DurationMs) * time.Millisecond
}

// injectedError is the cause of a host injected failure
func (r ControlRequest) injectedError() error {
	if r.Message == "" {
		return errors.New("injected playback error")
	}
	return errors.New(r.Message)
}
