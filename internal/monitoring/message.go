// Package monitoring turns player callbacks into an ordered stream of session
// messages (START, HEARTBEAT, SEEK, PAUSE, PLAY, STOP, EOF, ERROR) carrying
// quality of service and quality of experience timings.
package monitoring

import "time"

// MessageVersion is the version of the message schema
const MessageVersion = "1.0.0"

// EventName identifies a monitoring message
type EventName string

// Monitoring events
const (
	EventStart     EventName = "START"
	EventHeartbeat EventName = "HEARTBEAT"
	EventSeek      EventName = "SEEK"
	EventPause     EventName = "PAUSE"
	EventPlay      EventName = "PLAY"
	EventStop      EventName = "STOP"
	EventEOF       EventName = "EOF"
	EventError     EventName = "ERROR"
)

// IsTerminal reports whether the event ends a session
func (e EventName) IsTerminal() bool {
	return e == EventStop || e == EventEOF || e == EventError
}

// IsValid checks if the event name is a known value
func (e EventName) IsValid() bool {
	switch e {
	case EventStart, EventHeartbeat, EventSeek, EventPause, EventPlay, EventStop, EventEOF, EventError:
		return true
	default:
		return false
	}
}

// StopReason explains why a session stopped
type StopReason string

// Stop reasons
const (
	StopReasonEnded      StopReason = "ended"      // Last item played to its end
	StopReasonStopped    StopReason = "stopped"    // Player stopped by the host
	StopReasonTransition StopReason = "transition" // Another item became current
	StopReasonReleased   StopReason = "released"   // Player released
	StopReasonEOF        StopReason = "eof"        // Host signalled end of file
	StopReasonUser       StopReason = "user"       // Host stopped monitoring explicitly
)

// QoSTimings are the quality of service measures of a session
type QoSTimings struct {
	AssetLoadMs        int64 `json:"asset_load_ms"`
	TimeToReadyMs      int64 `json:"time_to_ready_ms"`
	TimeToFirstFrameMs int64 `json:"time_to_first_frame_ms"`
	StallCount         int   `json:"stall_count"`
	StallDurationMs    int64 `json:"stall_duration_ms"`
}

// QoETimings are the quality of experience measures of a session
type QoETimings struct {
	StartupTimeMs       int64 `json:"startup_time_ms"`
	BufferingDurationMs int64 `json:"buffering_duration_ms"`
	PlaybackDurationMs  int64 `json:"playback_duration_ms"`
}

// ErrorPayload describes the player error carried by an ERROR message
type ErrorPayload struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

// MessageData is the payload of a message
type MessageData struct {
	MediaItemID        string        `json:"media_id"`
	URI                string        `json:"uri,omitempty"`
	PositionMs         int64         `json:"position_ms"`
	DurationMs         int64         `json:"duration_ms,omitempty"`
	Live               bool          `json:"live"`
	PlaybackDurationMs int64         `json:"playback_duration_ms"`
	FromPositionMs     *int64        `json:"from_position_ms,omitempty"`
	StopReason         StopReason    `json:"stop_reason,omitempty"`
	QoS                *QoSTimings   `json:"qos_timings,omitempty"`
	QoE                *QoETimings   `json:"qoe_timings,omitempty"`
	Error              *ErrorPayload `json:"error,omitempty"`
}

// Message is one monitoring event of a session
type Message struct {
	SessionID string      `json:"session_id"`
	EventName EventName   `json:"event_name"`
	Timestamp time.Time   `json:"timestamp"`
	Version   string      `json:"version"`
	Data      MessageData `json:"data"`
}
