// Package commandersact translates player callbacks into CommandersAct
// streaming events (play, pause, seek, eof, stop and the pos/uptime pings).
package commandersact

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/stwalsh4118/pillarbox/internal/logger"
)

// MediaEventType is the name of a CommandersAct media event
type MediaEventType string

// Media event types
const (
	MediaEventPlay   MediaEventType = "play"
	MediaEventPause  MediaEventType = "pause"
	MediaEventSeek   MediaEventType = "seek"
	MediaEventEOF    MediaEventType = "eof"
	MediaEventStop   MediaEventType = "stop"
	MediaEventPos    MediaEventType = "pos"
	MediaEventUptime MediaEventType = "uptime"
)

// MediaEvent is a streaming event sent to CommandersAct.
// TimeShift is only set for live streams.
type MediaEvent struct {
	Type          MediaEventType
	Labels        map[string]string
	MediaPosition time.Duration
	TimeShift     *time.Duration
}

// PageView is a page view sent to CommandersAct
type PageView struct {
	Type   string
	Title  string
	Levels []string
	Labels map[string]string
}

// Event is a custom event sent to CommandersAct
type Event struct {
	Name   string
	Labels map[string]string
}

// Sink is the CommandersAct SDK as seen by the adapter. Calls are fire and forget.
type Sink interface {
	SendTcMediaEvent(event MediaEvent)
	SendPageView(pageView PageView)
	SendEvent(event Event)
}

// LogSink writes every call to the logger
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink creates a sink logging under the commandersact component
func NewLogSink() *LogSink {
	return &LogSink{log: logger.Component("commandersact")}
}

// SendTcMediaEvent logs the media event
func (s *LogSink) SendTcMediaEvent(event MediaEvent) {
	entry := s.log.Info().
		Str("event", string(event.Type)).
		Dur("media_position", event.MediaPosition).
		Interface("labels", event.Labels)
	if event.TimeShift != nil {
		entry = entry.Dur("time_shift", *event.TimeShift)
	}
	entry.Msg("CommandersAct media event")
}

// SendPageView logs the page view
func (s *LogSink) SendPageView(pageView PageView) {
	s.log.Info().
		Str("type", pageView.Type).
		Str("title", pageView.Title).
		Strs("levels", pageView.Levels).
		Msg("CommandersAct page view")
}

// SendEvent logs the event
func (s *LogSink) SendEvent(event Event) {
	s.log.Info().
		Str("name", event.Name).
		Interface("labels", event.Labels).
		Msg("CommandersAct event")
}
