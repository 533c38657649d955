// Package comscore translates player callbacks into ComScore streaming
// analytics calls and coordinates the application-wide active state shared by
// every tracked player.
package comscore

import (
	"github.com/rs/zerolog"
	"github.com/stwalsh4118/pillarbox/internal/logger"
)

// StreamingAnalytics is one ComScore streaming session as seen by the adapter
type StreamingAnalytics interface {
	CreatePlaybackSession()
	SetMetadata(labels map[string]string)
	NotifyPlay()
	NotifyPause()
	NotifyEnd()
	NotifyBufferStart()
	NotifyBufferStop()
	NotifySeekStart()
	StartFromPosition(positionMs int64)
	StartFromDvrWindowOffset(offsetMs int64)
	SetDvrWindowLength(lengthMs int64)
}

// Analytics holds the application-wide ComScore notifications
type Analytics interface {
	NotifyUxActive()
	NotifyUxInactive()
}

// LogAnalytics logs every ComScore call
type LogAnalytics struct {
	log zerolog.Logger
}

// NewLogAnalytics creates a logger-backed ComScore implementation
func NewLogAnalytics(publisherID string) *LogAnalytics {
	return &LogAnalytics{
		log: logger.Component("comscore").With().Str("publisher_id", publisherID).Logger(),
	}
}

func (a *LogAnalytics) CreatePlaybackSession() { a.log.Debug().Msg("ComScore playback session created") }

func (a *LogAnalytics) SetMetadata(labels map[string]string) {
	a.log.Debug().Interface("labels", labels).Msg("ComScore metadata")
}

func (a *LogAnalytics) NotifyPlay() { a.log.Info().Msg("ComScore play") }
func (a *LogAnalytics) NotifyPause() { a.log.Info().Msg("ComScore pause") }
func (a *LogAnalytics) NotifyEnd() { a.log.Info().Msg("ComScore end") }
func (a *LogAnalytics) NotifyBufferStart() { a.log.Debug().Msg("ComScore buffer start") }
func (a *LogAnalytics) NotifyBufferStop() { a.log.Debug().Msg("ComScore buffer stop") }
func (a *LogAnalytics) NotifySeekStart() { a.log.Debug().Msg("ComScore seek start") }

func (a *LogAnalytics) StartFromPosition(positionMs int64) {
	a.log.Debug().Int64("position_ms", positionMs).Msg("ComScore start from position")
}

func (a *LogAnalytics) StartFromDvrWindowOffset(offsetMs int64) {
	a.log.Debug().Int64("offset_ms", offsetMs).Msg("ComScore start from DVR window offset")
}

func (a *LogAnalytics) SetDvrWindowLength(lengthMs int64) {
	a.log.Debug().Int64("length_ms", lengthMs).Msg("ComScore DVR window length")
}

func (a *LogAnalytics) NotifyUxActive() { a.log.Info().Msg("ComScore ux active") }
func (a *LogAnalytics) NotifyUxInactive() { a.log.Info().Msg("ComScore ux inactive") }
