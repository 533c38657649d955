package player

import (
	"time"

	"github.com/stwalsh4118/pillarbox/internal/asset"
)

// Player is the read and seek capability the trackers rely on.
// Every method must be called on the player's looper.
type Player interface {
	CurrentPosition() int64
	Duration() int64
	IsPlaying() bool
	PlaybackState() State
	PlayWhenReady() bool
	IsCurrentMediaItemLive() bool
	CurrentMediaItem() *asset.MediaItem
	CurrentMediaItemIndex() int
	CurrentAsset() *asset.Asset
	SeekTo(positionMs int64)
	AddListener(l Listener)
	RemoveListener(l Listener)
}

// Listener receives player callbacks on the player's looper.
// Single changes are reported first; OnEvents then reports the whole batch.
type Listener interface {
	OnIsPlayingChanged(isPlaying bool)
	OnPlaybackStateChanged(state State)
	OnPlayWhenReadyChanged(playWhenReady bool)
	OnPositionDiscontinuity(oldPosition, newPosition PositionInfo, reason DiscontinuityReason)
	OnEvents(p Player, events Events)
	OnTimelineChanged(reason TimelineChangeReason)
	OnMediaItemTransition(item *asset.MediaItem, reason TransitionReason)
	OnAssetLoadStarted(item asset.MediaItem)
	OnAssetLoaded(item asset.MediaItem, a *asset.Asset, loadDuration time.Duration)
	OnRenderedFirstFrame()
	OnPlayerError(err *PlaybackError)
	OnPlayerReleased()
}

// BaseListener implements every Listener callback as a no-op.
// Embed it to implement only the callbacks you need.
type BaseListener struct{}

func (BaseListener) OnIsPlayingChanged(bool) {}
func (BaseListener) OnPlaybackStateChanged(State) {}
func (BaseListener) OnPlayWhenReadyChanged(bool) {}
func (BaseListener) OnPositionDiscontinuity(PositionInfo, PositionInfo, DiscontinuityReason) {}
func (BaseListener) OnEvents(Player, Events) {}
func (BaseListener) OnTimelineChanged(TimelineChangeReason) {}
func (BaseListener) OnMediaItemTransition(*asset.MediaItem, TransitionReason) {}
func (BaseListener) OnAssetLoadStarted(asset.MediaItem) {}
func (BaseListener) OnAssetLoaded(asset.MediaItem, *asset.Asset, time.Duration) {}
func (BaseListener) OnRenderedFirstFrame() {}
func (BaseListener) OnPlayerError(*PlaybackError) {}
func (BaseListener) OnPlayerReleased() {}
