package player

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stwalsh4118/pillarbox/internal/asset"
)

// ErrorType represents the type of playback error
type ErrorType int

const (
	// ErrorTypeUnknown indicates an unclassified failure
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeSourceNotFound indicates the media item has no asset
	ErrorTypeSourceNotFound
	// ErrorTypeAssetLoadFailed indicates the asset loader failed
	ErrorTypeAssetLoadFailed
	// ErrorTypeNetwork indicates a network failure while loading or playing
	ErrorTypeNetwork
	// ErrorTypeTimeout indicates the asset did not load in time
	ErrorTypeTimeout
	// ErrorTypeRenderer indicates decoding or rendering failed mid-playback
	ErrorTypeRenderer
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrorTypeSourceNotFound:
		return "source_not_found"
	case ErrorTypeAssetLoadFailed:
		return "asset_load_failed"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypeRenderer:
		return "renderer"
	default:
		return "unknown"
	}
}

// ErrorSeverity represents the severity of a playback error
type ErrorSeverity int

const (
	// SeverityWarning represents failures a retry is likely to fix
	SeverityWarning ErrorSeverity = iota
	// SeverityError represents failures that end the current playback
	SeverityError
	// SeverityCritical represents failures no retry can fix
	SeverityCritical
)

// String returns the string representation of ErrorSeverity
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// PlaybackError is a classified player error
type PlaybackError struct {
	Type        ErrorType
	Severity    ErrorSeverity
	Message     string
	Cause       error
	Recoverable bool
}

// NewPlaybackError creates a PlaybackError with the given type, message, and cause
func NewPlaybackError(errorType ErrorType, message string, cause error) *PlaybackError {
	severity, recoverable := classifyErrorTypeAttributes(errorType)
	return &PlaybackError{
		Type:        errorType,
		Severity:    severity,
		Message:     message,
		Cause:       cause,
		Recoverable: recoverable,
	}
}

// Error implements the error interface
func (e *PlaybackError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type.String(), e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type.String(), e.Message)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *PlaybackError) Unwrap() error {
	return e.Cause
}

// classifyErrorTypeAttributes returns severity and recoverability for an error type
func classifyErrorTypeAttributes(errorType ErrorType) (ErrorSeverity, bool) {
	switch errorType {
	case ErrorTypeSourceNotFound:
		return SeverityCritical, false
	case ErrorTypeAssetLoadFailed:
		return SeverityError, true
	case ErrorTypeNetwork:
		return SeverityWarning, true
	case ErrorTypeTimeout:
		return SeverityWarning, true
	case ErrorTypeRenderer:
		return SeverityError, false
	default:
		return SeverityError, false
	}
}

// ClassifyError classifies a generic error into a PlaybackError
func ClassifyError(err error) *PlaybackError {
	if err == nil {
		return nil
	}

	var playbackErr *PlaybackError
	if errors.As(err, &playbackErr) {
		return playbackErr
	}

	if errors.Is(err, asset.ErrAssetNotFound) {
		return NewPlaybackError(ErrorTypeSourceNotFound, "Media item not found", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewPlaybackError(ErrorTypeTimeout, "Asset load timed out", err)
	}

	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "connection reset") ||
		strings.Contains(errMsg, "no such host") || strings.Contains(errMsg, "network") {
		return NewPlaybackError(ErrorTypeNetwork, "Network failure", err)
	}

	if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "timed out") {
		return NewPlaybackError(ErrorTypeTimeout, "Operation timed out", err)
	}

	return NewPlaybackError(ErrorTypeAssetLoadFailed, "Asset could not be loaded", err)
}
