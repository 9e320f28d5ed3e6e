package engine

import (
	"errors"
	"fmt"

	"github.com/cadence-media/cadence/renderer"
	"github.com/cadence-media/cadence/timeline"
)

// ErrReleased is returned when a message is sent to a released engine.
var ErrReleased = errors.New("engine released")

// ErrorType classifies a PlaybackError.
type ErrorType int

const (
	// TypeSource errors come from loading media. Retrying may succeed.
	TypeSource ErrorType = iota
	// TypeRenderer errors come from a renderer processing media.
	TypeRenderer
	// TypeUnexpected errors point at a bug.
	TypeUnexpected
)

func (t ErrorType) String() string {
	switch t {
	case TypeSource:
		return "SOURCE"
	case TypeRenderer:
		return "RENDERER"
	default:
		return "UNEXPECTED"
	}
}

// PlaybackError is a fatal error that stopped playback.
type PlaybackError struct {
	Type ErrorType
	// RendererIndex is the index of the failing renderer for TypeRenderer, otherwise -1.
	RendererIndex int
	Err           error
}

func (e *PlaybackError) Error() string {
	if e.Type == TypeRenderer {
		return fmt.Sprintf("%s error in renderer %d: %v", e.Type, e.RendererIndex, e.Err)
	}
	return fmt.Sprintf("%s error: %v", e.Type, e.Err)
}

func (e *PlaybackError) Unwrap() error {
	return e.Err
}

func sourceError(err error) *PlaybackError {
	return &PlaybackError{Type: TypeSource, RendererIndex: -1, Err: err}
}

func unexpectedError(err error) *PlaybackError {
	return &PlaybackError{Type: TypeUnexpected, RendererIndex: -1, Err: err}
}

// rendererError wraps an error returned by r. Lifecycle violations stay unexpected.
func rendererError(r renderer.Renderer, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, renderer.ErrIllegalState) {
		return err
	}
	var pe *PlaybackError
	if errors.As(err, &pe) {
		return err
	}
	return &PlaybackError{Type: TypeRenderer, RendererIndex: r.Index(), Err: err}
}

// asPlaybackError classifies any error raised by the loop.
func asPlaybackError(err error) *PlaybackError {
	var pe *PlaybackError
	if errors.As(err, &pe) {
		return pe
	}
	return unexpectedError(err)
}

// IllegalSeekPositionError is returned for a seek to a window that does not exist. Callers of
// player.Player get it synchronously from SeekTo. A seek reaching the engine with a stale timeline
// stops playback with a TypeUnexpected PlaybackError wrapping it, found with errors.As.
type IllegalSeekPositionError struct {
	Timeline    *timeline.Timeline
	WindowIndex int
	PositionUs  int64
}

func (e *IllegalSeekPositionError) Error() string {
	return fmt.Sprintf("illegal seek position [window=%d, position=%dus, windows=%d]", e.WindowIndex, e.PositionUs, e.Timeline.WindowCount())
}
