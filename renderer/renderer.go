// Package renderer defines the lifecycle every renderer goes through and a Base that enforces it.
//
// A renderer moves DISABLED -> ENABLED -> STARTED and back, one edge at a time. Any call made in
// the wrong state fails with an error wrapping ErrIllegalState; such an error always points at a
// bug in the caller rather than bad media.
package renderer

import (
	"errors"

	"github.com/cadence-media/cadence/clock"
	"github.com/cadence-media/cadence/source"
)

// ErrIllegalState is wrapped by every lifecycle precondition failure.
var ErrIllegalState = errors.New("illegal renderer state")

// State is the lifecycle state of a renderer.
type State int

const (
	StateDisabled State = iota
	StateEnabled
	StateStarted
)

func (s State) String() string {
	switch s {
	case StateEnabled:
		return "ENABLED"
	case StateStarted:
		return "STARTED"
	default:
		return "DISABLED"
	}
}

// FormatSupport is the level of support a renderer has for a format.
type FormatSupport int

const (
	FormatUnsupportedType FormatSupport = iota
	FormatUnsupportedSubtype
	FormatExceedsCapabilities
	FormatHandled
)

// Configuration is the renderer setup chosen by track selection. Renderers can only switch
// streams without being re-enabled while their configuration stays equal.
type Configuration struct {
	TunnelingAudioSessionID int
}

// DefaultConfiguration is used when no special setup is needed.
var DefaultConfiguration = Configuration{}

// Renderer renders the samples of one track type.
type Renderer interface {
	clock.Source

	TrackType() int
	Index() int
	SetIndex(index int)
	SupportsFormat(format source.Format) FormatSupport
	State() State

	Enable(config Configuration, formats []source.Format, stream source.SampleStream, positionUs int64, joining bool, offsetUs int64) error
	Start() error
	ReplaceStream(formats []source.Format, stream source.SampleStream, offsetUs int64) error
	Stream() source.SampleStream
	SetCurrentStreamFinal()
	IsCurrentStreamFinal() bool
	MaybeThrowStreamError() error
	ResetPosition(positionUs int64) error
	SetOperatingRate(rate float64)
	// Render makes as much progress as possible without blocking.
	Render(positionUs, elapsedRealtimeUs int64) error
	Stop() error
	Disable() error

	// HandleMessage receives messages scheduled by the engine.
	HandleMessage(kind int, payload any) error
}
