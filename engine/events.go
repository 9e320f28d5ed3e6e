package engine

import "github.com/cadence-media/cadence/clock"

// Event is published by the engine on its event channel.
type Event interface {
	isEvent()
}

// InfoChanged carries a new PlaybackInfo.
type InfoChanged struct {
	Info PlaybackInfo
	// OperationAcks counts the prepare, seek and stop commands completed with this update.
	OperationAcks int
	Discontinuity bool
	// Reason is set when Discontinuity is.
	Reason DiscontinuityReason
}

// ParametersChanged reports new effective playback parameters.
type ParametersChanged struct {
	Params clock.PlaybackParameters
}

// ErrorEvent reports a fatal error. Playback has stopped and the source was released.
type ErrorEvent struct {
	Err *PlaybackError
}

func (InfoChanged) isEvent()       {}
func (ParametersChanged) isEvent() {}
func (ErrorEvent) isEvent()        {}
