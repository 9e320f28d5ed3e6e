package engine

import (
	"github.com/cadence-media/cadence/clock"
	"github.com/cadence-media/cadence/source"
	"github.com/cadence-media/cadence/timeline"
)

// command is a unit of work for the playback loop.
type command interface {
	name() string
}

// SeekPosition is a window position in a timeline.
type SeekPosition struct {
	Timeline    *timeline.Timeline
	WindowIndex int
	// WindowPositionUs is constant.TimeUnset for the window's default position.
	WindowPositionUs int64
}

type (
	prepareCommand struct {
		source                    source.MediaSource
		resetPosition, resetState bool
	}
	playWhenReadyCommand struct{ playWhenReady bool }
	repeatModeCommand    struct{ mode timeline.RepeatMode }
	shuffleModeCommand   struct{ enabled bool }
	seekCommand          struct{ position SeekPosition }
	parametersCommand    struct{ params clock.PlaybackParameters }
	seekParamsCommand    struct{ params source.SeekParameters }
	stopCommand          struct{ reset bool }
	releaseCommand       struct{ ack chan struct{} }
	sendMessageCommand   struct{ message *Message }
	deliverCommand       struct{ message *Message }
	workCommand          struct{}

	sourceRefreshedCommand struct {
		source   source.MediaSource
		timeline *timeline.Timeline
		manifest any
	}
	periodPreparedCommand    struct{ period source.MediaPeriod }
	continueLoadingCommand   struct{ period source.MediaPeriod }
	tracksInvalidatedCommand struct{}
	parametersChangedCommand struct{ params clock.PlaybackParameters }
)

func (prepareCommand) name() string           { return "prepare" }
func (playWhenReadyCommand) name() string     { return "set_play_when_ready" }
func (repeatModeCommand) name() string        { return "set_repeat_mode" }
func (shuffleModeCommand) name() string       { return "set_shuffle_mode" }
func (seekCommand) name() string              { return "seek" }
func (parametersCommand) name() string        { return "set_playback_parameters" }
func (seekParamsCommand) name() string        { return "set_seek_parameters" }
func (stopCommand) name() string              { return "stop" }
func (releaseCommand) name() string           { return "release" }
func (sendMessageCommand) name() string       { return "send_message" }
func (deliverCommand) name() string           { return "deliver_message" }
func (workCommand) name() string              { return "do_some_work" }
func (sourceRefreshedCommand) name() string   { return "source_refreshed" }
func (periodPreparedCommand) name() string    { return "period_prepared" }
func (continueLoadingCommand) name() string   { return "continue_loading" }
func (tracksInvalidatedCommand) name() string { return "tracks_invalidated" }
func (parametersChangedCommand) name() string { return "parameters_changed" }
