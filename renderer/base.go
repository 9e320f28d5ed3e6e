package renderer

import (
	"fmt"

	"github.com/cadence-media/cadence/clock"
	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/source"
	"github.com/cadence-media/cadence/util"
)

// Hooks are the callbacks a concrete renderer receives from Base.
type Hooks interface {
	OnEnabled(joining bool) error
	OnStreamChanged(formats []source.Format, offsetUs int64) error
	OnPositionReset(positionUs int64, joining bool) error
	OnStarted() error
	OnStopped() error
	OnDisabled()
}

// NopHooks implements Hooks with no-ops, for embedding.
type NopHooks struct{}

func (NopHooks) OnEnabled(bool) error                         { return nil }
func (NopHooks) OnStreamChanged([]source.Format, int64) error { return nil }
func (NopHooks) OnPositionReset(int64, bool) error            { return nil }
func (NopHooks) OnStarted() error                             { return nil }
func (NopHooks) OnStopped() error                             { return nil }
func (NopHooks) OnDisabled()                                  {}

// Base implements the lifecycle part of Renderer. Embed it and call Init with the concrete
// renderer as hooks; the embedding type supplies Render, IsReady, IsEnded and SupportsFormat.
type Base struct {
	trackType         int
	index             int
	hooks             Hooks
	state             State
	config            Configuration
	stream            source.SampleStream
	formats           []source.Format
	offsetUs          int64
	readingPositionUs int64
	streamIsFinal     bool
}

// Init sets the track type and hooks. It must be called before any other method.
func (b *Base) Init(trackType int, hooks Hooks) {
	b.trackType = trackType
	b.hooks = hooks
	b.readingPositionUs = constant.TimeEndOfSource
}

func (b *Base) illegal(op string) error {
	return fmt.Errorf("%w: %s %s renderer in state %s", ErrIllegalState, op, constant.TrackTypeName(b.trackType), b.state)
}

func (b *Base) TrackType() int                  { return b.trackType }
func (b *Base) Index() int                      { return b.index }
func (b *Base) SetIndex(index int)              { b.index = index }
func (b *Base) State() State                    { return b.state }
func (b *Base) Stream() source.SampleStream     { return b.stream }
func (b *Base) Configuration() Configuration    { return b.config }
func (b *Base) StreamFormats() []source.Format  { return b.formats }
func (b *Base) StreamOffsetUs() int64           { return b.offsetUs }
func (b *Base) MediaClock() clock.RendererClock { return nil }
func (b *Base) SetOperatingRate(float64)        {}
func (b *Base) HandleMessage(int, any) error    { return nil }
func (b *Base) HasReadStreamToEnd() bool        { return b.readingPositionUs == constant.TimeEndOfSource }
func (b *Base) ReadingPositionUs() int64        { return b.readingPositionUs }
func (b *Base) SetCurrentStreamFinal()          { b.streamIsFinal = true }
func (b *Base) IsCurrentStreamFinal() bool      { return b.streamIsFinal }

// Enable moves the renderer from DISABLED to ENABLED and seeks it to positionUs.
func (b *Base) Enable(config Configuration, formats []source.Format, stream source.SampleStream, positionUs int64, joining bool, offsetUs int64) error {
	if b.state != StateDisabled {
		return b.illegal("enable")
	}
	b.config = config
	b.state = StateEnabled
	if err := b.hooks.OnEnabled(joining); err != nil {
		return err
	}
	if err := b.ReplaceStream(formats, stream, offsetUs); err != nil {
		return err
	}
	return b.hooks.OnPositionReset(positionUs, joining)
}

// ReplaceStream switches to the stream of the next period without a state change.
func (b *Base) ReplaceStream(formats []source.Format, stream source.SampleStream, offsetUs int64) error {
	if b.state == StateDisabled || b.streamIsFinal {
		return b.illegal("replace stream of")
	}
	b.stream = stream
	b.readingPositionUs = offsetUs
	b.formats = formats
	b.offsetUs = offsetUs
	return b.hooks.OnStreamChanged(formats, offsetUs)
}

// Start moves the renderer from ENABLED to STARTED.
func (b *Base) Start() error {
	if b.state != StateEnabled {
		return b.illegal("start")
	}
	b.state = StateStarted
	return b.hooks.OnStarted()
}

// Stop moves the renderer from STARTED to ENABLED.
func (b *Base) Stop() error {
	if b.state != StateStarted {
		return b.illegal("stop")
	}
	b.state = StateEnabled
	return b.hooks.OnStopped()
}

// Disable moves the renderer from ENABLED to DISABLED and detaches its stream.
func (b *Base) Disable() error {
	if b.state != StateEnabled {
		return b.illegal("disable")
	}
	b.state = StateDisabled
	b.stream = nil
	b.formats = nil
	b.streamIsFinal = false
	b.hooks.OnDisabled()
	return nil
}

// ResetPosition handles a discontinuity: flags are cleared and the renderer seeks to positionUs.
func (b *Base) ResetPosition(positionUs int64) error {
	if b.state == StateDisabled {
		return b.illegal("reset position of")
	}
	b.streamIsFinal = false
	b.readingPositionUs = positionUs
	return b.hooks.OnPositionReset(positionUs, false)
}

// MaybeThrowStreamError returns the stream's error, if any.
func (b *Base) MaybeThrowStreamError() error {
	if b.stream == nil {
		return nil
	}
	return b.stream.MaybeThrowError()
}

// ReadSource reads from the stream, shifting sample times by the stream offset. Reaching the end
// of a stream that is not final reports NothingRead, since more data will follow in the next stream.
func (b *Base) ReadSource(holder *source.FormatHolder, buffer *source.Buffer, formatRequired bool) source.ReadResult {
	result := b.stream.ReadData(holder, buffer, formatRequired)
	switch result {
	case source.BufferRead:
		if buffer.IsEndOfStream() {
			b.readingPositionUs = constant.TimeEndOfSource
			if b.streamIsFinal {
				return source.BufferRead
			}
			return source.NothingRead
		}
		buffer.TimeUs += b.offsetUs
		b.readingPositionUs = util.Max(b.readingPositionUs, buffer.TimeUs)
	case source.FormatRead:
		if f := holder.Format; f != nil && f.SubsampleOffsetUs != source.OffsetSampleRelative {
			shifted := f.WithSubsampleOffsetUs(f.SubsampleOffsetUs + b.offsetUs)
			holder.Format = &shifted
		}
	}
	return result
}

// SkipSource skips samples of the stream up to positionUs in renderer time.
func (b *Base) SkipSource(positionUs int64) int {
	return b.stream.SkipData(positionUs - b.offsetUs)
}

// IsSourceReady reports whether the stream can supply data.
func (b *Base) IsSourceReady() bool {
	if b.HasReadStreamToEnd() {
		return b.streamIsFinal
	}
	return b.stream.IsReady()
}
