package renderer

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/source"
	. "github.com/smartystreets/goconvey/convey"
)

type scriptedStream struct {
	samples []int64
	format  *source.Format
	sentFmt bool
}

func (s *scriptedStream) IsReady() bool          { return true }
func (s *scriptedStream) MaybeThrowError() error { return nil }
func (s *scriptedStream) SkipData(int64) int     { return 0 }

func (s *scriptedStream) ReadData(holder *source.FormatHolder, buffer *source.Buffer, _ bool) source.ReadResult {
	if s.format != nil && !s.sentFmt {
		s.sentFmt = true
		holder.Format = s.format
		return source.FormatRead
	}
	if len(s.samples) == 0 {
		buffer.Flags = source.FlagEndOfStream
		return source.BufferRead
	}
	buffer.Flags = 0
	buffer.TimeUs = s.samples[0]
	s.samples = s.samples[1:]
	return source.BufferRead
}

type recordingRenderer struct {
	Base
	events []string
}

func newRecordingRenderer() *recordingRenderer {
	r := &recordingRenderer{}
	r.Base.Init(constant.TrackTypeAudio, r)
	return r
}

func (r *recordingRenderer) OnEnabled(bool) error { r.events = append(r.events, "enabled"); return nil }
func (r *recordingRenderer) OnStreamChanged([]source.Format, int64) error {
	r.events = append(r.events, "stream")
	return nil
}
func (r *recordingRenderer) OnPositionReset(int64, bool) error {
	r.events = append(r.events, "reset")
	return nil
}
func (r *recordingRenderer) OnStarted() error { r.events = append(r.events, "started"); return nil }
func (r *recordingRenderer) OnStopped() error { r.events = append(r.events, "stopped"); return nil }
func (r *recordingRenderer) OnDisabled()      { r.events = append(r.events, "disabled") }

func (r *recordingRenderer) SupportsFormat(source.Format) FormatSupport { return FormatHandled }
func (r *recordingRenderer) IsReady() bool                              { return r.IsSourceReady() }
func (r *recordingRenderer) IsEnded() bool                              { return false }
func (r *recordingRenderer) Render(int64, int64) error                  { return nil }

func TestLifecycle(t *testing.T) {
	Convey("Given a disabled renderer", t, func() {
		r := newRecordingRenderer()
		stream := &scriptedStream{}

		Convey("When walked through enable, start, stop and disable", func() {
			So(r.Enable(DefaultConfiguration, nil, stream, 0, false, 0), ShouldBeNil)
			So(r.State(), ShouldEqual, StateEnabled)
			So(r.Start(), ShouldBeNil)
			So(r.State(), ShouldEqual, StateStarted)
			So(r.Stop(), ShouldBeNil)
			So(r.Disable(), ShouldBeNil)

			Convey("Then the hooks fire in order and the stream is detached", func() {
				So(r.events, ShouldResemble, []string{"enabled", "stream", "reset", "started", "stopped", "disabled"})
				So(r.State(), ShouldEqual, StateDisabled)
				So(r.Stream(), ShouldBeNil)
			})
		})

		Convey("When called out of order", func() {
			Convey("Then every illegal edge fails fast", func() {
				So(errors.Is(r.Start(), ErrIllegalState), ShouldBeTrue)
				So(errors.Is(r.Stop(), ErrIllegalState), ShouldBeTrue)
				So(errors.Is(r.Disable(), ErrIllegalState), ShouldBeTrue)

				So(r.Enable(DefaultConfiguration, nil, stream, 0, false, 0), ShouldBeNil)
				So(errors.Is(r.Enable(DefaultConfiguration, nil, stream, 0, false, 0), ErrIllegalState), ShouldBeTrue)
				So(errors.Is(r.Stop(), ErrIllegalState), ShouldBeTrue)

				So(r.Start(), ShouldBeNil)
				So(errors.Is(r.Disable(), ErrIllegalState), ShouldBeTrue)
				So(errors.Is(r.Start(), ErrIllegalState), ShouldBeTrue)
			})
		})

		Convey("When the stream is final", func() {
			So(r.Enable(DefaultConfiguration, nil, stream, 0, false, 0), ShouldBeNil)
			r.SetCurrentStreamFinal()

			Convey("Then it cannot be replaced until the position is reset", func() {
				So(errors.Is(r.ReplaceStream(nil, &scriptedStream{}, 10), ErrIllegalState), ShouldBeTrue)
				So(r.ResetPosition(0), ShouldBeNil)
				So(r.IsCurrentStreamFinal(), ShouldBeFalse)
				So(r.ReplaceStream(nil, &scriptedStream{}, 10), ShouldBeNil)
			})
		})
	})
}

func TestRandomLifecycle(t *testing.T) {
	Convey("Given random sequences of lifecycle calls", t, func() {
		rng := rand.New(rand.NewSource(1))

		Convey("Then the state only ever follows a legal edge", func() {
			for run := 0; run < 50; run++ {
				r := newRecordingRenderer()
				for step := 0; step < 40; step++ {
					before := r.State()
					var err error
					var legal bool
					switch rng.Intn(4) {
					case 0:
						err = r.Enable(DefaultConfiguration, nil, &scriptedStream{}, 0, false, 0)
						legal = before == StateDisabled
					case 1:
						err = r.Start()
						legal = before == StateEnabled
					case 2:
						err = r.Stop()
						legal = before == StateStarted
					case 3:
						err = r.Disable()
						legal = before == StateEnabled
					}
					if legal {
						So(err, ShouldBeNil)
					} else {
						So(errors.Is(err, ErrIllegalState), ShouldBeTrue)
						So(r.State(), ShouldEqual, before)
					}
					diff := int(r.State()) - int(before)
					So(diff >= -1 && diff <= 1, ShouldBeTrue)
				}
			}
		})
	})
}

func TestReadSource(t *testing.T) {
	Convey("Given an enabled renderer with a stream offset", t, func() {
		r := newRecordingRenderer()
		format := &source.Format{ID: "a", SubsampleOffsetUs: 5}
		stream := &scriptedStream{samples: []int64{100, 200}, format: format}
		So(r.Enable(DefaultConfiguration, nil, stream, 0, false, 1_000), ShouldBeNil)
		holder := &source.FormatHolder{}
		buffer := &source.Buffer{}

		Convey("Then formats and samples are shifted by the offset", func() {
			So(r.ReadSource(holder, buffer, false), ShouldEqual, source.FormatRead)
			So(holder.Format.SubsampleOffsetUs, ShouldEqual, 1_005)
			So(format.SubsampleOffsetUs, ShouldEqual, 5)

			So(r.ReadSource(holder, buffer, false), ShouldEqual, source.BufferRead)
			So(buffer.TimeUs, ShouldEqual, 1_100)
			So(r.ReadingPositionUs(), ShouldEqual, 1_100)
		})

		Convey("Then the end of a non-final stream reads as nothing", func() {
			r.ReadSource(holder, buffer, false)
			r.ReadSource(holder, buffer, false)
			r.ReadSource(holder, buffer, false)
			So(r.ReadSource(holder, buffer, false), ShouldEqual, source.NothingRead)
			So(r.HasReadStreamToEnd(), ShouldBeTrue)
			So(r.IsReady(), ShouldBeFalse)

			Convey("And as the end of stream once it is final", func() {
				r.SetCurrentStreamFinal()
				So(r.ReadSource(holder, buffer, false), ShouldEqual, source.BufferRead)
				So(buffer.IsEndOfStream(), ShouldBeTrue)
				So(r.IsReady(), ShouldBeTrue)
			})
		})
	})
}

func TestNoSample(t *testing.T) {
	Convey("Given a no-sample renderer", t, func() {
		r := NewNoSample()

		Convey("Then it is always ready and ended and follows the lifecycle", func() {
			So(r.IsReady(), ShouldBeTrue)
			So(r.IsEnded(), ShouldBeTrue)
			So(r.HasReadStreamToEnd(), ShouldBeTrue)
			So(r.SupportsFormat(source.Format{}), ShouldEqual, FormatUnsupportedType)
			So(r.Enable(DefaultConfiguration, nil, source.EmptySampleStream{}, 0, false, 0), ShouldBeNil)
			So(r.Start(), ShouldBeNil)
			So(errors.Is(r.Disable(), ErrIllegalState), ShouldBeTrue)
			So(r.Stop(), ShouldBeNil)
			So(r.Disable(), ShouldBeNil)
		})

		Convey("Then it satisfies the renderer contract", func() {
			var _ Renderer = r
		})
	})
}
