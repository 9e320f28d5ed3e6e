package synthetic

import (
	"errors"
	"testing"
	"time"

	"github.com/cadence-media/cadence/clock"
	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/loadcontrol"
	"github.com/cadence-media/cadence/renderer"
	"github.com/cadence-media/cadence/source"
	"github.com/cadence-media/cadence/timeline"
	"github.com/cadence-media/cadence/trackselect"
	. "github.com/smartystreets/goconvey/convey"
)

const wait = 2 * time.Second

type periodEvents struct {
	prepared  chan source.MediaPeriod
	continued chan source.MediaPeriod
}

func newPeriodEvents() *periodEvents {
	return &periodEvents{
		prepared:  make(chan source.MediaPeriod, 16),
		continued: make(chan source.MediaPeriod, 64),
	}
}

func (e *periodEvents) OnPrepared(p source.MediaPeriod)                 { e.prepared <- p }
func (e *periodEvents) OnContinueLoadingRequested(p source.MediaPeriod) { e.continued <- p }

func received(ch chan source.MediaPeriod) bool {
	select {
	case <-ch:
		return true
	case <-time.After(wait):
		return false
	}
}

type refreshes struct {
	timelines chan *timeline.Timeline
}

func (r *refreshes) OnSourceInfoRefreshed(_ source.MediaSource, tl *timeline.Timeline, _ any) {
	r.timelines <- tl
}

func selectAll(p *Period) ([]source.SampleStream, []bool) {
	groups := p.TrackGroups()
	selections := make([]source.TrackSelection, len(groups))
	for i, g := range groups {
		selections[i] = trackselect.NewSelection(g, []int{len(g.Formats) - 1}, nil, 0)
	}
	streams := make([]source.SampleStream, len(groups))
	flags := make([]bool, len(groups))
	p.SelectTracks(selections, make([]bool, len(groups)), streams, flags, 0)
	return streams, flags
}

func readTimes(s source.SampleStream) (times []int64, ended bool) {
	var (
		holder source.FormatHolder
		buffer source.Buffer
	)
	for {
		switch s.ReadData(&holder, &buffer, false) {
		case source.BufferRead:
			if buffer.IsEndOfStream() {
				return times, true
			}
			times = append(times, buffer.TimeUs)
		case source.FormatRead:
		default:
			return times, false
		}
	}
}

func TestPeriod(t *testing.T) {
	Convey("Given a two second period", t, func() {
		opts := DefaultOptions()
		opts.ChunkDuration = time.Second
		opts.SampleInterval = 250 * time.Millisecond
		opts.MinRetryCount = 0
		opts = opts.withDefaults()
		allocator := loadcontrol.NewDefaultAllocator(true, 64*1024)
		p := newPeriod(source.NewContentID("p", 0, constant.TimeUnset), 2*second, opts, allocator)
		events := newPeriodEvents()
		Reset(p.release)

		p.Prepare(events, 0)
		So(received(events.prepared), ShouldBeTrue)
		So(p.BufferedPositionUs(), ShouldEqual, second)
		So(allocator.TotalBytesAllocated(), ShouldBeGreaterThan, 0)

		Convey("Streams start with a format and read the first chunk", func() {
			streams, flags := selectAll(p)
			So(flags, ShouldResemble, []bool{true, true, true})

			var holder source.FormatHolder
			So(streams[1].ReadData(&holder, &source.Buffer{}, false), ShouldEqual, source.FormatRead)
			So(holder.Format.ID, ShouldEqual, "video/360")

			times, ended := readTimes(streams[0])
			So(times, ShouldResemble, []int64{0, 250_000, 500_000, 750_000})
			So(ended, ShouldBeFalse)

			Convey("Loading continues to the end of the period", func() {
				So(p.ContinueLoading(0), ShouldBeTrue)
				So(received(events.continued), ShouldBeTrue)
				So(p.BufferedPositionUs(), ShouldEqual, constant.TimeEndOfSource)
				So(p.NextLoadPositionUs(), ShouldEqual, constant.TimeEndOfSource)
				So(p.ContinueLoading(0), ShouldBeFalse)

				times, ended = readTimes(streams[0])
				So(times, ShouldHaveLength, 4)
				So(ended, ShouldBeTrue)

				Convey("Seeking into the buffer rereads from the sync sample", func() {
					So(p.SeekToUs(1_600_000), ShouldEqual, 1_600_000)
					times, _ = readTimes(streams[0])
					So(times[0], ShouldEqual, second)
				})

				Convey("Discarding releases read chunks", func() {
					readTimes(streams[1])
					readTimes(streams[2])
					before := allocator.TotalBytesAllocated()
					p.DiscardBuffer(1_500_000, false)
					So(allocator.TotalBytesAllocated(), ShouldBeLessThan, before)
				})
			})

			Convey("Seeking outside the buffer restarts loading there", func() {
				So(p.SeekToUs(1_500_000), ShouldEqual, 1_500_000)
				So(p.BufferedPositionUs(), ShouldEqual, second)
				So(p.ContinueLoading(second), ShouldBeTrue)
				So(received(events.continued), ShouldBeTrue)
				times, ended = readTimes(streams[0])
				So(times[0], ShouldEqual, second)
				So(ended, ShouldBeTrue)
			})
		})

		Convey("Seek positions snap to chunk boundaries within tolerance", func() {
			So(p.AdjustedSeekPositionUs(1_400_000, source.SeekExact), ShouldEqual, 1_400_000)
			So(p.AdjustedSeekPositionUs(1_400_000, source.SeekClosestSync), ShouldEqual, second)
			So(p.AdjustedSeekPositionUs(1_600_000, source.SeekClosestSync), ShouldEqual, 2*second)
			So(p.AdjustedSeekPositionUs(1_600_000, source.SeekPreviousSync), ShouldEqual, second)
		})
	})

	Convey("Given a period whose loads fail", t, func() {
		opts := DefaultOptions()
		opts.LoadErrors = 100
		opts.FatalLoadErrors = 2
		opts.RetryDelay = time.Millisecond
		opts.MinRetryCount = 0
		opts = opts.withDefaults()
		p := newPeriod(source.NewContentID("p", 0, constant.TimeUnset), 2*second, opts, loadcontrol.NewDefaultAllocator(true, 1024))
		Reset(p.release)

		Convey("The prepare error surfaces once the loader gives up", func() {
			p.Prepare(newPeriodEvents(), 0)
			var err error
			for deadline := time.Now().Add(wait); err == nil && time.Now().Before(deadline); {
				time.Sleep(5 * time.Millisecond)
				err = p.MaybeThrowPrepareError()
			}
			So(errors.Is(err, ErrLoad), ShouldBeTrue)
		})
	})
}

func TestSource(t *testing.T) {
	Convey("Given a source over the ads preset", t, func() {
		tl, err := Preset("ads")
		So(err, ShouldBeNil)
		src := NewSource(tl, DefaultOptions())
		listener := &refreshes{timelines: make(chan *timeline.Timeline, 4)}
		src.PrepareSource(listener)
		So(<-listener.timelines, ShouldEqual, tl)
		uid := tl.UIDOfPeriod(0)
		allocator := loadcontrol.NewDefaultAllocator(true, 1024)

		Convey("Ad periods last as long as the ad", func() {
			mp, err := src.CreatePeriod(source.NewAdID(uid, 1, 0, 0), allocator)
			So(err, ShouldBeNil)
			So(mp.(*Period).DurationUs(), ShouldEqual, 5*second)
			So(src.ActivePeriods(), ShouldEqual, 1)
			src.ReleasePeriod(mp)
			So(src.ActivePeriods(), ShouldEqual, 0)
			So(src.CreatedPeriods(), ShouldEqual, 1)
		})

		Convey("Content periods stop at the next ad group", func() {
			mp, err := src.CreatePeriod(source.NewContentID(uid, 0, 30*second), allocator)
			So(err, ShouldBeNil)
			So(mp.(*Period).DurationUs(), ShouldEqual, 30*second)
			src.ReleasePeriod(mp)
		})

		Convey("Unknown periods are rejected", func() {
			_, err := src.CreatePeriod(source.NewContentID("missing", 0, constant.TimeUnset), allocator)
			So(err, ShouldNotBeNil)
		})

		Convey("Marking an ad played publishes a new timeline", func() {
			So(src.MarkAdPlayed(uid, 0, 0), ShouldBeNil)
			updated := <-listener.timelines
			So(updated, ShouldNotEqual, tl)
			period, _ := updated.PeriodByUID(uid)
			So(period.HasPlayedAdGroup(0), ShouldBeTrue)
			So(src.Timeline(), ShouldEqual, updated)
			So(src.MarkAdPlayed(uid, 7, 0), ShouldNotBeNil)
		})
	})
}

func TestPresets(t *testing.T) {
	Convey("Every preset builds", t, func() {
		So(Presets(), ShouldResemble, []string{"ads", "live", "playlist", "single"})
		for _, name := range Presets() {
			tl, err := Preset(name)
			So(err, ShouldBeNil)
			So(tl.IsEmpty(), ShouldBeFalse)
		}
		live, _ := Preset("live")
		So(live.Window(0).Dynamic, ShouldBeTrue)
		So(live.Window(0).DurationUs, ShouldEqual, constant.TimeUnset)

		a, _ := Preset("single")
		b, _ := Preset("single")
		So(a.UIDOfPeriod(0), ShouldNotEqual, b.UIDOfPeriod(0))

		_, err := Preset("nope")
		So(err, ShouldNotBeNil)
		So(IsPreset("playlist"), ShouldBeTrue)
	})
}

type listStream struct {
	formats []*source.Format
	times   []int64
	i       int
}

func (s *listStream) IsReady() bool          { return true }
func (s *listStream) MaybeThrowError() error { return nil }
func (s *listStream) SkipData(int64) int     { return 0 }

func (s *listStream) ReadData(holder *source.FormatHolder, buffer *source.Buffer, formatRequired bool) source.ReadResult {
	if formatRequired || (s.i < len(s.formats) && s.formats[s.i] != nil) {
		f := s.formats[min(s.i, len(s.formats)-1)]
		if f == nil {
			f = s.formats[0]
		}
		holder.Format = f
		if s.i < len(s.formats) {
			s.formats[s.i] = nil
		}
		return source.FormatRead
	}
	if s.i >= len(s.times) {
		buffer.Flags = source.FlagEndOfStream
		return source.BufferRead
	}
	buffer.TimeUs = s.times[s.i]
	buffer.Flags = 0
	s.i++
	return source.BufferRead
}

func TestRenderers(t *testing.T) {
	groups := DefaultTracks()
	low, high := groups[1].Formats[2], groups[1].Formats[0]

	Convey("Given a video renderer capped at 720 lines", t, func() {
		r := NewVideoRenderer(720)
		So(r.SupportsFormat(high), ShouldEqual, renderer.FormatExceedsCapabilities)
		So(r.SupportsFormat(low), ShouldEqual, renderer.FormatHandled)
		So(r.SupportsFormat(groups[0].Formats[0]), ShouldEqual, renderer.FormatUnsupportedType)

		Convey("Frames render once due and format changes apply at their first frame", func() {
			stream := &listStream{
				formats: []*source.Format{&low, nil, &groups[1].Formats[1]},
				times:   []int64{0, 40_000, 80_000, 120_000},
			}
			So(r.Enable(renderer.DefaultConfiguration, nil, stream, 0, false, 0), ShouldBeNil)
			r.SetCurrentStreamFinal()

			So(r.Render(0, 0), ShouldBeNil)
			So(r.Rendered(), ShouldEqual, 1)
			So(r.IsReady(), ShouldBeTrue)
			format, ok := r.OutputFormat()
			So(ok, ShouldBeTrue)
			So(format.ID, ShouldEqual, "video/360")

			So(r.Render(100_000, 0), ShouldBeNil)
			So(r.LastRenderedUs(), ShouldBeGreaterThanOrEqualTo, 40_000)

			So(r.Render(1_000_000, 0), ShouldBeNil)
			So(r.IsEnded(), ShouldBeTrue)
			So(r.Rendered()+r.Dropped(), ShouldEqual, 4)
		})

		Convey("Surface messages are applied", func() {
			So(r.HandleMessage(MsgSetSurface, "main"), ShouldBeNil)
			So(r.Surface(), ShouldEqual, "main")
			So(r.HandleMessage(MsgSetSurface, 42), ShouldNotBeNil)
		})
	})

	Convey("Given an audio renderer", t, func() {
		c := clock.NewFake()
		r := NewAudioRenderer(c)

		Convey("Its clock runs while started", func() {
			So(r.MediaClock(), ShouldNotBeNil)
			stream := &listStream{formats: []*source.Format{&groups[0].Formats[0]}, times: []int64{0}}
			So(r.Enable(renderer.DefaultConfiguration, nil, stream, 500_000, false, 0), ShouldBeNil)
			So(r.PositionUs(), ShouldEqual, 500_000)
			So(r.Start(), ShouldBeNil)
			c.Advance(100 * time.Millisecond)
			So(r.PositionUs(), ShouldEqual, 600_000)
			So(r.Stop(), ShouldBeNil)
			c.Advance(time.Second)
			So(r.PositionUs(), ShouldEqual, 600_000)
		})

		Convey("Volume messages are validated", func() {
			So(r.Volume(), ShouldEqual, 1)
			So(r.HandleMessage(MsgSetVolume, 0.5), ShouldBeNil)
			So(r.Volume(), ShouldEqual, 0.5)
			So(r.HandleMessage(MsgSetVolume, 2.0), ShouldNotBeNil)
		})
	})

	Convey("Text renderers never hold up playback", t, func() {
		So(NewTextRenderer().IsReady(), ShouldBeTrue)
	})
}

func TestMeter(t *testing.T) {
	Convey("The meter reports the median rate once enough was transferred", t, func() {
		m := NewMeter()
		So(m.BitrateEstimate(), ShouldEqual, meterInitialEstimateBits)
		m.AddSample(1000, time.Millisecond)
		So(m.BitrateEstimate(), ShouldEqual, meterInitialEstimateBits)
		for i := 0; i < 10; i++ {
			m.AddSample(100_000, 100*time.Millisecond)
		}
		So(float64(m.BitrateEstimate()), ShouldAlmostEqual, 8_000_000, 2)
	})
}
