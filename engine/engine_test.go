package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cadence-media/cadence/clock"
	"github.com/cadence-media/cadence/loadcontrol"
	"github.com/cadence-media/cadence/renderer"
	"github.com/cadence-media/cadence/source"
	"github.com/cadence-media/cadence/synthetic"
	"github.com/cadence-media/cadence/timeline"
	"github.com/cadence-media/cadence/trackselect"
	. "github.com/smartystreets/goconvey/convey"
)

const wait = 5 * time.Second

type harness struct {
	engine *Engine
	source *synthetic.Source
	tl     *timeline.Timeline
	audio  *synthetic.AudioRenderer
	video  *synthetic.VideoRenderer
}

func fastMedia() synthetic.Options {
	opts := synthetic.DefaultOptions()
	opts.ChunkDuration = 100 * time.Millisecond
	opts.SampleInterval = 20 * time.Millisecond
	opts.MinRetryCount = 0
	return opts
}

func smallBuffers() loadcontrol.Options {
	opts := loadcontrol.DefaultOptions()
	opts.MinBuffer = time.Second
	opts.MaxBuffer = 2 * time.Second
	opts.BufferForPlayback = 300 * time.Millisecond
	opts.BufferForRebuffer = 500 * time.Millisecond
	return opts
}

func newHarness(tl *timeline.Timeline, media synthetic.Options, buffers loadcontrol.Options, playWhenReady bool) *harness {
	return newHarnessWith(tl, media, buffers, playWhenReady, nil)
}

// newHarnessWith lets setup adjust the engine options before the engine starts.
func newHarnessWith(tl *timeline.Timeline, media synthetic.Options, buffers loadcontrol.Options, playWhenReady bool, setup func(*Options)) *harness {
	c := clock.NewSystem()
	h := &harness{
		source: synthetic.NewSource(tl, media),
		tl:     tl,
		audio:  synthetic.NewAudioRenderer(c),
		video:  synthetic.NewVideoRenderer(1080),
	}
	opts := Options{
		Renderers:     []renderer.Renderer{h.audio, h.video, synthetic.NewTextRenderer()},
		Selector:      trackselect.NewDefault(nil),
		LoadControl:   loadcontrol.New(buffers),
		Clock:         c,
		PlayWhenReady: playWhenReady,
		CommandBuffer: 64,
		EventBuffer:   1024,
	}
	if setup != nil {
		setup(&opts)
	}
	e, err := New(opts)
	So(err, ShouldBeNil)
	h.engine = e
	return h
}

// await reads events until one satisfies pred. It returns nil on timeout or once the event
// channel is closed.
func (h *harness) await(pred func(Event) bool) Event {
	timeout := time.After(wait)
	for {
		select {
		case ev, ok := <-h.engine.Events():
			if !ok {
				return nil
			}
			if pred(ev) {
				return ev
			}
		case <-timeout:
			return nil
		}
	}
}

func (h *harness) awaitInfo(pred func(InfoChanged) bool) (InfoChanged, bool) {
	ev := h.await(func(ev Event) bool {
		info, ok := ev.(InfoChanged)
		return ok && pred(info)
	})
	info, ok := ev.(InfoChanged)
	return info, ok
}

// drain discards the events published so far.
func (h *harness) drain() {
	for {
		select {
		case _, ok := <-h.engine.Events():
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func (h *harness) release() {
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	So(h.engine.Release(ctx), ShouldBeNil)
}

func inState(state State) func(InfoChanged) bool {
	return func(ev InfoChanged) bool { return ev.Info.State == state }
}

type recorder struct {
	mu       sync.Mutex
	payloads []any
}

func (r *recorder) HandleMessage(_ int, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, payload)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

// onLoop runs fn on the playback goroutine and waits until it returned.
func (h *harness) onLoop(fn func(e *Engine)) {
	m := h.engine.CreateMessage(targetFunc(func(int, any) error {
		fn(h.engine)
		return nil
	}), h.tl, 0)
	So(m.Send(), ShouldBeNil)
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	delivered, err := m.BlockUntilDelivered(ctx)
	So(err, ShouldBeNil)
	So(delivered, ShouldBeTrue)
}

// readingAhead reports whether the renderers read from a later period than the playing one.
func (h *harness) readingAhead() bool {
	var ahead bool
	h.onLoop(func(e *Engine) { ahead = e.queue.Reading() != e.queue.Playing() })
	return ahead
}

type targetFunc func(kind int, payload any) error

func (f targetFunc) HandleMessage(kind int, payload any) error { return f(kind, payload) }

// countingRenderer counts lifecycle calls of the renderer it wraps.
type countingRenderer struct {
	renderer.Renderer
	enables  atomic.Int32
	disables atomic.Int32
}

func (r *countingRenderer) Enable(config renderer.Configuration, formats []source.Format, stream source.SampleStream, positionUs int64, joining bool, offsetUs int64) error {
	r.enables.Add(1)
	return r.Renderer.Enable(config, formats, stream, positionUs, joining, offsetUs)
}

func (r *countingRenderer) Disable() error {
	r.disables.Add(1)
	return r.Renderer.Disable()
}

// gate delays playback start until it is opened, and keeps loading going meanwhile.
type gate struct {
	loadcontrol.LoadControl
	open atomic.Bool
}

func (g *gate) ShouldContinueLoading(int64, float64) bool { return true }

func (g *gate) ShouldStartPlayback(int64, float64, bool) bool { return g.open.Load() }

func twoPeriods() *timeline.Timeline {
	tl, err := timeline.Build(timeline.WindowSpec{
		ID:       "w",
		Seekable: true,
		Periods: []timeline.PeriodSpec{
			{UID: "p0", DurationUs: 10_000_000},
			{UID: "p1", DurationUs: 10_000_000},
		},
	})
	So(err, ShouldBeNil)
	return tl
}

func shortWindow(durationUs int64) *timeline.Timeline {
	tl, err := timeline.Build(timeline.WindowSpec{
		ID:       "short",
		Seekable: true,
		Periods:  []timeline.PeriodSpec{{UID: "content", DurationUs: durationUs}},
	})
	So(err, ShouldBeNil)
	return tl
}

func TestNew(t *testing.T) {
	Convey("Given missing collaborators", t, func() {
		Convey("When no renderer is passed", func() {
			_, err := New(Options{Selector: trackselect.NewDefault(nil), LoadControl: loadcontrol.New(smallBuffers())})

			Convey("Then the engine is not created", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When no load control is passed", func() {
			_, err := New(Options{
				Renderers: []renderer.Renderer{synthetic.NewTextRenderer()},
				Selector:  trackselect.NewDefault(nil),
			})

			Convey("Then the engine is not created", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestSeek(t *testing.T) {
	Convey("Given a window of two ten second periods", t, func() {
		h := newHarness(twoPeriods(), fastMedia(), smallBuffers(), false)
		defer h.release()

		Convey("When seeking to 15s of the window right after prepare", func() {
			h.engine.Prepare(h.source, true, true)
			h.engine.SeekTo(h.tl, 0, 15_000_000)

			Convey("Then playback gets ready in the second period at 5s", func() {
				ev, ok := h.awaitInfo(func(ev InfoChanged) bool {
					return ev.Info.State == StateReady && ev.Info.PeriodID.PeriodUID == "p1"
				})
				So(ok, ShouldBeTrue)
				So(ev.Info.PositionUs, ShouldEqual, 5_000_000)
				So(ev.Info.PeriodID.IsAd(), ShouldBeFalse)
				So(h.engine.PlaybackInfo().PeriodID.PeriodUID, ShouldEqual, "p1")
			})
		})

		Convey("When seeking within the buffered part of the playing period", func() {
			h.engine.Prepare(h.source, true, true)
			_, ok := h.awaitInfo(inState(StateReady))
			So(ok, ShouldBeTrue)
			created := h.source.CreatedPeriods()
			h.engine.SeekTo(h.tl, 0, 200_000)

			Convey("Then the prepared period is reused", func() {
				ev, ok := h.awaitInfo(func(ev InfoChanged) bool { return ev.OperationAcks > 0 })
				So(ok, ShouldBeTrue)
				So(ev.Info.PositionUs, ShouldEqual, 200_000)
				So(h.source.CreatedPeriods(), ShouldEqual, created)
			})
		})

		Convey("When seeking to a window that does not exist", func() {
			h.engine.Prepare(h.source, true, true)
			_, ok := h.awaitInfo(inState(StateReady))
			So(ok, ShouldBeTrue)
			h.engine.SeekTo(h.tl, 3, 0)

			Convey("Then an unexpected error stops playback", func() {
				ev := h.await(func(ev Event) bool {
					_, ok := ev.(ErrorEvent)
					return ok
				})
				So(ev, ShouldNotBeNil)
				So(ev.(ErrorEvent).Err.Type, ShouldEqual, TypeUnexpected)
				var illegal *IllegalSeekPositionError
				So(errors.As(ev.(ErrorEvent).Err, &illegal), ShouldBeTrue)
				So(illegal.WindowIndex, ShouldEqual, 3)
			})
		})
	})
}

func TestBuffering(t *testing.T) {
	Convey("Given slow loads and a 300ms playback threshold", t, func() {
		media := fastMedia()
		media.LoadDelay = 20 * time.Millisecond
		h := newHarness(shortWindow(10_000_000), media, smallBuffers(), false)
		defer h.release()

		Convey("When the source is prepared", func() {
			h.engine.Prepare(h.source, true, true)

			Convey("Then the engine buffers before it gets ready", func() {
				_, ok := h.awaitInfo(inState(StateBuffering))
				So(ok, ShouldBeTrue)

				ev, ok := h.awaitInfo(inState(StateReady))
				So(ok, ShouldBeTrue)
				So(ev.Info.TotalBufferedDurationUs, ShouldBeGreaterThanOrEqualTo, 300_000)
				So(ev.Info.PositionUs, ShouldEqual, 0)
			})
		})
	})
}

func TestLoadControlGatesReadiness(t *testing.T) {
	Convey("Given a load control that holds playback back", t, func() {
		media := fastMedia()
		media.LoadDelay = 20 * time.Millisecond
		g := &gate{}
		h := newHarnessWith(shortWindow(60_000_000), media, smallBuffers(), false, func(opts *Options) {
			g.LoadControl = opts.LoadControl
			opts.LoadControl = g
		})
		defer h.release()

		Convey("When the source is prepared", func() {
			h.engine.Prepare(h.source, true, true)
			_, ok := h.awaitInfo(inState(StateBuffering))
			So(ok, ShouldBeTrue)
			time.Sleep(time.Second)

			Convey("Then it keeps buffering while loading", func() {
				info := h.engine.PlaybackInfo()
				So(info.State, ShouldEqual, StateBuffering)
				So(info.IsLoading, ShouldBeTrue)
				So(info.TotalBufferedDurationUs, ShouldBeGreaterThan, 300_000)

				Convey("And gets ready once the load control allows it", func() {
					g.open.Store(true)
					ev, ok := h.awaitInfo(inState(StateReady))
					So(ok, ShouldBeTrue)
					So(ev.Info.PositionUs, ShouldEqual, 0)
				})
			})
		})
	})
}

func TestSeekWithinBufferedPeriods(t *testing.T) {
	Convey("Given a short period followed by a long one", t, func() {
		tl, err := timeline.Build(timeline.WindowSpec{
			ID:       "w",
			Seekable: true,
			Periods: []timeline.PeriodSpec{
				{UID: "p0", DurationUs: 600_000},
				{UID: "p1", DurationUs: 10_000_000},
			},
		})
		So(err, ShouldBeNil)
		var video *countingRenderer
		h := newHarnessWith(tl, fastMedia(), smallBuffers(), true, func(opts *Options) {
			video = &countingRenderer{Renderer: opts.Renderers[1]}
			opts.Renderers[1] = video
		})
		defer h.release()

		Convey("When the renderers already read into the second period", func() {
			// Pausing just before the end of the first period keeps it playing while the
			// renderers move on to the next one.
			pause := h.engine.CreateMessage(targetFunc(func(int, any) error {
				h.engine.SetPlayWhenReady(false)
				return nil
			}), tl, 0).SetPosition(0, 585)
			So(pause.Send(), ShouldBeNil)
			h.engine.Prepare(h.source, true, true)

			ahead := false
			for deadline := time.Now().Add(wait); !ahead && time.Now().Before(deadline); {
				time.Sleep(20 * time.Millisecond)
				ahead = h.readingAhead()
			}
			So(ahead, ShouldBeTrue)
			So(h.engine.PlaybackInfo().PeriodID.PeriodUID, ShouldEqual, "p0")
			enables, disables := video.enables.Load(), video.disables.Load()
			h.drain()
			h.engine.SeekTo(tl, 0, 100_000)

			Convey("Then seeking within the first period disables and re-enables them", func() {
				ev, ok := h.awaitInfo(func(ev InfoChanged) bool { return ev.OperationAcks > 0 })
				So(ok, ShouldBeTrue)
				So(ev.Info.PeriodID.PeriodUID, ShouldEqual, "p0")
				So(ev.Info.PositionUs, ShouldEqual, 100_000)
				So(video.disables.Load(), ShouldEqual, disables+1)
				So(video.enables.Load(), ShouldEqual, enables+1)
				So(h.readingAhead(), ShouldBeFalse)
			})
		})

		Convey("When the renderers read from the playing period", func() {
			h.engine.SetPlayWhenReady(false)
			h.engine.Prepare(h.source, true, true)
			_, ok := h.awaitInfo(inState(StateReady))
			So(ok, ShouldBeTrue)
			So(h.readingAhead(), ShouldBeFalse)
			enables, disables := video.enables.Load(), video.disables.Load()
			h.engine.SeekTo(tl, 0, 100_000)

			Convey("Then seeking within it keeps them enabled", func() {
				ev, ok := h.awaitInfo(func(ev InfoChanged) bool { return ev.OperationAcks > 0 })
				So(ok, ShouldBeTrue)
				So(ev.Info.PositionUs, ShouldEqual, 100_000)
				So(video.disables.Load(), ShouldEqual, disables)
				So(video.enables.Load(), ShouldEqual, enables)
			})
		})
	})
}

func TestPlayback(t *testing.T) {
	Convey("Given a short window played when ready", t, func() {
		h := newHarness(shortWindow(400_000), fastMedia(), smallBuffers(), true)
		defer h.release()

		Convey("When the source is prepared", func() {
			h.engine.Prepare(h.source, true, true)

			Convey("Then playback ends after rendering the media", func() {
				_, ok := h.awaitInfo(inState(StateEnded))
				So(ok, ShouldBeTrue)
				So(h.audio.Rendered(), ShouldBeGreaterThan, 0)
				So(h.video.Rendered()+h.video.Dropped(), ShouldBeGreaterThan, 0)
				if format, ok := h.video.OutputFormat(); ok {
					So(format.Height, ShouldBeLessThanOrEqualTo, 1080)
				}
			})
		})
	})
}

func TestAds(t *testing.T) {
	Convey("Given content with a preroll ad", t, func() {
		ads := timeline.NewAdPlaybackState(0).
			WithAdCount(0, 1).
			WithAdDurationsUs([][]int64{{300_000}}).
			WithContentDurationUs(500_000)
		tl, err := timeline.Build(timeline.WindowSpec{
			ID:       "ads",
			Seekable: true,
			Periods:  []timeline.PeriodSpec{{UID: "content", DurationUs: 500_000, Ads: ads}},
		})
		So(err, ShouldBeNil)
		h := newHarness(tl, fastMedia(), smallBuffers(), true)
		defer h.release()

		Convey("When the source is prepared", func() {
			h.engine.Prepare(h.source, true, true)

			Convey("Then the ad plays before the content", func() {
				ev, ok := h.awaitInfo(func(ev InfoChanged) bool { return ev.Info.State == StateReady })
				So(ok, ShouldBeTrue)
				So(ev.Info.PeriodID.IsAd(), ShouldBeTrue)
				So(ev.Info.PeriodID.AdGroupIndex, ShouldEqual, 0)
				So(ev.Info.ContentPositionUs, ShouldEqual, 0)

				ev, ok = h.awaitInfo(func(ev InfoChanged) bool { return ev.Discontinuity })
				So(ok, ShouldBeTrue)
				So(ev.Reason, ShouldEqual, DiscontinuityAdInsertion)
				So(ev.Info.PeriodID.IsAd(), ShouldBeFalse)
			})
		})
	})
}

func TestMessages(t *testing.T) {
	Convey("Given a message at 100ms of a playing window", t, func() {
		h := newHarness(shortWindow(10_000_000), fastMedia(), smallBuffers(), true)
		defer h.release()
		target := &recorder{}
		m := h.engine.CreateMessage(target, h.tl, 0).
			SetKind(7).
			SetPayload("cue").
			SetPosition(0, 100)
		So(m.Send(), ShouldBeNil)
		h.engine.Prepare(h.source, true, true)

		Convey("When playback passes the position", func() {
			ctx, cancel := context.WithTimeout(context.Background(), wait)
			defer cancel()
			delivered, err := m.BlockUntilDelivered(ctx)

			Convey("Then the message is delivered once", func() {
				So(err, ShouldBeNil)
				So(delivered, ShouldBeTrue)
				So(target.count(), ShouldEqual, 1)
			})

			Convey("Then seeking back does not deliver it again", func() {
				_, ok := h.awaitInfo(inState(StateReady))
				So(ok, ShouldBeTrue)
				h.engine.SeekTo(h.tl, 0, 0)
				ev, ok := h.awaitInfo(func(ev InfoChanged) bool { return ev.OperationAcks > 0 })
				So(ok, ShouldBeTrue)
				So(ev.Info.PositionUs, ShouldEqual, 0)

				deadline := time.Now().Add(wait)
				for h.engine.PlaybackInfo().PositionUs <= 200_000 && time.Now().Before(deadline) {
					time.Sleep(10 * time.Millisecond)
				}
				So(h.engine.PlaybackInfo().PositionUs, ShouldBeGreaterThan, 200_000)
				So(target.count(), ShouldEqual, 1)
			})

			Convey("Then sending it twice fails", func() {
				So(m.Send(), ShouldEqual, ErrMessageAlreadySent)
			})
		})
	})

	Convey("Given a message without position", t, func() {
		h := newHarness(shortWindow(10_000_000), fastMedia(), smallBuffers(), false)
		defer h.release()
		target := &recorder{}

		Convey("When it is sent", func() {
			m := h.engine.CreateMessage(target, h.tl, 0).SetPayload(1)
			So(m.Send(), ShouldBeNil)

			Convey("Then it is delivered right away", func() {
				ctx, cancel := context.WithTimeout(context.Background(), wait)
				defer cancel()
				delivered, err := m.BlockUntilDelivered(ctx)
				So(err, ShouldBeNil)
				So(delivered, ShouldBeTrue)
				So(target.count(), ShouldEqual, 1)
			})
		})

		Convey("When it is canceled before playback reaches it", func() {
			m := h.engine.CreateMessage(target, h.tl, 0).SetPosition(0, 50)
			So(m.Send(), ShouldBeNil)
			m.Cancel()
			h.engine.Prepare(h.source, true, true)
			h.engine.SetPlayWhenReady(true)
			time.Sleep(300 * time.Millisecond)

			Convey("Then the target never sees it", func() {
				So(m.IsCanceled(), ShouldBeTrue)
				So(target.count(), ShouldEqual, 0)
			})
		})
	})
}

func TestStop(t *testing.T) {
	Convey("Given a prepared engine", t, func() {
		h := newHarness(shortWindow(10_000_000), fastMedia(), smallBuffers(), false)
		defer h.release()
		h.engine.Prepare(h.source, true, true)
		_, ok := h.awaitInfo(inState(StateReady))
		So(ok, ShouldBeTrue)

		Convey("When it is stopped twice without reset", func() {
			h.engine.Stop(false)
			h.engine.Stop(false)

			Convey("Then it goes idle and acknowledges both stops without errors", func() {
				acks := 0
				ev := h.await(func(ev Event) bool {
					switch ev := ev.(type) {
					case ErrorEvent:
						return true
					case InfoChanged:
						if ev.Info.State == StateIdle {
							acks += ev.OperationAcks
						}
						return acks >= 2
					}
					return false
				})
				So(ev, ShouldHaveSameTypeAs, InfoChanged{})
				So(ev.(InfoChanged).Info.State, ShouldEqual, StateIdle)
				So(h.source.ActivePeriods(), ShouldEqual, 0)
			})
		})
	})
}

func TestRelease(t *testing.T) {
	Convey("Given a playing engine", t, func() {
		h := newHarness(shortWindow(10_000_000), fastMedia(), smallBuffers(), true)
		h.engine.Prepare(h.source, true, true)
		_, ok := h.awaitInfo(inState(StateReady))
		So(ok, ShouldBeTrue)

		Convey("When it is released", func() {
			h.release()

			Convey("Then the loop is done and the event channel is closed", func() {
				select {
				case <-h.engine.Done():
				case <-time.After(wait):
					So("loop still running", ShouldBeEmpty)
				}
				So(h.await(func(Event) bool { return false }), ShouldBeNil)
				So(h.source.ActivePeriods(), ShouldEqual, 0)
			})

			Convey("Then releasing again is harmless", func() {
				h.release()
			})

			Convey("Then messages are refused and dropped", func() {
				m := h.engine.CreateMessage(&recorder{}, h.tl, 0)
				So(m.Send(), ShouldEqual, ErrReleased)
				ctx, cancel := context.WithTimeout(context.Background(), wait)
				defer cancel()
				delivered, err := m.BlockUntilDelivered(ctx)
				So(err, ShouldBeNil)
				So(delivered, ShouldBeFalse)
			})
		})
	})
}

func TestSourceErrors(t *testing.T) {
	Convey("Given a source whose loads always fail", t, func() {
		media := fastMedia()
		media.LoadErrors = 100
		media.FatalLoadErrors = 1
		h := newHarness(shortWindow(10_000_000), media, smallBuffers(), false)
		defer h.release()

		Convey("When it is prepared", func() {
			h.engine.Prepare(h.source, true, true)

			Convey("Then a source error stops playback", func() {
				ev := h.await(func(ev Event) bool {
					_, ok := ev.(ErrorEvent)
					return ok
				})
				So(ev, ShouldNotBeNil)
				err := ev.(ErrorEvent).Err
				So(err.Type, ShouldEqual, TypeSource)
				So(errors.Is(err, synthetic.ErrLoad), ShouldBeTrue)

				info, ok := h.awaitInfo(inState(StateIdle))
				So(ok, ShouldBeTrue)
				So(info.Info.IsLoading, ShouldBeFalse)
			})
		})
	})
}
