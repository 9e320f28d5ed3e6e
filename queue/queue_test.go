package queue

import (
	"testing"

	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/renderer"
	"github.com/cadence-media/cadence/source"
	"github.com/cadence-media/cadence/timeline"
	"github.com/cadence-media/cadence/trackselect"
	"github.com/samber/lo"
	. "github.com/smartystreets/goconvey/convey"
)

type audioCaps struct{}

func (audioCaps) TrackType() int { return constant.TrackTypeAudio }
func (audioCaps) SupportsFormat(f source.Format) renderer.FormatSupport {
	if f.TrackType == constant.TrackTypeAudio {
		return renderer.FormatHandled
	}
	return renderer.FormatUnsupportedType
}

type fakePeriod struct {
	id       source.MediaPeriodID
	buffered int64
	released bool
}

func (p *fakePeriod) Prepare(source.PeriodCallback, int64) {}
func (p *fakePeriod) MaybeThrowPrepareError() error        { return nil }
func (p *fakePeriod) TrackGroups() []source.TrackGroup {
	return []source.TrackGroup{{Formats: []source.Format{{ID: "a", TrackType: constant.TrackTypeAudio}}}}
}
func (p *fakePeriod) SelectTracks(selections []source.TrackSelection, mayRetain []bool, streams []source.SampleStream, reset []bool, positionUs int64) int64 {
	for i, s := range selections {
		switch {
		case s == nil:
			streams[i] = nil
		case streams[i] == nil || !mayRetain[i]:
			streams[i] = source.EmptySampleStream{}
			reset[i] = true
		}
	}
	return positionUs
}
func (p *fakePeriod) DiscardBuffer(int64, bool)                                       {}
func (p *fakePeriod) ReadDiscontinuity() int64                                        { return constant.TimeUnset }
func (p *fakePeriod) BufferedPositionUs() int64                                       { return p.buffered }
func (p *fakePeriod) SeekToUs(positionUs int64) int64                                 { return positionUs }
func (p *fakePeriod) AdjustedSeekPositionUs(pos int64, _ source.SeekParameters) int64 { return pos }
func (p *fakePeriod) NextLoadPositionUs() int64                                       { return constant.TimeEndOfSource }
func (p *fakePeriod) ContinueLoading(int64) bool                                      { return false }
func (p *fakePeriod) ReevaluateBuffer(int64)                                          {}

type fakeSource struct {
	created  []*fakePeriod
	released int
}

func (s *fakeSource) PrepareSource(source.SourceInfoRefreshListener) {}
func (s *fakeSource) MaybeThrowSourceInfoRefreshError() error        { return nil }
func (s *fakeSource) ReleaseSource(source.SourceInfoRefreshListener) {}
func (s *fakeSource) ReleasePeriod(p source.MediaPeriod) {
	p.(*fakePeriod).released = true
	s.released++
}
func (s *fakeSource) CreatePeriod(id source.MediaPeriodID, _ source.Allocator) (source.MediaPeriod, error) {
	p := &fakePeriod{id: id, buffered: constant.TimeEndOfSource}
	s.created = append(s.created, p)
	return p, nil
}

type fixture struct {
	q   *Queue
	src *fakeSource
	sel trackselect.Selector
}

func newFixture(tl *timeline.Timeline) *fixture {
	q := New()
	q.SetTimeline(tl)
	return &fixture{q: q, src: &fakeSource{}, sel: trackselect.NewDefault(nil)}
}

func (f *fixture) enqueue(info PeriodInfo) *Holder {
	h := lo.Must(f.q.Enqueue([]trackselect.Capabilities{audioCaps{}}, f.sel, nil, f.src, info))
	lo.Must0(h.HandlePrepared(1))
	return h
}

// enqueueNext appends the following period, starting at the default position when empty.
func (f *fixture) enqueueNext() (*Holder, bool) {
	var start source.MediaPeriodID
	if f.q.Loading() == nil {
		uid := f.q.Timeline().UIDOfPeriod(0)
		start = f.q.ResolveMediaPeriodIDForAds(uid, 0)
	}
	info, ok := f.q.NextMediaPeriodInfo(0, start, 0, 0).Get()
	if !ok {
		return nil, false
	}
	return f.enqueue(info), true
}

func ancestors(q *Queue) bool {
	chain := q.Holders()
	if len(chain) == 0 {
		return q.Playing() == nil && q.Reading() == nil && q.Loading() == nil
	}
	index := func(h *Holder) int {
		return lo.IndexOf(chain, h)
	}
	last := chain[len(chain)-1]
	if last != q.Loading() || q.Next(last) != nil {
		return false
	}
	if q.Playing() == nil {
		return q.Reading() == nil
	}
	return index(q.Playing()) <= index(q.Reading()) && index(q.Reading()) <= index(q.Loading())
}

func twoWindows() *timeline.Timeline {
	return lo.Must(timeline.Build(
		timeline.WindowSpec{ID: "w0", Seekable: true, Periods: []timeline.PeriodSpec{{UID: "p0", DurationUs: 1_000_000}}},
		timeline.WindowSpec{ID: "w1", Seekable: true, Periods: []timeline.PeriodSpec{{UID: "p1", DurationUs: 2_000_000}}},
	))
}

func TestQueueChain(t *testing.T) {
	Convey("Given a queue over two windows", t, func() {
		f := newFixture(twoWindows())
		q := f.q

		Convey("An empty queue wants a period and keeps the invariant", func() {
			So(q.ShouldLoadNextMediaPeriod(), ShouldBeTrue)
			So(ancestors(q), ShouldBeTrue)
		})

		Convey("When both periods are enqueued and playback starts", func() {
			first, ok := f.enqueueNext()
			So(ok, ShouldBeTrue)
			So(q.AdvancePlayingPeriod(), ShouldEqual, first)
			So(q.ShouldLoadNextMediaPeriod(), ShouldBeTrue)
			second, ok := f.enqueueNext()
			So(ok, ShouldBeTrue)

			Convey("Then the second follows with a new window sequence and offset", func() {
				So(second.Info.ID.PeriodUID, ShouldEqual, "p1")
				So(second.Info.ID.WindowSequenceNumber, ShouldEqual, first.Info.ID.WindowSequenceNumber+1)
				So(second.RendererOffsetUs(), ShouldEqual, 1_000_000)
				So(second.Info.IsFinal, ShouldBeTrue)
				So(first.Info.IsFinal, ShouldBeFalse)
				So(q.ShouldLoadNextMediaPeriod(), ShouldBeFalse)
				So(ancestors(q), ShouldBeTrue)
			})

			Convey("Then removing after playing while reading is ahead resets reading", func() {
				So(q.AdvanceReadingPeriod(), ShouldEqual, second)
				So(q.RemoveAfter(first), ShouldBeTrue)
				So(q.Reading(), ShouldEqual, first)
				So(q.Len(), ShouldEqual, 1)
				So(f.src.released, ShouldEqual, 1)
				So(ancestors(q), ShouldBeTrue)
			})

			Convey("Then removing after playing with reading in place keeps reading", func() {
				So(q.RemoveAfter(first), ShouldBeFalse)
				So(ancestors(q), ShouldBeTrue)
			})

			Convey("Then advancing past the last period empties the queue", func() {
				q.AdvanceReadingPeriod()
				So(q.AdvancePlayingPeriod(), ShouldEqual, second)
				So(q.AdvancePlayingPeriod(), ShouldBeNil)
				So(q.Len(), ShouldEqual, 0)
				So(ancestors(q), ShouldBeTrue)
			})

			Convey("Then turning on repeat one drops the second period", func() {
				So(q.UpdateRepeatMode(timeline.RepeatOne), ShouldBeTrue)
				So(q.Len(), ShouldEqual, 1)
				So(q.Loading(), ShouldEqual, first)
				So(ancestors(q), ShouldBeTrue)

				Convey("And the window repeats with a fresh sequence number", func() {
					again, ok := f.enqueueNext()
					So(ok, ShouldBeTrue)
					So(again.UID, ShouldEqual, "p0")
					So(again.Info.ID.WindowSequenceNumber, ShouldNotEqual, first.Info.ID.WindowSequenceNumber)
				})
			})

			Convey("Then clearing keeps the front window sequence", func() {
				sequence := first.Info.ID.WindowSequenceNumber
				q.Clear(true)
				So(q.Len(), ShouldEqual, 0)
				So(f.src.released, ShouldEqual, 2)
				So(q.ResolveMediaPeriodIDForAds("p0", 0).WindowSequenceNumber, ShouldEqual, sequence)
				So(ancestors(q), ShouldBeTrue)
			})
		})

		Convey("When the timeline refreshes without the second period", func() {
			first, _ := f.enqueueNext()
			q.AdvancePlayingPeriod()
			f.enqueueNext()
			reduced := lo.Must(timeline.Build(
				timeline.WindowSpec{ID: "w0", Periods: []timeline.PeriodSpec{{UID: "p0", DurationUs: 1_500_000}}},
			))
			q.SetTimeline(reduced)

			Convey("Then the second holder is dropped and the first is updated", func() {
				So(q.UpdateQueuedPeriods(first.Info.ID, 0), ShouldBeTrue)
				So(q.Len(), ShouldEqual, 1)
				So(first.Info.DurationUs, ShouldEqual, 1_500_000)
				So(first.Info.IsFinal, ShouldBeTrue)
			})
		})
	})
}

func TestQueueAds(t *testing.T) {
	Convey("Given a period with a preroll and a midroll", t, func() {
		ads := timeline.NewAdPlaybackState(0, 1_000_000).
			WithAdCount(0, 1).
			WithAdCount(1, 1).
			WithAdDurationsUs([][]int64{{300_000}, {400_000}})
		tl := lo.Must(timeline.Build(timeline.WindowSpec{ID: "w", Periods: []timeline.PeriodSpec{{UID: "p", DurationUs: 3_000_000, Ads: ads}}}))
		f := newFixture(tl)
		q := f.q

		Convey("The preroll precedes content at any position before the midroll", func() {
			id := q.ResolveMediaPeriodIDForAds("p", 500_000)
			So(id.IsAd(), ShouldBeTrue)
			So(id.AdGroupIndex, ShouldEqual, 0)
			So(id.AdIndexInAdGroup, ShouldEqual, 0)
		})

		Convey("Past the midroll the midroll comes first", func() {
			id := q.ResolveMediaPeriodIDForAds("p", 2_000_000)
			So(id.AdGroupIndex, ShouldEqual, 1)
		})

		Convey("Once both groups are played content is resolved", func() {
			played := lo.Must(tl.WithPeriodAds("p", ads.WithPlayedAd(0, 0).WithPlayedAd(1, 0)))
			q.SetTimeline(played)
			id := q.ResolveMediaPeriodIDForAds("p", 2_000_000)
			So(id.IsAd(), ShouldBeFalse)
			So(id.EndPositionUs, ShouldEqual, constant.TimeUnset)
		})

		Convey("Once the preroll is played content stops at the midroll", func() {
			played := lo.Must(tl.WithPeriodAds("p", ads.WithPlayedAd(0, 0)))
			q.SetTimeline(played)
			id := q.ResolveMediaPeriodIDForAds("p", 0)
			So(id.IsAd(), ShouldBeFalse)
			So(id.EndPositionUs, ShouldEqual, 1_000_000)
		})

		Convey("The chain alternates between ads and content", func() {
			preroll, ok := f.enqueueNext()
			So(ok, ShouldBeTrue)
			So(preroll.Info.ID.IsAd(), ShouldBeTrue)
			So(preroll.Info.DurationUs, ShouldEqual, 300_000)
			So(preroll.Info.ContentPositionUs, ShouldEqual, 0)
			So(preroll.Info.IsLastInTimelinePeriod, ShouldBeFalse)
			q.AdvancePlayingPeriod()

			content, ok := f.enqueueNext()
			So(ok, ShouldBeTrue)
			So(content.Info.ID.IsAd(), ShouldBeFalse)
			So(content.Info.ID.EndPositionUs, ShouldEqual, 1_000_000)
			So(content.Info.DurationUs, ShouldEqual, 1_000_000)

			midroll, ok := f.enqueueNext()
			So(ok, ShouldBeTrue)
			So(midroll.Info.ID.AdGroupIndex, ShouldEqual, 1)
			So(midroll.Info.ContentPositionUs, ShouldEqual, 1_000_000)

			rest, ok := f.enqueueNext()
			So(ok, ShouldBeTrue)
			So(rest.Info.ID.IsAd(), ShouldBeFalse)
			So(rest.Info.StartPositionUs, ShouldEqual, 1_000_000)
			So(rest.Info.DurationUs, ShouldEqual, 3_000_000)
			So(rest.Info.IsFinal, ShouldBeTrue)
			So(ancestors(q), ShouldBeTrue)

			_, ok = f.enqueueNext()
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given a period with a postroll", t, func() {
		ads := timeline.NewAdPlaybackState(constant.TimeEndOfSource).WithAdCount(0, 1).WithAdDurationsUs([][]int64{{200_000}})
		tl := lo.Must(timeline.Build(timeline.WindowSpec{ID: "w", Periods: []timeline.PeriodSpec{{UID: "p", DurationUs: 1_000_000, Ads: ads}}}))
		f := newFixture(tl)

		Convey("Content ends before the postroll, which is final", func() {
			content, ok := f.enqueueNext()
			So(ok, ShouldBeTrue)
			So(content.Info.ID.EndPositionUs, ShouldEqual, constant.TimeEndOfSource)
			So(content.Info.IsFinal, ShouldBeFalse)
			f.q.AdvancePlayingPeriod()

			postroll, ok := f.enqueueNext()
			So(ok, ShouldBeTrue)
			So(postroll.Info.ID.IsAd(), ShouldBeTrue)
			So(postroll.Info.ContentPositionUs, ShouldEqual, 1_000_000)
			So(postroll.Info.IsFinal, ShouldBeTrue)
		})
	})
}
