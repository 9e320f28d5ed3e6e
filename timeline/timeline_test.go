package timeline

import (
	"errors"
	"testing"

	"github.com/cadence-media/cadence/constant"
	"github.com/samber/lo"
	. "github.com/smartystreets/goconvey/convey"
)

func twoWindows() *Timeline {
	return lo.Must(Build(
		WindowSpec{ID: "w0", Seekable: true, Periods: []PeriodSpec{
			{UID: "p0", DurationUs: 1_000_000},
			{UID: "p1", DurationUs: 2_000_000},
		}},
		WindowSpec{ID: "w1", Seekable: true, Periods: []PeriodSpec{
			{UID: "p2", DurationUs: 500_000},
		}},
	))
}

func TestBuild(t *testing.T) {
	Convey("Given window specs", t, func() {
		tl := twoWindows()

		Convey("Then periods are laid out back to back", func() {
			So(tl.WindowCount(), ShouldEqual, 2)
			So(tl.PeriodCount(), ShouldEqual, 3)
			So(tl.Window(0).DurationUs, ShouldEqual, 3_000_000)
			So(tl.Window(1).FirstPeriodIndex, ShouldEqual, 2)
			So(tl.Period(1).PositionInWindowUs, ShouldEqual, 1_000_000)
			So(tl.Period(2).WindowIndex, ShouldEqual, 1)
			So(tl.IndexOfPeriod("p1"), ShouldEqual, 1)
			So(tl.IndexOfPeriod("nope"), ShouldEqual, IndexUnset)
		})

		Convey("Then an unknown period duration makes the window duration unknown", func() {
			live := lo.Must(Build(WindowSpec{ID: "live", Periods: []PeriodSpec{{UID: "l", DurationUs: constant.TimeUnset}}}))
			So(live.Window(0).DurationUs, ShouldEqual, constant.TimeUnset)
		})

		Convey("Then duplicate uids and empty windows are rejected", func() {
			_, err := Build(WindowSpec{Periods: []PeriodSpec{{UID: "a", DurationUs: 1}, {UID: "a", DurationUs: 1}}})
			So(err, ShouldNotBeNil)
			_, err = Build(WindowSpec{ID: "empty"})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestPeriodPosition(t *testing.T) {
	Convey("Given a window with two periods", t, func() {
		tl := twoWindows()

		Convey("When resolving a position inside the second period", func() {
			pos, err := tl.PeriodPosition(0, 1_500_000)

			Convey("Then it resolves against the second period", func() {
				So(err, ShouldBeNil)
				So(pos.MustGet(), ShouldResemble, Position{PeriodUID: "p1", PositionUs: 500_000})
			})
		})

		Convey("When resolving the default position", func() {
			pos, err := tl.PeriodPosition(1, constant.TimeUnset)

			Convey("Then the window's default is used", func() {
				So(err, ShouldBeNil)
				So(pos.MustGet(), ShouldResemble, Position{PeriodUID: "p2", PositionUs: 0})
			})
		})

		Convey("When the window index is out of range", func() {
			_, err := tl.PeriodPosition(2, 0)

			Convey("Then a bounds error is returned", func() {
				So(errors.Is(err, ErrWindowIndexOutOfBounds), ShouldBeTrue)
			})
		})

		Convey("When a dynamic window projects past its end", func() {
			dyn := lo.Must(Build(WindowSpec{ID: "d", Dynamic: true, DefaultPositionUs: 900_000, Periods: []PeriodSpec{{UID: "d0", DurationUs: 1_000_000}}}))
			pos, err := dyn.PeriodPositionProjected(0, constant.TimeUnset, 200_000)

			Convey("Then there is no default position", func() {
				So(err, ShouldBeNil)
				So(pos.IsAbsent(), ShouldBeTrue)
			})
		})
	})
}

func TestNavigation(t *testing.T) {
	Convey("Given three single-period windows", t, func() {
		tl := lo.Must(Build(
			WindowSpec{ID: "a", Periods: []PeriodSpec{{UID: "a", DurationUs: 1}}},
			WindowSpec{ID: "b", Periods: []PeriodSpec{{UID: "b", DurationUs: 1}}},
			WindowSpec{ID: "c", Periods: []PeriodSpec{{UID: "c", DurationUs: 1}}},
		))

		Convey("Repeat off stops after the last window", func() {
			So(tl.NextWindowIndex(1, RepeatOff, false), ShouldEqual, 2)
			So(tl.NextWindowIndex(2, RepeatOff, false), ShouldEqual, IndexUnset)
			So(tl.IsLastPeriod(2, RepeatOff, false), ShouldBeTrue)
		})

		Convey("Repeat one stays on the window", func() {
			So(tl.NextWindowIndex(1, RepeatOne, false), ShouldEqual, 1)
			So(tl.NextPeriodIndex(1, RepeatOne, false), ShouldEqual, 1)
		})

		Convey("Repeat all wraps around", func() {
			So(tl.NextWindowIndex(2, RepeatAll, false), ShouldEqual, 0)
			So(tl.PreviousWindowIndex(0, RepeatAll, false), ShouldEqual, 2)
		})

		Convey("Shuffle follows the shuffle order", func() {
			shuffled := lo.Must(tl.WithShuffleOrder([]int{2, 0, 1}))
			So(shuffled.FirstWindowIndex(true), ShouldEqual, 2)
			So(shuffled.NextWindowIndex(2, RepeatOff, true), ShouldEqual, 0)
			So(shuffled.NextWindowIndex(0, RepeatOff, true), ShouldEqual, 1)
			So(shuffled.NextWindowIndex(1, RepeatOff, true), ShouldEqual, IndexUnset)
			So(shuffled.NextWindowIndex(1, RepeatAll, true), ShouldEqual, 2)
			So(shuffled.PreviousWindowIndex(0, RepeatOff, true), ShouldEqual, 2)

			_, err := tl.WithShuffleOrder([]int{0, 0, 1})
			So(err, ShouldNotBeNil)
		})

		Convey("A random shuffle is a permutation", func() {
			shuffled := tl.WithRandomShuffle(7)
			seen := map[int]bool{}
			for w := shuffled.FirstWindowIndex(true); w != IndexUnset; w = shuffled.NextWindowIndex(w, RepeatOff, true) {
				seen[w] = true
			}
			So(len(seen), ShouldEqual, 3)
		})

		Convey("SubsequentPeriodUID skips periods removed from the new timeline", func() {
			trimmed := lo.Must(Build(
				WindowSpec{ID: "a", Periods: []PeriodSpec{{UID: "a", DurationUs: 1}}},
				WindowSpec{ID: "c", Periods: []PeriodSpec{{UID: "c", DurationUs: 1}}},
			))
			So(SubsequentPeriodUID("b", tl, trimmed, RepeatOff, false).MustGet(), ShouldEqual, "c")
			So(SubsequentPeriodUID("c", tl, trimmed, RepeatOff, false).IsAbsent(), ShouldBeTrue)
		})
	})
}

func TestAdPlaybackState(t *testing.T) {
	Convey("Given a preroll, a midroll and a postroll", t, func() {
		ads := NewAdPlaybackState(0, 5_000_000, constant.TimeEndOfSource).
			WithAdCount(0, 1).
			WithAdCount(1, 2).
			WithAdCount(2, 1).
			WithContentDurationUs(10_000_000)

		Convey("The group at or before a position is found", func() {
			So(ads.GroupIndexForPositionUs(0), ShouldEqual, 0)
			So(ads.GroupIndexForPositionUs(6_000_000), ShouldEqual, 1)
			So(ads.GroupIndexForPositionUs(10_000_000), ShouldEqual, 2)
		})

		Convey("The next group after a position is found", func() {
			So(ads.GroupIndexAfterPositionUs(0), ShouldEqual, 1)
			So(ads.GroupIndexAfterPositionUs(6_000_000), ShouldEqual, 2)
		})

		Convey("Played groups are no longer returned", func() {
			played := ads.WithPlayedAd(1, 0).WithPlayedAd(1, 1)
			So(played.Groups[1].HasUnplayedAds(), ShouldBeFalse)
			So(played.GroupIndexForPositionUs(6_000_000), ShouldEqual, IndexUnset)
			So(played.GroupIndexAfterPositionUs(0), ShouldEqual, 2)
			So(ads.Groups[1].HasUnplayedAds(), ShouldBeTrue)
		})

		Convey("Skipping a group skips every remaining ad", func() {
			skipped := ads.WithSkippedAdGroup(1)
			So(skipped.Groups[1].FirstAdIndexToPlay(), ShouldEqual, 2)
		})

		Convey("Groups of unknown size are treated as unplayed", func() {
			unknown := NewAdPlaybackState(0)
			So(unknown.Groups[0].HasUnplayedAds(), ShouldBeTrue)
		})
	})
}
