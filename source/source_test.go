package source

import (
	"testing"

	"github.com/cadence-media/cadence/constant"
	. "github.com/smartystreets/goconvey/convey"
)

type fixedSelection struct {
	group   TrackGroup
	indices []int
}

func (s fixedSelection) Group() TrackGroup       { return s.group }
func (s fixedSelection) Indices() []int          { return s.indices }
func (s fixedSelection) SelectedFormat() Format  { return s.group.Formats[s.indices[0]] }
func (s fixedSelection) OnPlaybackSpeed(float64) {}

func TestMediaPeriodID(t *testing.T) {
	Convey("Given content and ad ids", t, func() {
		content := NewContentID("p0", 3, 5_000_000)
		ad := NewAdID("p0", 1, 0, 3)

		Convey("Then only the ad id is an ad", func() {
			So(content.IsAd(), ShouldBeFalse)
			So(ad.IsAd(), ShouldBeTrue)
		})

		Convey("Then equality covers every field", func() {
			So(content == NewContentID("p0", 3, 5_000_000), ShouldBeTrue)
			So(content == NewContentID("p0", 4, 5_000_000), ShouldBeFalse)
			So(content == NewContentID("p0", 3, constant.TimeUnset), ShouldBeFalse)
		})

		Convey("Then moving to another period keeps the rest", func() {
			moved := ad.WithPeriodUID("p1")
			So(moved.PeriodUID, ShouldEqual, "p1")
			So(moved.AdGroupIndex, ShouldEqual, 1)
			So(ad.PeriodUID, ShouldEqual, "p0")
		})
	})
}

func TestFormats(t *testing.T) {
	Convey("Given a selection of two tracks", t, func() {
		group := TrackGroup{Formats: []Format{
			{ID: "lo", TrackType: constant.TrackTypeVideo, Bitrate: 500_000},
			{ID: "mid", TrackType: constant.TrackTypeVideo, Bitrate: 1_000_000},
			{ID: "hi", TrackType: constant.TrackTypeVideo, Bitrate: 2_000_000},
		}}
		selection := fixedSelection{group: group, indices: []int{0, 2}}

		Convey("Then Formats lists the selected tracks", func() {
			formats := Formats(selection)
			So(len(formats), ShouldEqual, 2)
			So(formats[1].ID, ShouldEqual, "hi")
			So(Formats(nil), ShouldBeNil)
			So(group.TrackType(), ShouldEqual, constant.TrackTypeVideo)
			So(group.IndexOf("mid"), ShouldEqual, 1)
		})
	})
}

func TestEmptySampleStream(t *testing.T) {
	Convey("Given an empty sample stream", t, func() {
		var stream SampleStream = EmptySampleStream{}
		buffer := &Buffer{}

		Convey("Then it reads straight to the end of stream", func() {
			So(stream.IsReady(), ShouldBeTrue)
			So(stream.ReadData(&FormatHolder{}, buffer, false), ShouldEqual, BufferRead)
			So(buffer.IsEndOfStream(), ShouldBeTrue)
		})
	})
}
