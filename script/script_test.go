package script

import (
	"path/filepath"
	"testing"

	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/filesystem"
	"github.com/cadence-media/cadence/key"
	"github.com/cadence-media/cadence/timeline"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
)

func init() {
	filesystem.SetMemMapFs()
}

func write(name, contents string) string {
	path := filepath.Join("/scripts", name+Extension)
	So(filesystem.API().WriteFile(path, []byte(contents), 0o644), ShouldBeNil)
	return path
}

func TestLoad(t *testing.T) {
	Convey("Given a script describing two windows", t, func() {
		path := write("double", `
function Timeline()
  return {
    { id = "a", periods = { { duration_ms = 10000 }, { duration_ms = 5000 } } },
    { duration_ms = 2000, seekable = false },
  }
end`)

		Convey("When it is loaded", func() {
			tl, err := Load(path)
			So(err, ShouldBeNil)

			Convey("Then the windows are laid out", func() {
				So(tl.WindowCount(), ShouldEqual, 2)
				So(tl.PeriodCount(), ShouldEqual, 3)
				So(tl.Window(0).ID, ShouldEqual, "a")
				So(tl.Window(0).DurationUs, ShouldEqual, 15_000_000)
				So(tl.Window(1).ID, ShouldEqual, "double-2")
				So(tl.Window(1).Seekable, ShouldBeFalse)
				So(tl.Period(1).PositionInWindowUs, ShouldEqual, 10_000_000)
			})
		})
	})

	Convey("Given the template", t, func() {
		path := write("fresh", Template("fresh"))

		Convey("When it is loaded", func() {
			tl, err := Load(path)
			So(err, ShouldBeNil)

			Convey("Then it has a preroll and a postroll", func() {
				period := tl.Period(0)
				So(period.Ads.GroupCount(), ShouldEqual, 2)
				So(period.Ads.GroupTimesUs[0], ShouldEqual, 0)
				So(period.Ads.GroupTimesUs[1], ShouldEqual, constant.TimeEndOfSource)
				So(period.Ads.Groups[0].Count, ShouldEqual, 1)
				So(period.Ads.Groups[0].DurationsUs[0], ShouldEqual, 5_000_000)
			})
		})
	})

	Convey("Given a script for a newer version", t, func() {
		path := write("future", `MinVersion = "999.0.0"
function Timeline() return { { duration_ms = 1000 } } end`)

		Convey("Then loading fails", func() {
			_, err := Load(path)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "requires version 999.0.0")
		})
	})

	Convey("Given scripts that are broken", t, func() {
		Convey("When Timeline is missing", func() {
			_, err := Load(write("missing", `x = 1`))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "function Timeline is required")
		})

		Convey("When Timeline returns no windows", func() {
			_, err := Load(write("empty", `function Timeline() return {} end`))
			So(err, ShouldNotBeNil)
		})

		Convey("When ad groups are out of order", func() {
			_, err := Load(write("unordered", `function Timeline()
  return { { periods = { { duration_ms = 10000, ads = { { time_ms = 5000 }, { time_ms = 1000 } } } } } }
end`))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "ordered")
		})

		Convey("When the syntax is invalid", func() {
			_, err := Load(write("syntax", `function Timeline(`))
			So(err, ShouldNotBeNil)
		})

		Convey("When Timeline raises an error", func() {
			_, err := Load(write("raise", `function Timeline() error("nope") end`))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "nope")
		})
	})
}

func TestCache(t *testing.T) {
	Convey("Given bytecode caching", t, func() {
		viper.Set(key.ScriptsCacheBytecode, true)
		PurgeCache()

		Convey("When the same contents compile twice", func() {
			src := []byte(`function Timeline() return { { duration_ms = 1000 } } end`)
			first, err := compile("/cached.lua", src)
			So(err, ShouldBeNil)
			second, err := compile("/cached.lua", src)
			So(err, ShouldBeNil)

			Convey("Then the prototype is reused", func() {
				So(second, ShouldPointTo, first)
			})
		})

		Convey("When the contents change", func() {
			first, _ := compile("/edited.lua", []byte(`x = 1`))
			second, _ := compile("/edited.lua", []byte(`x = 2`))

			Convey("Then it compiles again", func() {
				So(second, ShouldNotPointTo, first)
			})
		})

		Convey("When caching is disabled", func() {
			viper.Set(key.ScriptsCacheBytecode, false)
			defer viper.Set(key.ScriptsCacheBytecode, true)
			src := []byte(`x = 1`)
			first, _ := compile("/uncached.lua", src)
			second, _ := compile("/uncached.lua", src)

			Convey("Then nothing is reused", func() {
				So(second, ShouldNotPointTo, first)
			})
		})
	})
}

func TestLive(t *testing.T) {
	Convey("Given a live window", t, func() {
		tl, err := Run("live", "/live.lua", []byte(`function Timeline()
  return { { id = "live", dynamic = true, periods = { {} } } }
end`))
		So(err, ShouldBeNil)

		Convey("Then its duration is unknown", func() {
			So(tl.Window(0).Dynamic, ShouldBeTrue)
			So(tl.Window(0).DurationUs, ShouldEqual, constant.TimeUnset)
			So(tl.Period(0).DurationUs, ShouldEqual, constant.TimeUnset)
			So(tl.Period(0).Ads, ShouldResemble, timeline.NoAds)
		})
	})
}
