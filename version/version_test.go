package version

import (
	"testing"

	"github.com/cadence-media/cadence/constant"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCompare(t *testing.T) {
	Convey("Given two versions", t, func() {
		Convey("When the first is newer", func() {
			cmp, err := Compare("v1.2.0", "1.1.9")

			Convey("Then the result is 1", func() {
				So(err, ShouldBeNil)
				So(cmp, ShouldEqual, 1)
			})
		})

		Convey("When they only differ by a missing patch", func() {
			cmp, err := Compare("0.3", "0.3.0")

			Convey("Then they are equal", func() {
				So(err, ShouldBeNil)
				So(cmp, ShouldEqual, 0)
			})
		})

		Convey("When one is malformed", func() {
			_, err := Compare("latest", "0.1.0")

			Convey("Then an error is returned", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When checking a minimum", func() {
			ok, err := AtLeast("0.3.0", "0.4.0")

			Convey("Then an older version does not satisfy it", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func TestRegistry(t *testing.T) {
	Convey("Given an empty registry", t, func() {
		r := NewRegistry()

		Convey("When modules are registered twice", func() {
			So(r.Register("cadence.engine"), ShouldBeTrue)
			So(r.Register("cadence.synthetic"), ShouldBeTrue)
			So(r.Register("cadence.engine"), ShouldBeFalse)

			Convey("Then each module is listed once in order", func() {
				So(r.Modules(), ShouldResemble, []string{"cadence.engine", "cadence.synthetic"})
				So(r.String(), ShouldEqual, constant.App+"/"+constant.Version+" (cadence.engine, cadence.synthetic)")
			})
		})

		Convey("Then the bare version is printed", func() {
			So(r.String(), ShouldEqual, constant.App+"/"+constant.Version)
		})
	})
}
