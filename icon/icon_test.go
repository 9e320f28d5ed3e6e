package icon

import (
	"testing"

	"github.com/cadence-media/cadence/key"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
)

func TestGet(t *testing.T) {
	Convey("Given every registered icon", t, func() {
		Convey("It renders for each variant", func() {
			for _, variant := range AvailableVariants() {
				viper.Set(key.IconsVariant, variant)
				for i := range icons {
					So(Get(i), ShouldNotBeEmpty)
				}
			}
		})

		Convey("It returns empty for an unknown variant", func() {
			viper.Set(key.IconsVariant, "")
			So(Get(Play), ShouldBeEmpty)
		})

		Reset(func() { viper.Set(key.IconsVariant, plain) })
	})
}

func TestForState(t *testing.T) {
	Convey("Given playback states", t, func() {
		Convey("READY depends on play when ready", func() {
			So(ForState("READY", true), ShouldEqual, Play)
			So(ForState("READY", false), ShouldEqual, Pause)
		})

		Convey("Other states map directly", func() {
			So(ForState("BUFFERING", true), ShouldEqual, Buffering)
			So(ForState("ENDED", false), ShouldEqual, Ended)
			So(ForState("IDLE", false), ShouldEqual, Idle)
		})
	})
}
