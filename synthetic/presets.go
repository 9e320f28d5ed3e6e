package synthetic

import (
	"fmt"
	"sort"

	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/timeline"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const second = int64(1_000_000)

var presets = map[string]func() (*timeline.Timeline, error){
	"single": func() (*timeline.Timeline, error) {
		return timeline.Build(window("single", 30*second))
	},
	"playlist": func() (*timeline.Timeline, error) {
		return timeline.Build(
			window("first", 10*second),
			window("second", 15*second),
			window("third", 20*second),
		)
	},
	"ads": func() (*timeline.Timeline, error) {
		ads := timeline.NewAdPlaybackState(0, 30*second, constant.TimeEndOfSource).
			WithAdCount(0, 1).
			WithAdCount(1, 2).
			WithAdCount(2, 1).
			WithAdDurationsUs([][]int64{{5 * second}, {5 * second, 5 * second}, {5 * second}}).
			WithContentDurationUs(60 * second)
		w := window("ads", 60*second)
		w.Periods[0].Ads = ads
		return timeline.Build(w)
	},
	"live": func() (*timeline.Timeline, error) {
		w := window("live", constant.TimeUnset)
		w.Dynamic = true
		w.DurationUs = constant.TimeUnset
		return timeline.Build(w)
	},
}

func window(id string, durationUs int64) timeline.WindowSpec {
	return timeline.WindowSpec{
		ID:       id,
		Seekable: true,
		Periods:  []timeline.PeriodSpec{{UID: id + "-" + uuid.NewString(), DurationUs: durationUs}},
	}
}

// Presets returns the names of the built-in timelines.
func Presets() []string {
	names := lo.Keys(presets)
	sort.Strings(names)
	return names
}

// Preset builds the named timeline. Period uids are fresh on every call.
func Preset(name string) (*timeline.Timeline, error) {
	build, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q", name)
	}
	return build()
}

// IsPreset reports whether name is a built-in timeline.
func IsPreset(name string) bool {
	_, ok := presets[name]
	return ok
}
