package timeline

import "github.com/cadence-media/cadence/constant"

// WindowSpec describes a window for Build.
type WindowSpec struct {
	ID       string
	Seekable bool
	Dynamic  bool
	// DefaultPositionUs defaults to zero.
	DefaultPositionUs int64
	// DurationUs overrides the sum of the period durations, for example for a live window.
	DurationUs int64
	Periods    []PeriodSpec
}

// PeriodSpec describes a period for Build. A zero Ads value means no ads.
type PeriodSpec struct {
	UID        string
	DurationUs int64
	Ads        AdPlaybackState
}

// Build lays out windows back to back, computing period indices and positions.
// A window's duration is the sum of its period durations unless set explicitly, and is
// unset if any period duration is.
func Build(specs ...WindowSpec) (*Timeline, error) {
	var (
		windows []Window
		periods []Period
	)
	for wi, spec := range specs {
		first := len(periods)
		var offsetUs int64
		for _, ps := range spec.Periods {
			ads := ps.Ads
			if ads.GroupTimesUs == nil && ads.ContentDurationUs == 0 {
				ads = NoAds
			}
			periods = append(periods, Period{
				UID:                ps.UID,
				WindowIndex:        wi,
				DurationUs:         ps.DurationUs,
				PositionInWindowUs: offsetUs,
				Ads:                ads,
			})
			if offsetUs != constant.TimeUnset && ps.DurationUs != constant.TimeUnset {
				offsetUs += ps.DurationUs
			} else {
				offsetUs = constant.TimeUnset
			}
		}

		durationUs := spec.DurationUs
		if durationUs == 0 {
			durationUs = offsetUs
		}
		windows = append(windows, Window{
			ID:                spec.ID,
			DurationUs:        durationUs,
			DefaultPositionUs: spec.DefaultPositionUs,
			FirstPeriodIndex:  first,
			LastPeriodIndex:   len(periods) - 1,
			Seekable:          spec.Seekable,
			Dynamic:           spec.Dynamic,
		})
	}
	return New(windows, periods)
}
