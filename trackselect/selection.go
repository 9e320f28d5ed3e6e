package trackselect

import (
	"github.com/cadence-media/cadence/source"
	"github.com/samber/lo"
	"golang.org/x/exp/slices"
)

// Selection selects one or more tracks of a group and switches between them by bitrate.
type Selection struct {
	group    source.TrackGroup
	indices  []int
	selected int
	meter    BandwidthMeter
	// maxBitrate caps the bitrate when the meter has no estimate; zero means no cap.
	maxBitrate int
	speed      float64
}

// NewSelection returns a selection of indices of group, ordered by descending bitrate.
func NewSelection(group source.TrackGroup, indices []int, meter BandwidthMeter, maxBitrate int) *Selection {
	sorted := append([]int(nil), indices...)
	slices.SortStableFunc(sorted, func(a, b int) int {
		return group.Formats[b].Bitrate - group.Formats[a].Bitrate
	})
	s := &Selection{group: group, indices: sorted, meter: meter, maxBitrate: maxBitrate, speed: 1}
	s.selected = s.determineSelected()
	return s
}

func (s *Selection) Group() source.TrackGroup      { return s.group }
func (s *Selection) Indices() []int                { return s.indices }
func (s *Selection) SelectedIndex() int            { return s.indices[s.selected] }
func (s *Selection) SelectedFormat() source.Format { return s.group.Formats[s.SelectedIndex()] }

// OnPlaybackSpeed reselects for speed: playing faster needs proportionally more bandwidth.
func (s *Selection) OnPlaybackSpeed(speed float64) {
	s.speed = speed
	s.selected = s.determineSelected()
}

func (s *Selection) determineSelected() int {
	budget := int64(s.maxBitrate)
	if s.meter != nil {
		if estimate := s.meter.BitrateEstimate(); estimate > 0 {
			budget = estimate
		}
	}
	if budget <= 0 {
		return 0
	}
	_, i, ok := lo.FindIndexOf(s.indices, func(track int) bool {
		return float64(s.group.Formats[track].Bitrate)*s.speed <= float64(budget)
	})
	if !ok {
		return len(s.indices) - 1
	}
	return i
}
