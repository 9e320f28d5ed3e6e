package timeline

import "github.com/cadence-media/cadence/constant"

// AdState is the playback state of a single ad within a group.
type AdState int

const (
	AdStateUnavailable AdState = iota
	AdStateAvailable
	AdStateSkipped
	AdStatePlayed
	AdStateError
)

// CountUnset marks an ad group whose ad count is not known yet.
const CountUnset = -1

// AdGroup is an immutable group of ads played at the same content position.
type AdGroup struct {
	Count       int
	States      []AdState
	DurationsUs []int64
}

// NewAdGroup returns a group of count available ads with unknown durations.
func NewAdGroup(count int) AdGroup {
	g := AdGroup{Count: CountUnset}
	return g.WithCount(count)
}

// FirstAdIndexToPlay returns the index of the first ad that has not been played, skipped or failed.
// The result equals Count when there is none.
func (g AdGroup) FirstAdIndexToPlay() int {
	return g.NextAdIndexToPlay(-1)
}

// NextAdIndexToPlay returns the index of the next ad to play after lastPlayedAdIndex.
func (g AdGroup) NextAdIndexToPlay(lastPlayedAdIndex int) int {
	next := lastPlayedAdIndex + 1
	for next < len(g.States) && g.States[next] != AdStateUnavailable && g.States[next] != AdStateAvailable {
		next++
	}
	return next
}

// HasUnplayedAds reports whether any ad of the group may still play.
func (g AdGroup) HasUnplayedAds() bool {
	return g.Count == CountUnset || g.FirstAdIndexToPlay() < g.Count
}

// WithCount returns a copy with the ad count set. States default to available.
func (g AdGroup) WithCount(count int) AdGroup {
	states := make([]AdState, count)
	durations := make([]int64, count)
	for i := range states {
		states[i] = AdStateAvailable
		durations[i] = constant.TimeUnset
	}
	copy(states, g.States)
	copy(durations, g.DurationsUs)
	return AdGroup{Count: count, States: states, DurationsUs: durations}
}

// WithAdState returns a copy with the state of ad index replaced.
func (g AdGroup) WithAdState(state AdState, index int) AdGroup {
	if g.Count == CountUnset || index < 0 || index >= g.Count {
		return g
	}
	states := append([]AdState(nil), g.States...)
	states[index] = state
	return AdGroup{Count: g.Count, States: states, DurationsUs: g.DurationsUs}
}

// WithDurationsUs returns a copy with the ad durations replaced.
func (g AdGroup) WithDurationsUs(durationsUs []int64) AdGroup {
	return AdGroup{Count: g.Count, States: g.States, DurationsUs: append([]int64(nil), durationsUs...)}
}

// WithAllAdsSkipped returns a copy where every ad that could still play is skipped.
func (g AdGroup) WithAllAdsSkipped() AdGroup {
	if g.Count == CountUnset {
		return AdGroup{Count: 0}
	}
	states := append([]AdState(nil), g.States...)
	for i := range states {
		if states[i] == AdStateAvailable || states[i] == AdStateUnavailable {
			states[i] = AdStateSkipped
		}
	}
	return AdGroup{Count: g.Count, States: states, DurationsUs: g.DurationsUs}
}

// AdPlaybackState describes the ad groups of a period. It is immutable; the With*
// methods return modified copies.
type AdPlaybackState struct {
	// GroupTimesUs holds the content position of each group. A postroll is marked with constant.TimeEndOfSource.
	GroupTimesUs      []int64
	Groups            []AdGroup
	ResumePositionUs  int64
	ContentDurationUs int64
}

// NoAds is the state of a period without ad insertion.
var NoAds = AdPlaybackState{ContentDurationUs: constant.TimeUnset}

// NewAdPlaybackState returns a state with one group of unknown size per position.
func NewAdPlaybackState(groupTimesUs ...int64) AdPlaybackState {
	groups := make([]AdGroup, len(groupTimesUs))
	for i := range groups {
		groups[i] = AdGroup{Count: CountUnset}
	}
	return AdPlaybackState{
		GroupTimesUs:      append([]int64(nil), groupTimesUs...),
		Groups:            groups,
		ContentDurationUs: constant.TimeUnset,
	}
}

// GroupCount returns the number of ad groups.
func (s AdPlaybackState) GroupCount() int {
	return len(s.GroupTimesUs)
}

// GroupIndexForPositionUs returns the index of the latest group at or before positionUs
// that still has ads to play, or IndexUnset.
func (s AdPlaybackState) GroupIndexForPositionUs(positionUs int64) int {
	index := len(s.GroupTimesUs) - 1
	for index >= 0 && s.isPositionBeforeGroup(positionUs, index) {
		index--
	}
	if index >= 0 && s.Groups[index].HasUnplayedAds() {
		return index
	}
	return IndexUnset
}

// GroupIndexAfterPositionUs returns the index of the next group after positionUs that
// still has ads to play, or IndexUnset.
func (s AdPlaybackState) GroupIndexAfterPositionUs(positionUs int64) int {
	index := 0
	for index < len(s.GroupTimesUs) && s.GroupTimesUs[index] != constant.TimeEndOfSource &&
		(positionUs >= s.GroupTimesUs[index] || !s.Groups[index].HasUnplayedAds()) {
		index++
	}
	if index < len(s.GroupTimesUs) {
		return index
	}
	return IndexUnset
}

func (s AdPlaybackState) isPositionBeforeGroup(positionUs int64, index int) bool {
	groupPositionUs := s.GroupTimesUs[index]
	if groupPositionUs == constant.TimeEndOfSource {
		return s.ContentDurationUs == constant.TimeUnset || positionUs < s.ContentDurationUs
	}
	return positionUs < groupPositionUs
}

func (s AdPlaybackState) withGroup(index int, g AdGroup) AdPlaybackState {
	groups := append([]AdGroup(nil), s.Groups...)
	groups[index] = g
	s.Groups = groups
	return s
}

// WithAdCount returns a copy where group has count ads.
func (s AdPlaybackState) WithAdCount(group, count int) AdPlaybackState {
	return s.withGroup(group, s.Groups[group].WithCount(count))
}

// WithPlayedAd returns a copy where the ad is marked played.
func (s AdPlaybackState) WithPlayedAd(group, index int) AdPlaybackState {
	return s.withGroup(group, s.Groups[group].WithAdState(AdStatePlayed, index))
}

// WithSkippedAd returns a copy where the ad is marked skipped.
func (s AdPlaybackState) WithSkippedAd(group, index int) AdPlaybackState {
	return s.withGroup(group, s.Groups[group].WithAdState(AdStateSkipped, index))
}

// WithAdLoadError returns a copy where the ad is marked as failed to load.
func (s AdPlaybackState) WithAdLoadError(group, index int) AdPlaybackState {
	return s.withGroup(group, s.Groups[group].WithAdState(AdStateError, index))
}

// WithSkippedAdGroup returns a copy where every remaining ad of the group is skipped.
func (s AdPlaybackState) WithSkippedAdGroup(group int) AdPlaybackState {
	return s.withGroup(group, s.Groups[group].WithAllAdsSkipped())
}

// WithAdDurationsUs returns a copy with per-group ad durations.
func (s AdPlaybackState) WithAdDurationsUs(durationsUs [][]int64) AdPlaybackState {
	groups := append([]AdGroup(nil), s.Groups...)
	for i := range groups {
		if i < len(durationsUs) {
			groups[i] = groups[i].WithDurationsUs(durationsUs[i])
		}
	}
	s.Groups = groups
	return s
}

// WithResumePositionUs returns a copy with the position to resume content at after an ad.
func (s AdPlaybackState) WithResumePositionUs(positionUs int64) AdPlaybackState {
	s.ResumePositionUs = positionUs
	return s
}

// WithContentDurationUs returns a copy with the content duration set.
func (s AdPlaybackState) WithContentDurationUs(durationUs int64) AdPlaybackState {
	s.ContentDurationUs = durationUs
	return s
}
