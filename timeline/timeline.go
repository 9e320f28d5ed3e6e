// Package timeline models the structure of the media being played.
//
// A Timeline is a sequence of windows, each a playable item, and each window spans a
// contiguous run of periods. Periods are identified by a uid rather than by index, since
// indices only hold for one Timeline instance. Timelines are immutable: a structural change
// produces a new *Timeline, so pointer comparison tells whether the structure changed.
package timeline

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/cadence-media/cadence/constant"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

// IndexUnset marks an index that does not exist or is not known.
const IndexUnset = -1

// RepeatMode controls navigation past the last window.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatOne
	RepeatAll
)

func (m RepeatMode) String() string {
	switch m {
	case RepeatOne:
		return "one"
	case RepeatAll:
		return "all"
	default:
		return "off"
	}
}

// ParseRepeatMode parses "off", "one" or "all".
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch s {
	case "off", "":
		return RepeatOff, nil
	case "one":
		return RepeatOne, nil
	case "all":
		return RepeatAll, nil
	default:
		return RepeatOff, fmt.Errorf("unknown repeat mode %q", s)
	}
}

// ErrWindowIndexOutOfBounds is returned when a window index does not exist in a timeline.
var ErrWindowIndexOutOfBounds = errors.New("window index out of bounds")

// Window is one playable item.
type Window struct {
	ID string
	// DurationUs is constant.TimeUnset when unknown.
	DurationUs int64
	// DefaultPositionUs is the position playback starts at by default, relative to the window start.
	DefaultPositionUs       int64
	PositionInFirstPeriodUs int64
	FirstPeriodIndex        int
	LastPeriodIndex         int
	Seekable                bool
	Dynamic                 bool
}

// Period is a contiguous timed segment of a window.
type Period struct {
	UID         string
	WindowIndex int
	// DurationUs is constant.TimeUnset when unknown.
	DurationUs         int64
	PositionInWindowUs int64
	Ads                AdPlaybackState
}

// AdGroupCount returns the number of ad groups of the period.
func (p Period) AdGroupCount() int { return p.Ads.GroupCount() }

// AdGroupTimeUs returns the content position of ad group g.
func (p Period) AdGroupTimeUs(g int) int64 { return p.Ads.GroupTimesUs[g] }

// AdGroupIndexForPositionUs returns the latest unplayed group at or before positionUs.
func (p Period) AdGroupIndexForPositionUs(positionUs int64) int {
	return p.Ads.GroupIndexForPositionUs(positionUs)
}

// AdGroupIndexAfterPositionUs returns the next unplayed group after positionUs.
func (p Period) AdGroupIndexAfterPositionUs(positionUs int64) int {
	return p.Ads.GroupIndexAfterPositionUs(positionUs)
}

// AdCountInAdGroup returns the number of ads in group g, or CountUnset.
func (p Period) AdCountInAdGroup(g int) int { return p.Ads.Groups[g].Count }

// FirstAdIndexToPlay returns the first ad of group g still to play.
func (p Period) FirstAdIndexToPlay(g int) int { return p.Ads.Groups[g].FirstAdIndexToPlay() }

// NextAdIndexToPlay returns the ad of group g to play after lastPlayed.
func (p Period) NextAdIndexToPlay(g, lastPlayed int) int {
	return p.Ads.Groups[g].NextAdIndexToPlay(lastPlayed)
}

// HasPlayedAdGroup reports whether no ad of group g is left to play.
func (p Period) HasPlayedAdGroup(g int) bool { return !p.Ads.Groups[g].HasUnplayedAds() }

// IsAdAvailable reports whether the ad can be played now.
func (p Period) IsAdAvailable(g, index int) bool {
	group := p.Ads.Groups[g]
	return group.Count != CountUnset && index < len(group.States) && group.States[index] != AdStateUnavailable
}

// AdDurationUs returns the duration of the ad, or constant.TimeUnset.
func (p Period) AdDurationUs(g, index int) int64 {
	group := p.Ads.Groups[g]
	if index < len(group.DurationsUs) {
		return group.DurationsUs[index]
	}
	return constant.TimeUnset
}

// Timeline is an immutable sequence of windows and their periods.
type Timeline struct {
	windows []Window
	periods []Period
	byUID   map[string]int
	// order lists window indices in shuffled play order; position is its inverse.
	order    []int
	position []int
}

// Empty is the timeline without windows.
var Empty = &Timeline{byUID: map[string]int{}}

// New validates windows and periods and returns the timeline they describe.
func New(windows []Window, periods []Period) (*Timeline, error) {
	byUID := make(map[string]int, len(periods))
	for i, p := range periods {
		if p.UID == "" {
			return nil, fmt.Errorf("period %d has no uid", i)
		}
		if _, dup := byUID[p.UID]; dup {
			return nil, fmt.Errorf("duplicate period uid %q", p.UID)
		}
		byUID[p.UID] = i
	}

	next := 0
	for i, w := range windows {
		if w.FirstPeriodIndex != next || w.LastPeriodIndex < w.FirstPeriodIndex || w.LastPeriodIndex >= len(periods) {
			return nil, fmt.Errorf("window %d spans periods [%d, %d], want a contiguous range from %d", i, w.FirstPeriodIndex, w.LastPeriodIndex, next)
		}
		for p := w.FirstPeriodIndex; p <= w.LastPeriodIndex; p++ {
			if periods[p].WindowIndex != i {
				return nil, fmt.Errorf("period %q belongs to window %d, not %d", periods[p].UID, periods[p].WindowIndex, i)
			}
		}
		next = w.LastPeriodIndex + 1
	}
	if next != len(periods) {
		return nil, fmt.Errorf("%d periods are not covered by any window", len(periods)-next)
	}

	identity := lo.Range(len(windows))
	return &Timeline{
		windows:  append([]Window(nil), windows...),
		periods:  append([]Period(nil), periods...),
		byUID:    byUID,
		order:    identity,
		position: append([]int(nil), identity...),
	}, nil
}

// WithShuffleOrder returns a copy of t that plays windows in the given order when shuffling.
func (t *Timeline) WithShuffleOrder(order []int) (*Timeline, error) {
	if len(order) != len(t.windows) {
		return nil, fmt.Errorf("shuffle order has %d entries for %d windows", len(order), len(t.windows))
	}
	position := make([]int, len(order))
	seen := make([]bool, len(order))
	for i, w := range order {
		if w < 0 || w >= len(order) || seen[w] {
			return nil, fmt.Errorf("shuffle order %v is not a permutation", order)
		}
		seen[w] = true
		position[w] = i
	}
	c := *t
	c.order = append([]int(nil), order...)
	c.position = position
	return &c, nil
}

// WithRandomShuffle returns a copy of t with a shuffle order drawn from seed.
func (t *Timeline) WithRandomShuffle(seed int64) *Timeline {
	order := rand.New(rand.NewSource(seed)).Perm(len(t.windows))
	return lo.Must(t.WithShuffleOrder(order))
}

// WithPeriodAds returns a copy of t where the ads of the period uid are replaced.
func (t *Timeline) WithPeriodAds(uid string, ads AdPlaybackState) (*Timeline, error) {
	index, ok := t.byUID[uid]
	if !ok {
		return nil, fmt.Errorf("unknown period %q", uid)
	}
	c := *t
	c.periods = append([]Period(nil), t.periods...)
	c.periods[index].Ads = ads
	return &c, nil
}

func (t *Timeline) IsEmpty() bool    { return len(t.windows) == 0 }
func (t *Timeline) WindowCount() int { return len(t.windows) }
func (t *Timeline) PeriodCount() int { return len(t.periods) }

// Window returns the window at index without default position projection.
func (t *Timeline) Window(index int) Window {
	return t.windows[index]
}

// WindowProjected returns the window at index with its default position moved forward
// by projectionUs when the window is dynamic. The projected default position is unset
// when it would leave the window.
func (t *Timeline) WindowProjected(index int, projectionUs int64) Window {
	w := t.windows[index]
	if !w.Dynamic || projectionUs <= 0 || w.DefaultPositionUs == constant.TimeUnset {
		return w
	}
	if w.DurationUs == constant.TimeUnset {
		w.DefaultPositionUs = constant.TimeUnset
		return w
	}
	w.DefaultPositionUs += projectionUs
	if w.DefaultPositionUs > w.DurationUs {
		w.DefaultPositionUs = constant.TimeUnset
	}
	return w
}

// Period returns the period at index.
func (t *Timeline) Period(index int) Period {
	return t.periods[index]
}

// PeriodByUID returns the period with uid.
func (t *Timeline) PeriodByUID(uid string) (Period, bool) {
	index, ok := t.byUID[uid]
	if !ok {
		return Period{}, false
	}
	return t.periods[index], true
}

// IndexOfPeriod returns the index of the period with uid, or IndexUnset.
func (t *Timeline) IndexOfPeriod(uid string) int {
	if index, ok := t.byUID[uid]; ok {
		return index
	}
	return IndexUnset
}

// UIDOfPeriod returns the uid of the period at index.
func (t *Timeline) UIDOfPeriod(index int) string {
	return t.periods[index].UID
}

// FirstWindowIndex returns the first window in play order, or IndexUnset.
func (t *Timeline) FirstWindowIndex(shuffle bool) int {
	if t.IsEmpty() {
		return IndexUnset
	}
	if shuffle {
		return t.order[0]
	}
	return 0
}

// LastWindowIndex returns the last window in play order, or IndexUnset.
func (t *Timeline) LastWindowIndex(shuffle bool) int {
	if t.IsEmpty() {
		return IndexUnset
	}
	if shuffle {
		return t.order[len(t.order)-1]
	}
	return len(t.windows) - 1
}

// NextWindowIndex returns the window played after windowIndex, or IndexUnset.
func (t *Timeline) NextWindowIndex(windowIndex int, repeat RepeatMode, shuffle bool) int {
	switch repeat {
	case RepeatOne:
		return windowIndex
	case RepeatAll:
		if windowIndex == t.LastWindowIndex(shuffle) {
			return t.FirstWindowIndex(shuffle)
		}
	default:
		if windowIndex == t.LastWindowIndex(shuffle) {
			return IndexUnset
		}
	}
	if shuffle {
		return t.order[t.position[windowIndex]+1]
	}
	return windowIndex + 1
}

// PreviousWindowIndex returns the window played before windowIndex, or IndexUnset.
func (t *Timeline) PreviousWindowIndex(windowIndex int, repeat RepeatMode, shuffle bool) int {
	switch repeat {
	case RepeatOne:
		return windowIndex
	case RepeatAll:
		if windowIndex == t.FirstWindowIndex(shuffle) {
			return t.LastWindowIndex(shuffle)
		}
	default:
		if windowIndex == t.FirstWindowIndex(shuffle) {
			return IndexUnset
		}
	}
	if shuffle {
		return t.order[t.position[windowIndex]-1]
	}
	return windowIndex - 1
}

// NextPeriodIndex returns the period played after periodIndex, or IndexUnset.
func (t *Timeline) NextPeriodIndex(periodIndex int, repeat RepeatMode, shuffle bool) int {
	windowIndex := t.periods[periodIndex].WindowIndex
	if t.windows[windowIndex].LastPeriodIndex != periodIndex {
		return periodIndex + 1
	}
	next := t.NextWindowIndex(windowIndex, repeat, shuffle)
	if next == IndexUnset {
		return IndexUnset
	}
	return t.windows[next].FirstPeriodIndex
}

// IsLastPeriod reports whether nothing plays after periodIndex.
func (t *Timeline) IsLastPeriod(periodIndex int, repeat RepeatMode, shuffle bool) bool {
	return t.NextPeriodIndex(periodIndex, repeat, shuffle) == IndexUnset
}

// Position is a position within a period.
type Position struct {
	PeriodUID  string
	PositionUs int64
}

// PeriodPosition converts a window position to a period position. An unset windowPositionUs
// selects the window's default position. The result is empty when the default position is unknown.
func (t *Timeline) PeriodPosition(windowIndex int, windowPositionUs int64) (mo.Option[Position], error) {
	return t.PeriodPositionProjected(windowIndex, windowPositionUs, 0)
}

// PeriodPositionProjected is PeriodPosition with the default position of dynamic windows
// projected forward by projectionUs.
func (t *Timeline) PeriodPositionProjected(windowIndex int, windowPositionUs, projectionUs int64) (mo.Option[Position], error) {
	if windowIndex < 0 || windowIndex >= len(t.windows) {
		return mo.None[Position](), fmt.Errorf("%w: %d of %d", ErrWindowIndexOutOfBounds, windowIndex, len(t.windows))
	}

	w := t.WindowProjected(windowIndex, projectionUs)
	if windowPositionUs == constant.TimeUnset {
		windowPositionUs = w.DefaultPositionUs
		if windowPositionUs == constant.TimeUnset {
			return mo.None[Position](), nil
		}
	}

	periodIndex := w.FirstPeriodIndex
	positionUs := w.PositionInFirstPeriodUs + windowPositionUs
	durationUs := t.periods[periodIndex].DurationUs
	for durationUs != constant.TimeUnset && positionUs >= durationUs && periodIndex < w.LastPeriodIndex {
		positionUs -= durationUs
		periodIndex++
		durationUs = t.periods[periodIndex].DurationUs
	}

	return mo.Some(Position{PeriodUID: t.periods[periodIndex].UID, PositionUs: positionUs}), nil
}

// SubsequentPeriodUID finds the first period played after oldUID in old that still exists in
// current. It is used to continue playback when the period being played disappears.
func SubsequentPeriodUID(oldUID string, old, current *Timeline, repeat RepeatMode, shuffle bool) mo.Option[string] {
	index := old.IndexOfPeriod(oldUID)
	if index == IndexUnset {
		return mo.None[string]()
	}
	for i := 0; i < old.PeriodCount(); i++ {
		index = old.NextPeriodIndex(index, repeat, shuffle)
		if index == IndexUnset {
			break
		}
		if uid := old.UIDOfPeriod(index); current.IndexOfPeriod(uid) != IndexUnset {
			return mo.Some(uid)
		}
	}
	return mo.None[string]()
}
