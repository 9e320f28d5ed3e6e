package synthetic

import (
	"fmt"
	"sync"

	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/log"
	"github.com/cadence-media/cadence/source"
	"github.com/cadence-media/cadence/timeline"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Source is a MediaSource over a fixed timeline. Refresh and MarkAdPlayed publish new timelines.
type Source struct {
	opts Options
	log  *logrus.Entry

	mu       sync.Mutex
	tl       *timeline.Timeline
	manifest any
	listener source.SourceInfoRefreshListener
	periods  []*Period
	created  int
}

// NewSource returns a source publishing tl once prepared.
func NewSource(tl *timeline.Timeline, opts Options) *Source {
	return &Source{
		opts: opts.withDefaults(),
		log:  log.For("synthetic"),
		tl:   tl,
	}
}

// Timeline returns the latest timeline.
func (s *Source) Timeline() *timeline.Timeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tl
}

// Meter returns the bandwidth meter fed by the periods of the source.
func (s *Source) Meter() *Meter {
	return s.opts.Meter
}

func (s *Source) PrepareSource(listener source.SourceInfoRefreshListener) {
	s.mu.Lock()
	s.listener = listener
	tl, manifest := s.tl, s.manifest
	s.mu.Unlock()

	s.log.WithField("windows", tl.WindowCount()).Debug("source prepared")
	listener.OnSourceInfoRefreshed(s, tl, manifest)
}

func (s *Source) MaybeThrowSourceInfoRefreshError() error {
	return s.opts.RefreshError
}

func (s *Source) CreatePeriod(id source.MediaPeriodID, allocator source.Allocator) (source.MediaPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	period, ok := s.tl.PeriodByUID(id.PeriodUID)
	if !ok {
		return nil, fmt.Errorf("no period %q in timeline", id.PeriodUID)
	}
	durationUs := period.DurationUs
	switch {
	case id.IsAd():
		durationUs = period.AdDurationUs(id.AdGroupIndex, id.AdIndexInAdGroup)
	case id.EndPositionUs != constant.TimeUnset && id.EndPositionUs != constant.TimeEndOfSource:
		durationUs = id.EndPositionUs
	}

	p := newPeriod(id, durationUs, s.opts, allocator)
	s.periods = append(s.periods, p)
	s.created++
	return p, nil
}

func (s *Source) ReleasePeriod(mp source.MediaPeriod) {
	p, ok := mp.(*Period)
	if !ok {
		return
	}
	s.mu.Lock()
	s.periods = lo.Without(s.periods, p)
	s.mu.Unlock()
	p.release()
}

func (s *Source) ReleaseSource(source.SourceInfoRefreshListener) {
	s.mu.Lock()
	s.listener = nil
	s.mu.Unlock()
	s.log.Debug("source released")
}

// Refresh replaces the timeline, for example as a live window moves on.
func (s *Source) Refresh(tl *timeline.Timeline, manifest any) {
	s.mu.Lock()
	s.tl = tl
	s.manifest = manifest
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		listener.OnSourceInfoRefreshed(s, tl, manifest)
	}
}

// MarkAdPlayed records that an ad finished playing so it is not played again.
func (s *Source) MarkAdPlayed(periodUID string, adGroupIndex, adIndexInAdGroup int) error {
	s.mu.Lock()
	period, ok := s.tl.PeriodByUID(periodUID)
	if !ok || adGroupIndex < 0 || adGroupIndex >= period.AdGroupCount() {
		s.mu.Unlock()
		return fmt.Errorf("no ad group %d in period %q", adGroupIndex, periodUID)
	}
	tl, err := s.tl.WithPeriodAds(periodUID, period.Ads.WithPlayedAd(adGroupIndex, adIndexInAdGroup))
	manifest := s.manifest
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.Refresh(tl, manifest)
	return nil
}

// ActivePeriods returns the number of created periods not released yet.
func (s *Source) ActivePeriods() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.periods)
}

// CreatedPeriods returns the number of periods created so far.
func (s *Source) CreatedPeriods() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created
}
