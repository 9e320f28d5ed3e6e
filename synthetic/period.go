package synthetic

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/loader"
	"github.com/cadence-media/cadence/log"
	"github.com/cadence-media/cadence/source"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

type sample struct {
	timeUs int64
	flags  int
}

// track holds the buffered samples of one track group.
type track struct {
	format    source.Format
	samples   []sample
	readIndex int
	// formatRead is cleared for every new stream so it starts with a format.
	formatRead bool
	enabled    bool
}

// firstIndexAtOrAfter returns the index of the first sample at or after timeUs.
func (t *track) firstIndexAtOrAfter(timeUs int64) int {
	i, _ := slices.BinarySearchFunc(t.samples, timeUs, func(s sample, timeUs int64) int {
		switch {
		case s.timeUs < timeUs:
			return -1
		case s.timeUs > timeUs:
			return 1
		default:
			return 0
		}
	})
	return i
}

type chunkAllocation struct {
	endUs       int64
	allocations []*source.Allocation
}

// chunk is one load of a period.
type chunk struct {
	period     *Period
	generation int
	startUs    int64
	endUs      int64
	bytes      int
}

func (c *chunk) Load(ctx context.Context) error {
	if delay := c.period.opts.LoadDelay; delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if c.period.takeLoadError() {
		return fmt.Errorf("load [%d, %d] of %s: %w", c.startUs, c.endUs, c.period.id, ErrLoad)
	}
	return nil
}

// Period is a MediaPeriod generating samples for every track group of Options.
type Period struct {
	id         source.MediaPeriodID
	durationUs int64
	opts       Options
	chunkUs    int64
	intervalUs int64
	allocator  source.Allocator
	loader     *loader.Loader[*chunk]
	log        *logrus.Entry

	mu          sync.Mutex
	callback    source.PeriodCallback
	prepared    bool
	released    bool
	groups      []source.TrackGroup
	tracks      []*track
	bufferedUs  int64
	loadStartUs int64
	finished    bool
	generation  int
	loadErrors  int
	chunks      []chunkAllocation
}

func newPeriod(id source.MediaPeriodID, durationUs int64, opts Options, allocator source.Allocator) *Period {
	p := &Period{
		id:         id,
		durationUs: durationUs,
		opts:       opts,
		chunkUs:    opts.ChunkDuration.Microseconds(),
		intervalUs: opts.SampleInterval.Microseconds(),
		allocator:  allocator,
		loader:     loader.New[*chunk]("period " + id.String()),
		log:        log.For("synthetic").WithField("period", id.String()),
		groups:     opts.Tracks,
		loadErrors: opts.LoadErrors,
	}
	for _, g := range p.groups {
		p.tracks = append(p.tracks, &track{format: g.Formats[0]})
	}
	return p
}

// ID returns the id the period was created for.
func (p *Period) ID() source.MediaPeriodID { return p.id }

// DurationUs returns the amount of media the period generates, or constant.TimeUnset if endless.
func (p *Period) DurationUs() int64 { return p.durationUs }

func (p *Period) takeLoadError() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadErrors > 0 {
		p.loadErrors--
		return true
	}
	return false
}

func (p *Period) Prepare(callback source.PeriodCallback, positionUs int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callback = callback
	p.resetLocked(positionUs)
	p.startLoadingLocked()
}

func (p *Period) MaybeThrowPrepareError() error {
	p.mu.Lock()
	prepared := p.prepared
	p.mu.Unlock()
	if prepared {
		return nil
	}
	return p.loader.MaybeThrowError(p.opts.MinRetryCount)
}

func (p *Period) TrackGroups() []source.TrackGroup {
	return p.groups
}

func (p *Period) SelectTracks(selections []source.TrackSelection, mayRetainStreamFlags []bool, streams []source.SampleStream, streamResetFlags []bool, positionUs int64) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, selection := range selections {
		if streams[i] == nil || (selection != nil && mayRetainStreamFlags[i]) {
			continue
		}
		if s, ok := streams[i].(*Stream); ok {
			s.track.enabled = false
		}
		streams[i] = nil
	}
	for i, selection := range selections {
		if streams[i] != nil || selection == nil {
			continue
		}
		g := p.groupIndex(selection.Group())
		if g < 0 {
			p.log.WithField("renderer", i).Warn("selection of unknown track group")
			continue
		}
		t := p.tracks[g]
		t.format = selection.SelectedFormat()
		t.enabled = true
		t.formatRead = false
		t.readIndex = t.firstIndexAtOrAfter(p.keyframeBefore(positionUs))
		streams[i] = &Stream{period: p, track: t}
		streamResetFlags[i] = true
	}
	return positionUs
}

func (p *Period) groupIndex(group source.TrackGroup) int {
	for i, g := range p.groups {
		if len(g.Formats) > 0 && len(group.Formats) > 0 && g.Formats[0].ID == group.Formats[0].ID {
			return i
		}
	}
	return -1
}

// DiscardBuffer drops samples before positionUs that every enabled track has read.
func (p *Period) DiscardBuffer(positionUs int64, toKeyframe bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	discardUs := positionUs
	if toKeyframe {
		discardUs = p.keyframeBefore(positionUs)
	}
	for _, t := range p.tracks {
		if !t.enabled {
			continue
		}
		if t.readIndex < len(t.samples) {
			discardUs = min(discardUs, t.samples[t.readIndex].timeUs)
		}
	}
	for _, t := range p.tracks {
		n := t.firstIndexAtOrAfter(discardUs)
		if t.enabled {
			n = min(n, t.readIndex)
		}
		t.samples = slices.Delete(t.samples, 0, n)
		t.readIndex -= min(n, t.readIndex)
	}

	released := 0
	for released < len(p.chunks) && p.chunks[released].endUs <= discardUs {
		p.allocator.Release(p.chunks[released].allocations...)
		released++
	}
	p.chunks = slices.Delete(p.chunks, 0, released)
	p.loadStartUs = max(p.loadStartUs, discardUs)
}

func (p *Period) ReadDiscontinuity() int64 {
	return constant.TimeUnset
}

func (p *Period) BufferedPositionUs() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return constant.TimeEndOfSource
	}
	return p.bufferedUs
}

// SeekToUs reads from the buffer when it holds positionUs, and restarts loading there otherwise.
func (p *Period) SeekToUs(positionUs int64) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if positionUs >= p.loadStartUs && (positionUs <= p.bufferedUs || p.finished) {
		from := p.keyframeBefore(positionUs)
		for _, t := range p.tracks {
			t.readIndex = t.firstIndexAtOrAfter(from)
		}
		return positionUs
	}

	p.log.WithField("position", constant.UsToMs(positionUs)).Debug("seek outside buffer")
	p.resetLocked(positionUs)
	p.loader.CancelLoading()
	return positionUs
}

// AdjustedSeekPositionUs snaps positionUs to the closest chunk boundary the parameters allow.
func (p *Period) AdjustedSeekPositionUs(positionUs int64, params source.SeekParameters) int64 {
	if params == source.SeekExact {
		return positionUs
	}
	minUs := subtractSaturating(positionUs, params.ToleranceBeforeUs)
	maxUs := addSaturating(positionUs, params.ToleranceAfterUs)
	before := p.keyframeBefore(positionUs)
	after := before + p.chunkUs
	if p.durationUs != constant.TimeUnset && after > p.durationUs {
		after = before
	}
	beforeOK := minUs <= before && before <= maxUs
	afterOK := minUs <= after && after <= maxUs
	switch {
	case beforeOK && afterOK:
		if positionUs-before <= after-positionUs {
			return before
		}
		return after
	case beforeOK:
		return before
	case afterOK:
		return after
	default:
		return minUs
	}
}

func (p *Period) NextLoadPositionUs() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return constant.TimeEndOfSource
	}
	return p.bufferedUs
}

func (p *Period) ContinueLoading(int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.prepared || p.finished || p.released || p.loader.IsLoading() {
		return false
	}
	return p.startLoadingLocked()
}

func (p *Period) ReevaluateBuffer(int64) {}

func (p *Period) release() {
	p.mu.Lock()
	p.released = true
	for _, c := range p.chunks {
		p.allocator.Release(c.allocations...)
	}
	p.chunks = nil
	p.mu.Unlock()

	p.loader.Release(nil)
}

func (p *Period) keyframeBefore(positionUs int64) int64 {
	if positionUs <= 0 {
		return 0
	}
	return positionUs - positionUs%p.chunkUs
}

// resetLocked drops the buffer and moves loading to the chunk holding positionUs.
func (p *Period) resetLocked(positionUs int64) {
	for _, c := range p.chunks {
		p.allocator.Release(c.allocations...)
	}
	p.chunks = nil
	for _, t := range p.tracks {
		t.samples = nil
		t.readIndex = 0
	}
	p.generation++
	p.loadStartUs = p.keyframeBefore(max(positionUs, 0))
	p.bufferedUs = p.loadStartUs
	p.finished = p.durationUs != constant.TimeUnset && p.bufferedUs >= p.durationUs
}

func (p *Period) startLoadingLocked() bool {
	if p.finished {
		return false
	}
	endUs := p.bufferedUs + p.chunkUs
	if p.durationUs != constant.TimeUnset {
		endUs = min(endUs, p.durationUs)
	}
	c := &chunk{
		period:     p,
		generation: p.generation,
		startUs:    p.bufferedUs,
		endUs:      endUs,
		bytes:      chunkBytes(p.groups, endUs-p.bufferedUs),
	}
	if err := p.loader.StartLoading(c, p, p.opts.MinRetryCount); err != nil {
		p.log.WithError(err).Debug("load not started")
		return false
	}
	return true
}

func (p *Period) OnLoadCompleted(c *chunk, elapsed time.Duration) {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return
	}
	if c.generation != p.generation {
		// Loaded before a seek moved the buffer.
		p.mu.Unlock()
		p.resume()
		return
	}

	n := (c.bytes + p.allocator.IndividualAllocationLength() - 1) / p.allocator.IndividualAllocationLength()
	allocations := make([]*source.Allocation, n)
	for i := range allocations {
		allocations[i] = p.allocator.Allocate()
	}
	p.chunks = append(p.chunks, chunkAllocation{endUs: c.endUs, allocations: allocations})

	for _, t := range p.tracks {
		step := p.intervalUs
		if t.format.TrackType == constant.TrackTypeText {
			// One cue per chunk.
			step = p.chunkUs
		}
		for timeUs := c.startUs; timeUs < c.endUs; timeUs += step {
			flags := 0
			if timeUs == c.startUs {
				flags = source.FlagKeyFrame
			}
			t.samples = append(t.samples, sample{timeUs: timeUs, flags: flags})
		}
	}
	p.bufferedUs = c.endUs
	p.finished = p.durationUs != constant.TimeUnset && c.endUs >= p.durationUs
	wasPrepared := p.prepared
	p.prepared = true
	callback := p.callback
	p.mu.Unlock()

	p.opts.Meter.AddSample(c.bytes, elapsed)
	if !wasPrepared {
		p.log.Debug("prepared")
		callback.OnPrepared(p)
		return
	}
	callback.OnContinueLoadingRequested(p)
}

func (p *Period) OnLoadCanceled(_ *chunk, _ time.Duration, released bool) {
	if !released {
		p.resume()
	}
}

// resume continues loading after a load was dropped: through the engine once prepared, directly
// otherwise.
func (p *Period) resume() {
	p.mu.Lock()
	callback, prepared := p.callback, p.prepared
	if !prepared && !p.released {
		p.startLoadingLocked()
	}
	p.mu.Unlock()
	if prepared {
		callback.OnContinueLoadingRequested(p)
	}
}

func (p *Period) OnLoadError(_ *chunk, _ time.Duration, err error, errorCount int) loader.ErrorAction {
	p.opts.Metrics.LoaderRetry("period")
	if p.opts.FatalLoadErrors > 0 && errorCount >= p.opts.FatalLoadErrors {
		return loader.DontRetryFatal
	}
	if p.opts.RetryDelay > 0 {
		return loader.RetryAfter(false, p.opts.RetryDelay)
	}
	return loader.Retry
}

func addSaturating(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

func subtractSaturating(a, b int64) int64 {
	if b > 0 && a < math.MinInt64+b {
		return math.MinInt64
	}
	return a - b
}
