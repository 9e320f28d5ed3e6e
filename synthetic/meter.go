package synthetic

import (
	"math"
	"sync"
	"time"

	"github.com/cadence-media/cadence/util"
)

const (
	meterMaxWeight           = 2000
	meterElapsedThreshold    = 2 * time.Second
	meterBytesThreshold      = 512 * 1024
	meterPercentile          = 0.5
	meterInitialEstimateBits = 1_000_000
)

// Meter estimates bandwidth from completed loads as the weighted median of recent transfer rates.
type Meter struct {
	mu         sync.Mutex
	percentile *util.SlidingPercentile
	elapsed    time.Duration
	bytes      int64
	estimate   int64
}

func NewMeter() *Meter {
	return &Meter{
		percentile: util.NewSlidingPercentile(meterMaxWeight),
		estimate:   meterInitialEstimateBits,
	}
}

// AddSample records bytes transferred over elapsed.
func (m *Meter) AddSample(bytes int, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.elapsed += elapsed
	m.bytes += int64(bytes)
	if elapsed <= 0 {
		// Instant transfers carry no rate.
		return
	}
	bitsPerSecond := float64(bytes) * 8 / elapsed.Seconds()
	m.percentile.AddSample(int(math.Sqrt(float64(bytes))), bitsPerSecond)
	if m.elapsed >= meterElapsedThreshold || m.bytes >= meterBytesThreshold {
		m.estimate = int64(m.percentile.Percentile(meterPercentile))
	}
}

// BitrateEstimate returns the estimated bandwidth in bits per second.
func (m *Meter) BitrateEstimate() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.estimate
}
