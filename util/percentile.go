package util

import (
	"math"

	"golang.org/x/exp/slices"
)

// SlidingPercentile computes a weighted percentile over the most recent samples.
// Once the total weight exceeds the maximum, the oldest samples are evicted, the last
// one possibly only in part. Not safe for concurrent use.
type SlidingPercentile struct {
	maxWeight   int
	samples     []percentileSample
	sortedByVal bool
	nextIndex   int
	totalWeight int
}

type percentileSample struct {
	index  int
	weight int
	value  float64
}

// NewSlidingPercentile returns an empty window holding at most maxWeight of samples.
func NewSlidingPercentile(maxWeight int) *SlidingPercentile {
	return &SlidingPercentile{maxWeight: maxWeight}
}

// AddSample records value with the given weight.
func (p *SlidingPercentile) AddSample(weight int, value float64) {
	p.sortByIndex()

	p.samples = append(p.samples, percentileSample{index: p.nextIndex, weight: weight, value: value})
	p.nextIndex++
	p.totalWeight += weight

	for p.totalWeight > p.maxWeight {
		excess := p.totalWeight - p.maxWeight
		oldest := &p.samples[0]
		if oldest.weight <= excess {
			p.totalWeight -= oldest.weight
			p.samples = p.samples[1:]
		} else {
			oldest.weight -= excess
			p.totalWeight -= excess
		}
	}
}

// Percentile returns the value at percentile (0..1), or NaN without samples.
func (p *SlidingPercentile) Percentile(percentile float64) float64 {
	if len(p.samples) == 0 {
		return math.NaN()
	}
	p.sortByValue()

	desired := percentile * float64(p.totalWeight)
	accumulated := 0
	for _, s := range p.samples {
		accumulated += s.weight
		if float64(accumulated) >= desired {
			return s.value
		}
	}
	return p.samples[len(p.samples)-1].value
}

func (p *SlidingPercentile) sortByIndex() {
	if !p.sortedByVal {
		return
	}
	slices.SortFunc(p.samples, func(a, b percentileSample) int { return a.index - b.index })
	p.sortedByVal = false
}

func (p *SlidingPercentile) sortByValue() {
	if p.sortedByVal {
		return
	}
	slices.SortFunc(p.samples, func(a, b percentileSample) int {
		switch {
		case a.value < b.value:
			return -1
		case a.value > b.value:
			return 1
		default:
			return 0
		}
	})
	p.sortedByVal = true
}
