// Package clock provides the media clock that drives playback position.
//
// Position comes either from a free running standalone clock or from the clock of one
// enabled renderer, typically the audio output. MediaClock reconciles the two so that
// switching between them never moves the position backwards.
package clock

import (
	"sync"
	"time"
)

// Clock reports elapsed real time.
type Clock interface {
	Elapsed() time.Duration
}

// System is the monotonic wall clock.
type System struct {
	start time.Time
}

// NewSystem returns a clock counting from now.
func NewSystem() *System {
	return &System{start: time.Now()}
}

func (s *System) Elapsed() time.Duration {
	return time.Since(s.start)
}

// Fake is a manually advanced clock for tests.
type Fake struct {
	mu  sync.Mutex
	now time.Duration
}

// NewFake returns a clock stopped at zero.
func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) Elapsed() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now += d
	f.mu.Unlock()
}
