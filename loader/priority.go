package loader

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/samber/lo"
)

// Task priorities. Higher values win.
const (
	PriorityPlayback = 0
	PriorityDownload = -1000
)

// PriorityTooLowError is returned by ProceedOrError when a higher priority task is registered.
type PriorityTooLowError struct {
	Priority int
	Highest  int
}

func (e *PriorityTooLowError) Error() string {
	return fmt.Sprintf("priority too low [priority=%d, highest=%d]", e.Priority, e.Highest)
}

// PriorityTaskManager lets loading tasks stand aside while a task of higher priority is registered.
// A task calls Add with its priority before proceeding and Remove when it is done.
type PriorityTaskManager struct {
	mu      sync.Mutex
	counts  map[int]int
	highest int
	changed chan struct{}
}

// NewPriorityTaskManager returns a manager without tasks.
func NewPriorityTaskManager() *PriorityTaskManager {
	return &PriorityTaskManager{
		counts:  make(map[int]int),
		highest: math.MinInt,
		changed: make(chan struct{}),
	}
}

// Add registers a task with priority.
func (m *PriorityTaskManager) Add(priority int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[priority]++
	if priority > m.highest {
		m.highest = priority
		m.broadcast()
	}
}

// Remove unregisters a task with priority.
func (m *PriorityTaskManager) Remove(priority int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts[priority] == 0 {
		return
	}
	m.counts[priority]--
	if m.counts[priority] == 0 {
		delete(m.counts, priority)
	}
	highest := math.MinInt
	if len(m.counts) > 0 {
		highest = lo.Max(lo.Keys(m.counts))
	}
	if highest != m.highest {
		m.highest = highest
		m.broadcast()
	}
}

// Highest returns the highest registered priority, or math.MinInt without tasks.
func (m *PriorityTaskManager) Highest() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.highest
}

// Proceed blocks until priority is the highest registered one or ctx is done.
func (m *PriorityTaskManager) Proceed(ctx context.Context, priority int) error {
	for {
		m.mu.Lock()
		if m.highest == priority {
			m.mu.Unlock()
			return nil
		}
		changed := m.changed
		m.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ProceedNonBlocking reports whether priority is the highest registered one.
func (m *PriorityTaskManager) ProceedNonBlocking(priority int) bool {
	return m.Highest() == priority
}

// ProceedOrError returns a PriorityTooLowError unless priority is the highest registered one.
func (m *PriorityTaskManager) ProceedOrError(priority int) error {
	if highest := m.Highest(); highest != priority {
		return &PriorityTooLowError{Priority: priority, Highest: highest}
	}
	return nil
}

// broadcast wakes every blocked Proceed. m.mu must be held.
func (m *PriorityTaskManager) broadcast() {
	close(m.changed)
	m.changed = make(chan struct{})
}
