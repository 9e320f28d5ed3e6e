package loadcontrol

import (
	"sync"

	"github.com/cadence-media/cadence/source"
	"github.com/cadence-media/cadence/util"
)

// SegmentSize is the default size of one allocation.
const SegmentSize = 64 * 1024

// DefaultAllocator hands out fixed size allocations and pools released ones.
// It is safe for concurrent use.
type DefaultAllocator struct {
	mu               sync.Mutex
	trimOnReset      bool
	length           int
	targetBufferSize int
	allocated        int
	available        []*source.Allocation
}

// NewDefaultAllocator returns an allocator of length byte allocations. When trimOnReset is set,
// Reset frees pooled allocations.
func NewDefaultAllocator(trimOnReset bool, length int) *DefaultAllocator {
	return &DefaultAllocator{trimOnReset: trimOnReset, length: length}
}

// Reset drops the target buffer size, trimming the pool if configured to.
func (a *DefaultAllocator) Reset() {
	if a.trimOnReset {
		a.SetTargetBufferSize(0)
	}
}

// SetTargetBufferSize sets the number of bytes the pool may keep around.
func (a *DefaultAllocator) SetTargetBufferSize(size int) {
	a.mu.Lock()
	lower := size < a.targetBufferSize
	a.targetBufferSize = size
	a.mu.Unlock()
	if lower {
		a.Trim()
	}
}

// Allocate returns a pooled allocation or a new one.
func (a *DefaultAllocator) Allocate() *source.Allocation {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.allocated++
	if n := len(a.available); n > 0 {
		allocation := a.available[n-1]
		a.available[n-1] = nil
		a.available = a.available[:n-1]
		return allocation
	}
	return &source.Allocation{Data: make([]byte, a.length)}
}

// Release returns allocations to the pool.
func (a *DefaultAllocator) Release(allocations ...*source.Allocation) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.available = append(a.available, allocations...)
	a.allocated -= len(allocations)
}

// Trim frees pooled allocations beyond the target buffer size.
func (a *DefaultAllocator) Trim() {
	a.mu.Lock()
	defer a.mu.Unlock()

	target := (a.targetBufferSize + a.length - 1) / a.length
	keep := util.Max(0, target-a.allocated)
	if keep >= len(a.available) {
		return
	}
	clear(a.available[keep:])
	a.available = a.available[:keep]
}

// TotalBytesAllocated returns the bytes handed out and not yet released.
func (a *DefaultAllocator) TotalBytesAllocated() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocated * a.length
}

// IndividualAllocationLength returns the size of one allocation.
func (a *DefaultAllocator) IndividualAllocationLength() int {
	return a.length
}

// pooled returns the number of allocations waiting for reuse.
func (a *DefaultAllocator) pooled() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.available)
}
