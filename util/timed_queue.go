package util

// TimedValueQueue is a ring buffer of values ordered by timestamp.
//
// Adding a value with a timestamp at or before the newest queued one is treated as
// a time discontinuity and clears the queue first. Not safe for concurrent use.
type TimedValueQueue[V any] struct {
	timestamps []int64
	values     []V
	first      int
	size       int
}

const defaultTimedQueueCapacity = 10

// NewTimedValueQueue returns a queue with the given initial capacity.
func NewTimedValueQueue[V any](capacity int) *TimedValueQueue[V] {
	if capacity <= 0 {
		capacity = defaultTimedQueueCapacity
	}
	return &TimedValueQueue[V]{
		timestamps: make([]int64, capacity),
		values:     make([]V, capacity),
	}
}

// Add queues value at timestamp.
func (q *TimedValueQueue[V]) Add(timestamp int64, value V) {
	if q.size > 0 {
		last := (q.first + q.size - 1) % len(q.values)
		if timestamp <= q.timestamps[last] {
			q.Clear()
		}
	}
	if q.size == len(q.values) {
		q.grow()
	}
	next := (q.first + q.size) % len(q.values)
	q.timestamps[next] = timestamp
	q.values[next] = value
	q.size++
}

// Clear drops every queued value.
func (q *TimedValueQueue[V]) Clear() {
	var zero V
	for i := range q.values {
		q.values[i] = zero
	}
	q.first = 0
	q.size = 0
}

// Size returns the number of queued values.
func (q *TimedValueQueue[V]) Size() int {
	return q.size
}

// PollFloor removes every value with a timestamp at or before timestamp and returns the newest of them.
func (q *TimedValueQueue[V]) PollFloor(timestamp int64) (V, bool) {
	return q.poll(timestamp, true)
}

// Poll removes values up to the one closest to timestamp, which may be newer than it, and returns that one.
func (q *TimedValueQueue[V]) Poll(timestamp int64) (V, bool) {
	return q.poll(timestamp, false)
}

func (q *TimedValueQueue[V]) poll(timestamp int64, onlyOlder bool) (value V, found bool) {
	var zero V
	previousDiff := int64(1<<63 - 1)
	for q.size > 0 {
		diff := timestamp - q.timestamps[q.first]
		if diff < 0 && (onlyOlder || -diff >= previousDiff) {
			break
		}
		previousDiff = diff
		value, found = q.values[q.first], true
		q.values[q.first] = zero
		q.first = (q.first + 1) % len(q.values)
		q.size--
	}
	return value, found
}

func (q *TimedValueQueue[V]) grow() {
	capacity := len(q.values) * 2
	timestamps := make([]int64, capacity)
	values := make([]V, capacity)
	for i := 0; i < q.size; i++ {
		j := (q.first + i) % len(q.values)
		timestamps[i] = q.timestamps[j]
		values[i] = q.values[j]
	}
	q.timestamps, q.values, q.first = timestamps, values, 0
}
