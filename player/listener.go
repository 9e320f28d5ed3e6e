package player

import (
	"sync"

	"github.com/cadence-media/cadence/clock"
	"github.com/cadence-media/cadence/engine"
	"github.com/cadence-media/cadence/timeline"
	"github.com/samber/lo"
)

// Listener is notified of player changes. Callbacks run one at a time on a goroutine owned by
// the player and may call back into it.
type Listener interface {
	OnStateChanged(playWhenReady bool, state engine.State)
	OnPositionDiscontinuity(reason engine.DiscontinuityReason)
	OnTimelineChanged(tl *timeline.Timeline, manifest any)
	OnPlaybackParametersChanged(params clock.PlaybackParameters)
	OnPlayerError(err *engine.PlaybackError)
}

// BaseListener ignores every callback. Embed it to implement only some of them.
type BaseListener struct{}

func (BaseListener) OnStateChanged(bool, engine.State)                    {}
func (BaseListener) OnPositionDiscontinuity(engine.DiscontinuityReason)   {}
func (BaseListener) OnTimelineChanged(*timeline.Timeline, any)            {}
func (BaseListener) OnPlaybackParametersChanged(clock.PlaybackParameters) {}
func (BaseListener) OnPlayerError(*engine.PlaybackError)                  {}

// notifier queues notifications in order and runs them against the listeners on its own goroutine.
type notifier struct {
	mu        sync.Mutex
	listeners []Listener
	queue     []func(Listener)
	closed    bool
	wake      chan struct{}
	done      chan struct{}
}

func newNotifier() *notifier {
	n := &notifier{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *notifier) add(l Listener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !lo.Contains(n.listeners, l) {
		n.listeners = append(n.listeners, l)
	}
}

func (n *notifier) remove(l Listener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = lo.Without(n.listeners, l)
}

func (n *notifier) post(fn func(Listener)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.queue = append(n.queue, fn)
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

// close flushes queued notifications and stops the goroutine.
func (n *notifier) close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	close(n.wake)
}

func (n *notifier) run() {
	defer close(n.done)
	for range n.wake {
		n.flush()
	}
	n.flush()
}

func (n *notifier) flush() {
	for {
		n.mu.Lock()
		batch := n.queue
		n.queue = nil
		listeners := append([]Listener(nil), n.listeners...)
		n.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, fn := range batch {
			for _, l := range listeners {
				fn(l)
			}
		}
	}
}
