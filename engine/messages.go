package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/timeline"
)

var (
	// ErrMessageAlreadySent is returned when a Message is sent twice.
	ErrMessageAlreadySent = errors.New("message already sent")
	// ErrMessageNotSent is returned when waiting on a Message that was never sent.
	ErrMessageNotSent = errors.New("message not sent")
)

// Target receives messages. Renderers are targets.
type Target interface {
	HandleMessage(kind int, payload any) error
}

// Message is delivered to its Target either right away or when playback reaches a position.
type Message struct {
	engine      *Engine
	target      Target
	timeline    *timeline.Timeline
	windowIndex int

	kind                int
	payload             any
	positionMs          int64
	deleteAfterDelivery bool
	executor            func(func())

	sent      bool
	canceled  atomic.Bool
	processed chan struct{}

	mu        sync.Mutex
	delivered bool
	done      bool
}

// CreateMessage returns an unsent message for target. Positioned messages refer to windowIndex
// of tl unless SetPosition picks another window.
func (e *Engine) CreateMessage(target Target, tl *timeline.Timeline, windowIndex int) *Message {
	return &Message{
		engine:              e,
		target:              target,
		timeline:            tl,
		windowIndex:         windowIndex,
		positionMs:          constant.TimeUnset,
		deleteAfterDelivery: true,
		processed:           make(chan struct{}),
	}
}

func (m *Message) Target() Target               { return m.target }
func (m *Message) Timeline() *timeline.Timeline { return m.timeline }
func (m *Message) Kind() int                    { return m.kind }
func (m *Message) Payload() any                 { return m.payload }
func (m *Message) WindowIndex() int             { return m.windowIndex }
func (m *Message) PositionMs() int64            { return m.positionMs }
func (m *Message) DeleteAfterDelivery() bool    { return m.deleteAfterDelivery }

// SetKind sets the kind passed to the target. Ignored once sent.
func (m *Message) SetKind(kind int) *Message {
	if !m.sent {
		m.kind = kind
	}
	return m
}

// SetPayload sets the payload passed to the target. Ignored once sent.
func (m *Message) SetPayload(payload any) *Message {
	if !m.sent {
		m.payload = payload
	}
	return m
}

// SetPosition delivers the message when playback reaches positionMs in windowIndex.
func (m *Message) SetPosition(windowIndex int, positionMs int64) *Message {
	if !m.sent {
		m.windowIndex = windowIndex
		m.positionMs = positionMs
	}
	return m
}

// SetDeleteAfterDelivery controls whether a positioned message is delivered again when
// playback passes its position a second time. Defaults to true.
func (m *Message) SetDeleteAfterDelivery(deleteAfterDelivery bool) *Message {
	if !m.sent {
		m.deleteAfterDelivery = deleteAfterDelivery
	}
	return m
}

// SetExecutor runs deliveries through executor instead of on the playback goroutine.
func (m *Message) SetExecutor(executor func(func())) *Message {
	if !m.sent {
		m.executor = executor
	}
	return m
}

// Send hands the message to the engine. It fails with ErrReleased once the engine was released;
// the message then counts as processed without delivery.
func (m *Message) Send() error {
	if m.sent {
		return ErrMessageAlreadySent
	}
	if m.positionMs == constant.TimeUnset && !m.deleteAfterDelivery {
		return fmt.Errorf("message without position must be deleted after delivery")
	}
	if m.positionMs != constant.TimeUnset && !m.timeline.IsEmpty() && m.windowIndex >= m.timeline.WindowCount() {
		return &IllegalSeekPositionError{Timeline: m.timeline, WindowIndex: m.windowIndex, PositionUs: constant.MsToUs(m.positionMs)}
	}
	m.sent = true
	return m.engine.SendMessage(m)
}

// Cancel prevents any further delivery.
func (m *Message) Cancel() {
	m.canceled.Store(true)
}

func (m *Message) IsCanceled() bool {
	return m.canceled.Load()
}

// BlockUntilDelivered waits until the message was delivered or dropped and reports which.
func (m *Message) BlockUntilDelivered(ctx context.Context) (bool, error) {
	if !m.sent {
		return false, ErrMessageNotSent
	}
	select {
	case <-m.processed:
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.delivered, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// markProcessed records the outcome of the message. Only the first outcome counts; a message
// kept after delivery is reported delivered on its first delivery.
func (m *Message) markProcessed(delivered bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return
	}
	m.done = true
	m.delivered = delivered
	close(m.processed)
}

// pendingMessage is a positioned message waiting for playback to reach its period position.
type pendingMessage struct {
	message      *Message
	resolved     bool
	periodUID    string
	periodIndex  int
	periodTimeUs int64
}

// comparePending orders resolved messages by period and time, before unresolved ones.
func comparePending(a, b *pendingMessage) int {
	if a.resolved != b.resolved {
		if a.resolved {
			return -1
		}
		return 1
	}
	if !a.resolved {
		return 0
	}
	if a.periodIndex != b.periodIndex {
		return a.periodIndex - b.periodIndex
	}
	switch {
	case a.periodTimeUs < b.periodTimeUs:
		return -1
	case a.periodTimeUs > b.periodTimeUs:
		return 1
	default:
		return 0
	}
}
