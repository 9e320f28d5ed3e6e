package engine

import (
	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/renderer"
	"github.com/cadence-media/cadence/timeline"
	"golang.org/x/exp/slices"
)

func (e *Engine) sendMessageInternal(m *Message) error {
	if m.positionMs == constant.TimeUnset {
		return e.sendMessageToTarget(m)
	}
	pm := &pendingMessage{message: m}
	if e.mediaSource == nil || e.pendingPrepareCount > 0 {
		// Resolved once the timeline is known.
		e.pendingMessages = append(e.pendingMessages, pm)
		return nil
	}
	if !e.resolvePendingMessage(pm) {
		m.markProcessed(false)
		return nil
	}
	e.pendingMessages = append(e.pendingMessages, pm)
	slices.SortStableFunc(e.pendingMessages, comparePending)
	return nil
}

// sendMessageToTarget delivers m on the loop, or hands it to its executor.
func (e *Engine) sendMessageToTarget(m *Message) error {
	if m.executor != nil {
		e.enqueue(deliverCommand{m})
		return nil
	}
	if err := e.deliverMessage(m); err != nil {
		return err
	}
	if e.info.State == StateReady || e.info.State == StateBuffering {
		// The target may have changed what the renderers need.
		e.scheduleWork()
	}
	return nil
}

func (e *Engine) deliverOnExecutor(m *Message) {
	m.executor(func() {
		if err := e.deliverMessage(m); err != nil {
			e.log.WithError(err).WithField("kind", m.kind).Error("message delivery failed")
		}
	})
}

func (e *Engine) deliverMessage(m *Message) error {
	if m.IsCanceled() {
		return nil
	}
	defer m.markProcessed(true)
	if err := m.target.HandleMessage(m.kind, m.payload); err != nil {
		if r, ok := m.target.(renderer.Renderer); ok {
			return rendererError(r, err)
		}
		return unexpectedError(err)
	}
	return nil
}

// resolvePendingMessagePositions re-resolves every pending message against a new timeline,
// dropping those whose period is gone.
func (e *Engine) resolvePendingMessagePositions() {
	for i := len(e.pendingMessages) - 1; i >= 0; i-- {
		if pm := e.pendingMessages[i]; !e.resolvePendingMessage(pm) {
			pm.message.markProcessed(false)
			e.pendingMessages = slices.Delete(e.pendingMessages, i, i+1)
		}
	}
	slices.SortStableFunc(e.pendingMessages, comparePending)
}

func (e *Engine) resolvePendingMessage(pm *pendingMessage) bool {
	tl := e.info.Timeline
	if pm.resolved {
		index := tl.IndexOfPeriod(pm.periodUID)
		if index == timeline.IndexUnset {
			return false
		}
		pm.periodIndex = index
		return true
	}

	m := pm.message
	position, err := e.resolveSeekPosition(SeekPosition{
		Timeline:         m.timeline,
		WindowIndex:      m.windowIndex,
		WindowPositionUs: constant.MsToUs(m.positionMs),
	}, false)
	if err != nil {
		e.log.WithError(err).Warn("dropping message with invalid position")
		return false
	}
	p, ok := position.Get()
	if !ok {
		return false
	}
	pm.resolved = true
	pm.periodUID = p.PeriodUID
	pm.periodIndex = tl.IndexOfPeriod(p.PeriodUID)
	pm.periodTimeUs = p.PositionUs
	return true
}

// maybeTriggerPendingMessages delivers the messages positioned in (oldUs, newUs] of the playing
// period. Messages at the start position are delivered too.
func (e *Engine) maybeTriggerPendingMessages(oldUs, newUs int64) error {
	if len(e.pendingMessages) == 0 || e.info.PeriodID.IsAd() {
		return nil
	}
	if e.info.StartPositionUs == oldUs {
		oldUs--
	}

	current := e.info.Timeline.IndexOfPeriod(e.info.PeriodID.PeriodUID)
	after := func(pm *pendingMessage) bool {
		return pm.periodIndex > current || (pm.periodIndex == current && pm.periodTimeUs > oldUs)
	}

	// Step back over messages a backward seek put ahead of the position again.
	for e.nextPendingMessage > 0 && after(e.pendingMessages[e.nextPendingMessage-1]) {
		e.nextPendingMessage--
	}
	for e.nextPendingMessage < len(e.pendingMessages) {
		pm := e.pendingMessages[e.nextPendingMessage]
		if !pm.resolved || after(pm) {
			break
		}
		e.nextPendingMessage++
	}

	for e.nextPendingMessage < len(e.pendingMessages) {
		pm := e.pendingMessages[e.nextPendingMessage]
		if !pm.resolved || pm.periodIndex != current || pm.periodTimeUs <= oldUs || pm.periodTimeUs > newUs {
			break
		}
		if err := e.sendMessageToTarget(pm.message); err != nil {
			return err
		}
		if pm.message.deleteAfterDelivery || pm.message.IsCanceled() {
			e.pendingMessages = slices.Delete(e.pendingMessages, e.nextPendingMessage, e.nextPendingMessage+1)
		} else {
			e.nextPendingMessage++
		}
	}
	return nil
}
