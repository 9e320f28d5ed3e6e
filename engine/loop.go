package engine

import (
	"fmt"
	"time"
)

func (e *Engine) run() {
	defer close(e.done)
	defer close(e.events)

	for {
		select {
		case cmd := <-e.commands:
			if e.dispatch(cmd) {
				return
			}
		case <-e.wake:
			for _, cmd := range e.drainInbox() {
				if e.dispatch(cmd) {
					return
				}
			}
		case <-e.timer.C:
			if e.dispatch(workCommand{}) {
				return
			}
		}
	}
}

// dispatch handles one command and publishes the resulting state. It reports whether the loop
// must exit.
func (e *Engine) dispatch(cmd command) (exit bool) {
	defer func() {
		if r := recover(); r != nil {
			e.fail(unexpectedError(fmt.Errorf("panic handling %s: %v", cmd.name(), r)))
		}
		if !exit {
			e.publish()
		}
	}()

	if release, ok := cmd.(releaseCommand); ok {
		e.releaseInternal()
		close(release.ack)
		return true
	}
	if err := e.handle(cmd); err != nil {
		e.fail(asPlaybackError(err))
	}
	return false
}

func (e *Engine) handle(cmd command) error {
	switch c := cmd.(type) {
	case prepareCommand:
		e.prepareInternal(c.source, c.resetPosition, c.resetState)
	case playWhenReadyCommand:
		return e.setPlayWhenReadyInternal(c.playWhenReady)
	case workCommand:
		return e.doSomeWork()
	case seekCommand:
		return e.seekToInternal(c.position)
	case parametersCommand:
		e.mediaClock.SetPlaybackParameters(c.params)
	case seekParamsCommand:
		e.seekParameters = c.params
	case stopCommand:
		e.stopInternal(c.reset, true)
	case sourceRefreshedCommand:
		return e.handleSourceInfoRefreshed(c)
	case periodPreparedCommand:
		return e.handlePeriodPrepared(c.period)
	case continueLoadingCommand:
		e.handleContinueLoadingRequested(c.period)
	case tracksInvalidatedCommand:
		return e.reselectTracksInternal()
	case repeatModeCommand:
		return e.setRepeatModeInternal(c)
	case shuffleModeCommand:
		return e.setShuffleModeInternal(c)
	case sendMessageCommand:
		return e.sendMessageInternal(c.message)
	case deliverCommand:
		e.deliverOnExecutor(c.message)
	case parametersChangedCommand:
		e.handlePlaybackParameters(c)
	default:
		return fmt.Errorf("unknown command %T", cmd)
	}
	return nil
}

// fail stops playback after a fatal error and reports it.
func (e *Engine) fail(err *PlaybackError) {
	e.log.WithError(err).WithField("type", err.Type).Error("playback failed")
	e.metrics.PlaybackError(err.Type.String())
	e.stopInternal(false, false)
	e.emit(ErrorEvent{Err: err})
}

// emit publishes ev unless release was requested.
func (e *Engine) emit(ev Event) {
	select {
	case <-e.releaseRequested:
		return
	default:
	}
	select {
	case e.events <- ev:
	case <-e.releaseRequested:
	}
}

func (e *Engine) storeSnapshot() {
	info := e.info
	e.snapshot.Store(&info)
}

// publish stores the latest snapshot and emits it when something other than the positions
// changed, operations were acknowledged or the position jumped.
func (e *Engine) publish() {
	e.storeSnapshot()
	e.metrics.SetPosition(e.info.PositionUs)
	e.metrics.SetBuffered(e.info.TotalBufferedDurationUs)

	if !e.update.pending(e.info) {
		return
	}
	ev := InfoChanged{
		Info:          e.info,
		OperationAcks: e.update.acks,
		Discontinuity: e.update.discontinuity,
		Reason:        e.update.reason,
	}
	if ev.Discontinuity {
		e.metrics.Discontinuity(ev.Reason.String())
	}
	e.update.reset(e.info)
	e.emit(ev)
}

func (e *Engine) setState(state State) {
	if e.info.State == state {
		return
	}
	e.log.WithField("from", e.info.State).WithField("to", state).Debug("state changed")
	e.metrics.StateChanged(state.String())
	e.info = e.info.WithState(state)
}

func (e *Engine) setIsLoading(loading bool) {
	if e.info.IsLoading != loading {
		e.info = e.info.WithIsLoading(loading)
	}
}

// scheduleWork runs a tick right away.
func (e *Engine) scheduleWork() {
	e.timer.Reset(0)
}

// scheduleNextWork runs the next tick interval after start.
func (e *Engine) scheduleNextWork(start time.Time, interval time.Duration) {
	e.timer.Reset(max(0, time.Until(start.Add(interval))))
}

func (e *Engine) cancelWork() {
	e.timer.Stop()
}
