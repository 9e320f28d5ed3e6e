// Package loader runs cancelable units of work in the background and retries them on failure.
package loader

import (
	"context"
	"sync"
	"time"

	"github.com/cadence-media/cadence/log"
	"github.com/sirupsen/logrus"
)

// Loadable is a unit of work. Load must return promptly once ctx is done.
type Loadable interface {
	Load(ctx context.Context) error
}

// Callback receives the outcome of loads. It is called from the loader's goroutines.
type Callback[T Loadable] interface {
	OnLoadCompleted(loadable T, elapsed time.Duration)
	// OnLoadCanceled is called when a load is canceled; released is set when the loader was released.
	OnLoadCanceled(loadable T, elapsed time.Duration, released bool)
	// OnLoadError classifies a failed attempt. errorCount includes this failure.
	OnLoadError(loadable T, elapsed time.Duration, err error, errorCount int) ErrorAction
}

// Loader runs one Loadable at a time.
type Loader[T Loadable] struct {
	mu       sync.Mutex
	current  *task[T]
	fatal    error
	released bool
	wg       sync.WaitGroup
	log      *logrus.Entry
}

type task[T Loadable] struct {
	loadable      T
	callback      Callback[T]
	minRetryCount int
	ctx           context.Context
	cancel        context.CancelFunc
	started       time.Time
	errorCount    int
	currentErr    error
}

// New returns an idle loader. name tags its log records.
func New[T Loadable](name string) *Loader[T] {
	return &Loader[T]{log: log.For("loader").WithField("loader", name)}
}

// StartLoading starts loading loadable. defaultMinRetryCount is the number of failed attempts
// MaybeThrowError tolerates before it returns the latest error.
func (l *Loader[T]) StartLoading(loadable T, callback Callback[T], defaultMinRetryCount int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.released {
		return ErrReleased
	}
	if l.current != nil {
		return ErrBusy
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &task[T]{
		loadable:      loadable,
		callback:      callback,
		minRetryCount: defaultMinRetryCount,
		ctx:           ctx,
		cancel:        cancel,
		started:       time.Now(),
	}
	l.fatal = nil
	l.current = t
	l.run(t, 0)
	return nil
}

// IsLoading reports whether a load is in progress, including a pending retry.
func (l *Loader[T]) IsLoading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current != nil
}

// CancelLoading cancels the current load. The callback's OnLoadCanceled follows once the attempt returns.
func (l *Loader[T]) CancelLoading() {
	l.mu.Lock()
	t := l.current
	l.mu.Unlock()

	if t != nil {
		t.cancel()
	}
}

// Release cancels the current load, reporting it as released, and refuses new loads.
// onReleased, if set, runs once every in-flight attempt has returned.
func (l *Loader[T]) Release(onReleased func()) {
	l.mu.Lock()
	l.released = true
	t := l.current
	l.current = nil
	l.mu.Unlock()

	if t != nil {
		t.cancel()
		t.callback.OnLoadCanceled(t.loadable, time.Since(t.started), true)
	}

	go func() {
		l.wg.Wait()
		if onReleased != nil {
			onReleased()
		}
	}()
}

// MaybeThrowError returns a fatal error, or the current load's latest error once more than
// minRetryCount attempts failed. A negative minRetryCount uses the load's default.
func (l *Loader[T]) MaybeThrowError(minRetryCount int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fatal != nil {
		return l.fatal
	}
	if t := l.current; t != nil {
		if minRetryCount < 0 {
			minRetryCount = t.minRetryCount
		}
		if t.currentErr != nil && t.errorCount > minRetryCount {
			return t.currentErr
		}
	}
	return nil
}

// run starts an attempt after delay. l.mu must be held.
func (l *Loader[T]) run(t *task[T], delay time.Duration) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-t.ctx.Done():
				timer.Stop()
				l.finish(t, nil)
				return
			}
		}

		l.mu.Lock()
		if l.current == t {
			// A new attempt; the previous error no longer describes the load.
			t.currentErr = nil
		}
		l.mu.Unlock()

		l.finish(t, attempt(t))
	}()
}

func attempt[T Loadable](t *task[T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &UnexpectedLoaderError{Cause: r}
		}
	}()
	return t.loadable.Load(t.ctx)
}

func (l *Loader[T]) finish(t *task[T], err error) {
	l.mu.Lock()
	if l.current != t {
		// Released while the attempt was running; OnLoadCanceled was already reported.
		l.mu.Unlock()
		return
	}
	elapsed := time.Since(t.started)

	if t.ctx.Err() != nil {
		l.current = nil
		l.mu.Unlock()
		t.callback.OnLoadCanceled(t.loadable, elapsed, false)
		return
	}

	if err == nil {
		l.current = nil
		l.mu.Unlock()
		if cbErr := complete(t, elapsed); cbErr != nil {
			l.mu.Lock()
			l.fatal = cbErr
			l.mu.Unlock()
		}
		return
	}

	t.errorCount++
	t.currentErr = err
	errorCount := t.errorCount
	l.mu.Unlock()

	action := t.callback.OnLoadError(t.loadable, elapsed, err, errorCount)
	l.log.WithFields(logrus.Fields{"error": err, "errors": errorCount, "action": action.String()}).Warn("load failed")

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current != t {
		return
	}
	switch action.kind {
	case actionDontRetryFatal:
		l.fatal = err
		l.current = nil
	case actionDontRetry:
		l.current = nil
	default:
		if action.kind == actionRetryResetErrorCount {
			t.errorCount = 1
		}
		delay := action.delay
		if !action.explicit {
			delay = RetryDelay(t.errorCount)
		}
		l.run(t, delay)
	}
}

func complete[T Loadable](t *task[T], elapsed time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &UnexpectedLoaderError{Cause: r}
		}
	}()
	t.callback.OnLoadCompleted(t.loadable, elapsed)
	return nil
}
