// Package engine runs playback: a single goroutine owns the period queue, the renderers and the
// media clock, and turns commands into PlaybackInfo snapshots.
//
// Callers talk to the loop through a buffered command channel and read results from Events.
// Sources, periods and the track selector report back from their own goroutines; those
// notifications are queued on an inbox that the loop drains, so a callback never blocks on the
// loop. Renderers are only ever touched by the loop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cadence-media/cadence/clock"
	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/key"
	"github.com/cadence-media/cadence/loadcontrol"
	"github.com/cadence-media/cadence/log"
	"github.com/cadence-media/cadence/metrics"
	"github.com/cadence-media/cadence/queue"
	"github.com/cadence-media/cadence/renderer"
	"github.com/cadence-media/cadence/source"
	"github.com/cadence-media/cadence/timeline"
	"github.com/cadence-media/cadence/trackselect"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	renderingInterval = 10 * time.Millisecond
	idleInterval      = time.Second
)

// Options configures an Engine.
type Options struct {
	// Renderers are indexed in order. At least one is required.
	Renderers   []renderer.Renderer
	Selector    trackselect.Selector
	LoadControl loadcontrol.LoadControl
	// Clock drives the media clock. Defaults to the system clock.
	Clock              clock.Clock
	PlayWhenReady      bool
	RepeatMode         timeline.RepeatMode
	ShuffleModeEnabled bool
	// CommandBuffer and EventBuffer default to the engine.* configuration keys.
	CommandBuffer int
	EventBuffer   int
	// Metrics may be nil.
	Metrics *metrics.Engine
}

// Engine is the playback loop. All methods are safe for concurrent use.
type Engine struct {
	renderers    []renderer.Renderer
	capabilities []trackselect.Capabilities
	selector     trackselect.Selector
	emptyResult  *trackselect.Result
	loadControl  loadcontrol.LoadControl
	clock        clock.Clock
	mediaClock   *clock.MediaClock
	queue        *queue.Queue
	metrics      *metrics.Engine
	log          *logrus.Entry
	callbacks    *callbacks

	backBufferUs                 int64
	retainBackBufferFromKeyframe bool

	// Owned by the loop goroutine.
	info                PlaybackInfo
	update              infoUpdate
	seekParameters      source.SeekParameters
	mediaSource         source.MediaSource
	enabled             []renderer.Renderer
	playWhenReady       bool
	rebuffering         bool
	repeatMode          timeline.RepeatMode
	shuffle             bool
	pendingPrepareCount int
	pendingInitialSeek  mo.Option[SeekPosition]
	rendererPositionUs  int64
	pendingMessages     []*pendingMessage
	nextPendingMessage  int
	timer               *time.Timer

	commands         chan command
	events           chan Event
	inboxMu          sync.Mutex
	inbox            []command
	wake             chan struct{}
	releaseRequested chan struct{}
	releaseOnce      sync.Once
	done             chan struct{}

	snapshot atomic.Pointer[PlaybackInfo]
	params   atomic.Pointer[clock.PlaybackParameters]
}

// New starts a playback loop.
func New(opts Options) (*Engine, error) {
	if len(opts.Renderers) == 0 {
		return nil, errors.New("engine needs at least one renderer")
	}
	if opts.Selector == nil {
		return nil, errors.New("engine needs a track selector")
	}
	if opts.LoadControl == nil {
		return nil, errors.New("engine needs a load control")
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewSystem()
	}
	if opts.CommandBuffer <= 0 {
		opts.CommandBuffer = max(1, viper.GetInt(key.EngineCommandBuffer))
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = max(1, viper.GetInt(key.EngineEventBuffer))
	}

	e := &Engine{
		renderers:                    opts.Renderers,
		selector:                     opts.Selector,
		emptyResult:                  trackselect.EmptyResult(len(opts.Renderers)),
		loadControl:                  opts.LoadControl,
		clock:                        opts.Clock,
		queue:                        queue.New(),
		metrics:                      opts.Metrics,
		log:                          log.For("engine"),
		backBufferUs:                 opts.LoadControl.BackBufferDurationUs(),
		retainBackBufferFromKeyframe: opts.LoadControl.RetainBackBufferFromKeyframe(),
		seekParameters:               source.SeekExact,
		playWhenReady:                opts.PlayWhenReady,
		repeatMode:                   opts.RepeatMode,
		shuffle:                      opts.ShuffleModeEnabled,
		commands:                     make(chan command, opts.CommandBuffer),
		events:                       make(chan Event, opts.EventBuffer),
		wake:                         make(chan struct{}, 1),
		releaseRequested:             make(chan struct{}),
		done:                         make(chan struct{}),
	}
	e.callbacks = &callbacks{e}
	e.capabilities = lo.Map(e.renderers, func(r renderer.Renderer, i int) trackselect.Capabilities {
		r.SetIndex(i)
		return r
	})
	e.mediaClock = clock.NewMediaClock(opts.Clock, e.callbacks.onPlaybackParametersChanged)
	e.queue.UpdateRepeatMode(opts.RepeatMode)
	e.queue.UpdateShuffleModeEnabled(opts.ShuffleModeEnabled)
	e.info = dummyPlaybackInfo(constant.TimeUnset, e.emptyResult)
	e.update.reset(e.info)
	e.storeSnapshot()
	params := clock.DefaultParameters
	e.params.Store(&params)

	e.timer = time.NewTimer(time.Hour)
	e.timer.Stop()

	e.selector.Init(e.callbacks)
	go e.run()
	return e, nil
}

// Events returns the channel of published events. It is closed once the engine is released.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// PlaybackInfo returns the latest snapshot, including positions refreshed on every tick.
func (e *Engine) PlaybackInfo() PlaybackInfo {
	return *e.snapshot.Load()
}

// PlaybackParameters returns the effective parameters as last reported by the media clock.
func (e *Engine) PlaybackParameters() clock.PlaybackParameters {
	return *e.params.Load()
}

// Prepare starts playback of src. resetPosition drops the current position, resetState
// additionally drops the timeline, manifest and pending messages.
func (e *Engine) Prepare(src source.MediaSource, resetPosition, resetState bool) {
	e.post(prepareCommand{source: src, resetPosition: resetPosition, resetState: resetState})
}

func (e *Engine) SetPlayWhenReady(playWhenReady bool) {
	e.post(playWhenReadyCommand{playWhenReady})
}

func (e *Engine) SetRepeatMode(mode timeline.RepeatMode) {
	e.post(repeatModeCommand{mode})
}

func (e *Engine) SetShuffleModeEnabled(enabled bool) {
	e.post(shuffleModeCommand{enabled})
}

// SeekTo seeks to positionUs in windowIndex of tl, the timeline the caller saw. positionUs may
// be constant.TimeUnset for the window's default position.
func (e *Engine) SeekTo(tl *timeline.Timeline, windowIndex int, positionUs int64) {
	e.post(seekCommand{SeekPosition{Timeline: tl, WindowIndex: windowIndex, WindowPositionUs: positionUs}})
}

func (e *Engine) SetPlaybackParameters(params clock.PlaybackParameters) {
	e.post(parametersCommand{params})
}

func (e *Engine) SetSeekParameters(params source.SeekParameters) {
	e.post(seekParamsCommand{params})
}

// Stop stops playback and releases the source. With reset the position and timeline are dropped too.
func (e *Engine) Stop(reset bool) {
	e.post(stopCommand{reset})
}

// SendMessage queues m. A message sent after Release is dropped undelivered and ErrReleased
// is returned.
func (e *Engine) SendMessage(m *Message) error {
	if !e.post(sendMessageCommand{m}) {
		e.log.Warn("ignoring message sent after release")
		m.markProcessed(false)
		return ErrReleased
	}
	return nil
}

// Release stops playback, releases every resource and ends the loop. It blocks until the loop
// acknowledged or ctx is done. No events are published once Release returns nil.
func (e *Engine) Release(ctx context.Context) error {
	ack := make(chan struct{})
	e.releaseOnce.Do(func() {
		close(e.releaseRequested)
		// The loop drains commands until it handles this one.
		go func() { e.commands <- releaseCommand{ack} }()
	})
	select {
	case <-ack:
		<-e.done
		return nil
	case <-e.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("release: %w", ctx.Err())
	}
}

// Done is closed when the loop has exited.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// post hands cmd to the loop. It reports false once release was requested.
func (e *Engine) post(cmd command) bool {
	select {
	case <-e.releaseRequested:
		return false
	default:
	}
	select {
	case e.commands <- cmd:
		return true
	case <-e.releaseRequested:
		return false
	}
}

// enqueue queues cmd on the inbox. It never blocks, so it is safe from any goroutine,
// including the loop itself.
func (e *Engine) enqueue(cmd command) {
	select {
	case <-e.releaseRequested:
		return
	default:
	}
	e.inboxMu.Lock()
	e.inbox = append(e.inbox, cmd)
	e.inboxMu.Unlock()
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) drainInbox() []command {
	e.inboxMu.Lock()
	defer e.inboxMu.Unlock()
	cmds := e.inbox
	e.inbox = nil
	return cmds
}

// callbacks receives notifications from collaborators and forwards them to the loop.
type callbacks struct {
	e *Engine
}

func (c *callbacks) OnSourceInfoRefreshed(src source.MediaSource, tl *timeline.Timeline, manifest any) {
	c.e.enqueue(sourceRefreshedCommand{source: src, timeline: tl, manifest: manifest})
}

func (c *callbacks) OnPrepared(period source.MediaPeriod) {
	c.e.enqueue(periodPreparedCommand{period})
}

func (c *callbacks) OnContinueLoadingRequested(period source.MediaPeriod) {
	c.e.enqueue(continueLoadingCommand{period})
}

func (c *callbacks) OnTrackSelectionsInvalidated() {
	c.e.enqueue(tracksInvalidatedCommand{})
}

func (c *callbacks) onPlaybackParametersChanged(params clock.PlaybackParameters) {
	c.e.params.Store(&params)
	c.e.enqueue(parametersChangedCommand{params})
}
