package tui

import (
	"time"

	"github.com/cadence-media/cadence/engine"
	"github.com/cadence-media/cadence/internal/ui"
	"github.com/cadence-media/cadence/player"
	"github.com/cadence-media/cadence/timeline"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	refreshInterval = 200 * time.Millisecond
	seekStepMs      = 5_000
)

// Controller is the part of a player.Player the monitor drives.
type Controller interface {
	State() engine.State
	PlayWhenReady() bool
	SetPlayWhenReady(playWhenReady bool)
	CurrentWindowIndex() int
	CurrentPosition() int64
	BufferedPosition() int64
	Duration() int64
	IsPlayingAd() bool
	Timeline() *timeline.Timeline
	RepeatMode() timeline.RepeatMode
	SetRepeatMode(mode timeline.RepeatMode)
	ShuffleModeEnabled() bool
	SetShuffleModeEnabled(enabled bool)
	SeekTo(windowIndex int, positionMs int64) error
	AddListener(l player.Listener)
	RemoveListener(l player.Listener)
}

type (
	tickMsg          time.Time
	stateMsg         struct{}
	discontinuityMsg engine.DiscontinuityReason
	errorMsg         struct{ err error }
)

// bridge turns player callbacks into bubbletea messages.
type bridge struct {
	player.BaseListener
	messages chan tea.Msg
}

func (b *bridge) send(msg tea.Msg) {
	select {
	case b.messages <- msg:
	default:
	}
}

func (b *bridge) OnStateChanged(bool, engine.State) { b.send(stateMsg{}) }

func (b *bridge) OnPositionDiscontinuity(reason engine.DiscontinuityReason) {
	b.send(discontinuityMsg(reason))
}

func (b *bridge) OnPlayerError(err *engine.PlaybackError) { b.send(errorMsg{err}) }

// bubble is the monitor model.
type bubble struct {
	controller Controller
	options    *Options
	bridge     *bridge

	keymap    *keymap
	progressC progress.Model
	helpC     help.Model
	notifier  *ui.Model

	lastError     error
	width, height int
}

func newBubble(c Controller, options *Options) *bubble {
	if options == nil {
		options = &Options{}
	}
	b := &bubble{
		controller: c,
		options:    options,
		bridge:     &bridge{messages: make(chan tea.Msg, 64)},
		keymap:     newKeymap(),
		progressC:  progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		helpC:      help.New(),
		notifier:   &ui.Model{},
	}
	c.AddListener(b.bridge)
	return b
}

func (b *bubble) detach() {
	b.controller.RemoveListener(b.bridge)
}

func (b *bubble) Init() tea.Cmd {
	return tea.Batch(tick(), b.listen())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// listen waits for the next player callback.
func (b *bubble) listen() tea.Cmd {
	return func() tea.Msg {
		return <-b.bridge.messages
	}
}
