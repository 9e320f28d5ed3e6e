package tui

import (
	"fmt"

	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/engine"
	"github.com/cadence-media/cadence/internal/ui"
	"github.com/cadence-media/cadence/timeline"
	"github.com/cadence-media/cadence/util"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/lo"
)

func (b *bubble) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.resize(msg.Width, msg.Height)
		return b, nil
	case tea.KeyMsg:
		return b, b.handleKey(msg)
	case tickMsg:
		if b.options.QuitOnEnd && b.controller.State() == engine.StateEnded {
			return b, tea.Quit
		}
		return b, tick()
	case stateMsg:
		return b, b.listen()
	case discontinuityMsg:
		reason := engine.DiscontinuityReason(msg)
		if reason == engine.DiscontinuityAdInsertion {
			return b, tea.Batch(b.listen(), ui.Notify(lo.Ternary(b.controller.IsPlayingAd(), "ad break", "back to content")))
		}
		return b, b.listen()
	case errorMsg:
		b.lastError = msg.err
		return b, tea.Batch(b.listen(), ui.Notify(msg.err.Error()))
	case progress.FrameMsg:
		model, cmd := b.progressC.Update(msg)
		b.progressC = model.(progress.Model)
		return b, cmd
	}

	return b, b.notifier.Update(msg)
}

func (b *bubble) resize(width, height int) {
	b.width, b.height = width, height
	b.progressC.Width = util.Max(10, width-paddingX*2)
	b.helpC.Width = width
}

func (b *bubble) handleKey(msg tea.KeyMsg) tea.Cmd {
	c := b.controller

	switch {
	case key.Matches(msg, b.keymap.forceQuit), key.Matches(msg, b.keymap.quit):
		return tea.Quit
	case key.Matches(msg, b.keymap.showHelp):
		b.helpC.ShowAll = !b.helpC.ShowAll
	case key.Matches(msg, b.keymap.playPause):
		c.SetPlayWhenReady(!c.PlayWhenReady())
	case key.Matches(msg, b.keymap.seekBack):
		return b.seekBy(-seekStepMs)
	case key.Matches(msg, b.keymap.seekForward):
		return b.seekBy(seekStepMs)
	case key.Matches(msg, b.keymap.repeat):
		next := nextRepeatMode(c.RepeatMode())
		c.SetRepeatMode(next)
		return ui.Notify("repeat " + next.String())
	case key.Matches(msg, b.keymap.shuffle):
		enabled := !c.ShuffleModeEnabled()
		c.SetShuffleModeEnabled(enabled)
		return ui.Notify(lo.Ternary(enabled, "shuffle on", "shuffle off"))
	}
	return nil
}

// seekBy moves the position by deltaMs within the current window.
func (b *bubble) seekBy(deltaMs int64) tea.Cmd {
	c := b.controller
	if c.IsPlayingAd() {
		return ui.Notify("cannot seek during an ad")
	}

	target := util.Max(0, c.CurrentPosition()+deltaMs)
	if duration := c.Duration(); duration != constant.TimeUnset {
		target = util.Min(target, duration)
	}
	if err := c.SeekTo(c.CurrentWindowIndex(), target); err != nil {
		return ui.Notify(fmt.Sprintf("seek failed: %v", err))
	}
	return nil
}

func nextRepeatMode(mode timeline.RepeatMode) timeline.RepeatMode {
	switch mode {
	case timeline.RepeatOff:
		return timeline.RepeatOne
	case timeline.RepeatOne:
		return timeline.RepeatAll
	default:
		return timeline.RepeatOff
	}
}
