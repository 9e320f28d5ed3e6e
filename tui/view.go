package tui

import (
	"fmt"
	"strings"

	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/icon"
	"github.com/cadence-media/cadence/style"
	"github.com/cadence-media/cadence/util"
	"github.com/muesli/reflow/wordwrap"
)

const paddingX = 2

func (b *bubble) View() string {
	c := b.controller
	state := c.State()
	playWhenReady := c.PlayWhenReady()

	var lines []string

	title := b.options.Title
	if title == "" {
		title = "cadence"
	}
	lines = append(lines, style.Title(title), "")

	status := fmt.Sprintf("%s %s", icon.Get(icon.ForState(state.String(), playWhenReady)), style.State(state.String()))
	if c.IsPlayingAd() {
		status += " " + style.Bold("AD")
	}
	lines = append(lines, status)

	position := c.CurrentPosition()
	duration := c.Duration()
	lines = append(lines, b.progressC.ViewAs(fraction(position, duration)))
	lines = append(lines, fmt.Sprintf(
		"%s / %s %s",
		util.FormatUs(constant.MsToUs(position)),
		util.FormatUs(constant.MsToUs(duration)),
		style.Faint(fmt.Sprintf("(buffered %s)", util.FormatUs(constant.MsToUs(c.BufferedPosition())))),
	))

	modes := []string{fmt.Sprintf("%s repeat %s", icon.Get(icon.Repeat), c.RepeatMode())}
	if c.ShuffleModeEnabled() {
		modes = append(modes, icon.Get(icon.Shuffle)+" shuffle")
	}
	if tl := c.Timeline(); tl != nil && tl.WindowCount() > 1 {
		modes = append(modes, fmt.Sprintf("window %d/%d", c.CurrentWindowIndex()+1, tl.WindowCount()))
	}
	lines = append(lines, style.Faint(strings.Join(modes, "  ")))

	if b.lastError != nil {
		lines = append(lines, "", style.ErrorTitle("Error")+" "+b.wrap(b.lastError.Error()))
	}

	lines = append(lines, "", b.helpC.View(b.keymap))

	return b.pad(b.notifier.View(strings.Join(lines, "\n")))
}

func (b *bubble) wrap(s string) string {
	if b.width <= paddingX*2 {
		return s
	}
	return wordwrap.String(s, b.width-paddingX*2)
}

func (b *bubble) pad(s string) string {
	padding := strings.Repeat(" ", paddingX)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padding + line
	}
	return "\n" + strings.Join(lines, "\n")
}

// fraction is the played share of duration, or 0 when the duration is unknown.
func fraction(positionMs, durationMs int64) float64 {
	if durationMs == constant.TimeUnset || durationMs <= 0 {
		return 0
	}
	return util.Clamp(float64(positionMs)/float64(durationMs), 0, 1)
}
