// Package tui provides a terminal monitor for a playing player.
package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
)

// Options encapsulates the runtime configuration for the terminal user interface.
type Options struct {
	// Title is shown above the progress bar.
	Title string
	// QuitOnEnd leaves the program once playback ended.
	QuitOnEnd bool
}

// Run shows the monitor for c until the user quits or ctx is done.
func Run(ctx context.Context, c Controller, options *Options) error {
	b := newBubble(c, options)
	defer b.detach()

	_, err := tea.NewProgram(b, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
