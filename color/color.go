// Package color holds the terminal palette shared by CLI output and the playback monitor.
package color

import "github.com/charmbracelet/lipgloss"

// New wraps a color value for lipgloss.
func New(value string) lipgloss.Color {
	return lipgloss.Color(value)
}

// ANSI 8-color palette.
var (
	Red    = New("1")
	Green  = New("2")
	Yellow = New("3")
	Blue   = New("4")
	Purple = New("5")
	Cyan   = New("6")
	White  = New("7")
	Black  = New("8")
)

// High-intensity extension.
var (
	HiRed    = New("9")
	HiGreen  = New("10")
	HiYellow = New("11")
	HiBlue   = New("12")
	HiPurple = New("13")
	HiCyan   = New("14")
)

// Monitor palette.
var (
	Surface  = New("#313244")
	Overlay  = New("#6c7086")
	Text     = New("#cdd6f4")
	Mauve    = New("#cba6f7")
	Peach    = New("#fab387")
	Teal     = New("#94e2d5")
	Sapphire = New("#74c7ec")
	Rose     = New("#f38ba8")
	Lime     = New("#a6e3a1")
)

// Colors of the four playback states, indexed by their names.
var (
	Idle      = Overlay
	Buffering = Peach
	Ready     = Lime
	Ended     = Sapphire
)
