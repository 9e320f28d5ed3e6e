// Package icon renders UI symbols in the variant selected by icons.variant.
//
// Icons can be displayed as emoji, nerd-font glyphs, plain ASCII, kaomoji,
// or Unicode squares depending on user preference.
package icon

import (
	"github.com/cadence-media/cadence/key"
	"github.com/spf13/viper"
)

const (
	emoji   = "emoji"
	nerd    = "nerd"
	plain   = "plain"
	kaomoji = "kaomoji"
	squares = "squares"
)

// AvailableVariants lists the supported variants.
func AvailableVariants() []string {
	return []string{emoji, nerd, plain, kaomoji, squares}
}

// Icon identifies a symbol.
type Icon int

const (
	Play Icon = iota
	Pause
	Buffering
	Ended
	Idle
	Fail
	Success
	Progress
	Lua
	Repeat
	Shuffle
)

type iconDef struct {
	emoji   string
	nerd    string
	plain   string
	kaomoji string
	squares string
}

var icons = map[Icon]*iconDef{
	Play:      {emoji: "▶️", nerd: "", plain: ">", kaomoji: "(ﾉ◕ヮ◕)ﾉ", squares: "▶"},
	Pause:     {emoji: "⏸️", nerd: "", plain: "||", kaomoji: "(-_-)", squares: "⏸"},
	Buffering: {emoji: "⏳", nerd: "", plain: "~", kaomoji: "(・_・;)", squares: "▒"},
	Ended:     {emoji: "🏁", nerd: "", plain: "#", kaomoji: "(＾▽＾)", squares: "■"},
	Idle:      {emoji: "💤", nerd: "", plain: "-", kaomoji: "(－_－) zzZ", squares: "□"},
	Fail:      {emoji: "💀", nerd: "", plain: "x", kaomoji: "(╯°□°）╯︵ ┻━┻", squares: "🟥"},
	Success:   {emoji: "🎉", nerd: "", plain: "v", kaomoji: "(ᵔ◡ᵔ)", squares: "🟩"},
	Progress:  {emoji: "👾", nerd: "", plain: "@", kaomoji: "┐(￣ヘ￣;)┌", squares: "🟦"},
	Lua:       {emoji: "🌙", nerd: "", plain: "lua", kaomoji: "( ˘▽˘)っ旦", squares: "🟪"},
	Repeat:    {emoji: "🔁", nerd: "", plain: "R", kaomoji: "(↻)", squares: "↻"},
	Shuffle:   {emoji: "🔀", nerd: "", plain: "S", kaomoji: "(⤨)", squares: "⤨"},
}

func (d *iconDef) get() string {
	switch viper.GetString(key.IconsVariant) {
	case emoji:
		return d.emoji
	case nerd:
		return d.nerd
	case plain:
		return d.plain
	case kaomoji:
		return d.kaomoji
	case squares:
		return d.squares
	default:
		return ""
	}
}

// Get renders i in the configured variant, or "" for an unknown variant.
func Get(i Icon) string {
	def, ok := icons[i]
	if !ok {
		return ""
	}
	return def.get()
}

// ForState returns the icon of a playback state name.
func ForState(state string, playWhenReady bool) Icon {
	switch state {
	case "BUFFERING":
		return Buffering
	case "READY":
		if playWhenReady {
			return Play
		}
		return Pause
	case "ENDED":
		return Ended
	default:
		return Idle
	}
}
