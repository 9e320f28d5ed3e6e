package tui

import (
	"errors"
	"testing"

	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/engine"
	"github.com/cadence-media/cadence/internal/ui"
	"github.com/cadence-media/cadence/player"
	"github.com/cadence-media/cadence/timeline"
	tea "github.com/charmbracelet/bubbletea"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeController struct {
	state         engine.State
	playWhenReady bool
	positionMs    int64
	durationMs    int64
	playingAd     bool
	repeat        timeline.RepeatMode
	shuffle       bool
	seeks         []int64
	listeners     []player.Listener
}

func (f *fakeController) State() engine.State                 { return f.state }
func (f *fakeController) PlayWhenReady() bool                 { return f.playWhenReady }
func (f *fakeController) SetPlayWhenReady(v bool)             { f.playWhenReady = v }
func (f *fakeController) CurrentWindowIndex() int             { return 0 }
func (f *fakeController) CurrentPosition() int64              { return f.positionMs }
func (f *fakeController) BufferedPosition() int64             { return f.positionMs }
func (f *fakeController) Duration() int64                     { return f.durationMs }
func (f *fakeController) IsPlayingAd() bool                   { return f.playingAd }
func (f *fakeController) Timeline() *timeline.Timeline        { return nil }
func (f *fakeController) RepeatMode() timeline.RepeatMode     { return f.repeat }
func (f *fakeController) SetRepeatMode(m timeline.RepeatMode) { f.repeat = m }
func (f *fakeController) ShuffleModeEnabled() bool            { return f.shuffle }
func (f *fakeController) SetShuffleModeEnabled(v bool)        { f.shuffle = v }
func (f *fakeController) AddListener(l player.Listener)       { f.listeners = append(f.listeners, l) }
func (f *fakeController) RemoveListener(l player.Listener)    { f.listeners = nil }
func (f *fakeController) SeekTo(_ int, positionMs int64) error {
	f.seeks = append(f.seeks, positionMs)
	f.positionMs = positionMs
	return nil
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestBubble(t *testing.T) {
	Convey("Given a monitor over a ready player", t, func() {
		c := &fakeController{state: engine.StateReady, positionMs: 2_000, durationMs: 10_000}
		b := newBubble(c, &Options{Title: "clip"})

		Convey("Then it listens to the player until detached", func() {
			So(c.listeners, ShouldHaveLength, 1)
			b.detach()
			So(c.listeners, ShouldBeEmpty)
		})

		Convey("When space is pressed", func() {
			b.Update(keyMsg(" "))

			Convey("Then playback is toggled", func() {
				So(c.playWhenReady, ShouldBeTrue)
				b.Update(keyMsg(" "))
				So(c.playWhenReady, ShouldBeFalse)
			})
		})

		Convey("When seeking with the arrows", func() {
			b.Update(keyMsg("left"))
			b.Update(keyMsg("left"))
			b.Update(keyMsg("right"))

			Convey("Then the position is clamped to the window", func() {
				So(c.seeks, ShouldResemble, []int64{0, 0, 5_000})
			})
		})

		Convey("When seeking past the end", func() {
			c.positionMs = 8_000
			b.Update(keyMsg("right"))

			Convey("Then the seek stops at the duration", func() {
				So(c.seeks, ShouldResemble, []int64{10_000})
			})
		})

		Convey("When an ad is playing", func() {
			c.playingAd = true
			cmd := b.seekBy(seekStepMs)

			Convey("Then seeking is refused with a notification", func() {
				So(c.seeks, ShouldBeEmpty)
				So(cmd(), ShouldEqual, ui.NotificationMsg("cannot seek during an ad"))
			})
		})

		Convey("When the repeat key is pressed", func() {
			b.Update(keyMsg("r"))

			Convey("Then the repeat mode cycles", func() {
				So(c.repeat, ShouldEqual, timeline.RepeatOne)
				b.Update(keyMsg("r"))
				So(c.repeat, ShouldEqual, timeline.RepeatAll)
				b.Update(keyMsg("r"))
				So(c.repeat, ShouldEqual, timeline.RepeatOff)
			})
		})

		Convey("When the shuffle key is pressed", func() {
			b.Update(keyMsg("s"))

			Convey("Then shuffle is enabled", func() {
				So(c.shuffle, ShouldBeTrue)
			})
		})

		Convey("When playback ended and the monitor quits on end", func() {
			b.options.QuitOnEnd = true
			c.state = engine.StateEnded
			_, cmd := b.Update(tickMsg{})

			Convey("Then the program quits", func() {
				So(cmd(), ShouldResemble, tea.Quit())
			})
		})

		Convey("When an error is reported", func() {
			b.Update(errorMsg{err: errors.New("boom")})

			Convey("Then it is shown", func() {
				So(b.View(), ShouldContainSubstring, "boom")
			})
		})

		Convey("When rendered", func() {
			b.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
			view := b.View()

			Convey("Then the title, state and times are shown", func() {
				So(view, ShouldContainSubstring, "clip")
				So(view, ShouldContainSubstring, "READY")
				So(view, ShouldContainSubstring, "0:02 / 0:10")
			})
		})
	})
}

func TestFraction(t *testing.T) {
	Convey("Given positions and durations", t, func() {
		Convey("Then the played share is clamped", func() {
			So(fraction(5, 10), ShouldEqual, 0.5)
			So(fraction(20, 10), ShouldEqual, 1)
			So(fraction(5, constant.TimeUnset), ShouldEqual, 0)
		})
	})
}

func TestBridge(t *testing.T) {
	Convey("Given a bridge", t, func() {
		b := &bridge{messages: make(chan tea.Msg, 1)}

		Convey("When more callbacks arrive than it buffers", func() {
			b.OnStateChanged(true, engine.StateReady)
			b.OnPositionDiscontinuity(engine.DiscontinuitySeek)

			Convey("Then the extra ones are dropped", func() {
				So(<-b.messages, ShouldResemble, stateMsg{})
				So(b.messages, ShouldBeEmpty)
			})
		})
	})
}
