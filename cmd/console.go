package cmd

import (
	"fmt"

	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/engine"
	"github.com/cadence-media/cadence/icon"
	"github.com/cadence-media/cadence/player"
	"github.com/cadence-media/cadence/style"
	"github.com/cadence-media/cadence/timeline"
	"github.com/cadence-media/cadence/util"
)

// console prints player callbacks for the headless play command.
type console struct {
	player.BaseListener
	player *player.Player
	ended  chan struct{}
	failed chan error
}

func newConsole(p *player.Player) *console {
	return &console{
		player: p,
		ended:  make(chan struct{}, 1),
		failed: make(chan error, 1),
	}
}

func (c *console) position() string {
	return util.FormatUs(constant.MsToUs(c.player.CurrentPosition())) + "/" +
		util.FormatUs(constant.MsToUs(c.player.Duration()))
}

func (c *console) OnStateChanged(playWhenReady bool, state engine.State) {
	fmt.Printf("%s %s %s\n", icon.Get(icon.ForState(state.String(), playWhenReady)), style.State(state.String()), style.Faint(c.position()))
	if state == engine.StateEnded {
		select {
		case c.ended <- struct{}{}:
		default:
		}
	}
}

func (c *console) OnPositionDiscontinuity(reason engine.DiscontinuityReason) {
	fmt.Printf("  %s %s\n", style.Faint(reason.String()), style.Faint(c.position()))
}

func (c *console) OnTimelineChanged(tl *timeline.Timeline, _ any) {
	if tl == nil {
		return
	}
	fmt.Printf("  %s\n", style.Faint(fmt.Sprintf("timeline with %d window(s)", tl.WindowCount())))
}

func (c *console) OnPlayerError(err *engine.PlaybackError) {
	select {
	case c.failed <- err:
	default:
	}
}
