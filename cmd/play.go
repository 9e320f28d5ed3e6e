package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/cadence-media/cadence/clock"
	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/engine"
	"github.com/cadence-media/cadence/icon"
	"github.com/cadence-media/cadence/key"
	"github.com/cadence-media/cadence/loadcontrol"
	"github.com/cadence-media/cadence/loader"
	"github.com/cadence-media/cadence/log"
	"github.com/cadence-media/cadence/metrics"
	"github.com/cadence-media/cadence/network"
	"github.com/cadence-media/cadence/player"
	"github.com/cadence-media/cadence/query"
	"github.com/cadence-media/cadence/renderer"
	"github.com/cadence-media/cadence/style"
	"github.com/cadence-media/cadence/synthetic"
	"github.com/cadence-media/cadence/timeline"
	"github.com/cadence-media/cadence/trackselect"
	"github.com/cadence-media/cadence/tui"
	"github.com/cadence-media/cadence/version"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const releaseTimeout = 5 * time.Second

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().Int64P("position", "p", constant.TimeUnset, "Start position in milliseconds")
	playCmd.Flags().IntP("window", "w", 0, "Window to start in")
	playCmd.Flags().String("repeat", "", "Repeat mode: off, one or all")
	lo.Must0(playCmd.RegisterFlagCompletionFunc("repeat", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"off", "one", "all"}, cobra.ShellCompDirectiveNoFileComp
	}))
	playCmd.Flags().Bool("shuffle", false, "Shuffle the windows")
	playCmd.Flags().Float64("speed", 1, "Playback speed")
	playCmd.Flags().BoolP("tui", "t", false, "Show the playback monitor")
	playCmd.Flags().BoolP("serve", "s", false, "Serve status and metrics over HTTP")
	playCmd.Flags().String("addr", "", "Address to serve on, overriding "+key.ServerAddr)
	playCmd.Flags().Duration("duration", 0, "Stop playing after this long")
	playCmd.Flags().BoolP("resume", "r", false, "Resume from the saved position")
	playCmd.Flags().Bool("paused", false, "Prepare without starting playback")

	lo.Must0(viper.BindPFlag(key.PlayerShuffle, playCmd.Flags().Lookup("shuffle")))
}

var playCmd = &cobra.Command{
	Use:               "play [preset|script]",
	Short:             "Play a preset timeline or a Lua timeline script",
	Example:           "  cadence play ads --tui\n  cadence play ./intro.lua --speed 1.5 --serve",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completionMedia,
	Run: func(cmd *cobra.Command, args []string) {
		m, err := resolveMedia(args[0])
		handleErr(err)

		tl, err := m.timeline()
		handleErr(err)
		handleErr(query.Remember(m.Name, 1))

		handleErr(play(cmd, m, tl))
	},
}

// session is one run of the play command.
type session struct {
	media    media
	player   *player.Player
	source   *synthetic.Source
	metrics  *metrics.Engine
	registry *version.Registry
}

func newSession(m media, tl *timeline.Timeline, playWhenReady bool) (*session, error) {
	registry := version.NewRegistry()
	registry.Register("cadence.synthetic")
	if m.IsScript {
		registry.Register("cadence.script")
	}

	var collector *metrics.Engine
	if viper.GetBool(key.MetricsEnabled) {
		collector = metrics.New()
		registry.Register("cadence.metrics")
	}

	meter := synthetic.NewMeter()
	opts := synthetic.DefaultOptions()
	opts.Meter = meter
	opts.Metrics = collector
	src := synthetic.NewSource(tl, opts)

	repeat, err := timeline.ParseRepeatMode(viper.GetString(key.PlayerRepeatMode))
	if err != nil {
		return nil, err
	}

	c := clock.NewSystem()
	p, err := player.New(player.Options{
		Engine: engine.Options{
			Renderers: []renderer.Renderer{
				synthetic.NewAudioRenderer(c),
				synthetic.NewVideoRenderer(1080),
				synthetic.NewTextRenderer(),
			},
			Selector:           trackselect.NewDefault(meter),
			LoadControl:        loadcontrol.FromConfig(loader.NewPriorityTaskManager()),
			Clock:              c,
			PlayWhenReady:      playWhenReady,
			RepeatMode:         repeat,
			ShuffleModeEnabled: viper.GetBool(key.PlayerShuffle),
			Metrics:            collector,
		},
		Registry:      registry,
		SavePositions: viper.GetBool(key.HistorySavePositions),
	})
	if err != nil {
		return nil, err
	}
	p.SetMediaID(m.Name)

	return &session{media: m, player: p, source: src, metrics: collector, registry: registry}, nil
}

func (s *session) status() network.Status {
	p := s.player
	status := network.Status{
		Media:              s.media.Name,
		State:              p.State().String(),
		PlayWhenReady:      p.PlayWhenReady(),
		WindowIndex:        p.CurrentWindowIndex(),
		PeriodIndex:        p.CurrentPeriodIndex(),
		PositionMs:         p.CurrentPosition(),
		BufferedPositionMs: p.BufferedPosition(),
		DurationMs:         p.Duration(),
		PlayingAd:          p.IsPlayingAd(),
		RepeatMode:         p.RepeatMode().String(),
		Shuffle:            p.ShuffleModeEnabled(),
		Speed:              p.PlaybackParameters().Speed,
	}
	if err := p.PlaybackError(); err != nil {
		status.Error = err.Error()
	}
	return status
}

func (s *session) release() {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := s.player.Release(ctx); err != nil {
		log.Warnf("releasing player: %v", err)
	}
}

func play(cmd *cobra.Command, m media, tl *timeline.Timeline) error {
	flags := cmd.Flags()
	playWhenReady := viper.GetBool(key.PlayerPlayWhenReady) && !lo.Must(flags.GetBool("paused"))

	if flags.Changed("repeat") {
		viper.Set(key.PlayerRepeatMode, lo.Must(flags.GetString("repeat")))
	}

	s, err := newSession(m, tl, playWhenReady)
	if err != nil {
		return err
	}
	defer s.release()
	p := s.player

	if speed := lo.Must(flags.GetFloat64("speed")); speed != 1 {
		params, err := clock.NewParameters(speed, 1)
		if err != nil {
			return err
		}
		p.SetPlaybackParameters(params)
	}

	p.Prepare(s.source, true, true)
	if err := seekToStart(cmd, p, m); err != nil {
		return err
	}

	if lo.Must(flags.GetBool("serve")) {
		addr := lo.Must(flags.GetString("addr"))
		if addr == "" {
			addr = viper.GetString(key.ServerAddr)
		}
		server := network.NewServer(addr, s.status, s.metrics)
		if err := server.Start(); err != nil {
			return err
		}
		s.registry.Register("cadence.network")
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			_ = server.Shutdown(ctx)
		}()
		fmt.Printf("%s serving status on http://%s/status\n", icon.Get(icon.Success), server.Addr())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if d := lo.Must(flags.GetDuration("duration")); d > 0 {
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	log.Infof("playing %s with %s", m.Name, s.registry)

	if lo.Must(flags.GetBool("tui")) {
		s.registry.Register("cadence.tui")
		return runMonitor(ctx, p, m)
	}
	return runHeadless(ctx, p)
}

// seekToStart applies --resume, --window and --position.
func seekToStart(cmd *cobra.Command, p *player.Player, m media) error {
	flags := cmd.Flags()
	windowIndex := lo.Must(flags.GetInt("window"))
	positionMs := lo.Must(flags.GetInt64("position"))

	if lo.Must(flags.GetBool("resume")) && !flags.Changed("position") {
		entry, err := player.ResumeEntry(m.Name)
		if err != nil {
			return err
		}
		if e, ok := entry.Get(); ok {
			fmt.Printf("%s resuming %s\n", icon.Get(icon.Progress), style.Faint(e.String()))
			windowIndex, positionMs = e.WindowIndex, constant.UsToMs(e.PositionUs)
		}
	}

	if windowIndex == 0 && positionMs == constant.TimeUnset {
		return nil
	}
	return p.SeekTo(windowIndex, positionMs)
}

func runMonitor(ctx context.Context, p *player.Player, m media) error {
	return tui.Run(ctx, p, &tui.Options{Title: m.Name, QuitOnEnd: true})
}

func runHeadless(ctx context.Context, p *player.Player) error {
	c := newConsole(p)
	p.AddListener(c)
	defer p.RemoveListener(c)

	select {
	case <-c.ended:
		fmt.Printf("%s playback ended\n", icon.Get(icon.Success))
		return nil
	case err := <-c.failed:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			fmt.Printf("%s stopped at %d ms\n", icon.Get(icon.Success), p.CurrentPosition())
		}
		p.Stop(false)
		return nil
	}
}
