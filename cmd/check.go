package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/cadence-media/cadence/color"
	"github.com/cadence-media/cadence/icon"
	"github.com/cadence-media/cadence/key"
	"github.com/cadence-media/cadence/loadcontrol"
	"github.com/cadence-media/cadence/script"
	"github.com/cadence-media/cadence/style"
	"github.com/cadence-media/cadence/synthetic"
	"github.com/cadence-media/cadence/timeline"
	"github.com/cadence-media/cadence/where"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

// check is a named health check.
type check struct {
	name string
	run  func() error
}

func checks() []check {
	list := []check{
		{"repeat mode", func() error {
			_, err := timeline.ParseRepeatMode(viper.GetString(key.PlayerRepeatMode))
			return err
		}},
		{"buffer thresholds", func() error {
			opts := loadcontrol.OptionsFromConfig()
			if opts.MinBuffer > opts.MaxBuffer {
				return fmt.Errorf("%s is above %s", key.BufferMinMs, key.BufferMaxMs)
			}
			if opts.BufferForPlayback > opts.MinBuffer || opts.BufferForRebuffer > opts.MinBuffer {
				return fmt.Errorf("playback thresholds exceed %s and will be clamped", key.BufferMinMs)
			}
			return nil
		}},
	}

	for _, name := range synthetic.Presets() {
		list = append(list, check{"preset " + name, func() error {
			_, err := synthetic.Preset(name)
			return err
		}})
	}

	for _, name := range scriptNames() {
		path := filepath.Join(where.Scripts(), name+script.Extension)
		list = append(list, check{"script " + name, func() error {
			_, err := script.Load(path)
			return err
		}})
	}
	return list
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the configuration, presets and scripts",
	Run: func(cmd *cobra.Command, args []string) {
		var failed []string

		for _, c := range checks() {
			if err := c.run(); err != nil {
				failed = append(failed, c.name)
				fmt.Printf("%s %s %s\n", icon.Get(icon.Fail), c.name, style.Faint(err.Error()))
				continue
			}
			fmt.Printf("%s %s\n", icon.Get(icon.Success), c.name)
		}

		if len(failed) == 0 {
			return
		}

		box := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(color.HiRed).
			Padding(0, 2).
			Margin(1, 0)
		fmt.Println(box.Render(fmt.Sprintf("%d check(s) failed", len(failed))))
		handleErr(fmt.Errorf("failed: %v", failed))
	},
}
