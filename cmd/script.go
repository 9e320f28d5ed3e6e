package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cadence-media/cadence/color"
	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/filesystem"
	"github.com/cadence-media/cadence/icon"
	"github.com/cadence-media/cadence/script"
	"github.com/cadence-media/cadence/style"
	"github.com/cadence-media/cadence/timeline"
	"github.com/cadence-media/cadence/util"
	"github.com/cadence-media/cadence/where"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(scriptCmd)
}

var scriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Create and try Lua timeline scripts",
}

func init() {
	scriptCmd.AddCommand(scriptNewCmd)
	scriptNewCmd.Flags().BoolP("force", "f", false, "Overwrite an existing script")
}

var scriptNewCmd = &cobra.Command{
	Use:   "new [name]",
	Short: "Create a script in the scripts directory from a template",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := strings.TrimSuffix(args[0], script.Extension)
		target := filepath.Join(where.Scripts(), name+script.Extension)

		exists, err := filesystem.API().Exists(target)
		handleErr(err)
		if exists && !lo.Must(cmd.Flags().GetBool("force")) {
			handleErr(fmt.Errorf("%s already exists, use --force to overwrite it", target))
		}

		handleErr(filesystem.API().WriteFile(target, []byte(script.Template(name)), 0o644))
		fmt.Printf("%s created %s\n", icon.Get(icon.Success), style.Fg(color.Yellow)(target))
	},
}

func init() {
	scriptCmd.AddCommand(scriptRunCmd)
	scriptRunCmd.SetOut(os.Stdout)
}

var scriptRunCmd = &cobra.Command{
	Use:               "run [script]",
	Short:             "Run a script and print the timeline it builds",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completionMedia,
	Run: func(cmd *cobra.Command, args []string) {
		m, err := resolveMedia(args[0])
		handleErr(err)
		if !m.IsScript {
			handleErr(fmt.Errorf("%s is a preset, not a script", m.Name))
		}

		tl, err := m.timeline()
		handleErr(err)
		cmd.Print(describeTimeline(tl))
	},
}

// describeTimeline renders the windows, periods and ad groups of tl.
func describeTimeline(tl *timeline.Timeline) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", icon.Get(icon.Lua), style.Bold(util.Quantify(tl.WindowCount(), "window", "windows")))

	for wi := 0; wi < tl.WindowCount(); wi++ {
		w := tl.Window(wi)
		var flags []string
		if w.Seekable {
			flags = append(flags, "seekable")
		}
		if w.Dynamic {
			flags = append(flags, "dynamic")
		}
		fmt.Fprintf(&b, "  %s %s %s\n", style.Fg(color.Purple)(w.ID), util.FormatUs(w.DurationUs), style.Faint(strings.Join(flags, " ")))

		for pi := w.FirstPeriodIndex; pi <= w.LastPeriodIndex; pi++ {
			p := tl.Period(pi)
			fmt.Fprintf(&b, "    %s %s\n", p.UID, util.FormatUs(p.DurationUs))
			for gi := 0; gi < p.Ads.GroupCount(); gi++ {
				at := p.Ads.GroupTimesUs[gi]
				label := lo.Ternary(at == constant.TimeEndOfSource, "postroll", "at "+util.FormatUs(at))
				fmt.Fprintf(&b, "      %s %s\n", style.Faint("ads "+label), util.Quantify(p.Ads.Groups[gi].Count, "ad", "ads"))
			}
		}
	}
	return b.String()
}
