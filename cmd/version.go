package cmd

import (
	"os"
	"runtime"
	"strings"
	"text/template"

	"github.com/cadence-media/cadence/color"
	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/style"
	"github.com/cadence-media/cadence/version"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.SetOut(os.Stdout)
	versionCmd.Flags().BoolP("short", "s", false, "Only print the version")
	versionCmd.Flags().StringP("at-least", "a", "", "Exit with an error unless the version is at least this")
}

// modules are the parts a full build carries.
var modules = []string{
	"cadence.engine",
	"cadence.player",
	"cadence.synthetic",
	"cadence.script",
	"cadence.metrics",
	"cadence.network",
	"cadence.tui",
}

var versionTemplate = `{{ magenta "▇▇▇" }} {{ magenta .App }}

  {{ faint "Version" }}         {{ bold .Version }}
  {{ faint "Git Commit" }}      {{ bold .Revision }}
  {{ faint "Build Date" }}      {{ bold .BuiltAt }}
  {{ faint "Built By" }}        {{ bold .BuiltBy }}
  {{ faint "Platform" }}        {{ bold .OS }}/{{ bold .Arch }}
  {{ faint "Modules" }}         {{ bold .Modules }}
`

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and build information",
	Run: func(cmd *cobra.Command, args []string) {
		if minimum := lo.Must(cmd.Flags().GetString("at-least")); minimum != "" {
			ok, err := version.AtLeast(constant.Version, minimum)
			handleErr(err)
			if !ok {
				cmd.PrintErrf("%s is older than %s\n", constant.Version, minimum)
				os.Exit(1)
			}
		}

		if lo.Must(cmd.Flags().GetBool("short")) {
			cmd.Println(constant.Version)
			return
		}

		registry := version.NewRegistry()
		for _, m := range modules {
			registry.Register(m)
		}

		versionInfo := struct {
			Version  string
			OS       string
			Arch     string
			BuiltAt  string
			BuiltBy  string
			Revision string
			App      string
			Modules  string
		}{
			Version:  constant.Version,
			App:      constant.App,
			OS:       runtime.GOOS,
			Arch:     runtime.GOARCH,
			BuiltAt:  strings.TrimSpace(constant.BuiltAt),
			BuiltBy:  constant.BuiltBy,
			Revision: constant.Revision,
			Modules:  strings.Join(registry.Modules(), ", "),
		}

		t, err := template.New("version").Funcs(map[string]any{
			"faint":   style.Faint,
			"bold":    style.Bold,
			"magenta": style.Fg(color.Purple),
		}).Parse(versionTemplate)
		handleErr(err)
		handleErr(t.Execute(cmd.OutOrStdout(), versionInfo))
	},
}
