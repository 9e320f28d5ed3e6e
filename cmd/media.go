package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cadence-media/cadence/filesystem"
	"github.com/cadence-media/cadence/query"
	"github.com/cadence-media/cadence/script"
	"github.com/cadence-media/cadence/synthetic"
	"github.com/cadence-media/cadence/timeline"
	"github.com/cadence-media/cadence/util"
	"github.com/cadence-media/cadence/where"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// media is something the player can play: a preset or a Lua script.
type media struct {
	Name     string
	Path     string
	IsScript bool
}

func (m media) timeline() (*timeline.Timeline, error) {
	if m.IsScript {
		return script.Load(m.Path)
	}
	return synthetic.Preset(m.Name)
}

// resolveMedia finds a preset, a script in the scripts directory or a script file called name.
func resolveMedia(name string) (media, error) {
	if synthetic.IsPreset(name) {
		return media{Name: name}, nil
	}

	candidates := []string{name}
	if !strings.HasSuffix(name, script.Extension) {
		candidates = append(candidates, filepath.Join(where.Scripts(), name+script.Extension))
	}
	for _, path := range candidates {
		if exists, _ := filesystem.API().Exists(path); exists {
			return media{Name: util.FileStem(path), Path: path, IsScript: true}, nil
		}
	}

	msg := fmt.Sprintf("unknown preset or script %q", name)
	if suggestion, ok := query.Suggest(name).Get(); ok {
		msg += fmt.Sprintf(", did you mean %s?", suggestion)
	}
	return media{}, fmt.Errorf("%s", msg)
}

// scriptNames lists the scripts in the scripts directory.
func scriptNames() []string {
	files, err := filesystem.API().ReadDir(where.Scripts())
	if err != nil {
		return nil
	}
	return lo.FilterMap(files, func(f os.FileInfo, _ int) (string, bool) {
		if f.IsDir() || filepath.Ext(f.Name()) != script.Extension {
			return "", false
		}
		return util.FileStem(f.Name()), true
	})
}

// completionMedia suggests remembered media first, then presets and scripts.
func completionMedia(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	known := append(synthetic.Presets(), scriptNames()...)
	return lo.Uniq(append(query.SuggestMany(toComplete), known...)), cobra.ShellCompDirectiveDefault
}
