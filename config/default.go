// Package config provides centralized management for application settings, defaults, and the Viper-based configuration engine.
package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"text/template"

	"github.com/cadence-media/cadence/color"
	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/key"
	"github.com/cadence-media/cadence/style"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// Field represents a configuration field definition.
type Field struct {
	Key         string
	Value       any
	Description string
}

// Pretty returns a colored string representation of the field for display.
func (f *Field) Pretty() string {
	var b strings.Builder
	lo.Must0(prettyTemplate.Execute(&b, f))
	return b.String()
}

// Env returns the environment variable name for this field.
func (f *Field) Env() string {
	env := strings.ToUpper(EnvKeyReplacer.Replace(f.Key))
	prefix := strings.ToUpper(constant.App + "_")
	if strings.HasPrefix(env, prefix) {
		return env
	}
	return prefix + env
}

// MarshalJSON customizes JSON output to include current and default values.
func (f *Field) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Key         string `json:"key"`
		Value       any    `json:"value"`
		Default     any    `json:"default"`
		Description string `json:"description"`
		Type        string `json:"type"`
	}{
		Key:         f.Key,
		Value:       viper.Get(f.Key),
		Default:     f.Value,
		Description: f.Description,
		Type:        f.typeName(),
	})
}

func (f *Field) typeName() string {
	switch f.Value.(type) {
	case string:
		return "string"
	case int:
		return "int"
	case int64:
		return "int64"
	case float64:
		return "float64"
	case bool:
		return "bool"
	case []string:
		return "[]string"
	default:
		return "unknown"
	}
}

// Default holds the map of all configuration fields.
var Default = make(map[string]Field)

// EnvExposed holds keys that are bound to environment variables.
var EnvExposed []string

func init() {
	register := func(k string, v any, desc string) {
		if _, exists := Default[k]; exists {
			panic("Duplicate config key: " + k)
		}
		Default[k] = Field{Key: k, Value: v, Description: desc}
		EnvExposed = append(EnvExposed, k)
	}

	register(key.LogsWrite, false, "Write logs")
	register(key.LogsLevel, "info", "Available options are: (from less to most verbose)\npanic, fatal, error, warn, info, debug, trace")
	register(key.LogsJson, false, "Use json format for logs")
	register(key.CliColored, true, "Enable colored CLI output")
	register(key.IconsVariant, "plain", "Icons variant.\nAvailable options are: emoji, kaomoji, plain, squares, nerd (nerd-font required)")

	register(key.BufferMinMs, 15_000, "Minimum duration of media the player will attempt to keep buffered")
	register(key.BufferMaxMs, 50_000, "Maximum duration of media the player will attempt to buffer")
	register(key.BufferPlaybackMs, 2_500, "Duration of media that must be buffered for playback to start after a seek")
	register(key.BufferRebufferMs, 5_000, "Duration of media that must be buffered for playback to resume after a rebuffer")
	register(key.BufferBackBufferMs, 0, "Duration of media to retain behind the playback position")
	register(key.BufferRetainBackBufferFromKeyframe, false, "Retain the back buffer from the previous keyframe instead of the exact position")
	register(key.BufferTargetBytes, -1, "Target buffer size in bytes.\nNegative values derive the target from the enabled renderers")
	register(key.BufferPrioritizeTime, true, "Prioritize buffer time constraints over size constraints")

	register(key.LoaderMinRetryCount, 3, "Number of load retries tolerated before a load error is surfaced")

	register(key.EngineCommandBuffer, 64, "Capacity of the channel carrying commands to the playback loop")
	register(key.EngineEventBuffer, 256, "Capacity of the channel carrying events from the playback loop")

	register(key.PlayerPlayWhenReady, true, "Start playing as soon as enough media is buffered")
	register(key.PlayerRepeatMode, "off", "Repeat mode.\nAvailable options are: off, one, all")
	register(key.PlayerShuffle, false, "Shuffle the windows of the timeline")

	register(key.HistorySavePositions, true, "Save resume positions when playback stops")

	register(key.MetricsEnabled, true, "Collect playback metrics")
	register(key.ServerAddr, "127.0.0.1:7070", "Address the status server listens on when serving")

	register(key.ScriptsCacheBytecode, true, "Cache compiled Lua timeline scripts")
}

var prettyTemplate = lo.Must(template.New("pretty").Funcs(template.FuncMap{
	"faint":    style.Faint,
	"bold":     style.Bold,
	"purple":   style.Fg(color.Purple),
	"blue":     style.Fg(color.Blue),
	"cyan":     style.Fg(color.Cyan),
	"value":    func(k string) any { return viper.Get(k) },
	"typename": func(v any) string { return reflect.TypeOf(v).String() },
	"hl": func(v any) string {
		switch value := v.(type) {
		case bool:
			b := strconv.FormatBool(value)
			if value {
				return style.Fg(color.Green)(b)
			}
			return style.Fg(color.Red)(b)
		case string:
			return style.Fg(color.Yellow)(value)
		default:
			return fmt.Sprint(value)
		}
	},
}).Parse(`{{ faint .Description }}
{{ blue "Key:" }}     {{ purple .Key }}
{{ blue "Env:" }}     {{ .Env }}
{{ blue "Value:" }}   {{ hl (value .Key) }}
{{ blue "Default:" }} {{ hl (.Value) }}
{{ blue "Type:" }}    {{ typename .Value }}`))
