// Package script builds timelines from Lua scripts.
//
// A script defines a global function Timeline returning a list of windows:
//
//	MinVersion = "0.3.0"
//
//	function Timeline()
//	  return {
//	    {
//	      id = "intro",
//	      seekable = true,
//	      periods = {
//	        { duration_ms = 30000, ads = { { time_ms = 0, count = 1, duration_ms = 5000 } } },
//	      },
//	    },
//	  }
//	end
package script

import (
	"fmt"

	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/filesystem"
	"github.com/cadence-media/cadence/log"
	"github.com/cadence-media/cadence/timeline"
	"github.com/cadence-media/cadence/util"
	"github.com/cadence-media/cadence/version"
	libs "github.com/metafates/mangal-lua-libs"
	lua "github.com/yuin/gopher-lua"
)

const (
	// TimelineFn is the function a script must define.
	TimelineFn = "Timeline"
	// MinVersionVar optionally holds the lowest application version the script runs on.
	MinVersionVar = "MinVersion"
	// Extension of script files.
	Extension = ".lua"
)

// Load runs the script at path and returns the timeline it describes.
func Load(path string) (*timeline.Timeline, error) {
	contents, err := filesystem.API().ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	return Run(util.FileStem(path), path, contents)
}

// Run executes contents as the script called name. path identifies the compiled chunk in the cache.
func Run(name, path string, contents []byte) (*timeline.Timeline, error) {
	state := lua.NewState()
	defer state.Close()
	libs.Preload(state)

	proto, err := compile(path, contents)
	if err != nil {
		return nil, err
	}

	state.Push(state.NewFunctionFromProto(proto))
	if err := state.PCall(0, lua.MultRet, nil); err != nil {
		return nil, fmt.Errorf("running %s: %w", name, err)
	}

	if err := checkVersion(state); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	fn := state.GetGlobal(TimelineFn)
	if fn.Type() != lua.LTFunction {
		return nil, fmt.Errorf("function %s is required but not defined in %s", TimelineFn, name)
	}

	if err := state.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}); err != nil {
		return nil, fmt.Errorf("calling %s in %s: %w", TimelineFn, name, err)
	}
	ret := state.Get(-1)
	state.Pop(1)

	table, ok := ret.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%s in %s returned %s, expected a table", TimelineFn, name, ret.Type())
	}

	tl, err := toTimeline(name, table)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	log.Infof("script %s built %d window(s)", name, tl.WindowCount())
	return tl, nil
}

func checkVersion(state *lua.LState) error {
	value := state.GetGlobal(MinVersionVar)
	if value.Type() == lua.LTNil {
		return nil
	}

	ok, err := version.AtLeast(constant.Version, value.String())
	if err != nil {
		return fmt.Errorf("invalid %s: %w", MinVersionVar, err)
	}
	if !ok {
		return fmt.Errorf("requires version %s or newer, running %s", value.String(), constant.Version)
	}
	return nil
}
