package script

import (
	"fmt"

	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/timeline"
	"github.com/samber/lo"
	lua "github.com/yuin/gopher-lua"
)

func toTimeline(name string, table *lua.LTable) (*timeline.Timeline, error) {
	var specs []timeline.WindowSpec

	var err error
	forEachTable(table, func(i int, window *lua.LTable) {
		if err != nil {
			return
		}
		var spec timeline.WindowSpec
		spec, err = toWindow(fmt.Sprintf("%s-%d", name, i), window)
		if err != nil {
			err = fmt.Errorf("window %d: %w", i, err)
		}
		specs = append(specs, spec)
	})
	if err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("%s returned no windows", TimelineFn)
	}

	return timeline.Build(specs...)
}

func toWindow(defaultID string, table *lua.LTable) (timeline.WindowSpec, error) {
	spec := timeline.WindowSpec{
		ID:                lo.Ternary(getString(table, "id") != "", getString(table, "id"), defaultID),
		Seekable:          getBool(table, "seekable", true),
		Dynamic:           getBool(table, "dynamic", false),
		DefaultPositionUs: msToUs(table, "default_position_ms", 0),
		DurationUs:        msToUs(table, "duration_ms", 0),
	}

	periods, ok := table.RawGetString("periods").(*lua.LTable)
	if !ok {
		// a window without periods is one period of the window's duration
		durationUs := lo.Ternary(spec.DurationUs == 0, constant.TimeUnset, spec.DurationUs)
		spec.Periods = []timeline.PeriodSpec{{UID: spec.ID, DurationUs: durationUs}}
		return spec, nil
	}

	var err error
	forEachTable(periods, func(i int, period *lua.LTable) {
		if err != nil {
			return
		}
		var ps timeline.PeriodSpec
		ps, err = toPeriod(fmt.Sprintf("%s-%d", spec.ID, i), period)
		if err != nil {
			err = fmt.Errorf("period %d: %w", i, err)
		}
		spec.Periods = append(spec.Periods, ps)
	})
	if err != nil {
		return spec, err
	}
	if len(spec.Periods) == 0 {
		return spec, fmt.Errorf("no periods")
	}
	return spec, nil
}

func toPeriod(defaultUID string, table *lua.LTable) (timeline.PeriodSpec, error) {
	spec := timeline.PeriodSpec{
		UID:        lo.Ternary(getString(table, "id") != "", getString(table, "id"), defaultUID),
		DurationUs: msToUs(table, "duration_ms", constant.TimeUnset),
	}
	if spec.DurationUs != constant.TimeUnset && spec.DurationUs <= 0 {
		return spec, fmt.Errorf("duration_ms must be positive")
	}

	ads, ok := table.RawGetString("ads").(*lua.LTable)
	if !ok {
		return spec, nil
	}

	var (
		times     []int64
		counts    []int
		durations [][]int64
		err       error
	)
	forEachTable(ads, func(i int, group *lua.LTable) {
		if err != nil {
			return
		}
		timeUs := msToUs(group, "time_ms", 0)
		if getBool(group, "postroll", false) || timeUs < 0 {
			timeUs = constant.TimeEndOfSource
		}
		if n := len(times); n > 0 && (times[n-1] == constant.TimeEndOfSource || timeUs <= times[n-1]) {
			err = fmt.Errorf("ad group %d: groups must be ordered by time_ms", i)
			return
		}
		count := getInt(group, "count", 1)
		if count < 1 {
			err = fmt.Errorf("ad group %d: count must be positive", i)
			return
		}
		adDurationUs := msToUs(group, "duration_ms", constant.TimeUnset)

		times = append(times, timeUs)
		counts = append(counts, count)
		durations = append(durations, lo.Times(count, func(int) int64 { return adDurationUs }))
	})
	if err != nil || len(times) == 0 {
		return spec, err
	}

	state := timeline.NewAdPlaybackState(times...)
	for i, count := range counts {
		state = state.WithAdCount(i, count)
	}
	spec.Ads = state.WithAdDurationsUs(durations).WithContentDurationUs(spec.DurationUs)
	return spec, nil
}

// forEachTable calls fn for each table in the array part of t, with 1-based indices.
func forEachTable(t *lua.LTable, fn func(i int, table *lua.LTable)) {
	for i := 1; i <= t.Len(); i++ {
		if table, ok := t.RawGetInt(i).(*lua.LTable); ok {
			fn(i, table)
		}
	}
}

func getString(table *lua.LTable, key string) string {
	val := table.RawGetString(key)
	if val.Type() == lua.LTString {
		return val.String()
	}
	return ""
}

func getBool(table *lua.LTable, key string, def bool) bool {
	val, ok := table.RawGetString(key).(lua.LBool)
	if !ok {
		return def
	}
	return bool(val)
}

func getInt(table *lua.LTable, key string, def int) int {
	val, ok := table.RawGetString(key).(lua.LNumber)
	if !ok {
		return def
	}
	return int(val)
}

// msToUs reads a millisecond number as microseconds, or returns def when it is absent.
func msToUs(table *lua.LTable, key string, def int64) int64 {
	val, ok := table.RawGetString(key).(lua.LNumber)
	if !ok {
		return def
	}
	return int64(float64(val) * 1_000)
}
