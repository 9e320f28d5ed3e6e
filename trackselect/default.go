package trackselect

import (
	"sync"

	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/renderer"
	"github.com/cadence-media/cadence/source"
)

// Parameters constrain the default selector.
type Parameters struct {
	// MaxVideoBitrate caps video when bandwidth is unknown; zero means no cap.
	MaxVideoBitrate   int
	PreferredLanguage string
	// DisabledRenderers lists renderer indices that must stay disabled.
	DisabledRenderers map[int]bool
}

// Default maps every renderer to the first group of its track type it can fully handle.
// Video groups switch adaptively by bandwidth and speed; other types play a single track,
// preferring PreferredLanguage.
type Default struct {
	mu       sync.Mutex
	params   Parameters
	meter    BandwidthMeter
	listener InvalidationListener
}

// NewDefault returns a selector. meter may be nil.
func NewDefault(meter BandwidthMeter) *Default {
	return &Default{meter: meter}
}

func (d *Default) Init(listener InvalidationListener) {
	d.mu.Lock()
	d.listener = listener
	d.mu.Unlock()
}

// Parameters returns the current parameters.
func (d *Default) Parameters() Parameters {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.params
}

// SetParameters replaces the parameters and invalidates earlier selections.
func (d *Default) SetParameters(params Parameters) {
	d.mu.Lock()
	d.params = params
	listener := d.listener
	d.mu.Unlock()

	if listener != nil {
		listener.OnTrackSelectionsInvalidated()
	}
}

// SetRendererDisabled disables or re-enables a renderer.
func (d *Default) SetRendererDisabled(index int, disabled bool) {
	params := d.Parameters()
	next := make(map[int]bool, len(params.DisabledRenderers)+1)
	for k, v := range params.DisabledRenderers {
		next[k] = v
	}
	next[index] = disabled
	params.DisabledRenderers = next
	d.SetParameters(params)
}

func (d *Default) OnSelectionActivated(any) {}

func (d *Default) SelectTracks(renderers []Capabilities, groups []source.TrackGroup) (*Result, error) {
	params := d.Parameters()
	result := EmptyResult(len(renderers))
	used := make([]bool, len(groups))

	for i, r := range renderers {
		if params.DisabledRenderers[i] {
			continue
		}
		if r.TrackType() == constant.TrackTypeNone {
			config := renderer.DefaultConfiguration
			result.Configurations[i] = &config
			continue
		}

		for gi, group := range groups {
			if used[gi] || group.TrackType() != r.TrackType() {
				continue
			}
			indices := supported(r, group)
			if len(indices) == 0 {
				continue
			}
			used[gi] = true
			result.Selections[i] = d.selection(group, indices, params)
			config := renderer.DefaultConfiguration
			result.Configurations[i] = &config
			break
		}
	}
	return result, nil
}

func (d *Default) selection(group source.TrackGroup, indices []int, params Parameters) *Selection {
	if group.TrackType() == constant.TrackTypeVideo {
		return NewSelection(group, indices, d.meter, params.MaxVideoBitrate)
	}
	pick := indices[0]
	if params.PreferredLanguage != "" {
		for _, i := range indices {
			if group.Formats[i].Language == params.PreferredLanguage {
				pick = i
				break
			}
		}
	}
	return NewSelection(group, []int{pick}, nil, 0)
}

func supported(r Capabilities, group source.TrackGroup) []int {
	var indices []int
	for i, f := range group.Formats {
		if r.SupportsFormat(f) == renderer.FormatHandled {
			indices = append(indices, i)
		}
	}
	return indices
}
