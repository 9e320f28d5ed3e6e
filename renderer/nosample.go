package renderer

import (
	"github.com/cadence-media/cadence/constant"
	"github.com/cadence-media/cadence/source"
)

// NoSample is a renderer for tracks without a decodable payload. It consumes no stream and is
// always ready and ended.
type NoSample struct {
	Base
	NopHooks
}

// NewNoSample returns a disabled no-sample renderer.
func NewNoSample() *NoSample {
	r := &NoSample{}
	r.Base.Init(constant.TrackTypeNone, r)
	return r
}

func (r *NoSample) SupportsFormat(source.Format) FormatSupport { return FormatUnsupportedType }
func (r *NoSample) HasReadStreamToEnd() bool                   { return true }
func (r *NoSample) IsReady() bool                              { return true }
func (r *NoSample) IsEnded() bool                              { return true }
func (r *NoSample) Render(int64, int64) error                  { return nil }
