package network

// Status is the snapshot of a player served on /status.
type Status struct {
	Media              string  `json:"media" jsonschema:"description=Preset or script being played"`
	State              string  `json:"state" jsonschema:"enum=IDLE,enum=BUFFERING,enum=READY,enum=ENDED"`
	PlayWhenReady      bool    `json:"play_when_ready"`
	WindowIndex        int     `json:"window_index"`
	PeriodIndex        int     `json:"period_index"`
	PositionMs         int64   `json:"position_ms"`
	BufferedPositionMs int64   `json:"buffered_position_ms"`
	DurationMs         int64   `json:"duration_ms" jsonschema:"description=Negative when unknown"`
	PlayingAd          bool    `json:"playing_ad"`
	RepeatMode         string  `json:"repeat_mode" jsonschema:"enum=off,enum=one,enum=all"`
	Shuffle            bool    `json:"shuffle"`
	Speed              float64 `json:"speed"`
	Error              string  `json:"error,omitempty"`
}
