package clock

// Standalone is a speed-scaled clock driven by a Clock. Not safe for concurrent use.
type Standalone struct {
	clock      Clock
	started    bool
	baseUs     int64
	baseElapse int64
	params     PlaybackParameters
}

// NewStandalone returns a stopped clock at position zero.
func NewStandalone(c Clock) *Standalone {
	return &Standalone{clock: c, params: DefaultParameters}
}

func (s *Standalone) elapsedUs() int64 {
	return s.clock.Elapsed().Microseconds()
}

// Start starts the clock ticking.
func (s *Standalone) Start() {
	if !s.started {
		s.baseElapse = s.elapsedUs()
		s.started = true
	}
}

// Stop freezes the clock at its current position.
func (s *Standalone) Stop() {
	if s.started {
		s.ResetPosition(s.PositionUs())
		s.started = false
	}
}

// ResetPosition moves the clock to positionUs.
func (s *Standalone) ResetPosition(positionUs int64) {
	s.baseUs = positionUs
	if s.started {
		s.baseElapse = s.elapsedUs()
	}
}

// PositionUs returns the current position.
func (s *Standalone) PositionUs() int64 {
	positionUs := s.baseUs
	if s.started {
		positionUs += s.params.MediaTimeUs(s.elapsedUs() - s.baseElapse)
	}
	return positionUs
}

// SetPlaybackParameters applies params from the current position onwards.
func (s *Standalone) SetPlaybackParameters(params PlaybackParameters) PlaybackParameters {
	if s.started {
		s.ResetPosition(s.PositionUs())
	}
	s.params = params
	return params
}

func (s *Standalone) PlaybackParameters() PlaybackParameters {
	return s.params
}
