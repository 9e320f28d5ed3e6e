package clock

import (
	"fmt"
	"math"
)

// PlaybackParameters are the speed and pitch of playback.
type PlaybackParameters struct {
	Speed       float64
	Pitch       float64
	SkipSilence bool
}

// DefaultParameters plays at normal speed and pitch.
var DefaultParameters = PlaybackParameters{Speed: 1, Pitch: 1}

// NewParameters validates speed and pitch.
func NewParameters(speed, pitch float64) (PlaybackParameters, error) {
	if speed <= 0 || pitch <= 0 || math.IsNaN(speed) || math.IsNaN(pitch) {
		return PlaybackParameters{}, fmt.Errorf("invalid playback parameters: speed %v, pitch %v", speed, pitch)
	}
	return PlaybackParameters{Speed: speed, Pitch: pitch}, nil
}

// MediaTimeUs converts playout time, the real time that passed, to media time.
func (p PlaybackParameters) MediaTimeUs(playoutUs int64) int64 {
	if p.Speed == 1 {
		return playoutUs
	}
	return int64(math.Round(float64(playoutUs) * p.Speed))
}
