package engine

// State is the playback state published in PlaybackInfo.
type State int

const (
	// StateIdle means there is no source or playback failed.
	StateIdle State = iota + 1
	// StateBuffering means playback cannot start or continue until more media is loaded.
	StateBuffering
	// StateReady means playback can proceed immediately; it does when PlayWhenReady is set.
	StateReady
	// StateEnded means the end of the timeline was reached.
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateBuffering:
		return "BUFFERING"
	case StateReady:
		return "READY"
	case StateEnded:
		return "ENDED"
	default:
		return "UNKNOWN"
	}
}

// DiscontinuityReason tells why the playback position jumped.
type DiscontinuityReason int

const (
	// DiscontinuityPeriodTransition is an automatic move to the next period.
	DiscontinuityPeriodTransition DiscontinuityReason = iota
	// DiscontinuitySeek is a seek requested by the caller.
	DiscontinuitySeek
	// DiscontinuitySeekAdjustment is a seek that landed somewhere other than requested.
	DiscontinuitySeekAdjustment
	// DiscontinuityAdInsertion is a move into or out of an ad.
	DiscontinuityAdInsertion
	// DiscontinuityInternal is any other jump, for example after track reselection.
	DiscontinuityInternal
)

func (r DiscontinuityReason) String() string {
	switch r {
	case DiscontinuityPeriodTransition:
		return "PERIOD_TRANSITION"
	case DiscontinuitySeek:
		return "SEEK"
	case DiscontinuitySeekAdjustment:
		return "SEEK_ADJUSTMENT"
	case DiscontinuityAdInsertion:
		return "AD_INSERTION"
	default:
		return "INTERNAL"
	}
}
