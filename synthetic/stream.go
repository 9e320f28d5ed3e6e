package synthetic

import "github.com/cadence-media/cadence/source"

// Stream reads the samples of one track of a Period.
type Stream struct {
	period *Period
	track  *track
}

func (s *Stream) IsReady() bool {
	s.period.mu.Lock()
	defer s.period.mu.Unlock()
	return s.track.readIndex < len(s.track.samples) || s.period.finished
}

func (s *Stream) MaybeThrowError() error {
	return s.period.loader.MaybeThrowError(s.period.opts.MinRetryCount)
}

func (s *Stream) ReadData(holder *source.FormatHolder, buffer *source.Buffer, formatRequired bool) source.ReadResult {
	s.period.mu.Lock()
	defer s.period.mu.Unlock()

	t := s.track
	if formatRequired || !t.formatRead {
		format := t.format
		holder.Format = &format
		t.formatRead = true
		return source.FormatRead
	}
	if t.readIndex < len(t.samples) {
		smp := t.samples[t.readIndex]
		t.readIndex++
		buffer.TimeUs = smp.timeUs
		buffer.Flags = smp.flags
		buffer.Data = buffer.Data[:0]
		return source.BufferRead
	}
	if s.period.finished {
		buffer.Flags = source.FlagEndOfStream
		buffer.Data = buffer.Data[:0]
		return source.BufferRead
	}
	return source.NothingRead
}

// SkipData skips samples before positionUs.
func (s *Stream) SkipData(positionUs int64) int {
	s.period.mu.Lock()
	defer s.period.mu.Unlock()

	t := s.track
	skipped := 0
	for t.readIndex < len(t.samples) && t.samples[t.readIndex].timeUs < positionUs {
		t.readIndex++
		skipped++
	}
	return skipped
}
