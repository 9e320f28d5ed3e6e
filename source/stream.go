package source

// ReadResult is the outcome of SampleStream.ReadData.
type ReadResult int

const (
	// NothingRead means no data was available.
	NothingRead ReadResult = iota
	// BufferRead means a sample, or the end of stream flag, was written into the buffer.
	BufferRead
	// FormatRead means the format holder was populated.
	FormatRead
)

// Buffer flags.
const (
	FlagKeyFrame = 1 << iota
	FlagEndOfStream
	FlagDecodeOnly
)

// Buffer receives one sample.
type Buffer struct {
	TimeUs int64
	Flags  int
	Data   []byte
}

func (b *Buffer) IsEndOfStream() bool { return b.Flags&FlagEndOfStream != 0 }
func (b *Buffer) IsKeyFrame() bool    { return b.Flags&FlagKeyFrame != 0 }
func (b *Buffer) IsDecodeOnly() bool  { return b.Flags&FlagDecodeOnly != 0 }

// Clear resets the buffer for reuse.
func (b *Buffer) Clear() {
	b.TimeUs = 0
	b.Flags = 0
	b.Data = b.Data[:0]
}

// FormatHolder receives a format.
type FormatHolder struct {
	Format *Format
}

// SampleStream feeds samples of one track to one renderer.
type SampleStream interface {
	// IsReady reports whether data is available to read.
	IsReady() bool
	// MaybeThrowError returns an error that prevents the stream from becoming ready.
	MaybeThrowError() error
	// ReadData reads the next format or sample. When formatRequired is set the format is
	// always read, even if it did not change.
	ReadData(holder *FormatHolder, buffer *Buffer, formatRequired bool) ReadResult
	// SkipData skips samples up to positionUs and returns how many were skipped.
	SkipData(positionUs int64) int
}

// EmptySampleStream is a stream that is immediately at its end.
type EmptySampleStream struct{}

func (EmptySampleStream) IsReady() bool          { return true }
func (EmptySampleStream) MaybeThrowError() error { return nil }
func (EmptySampleStream) SkipData(int64) int     { return 0 }

func (EmptySampleStream) ReadData(_ *FormatHolder, buffer *Buffer, _ bool) ReadResult {
	buffer.Flags = FlagEndOfStream
	return BufferRead
}
