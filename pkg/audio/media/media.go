// ABOUTME: Media track formats, buffer metadata and errors
// ABOUTME: Shared vocabulary between extractors and codec sessions
package media

import (
	"errors"
	"fmt"
)

// MIME types understood by NewCodec.
const (
	MIMERaw    = "audio/raw"
	MIMEMPEG   = "audio/mpeg"
	MIMEFLAC   = "audio/flac"
	MIMEVorbis = "audio/vorbis"
	MIMEOpus   = "audio/opus"
)

var (
	// ErrUnknownContainer is returned when no extractor recognizes the input.
	ErrUnknownContainer = errors.New("unknown container")

	// ErrUnsupportedCodec is returned when no codec session exists for a MIME type.
	ErrUnsupportedCodec = errors.New("unsupported codec")

	// ErrCodecClosed is returned by operations on a closed codec session.
	ErrCodecClosed = errors.New("codec closed")

	// ErrInvalidIndex is returned for slot indices the caller does not own.
	ErrInvalidIndex = errors.New("invalid buffer index")

	// ErrNoTrackSelected is returned when samples are read before SelectTrack.
	ErrNoTrackSelected = errors.New("no track selected")
)

// Format describes one track. A zero field means the container did not
// provide it.
type Format struct {
	MIME        string
	SampleRate  int
	Channels    int
	ChannelMask int
	BitRate     int // bits per second
	BitDepth    int
	PreSkip     int   // frames to drop at the start of decoded output
	TotalFrames int64 // decoded frames after PreSkip; 0 when unknown
	DurationUs  int64 // 0 when unknown
}

func (f Format) String() string {
	return fmt.Sprintf("%s %dHz %dch", f.MIME, f.SampleRate, f.Channels)
}

// BufferFlags annotate queued input and dequeued output buffers.
type BufferFlags uint32

const (
	// FlagEndOfStream marks the last buffer of a stream.
	FlagEndOfStream BufferFlags = 1 << 2
)

// BufferInfo describes a dequeued output buffer.
type BufferInfo struct {
	Size               int
	PresentationTimeUs int64
	Flags              BufferFlags
}

// EndOfStream reports whether the buffer carries FlagEndOfStream.
func (i BufferInfo) EndOfStream() bool {
	return i.Flags&FlagEndOfStream != 0
}

// framesToUs converts a frame count to microseconds at the given rate.
func framesToUs(frames int64, sampleRate int) int64 {
	if sampleRate <= 0 {
		return 0
	}
	return frames * 1_000_000 / int64(sampleRate)
}
