// ABOUTME: Looping read cursor over decoded interleaved PCM
// ABOUTME: Converts 16-bit interleaved samples into normalized per-channel floats
package render

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/Desdaemon/yume-jukebox/pkg/audio"
)

// FrameSource reads a clip as an endless loop. Read belongs to a single
// goroutine; Position may be called from any goroutine.
type FrameSource struct {
	pcm      []byte
	channels int
	total    int
	pos      int

	published atomic.Int64
}

// NewFrameSource creates a source positioned at the first sample.
func NewFrameSource(a *audio.DecodedAudio) *FrameSource {
	total := a.Samples()
	// Ignore a trailing partial frame so every read stays frame aligned.
	if a.Channels > 0 {
		total -= total % a.Channels
	}
	return &FrameSource{
		pcm:      a.PCM,
		channels: a.Channels,
		total:    total,
	}
}

// Channels returns the number of channels per frame.
func (s *FrameSource) Channels() int { return s.channels }

// Frames returns the loop length in frames.
func (s *FrameSource) Frames() int {
	if s.channels == 0 {
		return 0
	}
	return s.total / s.channels
}

// Position returns the cursor in samples, as of the end of the last Read.
func (s *FrameSource) Position() int {
	return int(s.published.Load())
}

// Read writes frames deinterleaved frames into dst, one plane per channel,
// wrapping to the start of the clip as needed. An empty clip reads as
// silence.
func (s *FrameSource) Read(dst [][]float32, frames int) {
	if s.total == 0 {
		for ch := range dst {
			clear(dst[ch][:frames])
		}
		return
	}

	pos := s.pos
	for i := 0; i < frames; i++ {
		for ch := 0; ch < s.channels; ch++ {
			v := int16(binary.LittleEndian.Uint16(s.pcm[pos*audio.BytesPerSample:]))
			dst[ch][i] = audio.SampleToFloat(v)
			pos++
		}
		if pos == s.total {
			pos = 0
		}
	}
	s.pos = pos
	s.published.Store(int64(pos))
}
