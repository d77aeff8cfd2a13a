// ABOUTME: Output stream callback that renders a looping clip through a pitch transform
// ABOUTME: Owns fixed scratch planes and converts floats to the stream's sample format
package render

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/Desdaemon/yume-jukebox/pkg/audio"
	"github.com/Desdaemon/yume-jukebox/pkg/audio/output"
)

// DefaultScratchFrames is the scratch plane length and the stream buffer
// capacity requested by playback.
const DefaultScratchFrames = 256

// Transform processes deinterleaved float frames. stretch.Engine
// implements it.
type Transform interface {
	Configure(channels, sampleRate int) error
	Reset()
	Process(in [][]float32, inFrames int, out [][]float32, outFrames int)
}

// Callback renders a clip into an output stream. It implements
// output.Callback and always returns output.Continue.
type Callback struct {
	src       *FrameSource
	transform Transform
	format    output.SampleFormat
	channels  int
	frameSize int

	in, out [][]float32
	scratch int

	rendered atomic.Int64
}

var _ output.Callback = (*Callback)(nil)

// NewCallback configures and resets t for a and allocates scratch planes
// of scratchFrames frames. A non-positive scratchFrames uses
// DefaultScratchFrames.
func NewCallback(a *audio.DecodedAudio, t Transform, format output.SampleFormat, scratchFrames int) (*Callback, error) {
	if a.Channels < 1 || a.Channels > audio.MaxChannels {
		return nil, fmt.Errorf("unsupported channel count %d", a.Channels)
	}
	if scratchFrames <= 0 {
		scratchFrames = DefaultScratchFrames
	}
	if err := t.Configure(a.Channels, a.SampleRate); err != nil {
		return nil, fmt.Errorf("failed to configure transform: %w", err)
	}
	t.Reset()

	c := &Callback{
		src:       NewFrameSource(a),
		transform: t,
		format:    format,
		channels:  a.Channels,
		frameSize: a.Channels * format.BytesPerSample(),
		in:        make([][]float32, a.Channels),
		out:       make([][]float32, a.Channels),
		scratch:   scratchFrames,
	}
	for ch := 0; ch < a.Channels; ch++ {
		c.in[ch] = make([]float32, scratchFrames)
		c.out[ch] = make([]float32, scratchFrames)
	}
	return c, nil
}

// Source returns the frame source feeding the callback.
func (c *Callback) Source() *FrameSource { return c.src }

// FramesRendered returns the number of frames written so far.
func (c *Callback) FramesRendered() int64 { return c.rendered.Load() }

// OnAudioReady fills dst with frames frames, in scratch sized chunks.
// frames is clamped to what dst can hold.
func (c *Callback) OnAudioReady(dst []byte, frames int) output.CallbackResult {
	frames = min(frames, len(dst)/c.frameSize)

	off := 0
	for done := 0; done < frames; {
		n := min(c.scratch, frames-done)
		c.src.Read(c.in, n)
		c.transform.Process(c.in, n, c.out, n)
		off = c.interleave(dst, off, n)
		done += n
	}

	c.rendered.Add(int64(frames))
	return output.Continue
}

// interleave writes n frames of the output planes at dst[off:] and returns
// the offset past them.
func (c *Callback) interleave(dst []byte, off, n int) int {
	switch c.format {
	case output.FormatFloat32:
		for i := 0; i < n; i++ {
			for ch := 0; ch < c.channels; ch++ {
				binary.LittleEndian.PutUint32(dst[off:], math.Float32bits(c.out[ch][i]))
				off += 4
			}
		}
	default:
		for i := 0; i < n; i++ {
			for ch := 0; ch < c.channels; ch++ {
				audio.PutSample(dst[off:], audio.FloatToSample(c.out[ch][i]))
				off += audio.BytesPerSample
			}
		}
	}
	return off
}
