// ABOUTME: Audio type definitions
// ABOUTME: Defines decoded PCM buffers and sample conversions
package audio

import (
	"encoding/binary"
	"time"
)

const (
	// BytesPerSample is the size of one decoded 16-bit sample.
	BytesPerSample = 2

	// MaxChannels is the widest channel layout accepted by the decoder.
	MaxChannels = 2

	// SampleScale is the magnitude used to normalize 16-bit samples.
	SampleScale = 32767
)

// DecodedAudio holds a whole clip as interleaved signed 16-bit little-endian PCM.
// It is created once by the decoder and not mutated afterwards.
type DecodedAudio struct {
	SampleRate  int
	Channels    int
	ChannelMask int    // 0 when the container does not carry one
	BitRate     int    // informational, 0 when unknown
	MIME        string // codec of the source track
	PCM         []byte
}

// FrameSize returns the number of bytes in one interleaved frame.
func (d *DecodedAudio) FrameSize() int {
	return d.Channels * BytesPerSample
}

// Samples returns the total number of channel-samples in the buffer.
func (d *DecodedAudio) Samples() int {
	return len(d.PCM) / BytesPerSample
}

// Frames returns the total number of interleaved frames in the buffer.
func (d *DecodedAudio) Frames() int {
	if d.Channels <= 0 {
		return 0
	}
	return len(d.PCM) / d.FrameSize()
}

// Duration returns the playback length of one pass over the clip.
func (d *DecodedAudio) Duration() time.Duration {
	if d.SampleRate <= 0 {
		return 0
	}
	return time.Duration(d.Frames()) * time.Second / time.Duration(d.SampleRate)
}

// Sample returns the i-th channel-sample.
func (d *DecodedAudio) Sample(i int) int16 {
	return int16(binary.LittleEndian.Uint16(d.PCM[i*BytesPerSample:]))
}

// SampleToFloat normalizes a 16-bit sample by dividing by 32767.
// -32768 maps slightly below -1.
func SampleToFloat(s int16) float32 {
	return float32(s) / SampleScale
}

// FloatToSample scales a normalized sample back to 16 bits, clamping to
// [-1, 1] and truncating toward zero.
func FloatToSample(f float32) int16 {
	if f > 1 {
		f = 1
	} else if f < -1 {
		f = -1
	}
	return int16(f * SampleScale)
}

// ToInt16 rescales a signed integer sample of the given bit depth to 16 bits.
// Unsigned 8-bit WAV samples must be re-centred by the caller first.
func ToInt16(sample int, bitDepth int) int16 {
	switch {
	case bitDepth < 16:
		return int16(sample << (16 - bitDepth))
	case bitDepth == 16:
		return int16(sample)
	default:
		return int16(sample >> (bitDepth - 16))
	}
}

// PutSample writes s as little-endian at dst[0:2].
func PutSample(dst []byte, s int16) {
	binary.LittleEndian.PutUint16(dst, uint16(s))
}
