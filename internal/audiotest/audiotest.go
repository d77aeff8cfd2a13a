// ABOUTME: Test fixtures shared across packages
// ABOUTME: Writes tone WAV files and builds in-memory decoded clips
package audiotest

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/Desdaemon/yume-jukebox/pkg/audio"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/aiff"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// flacBlockSize is the number of frames per FLAC block in written fixtures.
const flacBlockSize = 4096

// ToneFrequency is the pitch of generated test tones.
const ToneFrequency = 440.0

// ToneSamples returns frames of an interleaved 16-bit sine tone. Each
// channel gets the same waveform.
func ToneSamples(sampleRate, channels, frames int) []int {
	data := make([]int, frames*channels)
	for i := 0; i < frames; i++ {
		t := float64(i) / float64(sampleRate)
		v := int(math.Sin(2*math.Pi*ToneFrequency*t) * 0.5 * audio.SampleScale)
		for ch := 0; ch < channels; ch++ {
			data[i*channels+ch] = v
		}
	}
	return data
}

// WriteWAV encodes interleaved integer samples into a PCM WAV file.
func WriteWAV(t testing.TB, path string, sampleRate, bitDepth, channels int, data []int) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("failed to write samples: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("failed to finalize WAV: %v", err)
	}
}

// WriteAIFF encodes interleaved integer samples into a PCM AIFF file.
func WriteAIFF(t testing.TB, path string, sampleRate, bitDepth, channels int, data []int) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()

	enc := aiff.NewEncoder(f, sampleRate, bitDepth, channels)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("failed to write samples: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("failed to finalize AIFF: %v", err)
	}
}

// WriteFLAC encodes interleaved 16-bit samples into a FLAC file made of
// verbatim subframes. channels must be 1 or 2.
func WriteFLAC(t testing.TB, path string, sampleRate, channels int, data []int) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()

	frames := len(data) / channels
	info := &meta.StreamInfo{
		BlockSizeMin:  16,
		BlockSizeMax:  flacBlockSize,
		SampleRate:    uint32(sampleRate),
		NChannels:     uint8(channels),
		BitsPerSample: 16,
		NSamples:      uint64(frames),
	}
	enc, err := flac.NewEncoder(f, info)
	if err != nil {
		t.Fatalf("failed to create FLAC encoder: %v", err)
	}

	assignment := frame.ChannelsMono
	if channels == 2 {
		assignment = frame.ChannelsLR
	}
	for start := 0; start < frames; start += flacBlockSize {
		n := min(flacBlockSize, frames-start)
		subframes := make([]*frame.Subframe, channels)
		for ch := range subframes {
			samples := make([]int32, n)
			for i := range samples {
				samples[i] = int32(data[(start+i)*channels+ch])
			}
			subframes[ch] = &frame.Subframe{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   samples,
				NSamples:  n,
			}
		}
		fr := &frame.Frame{
			Header: frame.Header{
				HasFixedBlockSize: true,
				BlockSize:         uint16(n),
				SampleRate:        uint32(sampleRate),
				Channels:          assignment,
				BitsPerSample:     16,
			},
			Subframes: subframes,
		}
		if err := enc.WriteFrame(fr); err != nil {
			t.Fatalf("failed to write FLAC frame: %v", err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("failed to finalize FLAC: %v", err)
	}
}

// WriteToneWAV writes a 16-bit sine tone of the given length into dir and
// returns its path.
func WriteToneWAV(t testing.TB, dir string, sampleRate, channels int, seconds float64) string {
	t.Helper()

	frames := int(float64(sampleRate) * seconds)
	path := filepath.Join(dir, "tone.wav")
	WriteWAV(t, path, sampleRate, 16, channels, ToneSamples(sampleRate, channels, frames))
	return path
}

// Tone builds a decoded clip holding a sine tone.
func Tone(sampleRate, channels, frames int) *audio.DecodedAudio {
	samples := ToneSamples(sampleRate, channels, frames)
	pcm := make([]byte, len(samples)*audio.BytesPerSample)
	for i, v := range samples {
		audio.PutSample(pcm[i*audio.BytesPerSample:], int16(v))
	}
	return &audio.DecodedAudio{
		SampleRate: sampleRate,
		Channels:   channels,
		MIME:       "audio/raw",
		PCM:        pcm,
	}
}

// Ramp builds a decoded clip whose i-th channel-sample has value i.
func Ramp(sampleRate, channels, frames int) *audio.DecodedAudio {
	pcm := make([]byte, frames*channels*audio.BytesPerSample)
	for i := 0; i < frames*channels; i++ {
		audio.PutSample(pcm[i*audio.BytesPerSample:], int16(i))
	}
	return &audio.DecodedAudio{
		SampleRate: sampleRate,
		Channels:   channels,
		MIME:       "audio/raw",
		PCM:        pcm,
	}
}
