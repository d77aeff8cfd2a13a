// ABOUTME: WAV and AIFF extractors plus the raw PCM codec session
// ABOUTME: Uncompressed containers are normalized to 16-bit little-endian PCM
package media

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Desdaemon/yume-jukebox/pkg/audio"
	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	pcmChunkFrames = 2048

	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// pcmReader is the part of the go-audio decoders used here.
type pcmReader interface {
	Format() *goaudio.Format
	PCMBuffer(buf *goaudio.IntBuffer) (int, error)
}

// pcmExtractor reads integer PCM through go-audio and hands it out as
// 16-bit little-endian chunks.
type pcmExtractor struct {
	singleTrack
	file      *os.File
	dec       pcmReader
	bitDepth  int
	unsigned8 bool

	buf    *goaudio.IntBuffer
	cur    []byte
	n      int
	loaded bool
	eof    bool
	frames int64
}

func newWAVExtractor(f *os.File) (Extractor, error) {
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		if err := dec.Err(); err != nil {
			return nil, fmt.Errorf("invalid WAV file: %w", err)
		}
		return nil, fmt.Errorf("invalid WAV file")
	}
	if dec.WavAudioFormat != wavFormatPCM && dec.WavAudioFormat != wavFormatExtensible {
		return nil, fmt.Errorf("%w: WAV format tag %d", ErrUnsupportedCodec, dec.WavAudioFormat)
	}

	format := Format{
		MIME:       MIMERaw,
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
		BitRate:    int(dec.AvgBytesPerSec) * 8,
	}
	if d, err := dec.Duration(); err == nil {
		format.DurationUs = d.Microseconds()
	}
	return newPCMExtractor(f, dec, format, format.BitDepth == 8), nil
}

func newAIFFExtractor(f *os.File) (Extractor, error) {
	dec := aiff.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid AIFF file")
	}
	dec.ReadInfo()

	af := dec.Format()
	if af == nil {
		return nil, fmt.Errorf("AIFF file has no COMM chunk")
	}
	format := Format{
		MIME:       MIMERaw,
		SampleRate: af.SampleRate,
		Channels:   af.NumChannels,
		BitDepth:   int(dec.BitDepth),
	}
	format.BitRate = format.SampleRate * format.Channels * format.BitDepth
	return newPCMExtractor(f, dec, format, false), nil
}

func newPCMExtractor(f *os.File, dec pcmReader, format Format, unsigned8 bool) *pcmExtractor {
	channels := format.Channels
	if channels < 1 {
		channels = 1
	}
	return &pcmExtractor{
		singleTrack: singleTrack{format: format},
		file:        f,
		dec:         dec,
		bitDepth:    format.BitDepth,
		unsigned8:   unsigned8,
		buf: &goaudio.IntBuffer{
			Data:   make([]int, pcmChunkFrames*channels),
			Format: dec.Format(),
		},
		cur: make([]byte, pcmChunkFrames*channels*audio.BytesPerSample),
	}
}

func (e *pcmExtractor) load() error {
	if e.loaded || e.eof {
		return nil
	}

	n, err := e.dec.PCMBuffer(e.buf)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read PCM: %w", err)
	}
	if n == 0 {
		e.eof = true
		return nil
	}

	for i, v := range e.buf.Data[:n] {
		if e.unsigned8 {
			v -= 128
		}
		audio.PutSample(e.cur[i*audio.BytesPerSample:], audio.ToInt16(v, e.bitDepth))
	}
	e.n = n * audio.BytesPerSample
	e.loaded = true
	return nil
}

func (e *pcmExtractor) ReadSampleData(dst []byte) (int, error) {
	if !e.selected {
		return 0, ErrNoTrackSelected
	}
	if err := e.load(); err != nil {
		return 0, err
	}
	if e.eof {
		return 0, io.EOF
	}
	if len(dst) < e.n {
		return 0, io.ErrShortBuffer
	}
	return copy(dst, e.cur[:e.n]), nil
}

func (e *pcmExtractor) SampleTime() int64 {
	return framesToUs(e.frames, e.format.SampleRate)
}

func (e *pcmExtractor) Advance() bool {
	if err := e.load(); err != nil || e.eof {
		return false
	}
	if e.format.Channels > 0 {
		e.frames += int64(e.n / (audio.BytesPerSample * e.format.Channels))
	}
	e.loaded = false
	return true
}

func (e *pcmExtractor) Close() error {
	return e.file.Close()
}

// newRawCodec passes 16-bit PCM through unchanged.
func newRawCodec(format Format) *session {
	announced := false
	return newPacketSession(func(ctx context.Context, packet []byte, pts int64, s *session) error {
		if !announced {
			announced = true
			out := Format{
				MIME:        MIMERaw,
				SampleRate:  format.SampleRate,
				Channels:    format.Channels,
				ChannelMask: format.ChannelMask,
				BitDepth:    16,
			}
			if err := s.emitFormat(ctx, out); err != nil {
				return err
			}
		}
		return s.emitPCM(ctx, packet, format.Channels, format.SampleRate)
	})
}
