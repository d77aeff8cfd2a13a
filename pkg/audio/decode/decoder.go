// ABOUTME: Whole-file decoder producing a flat interleaved PCM buffer
// ABOUTME: Runs the extractor/codec pull loop until both sides reach end of stream
package decode

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Desdaemon/yume-jukebox/pkg/audio"
	"github.com/Desdaemon/yume-jukebox/pkg/audio/media"
)

const (
	// MaxCompressionRatio bounds how much larger decoded PCM may be than
	// RawSizeEstimate.
	MaxCompressionRatio = 12

	// RawSizeEstimate is the nominal decoded size of a clip in bytes.
	RawSizeEstimate = 4 * 1024 * 1024 * audio.BytesPerSample

	// BufferSize is the worst-case decoded length accepted by NewBuffer.
	BufferSize = MaxCompressionRatio * RawSizeEstimate

	// DefaultInputTimeout is how long the loop waits for an input slot.
	DefaultInputTimeout = 2 * time.Millisecond
)

// Options configures a Decoder. Zero fields take defaults.
type Options struct {
	// InputTimeout bounds each wait for an input slot, and each output wait
	// once the input side has finished.
	InputTimeout time.Duration

	// OpenExtractor opens a container. Defaults to media.OpenFile.
	OpenExtractor func(path string) (media.Extractor, error)

	// NewCodec creates a codec session. Defaults to media.NewCodec.
	NewCodec func(format media.Format) (media.Codec, error)

	Logger *slog.Logger
}

// Decoder turns a compressed file into DecodedAudio.
type Decoder struct {
	opts Options
	log  *slog.Logger
}

// New creates a Decoder.
func New(opts Options) *Decoder {
	if opts.InputTimeout <= 0 {
		opts.InputTimeout = DefaultInputTimeout
	}
	if opts.OpenExtractor == nil {
		opts.OpenExtractor = media.OpenFile
	}
	if opts.NewCodec == nil {
		opts.NewCodec = media.NewCodec
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Decoder{opts: opts, log: log.With("component", "decoder")}
}

// NewBuffer allocates an output buffer of BufferSize bytes.
func NewBuffer() []byte {
	return make([]byte, BufferSize)
}

// DecodeFile decodes the first track of path into dst. The returned PCM
// aliases dst. On error nothing is returned.
func (d *Decoder) DecodeFile(path string, dst []byte) (*audio.DecodedAudio, error) {
	ex, err := d.opts.OpenExtractor(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpenFailed, path, err)
	}
	defer ex.Close()

	decoded, err := d.Decode(ex, dst)
	if err != nil {
		return nil, err
	}
	d.log.Info("decoded file",
		"path", path,
		"mime", decoded.MIME,
		"sample_rate", decoded.SampleRate,
		"channels", decoded.Channels,
		"bytes", len(decoded.PCM),
		"duration", decoded.Duration())
	return decoded, nil
}

// Decode runs the pull loop over an opened extractor.
func (d *Decoder) Decode(ex media.Extractor, dst []byte) (*audio.DecodedAudio, error) {
	if ex.TrackCount() < 1 {
		return nil, ErrNoTracks
	}
	format, err := ex.TrackFormat(0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingFormat, err)
	}
	if err := validateFormat(format); err != nil {
		return nil, err
	}
	if err := ex.SelectTrack(0); err != nil {
		return nil, fmt.Errorf("failed to select track: %w", err)
	}

	codec, err := d.opts.NewCodec(format)
	if err != nil {
		return nil, fmt.Errorf("failed to create codec: %w", err)
	}
	defer codec.Close()
	if err := codec.Start(); err != nil {
		return nil, fmt.Errorf("failed to start codec: %w", err)
	}

	written, out, err := d.run(ex, codec, dst)
	if err != nil {
		return nil, err
	}

	decoded := &audio.DecodedAudio{
		SampleRate:  format.SampleRate,
		Channels:    format.Channels,
		ChannelMask: format.ChannelMask,
		BitRate:     format.BitRate,
		MIME:        format.MIME,
	}
	if out.SampleRate > 0 {
		decoded.SampleRate = out.SampleRate
	}
	if out.Channels > 0 {
		decoded.Channels = out.Channels
	}
	if out.ChannelMask != 0 {
		decoded.ChannelMask = out.ChannelMask
	}
	if decoded.Channels > audio.MaxChannels {
		return nil, fmt.Errorf("%w: decoder produced %d channels", ErrUnsupportedChannels, decoded.Channels)
	}

	frameSize := decoded.FrameSize()
	if rem := written % frameSize; rem != 0 {
		d.log.Warn("dropping partial trailing frame", "bytes", rem)
		written -= rem
	}
	if written == 0 {
		return nil, ErrNoAudio
	}
	decoded.PCM = dst[:written:written]
	return decoded, nil
}

// run feeds the codec and collects its output into dst. It returns the
// number of bytes written and the last announced output format.
func (d *Decoder) run(ex media.Extractor, codec media.Codec, dst []byte) (int, media.Format, error) {
	extracting, decoding := true, true
	written := 0
	out := codec.OutputFormat()

	for extracting || decoding {
		if extracting {
			switch r := codec.DequeueInputBuffer(d.opts.InputTimeout).(type) {
			case media.Ready:
				n, err := ex.ReadSampleData(codec.InputBuffer(r.Index))
				if err == io.EOF {
					if err := codec.QueueInputBuffer(r.Index, 0, 0, media.FlagEndOfStream); err != nil {
						return 0, out, fmt.Errorf("failed to queue end of stream: %w", err)
					}
					extracting = false
					break
				}
				if err != nil {
					return 0, out, fmt.Errorf("failed to read sample: %w", err)
				}
				if err := codec.QueueInputBuffer(r.Index, n, ex.SampleTime(), 0); err != nil {
					return 0, out, fmt.Errorf("failed to queue input: %w", err)
				}
				ex.Advance()
			case media.Failed:
				return 0, out, fmt.Errorf("%w: %w", ErrCodec, r.Err)
			}
		}

		if decoding {
			var timeout time.Duration
			if !extracting {
				timeout = d.opts.InputTimeout
			}
			res, info := codec.DequeueOutputBuffer(timeout)
			switch r := res.(type) {
			case media.Ready:
				if info.Size > 0 {
					if written+info.Size > len(dst) {
						_ = codec.ReleaseOutputBuffer(r.Index)
						return 0, out, fmt.Errorf("%w: %d bytes decoded into a %d byte buffer",
							ErrBufferOverflow, written+info.Size, len(dst))
					}
					copy(dst[written:], codec.OutputBuffer(r.Index)[:info.Size])
					written += info.Size
				}
				if err := codec.ReleaseOutputBuffer(r.Index); err != nil {
					return 0, out, fmt.Errorf("failed to release output: %w", err)
				}
				if info.EndOfStream() {
					decoding = false
				}
			case media.FormatChanged:
				out = codec.OutputFormat()
				d.log.Debug("output format changed", "format", out.String())
			case media.Failed:
				return 0, out, fmt.Errorf("%w: %w", ErrCodec, r.Err)
			}
		}
	}
	return written, out, nil
}

func validateFormat(f media.Format) error {
	switch {
	case f.MIME == "":
		return fmt.Errorf("%w: mime", ErrMissingFormat)
	case f.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate", ErrMissingFormat)
	case f.Channels <= 0:
		return fmt.Errorf("%w: channel count", ErrMissingFormat)
	case f.Channels > audio.MaxChannels:
		return fmt.Errorf("%w: %d channels", ErrUnsupportedChannels, f.Channels)
	}
	return nil
}
