// ABOUTME: FLAC extractor and codec session backed by mewkiz/flac
// ABOUTME: Interleaves decoded subframes into 16-bit little-endian PCM
package media

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Desdaemon/yume-jukebox/pkg/audio"
	"github.com/mewkiz/flac"
)

// Default speaker layouts for FLAC's implicit channel assignment.
var flacChannelMasks = map[int]int{
	1: 0x4, // front centre
	2: 0x3, // front left | front right
}

func newFLACExtractor(f *os.File) (Extractor, error) {
	stream, err := flac.New(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	format := Format{
		MIME:        MIMEFLAC,
		SampleRate:  int(info.SampleRate),
		Channels:    int(info.NChannels),
		ChannelMask: flacChannelMasks[int(info.NChannels)],
		BitDepth:    int(info.BitsPerSample),
	}
	if info.NSamples > 0 {
		format.DurationUs = framesToUs(int64(info.NSamples), format.SampleRate)
	}

	ex, err := newChunkExtractor(f, format)
	if err != nil {
		return nil, err
	}
	ex.format.BitRate = bitRate(ex.size, format.DurationUs)
	return ex, nil
}

func newFLACCodec(format Format) *session {
	return newStreamSession(func(ctx context.Context, r io.Reader, s *session) error {
		stream, err := flac.New(r)
		if err != nil {
			return fmt.Errorf("failed to create FLAC decoder: %w", err)
		}

		info := stream.Info
		channels := int(info.NChannels)
		bitDepth := int(info.BitsPerSample)
		out := Format{
			MIME:        MIMERaw,
			SampleRate:  int(info.SampleRate),
			Channels:    channels,
			ChannelMask: format.ChannelMask,
			BitDepth:    16,
		}
		if err := s.emitFormat(ctx, out); err != nil {
			return err
		}

		var pcm []byte
		for {
			frame, err := stream.ParseNext()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to parse FLAC frame: %w", err)
			}

			blockSize := int(frame.BlockSize)
			need := blockSize * channels * audio.BytesPerSample
			if cap(pcm) < need {
				pcm = make([]byte, need)
			}
			pcm = pcm[:need]

			o := 0
			for i := 0; i < blockSize; i++ {
				for ch := 0; ch < channels; ch++ {
					sample := frame.Subframes[ch].Samples[i]
					audio.PutSample(pcm[o:], audio.ToInt16(int(sample), bitDepth))
					o += audio.BytesPerSample
				}
			}
			if err := s.emitPCM(ctx, pcm, channels, out.SampleRate); err != nil {
				return err
			}
		}
	})
}
