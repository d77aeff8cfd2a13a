// ABOUTME: Ogg Vorbis codec session backed by jfreymuth/oggvorbis
// ABOUTME: Float output is clamped and scaled to 16-bit PCM
package media

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Desdaemon/yume-jukebox/pkg/audio"
	"github.com/jfreymuth/oggvorbis"
)

const vorbisChunkFrames = 4096

func newVorbisExtractor(f *os.File) (Extractor, error) {
	length, vf, err := oggvorbis.GetLength(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read Vorbis headers: %w", err)
	}

	format := Format{
		MIME:       MIMEVorbis,
		SampleRate: vf.SampleRate,
		Channels:   vf.Channels,
		BitRate:    vf.Bitrate.Nominal,
		DurationUs: framesToUs(length, vf.SampleRate),
	}

	ex, err := newChunkExtractor(f, format)
	if err != nil {
		return nil, err
	}
	if ex.format.BitRate <= 0 {
		ex.format.BitRate = bitRate(ex.size, format.DurationUs)
	}
	return ex, nil
}

func newVorbisCodec(format Format) *session {
	return newStreamSession(func(ctx context.Context, r io.Reader, s *session) error {
		rd, err := oggvorbis.NewReader(r)
		if err != nil {
			return fmt.Errorf("failed to create Vorbis decoder: %w", err)
		}

		channels := rd.Channels()
		out := Format{
			MIME:        MIMERaw,
			SampleRate:  rd.SampleRate(),
			Channels:    channels,
			ChannelMask: format.ChannelMask,
			BitDepth:    16,
		}
		if err := s.emitFormat(ctx, out); err != nil {
			return err
		}

		samples := make([]float32, vorbisChunkFrames*channels)
		pcm := make([]byte, len(samples)*audio.BytesPerSample)
		for {
			n, err := rd.Read(samples)
			if n > 0 {
				for i, v := range samples[:n] {
					audio.PutSample(pcm[i*audio.BytesPerSample:], audio.FloatToSample(v))
				}
				if emitErr := s.emitPCM(ctx, pcm[:n*audio.BytesPerSample], channels, out.SampleRate); emitErr != nil {
					return emitErr
				}
			}
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to decode Vorbis: %w", err)
			}
		}
	})
}
