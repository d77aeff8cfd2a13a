// ABOUTME: MP3 extractor and codec session backed by go-mp3
// ABOUTME: Decoded MP3 is always 16-bit little-endian stereo
package media

import (
	"context"
	"fmt"
	"io"
	"os"

	gomp3 "github.com/hajimehoshi/go-mp3"
)

const mp3Channels = 2

func newMP3Extractor(f *os.File) (Extractor, error) {
	// The probe scans the whole file to learn the decoded length.
	probe, err := gomp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	format := Format{
		MIME:       MIMEMPEG,
		SampleRate: probe.SampleRate(),
		Channels:   mp3Channels,
	}
	if length := probe.Length(); length > 0 && format.SampleRate > 0 {
		frames := length / (2 * mp3Channels)
		format.DurationUs = framesToUs(frames, format.SampleRate)
	}

	ex, err := newChunkExtractor(f, format)
	if err != nil {
		return nil, err
	}
	ex.format.BitRate = bitRate(ex.size, format.DurationUs)
	return ex, nil
}

func newMP3Codec(format Format) *session {
	return newStreamSession(func(ctx context.Context, r io.Reader, s *session) error {
		dec, err := gomp3.NewDecoder(r)
		if err != nil {
			return fmt.Errorf("failed to create MP3 decoder: %w", err)
		}

		out := Format{
			MIME:       MIMERaw,
			SampleRate: dec.SampleRate(),
			Channels:   mp3Channels,
			BitDepth:   16,
		}
		if err := s.emitFormat(ctx, out); err != nil {
			return err
		}

		buf := make([]byte, 8192)
		for {
			n, err := io.ReadFull(dec, buf)
			if n > 0 {
				if emitErr := s.emitPCM(ctx, buf[:n], out.Channels, out.SampleRate); emitErr != nil {
					return emitErr
				}
			}
			switch {
			case err == io.EOF || err == io.ErrUnexpectedEOF:
				return nil
			case err != nil:
				return fmt.Errorf("failed to decode MP3: %w", err)
			}
		}
	})
}
