// ABOUTME: Ogg Opus codec session backed by libopus
// ABOUTME: Decodes one packet per input slot at 48kHz and trims pre-skip and end padding
package media

import (
	"context"
	"fmt"

	"github.com/Desdaemon/yume-jukebox/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// Largest Opus frame: 120ms at 48kHz.
const opusMaxFrame = 5760

func newOpusCodec(format Format) (Codec, error) {
	channels := format.Channels
	dec, err := opus.NewDecoder(opusRate, channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	pcm := make([]int16, opusMaxFrame*channels)
	buf := make([]byte, len(pcm)*audio.BytesPerSample)
	skip := format.PreSkip
	remaining := format.TotalFrames
	announced := false

	return newPacketSession(func(ctx context.Context, packet []byte, pts int64, s *session) error {
		if !announced {
			announced = true
			out := Format{
				MIME:       MIMERaw,
				SampleRate: opusRate,
				Channels:   channels,
				BitDepth:   16,
			}
			if err := s.emitFormat(ctx, out); err != nil {
				return err
			}
		}

		n, err := dec.Decode(packet, pcm)
		if err != nil {
			return fmt.Errorf("opus decode failed: %w", err)
		}

		start := 0
		if skip > 0 {
			start = min(skip, n)
			skip -= start
		}
		end := n
		if format.TotalFrames > 0 {
			end = start + int(min(int64(n-start), remaining))
			remaining -= int64(end - start)
		}
		samples := pcm[start*channels : end*channels]
		for i, v := range samples {
			audio.PutSample(buf[i*audio.BytesPerSample:], v)
		}
		return s.emitPCM(ctx, buf[:len(samples)*audio.BytesPerSample], channels, opusRate)
	}), nil
}
