// ABOUTME: Sentinel errors returned by the decoder
// ABOUTME: Callers match them with errors.Is
package decode

import (
	"errors"

	"github.com/Desdaemon/yume-jukebox/pkg/audio/media"
)

var (
	ErrOpenFailed          = errors.New("failed to open input")
	ErrNoTracks            = errors.New("input has no tracks")
	ErrMissingFormat       = errors.New("missing required format field")
	ErrUnsupportedChannels = errors.New("unsupported channel count")
	ErrUnsupportedCodec    = media.ErrUnsupportedCodec
	ErrBufferOverflow      = errors.New("decoded output exceeds buffer")
	ErrCodec               = errors.New("codec error")
	ErrNoAudio             = errors.New("input decoded to no audio")
)
