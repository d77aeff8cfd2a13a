//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package output

import (
	"fmt"
	"log/slog"
)

// PortAudio backend (stub)
type PortAudio struct{}

// NewPortAudio creates the stub PortAudio backend
func NewPortAudio(*slog.Logger) Backend {
	return &PortAudio{}
}

func (p *PortAudio) Name() string { return "portaudio" }

// OpenStream always fails
func (p *PortAudio) OpenStream(StreamConfig, Callback) (Stream, error) {
	return nil, fmt.Errorf("%w: PortAudio support not enabled (build with -tags portaudio)", ErrBackendUnavailable)
}

func (p *PortAudio) Close() error { return nil }
