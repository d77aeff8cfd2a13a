//go:build portaudio

// ABOUTME: PortAudio output backend
// ABOUTME: Cross-platform output with the stream Callback behind the PortAudio callback
package output

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudio opens streams on the default PortAudio output device.
type PortAudio struct {
	log *slog.Logger

	mu      sync.Mutex
	streams int
}

// NewPortAudio creates a PortAudio backend. The library is initialized
// while at least one stream is open.
func NewPortAudio(logger *slog.Logger) Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &PortAudio{log: logger.With("backend", "portaudio")}
}

func (p *PortAudio) Name() string { return "portaudio" }

func (p *PortAudio) Close() error { return nil }

// OpenStream opens a stopped stream whose FramesPerBuffer is the buffer
// capacity.
func (p *PortAudio) OpenStream(cfg StreamConfig, cb Callback) (Stream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.streams == 0 {
		if err := portaudio.Initialize(); err != nil {
			return nil, fmt.Errorf("%w: failed to initialize portaudio: %w", ErrBackendUnavailable, err)
		}
	}

	s, err := p.open(cfg, cb)
	if err != nil {
		if p.streams == 0 {
			_ = portaudio.Terminate()
		}
		return nil, err
	}
	p.streams++

	p.log.Info("stream opened",
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"format", cfg.Format.String(),
		"buffer_frames", cfg.BufferCapacityFrames)
	return s, nil
}

func (p *PortAudio) open(cfg StreamConfig, cb Callback) (*paStream, error) {
	dev, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return nil, fmt.Errorf("%w: no default output device: %w", ErrBackendUnavailable, err)
	}

	var params portaudio.StreamParameters
	if cfg.Performance == PerformanceLowLatency {
		params = portaudio.LowLatencyParameters(nil, dev)
	} else {
		params = portaudio.HighLatencyParameters(nil, dev)
	}
	params.Output.Channels = cfg.Channels
	params.SampleRate = float64(cfg.SampleRate)
	params.FramesPerBuffer = cfg.BufferCapacityFrames

	s := &paStream{
		cfg:     cfg,
		d:       &driver{cb: cb},
		backend: p,
		scratch: make([]byte, cfg.BufferCapacityFrames*cfg.FrameSize()),
	}

	var stream *portaudio.Stream
	if cfg.Format == FormatFloat32 {
		stream, err = portaudio.OpenStream(params, s.renderFloat32)
	} else {
		stream, err = portaudio.OpenStream(params, s.renderInt16)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open stream: %w", ErrBackendUnavailable, err)
	}
	s.stream = stream
	return s, nil
}

func (p *PortAudio) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.streams--
	if p.streams == 0 {
		if err := portaudio.Terminate(); err != nil {
			p.log.Warn("portaudio terminate error", "error", err)
		}
	}
}

type paStream struct {
	cfg     StreamConfig
	d       *driver
	backend *PortAudio
	scratch []byte

	mu      sync.Mutex
	stream  *portaudio.Stream
	running bool
}

func (s *paStream) Config() StreamConfig { return s.cfg }

func (s *paStream) renderInt16(out []int16) {
	renderSamples(s.d, s.scratch, s.cfg.Channels, 2, out, decodeInt16)
}

func (s *paStream) renderFloat32(out []float32) {
	renderSamples(s.d, s.scratch, s.cfg.Channels, 4, out, decodeFloat32)
}

func (s *paStream) RequestStart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return ErrStreamClosed
	}
	if s.running {
		return nil
	}
	s.d.rearm()
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}
	s.running = true
	return nil
}

// Pa_StopStream returns after pending buffers have played and the
// callback has returned.
func (s *paStream) RequestPause() error { return s.halt() }

func (s *paStream) RequestStop() error { return s.halt() }

func (s *paStream) halt() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return ErrStreamClosed
	}
	if !s.running {
		return nil
	}
	if err := s.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop stream: %w", err)
	}
	s.running = false
	return nil
}

func (s *paStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil
	}
	if s.running {
		_ = s.stream.Stop()
		s.running = false
	}
	err := s.stream.Close()
	s.stream = nil
	s.backend.release()
	return err
}
