// ABOUTME: Malgo-based output backend using miniaudio
// ABOUTME: The device Data callback pulls frames straight from the stream Callback
package output

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"
)

// Malgo opens streams on the default miniaudio playback device. One
// miniaudio context is shared by every stream of the backend.
type Malgo struct {
	log *slog.Logger

	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
}

// NewMalgo creates a malgo backend. The miniaudio context is created on
// the first OpenStream.
func NewMalgo(logger *slog.Logger) *Malgo {
	if logger == nil {
		logger = slog.Default()
	}
	return &Malgo{log: logger.With("backend", "malgo")}
}

func (m *Malgo) Name() string { return "malgo" }

// OpenStream initializes a device for cfg. The device is not started.
func (m *Malgo) OpenStream(cfg StreamConfig, cb Callback) (Stream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
			m.log.Debug("miniaudio", "message", message)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: failed to initialize malgo context: %w", ErrBackendUnavailable, err)
		}
		m.malgoCtx = ctx
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgoFormat(cfg.Format)
	deviceConfig.Playback.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(cfg.BufferCapacityFrames)
	deviceConfig.Alsa.NoMMap = 1
	if cfg.Performance == PerformanceLowLatency {
		deviceConfig.PerformanceProfile = malgo.LowLatency
	} else {
		deviceConfig.PerformanceProfile = malgo.Conservative
	}
	if cfg.Sharing == SharingExclusive {
		deviceConfig.Playback.ShareMode = malgo.Exclusive
	} else {
		deviceConfig.Playback.ShareMode = malgo.Shared
	}

	s := &malgoStream{cfg: cfg, d: &driver{cb: cb}, log: m.log}
	onSamples := func(pOutputSample, _ []byte, frameCount uint32) {
		s.d.render(pOutputSample, int(frameCount))
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize playback device: %w", ErrBackendUnavailable, err)
	}
	s.device = device

	m.log.Info("stream opened",
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"format", formatName(deviceConfig.Playback.Format),
		"buffer_frames", cfg.BufferCapacityFrames,
		"performance", cfg.Performance.String(),
		"sharing", cfg.Sharing.String())
	return s, nil
}

// Close releases the miniaudio context. Streams must be closed first.
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			m.log.Warn("malgo context uninit error", "error", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}

type malgoStream struct {
	cfg StreamConfig
	d   *driver
	log *slog.Logger

	mu      sync.Mutex
	device  *malgo.Device
	running bool
}

func (s *malgoStream) Config() StreamConfig { return s.cfg }

func (s *malgoStream) RequestStart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		return ErrStreamClosed
	}
	if s.running {
		return nil
	}
	s.d.rearm()
	if err := s.device.Start(); err != nil {
		return fmt.Errorf("failed to start device: %w", err)
	}
	s.running = true
	return nil
}

// miniaudio has no distinct pause; ma_device_stop waits for the audio
// thread, so both requests are synchronous.
func (s *malgoStream) RequestPause() error { return s.halt() }

func (s *malgoStream) RequestStop() error { return s.halt() }

func (s *malgoStream) halt() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		return ErrStreamClosed
	}
	if !s.running {
		return nil
	}
	if err := s.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop device: %w", err)
	}
	s.running = false
	return nil
}

func (s *malgoStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		return nil
	}
	if s.running {
		if err := s.device.Stop(); err != nil {
			s.log.Warn("device stop error", "error", err)
		}
		s.running = false
	}
	s.device.Uninit()
	s.device = nil
	return nil
}

func malgoFormat(f SampleFormat) malgo.FormatType {
	if f == FormatFloat32 {
		return malgo.FormatF32
	}
	return malgo.FormatS16
}

// formatName returns human-readable format name
func formatName(format malgo.FormatType) string {
	switch format {
	case malgo.FormatS16:
		return "S16"
	case malgo.FormatF32:
		return "F32"
	default:
		return fmt.Sprintf("Unknown(%d)", format)
	}
}
