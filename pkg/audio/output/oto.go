// ABOUTME: Oto-based output backend
// ABOUTME: Each stream is an oto player pulling frames through a gated io.Reader
package output

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
)

// oto allows one context per process, so its format is fixed by the
// first stream opened.
var otoContext struct {
	mu     sync.Mutex
	ctx    *oto.Context
	format SampleFormat
	rate   int
	chans  int
}

// Oto opens streams as players on the process-wide oto context.
type Oto struct {
	log *slog.Logger
}

// NewOto creates an oto backend.
func NewOto(logger *slog.Logger) *Oto {
	if logger == nil {
		logger = slog.Default()
	}
	return &Oto{log: logger.With("backend", "oto")}
}

func (o *Oto) Name() string { return "oto" }

// Close is a no-op: the oto context lives for the rest of the process.
func (o *Oto) Close() error { return nil }

// OpenStream creates a paused player for cfg. A cfg whose format differs
// from the existing process context is rejected.
func (o *Oto) OpenStream(cfg StreamConfig, cb Callback) (Stream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, err := o.context(cfg)
	if err != nil {
		return nil, err
	}

	gate := newGateReader(&driver{cb: cb}, cfg.FrameSize())
	player := ctx.NewPlayer(gate)
	player.SetBufferSize(cfg.BufferCapacityFrames * cfg.FrameSize())

	o.log.Info("stream opened",
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"format", cfg.Format.String(),
		"buffer_frames", cfg.BufferCapacityFrames)
	return &otoStream{cfg: cfg, player: player, gate: gate}, nil
}

func (o *Oto) context(cfg StreamConfig) (*oto.Context, error) {
	otoContext.mu.Lock()
	defer otoContext.mu.Unlock()

	if otoContext.ctx != nil {
		if otoContext.rate != cfg.SampleRate || otoContext.chans != cfg.Channels || otoContext.format != cfg.Format {
			return nil, fmt.Errorf("%w: oto context is fixed at %dHz %dch %s",
				ErrInvalidConfig, otoContext.rate, otoContext.chans, otoContext.format)
		}
		return otoContext.ctx, nil
	}

	format := oto.FormatSignedInt16LE
	if cfg.Format == FormatFloat32 {
		format = oto.FormatFloat32LE
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.Channels,
		Format:       format,
		BufferSize:   cfg.BufferPeriod(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create oto context: %w", ErrBackendUnavailable, err)
	}
	<-ready

	otoContext.ctx = ctx
	otoContext.format = cfg.Format
	otoContext.rate = cfg.SampleRate
	otoContext.chans = cfg.Channels
	return ctx, nil
}

type otoStream struct {
	cfg    StreamConfig
	player *oto.Player
	gate   *gateReader

	mu     sync.Mutex
	closed bool
}

func (s *otoStream) Config() StreamConfig { return s.cfg }

func (s *otoStream) RequestStart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	if s.gate.open() {
		s.player.Play()
	}
	return nil
}

func (s *otoStream) RequestPause() error { return s.halt() }

func (s *otoStream) RequestStop() error { return s.halt() }

func (s *otoStream) halt() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	s.gate.shut()
	s.player.Pause()
	return nil
}

func (s *otoStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.gate.shut()
	return s.player.Close()
}

// gateReader feeds a driver to an oto player. While shut it yields
// silence without touching the Callback, and shut waits for any Read
// already past the gate.
type gateReader struct {
	d         *driver
	frameSize int
	running   atomic.Bool
	inflight  atomic.Int32
}

func newGateReader(d *driver, frameSize int) *gateReader {
	return &gateReader{d: d, frameSize: frameSize}
}

func (g *gateReader) Read(p []byte) (int, error) {
	g.inflight.Add(1)
	defer g.inflight.Add(-1)

	n := len(p) - len(p)%g.frameSize
	if !g.running.Load() {
		clear(p[:n])
		return n, nil
	}
	g.d.render(p[:n], n/g.frameSize)
	return n, nil
}

// open lets Reads through. It reports whether the gate was shut.
func (g *gateReader) open() bool {
	if g.running.Load() {
		return false
	}
	g.d.rearm()
	g.running.Store(true)
	return true
}

// shut blocks new Reads from reaching the Callback and waits for the
// current one to finish.
func (g *gateReader) shut() {
	g.running.Store(false)
	for g.inflight.Load() != 0 {
		time.Sleep(100 * time.Microsecond)
	}
}
