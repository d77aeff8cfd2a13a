// ABOUTME: Playback controller with an opaque-handle session registry
// ABOUTME: Opens decoded clips on an output backend and forwards pitch and state requests
package playback

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/Desdaemon/yume-jukebox/pkg/audio"
	"github.com/Desdaemon/yume-jukebox/pkg/audio/decode"
	"github.com/Desdaemon/yume-jukebox/pkg/audio/output"
	"github.com/Desdaemon/yume-jukebox/pkg/render"
	"github.com/Desdaemon/yume-jukebox/pkg/stretch"
)

// Options configures a Controller. Zero fields take defaults.
type Options struct {
	// Backend opens streams. Defaults to output.NewBackend(BackendName).
	Backend     output.Backend
	BackendName string

	Format               output.SampleFormat
	BufferCapacityFrames int // default render.DefaultScratchFrames
	Performance          output.PerformanceMode
	Sharing              output.SharingMode

	// DecodeBufferSize bounds the decoded size of a clip. Default
	// decode.BufferSize.
	DecodeBufferSize int

	// StartPaused leaves new streams stopped until RequestStateChange.
	StartPaused bool

	Logger *slog.Logger
}

type session struct {
	handle Handle

	// mu guards the fields below against release. Forwarding calls hold
	// it for reading and fail with ErrUnknownHandle once disposed is set.
	mu       sync.RWMutex
	disposed bool
	clip     *audio.DecodedAudio
	engine   *stretch.Engine
	cb       *render.Callback
	stream   output.Stream
}

// acquire read-locks a live session. The caller must call s.mu.RUnlock.
func (s *session) acquire() error {
	s.mu.RLock()
	if s.disposed {
		s.mu.RUnlock()
		return ErrUnknownHandle
	}
	return nil
}

// Controller owns playback sessions. It is safe for concurrent use.
type Controller struct {
	opts    Options
	log     *slog.Logger
	backend output.Backend
	decoder *decode.Decoder

	mu       sync.Mutex
	sessions map[Handle]*session
	closed   bool
}

// New creates a Controller.
func New(opts Options) (*Controller, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.BufferCapacityFrames <= 0 {
		opts.BufferCapacityFrames = render.DefaultScratchFrames
	}
	if opts.DecodeBufferSize <= 0 {
		opts.DecodeBufferSize = decode.BufferSize
	}

	backend := opts.Backend
	if backend == nil {
		var err error
		backend, err = output.NewBackend(opts.BackendName, log)
		if err != nil {
			return nil, err
		}
	}

	return &Controller{
		opts:     opts,
		log:      log.With("component", "playback"),
		backend:  backend,
		decoder:  decode.New(decode.Options{Logger: log}),
		sessions: make(map[Handle]*session),
	}, nil
}

// Backend returns the output backend streams are opened on.
func (c *Controller) Backend() output.Backend { return c.backend }

// Open decodes path and opens a looping session at pitch.
func (c *Controller) Open(path string, pitch float64) (Handle, error) {
	if err := checkPitch(pitch); err != nil {
		return Handle{}, &OpenError{Kind: KindInput, Err: err}
	}

	decoded, err := c.decoder.DecodeFile(path, make([]byte, c.opts.DecodeBufferSize))
	if err != nil {
		return Handle{}, &OpenError{Kind: KindInput, Err: err}
	}
	// Keep only the decoded bytes, not the worst-case buffer.
	decoded.PCM = bytes.Clone(decoded.PCM)

	return c.OpenDecoded(decoded, pitch)
}

// OpenDecoded opens a looping session over a. The session takes ownership
// of a.
func (c *Controller) OpenDecoded(a *audio.DecodedAudio, pitch float64) (Handle, error) {
	if err := checkPitch(pitch); err != nil {
		return Handle{}, &OpenError{Kind: KindInput, Err: err}
	}
	if err := checkClip(a); err != nil {
		return Handle{}, &OpenError{Kind: KindInput, Err: err}
	}

	engine := stretch.New()
	engine.SetTransposeFactor(pitch)
	cb, err := render.NewCallback(a, engine, c.opts.Format, c.opts.BufferCapacityFrames)
	if err != nil {
		return Handle{}, &OpenError{Kind: KindInput, Err: err}
	}

	cfg := output.StreamConfig{
		Format:               c.opts.Format,
		Channels:             a.Channels,
		SampleRate:           a.SampleRate,
		BufferCapacityFrames: c.opts.BufferCapacityFrames,
		Performance:          c.opts.Performance,
		Sharing:              c.opts.Sharing,
	}
	stream, err := c.backend.OpenStream(cfg, cb)
	if err != nil {
		return Handle{}, &OpenError{Kind: KindBackend, Err: err}
	}

	s := &session{
		handle: newHandle(),
		clip:   a,
		engine: engine,
		cb:     cb,
		stream: stream,
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = stream.Close()
		return Handle{}, &OpenError{Kind: KindBackend, Err: ErrClosed}
	}
	c.sessions[s.handle] = s
	c.mu.Unlock()

	if !c.opts.StartPaused {
		if err := stream.RequestStart(); err != nil {
			c.unregister(s.handle)
			_ = stream.Close()
			return Handle{}, &OpenError{Kind: KindBackend, Err: fmt.Errorf("failed to start stream: %w", err)}
		}
	}

	c.log.Info("session opened",
		"handle", s.handle.String(),
		"backend", c.backend.Name(),
		"sample_rate", a.SampleRate,
		"channels", a.Channels,
		"duration", a.Duration(),
		"pitch", engine.TransposeFactor())
	return s.handle, nil
}

// SetPitch sets the transpose factor of a session. It takes effect on the
// next render callback. Values outside the engine's range are clamped.
func (c *Controller) SetPitch(h Handle, pitch float64) error {
	if err := checkPitch(pitch); err != nil {
		return err
	}
	s, err := c.lookup(h)
	if err != nil {
		return err
	}
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.mu.RUnlock()

	s.engine.SetTransposeFactor(pitch)
	return nil
}

// RequestStateChange forwards a state request to the session's stream.
// The backend decides what a redundant request means.
func (c *Controller) RequestStateChange(h Handle, state StreamState) error {
	s, err := c.lookup(h)
	if err != nil {
		return err
	}
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.mu.RUnlock()

	switch state {
	case Started:
		err = s.stream.RequestStart()
	case Paused:
		err = s.stream.RequestPause()
	case Stopped:
		err = s.stream.RequestStop()
	default:
		return fmt.Errorf("unknown stream state %v", state)
	}
	if err != nil {
		return fmt.Errorf("failed to request %s: %w", state, err)
	}
	c.log.Debug("state requested", "handle", h.String(), "state", state.String())
	return nil
}

// Dispose stops and releases a session. The handle is invalid afterwards;
// disposing it again returns ErrUnknownHandle.
func (c *Controller) Dispose(h Handle) error {
	s := c.unregister(h)
	if s == nil {
		return ErrUnknownHandle
	}
	c.release(s)
	return nil
}

// release waits for in-flight forwarding calls and for the stream to
// acknowledge a stop before closing it and dropping the session's buffers.
func (c *Controller) release(s *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.disposed = true

	if err := s.stream.RequestStop(); err != nil {
		c.log.Warn("stream stop error", "handle", s.handle.String(), "error", err)
	}
	if err := s.stream.Close(); err != nil {
		c.log.Warn("stream close error", "handle", s.handle.String(), "error", err)
	}
	rendered := s.cb.FramesRendered()

	s.cb = nil
	s.engine = nil
	s.clip.PCM = nil
	s.clip = nil
	s.stream = nil

	c.log.Info("session disposed", "handle", s.handle.String(), "frames_rendered", rendered)
}

// Info returns a snapshot of a session.
func (c *Controller) Info(h Handle) (SessionInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[h]
	if !ok {
		return SessionInfo{}, ErrUnknownHandle
	}
	return SessionInfo{
		Handle:         h,
		SampleRate:     s.clip.SampleRate,
		Channels:       s.clip.Channels,
		MIME:           s.clip.MIME,
		Pitch:          s.engine.TransposeFactor(),
		Position:       s.cb.Source().Position(),
		Frames:         s.cb.Source().Frames(),
		FramesRendered: s.cb.FramesRendered(),
		Duration:       s.clip.Duration(),
		Backend:        c.backend.Name(),
	}, nil
}

// Handles lists the open sessions in a stable order.
func (c *Controller) Handles() []Handle {
	c.mu.Lock()
	handles := make([]Handle, 0, len(c.sessions))
	for h := range c.sessions {
		handles = append(handles, h)
	}
	c.mu.Unlock()

	sort.Slice(handles, func(i, j int) bool {
		return bytes.Compare(handles[i][:], handles[j][:]) < 0
	})
	return handles
}

// Close disposes every session and releases the backend. Later opens fail
// with ErrClosed.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sessions := c.sessions
	c.sessions = make(map[Handle]*session)
	c.mu.Unlock()

	for _, s := range sessions {
		c.release(s)
	}
	return c.backend.Close()
}

func (c *Controller) lookup(h Handle) (*session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[h]
	if !ok {
		return nil, ErrUnknownHandle
	}
	return s, nil
}

func (c *Controller) unregister(h Handle) *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[h]
	if !ok {
		return nil
	}
	delete(c.sessions, h)
	return s
}

func checkPitch(pitch float64) error {
	if math.IsNaN(pitch) || math.IsInf(pitch, 0) || pitch <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidPitch, pitch)
	}
	return nil
}

func checkClip(a *audio.DecodedAudio) error {
	switch {
	case a == nil:
		return fmt.Errorf("%w: no clip", decode.ErrNoAudio)
	case a.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate", decode.ErrMissingFormat)
	case a.Channels < 1:
		return fmt.Errorf("%w: channel count", decode.ErrMissingFormat)
	case a.Channels > audio.MaxChannels:
		return fmt.Errorf("%w: %d channels", decode.ErrUnsupportedChannels, a.Channels)
	}
	return nil
}
