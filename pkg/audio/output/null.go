// ABOUTME: Hardware-free output backend driven by a ticker goroutine
// ABOUTME: Renders into a discarded buffer, for tests and headless runs
package output

import (
	"sync"
	"sync/atomic"
	"time"
)

// Null is a Backend whose streams render on a ticker and discard the
// result. Period overrides the tick interval, which otherwise matches the
// stream's buffer period.
type Null struct {
	Period time.Duration
}

// NewNull creates a null backend.
func NewNull(period time.Duration) *Null {
	return &Null{Period: period}
}

func (n *Null) Name() string { return "null" }

func (n *Null) Close() error { return nil }

// OpenStream preallocates the render buffer and returns a stopped stream.
func (n *Null) OpenStream(cfg StreamConfig, cb Callback) (Stream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	period := n.Period
	if period <= 0 {
		period = cfg.BufferPeriod()
	}
	return &NullStream{
		cfg:    cfg,
		d:      &driver{cb: cb},
		period: period,
		buf:    make([]byte, cfg.BufferCapacityFrames*cfg.FrameSize()),
	}, nil
}

// NullStream is the Stream returned by Null.
type NullStream struct {
	cfg    StreamConfig
	d      *driver
	period time.Duration
	buf    []byte

	mu     sync.Mutex
	quit   chan struct{}
	done   chan struct{}
	closed bool

	frames atomic.Int64
	calls  atomic.Int64
}

func (s *NullStream) Config() StreamConfig { return s.cfg }

// Frames returns the number of frames rendered so far.
func (s *NullStream) Frames() int64 { return s.frames.Load() }

// Calls returns the number of Callback invocations so far.
func (s *NullStream) Calls() int64 { return s.calls.Load() }

// Running reports whether the render goroutine is active.
func (s *NullStream) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quit != nil
}

func (s *NullStream) RequestStart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	if s.quit != nil {
		return nil
	}
	s.d.rearm()
	s.quit = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.quit, s.done)
	return nil
}

func (s *NullStream) RequestPause() error { return s.halt() }

func (s *NullStream) RequestStop() error { return s.halt() }

func (s *NullStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.haltLocked()
	s.closed = true
	return nil
}

func (s *NullStream) halt() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	s.haltLocked()
	return nil
}

// haltLocked stops the render goroutine and waits for it to exit.
func (s *NullStream) haltLocked() {
	if s.quit == nil {
		return
	}
	close(s.quit)
	<-s.done
	s.quit, s.done = nil, nil
}

func (s *NullStream) run(quit, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	frames := s.cfg.BufferCapacityFrames
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			s.d.render(s.buf, frames)
			s.calls.Add(1)
			s.frames.Add(int64(frames))
		}
	}
}
