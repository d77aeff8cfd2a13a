// ABOUTME: Codec session interface with slot-based input and output queues
// ABOUTME: Worker goroutines turn queued compressed input into decoded PCM
package media

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	inputSlots       = 4
	inputSlotSize    = 16 * 1024
	outputQueueDepth = 8
)

// DequeueResult is the outcome of a dequeue call. It is one of Ready,
// TryAgain, FormatChanged or Failed.
type DequeueResult interface {
	isDequeueResult()
}

// Ready carries the index of a slot owned by the caller until it is queued
// (input) or released (output).
type Ready struct {
	Index int
}

// TryAgain means no slot became available within the timeout.
type TryAgain struct{}

// FormatChanged means OutputFormat has a new value. No slot is returned.
type FormatChanged struct{}

// Failed means the session hit an unrecoverable error.
type Failed struct {
	Err error
}

func (Ready) isDequeueResult()         {}
func (TryAgain) isDequeueResult()      {}
func (FormatChanged) isDequeueResult() {}
func (Failed) isDequeueResult()        {}

// Codec is a pull-based decode session. All methods are meant to be called
// from a single goroutine.
type Codec interface {
	// Start launches the session workers.
	Start() error

	// DequeueInputBuffer waits up to timeout for a free input slot.
	DequeueInputBuffer(timeout time.Duration) DequeueResult

	// InputBuffer returns the writable slot for a Ready input index.
	InputBuffer(index int) []byte

	// QueueInputBuffer submits size bytes of the slot for decoding.
	QueueInputBuffer(index, size int, presentationTimeUs int64, flags BufferFlags) error

	// DequeueOutputBuffer waits up to timeout for decoded output. A zero
	// timeout polls.
	DequeueOutputBuffer(timeout time.Duration) (DequeueResult, BufferInfo)

	// OutputBuffer returns the decoded bytes for a Ready output index.
	OutputBuffer(index int) []byte

	// ReleaseOutputBuffer hands an output slot back to the session.
	ReleaseOutputBuffer(index int) error

	// OutputFormat returns the most recently announced output format.
	OutputFormat() Format

	// Close stops the workers and releases all slots.
	Close() error
}

// NewCodec creates an unstarted session for the track format.
func NewCodec(format Format) (Codec, error) {
	switch format.MIME {
	case MIMERaw:
		return newRawCodec(format), nil
	case MIMEMPEG:
		return newMP3Codec(format), nil
	case MIMEFLAC:
		return newFLACCodec(format), nil
	case MIMEVorbis:
		return newVorbisCodec(format), nil
	case MIMEOpus:
		return newOpusCodec(format)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, format.MIME)
	}
}

type inputEntry struct {
	index int
	size  int
	pts   int64
	eos   bool
}

type outputKind int

const (
	outputData outputKind = iota
	outputFormat
	outputEOS
	outputError
)

type outputEntry struct {
	kind   outputKind
	data   []byte
	pts    int64
	format Format
	err    error
}

// streamFunc decodes a continuous byte stream assembled from queued input.
type streamFunc func(ctx context.Context, r io.Reader, s *session) error

// packetFunc decodes one queued input slot.
type packetFunc func(ctx context.Context, packet []byte, pts int64, s *session) error

// session implements Codec on top of an errgroup of workers. Input slots
// circulate through free -> caller -> queued -> worker -> free.
type session struct {
	mu      sync.Mutex
	slots   [][]byte
	free    chan int
	queued  chan inputEntry
	outputs chan outputEntry

	held    map[int][]byte
	nextOut int
	format  Format
	failed  error
	started bool
	closed  bool

	cancel context.CancelFunc
	group  *errgroup.Group
	ctx    context.Context

	// worker state
	framesOut int64
	clockRate int
	run       func(ctx context.Context) error
	shutdown  func()
}

func newSession() *session {
	s := &session{
		slots:   make([][]byte, inputSlots),
		free:    make(chan int, inputSlots),
		queued:  make(chan inputEntry, inputSlots),
		outputs: make(chan outputEntry, outputQueueDepth),
		held:    make(map[int][]byte),
	}
	for i := range s.slots {
		s.slots[i] = make([]byte, inputSlotSize)
		s.free <- i
	}
	return s
}

// newStreamSession pipes queued input into decode running on its own
// goroutine.
func newStreamSession(decode streamFunc) *session {
	s := newSession()
	pr, pw := io.Pipe()
	s.shutdown = func() {
		_ = pr.CloseWithError(ErrCodecClosed)
	}
	s.run = func(ctx context.Context) error {
		s.group.Go(func() error {
			return s.feed(ctx, pw)
		})
		err := decode(ctx, pr, s)
		// Unblocks the feeder if the decoder stopped before end of input.
		_ = pr.Close()
		if err != nil {
			return s.fail(ctx, err)
		}
		return s.send(ctx, outputEntry{kind: outputEOS, pts: s.pts(0)})
	}
	return s
}

// newPacketSession hands every queued slot to decode in submission order.
func newPacketSession(decode packetFunc) *session {
	s := newSession()
	s.run = func(ctx context.Context) error {
		for {
			select {
			case e := <-s.queued:
				var err error
				if e.size > 0 {
					err = decode(ctx, s.slots[e.index][:e.size], e.pts, s)
				}
				s.free <- e.index
				if err != nil {
					return s.fail(ctx, err)
				}
				if e.eos {
					return s.send(ctx, outputEntry{kind: outputEOS, pts: s.pts(0)})
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return s
}

// feed copies queued slots into the pipe until end of stream. Write errors
// mean the decoder is gone; slots keep circulating so the caller never
// starves.
func (s *session) feed(ctx context.Context, pw *io.PipeWriter) error {
	var writeErr error
	for {
		select {
		case e := <-s.queued:
			if e.size > 0 && writeErr == nil {
				_, writeErr = pw.Write(s.slots[e.index][:e.size])
			}
			s.free <- e.index
			if e.eos {
				return pw.Close()
			}
		case <-ctx.Done():
			_ = pw.CloseWithError(ctx.Err())
			return nil
		}
	}
}

func (s *session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrCodecClosed
	}
	if s.started {
		return nil
	}
	s.started = true

	ctx, cancel := context.WithCancel(context.Background())
	s.ctx = ctx
	s.cancel = cancel
	s.group = &errgroup.Group{}
	s.group.Go(func() error {
		return s.run(ctx)
	})
	return nil
}

func (s *session) DequeueInputBuffer(timeout time.Duration) DequeueResult {
	if err := s.usable(); err != nil {
		return Failed{Err: err}
	}

	select {
	case i := <-s.free:
		return Ready{Index: i}
	default:
	}
	if timeout <= 0 {
		return TryAgain{}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case i := <-s.free:
		return Ready{Index: i}
	case <-timer.C:
		return TryAgain{}
	case <-s.ctx.Done():
		return Failed{Err: ErrCodecClosed}
	}
}

func (s *session) InputBuffer(index int) []byte {
	if index < 0 || index >= len(s.slots) {
		return nil
	}
	return s.slots[index]
}

func (s *session) QueueInputBuffer(index, size int, presentationTimeUs int64, flags BufferFlags) error {
	if err := s.usable(); err != nil {
		return err
	}
	if index < 0 || index >= len(s.slots) {
		return fmt.Errorf("%w: input %d", ErrInvalidIndex, index)
	}
	if size < 0 || size > len(s.slots[index]) {
		return fmt.Errorf("input size %d exceeds slot capacity %d", size, len(s.slots[index]))
	}

	// queued has one place per slot, so this never blocks.
	s.queued <- inputEntry{
		index: index,
		size:  size,
		pts:   presentationTimeUs,
		eos:   flags&FlagEndOfStream != 0,
	}
	return nil
}

func (s *session) DequeueOutputBuffer(timeout time.Duration) (DequeueResult, BufferInfo) {
	if err := s.usable(); err != nil {
		return Failed{Err: err}, BufferInfo{}
	}
	if s.failed != nil {
		return Failed{Err: s.failed}, BufferInfo{}
	}

	var e outputEntry
	select {
	case e = <-s.outputs:
	default:
		if timeout <= 0 {
			return TryAgain{}, BufferInfo{}
		}
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case e = <-s.outputs:
		case <-timer.C:
			return TryAgain{}, BufferInfo{}
		}
	}

	switch e.kind {
	case outputFormat:
		s.format = e.format
		return FormatChanged{}, BufferInfo{}
	case outputError:
		s.failed = e.err
		return Failed{Err: e.err}, BufferInfo{}
	case outputEOS:
		idx := s.hold(nil)
		return Ready{Index: idx}, BufferInfo{PresentationTimeUs: e.pts, Flags: FlagEndOfStream}
	default:
		idx := s.hold(e.data)
		return Ready{Index: idx}, BufferInfo{Size: len(e.data), PresentationTimeUs: e.pts}
	}
}

func (s *session) OutputBuffer(index int) []byte {
	return s.held[index]
}

func (s *session) ReleaseOutputBuffer(index int) error {
	if _, ok := s.held[index]; !ok {
		return fmt.Errorf("%w: output %d", ErrInvalidIndex, index)
	}
	delete(s.held, index)
	return nil
}

func (s *session) OutputFormat() Format {
	return s.format
}

func (s *session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.started
	s.mu.Unlock()

	if !started {
		return nil
	}
	s.cancel()
	if s.shutdown != nil {
		s.shutdown()
	}
	_ = s.group.Wait()
	s.held = nil
	return nil
}

func (s *session) usable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrCodecClosed
	}
	if !s.started {
		return fmt.Errorf("codec not started")
	}
	return nil
}

func (s *session) hold(data []byte) int {
	idx := s.nextOut
	s.nextOut++
	s.held[idx] = data
	return idx
}

// Worker-side helpers.

func (s *session) send(ctx context.Context, e outputEntry) error {
	select {
	case s.outputs <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *session) fail(ctx context.Context, err error) error {
	if sendErr := s.send(ctx, outputEntry{kind: outputError, err: err}); sendErr != nil {
		return sendErr
	}
	return err
}

func (s *session) emitFormat(ctx context.Context, f Format) error {
	return s.send(ctx, outputEntry{kind: outputFormat, format: f})
}

// emitPCM queues a copy of interleaved 16-bit PCM and advances the output
// clock by its frame count.
func (s *session) emitPCM(ctx context.Context, pcm []byte, channels, sampleRate int) error {
	if len(pcm) == 0 {
		return nil
	}
	data := make([]byte, len(pcm))
	copy(data, pcm)
	pts := s.pts(sampleRate)
	if channels > 0 {
		s.framesOut += int64(len(pcm) / (2 * channels))
	}
	return s.send(ctx, outputEntry{kind: outputData, data: data, pts: pts})
}

// pts returns the output clock in microseconds. A zero rate reuses the last
// known one.
func (s *session) pts(sampleRate int) int64 {
	if sampleRate > 0 {
		s.clockRate = sampleRate
	}
	return framesToUs(s.framesOut, s.clockRate)
}
