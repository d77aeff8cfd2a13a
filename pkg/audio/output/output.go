// ABOUTME: Output stream abstraction shared by every audio backend
// ABOUTME: Streams pull frames from a Callback on the backend's real-time thread
package output

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Desdaemon/yume-jukebox/pkg/audio"
)

var (
	ErrInvalidConfig      = errors.New("invalid stream configuration")
	ErrUnknownBackend     = errors.New("unknown output backend")
	ErrBackendUnavailable = errors.New("output backend unavailable")
	ErrStreamClosed       = errors.New("stream closed")
)

// SampleFormat is the sample representation a stream delivers to hardware.
type SampleFormat int

const (
	FormatInt16 SampleFormat = iota
	FormatFloat32
)

// BytesPerSample returns the size of one sample in this format.
func (f SampleFormat) BytesPerSample() int {
	if f == FormatFloat32 {
		return 4
	}
	return audio.BytesPerSample
}

func (f SampleFormat) String() string {
	switch f {
	case FormatInt16:
		return "s16"
	case FormatFloat32:
		return "f32"
	default:
		return fmt.Sprintf("SampleFormat(%d)", int(f))
	}
}

// ParseFormat accepts "s16"/"int16" and "f32"/"float32".
func ParseFormat(s string) (SampleFormat, error) {
	switch strings.ToLower(s) {
	case "s16", "int16", "i16":
		return FormatInt16, nil
	case "f32", "float32", "float":
		return FormatFloat32, nil
	}
	return 0, fmt.Errorf("%w: unknown sample format %q", ErrInvalidConfig, s)
}

// PerformanceMode is a latency hint for the backend.
type PerformanceMode int

const (
	PerformanceLowLatency PerformanceMode = iota
	PerformanceNone
	PerformancePowerSaving
)

func (m PerformanceMode) String() string {
	switch m {
	case PerformanceLowLatency:
		return "low-latency"
	case PerformanceNone:
		return "none"
	case PerformancePowerSaving:
		return "power-saving"
	default:
		return fmt.Sprintf("PerformanceMode(%d)", int(m))
	}
}

// ParsePerformance parses the names returned by PerformanceMode.String.
func ParsePerformance(s string) (PerformanceMode, error) {
	for _, m := range []PerformanceMode{PerformanceLowLatency, PerformanceNone, PerformancePowerSaving} {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown performance mode %q", ErrInvalidConfig, s)
}

// SharingMode selects whether the device may be shared with other streams.
type SharingMode int

const (
	SharingShared SharingMode = iota
	SharingExclusive
)

func (m SharingMode) String() string {
	switch m {
	case SharingShared:
		return "shared"
	case SharingExclusive:
		return "exclusive"
	default:
		return fmt.Sprintf("SharingMode(%d)", int(m))
	}
}

// ParseSharing parses "shared" or "exclusive".
func ParseSharing(s string) (SharingMode, error) {
	switch strings.ToLower(s) {
	case "shared":
		return SharingShared, nil
	case "exclusive":
		return SharingExclusive, nil
	}
	return 0, fmt.Errorf("%w: unknown sharing mode %q", ErrInvalidConfig, s)
}

// CallbackResult tells the stream whether to keep calling the Callback.
type CallbackResult int

const (
	Continue CallbackResult = iota
	Stop
)

// Callback fills dst with frames interleaved samples in the stream's
// format. It runs on the backend's real-time thread and must not block or
// allocate.
type Callback interface {
	OnAudioReady(dst []byte, frames int) CallbackResult
}

// CallbackFunc adapts a function to Callback.
type CallbackFunc func(dst []byte, frames int) CallbackResult

func (f CallbackFunc) OnAudioReady(dst []byte, frames int) CallbackResult {
	return f(dst, frames)
}

// StreamConfig describes a playback stream.
type StreamConfig struct {
	Format               SampleFormat
	Channels             int
	SampleRate           int
	BufferCapacityFrames int
	Performance          PerformanceMode
	Sharing              SharingMode
}

// Validate reports whether a backend could be asked for this config.
func (c StreamConfig) Validate() error {
	switch {
	case c.Format != FormatInt16 && c.Format != FormatFloat32:
		return fmt.Errorf("%w: format %v", ErrInvalidConfig, c.Format)
	case c.Channels < 1 || c.Channels > audio.MaxChannels:
		return fmt.Errorf("%w: %d channels", ErrInvalidConfig, c.Channels)
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, c.SampleRate)
	case c.BufferCapacityFrames <= 0:
		return fmt.Errorf("%w: buffer capacity %d frames", ErrInvalidConfig, c.BufferCapacityFrames)
	}
	return nil
}

// FrameSize returns the size of one interleaved frame in bytes.
func (c StreamConfig) FrameSize() int {
	return c.Channels * c.Format.BytesPerSample()
}

// BufferPeriod returns how long one buffer of BufferCapacityFrames lasts.
func (c StreamConfig) BufferPeriod() time.Duration {
	return time.Duration(c.BufferCapacityFrames) * time.Second / time.Duration(c.SampleRate)
}

// Stream is an open output stream. State requests are forwarded to the
// backend; redundant requests are no-ops. RequestPause and RequestStop
// return only once no Callback invocation is in flight.
type Stream interface {
	RequestStart() error
	RequestPause() error
	RequestStop() error
	Close() error
	Config() StreamConfig
}

// Backend opens streams on one audio API.
type Backend interface {
	Name() string
	OpenStream(cfg StreamConfig, cb Callback) (Stream, error)
	Close() error
}

var backends = map[string]func(*slog.Logger) Backend{
	"malgo":     func(l *slog.Logger) Backend { return NewMalgo(l) },
	"oto":       func(l *slog.Logger) Backend { return NewOto(l) },
	"portaudio": func(l *slog.Logger) Backend { return NewPortAudio(l) },
	"null":      func(l *slog.Logger) Backend { return NewNull(0) },
}

// DefaultBackend is used when no backend name is given.
const DefaultBackend = "malgo"

// NewBackend returns the backend registered under name. An empty name
// selects DefaultBackend. A nil logger uses slog.Default.
func NewBackend(name string, logger *slog.Logger) (Backend, error) {
	if name == "" {
		name = DefaultBackend
	}
	ctor, ok := backends[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownBackend, name, strings.Join(Backends(), ", "))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return ctor(logger.With("component", "output")), nil
}

// Backends lists the registered backend names.
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// driver invokes a Callback until it returns Stop, then renders silence
// until the stream is restarted.
type driver struct {
	cb     Callback
	halted atomic.Bool
}

func (d *driver) render(dst []byte, frames int) {
	if d.halted.Load() {
		clear(dst)
		return
	}
	if d.cb.OnAudioReady(dst, frames) == Stop {
		d.halted.Store(true)
	}
}

// renderSamples fills out through scratch one scratch-sized chunk at a time,
// so a backend buffer larger than the configured capacity never allocates.
func renderSamples[T int16 | float32](d *driver, scratch []byte, channels, sampleSize int, out []T, decode func([]byte) T) {
	chunk := len(scratch) / (channels * sampleSize) * channels
	if chunk == 0 {
		clear(out)
		return
	}
	for off := 0; off < len(out); off += chunk {
		n := min(chunk, len(out)-off)
		buf := scratch[:n*sampleSize]
		d.render(buf, n/channels)
		for i := 0; i < n; i++ {
			out[off+i] = decode(buf[i*sampleSize:])
		}
	}
}

func decodeInt16(b []byte) int16 {
	return int16(binary.LittleEndian.Uint16(b))
}

func decodeFloat32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func (d *driver) rearm() {
	d.halted.Store(false)
}
