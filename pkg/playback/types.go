// ABOUTME: Handles, stream states and errors for the playback controller
// ABOUTME: OpenError splits failures into input and backend kinds
package playback

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnknownHandle = errors.New("unknown session handle")
	ErrInvalidPitch  = errors.New("pitch must be finite and positive")
	ErrClosed        = errors.New("controller closed")
)

// Handle identifies a session. The zero Handle never names a session.
type Handle uuid.UUID

func newHandle() Handle { return Handle(uuid.New()) }

// ParseHandle parses the form returned by Handle.String.
func ParseHandle(s string) (Handle, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return Handle{}, fmt.Errorf("%w: %w", ErrUnknownHandle, err)
	}
	return Handle(id), nil
}

func (h Handle) String() string { return uuid.UUID(h).String() }

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool { return h == Handle{} }

// StreamState is a requested stream state.
type StreamState int

const (
	Started StreamState = iota
	Paused
	Stopped
)

func (s StreamState) String() string {
	switch s {
	case Started:
		return "started"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("StreamState(%d)", int(s))
	}
}

// ParseStreamState accepts the names returned by StreamState.String.
func ParseStreamState(s string) (StreamState, error) {
	for _, st := range []StreamState{Started, Paused, Stopped} {
		if strings.EqualFold(s, st.String()) {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown stream state %q", s)
}

// ErrorKind classifies an open failure.
type ErrorKind int

const (
	// KindInput covers unreadable files, unsupported layouts and missing
	// format fields.
	KindInput ErrorKind = iota
	// KindBackend covers streams the backend cannot configure or open.
	KindBackend
)

func (k ErrorKind) String() string {
	if k == KindBackend {
		return "backend"
	}
	return "input"
}

// OpenError is returned by Open and OpenDecoded. No session exists when
// one is returned.
type OpenError struct {
	Kind ErrorKind
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open failed (%s): %v", e.Kind, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// SessionInfo is a snapshot of one session.
type SessionInfo struct {
	Handle         Handle
	SampleRate     int
	Channels       int
	MIME           string
	Pitch          float64
	Position       int // cursor in samples
	Frames         int // loop length
	FramesRendered int64
	Duration       time.Duration
	Backend        string
}

// LoopPosition returns the cursor as a time offset into the clip.
func (i SessionInfo) LoopPosition() time.Duration {
	if i.SampleRate <= 0 || i.Channels <= 0 {
		return 0
	}
	frames := i.Position / i.Channels
	return time.Duration(frames) * time.Second / time.Duration(i.SampleRate)
}
