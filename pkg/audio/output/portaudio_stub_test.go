//go:build !portaudio

// ABOUTME: PortAudio stub tests
// ABOUTME: Verifies the stub reports the backend as unavailable
package output

import (
	"errors"
	"testing"
)

func TestPortAudioStubUnavailable(t *testing.T) {
	b := NewPortAudio(nil)
	if _, err := b.OpenStream(testConfig(), &countingCallback{}); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable, got %v", err)
	}
}
