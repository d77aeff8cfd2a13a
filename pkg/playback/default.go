// ABOUTME: Process-wide default controller
// ABOUTME: Exposes open, dispose, pitch and state requests as plain functions
package playback

import "sync"

var (
	defaultMu  sync.Mutex
	defaultCtl *Controller
)

// Default returns the process-wide controller, creating it with the
// default backend on first use.
func Default() (*Controller, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultCtl == nil {
		ctl, err := New(Options{})
		if err != nil {
			return nil, err
		}
		defaultCtl = ctl
	}
	return defaultCtl, nil
}

// SetDefault replaces the process-wide controller and returns the previous
// one, which is not closed.
func SetDefault(ctl *Controller) *Controller {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	prev := defaultCtl
	defaultCtl = ctl
	return prev
}

// Open decodes path and starts it on the default controller.
func Open(path string, pitch float64) (Handle, error) {
	ctl, err := Default()
	if err != nil {
		return Handle{}, &OpenError{Kind: KindBackend, Err: err}
	}
	return ctl.Open(path, pitch)
}

// Dispose releases a session of the default controller.
func Dispose(h Handle) error {
	ctl, err := Default()
	if err != nil {
		return err
	}
	return ctl.Dispose(h)
}

// SetPitch sets the pitch of a session of the default controller.
func SetPitch(h Handle, pitch float64) error {
	ctl, err := Default()
	if err != nil {
		return err
	}
	return ctl.SetPitch(h, pitch)
}

// RequestStateChange forwards a state request on the default controller.
func RequestStateChange(h Handle, state StreamState) error {
	ctl, err := Default()
	if err != nil {
		return err
	}
	return ctl.RequestStateChange(h, state)
}
