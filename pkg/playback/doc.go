// ABOUTME: Playback controller package documentation
// ABOUTME: Describes sessions, handles and the dispose ordering
// Package playback decodes clips and plays them, looping, through an
// output stream with live pitch control.
//
// A Controller owns a registry of sessions keyed by opaque Handles. Each
// session exclusively owns its decoded PCM, its pitch engine and its
// stream. Dispose unregisters the session, waits for the backend to
// acknowledge a stop and only then closes the stream and drops the
// buffers, so no render callback can observe freed state.
//
// Example:
//
//	ctl, err := playback.New(playback.Options{})
//	if err != nil {
//	    return err
//	}
//	defer ctl.Close()
//
//	h, err := ctl.Open("loop.flac", 1.0)
//	if err != nil {
//	    return err
//	}
//	_ = ctl.SetPitch(h, 1.25)
//	_ = ctl.RequestStateChange(h, playback.Paused)
//	_ = ctl.Dispose(h)
package playback
