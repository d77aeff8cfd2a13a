// ABOUTME: Pitch transform package documentation
// ABOUTME: Describes the per-channel granular engine and its threading rules
// Package stretch shifts the pitch of deinterleaved float audio without
// changing its duration.
//
// An Engine runs one granular processor per channel. The transpose factor
// may be changed from any goroutine at any time; every other method belongs
// to the goroutine that renders audio.
//
// Example:
//
//	e := stretch.New()
//	if err := e.Configure(2, 48000); err != nil {
//	    return err
//	}
//	e.SetTransposeFactor(1.5)
//	e.Process(in, 256, out, 256)
package stretch
