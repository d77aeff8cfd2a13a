// ABOUTME: Audio output package for pull-based playback streams
// ABOUTME: Provides the Stream and Backend interfaces plus malgo, oto, PortAudio and null backends
// Package output opens playback streams that pull audio from a Callback.
//
// A Backend turns a StreamConfig and a Callback into a Stream. The backend
// calls the Callback on its own real-time thread with a destination buffer
// and a frame count that may change from call to call.
//
// Backends:
//   - malgo: miniaudio via cgo (default)
//   - oto: one process-wide context, one player per stream
//   - portaudio: requires -tags portaudio
//   - null: ticker driven, no hardware
//
// Example:
//
//	backend, err := output.NewBackend("malgo", nil)
//	stream, err := backend.OpenStream(output.StreamConfig{
//	    Format:               output.FormatInt16,
//	    Channels:             2,
//	    SampleRate:           48000,
//	    BufferCapacityFrames: 256,
//	}, cb)
//	err = stream.RequestStart()
package output
