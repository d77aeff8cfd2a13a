// ABOUTME: Real-time render package documentation
// ABOUTME: Describes the looping frame source and the output stream callback
// Package render feeds decoded PCM to an output stream.
//
// A FrameSource loops over a DecodedAudio clip and hands out deinterleaved
// normalized frames. A Callback pulls frames from the source, runs them
// through a Transform and interleaves the result into the stream's native
// sample format. Neither allocates once constructed.
package render
