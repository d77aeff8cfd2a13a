// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines DecodedAudio and sample conversion functions
// Package audio provides the fundamental PCM types shared by the decoder,
// the render path and the playback controller.
//
// Decoded clips are always interleaved signed 16-bit little-endian samples
// with one or two channels:
//   - DecodedAudio: a whole clip plus its stream metadata
//   - SampleToFloat / FloatToSample: normalization by 32767
//   - ToInt16: reduces 8/24/32-bit integer samples to 16 bits
//
// Example:
//
//	clip := &audio.DecodedAudio{SampleRate: 44100, Channels: 2, PCM: pcm}
//	first := audio.SampleToFloat(clip.Sample(0))
package audio
