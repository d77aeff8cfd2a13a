// ABOUTME: Tests for audio types
// ABOUTME: Tests sample conversion functions and DecodedAudio accessors
package audio

import (
	"math"
	"testing"
	"time"
)

func TestSampleRoundTrip(t *testing.T) {
	for s := math.MinInt16; s <= math.MaxInt16; s++ {
		got := FloatToSample(SampleToFloat(int16(s)))
		diff := int(got) - s
		if diff < -1 || diff > 1 {
			t.Fatalf("sample %d round-tripped to %d", s, got)
		}
	}
}

func TestSampleToFloat(t *testing.T) {
	tests := []struct {
		name     string
		input    int16
		expected float32
	}{
		{"zero", 0, 0},
		{"max", 32767, 1},
		{"negative max", -32767, -1},
		{"half", 16384, 16384.0 / 32767.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleToFloat(tt.input)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestFloatToSample(t *testing.T) {
	tests := []struct {
		name     string
		input    float32
		expected int16
	}{
		{"zero", 0, 0},
		{"one", 1, 32767},
		{"minus one", -1, -32767},
		{"clamp high", 1.5, 32767},
		{"clamp low", -7, -32767},
		{"truncates", 0.5, 16383},
		{"truncates negative", -0.5, -16383},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FloatToSample(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestToInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		bitDepth int
		expected int16
	}{
		{"8bit silence", 0, 8, 0},
		{"8bit max", 127, 8, 127 << 8},
		{"8bit min", -128, 8, -32768},
		{"16bit", -1234, 16, -1234},
		{"24bit positive", 0x123456, 24, 0x1234},
		{"24bit negative", -8388608, 24, -32768},
		{"32bit", math.MaxInt32, 32, 32767},
		{"12bit", 2047, 12, 2047 << 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToInt16(tt.input, tt.bitDepth)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestDecodedAudioAccessors(t *testing.T) {
	clip := &DecodedAudio{
		SampleRate: 44100,
		Channels:   2,
		PCM:        make([]byte, 2*2*44100*2),
	}
	PutSample(clip.PCM[2:], -5)

	if clip.Frames() != 88200 {
		t.Errorf("expected 88200 frames, got %d", clip.Frames())
	}
	if clip.Samples() != 176400 {
		t.Errorf("expected 176400 samples, got %d", clip.Samples())
	}
	if clip.Duration() != 2*time.Second {
		t.Errorf("expected 2s duration, got %v", clip.Duration())
	}
	if clip.Sample(1) != -5 {
		t.Errorf("expected sample -5, got %d", clip.Sample(1))
	}
}

func TestDecodedAudioZeroValue(t *testing.T) {
	var clip DecodedAudio
	if clip.Frames() != 0 {
		t.Errorf("expected 0 frames, got %d", clip.Frames())
	}
	if clip.Duration() != 0 {
		t.Errorf("expected 0 duration, got %v", clip.Duration())
	}
}
