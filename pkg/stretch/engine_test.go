// ABOUTME: Tests for the granular pitch engine
// ABOUTME: Checks silence identity, factor clamping and concurrent pitch writes
package stretch

import (
	"errors"
	"math"
	"sync"
	"testing"
)

func planes(channels, frames int) [][]float32 {
	p := make([][]float32, channels)
	for ch := range p {
		p[ch] = make([]float32, frames)
	}
	return p
}

func TestSilenceIdentity(t *testing.T) {
	for _, channels := range []int{1, 2} {
		for _, rate := range []int{8000, 44100, 48000} {
			for _, factor := range []float64{0.25, 1, 2.5, 4} {
				e := New()
				if err := e.Configure(channels, rate); err != nil {
					t.Fatalf("Configure(%d, %d) failed: %v", channels, rate, err)
				}
				e.SetTransposeFactor(factor)

				in, out := planes(channels, 256), planes(channels, 256)
				for round := 0; round < 8; round++ {
					e.Process(in, 256, out, 256)
					for ch := range out {
						for i, v := range out[ch] {
							if v != 0 {
								t.Fatalf("%dch %dHz x%.2f: sample %d of channel %d is %f",
									channels, rate, factor, i, ch, v)
							}
						}
					}
				}
			}
		}
	}
}

func TestSetTransposeFactor(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"unity", 1, 1},
		{"octave up", 2, 2},
		{"octave down", 0.5, 0.5},
		{"too high", 10, MaxTransposeFactor},
		{"too low", 0.01, MinTransposeFactor},
		{"zero ignored", 0, 1.5},
		{"negative ignored", -2, 1.5},
		{"nan ignored", math.NaN(), 1.5},
		{"inf ignored", math.Inf(1), 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New()
			e.SetTransposeFactor(1.5)
			e.SetTransposeFactor(tt.in)
			if got := e.TransposeFactor(); got != tt.want {
				t.Errorf("expected %f, got %f", tt.want, got)
			}
		})
	}
}

func TestConfigureValidation(t *testing.T) {
	tests := []struct {
		channels, rate int
	}{
		{0, 44100},
		{3, 44100},
		{2, 0},
		{1, -8000},
	}
	for _, tt := range tests {
		if err := New().Configure(tt.channels, tt.rate); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Configure(%d, %d): expected ErrInvalidConfig, got %v", tt.channels, tt.rate, err)
		}
	}
}

func TestProcessUnconfiguredWritesSilence(t *testing.T) {
	out := planes(2, 16)
	out[0][3], out[1][7] = 0.5, -0.5

	New().Process(planes(2, 16), 16, out, 16)

	if out[0][3] != 0 || out[1][7] != 0 {
		t.Error("expected output to be cleared")
	}
}

func TestProcessOutputBounded(t *testing.T) {
	e := New()
	if err := e.Configure(2, 48000); err != nil {
		t.Fatal(err)
	}
	e.SetTransposeFactor(1.8)

	in, out := planes(2, 512), planes(2, 512)
	var peak float32
	for round := 0; round < 40; round++ {
		for i := range in[0] {
			v := float32(0.8 * math.Sin(2*math.Pi*440*float64(round*512+i)/48000))
			in[0][i], in[1][i] = v, -v
		}
		e.Process(in, 512, out, 512)
		for ch := range out {
			for _, v := range out[ch] {
				if v > 0.8001 || v < -0.8001 {
					t.Fatalf("sample %f exceeds input peak", v)
				}
				peak = max(peak, v)
			}
		}
	}
	if peak == 0 {
		t.Error("expected a non-silent signal once the grain delay has passed")
	}
}

func TestProcessShortInputPadsSilence(t *testing.T) {
	e := New()
	if err := e.Configure(1, 8000); err != nil {
		t.Fatal(err)
	}

	in, out := planes(1, 64), planes(1, 64)
	for i := range in[0] {
		in[0][i] = 1
	}
	// With no input frames every sample reads as silence.
	e.Process(in, 0, out, 64)
	for i, v := range out[0] {
		if v != 0 {
			t.Fatalf("sample %d is %f, expected silence", i, v)
		}
	}
}

func TestResetClearsHistory(t *testing.T) {
	e := New()
	if err := e.Configure(1, 8000); err != nil {
		t.Fatal(err)
	}

	in, out := planes(1, 4096), planes(1, 4096)
	for i := range in[0] {
		in[0][i] = 0.5
	}
	e.Process(in, 4096, out, 4096)

	e.Reset()
	silence := planes(1, 4096)
	e.Process(silence, 4096, out, 4096)
	for i, v := range out[0] {
		if v != 0 {
			t.Fatalf("sample %d is %f after Reset", i, v)
		}
	}
}

func TestConcurrentSetTransposeFactor(t *testing.T) {
	e := New()
	if err := e.Configure(2, 44100); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		f := 0.25
		for {
			select {
			case <-stop:
				return
			default:
			}
			e.SetTransposeFactor(f)
			f += 0.1
			if f > 4 {
				f = 0.25
			}
		}
	}()

	in, out := planes(2, 256), planes(2, 256)
	for i := 0; i < 200; i++ {
		e.Process(in, 256, out, 256)
	}
	close(stop)
	wg.Wait()

	if f := e.TransposeFactor(); f < MinTransposeFactor || f > MaxTransposeFactor {
		t.Errorf("factor %f escaped its range", f)
	}
}
