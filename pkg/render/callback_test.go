// ABOUTME: Tests for the render callback
// ABOUTME: Uses a passthrough transform to check chunking and sample conversion
package render

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/Desdaemon/yume-jukebox/internal/audiotest"
	"github.com/Desdaemon/yume-jukebox/pkg/audio"
	"github.com/Desdaemon/yume-jukebox/pkg/audio/output"
	"github.com/Desdaemon/yume-jukebox/pkg/stretch"
)

// passthrough copies input to output and records its configuration.
type passthrough struct {
	channels, rate int
	resets         int
	calls          int
	maxFrames      int
	err            error
}

func (p *passthrough) Configure(channels, rate int) error {
	p.channels, p.rate = channels, rate
	return p.err
}

func (p *passthrough) Reset() { p.resets++ }

func (p *passthrough) Process(in [][]float32, inFrames int, out [][]float32, outFrames int) {
	p.calls++
	p.maxFrames = max(p.maxFrames, outFrames)
	for ch := range out {
		copy(out[ch][:outFrames], in[ch][:inFrames])
	}
}

func TestCallbackConfiguresTransform(t *testing.T) {
	tr := &passthrough{}
	if _, err := NewCallback(audiotest.Tone(22050, 2, 100), tr, output.FormatInt16, 0); err != nil {
		t.Fatalf("NewCallback failed: %v", err)
	}
	if tr.channels != 2 || tr.rate != 22050 || tr.resets != 1 {
		t.Errorf("unexpected transform setup %+v", tr)
	}
}

func TestCallbackRejects(t *testing.T) {
	if _, err := NewCallback(audiotest.Tone(22050, 3, 10), &passthrough{}, output.FormatInt16, 0); err == nil {
		t.Error("expected error for 3 channels")
	}

	cause := errors.New("nope")
	_, err := NewCallback(audiotest.Tone(22050, 1, 10), &passthrough{err: cause}, output.FormatInt16, 0)
	if !errors.Is(err, cause) {
		t.Errorf("expected configure error, got %v", err)
	}
}

func TestCallbackInt16RoundTrip(t *testing.T) {
	clip := audiotest.Ramp(8000, 2, 500)
	cb, err := NewCallback(clip, &passthrough{}, output.FormatInt16, 64)
	if err != nil {
		t.Fatal(err)
	}

	dst := make([]byte, 300*4)
	if res := cb.OnAudioReady(dst, 300); res != output.Continue {
		t.Fatalf("expected Continue, got %v", res)
	}

	for i := 0; i < 600; i++ {
		got := int16(binary.LittleEndian.Uint16(dst[2*i:]))
		want := clip.Sample(i)
		if d := int(got) - int(want); d < -1 || d > 1 {
			t.Fatalf("sample %d: expected %d±1, got %d", i, want, got)
		}
	}
}

func TestCallbackFloat32(t *testing.T) {
	clip := audiotest.Tone(8000, 1, 100)
	cb, err := NewCallback(clip, &passthrough{}, output.FormatFloat32, 0)
	if err != nil {
		t.Fatal(err)
	}

	dst := make([]byte, 100*4)
	cb.OnAudioReady(dst, 100)
	for i := 0; i < 100; i++ {
		got := math.Float32frombits(binary.LittleEndian.Uint32(dst[4*i:]))
		if want := audio.SampleToFloat(clip.Sample(i)); got != want {
			t.Fatalf("sample %d: expected %f, got %f", i, want, got)
		}
	}
}

func TestCallbackChunksLargeRequests(t *testing.T) {
	tr := &passthrough{}
	cb, err := NewCallback(audiotest.Ramp(8000, 2, 5000), tr, output.FormatInt16, 256)
	if err != nil {
		t.Fatal(err)
	}

	dst := make([]byte, 1000*4)
	cb.OnAudioReady(dst, 1000)

	if tr.calls != 4 || tr.maxFrames != 256 {
		t.Errorf("expected 4 chunks of at most 256 frames, got %d calls max %d", tr.calls, tr.maxFrames)
	}
	if cb.FramesRendered() != 1000 {
		t.Errorf("expected 1000 frames rendered, got %d", cb.FramesRendered())
	}
	if cb.Source().Position() != 2000 {
		t.Errorf("expected cursor at sample 2000, got %d", cb.Source().Position())
	}
	last := int16(binary.LittleEndian.Uint16(dst[len(dst)-2:]))
	if last < 1998 || last > 1999 {
		t.Errorf("expected the last sample near 1999, got %d", last)
	}
}

func TestCallbackClampsToDestination(t *testing.T) {
	cb, err := NewCallback(audiotest.Ramp(8000, 2, 100), &passthrough{}, output.FormatInt16, 0)
	if err != nil {
		t.Fatal(err)
	}

	cb.OnAudioReady(make([]byte, 10*4+3), 50)
	if cb.FramesRendered() != 10 {
		t.Errorf("expected 10 frames, got %d", cb.FramesRendered())
	}
}

func TestCallbackSilenceThroughStretch(t *testing.T) {
	silent := &audio.DecodedAudio{SampleRate: 44100, Channels: 2, PCM: make([]byte, 4*1024)}
	engine := stretch.New()
	engine.SetTransposeFactor(1.0)

	cb, err := NewCallback(silent, engine, output.FormatInt16, 0)
	if err != nil {
		t.Fatal(err)
	}

	dst := make([]byte, 512*4)
	for round := 0; round < 10; round++ {
		cb.OnAudioReady(dst, 512)
		for i, b := range dst {
			if b != 0 {
				t.Fatalf("round %d byte %d is %#x, expected silence", round, i, b)
			}
		}
	}
}

func TestCallbackConcurrentPitch(t *testing.T) {
	engine := stretch.New()
	cb, err := NewCallback(audiotest.Tone(44100, 2, 44100), engine, output.FormatFloat32, 0)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			engine.SetTransposeFactor(0.5 + float64(i%30)/10)
		}
	}()

	dst := make([]byte, 256*8)
	for i := 0; i < 200; i++ {
		cb.OnAudioReady(dst, 192+i%64)
	}
	wg.Wait()

	for i := 0; i < len(dst)/4; i++ {
		v := math.Float32frombits(binary.LittleEndian.Uint32(dst[4*i:]))
		if math.IsNaN(float64(v)) || v > 1 || v < -1 {
			t.Fatalf("sample %d out of range: %f", i, v)
		}
	}
}
