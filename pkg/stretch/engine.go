// ABOUTME: Granular pitch shifter over deinterleaved float frames
// ABOUTME: Holds one algo-dsp processor per channel and a lock-free transpose factor
package stretch

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-dsp/dsp/effects"
)

const (
	// MinTransposeFactor and MaxTransposeFactor bound the pitch ratio.
	MinTransposeFactor = 0.25
	MaxTransposeFactor = 4.0

	// GrainSeconds is the length of one grain.
	GrainSeconds = 0.08

	// Overlap is the fraction of a grain shared with the next one.
	Overlap = 0.5

	seed = 1
)

var ErrInvalidConfig = errors.New("invalid stretch configuration")

// Engine is a pitch shifter. The zero value is not usable; call New.
type Engine struct {
	factor atomic.Uint64

	channels   int
	sampleRate int
	applied    float64
	procs      []*effects.Granular
}

// New creates an unconfigured engine at unity pitch.
func New() *Engine {
	e := &Engine{}
	e.factor.Store(math.Float64bits(1))
	return e
}

// Configure allocates one processor per channel and applies the current
// transpose factor. It must not run concurrently with Process.
func (e *Engine) Configure(channels, sampleRate int) error {
	if channels < 1 || channels > 2 {
		return fmt.Errorf("%w: %d channels", ErrInvalidConfig, channels)
	}
	if sampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, sampleRate)
	}

	procs := make([]*effects.Granular, channels)
	for ch := range procs {
		g, err := effects.NewGranular(float64(sampleRate))
		if err != nil {
			return fmt.Errorf("failed to create granular processor: %w", err)
		}
		if err := g.SetGrainSeconds(GrainSeconds); err != nil {
			return err
		}
		if err := g.SetOverlap(Overlap); err != nil {
			return err
		}
		if err := g.SetMix(1); err != nil {
			return err
		}
		g.SetRandomSeed(seed)
		procs[ch] = g
	}

	e.channels = channels
	e.sampleRate = sampleRate
	e.procs = procs
	e.applied = 0
	e.apply(e.TransposeFactor())
	return nil
}

// Channels returns the configured channel count.
func (e *Engine) Channels() int { return e.channels }

// SampleRate returns the configured sample rate.
func (e *Engine) SampleRate() int { return e.sampleRate }

// SetTransposeFactor sets the pitch ratio used by the next Process call.
// Values are clamped to [MinTransposeFactor, MaxTransposeFactor]; NaN,
// infinite and non-positive values are ignored. Safe for concurrent use.
func (e *Engine) SetTransposeFactor(f float64) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return
	}
	e.factor.Store(math.Float64bits(Clamp(f)))
}

// TransposeFactor returns the most recently stored pitch ratio.
func (e *Engine) TransposeFactor() float64 {
	return math.Float64frombits(e.factor.Load())
}

// Clamp limits f to the supported transpose range.
func Clamp(f float64) float64 {
	return math.Min(math.Max(f, MinTransposeFactor), MaxTransposeFactor)
}

// Reset clears every processor's history and grains.
func (e *Engine) Reset() {
	for _, g := range e.procs {
		g.Reset()
	}
}

// Process consumes inFrames frames from in and writes outFrames frames to
// out. Frames past inFrames read as silence, and input past outFrames is
// still fed to the processors. It does not allocate.
func (e *Engine) Process(in [][]float32, inFrames int, out [][]float32, outFrames int) {
	if len(e.procs) == 0 {
		for ch := range out {
			clear(out[ch][:outFrames])
		}
		return
	}

	if f := e.TransposeFactor(); f != e.applied {
		e.apply(f)
	}

	n := max(inFrames, outFrames)
	for ch, g := range e.procs {
		src, dst := in[ch], out[ch]
		for i := 0; i < n; i++ {
			var x float64
			if i < inFrames {
				x = float64(src[i])
			}
			y := g.ProcessSample(x)
			if i < outFrames {
				dst[i] = float32(y)
			}
		}
	}
}

// apply pushes f into the processors. The read head trails the write head
// by enough history that a grain played at f never overtakes it.
func (e *Engine) apply(f float64) {
	delay := GrainSeconds * math.Max(1, f)
	for _, g := range e.procs {
		_ = g.SetPitch(f)
		_ = g.SetBaseDelay(delay)
	}
	e.applied = f
}
