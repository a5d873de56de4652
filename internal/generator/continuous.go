package generator

import (
	"context"
	"math"
	"time"

	"github.com/and161185/streamcheck/model"
)

// Continuous emits ChannelCount-wide numeric samples at NominalRate.
type Continuous struct {
	base
	counter uint64
}

// NewContinuous creates a continuous generator writing to out.
func NewContinuous(spec model.StreamSpec, out Outlet, opts ...Option) *Continuous {
	return &Continuous{base: base{spec: spec, outlet: out, opts: buildOptions(opts)}}
}

// Run pushes one sample per tick. Tick n is due at start + n/rate on the
// monotonic wall clock, so processing time does not accumulate into drift.
// The injected clock only stamps samples. Run returns nil on cancellation
// and a TransportError if the outlet fails.
func (g *Continuous) Run(ctx context.Context) error {
	period := float64(time.Second) / g.spec.NominalRate
	start := time.Now()

	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := g.push(g.sample(), g.opts.now()); err != nil {
			return err
		}
		g.counter++

		due := start.Add(time.Duration(float64(g.counter) * period))
		if !wait(ctx, time.Until(due)) {
			return nil
		}
	}
}

func (g *Continuous) sample() []any {
	values := make([]any, g.spec.ChannelCount)
	for i := range values {
		values[i] = continuousValue(g.spec.Amplitude, g.spec.NominalRate, g.counter, g.opts.rng.Float64())
	}
	return values
}

// continuousValue is a sawtooth with a period of two seconds plus uniform noise.
// u is a uniform draw from [0, 1).
func continuousValue(amplitude, rate float64, counter uint64, u float64) float64 {
	ramp := math.Mod(float64(counter), 2*rate) / rate
	return amplitude * ((u - 0.5) + 0.2*ramp)
}
