// Package generator produces synthetic samples for continuous and event streams.
//
// Each generator is driven by exactly one goroutine and owns its outlet and
// counters; the only thing shared with the outside is the context passed to Run.
package generator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/and161185/streamcheck/internal/errs"
	"github.com/and161185/streamcheck/internal/metrics"
	"github.com/and161185/streamcheck/model"
	"go.uber.org/zap"
)

// Outlet receives the samples of one stream.
type Outlet interface {
	Push(values []any, timestamp float64) error
}

// Generator emits samples for one stream until its context is cancelled.
type Generator interface {
	Run(ctx context.Context) error
	Spec() model.StreamSpec
	Pushed() uint64
}

// Option customises a generator.
type Option func(*options)

type options struct {
	rng     *rand.Rand
	now     func() time.Time
	logger  *zap.SugaredLogger
	metrics *metrics.Generator
}

// WithRand makes the generator draw from r instead of an unseeded source.
func WithRand(r *rand.Rand) Option {
	return func(o *options) { o.rng = r }
}

// WithClock replaces time.Now for sample timestamps. Scheduling always runs on
// the real clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the structured event sink.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics counts pushes and failures on m.
func WithMetrics(m *metrics.Generator) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if o.logger == nil {
		o.logger = zap.NewNop().Sugar()
	}
	return o
}

// New returns the generator matching spec.Kind.
func New(spec model.StreamSpec, out Outlet, opts ...Option) (Generator, error) {
	switch spec.Kind {
	case model.Continuous:
		return NewContinuous(spec, out, opts...), nil
	case model.Event:
		return NewEvent(spec, out, opts...), nil
	default:
		return nil, &errs.CatalogError{Name: spec.Name, Reason: fmt.Sprintf("unknown kind %q", spec.Kind)}
	}
}

// base carries what both generator kinds share.
type base struct {
	spec   model.StreamSpec
	outlet Outlet
	opts   options
	pushed atomic.Uint64
}

func (b *base) Spec() model.StreamSpec { return b.spec }

// Pushed returns how many samples reached the outlet so far. Safe for concurrent use.
func (b *base) Pushed() uint64 { return b.pushed.Load() }

func (b *base) push(values []any, at time.Time) error {
	if err := b.outlet.Push(values, Timestamp(at)); err != nil {
		if b.opts.metrics != nil {
			b.opts.metrics.PushErrors.WithLabelValues(b.spec.Name).Inc()
		}
		return &errs.TransportError{Stream: b.spec.Name, Op: "push", Err: err}
	}
	b.pushed.Add(1)
	if b.opts.metrics != nil {
		b.opts.metrics.SamplesPushed.WithLabelValues(b.spec.Name).Inc()
	}
	return nil
}

// Timestamp converts t to seconds since the Unix epoch.
func Timestamp(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// wait blocks for d or until ctx is done. It reports whether the caller should continue.
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
