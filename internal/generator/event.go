package generator

import (
	"context"
	"time"

	"github.com/and161185/streamcheck/model"
)

// Event emits single-channel labels at irregular intervals.
type Event struct {
	base
}

// NewEvent creates an event generator writing to out.
func NewEvent(spec model.StreamSpec, out Outlet, opts ...Option) *Event {
	return &Event{base: base{spec: spec, outlet: out, opts: buildOptions(opts)}}
}

// Run pushes a random label, then waits a random interval within the
// configured bounds, until ctx is cancelled.
func (g *Event) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		label := g.spec.Vocabulary[g.opts.rng.IntN(len(g.spec.Vocabulary))]
		if err := g.push([]any{label}, g.opts.now()); err != nil {
			return err
		}
		g.opts.logger.Debugw("marker_sent", "stream", g.spec.Name, "marker", label)

		if !wait(ctx, g.nextInterval()) {
			return nil
		}
	}
}

func (g *Event) nextInterval() time.Duration {
	lo, hi := g.spec.Interval.Min, g.spec.Interval.Max
	ms := lo + g.opts.rng.Float64()*(hi-lo)
	return time.Duration(ms * float64(time.Millisecond))
}
