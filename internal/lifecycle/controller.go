// Package lifecycle starts one generator task per catalog stream and stops them cooperatively.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/and161185/streamcheck/internal/catalog"
	"github.com/and161185/streamcheck/internal/errs"
	"github.com/and161185/streamcheck/internal/generator"
	"github.com/and161185/streamcheck/internal/metrics"
	"github.com/and161185/streamcheck/internal/transport"
	"go.uber.org/zap"
)

// Option customises a Controller.
type Option func(*Controller)

// WithLogger sets the sink for stream_started/stream_stopped/stream_failed events.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithMetrics updates the running gauge and forwards m to every generator.
func WithMetrics(m *metrics.Generator) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithGeneratorOptions passes extra options to every generator, e.g. a seeded source in tests.
func WithGeneratorOptions(opts ...generator.Option) Option {
	return func(c *Controller) { c.genOpts = append(c.genOpts, opts...) }
}

// Controller owns the cancellation shared by all generator tasks.
type Controller struct {
	transport transport.Transport
	logger    *zap.SugaredLogger
	metrics   *metrics.Generator
	genOpts   []generator.Option

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	handles []*Handle
}

// NewController creates a controller that opens outlets on tr.
func NewController(tr transport.Transport, opts ...Option) *Controller {
	c := &Controller{transport: tr}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop().Sugar()
	}
	return c
}

// Start validates cat and launches one task per stream. Tasks run until ctx is
// cancelled or StopAll is called. A controller can only be started once, and
// not at all after StopAll.
func (c *Controller) Start(ctx context.Context, cat catalog.Catalog) ([]*Handle, error) {
	if err := cat.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return nil, errs.ErrStopped
	}
	if c.started {
		return nil, errs.ErrAlreadyStarted
	}
	c.started = true

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.handles = make([]*Handle, 0, len(cat))
	for _, spec := range cat {
		h := newHandle(spec)
		c.handles = append(c.handles, h)

		go c.run(runCtx, h)
	}
	return append([]*Handle(nil), c.handles...), nil
}

func (c *Controller) run(ctx context.Context, h *Handle) {
	defer close(h.done)
	spec := h.spec

	out, err := c.transport.CreateOutlet(ctx, spec.Info())
	if err != nil {
		err = &errs.TransportError{Stream: spec.Name, Op: "create_outlet", Err: err}
		h.finish(err)
		c.logger.Errorw("stream_failed", "stream", spec.Name, "id", spec.ID(), "error", err)
		return
	}

	opts := append([]generator.Option{generator.WithLogger(c.logger)}, c.genOpts...)
	if c.metrics != nil {
		opts = append(opts, generator.WithMetrics(c.metrics))
		c.metrics.StreamsRunning.Inc()
		defer c.metrics.StreamsRunning.Dec()
	}
	gen, err := generator.New(spec, out, opts...)
	if err != nil {
		_ = out.Close()
		h.finish(err)
		c.logger.Errorw("stream_failed", "stream", spec.Name, "id", spec.ID(), "error", err)
		return
	}
	h.attach(gen)

	c.logger.Infow("stream_started",
		"stream", spec.Name,
		"id", spec.ID(),
		"kind", spec.Kind,
		"channels", spec.ChannelCount,
		"rate", spec.NominalRate,
	)

	runErr := gen.Run(ctx)
	if closeErr := out.Close(); closeErr != nil && runErr == nil {
		runErr = &errs.TransportError{Stream: spec.Name, Op: "close", Err: closeErr}
	}
	h.finish(runErr)

	if runErr != nil {
		c.logger.Errorw("stream_failed", "stream", spec.Name, "id", spec.ID(), "pushed", gen.Pushed(), "error", runErr)
		return
	}
	c.logger.Infow("stream_stopped", "stream", spec.Name, "id", spec.ID(), "pushed", gen.Pushed())
}

// StopAll signals every task to stop and waits up to timeout for them to exit.
// It is safe to call more than once and before Start.
func (c *Controller) StopAll(timeout time.Duration) error {
	c.mu.Lock()
	c.stopped = true
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return c.AwaitAllStopped(timeout)
}

// AwaitAllStopped blocks until every task started so far has exited. With a positive timeout it
// gives up after that long and returns a ShutdownError naming the streams still
// running; the tasks are left to finish on their own.
func (c *Controller) AwaitAllStopped(timeout time.Duration) error {
	handles := c.Handles()
	done := make(chan struct{})
	go func() {
		for _, h := range handles {
			<-h.done
		}
		close(done)
	}()

	if timeout <= 0 {
		<-done
		return nil
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
		return nil
	case <-t.C:
	}

	var pending []string
	for _, h := range handles {
		if !h.Stopped() {
			pending = append(pending, h.spec.Name)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	c.logger.Warnw("shutdown_timeout", "pending", pending, "timeout", timeout)
	return &errs.ShutdownError{Pending: pending}
}

// Handles returns the task handles in catalog order.
func (c *Controller) Handles() []*Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Handle(nil), c.handles...)
}

// Status snapshots every task.
func (c *Controller) Status() []Status {
	hs := c.Handles()
	out := make([]Status, 0, len(hs))
	for _, h := range hs {
		out = append(out, h.Status())
	}
	return out
}

// Handle returns the task for the named stream.
func (c *Controller) Handle(name string) (*Handle, error) {
	for _, h := range c.Handles() {
		if h.spec.Name == name {
			return h, nil
		}
	}
	return nil, errs.ErrStreamNotFound
}
