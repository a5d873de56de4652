package lifecycle

import (
	"sync"

	"github.com/and161185/streamcheck/internal/generator"
	"github.com/and161185/streamcheck/model"
)

// State of a generator task.
type State string

const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopped  State = "stopped"
	StateFailed   State = "failed"
)

// Status is a point-in-time view of one task.
type Status struct {
	Name   string `json:"name"`
	ID     string `json:"id"`
	State  State  `json:"state"`
	Pushed uint64 `json:"pushed"`
	Error  string `json:"error,omitempty"`
}

// Handle tracks one generator task. The task goroutine is the only writer.
type Handle struct {
	spec model.StreamSpec
	done chan struct{}

	mu    sync.Mutex
	state State
	gen   generator.Generator
	err   error
}

func newHandle(spec model.StreamSpec) *Handle {
	return &Handle{spec: spec, done: make(chan struct{}), state: StateStarting}
}

func (h *Handle) attach(g generator.Generator) {
	h.mu.Lock()
	h.gen, h.state = g, StateRunning
	h.mu.Unlock()
}

func (h *Handle) finish(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
	if err != nil {
		h.state = StateFailed
		return
	}
	h.state = StateStopped
}

// Spec returns the stream this task generates.
func (h *Handle) Spec() model.StreamSpec { return h.spec }

// Done is closed once the task has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Stopped reports whether the task has exited.
func (h *Handle) Stopped() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Err returns the error the task ended with, if any.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Status snapshots the task.
func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := Status{Name: h.spec.Name, ID: h.spec.ID(), State: h.state}
	if h.gen != nil {
		st.Pushed = h.gen.Pushed()
	}
	if h.err != nil {
		st.Error = h.err.Error()
	}
	return st
}
