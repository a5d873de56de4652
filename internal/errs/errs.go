// Package errs holds the sentinel and typed errors shared across packages.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrCatalogInvalid  = errors.New("invalid stream catalog")
	ErrTransport       = errors.New("transport error")
	ErrLoad            = errors.New("recording load error")
	ErrShutdownTimeout = errors.New("shutdown timed out")
	ErrAlreadyStarted  = errors.New("already started")
	ErrStopped         = errors.New("already stopped")
	ErrStreamNotFound  = errors.New("stream not found")
)

// CatalogError describes why a catalog entry was rejected.
type CatalogError struct {
	Name   string
	Reason string
}

func (e *CatalogError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("catalog: %s", e.Reason)
	}
	return fmt.Sprintf("catalog: stream %q: %s", e.Name, e.Reason)
}

func (e *CatalogError) Is(target error) bool { return target == ErrCatalogInvalid }

// TransportError is fatal to the generator task that owns the outlet.
type TransportError struct {
	Stream string
	Op     string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: stream %q: %s: %v", e.Stream, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// LoadError aborts a verification run.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Is(target error) bool { return target == ErrLoad }

// ShutdownError lists the streams that did not stop in time.
type ShutdownError struct {
	Pending []string
}

func (e *ShutdownError) Error() string {
	return fmt.Sprintf("shutdown timed out, still running: %v", e.Pending)
}

func (e *ShutdownError) Is(target error) bool { return target == ErrShutdownTimeout }
