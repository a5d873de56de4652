// Package transport advertises streams and carries their samples to a recorder.
package transport

import (
	"context"

	"github.com/and161185/streamcheck/model"
)

//go:generate mockgen -destination=mocks/mock_transport.go -package=mocks . Transport,Outlet

// Transport creates outlets, one per advertised stream.
type Transport interface {
	CreateOutlet(ctx context.Context, info model.StreamInfo) (Outlet, error)
}

// Outlet is the handle a generator pushes samples through.
// An outlet is used by a single goroutine.
type Outlet interface {
	Push(values []any, timestamp float64) error
	Close() error
}
