// Package storage defines what the reference recorder needs from a stream store.
package storage

import (
	"context"

	"github.com/and161185/streamcheck/model"
)

// Storage keeps the streams announced to the recorder and their samples.
type Storage interface {
	// RegisterStream announces a stream. Registering a known source id again
	// refreshes its info and keeps the samples.
	RegisterStream(ctx context.Context, info model.StreamInfo) error
	// Info returns the header registered for sourceID.
	Info(ctx context.Context, sourceID string) (model.StreamInfo, error)
	// AppendSamples stores samples for a registered source id, in order.
	AppendSamples(ctx context.Context, sourceID string, samples []model.Sample) (model.StreamInfo, error)
	// Streams returns every stream in registration order.
	Streams(ctx context.Context) ([]model.RecordedStream, error)
	// Stream returns the most recently registered stream called name.
	Stream(ctx context.Context, name string) (model.RecordedStream, error)
	Header(ctx context.Context) (model.Header, error)
	Ping(ctx context.Context) error
}

// Dumper is a Storage that can persist itself to a recording file.
type Dumper interface {
	SaveToFile(ctx context.Context, path string) error
}
