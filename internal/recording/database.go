package recording

import (
	"context"

	"github.com/and161185/streamcheck/internal/errs"
	"github.com/and161185/streamcheck/model"
)

// Source is a store holding recorded streams, such as the recorder's database.
type Source interface {
	Streams(ctx context.Context) ([]model.RecordedStream, error)
	Header(ctx context.Context) (model.Header, error)
}

// DatabaseLoader loads the streams captured by a recorder into its store.
// The path argument of Load only labels errors.
type DatabaseLoader struct {
	Source Source
}

// Load implements Loader.
func (l DatabaseLoader) Load(ctx context.Context, path string) ([]model.RecordedStream, model.Header, error) {
	h, err := l.Source.Header(ctx)
	if err != nil {
		return nil, model.Header{}, &errs.LoadError{Path: path, Err: err}
	}
	streams, err := l.Source.Streams(ctx)
	if err != nil {
		return nil, model.Header{}, &errs.LoadError{Path: path, Err: err}
	}
	return streams, h, nil
}
