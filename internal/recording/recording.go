// Package recording loads captured recordings for verification and writes the
// reference recorder's dumps.
package recording

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/and161185/streamcheck/internal/errs"
	"github.com/and161185/streamcheck/internal/recording/xdf"
	"github.com/and161185/streamcheck/model"
)

// File extensions understood by Open and Write.
const (
	ExtXDF  = ".xdf"
	ExtJSON = ".json"
)

// Loader produces the recorded streams and header of one recording.
type Loader interface {
	Load(ctx context.Context, path string) ([]model.RecordedStream, model.Header, error)
}

// Open returns the loader for path's extension.
func Open(path string) (Loader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtXDF:
		return XDFLoader{}, nil
	case ExtJSON:
		return JSONLoader{}, nil
	default:
		return nil, &errs.LoadError{Path: path, Err: fmt.Errorf("unsupported recording extension %q", filepath.Ext(path))}
	}
}

// Load opens path with the loader matching its extension.
func Load(ctx context.Context, path string) ([]model.RecordedStream, model.Header, error) {
	l, err := Open(path)
	if err != nil {
		return nil, model.Header{}, err
	}
	return l.Load(ctx, path)
}

// Write stores rec at path in the format matching its extension.
func Write(path string, rec model.Recording) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtXDF:
		return xdf.WriteFile(path, rec)
	case ExtJSON:
		return WriteJSONFile(path, rec)
	default:
		return fmt.Errorf("unsupported recording extension %q", filepath.Ext(path))
	}
}

// XDFLoader reads .xdf files.
type XDFLoader struct{}

// Load implements Loader.
func (XDFLoader) Load(ctx context.Context, path string) ([]model.RecordedStream, model.Header, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.Header{}, &errs.LoadError{Path: path, Err: err}
	}
	rec, err := xdf.ReadFile(path)
	if err != nil {
		return nil, model.Header{}, &errs.LoadError{Path: path, Err: err}
	}
	return rec.Streams, rec.Header, nil
}
