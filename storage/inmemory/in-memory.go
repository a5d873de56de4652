package inmemory

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/and161185/streamcheck/internal/errs"
	"github.com/and161185/streamcheck/internal/recording"
	"github.com/and161185/streamcheck/model"
)

// MemStorage keeps the recording in process.
type MemStorage struct {
	header  model.Header
	streams map[string]*model.RecordedStream
	order   []string
	mu      sync.RWMutex
}

// NewMemStorage returns an empty store for a recording described by header.
func NewMemStorage(header model.Header) *MemStorage {
	return &MemStorage{
		header:  header,
		streams: make(map[string]*model.RecordedStream),
	}
}

func (store *MemStorage) RegisterStream(ctx context.Context, info model.StreamInfo) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if rs, ok := store.streams[info.SourceID]; ok {
		rs.Info = info
		return nil
	}
	store.streams[info.SourceID] = &model.RecordedStream{Info: info}
	store.order = append(store.order, info.SourceID)
	return nil
}

func (store *MemStorage) Info(ctx context.Context, sourceID string) (model.StreamInfo, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	rs, ok := store.streams[sourceID]
	if !ok {
		return model.StreamInfo{}, errs.ErrStreamNotFound
	}
	return rs.Info, nil
}

func (store *MemStorage) AppendSamples(ctx context.Context, sourceID string, samples []model.Sample) (model.StreamInfo, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	rs, ok := store.streams[sourceID]
	if !ok {
		return model.StreamInfo{}, errs.ErrStreamNotFound
	}
	rs.Samples = append(rs.Samples, samples...)
	return rs.Info, nil
}

func (store *MemStorage) Streams(ctx context.Context) ([]model.RecordedStream, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	result := make([]model.RecordedStream, 0, len(store.order))
	for _, id := range store.order {
		result = append(result, copyStream(store.streams[id]))
	}
	return result, nil
}

func (store *MemStorage) Stream(ctx context.Context, name string) (model.RecordedStream, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	for i := len(store.order) - 1; i >= 0; i-- {
		if rs := store.streams[store.order[i]]; rs.Info.Name == name {
			return copyStream(rs), nil
		}
	}
	return model.RecordedStream{}, errs.ErrStreamNotFound
}

func (store *MemStorage) Header(ctx context.Context) (model.Header, error) {
	return store.header, nil
}

func copyStream(rs *model.RecordedStream) model.RecordedStream {
	return model.RecordedStream{Info: rs.Info, Samples: append([]model.Sample(nil), rs.Samples...)}
}

// SaveToFile dumps the recording to filePath as .xdf or .json, by extension.
func (store *MemStorage) SaveToFile(ctx context.Context, filePath string) error {
	streams, err := store.Streams(ctx)
	if err != nil {
		return fmt.Errorf("failed to get streams: %w", err)
	}

	if len(streams) == 0 {
		return nil
	}

	if dir := filepath.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// write next to the target and rename, so readers never see a partial file
	tmp := filePath + ".tmp" + filepath.Ext(filePath)
	if err := recording.Write(tmp, model.Recording{Header: store.header, Streams: streams}); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		return fmt.Errorf("failed to replace file: %w", err)
	}

	log.Printf("saved to %s", filePath)

	return nil
}

// LoadFromFile restores a previous dump. A missing file is not an error.
func (store *MemStorage) LoadFromFile(ctx context.Context, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil
	}

	streams, header, err := recording.Load(ctx, filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	store.mu.Lock()
	if header.SessionID != "" {
		store.header = header
	}
	store.mu.Unlock()

	for _, rs := range streams {
		if err := store.RegisterStream(ctx, rs.Info); err != nil {
			return fmt.Errorf("failed to restore stream %s: %w", rs.Info.Name, err)
		}
		if _, err := store.AppendSamples(ctx, rs.Info.SourceID, rs.Samples); err != nil {
			return fmt.Errorf("failed to restore stream %s: %w", rs.Info.Name, err)
		}
	}

	log.Printf("loaded from %s", filePath)

	return nil
}

func (store *MemStorage) Ping(ctx context.Context) error {
	return nil
}
