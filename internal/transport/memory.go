package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/and161185/streamcheck/model"
)

// Memory keeps every pushed sample in process. It doubles as a recording source,
// which makes it the transport of choice for dry runs and tests.
type Memory struct {
	mu      sync.Mutex
	streams map[string]*model.RecordedStream
	order   []string
}

// NewMemory returns an empty in-process transport.
func NewMemory() *Memory {
	return &Memory{streams: make(map[string]*model.RecordedStream)}
}

// CreateOutlet registers info and returns an outlet appending to it.
func (m *Memory) CreateOutlet(_ context.Context, info model.StreamInfo) (Outlet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.streams[info.SourceID]; ok {
		return nil, fmt.Errorf("outlet %s already exists", info.SourceID)
	}
	m.streams[info.SourceID] = &model.RecordedStream{Info: info}
	m.order = append(m.order, info.SourceID)
	return &memoryOutlet{m: m, id: info.SourceID}, nil
}

// Streams returns a copy of everything pushed so far, in outlet creation order.
func (m *Memory) Streams() []model.RecordedStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]model.RecordedStream, 0, len(m.order))
	for _, id := range m.order {
		rs := m.streams[id]
		res = append(res, model.RecordedStream{
			Info:    rs.Info,
			Samples: append([]model.Sample(nil), rs.Samples...),
		})
	}
	return res
}

type memoryOutlet struct {
	m      *Memory
	id     string
	closed bool
}

func (o *memoryOutlet) Push(values []any, timestamp float64) error {
	if o.closed {
		return errClosed
	}
	o.m.mu.Lock()
	defer o.m.mu.Unlock()
	rs := o.m.streams[o.id]
	rs.Samples = append(rs.Samples, model.Sample{Timestamp: timestamp, Values: values})
	return nil
}

func (o *memoryOutlet) Close() error {
	o.closed = true
	return nil
}
