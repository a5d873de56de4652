package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/and161185/streamcheck/model"
	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is the NATS subject root used when none is configured.
const DefaultSubjectPrefix = "streamcheck"

// Publisher is the part of *nats.Conn the transport needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// InfoSubject carries stream headers.
func InfoSubject(prefix string) string { return prefix + ".info" }

// SampleSubject carries the samples of the stream with the given source id.
func SampleSubject(prefix, sourceID string) string {
	return prefix + ".samples." + strings.ReplaceAll(sourceID, ".", "_")
}

// DialNATS connects to the NATS server at url.
func DialNATS(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name(name), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return nc, nil
}

// NATS advertises streams and publishes samples as JSON messages.
type NATS struct {
	pub    Publisher
	prefix string
}

// NewNATS creates a NATS transport publishing under prefix.
func NewNATS(pub Publisher, prefix string) *NATS {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATS{pub: pub, prefix: prefix}
}

// CreateOutlet publishes the stream header and returns an outlet for its samples.
func (t *NATS) CreateOutlet(_ context.Context, info model.StreamInfo) (Outlet, error) {
	data, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("marshal stream info: %w", err)
	}
	if err := t.pub.Publish(InfoSubject(t.prefix), data); err != nil {
		return nil, fmt.Errorf("publish stream info %s: %w", info.SourceID, err)
	}
	return &natsOutlet{pub: t.pub, subject: SampleSubject(t.prefix, info.SourceID)}, nil
}

type natsOutlet struct {
	pub     Publisher
	subject string
	closed  bool
}

func (o *natsOutlet) Push(values []any, timestamp float64) error {
	if o.closed {
		return errClosed
	}
	data, err := json.Marshal(model.Sample{Timestamp: timestamp, Values: values})
	if err != nil {
		return fmt.Errorf("marshal sample: %w", err)
	}
	return o.pub.Publish(o.subject, data)
}

func (o *natsOutlet) Close() error {
	o.closed = true
	return nil
}
