package recorder

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/and161185/streamcheck/internal/errs"
	"github.com/and161185/streamcheck/internal/transport"
	"github.com/and161185/streamcheck/model"
	"github.com/nats-io/nats.go"
)

// Subscriber is the part of *nats.Conn the NATS inlet needs.
type Subscriber interface {
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// SubscribeNATS feeds every message under the configured subject prefix into
// the store. A single wildcard subscription keeps each stream's info message
// ahead of its samples.
func (rec *Recorder) SubscribeNATS(ctx context.Context, sub Subscriber) (*nats.Subscription, error) {
	subject := rec.config.Subject + ".>"
	s, err := sub.Subscribe(subject, func(msg *nats.Msg) {
		if err := rec.HandleMessage(ctx, msg.Subject, msg.Data); err != nil {
			rec.logger.Warnw("nats_message_rejected", "subject", msg.Subject, "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	rec.logger.Infow("nats_subscribed", "subject", subject)
	return s, nil
}

// HandleMessage applies one NATS message: a stream header on the info subject
// or a single sample on a stream's sample subject.
func (rec *Recorder) HandleMessage(ctx context.Context, subject string, data []byte) error {
	if subject == transport.InfoSubject(rec.config.Subject) {
		var info model.StreamInfo
		if err := json.Unmarshal(data, &info); err != nil {
			rec.reject(reasonBadRequest)
			return fmt.Errorf("decode stream info: %w", err)
		}
		return rec.register(ctx, info)
	}

	rec.mu.Lock()
	id, ok := rec.subjects[subject]
	rec.mu.Unlock()
	if !ok {
		rec.reject(reasonUnknownStream)
		return fmt.Errorf("%w: subject %s", errs.ErrStreamNotFound, subject)
	}

	var s model.Sample
	if err := json.Unmarshal(data, &s); err != nil {
		rec.reject(reasonBadRequest)
		return fmt.Errorf("decode sample: %w", err)
	}
	return rec.appendSamples(ctx, id, []model.Sample{s})
}
