package transport

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/and161185/streamcheck/internal/config"
	"github.com/and161185/streamcheck/internal/utils"
	"github.com/and161185/streamcheck/model"
	"go.uber.org/zap"
)

// Recorder HTTP API paths.
const (
	PathOutlets = "/outlets"
	PathSamples = "/samples/"
	HeaderHash  = "HashSHA256"
)

var errClosed = errors.New("outlet closed")

// HTTP pushes samples to the reference recorder. Samples are buffered per
// outlet and flushed in batches; each sample keeps the timestamp it was
// pushed with, so batching does not change the recorded cadence.
type HTTP struct {
	config     *config.GeneratorConfig
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

// NewHTTP creates an HTTP transport for the recorder at cfg.RecorderAddr.
func NewHTTP(cfg *config.GeneratorConfig, logger *zap.SugaredLogger) *HTTP {
	hc := &http.Client{Timeout: time.Duration(cfg.ClientTimeout) * time.Second}
	return NewHTTPWithClient(cfg, hc, logger)
}

// NewHTTPWithClient is NewHTTP with a ready http.Client.
func NewHTTPWithClient(cfg *config.GeneratorConfig, hc *http.Client, logger *zap.SugaredLogger) *HTTP {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &HTTP{config: cfg, httpClient: hc, logger: logger}
}

// CreateOutlet registers the stream with the recorder and starts the flush loop.
func (t *HTTP) CreateOutlet(ctx context.Context, info model.StreamInfo) (Outlet, error) {
	code, err := t.postGzipJSON(ctx, PathOutlets, info)
	if err != nil {
		return nil, fmt.Errorf("register outlet %s: %w", info.SourceID, err)
	}
	if code != http.StatusOK && code != http.StatusCreated {
		return nil, fmt.Errorf("register outlet %s: unexpected status: %d", info.SourceID, code)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	o := &httpOutlet{t: t, info: info, cancel: cancel, done: make(chan struct{})}
	go o.flushLoop(loopCtx, t.flushInterval())
	return o, nil
}

func (t *HTTP) flushInterval() time.Duration {
	if t.config.FlushInterval <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(t.config.FlushInterval) * time.Millisecond
}

func (t *HTTP) postGzipJSON(ctx context.Context, path string, payload any) (int, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal: %w", err)
	}

	var body bytes.Buffer
	zw := gzip.NewWriter(&body)
	if _, err = zw.Write(raw); err != nil {
		return 0, fmt.Errorf("gzip write: %w", err)
	}
	if err = zw.Close(); err != nil {
		return 0, fmt.Errorf("gzip close: %w", err)
	}
	compressed := body.Bytes()

	var code int
	err = utils.WithRetry(ctx, func() error {
		req, e := http.NewRequestWithContext(ctx, http.MethodPost, t.config.RecorderAddr+path, bytes.NewReader(compressed))
		if e != nil {
			return e
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Content-Encoding", "gzip")
		if t.config.Key != "" {
			req.Header.Set(HeaderHash, utils.CalculateHash(compressed, t.config.Key))
		}

		resp, e := t.httpClient.Do(req)
		if e != nil {
			return e
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		code = resp.StatusCode
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("send request: %w", err)
	}
	return code, nil
}

type httpOutlet struct {
	t    *HTTP
	info model.StreamInfo

	mu      sync.Mutex
	buf     []model.Sample
	sendErr error
	closed  bool

	cancel context.CancelFunc
	done   chan struct{}
}

func (o *httpOutlet) Push(values []any, timestamp float64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return errClosed
	}
	if o.sendErr != nil {
		return o.sendErr
	}
	o.buf = append(o.buf, model.Sample{Timestamp: timestamp, Values: values})
	return nil
}

// Close stops the flush loop and sends whatever is still buffered.
func (o *httpOutlet) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.mu.Unlock()

	o.cancel()
	<-o.done

	ctx, cancel := context.WithTimeout(context.Background(), o.t.httpClient.Timeout+time.Second)
	defer cancel()
	if err := o.flush(ctx); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sendErr
}

func (o *httpOutlet) flushLoop(ctx context.Context, interval time.Duration) {
	defer close(o.done)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := o.flush(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				o.t.logger.Errorw("flush_failed", "stream", o.info.Name, "error", err)
				o.mu.Lock()
				o.sendErr = err
				o.mu.Unlock()
				return
			}
		}
	}
}

func (o *httpOutlet) flush(ctx context.Context) error {
	o.mu.Lock()
	batch := o.buf
	o.buf = nil
	o.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	code, err := o.t.postGzipJSON(ctx, PathSamples+o.info.SourceID, batch)
	if err == nil && code != http.StatusOK {
		err = fmt.Errorf("unexpected status: %d", code)
	}
	if err != nil {
		// keep the batch so a later flush can still deliver it in order
		o.mu.Lock()
		o.buf = append(batch, o.buf...)
		o.mu.Unlock()
	}
	return err
}
