// Package recorder is a minimal stand-in for the recording application. It
// accepts stream registrations and sample batches over HTTP and NATS and keeps
// them in a storage.Storage.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/and161185/streamcheck/internal/config"
	"github.com/and161185/streamcheck/internal/errs"
	"github.com/and161185/streamcheck/internal/metrics"
	"github.com/and161185/streamcheck/internal/recorder/middleware"
	"github.com/and161185/streamcheck/internal/recording/xdf"
	"github.com/and161185/streamcheck/internal/transport"
	"github.com/and161185/streamcheck/model"
	"github.com/and161185/streamcheck/storage"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Rejection reasons reported on the rejected counter.
const (
	reasonHash          = "hash"
	reasonBadRequest    = "bad_request"
	reasonUnknownStream = "unknown_stream"
	reasonChannels      = "channel_mismatch"
	reasonStorage       = "storage"
)

// NewSession describes a fresh recording started at now.
func NewSession(now time.Time) model.Header {
	return model.Header{
		Version:   xdf.Version,
		Datetime:  now.UTC().Format(time.RFC3339),
		SessionID: uuid.NewString(),
	}
}

// Recorder serves the recorder HTTP API and, optionally, a NATS inlet.
type Recorder struct {
	storage  storage.Storage
	config   *config.RecorderConfig
	logger   *zap.SugaredLogger
	metrics  *metrics.Recorder
	registry *prometheus.Registry

	mu       sync.Mutex
	known    map[string]struct{}
	subjects map[string]string // NATS sample subject -> source id
}

// New creates a recorder writing to st.
func New(st storage.Storage, cfg *config.RecorderConfig) *Recorder {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.Subject == "" {
		cfg.Subject = transport.DefaultSubjectPrefix
	}
	reg := prometheus.NewRegistry()
	return &Recorder{
		storage:  st,
		config:   cfg,
		logger:   logger,
		metrics:  metrics.NewRecorder(reg),
		registry: reg,
		known:    make(map[string]struct{}),
		subjects: make(map[string]string),
	}
}

// Registry returns the registry the recorder collectors live on.
func (rec *Recorder) Registry() *prometheus.Registry {
	return rec.registry
}

// Router builds the HTTP API. The hash check sees the body as sent, so it runs
// before decompression.
func (rec *Recorder) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(chiMiddleware.StripSlashes)
	router.Use(middleware.LogMiddleware(rec.logger))
	router.Use(middleware.TrustedSubnetMiddleware(rec.config.TrustedSubnet))
	router.Use(middleware.VerifyHashMiddleware(rec.config.Key, func(*http.Request) { rec.reject(reasonHash) }))
	router.Use(middleware.DecompressMiddleware)
	router.Use(middleware.CompressMiddleware)

	router.Post(transport.PathOutlets, rec.RegisterHandler)
	router.Post(transport.PathSamples+"{id}", rec.SamplesHandler)
	router.Get("/streams", rec.ListStreamsHandler)
	router.Get("/streams/{name}", rec.GetStreamHandler)
	router.Get("/ping", rec.PingHandler)
	router.Method(http.MethodGet, "/metrics", metrics.Handler(rec.registry))
	return router
}

// Run serves HTTP on the configured address until ctx is cancelled, dumping the
// store periodically when it supports it and once more on the way out.
func (rec *Recorder) Run(ctx context.Context) error {
	srv := &http.Server{Addr: rec.config.Addr, Handler: rec.Router()}

	errCh := make(chan error, 1)
	go func() {
		rec.logger.Infow("recorder_listening", "addr", rec.config.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	dumper, canDump := rec.storage.(storage.Dumper)
	var dumpWG sync.WaitGroup
	if canDump && rec.config.StoreInterval > 0 {
		dumpWG.Add(1)
		go func() {
			defer dumpWG.Done()
			rec.dumpLoop(ctx, dumper, time.Duration(rec.config.StoreInterval)*time.Second)
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			serveErr = fmt.Errorf("listen: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		rec.logger.Warnw("recorder_shutdown", "error", err)
	}
	dumpWG.Wait()

	if canDump {
		if err := rec.dump(shutdownCtx, dumper); err != nil && serveErr == nil {
			serveErr = err
		}
	}
	return serveErr
}

func (rec *Recorder) dumpLoop(ctx context.Context, dumper storage.Dumper, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := rec.dump(ctx, dumper); err != nil {
				rec.logger.Errorw("dump_failed", "path", rec.config.RecordingPath, "error", err)
			}
		}
	}
}

func (rec *Recorder) dump(ctx context.Context, dumper storage.Dumper) error {
	if rec.config.RecordingPath == "" {
		return nil
	}
	if err := dumper.SaveToFile(ctx, rec.config.RecordingPath); err != nil {
		return fmt.Errorf("dump recording: %w", err)
	}
	return nil
}

// register stores info and updates the bookkeeping shared by both inlets.
func (rec *Recorder) register(ctx context.Context, info model.StreamInfo) error {
	if err := validateInfo(info); err != nil {
		rec.reject(reasonBadRequest)
		return err
	}
	if err := rec.storage.RegisterStream(ctx, info); err != nil {
		rec.reject(reasonStorage)
		return fmt.Errorf("register stream %s: %w", info.SourceID, err)
	}

	rec.mu.Lock()
	rec.known[info.SourceID] = struct{}{}
	rec.subjects[transport.SampleSubject(rec.config.Subject, info.SourceID)] = info.SourceID
	rec.metrics.StreamsKnown.Set(float64(len(rec.known)))
	rec.mu.Unlock()

	rec.logger.Infow("stream_registered",
		"stream", info.Name,
		"id", info.SourceID,
		"type", info.Type,
		"channels", info.ChannelCount,
		"rate", info.NominalRate,
	)
	return nil
}

// appendSamples checks every sample against the registered channel count
// before anything is stored, so a batch is either taken whole or rejected.
func (rec *Recorder) appendSamples(ctx context.Context, sourceID string, samples []model.Sample) error {
	info, err := rec.storage.Info(ctx, sourceID)
	if err != nil {
		if errors.Is(err, errs.ErrStreamNotFound) {
			rec.reject(reasonUnknownStream)
		} else {
			rec.reject(reasonStorage)
		}
		return err
	}
	for i, s := range samples {
		if len(s.Values) != info.ChannelCount {
			rec.reject(reasonChannels)
			return fmt.Errorf("%w: sample %d of %s has %d values, want %d",
				errChannelMismatch, i, info.Name, len(s.Values), info.ChannelCount)
		}
	}
	if _, err := rec.storage.AppendSamples(ctx, sourceID, samples); err != nil {
		rec.reject(reasonStorage)
		return err
	}
	rec.metrics.SamplesReceived.WithLabelValues(info.Name).Add(float64(len(samples)))
	return nil
}

func (rec *Recorder) reject(reason string) {
	rec.metrics.Rejected.WithLabelValues(reason).Inc()
}
