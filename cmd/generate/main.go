// Command generate broadcasts the catalog's synthetic streams until it is
// interrupted or its duration elapses.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/and161185/streamcheck/internal/buildinfo"
	"github.com/and161185/streamcheck/internal/catalog"
	"github.com/and161185/streamcheck/internal/config"
	"github.com/and161185/streamcheck/internal/hoststat"
	"github.com/and161185/streamcheck/internal/lifecycle"
	"github.com/and161185/streamcheck/internal/metrics"
	"github.com/and161185/streamcheck/internal/transport"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	buildinfo.PrintBuildInfo(os.Stdout, "streamcheck generate")

	cfg := config.NewGeneratorConfig()
	logger := cfg.Logger
	defer func() { _ = logger.Sync() }()

	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		logger.Errorw("catalog_invalid", "path", cfg.CatalogPath, "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Duration)*time.Second)
		defer cancel()
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewGenerator(reg)

	tr, closeTransport, err := newTransport(cfg, logger)
	if err != nil {
		logger.Errorw("transport_unavailable", "transport", cfg.Transport, "error", err)
		return 1
	}
	defer closeTransport()

	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler(reg)}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warnw("metrics_server_failed", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if cfg.LoadInterval > 0 {
		go hoststat.NewProbe(m, logger).Run(ctx, time.Duration(cfg.LoadInterval)*time.Second)
	}

	logger.Infow("generator_config",
		"transport", cfg.Transport,
		"recorder", cfg.RecorderAddr,
		"streams", len(cat),
		"duration_s", cfg.Duration,
		"shutdown_timeout_s", cfg.ShutdownTimeout,
	)

	ctrl := lifecycle.NewController(tr, lifecycle.WithLogger(logger), lifecycle.WithMetrics(m))
	if _, err := ctrl.Start(ctx, cat); err != nil {
		logger.Errorw("start_failed", "error", err)
		return 1
	}

	<-ctx.Done()
	logger.Infow("shutdown_requested", "cause", context.Cause(ctx))

	code := 0
	if err := ctrl.StopAll(time.Duration(cfg.ShutdownTimeout) * time.Second); err != nil {
		logger.Errorw("shutdown_incomplete", "error", err)
		code = 1
	}
	for _, st := range ctrl.Status() {
		logger.Infow("stream_summary", "stream", st.Name, "state", st.State, "pushed", st.Pushed, "error", st.Error)
	}
	return code
}

func loadCatalog(path string) (catalog.Catalog, error) {
	if path == "" {
		cat := catalog.Default()
		return cat, cat.Validate()
	}
	return catalog.Load(path)
}

// newTransport builds the configured transport and the function that releases it.
func newTransport(cfg *config.GeneratorConfig, logger *zap.SugaredLogger) (transport.Transport, func(), error) {
	switch cfg.Transport {
	case config.TransportHTTP, "":
		return transport.NewHTTP(cfg, logger), func() {}, nil
	case config.TransportNATS:
		nc, err := transport.DialNATS(cfg.NatsURL, "streamcheck-generate")
		if err != nil {
			return nil, nil, err
		}
		return transport.NewNATS(nc, cfg.Subject), func() { _ = nc.Drain() }, nil
	case config.TransportMemory:
		mem := transport.NewMemory()
		return mem, func() {
			for _, rs := range mem.Streams() {
				logger.Infow("memory_stream", "stream", rs.Info.Name, "samples", len(rs.Samples))
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}
