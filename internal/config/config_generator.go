// Package config provides application configuration structures and helpers.
package config

import (
	"flag"
	"log"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Transport names accepted by the generator.
const (
	TransportHTTP   = "http"
	TransportNATS   = "nats"
	TransportMemory = "memory"
)

// GeneratorConfig holds the configuration settings for the broadcaster.
type GeneratorConfig struct {
	Transport       string // http, nats or memory
	RecorderAddr    string // Recorder address for the http transport
	NatsURL         string // NATS server for the nats transport
	Subject         string // NATS subject prefix
	CatalogPath     string // YAML catalog; empty means the built-in catalog
	FlushInterval   int    // Interval between http batch flushes (in milliseconds)
	ClientTimeout   int    // HTTP client timeout (in seconds)
	Key             string // Key for hash generation
	ShutdownTimeout int    // Bounded wait for generators to stop (in seconds)
	Duration        int    // Stop after this many seconds; 0 runs until interrupted
	MetricsAddr     string // Address for the prometheus endpoint; empty disables it
	LoadInterval    int    // Host load sampling interval (in seconds); 0 disables it
	Logger          *zap.SugaredLogger
}

// NewGeneratorConfig creates and returns a new GeneratorConfig by parsing flags, an optional
// JSON file and environment variables.
func NewGeneratorConfig() *GeneratorConfig {
	cfg := &GeneratorConfig{
		Transport:       TransportHTTP,
		RecorderAddr:    "http://localhost:8080",
		NatsURL:         "nats://127.0.0.1:4222",
		Subject:         "streamcheck",
		FlushInterval:   100,
		ClientTimeout:   10,
		ShutdownTimeout: 5,
		LoadInterval:    10,
	}

	var fTransport, fAddr, fNats, fSubject, fCatalog, fKey, fMetrics, fConf strFlag
	var fFlush, fTO, fShutdown, fDuration, fLoad intFlag
	flag.Var(&fTransport, "transport", "transport: http, nats or memory")
	flag.Var(&fAddr, "a", "recorder address (must include http(s)://)")
	flag.Var(&fNats, "nats", "NATS server URL")
	flag.Var(&fSubject, "subject", "NATS subject prefix")
	flag.Var(&fCatalog, "catalog", "path to YAML stream catalog")
	flag.Var(&fFlush, "f", "flush interval (milliseconds)")
	flag.Var(&fTO, "t", "client timeout (seconds)")
	flag.Var(&fKey, "k", "Hash key string")
	flag.Var(&fShutdown, "s", "shutdown timeout (seconds)")
	flag.Var(&fDuration, "d", "run duration (seconds), 0 runs until interrupted")
	flag.Var(&fMetrics, "m", "prometheus listen address")
	flag.Var(&fLoad, "load-interval", "host load sampling interval (seconds)")
	flag.Var(&fConf, "c", "Path to JSON config file")
	flag.Var(&fConf, "config", "Path to JSON config file (alias)")
	flag.Parse()

	if fTransport.set {
		cfg.Transport = fTransport.v
	}
	if fAddr.set {
		cfg.RecorderAddr = fAddr.v
	}
	if fNats.set {
		cfg.NatsURL = fNats.v
	}
	if fSubject.set {
		cfg.Subject = fSubject.v
	}
	if fCatalog.set {
		cfg.CatalogPath = fCatalog.v
	}
	if fFlush.set {
		cfg.FlushInterval = fFlush.v
	}
	if fTO.set {
		cfg.ClientTimeout = fTO.v
	}
	if fKey.set {
		cfg.Key = fKey.v
	}
	if fShutdown.set {
		cfg.ShutdownTimeout = fShutdown.v
	}
	if fDuration.set {
		cfg.Duration = fDuration.v
	}
	if fMetrics.set {
		cfg.MetricsAddr = fMetrics.v
	}
	if fLoad.set {
		cfg.LoadInterval = fLoad.v
	}

	if path := configPath(fConf); path != "" {
		if js, err := loadJSON[generatorJSON](path); err == nil {
			if js.Transport != nil && !fTransport.set {
				cfg.Transport = *js.Transport
			}
			if js.Address != nil && !fAddr.set {
				cfg.RecorderAddr = *js.Address
			}
			if js.NatsURL != nil && !fNats.set {
				cfg.NatsURL = *js.NatsURL
			}
			if js.Subject != nil && !fSubject.set {
				cfg.Subject = *js.Subject
			}
			if js.Catalog != nil && !fCatalog.set {
				cfg.CatalogPath = *js.Catalog
			}
			if js.FlushInterval != nil && !fFlush.set {
				if ms, err := parseDurationMillis(*js.FlushInterval); err == nil {
					cfg.FlushInterval = ms
				}
			}
			if js.ShutdownTimeout != nil && !fShutdown.set {
				if sec, err := parseDurationSeconds(*js.ShutdownTimeout); err == nil {
					cfg.ShutdownTimeout = sec
				}
			}
			if js.Duration != nil && !fDuration.set {
				if sec, err := parseDurationSeconds(*js.Duration); err == nil {
					cfg.Duration = sec
				}
			}
			if js.MetricsAddress != nil && !fMetrics.set {
				cfg.MetricsAddr = *js.MetricsAddress
			}
			if js.LoadInterval != nil && !fLoad.set {
				if sec, err := parseDurationSeconds(*js.LoadInterval); err == nil {
					cfg.LoadInterval = sec
				}
			}
		} else {
			log.Printf("invalid config file %s: %v", path, err)
		}
	}

	readGeneratorEnvironment(cfg)

	// normalize address
	if !strings.HasPrefix(cfg.RecorderAddr, "http://") && !strings.HasPrefix(cfg.RecorderAddr, "https://") {
		cfg.RecorderAddr = "http://" + cfg.RecorderAddr
	}
	cfg.Logger = NewLogger("stdout")
	return cfg
}

func readGeneratorEnvironment(cfg *GeneratorConfig) {
	if tr := os.Getenv("TRANSPORT"); tr != "" {
		cfg.Transport = tr
	}
	if addr := os.Getenv("ADDRESS"); addr != "" {
		cfg.RecorderAddr = addr
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		cfg.NatsURL = url
	}
	if subj := os.Getenv("NATS_SUBJECT"); subj != "" {
		cfg.Subject = subj
	}
	if path := os.Getenv("CATALOG"); path != "" {
		cfg.CatalogPath = path
	}
	if key := os.Getenv("KEY"); key != "" {
		cfg.Key = key
	}
	if addr := os.Getenv("METRICS_ADDRESS"); addr != "" {
		cfg.MetricsAddr = addr
	}

	readIntEnv("FLUSH_INTERVAL", &cfg.FlushInterval)
	readIntEnv("SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)
	readIntEnv("DURATION", &cfg.Duration)
	readIntEnv("LOAD_INTERVAL", &cfg.LoadInterval)
}

func readIntEnv(name string, dst *int) {
	raw := os.Getenv(name)
	if raw == "" {
		return
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("invalid %s env var: %v", name, err)
		return
	}
	*dst = v
}
