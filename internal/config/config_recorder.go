package config

import (
	"flag"
	"log"
	"os"
	"strconv"

	"go.uber.org/zap"
)

// RecorderConfig holds the configuration settings for the reference recorder.
type RecorderConfig struct {
	Addr          string // Server address
	StoreInterval int    // Interval for dumping the recording to file (in seconds); 0 dumps only on shutdown
	RecordingPath string // Recording file, .xdf or .json
	Restore       bool   // Load RecordingPath into the in-memory store on start
	DatabaseDsn   string // Data Source Name for PostgreSQL
	Key           string // Key for hash verification
	TrustedSubnet string // CIDR producers must come from, ex. "192.168.1.0/24"; empty allows all
	NatsURL       string // Subscribe to this NATS server as well; empty disables it
	Subject       string // NATS subject prefix
	Logger        *zap.SugaredLogger
}

// NewRecorderConfig creates and returns a new RecorderConfig by parsing flags, an optional
// JSON file and environment variables.
func NewRecorderConfig() *RecorderConfig {
	// 0) defaults
	cfg := &RecorderConfig{
		Addr:          "localhost:8080",
		StoreInterval: 30,
		RecordingPath: "./tmp/recording.xdf",
		Subject:       "streamcheck",
	}

	// 1) flags
	fAddr := strFlag{v: cfg.Addr}
	fStoreI := intFlag{v: cfg.StoreInterval}
	fFile := strFlag{v: cfg.RecordingPath}
	fSubject := strFlag{v: cfg.Subject}
	var fRestore boolFlag
	var fDSN, fKey, fNats, fTrusted, fConf strFlag

	flag.Var(&fAddr, "a", "HTTP server address")
	flag.Var(&fStoreI, "i", "store interval (seconds)")
	flag.Var(&fFile, "f", "path to recording file (.xdf or .json)")
	flag.Var(&fRestore, "r", "restore the recording file on start")
	flag.Var(&fDSN, "d", "DB connection string")
	flag.Var(&fKey, "k", "Hash key string")
	flag.Var(&fTrusted, "t", "trusted subnet")
	flag.Var(&fNats, "nats", "NATS server URL to subscribe to")
	flag.Var(&fSubject, "subject", "NATS subject prefix")
	flag.Var(&fConf, "c", "Path to JSON config file")
	flag.Var(&fConf, "config", "Path to JSON config file (alias)")
	flag.Parse()

	cfg.Addr = fAddr.v
	cfg.StoreInterval = fStoreI.v
	cfg.RecordingPath = fFile.v
	cfg.Restore = fRestore.v
	cfg.DatabaseDsn = fDSN.v
	cfg.Key = fKey.v
	cfg.TrustedSubnet = fTrusted.v
	cfg.NatsURL = fNats.v
	cfg.Subject = fSubject.v

	// 2) JSON (lowest priority)
	if path := configPath(fConf); path != "" {
		if js, err := loadJSON[recorderJSON](path); err == nil {
			if js.Address != nil && !fAddr.set {
				cfg.Addr = *js.Address
			}
			if js.StoreInterval != nil && !fStoreI.set {
				if sec, err := parseDurationSeconds(*js.StoreInterval); err == nil {
					cfg.StoreInterval = sec
				}
			}
			if js.RecordingFile != nil && !fFile.set {
				cfg.RecordingPath = *js.RecordingFile
			}
			if js.Restore != nil && !fRestore.set {
				cfg.Restore = *js.Restore
			}
			if js.DatabaseDSN != nil && !fDSN.set {
				cfg.DatabaseDsn = *js.DatabaseDSN
			}
			if js.TrustedSubnet != nil && !fTrusted.set {
				cfg.TrustedSubnet = *js.TrustedSubnet
			}
			if js.NatsURL != nil && !fNats.set {
				cfg.NatsURL = *js.NatsURL
			}
			if js.Subject != nil && !fSubject.set {
				cfg.Subject = *js.Subject
			}
		} else {
			log.Printf("invalid config file %s: %v", path, err)
		}
	}

	// 3) environment
	readRecorderEnvironment(cfg)

	cfg.Logger = NewLogger("stdout")
	return cfg
}

func readRecorderEnvironment(cfg *RecorderConfig) {
	if addr := os.Getenv("ADDRESS"); addr != "" {
		cfg.Addr = addr
	}

	readIntEnv("STORE_INTERVAL", &cfg.StoreInterval)

	if path := os.Getenv("RECORDING_PATH"); path != "" {
		cfg.RecordingPath = path
	}
	if v := os.Getenv("RESTORE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Restore = b
		}
	}
	if dbDsn := os.Getenv("DATABASE_DSN"); dbDsn != "" {
		cfg.DatabaseDsn = dbDsn
	}
	if key := os.Getenv("KEY"); key != "" {
		cfg.Key = key
	}
	if subnet := os.Getenv("TRUSTED_SUBNET"); subnet != "" {
		cfg.TrustedSubnet = subnet
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		cfg.NatsURL = url
	}
	if subj := os.Getenv("NATS_SUBJECT"); subj != "" {
		cfg.Subject = subj
	}
}
