package config

import (
	"flag"
	"log"
	"os"
	"strconv"

	"go.uber.org/zap"
)

// Report formats accepted by the verifier.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// VerifierConfig holds the configuration settings for a verification run.
type VerifierConfig struct {
	RecordingPath       string  // Recording file (.xdf or .json)
	DatabaseDsn         string  // Load from the recorder's PostgreSQL store instead of a file
	CatalogPath         string  // YAML catalog; empty means the built-in catalog
	RateTolerance       float64 // Allowed relative deviation of the actual rate
	RegularityThreshold float64 // Event interval std-dev at or below this is flagged
	Strict              bool    // Advisories fail the verdict
	Format              string  // text or json
	Logger              *zap.SugaredLogger
}

// NewVerifierConfig creates and returns a new VerifierConfig by parsing flags, an optional
// JSON file and environment variables. The first positional argument is the recording path.
func NewVerifierConfig() *VerifierConfig {
	cfg := &VerifierConfig{
		RateTolerance: 0.10,
		Format:        FormatText,
	}

	var fDSN, fCatalog, fFormat, fConf strFlag
	var fTol, fReg floatFlag
	var fStrict boolFlag
	flag.Var(&fDSN, "d", "DB connection string of the recorder store")
	flag.Var(&fCatalog, "catalog", "path to YAML stream catalog")
	flag.Var(&fTol, "tolerance", "allowed relative rate deviation")
	flag.Var(&fReg, "regularity", "event interval std-dev threshold (seconds)")
	flag.Var(&fStrict, "strict", "treat advisories as failures")
	flag.Var(&fFormat, "format", "report format: text or json")
	flag.Var(&fConf, "c", "Path to JSON config file")
	flag.Var(&fConf, "config", "Path to JSON config file (alias)")
	flag.Parse()

	cfg.RecordingPath = flag.Arg(0)
	if fDSN.set {
		cfg.DatabaseDsn = fDSN.v
	}
	if fCatalog.set {
		cfg.CatalogPath = fCatalog.v
	}
	if fTol.set {
		cfg.RateTolerance = fTol.v
	}
	if fReg.set {
		cfg.RegularityThreshold = fReg.v
	}
	if fStrict.set {
		cfg.Strict = fStrict.v
	}
	if fFormat.set {
		cfg.Format = fFormat.v
	}

	if path := configPath(fConf); path != "" {
		if js, err := loadJSON[verifierJSON](path); err == nil {
			if js.Recording != nil && cfg.RecordingPath == "" {
				cfg.RecordingPath = *js.Recording
			}
			if js.DatabaseDSN != nil && !fDSN.set {
				cfg.DatabaseDsn = *js.DatabaseDSN
			}
			if js.Catalog != nil && !fCatalog.set {
				cfg.CatalogPath = *js.Catalog
			}
			if js.RateTolerance != nil && !fTol.set {
				cfg.RateTolerance = *js.RateTolerance
			}
			if js.RegularityThreshold != nil && !fReg.set {
				cfg.RegularityThreshold = *js.RegularityThreshold
			}
			if js.Strict != nil && !fStrict.set {
				cfg.Strict = *js.Strict
			}
			if js.Format != nil && !fFormat.set {
				cfg.Format = *js.Format
			}
		} else {
			log.Printf("invalid config file %s: %v", path, err)
		}
	}

	readVerifierEnvironment(cfg)

	// the report goes to stdout, keep the log out of its way
	cfg.Logger = NewLogger("stderr")
	return cfg
}

func readVerifierEnvironment(cfg *VerifierConfig) {
	if path := os.Getenv("RECORDING_PATH"); path != "" && cfg.RecordingPath == "" {
		cfg.RecordingPath = path
	}
	if dbDsn := os.Getenv("DATABASE_DSN"); dbDsn != "" {
		cfg.DatabaseDsn = dbDsn
	}
	if path := os.Getenv("CATALOG"); path != "" {
		cfg.CatalogPath = path
	}
	if raw := os.Getenv("RATE_TOLERANCE"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err == nil {
			cfg.RateTolerance = v
		} else {
			log.Printf("invalid RATE_TOLERANCE env var: %v", err)
		}
	}
}
