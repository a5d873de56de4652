package config

import (
	"encoding/json"
	"os"
	"time"
)

type generatorJSON struct {
	Transport       *string `json:"transport"`
	Address         *string `json:"address"`
	NatsURL         *string `json:"nats_url"`
	Subject         *string `json:"subject"`
	Catalog         *string `json:"catalog"`
	FlushInterval   *string `json:"flush_interval"`   // "100ms"
	ShutdownTimeout *string `json:"shutdown_timeout"` // "5s"
	Duration        *string `json:"duration"`
	MetricsAddress  *string `json:"metrics_address"`
	LoadInterval    *string `json:"load_interval"`
}

type recorderJSON struct {
	Address       *string `json:"address"`
	StoreInterval *string `json:"store_interval"` // "30s"
	RecordingFile *string `json:"recording_file"`
	Restore       *bool   `json:"restore"`
	DatabaseDSN   *string `json:"database_dsn"`
	TrustedSubnet *string `json:"trusted_subnet"`
	NatsURL       *string `json:"nats_url"`
	Subject       *string `json:"subject"`
}

type verifierJSON struct {
	Recording           *string  `json:"recording"`
	DatabaseDSN         *string  `json:"database_dsn"`
	Catalog             *string  `json:"catalog"`
	RateTolerance       *float64 `json:"rate_tolerance"`
	RegularityThreshold *float64 `json:"regularity_threshold"`
	Strict              *bool    `json:"strict"`
	Format              *string  `json:"format"`
}

func loadJSON[T any](path string) (*T, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func parseDurationSeconds(s string) (int, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	return int(d / time.Second), nil
}

func parseDurationMillis(s string) (int, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	return int(d / time.Millisecond), nil
}

// configPath resolves -c/-config, falling back to the CONFIG env var.
func configPath(f strFlag) string {
	if f.v != "" {
		return f.v
	}
	return os.Getenv("CONFIG")
}
