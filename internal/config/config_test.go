package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func setEnvAndRun(t *testing.T, env map[string]string, fn func()) {
	t.Helper()

	backup := map[string]string{}
	for k := range env {
		backup[k] = os.Getenv(k)
	}

	for k, v := range env {
		require.NoError(t, os.Setenv(k, v))
	}
	defer func() {
		for k := range env {
			_ = os.Unsetenv(k)
			if old, ok := backup[k]; ok {
				_ = os.Setenv(k, old)
			}
		}
	}()

	fn()
}

func withFreshFlagSet(t *testing.T, fn func()) {
	t.Helper()
	old := flag.CommandLine
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	defer func() { flag.CommandLine = old }()
	fn()
}

func TestReadRecorderEnvironment(t *testing.T) {
	env := map[string]string{
		"ADDRESS":        "127.0.0.1:9999",
		"STORE_INTERVAL": "5",
		"RECORDING_PATH": "/tmp/rec.xdf",
		"NATS_URL":       "nats://n:4222",
	}

	setEnvAndRun(t, env, func() {
		withFreshFlagSet(t, func() {
			cfg := &RecorderConfig{}
			readRecorderEnvironment(cfg)

			require.Equal(t, "127.0.0.1:9999", cfg.Addr)
			require.Equal(t, 5, cfg.StoreInterval)
			require.Equal(t, "/tmp/rec.xdf", cfg.RecordingPath)
			require.Equal(t, "nats://n:4222", cfg.NatsURL)
		})
	})
}

func TestReadRecorderEnvironment_AllAndInvalid(t *testing.T) {
	env := map[string]string{
		"ADDRESS":        "0.0.0.0:9090",
		"STORE_INTERVAL": "bad", // invalid
		"RECORDING_PATH": "/tmp/x.json",
		"DATABASE_DSN":   "postgres://u:p@h/db",
		"KEY":            "secret",
		"NATS_SUBJECT":   "lab",
		"RESTORE":        "true",
		"TRUSTED_SUBNET": "10.0.0.0/8",
	}
	setEnvAndRun(t, env, func() {
		withFreshFlagSet(t, func() {
			cfg := &RecorderConfig{StoreInterval: 30}
			readRecorderEnvironment(cfg)
			require.Equal(t, "0.0.0.0:9090", cfg.Addr)
			require.Equal(t, 30, cfg.StoreInterval)
			require.Equal(t, "/tmp/x.json", cfg.RecordingPath)
			require.Equal(t, "postgres://u:p@h/db", cfg.DatabaseDsn)
			require.Equal(t, "secret", cfg.Key)
			require.Equal(t, "lab", cfg.Subject)
			require.True(t, cfg.Restore)
			require.Equal(t, "10.0.0.0/8", cfg.TrustedSubnet)
		})
	})
}

func TestReadGeneratorEnvironment_All(t *testing.T) {
	env := map[string]string{
		"TRANSPORT":        "nats",
		"ADDRESS":          "srv:8081",
		"FLUSH_INTERVAL":   "50",
		"SHUTDOWN_TIMEOUT": "3",
		"DURATION":         "60",
		"KEY":              "k",
		"CATALOG":          "/etc/catalog.yaml",
	}
	setEnvAndRun(t, env, func() {
		withFreshFlagSet(t, func() {
			cfg := &GeneratorConfig{}
			readGeneratorEnvironment(cfg)
			require.Equal(t, TransportNATS, cfg.Transport)
			require.Equal(t, "srv:8081", cfg.RecorderAddr)
			require.Equal(t, 50, cfg.FlushInterval)
			require.Equal(t, 3, cfg.ShutdownTimeout)
			require.Equal(t, 60, cfg.Duration)
			require.Equal(t, "k", cfg.Key)
			require.Equal(t, "/etc/catalog.yaml", cfg.CatalogPath)
		})
	})
}

func TestReadVerifierEnvironment(t *testing.T) {
	env := map[string]string{
		"RECORDING_PATH": "/tmp/a.xdf",
		"RATE_TOLERANCE": "0.25",
		"CATALOG":        "c.yaml",
	}
	setEnvAndRun(t, env, func() {
		cfg := &VerifierConfig{RateTolerance: 0.1}
		readVerifierEnvironment(cfg)
		require.Equal(t, "/tmp/a.xdf", cfg.RecordingPath)
		require.Equal(t, 0.25, cfg.RateTolerance)
		require.Equal(t, "c.yaml", cfg.CatalogPath)

		// positional argument wins over the environment
		cfg = &VerifierConfig{RecordingPath: "cli.xdf"}
		readVerifierEnvironment(cfg)
		require.Equal(t, "cli.xdf", cfg.RecordingPath)
	})
}

func TestNewGeneratorConfig_AddsHTTPPrefix(t *testing.T) {
	env := map[string]string{"ADDRESS": "srv:9090"}
	setEnvAndRun(t, env, func() {
		withFreshFlagSet(t, func() {
			cfg := NewGeneratorConfig()
			require.Equal(t, "http://srv:9090", cfg.RecorderAddr)
			require.Equal(t, TransportHTTP, cfg.Transport)
			require.Equal(t, 5, cfg.ShutdownTimeout)
			require.NotNil(t, cfg.Logger)
		})
	})
}

func TestNewGeneratorConfig_JSONFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gen.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"transport": "memory",
		"flush_interval": "250ms",
		"shutdown_timeout": "2s",
		"duration": "1m"
	}`), 0o600))

	setEnvAndRun(t, map[string]string{"CONFIG": path}, func() {
		withFreshFlagSet(t, func() {
			cfg := NewGeneratorConfig()
			require.Equal(t, TransportMemory, cfg.Transport)
			require.Equal(t, 250, cfg.FlushInterval)
			require.Equal(t, 2, cfg.ShutdownTimeout)
			require.Equal(t, 60, cfg.Duration)
		})
	})
}

func TestNewRecorderConfig_BuildsLoggerAndReadsEnv(t *testing.T) {
	env := map[string]string{
		"ADDRESS":        "127.0.0.1:7070",
		"RECORDING_PATH": "/tmp/s.json",
		"DATABASE_DSN":   "dsn",
		"KEY":            "s",
	}
	setEnvAndRun(t, env, func() {
		withFreshFlagSet(t, func() {
			cfg := NewRecorderConfig()
			require.NotNil(t, cfg.Logger)
			require.Equal(t, "127.0.0.1:7070", cfg.Addr)
			require.Equal(t, "/tmp/s.json", cfg.RecordingPath)
			require.Equal(t, "dsn", cfg.DatabaseDsn)
			require.Equal(t, "s", cfg.Key)
			require.Equal(t, "streamcheck", cfg.Subject)
		})
	})
}

func TestParseDurations(t *testing.T) {
	sec, err := parseDurationSeconds("1m30s")
	require.NoError(t, err)
	require.Equal(t, 90, sec)

	ms, err := parseDurationMillis("1.5s")
	require.NoError(t, err)
	require.Equal(t, 1500, ms)

	_, err = parseDurationSeconds("soon")
	require.Error(t, err)
}

func TestFlagTypesTrackSet(t *testing.T) {
	var b boolFlag
	require.True(t, b.IsBoolFlag())
	require.NoError(t, b.Set("true"))
	require.True(t, b.v)
	require.True(t, b.set)

	var f floatFlag
	require.Error(t, f.Set("x"))
	require.False(t, f.set)
	require.NoError(t, f.Set("0.2"))
	require.Equal(t, 0.2, f.v)
}
