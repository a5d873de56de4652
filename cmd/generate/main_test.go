package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/and161185/streamcheck/internal/catalog"
	"github.com/and161185/streamcheck/internal/config"
	"github.com/and161185/streamcheck/internal/errs"
	"github.com/and161185/streamcheck/internal/transport"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoadCatalog(t *testing.T) {
	cat, err := loadCatalog("")
	require.NoError(t, err)
	require.Equal(t, catalog.Default(), cat)

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
streams:
  - name: A
    kind: continuous
    type: EEG
    channel_count: 0
    nominal_rate: 10
    amplitude: 1
`), 0o600))
	_, err = loadCatalog(path)
	require.ErrorIs(t, err, errs.ErrCatalogInvalid)
}

func TestNewTransport(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core).Sugar()

	tr, closeFn, err := newTransport(&config.GeneratorConfig{Transport: config.TransportHTTP, RecorderAddr: "http://x"}, logger)
	require.NoError(t, err)
	require.IsType(t, &transport.HTTP{}, tr)
	closeFn()

	tr, closeFn, err = newTransport(&config.GeneratorConfig{Transport: config.TransportMemory}, logger)
	require.NoError(t, err)
	mem, ok := tr.(*transport.Memory)
	require.True(t, ok)
	spec, _ := catalog.Default().Lookup("Test_Markers")
	_, err = mem.CreateOutlet(context.Background(), spec.Info())
	require.NoError(t, err)
	closeFn()
	require.Equal(t, 1, logs.FilterMessage("memory_stream").Len())

	_, _, err = newTransport(&config.GeneratorConfig{Transport: "carrier-pigeon"}, logger)
	require.Error(t, err)

	_, _, err = newTransport(&config.GeneratorConfig{Transport: config.TransportNATS, NatsURL: "nats://127.0.0.1:1"}, logger)
	require.Error(t, err)
}
