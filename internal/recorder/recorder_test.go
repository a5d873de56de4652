package recorder

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/and161185/streamcheck/internal/config"
	"github.com/and161185/streamcheck/internal/recording"
	"github.com/and161185/streamcheck/internal/transport"
	"github.com/and161185/streamcheck/internal/utils"
	"github.com/and161185/streamcheck/model"
	"github.com/and161185/streamcheck/storage/inmemory"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var eegInfo = model.StreamInfo{
	Name: "EEG_Stream_10Hz", Type: "EEG", ChannelCount: 2, NominalRate: 10,
	Format: model.FormatFloat32, SourceID: "eeg_stream_10hz_uid",
}

func newTestRecorder(t *testing.T, key string) (*Recorder, *inmemory.MemStorage) {
	t.Helper()
	st := inmemory.NewMemStorage(NewSession(time.Now()))
	rec := New(st, &config.RecorderConfig{Key: key, Logger: zap.NewNop().Sugar()})
	return rec, st
}

func gzipJSON(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write(raw)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func post(t *testing.T, h http.Handler, path string, body []byte, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	if key != "" {
		req.Header.Set(transport.HeaderHash, utils.CalculateHash(body, key))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRegisterThenPush(t *testing.T) {
	rec, st := newTestRecorder(t, "")
	h := rec.Router()

	rr := post(t, h, "/outlets", gzipJSON(t, eegInfo), "")
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, 1.0, testutil.ToFloat64(rec.metrics.StreamsKnown))

	batch := []model.Sample{
		{Timestamp: 1.0, Values: []any{0.1, -0.1}},
		{Timestamp: 1.1, Values: []any{0.2, -0.2}},
	}
	rr = post(t, h, "/samples/"+eegInfo.SourceID, gzipJSON(t, batch), "")
	require.Equal(t, http.StatusOK, rr.Code)

	rs, err := st.Stream(context.Background(), eegInfo.Name)
	require.NoError(t, err)
	require.Equal(t, eegInfo, rs.Info)
	require.Equal(t, batch, rs.Samples)
	require.Equal(t, 2.0, testutil.ToFloat64(rec.metrics.SamplesReceived.WithLabelValues(eegInfo.Name)))
}

func TestRegisterHandler_Rejects(t *testing.T) {
	rec, _ := newTestRecorder(t, "")
	h := rec.Router()

	tests := []struct {
		name       string
		body       []byte
		wantStatus int
	}{
		{"not_json", gzipJSON(t, "x"), http.StatusBadRequest},
		{"no_channels", gzipJSON(t, model.StreamInfo{Name: "a", SourceID: "a_uid", Format: model.FormatFloat32}), http.StatusBadRequest},
		{"bad_format", gzipJSON(t, model.StreamInfo{Name: "a", SourceID: "a_uid", ChannelCount: 1, Format: "complex"}), http.StatusBadRequest},
		{"no_source_id", gzipJSON(t, model.StreamInfo{Name: "a", ChannelCount: 1, Format: model.FormatString}), http.StatusBadRequest},
	}
	for _, v := range tests {
		t.Run(v.name, func(t *testing.T) {
			rr := post(t, h, "/outlets", v.body, "")
			require.Equal(t, v.wantStatus, rr.Code)
		})
	}
	require.Equal(t, 4.0, testutil.ToFloat64(rec.metrics.Rejected.WithLabelValues(reasonBadRequest)))

	req := httptest.NewRequest(http.MethodPost, "/outlets", bytes.NewReader(gzipJSON(t, eegInfo)))
	req.Header.Set("Content-Type", "text/plain")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
}

func TestSamplesHandler_Rejects(t *testing.T) {
	rec, st := newTestRecorder(t, "")
	require.NoError(t, st.RegisterStream(context.Background(), eegInfo))
	h := rec.Router()

	rr := post(t, h, "/samples/unknown_uid", gzipJSON(t, []model.Sample{{Timestamp: 1, Values: []any{1.0}}}), "")
	require.Equal(t, http.StatusNotFound, rr.Code)

	// the second sample is short, so nothing from the batch is stored
	rr = post(t, h, "/samples/"+eegInfo.SourceID, gzipJSON(t, []model.Sample{
		{Timestamp: 1, Values: []any{1.0, 2.0}},
		{Timestamp: 2, Values: []any{1.0}},
	}), "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	rs, err := st.Stream(context.Background(), eegInfo.Name)
	require.NoError(t, err)
	require.Empty(t, rs.Samples)

	rr = post(t, h, "/samples/"+eegInfo.SourceID, []byte("{broken"), "")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	require.Equal(t, 1.0, testutil.ToFloat64(rec.metrics.Rejected.WithLabelValues(reasonUnknownStream)))
	require.Equal(t, 1.0, testutil.ToFloat64(rec.metrics.Rejected.WithLabelValues(reasonChannels)))
}

func TestHashMismatch(t *testing.T) {
	rec, st := newTestRecorder(t, "secret")
	h := rec.Router()

	body := gzipJSON(t, eegInfo)
	rr := post(t, h, "/outlets", body, "other-key")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, 1.0, testutil.ToFloat64(rec.metrics.Rejected.WithLabelValues(reasonHash)))

	streams, err := st.Streams(context.Background())
	require.NoError(t, err)
	require.Empty(t, streams)

	rr = post(t, h, "/outlets", body, "secret")
	require.Equal(t, http.StatusCreated, rr.Code)
}

func TestListAndGetStreams(t *testing.T) {
	rec, st := newTestRecorder(t, "")
	ctx := context.Background()
	require.NoError(t, st.RegisterStream(ctx, eegInfo))
	_, err := st.AppendSamples(ctx, eegInfo.SourceID, []model.Sample{
		{Timestamp: 5, Values: []any{1.0, 2.0}},
		{Timestamp: 5.1, Values: []any{3.0, 4.0}},
	})
	require.NoError(t, err)
	h := rec.Router()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/streams/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var list []StreamSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Equal(t, StreamSummary{StreamInfo: eegInfo, SampleCount: 2, FirstTimestamp: 5, LastTimestamp: 5.1}, list[0])

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/streams/"+eegInfo.Name, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var rs model.RecordedStream
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rs))
	require.Len(t, rs.Samples, 2)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/streams/nope", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

type brokenStorage struct {
	*inmemory.MemStorage
}

func (brokenStorage) Ping(context.Context) error { return errors.New("down") }

func TestPingAndMetrics(t *testing.T) {
	rec, _ := newTestRecorder(t, "")
	h := rec.Router()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "streamcheck_recorder_streams")

	broken := New(brokenStorage{inmemory.NewMemStorage(model.Header{})}, &config.RecorderConfig{})
	rr = httptest.NewRecorder()
	broken.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestHTTPTransportEndToEnd(t *testing.T) {
	rec, st := newTestRecorder(t, "k")
	srv := httptest.NewServer(rec.Router())
	defer srv.Close()

	cfg := &config.GeneratorConfig{RecorderAddr: srv.URL, FlushInterval: 10, ClientTimeout: 5, Key: "k"}
	tr := transport.NewHTTPWithClient(cfg, srv.Client(), zap.NewNop().Sugar())

	out, err := tr.CreateOutlet(context.Background(), eegInfo)
	require.NoError(t, err)
	for i := 0; i < 25; i++ {
		require.NoError(t, out.Push([]any{float64(i), -float64(i)}, 100+float64(i)/10))
	}
	require.NoError(t, out.Close())

	rs, err := st.Stream(context.Background(), eegInfo.Name)
	require.NoError(t, err)
	require.Len(t, rs.Samples, 25)
	require.Equal(t, 100.0, rs.Samples[0].Timestamp)
	require.Equal(t, []any{24.0, -24.0}, rs.Samples[24].Values)
}

func TestRun_DumpsOnShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.json")
	st := inmemory.NewMemStorage(NewSession(time.Now()))
	require.NoError(t, st.RegisterStream(context.Background(), eegInfo))
	_, err := st.AppendSamples(context.Background(), eegInfo.SourceID, []model.Sample{{Timestamp: 1, Values: []any{1.0, 2.0}}})
	require.NoError(t, err)

	rec := New(st, &config.RecorderConfig{Addr: "127.0.0.1:0", RecordingPath: path, StoreInterval: 0})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return")
	}

	_, statErr := os.Stat(path)
	require.NoError(t, statErr)
	streams, header, err := recording.Load(context.Background(), path)
	require.NoError(t, err)
	require.NotEmpty(t, header.SessionID)
	require.Len(t, streams, 1)
	require.Equal(t, eegInfo.Name, streams[0].Info.Name)
}

func TestRun_ListenError(t *testing.T) {
	rec := New(inmemory.NewMemStorage(model.Header{}), &config.RecorderConfig{Addr: "256.0.0.1:bad"})
	err := rec.Run(context.Background())
	require.Error(t, err)
}

func TestNewSession(t *testing.T) {
	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	a, b := NewSession(at), NewSession(at)
	require.Equal(t, "2026-05-01T08:00:00Z", a.Datetime)
	require.Equal(t, "1.0", a.Version)
	require.NotEqual(t, a.SessionID, b.SessionID)
}

func TestTrustedSubnet(t *testing.T) {
	st := inmemory.NewMemStorage(NewSession(time.Now()))
	rec := New(st, &config.RecorderConfig{TrustedSubnet: "10.1.0.0/16"})
	h := rec.Router()

	body := gzipJSON(t, eegInfo)
	rr := post(t, h, "/outlets", body, "")
	require.Equal(t, http.StatusForbidden, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/outlets", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("X-Real-IP", "10.1.2.3")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)
}
