package recorder

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/and161185/streamcheck/internal/errs"
	"github.com/and161185/streamcheck/model"
	"github.com/go-chi/chi/v5"
)

var (
	errInvalidInfo     = errors.New("invalid stream info")
	errChannelMismatch = errors.New("channel count mismatch")
)

var knownFormats = map[string]bool{
	model.FormatFloat32: true,
	model.FormatDouble:  true,
	model.FormatString:  true,
	model.FormatInt8:    true,
	model.FormatInt16:   true,
	model.FormatInt32:   true,
	model.FormatInt64:   true,
}

func validateInfo(info model.StreamInfo) error {
	switch {
	case info.SourceID == "":
		return fmt.Errorf("%w: empty source_id", errInvalidInfo)
	case info.Name == "":
		return fmt.Errorf("%w: empty name", errInvalidInfo)
	case info.ChannelCount < 1:
		return fmt.Errorf("%w: channel_count %d", errInvalidInfo, info.ChannelCount)
	case info.NominalRate < 0 || math.IsNaN(info.NominalRate) || math.IsInf(info.NominalRate, 0):
		return fmt.Errorf("%w: nominal_rate %v", errInvalidInfo, info.NominalRate)
	case !knownFormats[info.Format]:
		return fmt.Errorf("%w: format %q", errInvalidInfo, info.Format)
	}
	return nil
}

// StreamSummary is the listing entry for one recorded stream.
type StreamSummary struct {
	model.StreamInfo
	SampleCount    int     `json:"sample_count"`
	FirstTimestamp float64 `json:"first_ts,omitempty"`
	LastTimestamp  float64 `json:"last_ts,omitempty"`
}

func summarize(rs model.RecordedStream) StreamSummary {
	s := StreamSummary{StreamInfo: rs.Info, SampleCount: len(rs.Samples)}
	if n := len(rs.Samples); n > 0 {
		s.FirstTimestamp = rs.Samples[0].Timestamp
		s.LastTimestamp = rs.Samples[n-1].Timestamp
	}
	return s
}

// RegisterHandler announces a stream: POST /outlets with a StreamInfo body.
func (rec *Recorder) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Content-Type") != "application/json" {
		rec.reject(reasonBadRequest)
		http.Error(w, "unsupported content type", http.StatusUnsupportedMediaType)
		return
	}

	var info model.StreamInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		rec.reject(reasonBadRequest)
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	if err := rec.register(r.Context(), info); err != nil {
		if errors.Is(err, errInvalidInfo) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rec.logger.Errorw("register_failed", "id", info.SourceID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// SamplesHandler appends a batch: POST /samples/{id} with a []Sample body.
func (rec *Recorder) SamplesHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var samples []model.Sample
	if err := json.NewDecoder(r.Body).Decode(&samples); err != nil {
		rec.reject(reasonBadRequest)
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	err := rec.appendSamples(r.Context(), id, samples)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, errs.ErrStreamNotFound):
		http.NotFound(w, r)
	case errors.Is(err, errChannelMismatch):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		rec.logger.Errorw("append_failed", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// ListStreamsHandler returns a summary of every stream: GET /streams.
func (rec *Recorder) ListStreamsHandler(w http.ResponseWriter, r *http.Request) {
	streams, err := rec.storage.Streams(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	summaries := make([]StreamSummary, 0, len(streams))
	for _, rs := range streams {
		summaries = append(summaries, summarize(rs))
	}
	writeJSON(w, summaries)
}

// GetStreamHandler returns one stream with its samples: GET /streams/{name}.
func (rec *Recorder) GetStreamHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	rs, err := rec.storage.Stream(r.Context(), name)
	if err != nil {
		if errors.Is(err, errs.ErrStreamNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, rs)
}

// PingHandler reports whether the storage is reachable.
func (rec *Recorder) PingHandler(w http.ResponseWriter, r *http.Request) {
	if err := rec.storage.Ping(r.Context()); err != nil {
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
	}
}
