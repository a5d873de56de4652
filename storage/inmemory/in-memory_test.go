package inmemory

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/and161185/streamcheck/internal/errs"
	"github.com/and161185/streamcheck/model"
)

var eegInfo = model.StreamInfo{Name: "EEG", Type: "EEG", ChannelCount: 1, NominalRate: 10, Format: model.FormatDouble, SourceID: "eeg_uid"}

func TestMemStorage_RegisterAndAppend(t *testing.T) {
	ctx := context.Background()
	st := NewMemStorage(model.Header{Version: "1.0"})

	if err := st.RegisterStream(ctx, eegInfo); err != nil {
		t.Fatalf("register: %v", err)
	}
	info, err := st.AppendSamples(ctx, "eeg_uid", []model.Sample{{Timestamp: 1, Values: []any{0.5}}})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if info.Name != "EEG" {
		t.Errorf("want info for EEG, got %+v", info)
	}
	_, _ = st.AppendSamples(ctx, "eeg_uid", []model.Sample{{Timestamp: 1.1, Values: []any{0.7}}})

	rs, err := st.Stream(ctx, "EEG")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if len(rs.Samples) != 2 || rs.Samples[1].Timestamp != 1.1 {
		t.Errorf("unexpected samples: %+v", rs.Samples)
	}
}

func TestMemStorage_AppendUnknown(t *testing.T) {
	st := NewMemStorage(model.Header{})
	_, err := st.AppendSamples(context.Background(), "nope", nil)
	if !errors.Is(err, errs.ErrStreamNotFound) {
		t.Errorf("want ErrStreamNotFound, got %v", err)
	}
	if _, err := st.Info(context.Background(), "nope"); !errors.Is(err, errs.ErrStreamNotFound) {
		t.Errorf("want ErrStreamNotFound, got %v", err)
	}
	if _, err := st.Stream(context.Background(), "nope"); !errors.Is(err, errs.ErrStreamNotFound) {
		t.Errorf("want ErrStreamNotFound, got %v", err)
	}
}

func TestMemStorage_ReRegisterKeepsSamples(t *testing.T) {
	ctx := context.Background()
	st := NewMemStorage(model.Header{})
	_ = st.RegisterStream(ctx, eegInfo)
	_, _ = st.AppendSamples(ctx, "eeg_uid", []model.Sample{{Timestamp: 1, Values: []any{0.5}}})

	changed := eegInfo
	changed.NominalRate = 20
	_ = st.RegisterStream(ctx, changed)

	all, _ := st.Streams(ctx)
	if len(all) != 1 || all[0].Info.NominalRate != 20 || len(all[0].Samples) != 1 {
		t.Errorf("unexpected streams: %+v", all)
	}
}

func TestMemStorage_DuplicateNamesLastWins(t *testing.T) {
	ctx := context.Background()
	st := NewMemStorage(model.Header{})
	first := eegInfo
	second := eegInfo
	second.SourceID = "eeg_other_uid"
	second.ChannelCount = 4
	_ = st.RegisterStream(ctx, first)
	_ = st.RegisterStream(ctx, second)

	rs, _ := st.Stream(ctx, "EEG")
	if rs.Info.SourceID != "eeg_other_uid" {
		t.Errorf("want the latest registration, got %s", rs.Info.SourceID)
	}
	all, _ := st.Streams(ctx)
	if len(all) != 2 {
		t.Errorf("want both streams listed, got %d", len(all))
	}
}

func TestSaveAndLoad(t *testing.T) {
	for _, name := range []string{"rec.xdf", "rec.json"} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			file := filepath.Join(t.TempDir(), "sub", name)

			storage := NewMemStorage(model.Header{Version: "1.0", SessionID: "s1"})
			_ = storage.RegisterStream(ctx, eegInfo)
			_, _ = storage.AppendSamples(ctx, "eeg_uid", []model.Sample{{Timestamp: 3, Values: []any{123.45}}})

			if err := storage.SaveToFile(ctx, file); err != nil {
				t.Fatalf("SaveToFile failed: %v", err)
			}

			newStorage := NewMemStorage(model.Header{Version: "1.0"})
			if err := newStorage.LoadFromFile(ctx, file); err != nil {
				t.Fatalf("LoadFromFile failed: %v", err)
			}

			restored, err := newStorage.Stream(ctx, "EEG")
			if err != nil {
				t.Fatalf("restored stream missing: %v", err)
			}
			if len(restored.Samples) != 1 || restored.Samples[0].Values[0] != 123.45 {
				t.Errorf("unexpected restored samples: %+v", restored.Samples)
			}
			if h, _ := newStorage.Header(ctx); h.SessionID != "s1" {
				t.Errorf("session not restored: %+v", h)
			}
		})
	}
}

func TestSaveToFile_EmptyAndMissing(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st := NewMemStorage(model.Header{})

	if err := st.SaveToFile(ctx, filepath.Join(dir, "empty.xdf")); err != nil {
		t.Errorf("empty store should not fail: %v", err)
	}
	if err := st.LoadFromFile(ctx, filepath.Join(dir, "missing.xdf")); err != nil {
		t.Errorf("missing file should be ignored: %v", err)
	}
	if err := st.Ping(ctx); err != nil {
		t.Errorf("ping: %v", err)
	}
}
