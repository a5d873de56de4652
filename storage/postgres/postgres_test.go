package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/and161185/streamcheck/internal/errs"
	"github.com/and161185/streamcheck/model"
	"github.com/stretchr/testify/require"
)

var streamColumns = []string{"source_id", "name", "type", "channel_count", "nominal_rate", "format"}

func newMock(t *testing.T) (*PostgresStorage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db), mock
}

func TestMigrate(t *testing.T) {
	store, mock := newMock(t)
	for range schema {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterStream(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(queryUpsertStream)).
		WithArgs("eeg_uid", "EEG", "EEG", 2, 10.0, "float32").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.RegisterStream(context.Background(), model.StreamInfo{
		Name: "EEG", Type: "EEG", ChannelCount: 2, NominalRate: 10, Format: "float32", SourceID: "eeg_uid",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendSamples(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(queryStreamByID)).WithArgs("eeg_uid").
		WillReturnRows(sqlmock.NewRows(streamColumns).AddRow("eeg_uid", "EEG", "EEG", 2, 10.0, "float32"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO samples (source_id, ts, vals) VALUES ($1,$2,$3),($4,$5,$6)")).
		WithArgs("eeg_uid", 1.0, []byte(`[1,2]`), "eeg_uid", 1.1, []byte(`[3,4]`)).
		WillReturnResult(sqlmock.NewResult(2, 2))

	info, err := store.AppendSamples(context.Background(), "eeg_uid", []model.Sample{
		{Timestamp: 1, Values: []any{1.0, 2.0}},
		{Timestamp: 1.1, Values: []any{3.0, 4.0}},
	})
	require.NoError(t, err)
	require.Equal(t, "EEG", info.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendSamples_UnknownStream(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(queryStreamByID)).WithArgs("x").
		WillReturnRows(sqlmock.NewRows(streamColumns))

	_, err := store.AppendSamples(context.Background(), "x", nil)
	require.ErrorIs(t, err, errs.ErrStreamNotFound)
}

func TestAppendSamples_InsertFails(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(queryStreamByID)).WithArgs("m_uid").
		WillReturnRows(sqlmock.NewRows(streamColumns).AddRow("m_uid", "M", "Markers", 1, 0.0, "string"))
	mock.ExpectExec("INSERT INTO samples").WillReturnError(errors.New("disk full"))

	_, err := store.AppendSamples(context.Background(), "m_uid", []model.Sample{{Timestamp: 1, Values: []any{"Onset"}}})
	require.ErrorContains(t, err, "disk full")
}

func TestStreams(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(queryAllStreams)).
		WillReturnRows(sqlmock.NewRows(streamColumns).
			AddRow("eeg_uid", "EEG", "EEG", 2, 10.0, "float32").
			AddRow("m_uid", "M", "Markers", 1, 0.0, "string"))
	mock.ExpectQuery(regexp.QuoteMeta(querySamples)).WithArgs("eeg_uid").
		WillReturnRows(sqlmock.NewRows([]string{"ts", "vals"}).
			AddRow(1.0, []byte(`[0.5,-0.5]`)).
			AddRow(1.1, []byte(`[0.6,-0.6]`)))
	mock.ExpectQuery(regexp.QuoteMeta(querySamples)).WithArgs("m_uid").
		WillReturnRows(sqlmock.NewRows([]string{"ts", "vals"}).AddRow(1.05, []byte(`["Onset"]`)))

	streams, err := store.Streams(context.Background())
	require.NoError(t, err)
	require.Len(t, streams, 2)
	require.Equal(t, []float64{1, 1.1}, streams[0].Timestamps())
	require.Equal(t, []any{0.5, -0.5}, streams[0].Samples[0].Values)
	require.Equal(t, []any{"Onset"}, streams[1].Samples[0].Values)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStream_ByName(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(queryStreamByName)).WithArgs("EEG").
		WillReturnRows(sqlmock.NewRows(streamColumns).AddRow("eeg_uid", "EEG", "EEG", 2, 10.0, "float32"))
	mock.ExpectQuery(regexp.QuoteMeta(querySamples)).WithArgs("eeg_uid").
		WillReturnRows(sqlmock.NewRows([]string{"ts", "vals"}))

	rs, err := store.Stream(context.Background(), "EEG")
	require.NoError(t, err)
	require.Equal(t, "eeg_uid", rs.Info.SourceID)
	require.Empty(t, rs.Samples)
}

func TestHeader(t *testing.T) {
	store, mock := newMock(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(queryLatestSession)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("sess-1", created))

	h, err := store.Header(context.Background())
	require.NoError(t, err)
	require.Equal(t, model.Header{Version: "1.0", SessionID: "sess-1", Datetime: "2026-03-01T12:00:00Z"}, h)

	mock.ExpectQuery(regexp.QuoteMeta(queryLatestSession)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}))
	h, err = store.Header(context.Background())
	require.NoError(t, err)
	require.Equal(t, "1.0", h.Version)
	require.Empty(t, h.SessionID)
}

func TestStartSessionAndPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	store := NewWithDB(db)

	at := time.Now()
	mock.ExpectExec(regexp.QuoteMeta(queryInsertSession)).WithArgs("sess-2", at).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectPing()

	require.NoError(t, store.StartSession(context.Background(), "sess-2", at))
	require.NoError(t, store.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
