// Package postgres stores the reference recorder's streams in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/and161185/streamcheck/internal/errs"
	"github.com/and161185/streamcheck/internal/utils"
	"github.com/and161185/streamcheck/model"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// insertChunk keeps multi-row inserts well below the protocol's parameter limit.
const insertChunk = 1000

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS streams (
		seq BIGSERIAL,
		source_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		channel_count INTEGER NOT NULL,
		nominal_rate DOUBLE PRECISION NOT NULL,
		format TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS samples (
		id BIGSERIAL PRIMARY KEY,
		source_id TEXT NOT NULL REFERENCES streams(source_id),
		ts DOUBLE PRECISION NOT NULL,
		vals JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS samples_source_id_idx ON samples (source_id, id)`,
}

const (
	queryInsertSession = `INSERT INTO sessions (id, created_at) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`
	queryLatestSession = `SELECT id, created_at FROM sessions ORDER BY created_at DESC LIMIT 1`
	queryUpsertStream  = `INSERT INTO streams (source_id, name, type, channel_count, nominal_rate, format) VALUES ($1, $2, $3, $4, $5, $6) ` +
		`ON CONFLICT (source_id) DO UPDATE SET name = EXCLUDED.name, type = EXCLUDED.type, channel_count = EXCLUDED.channel_count, ` +
		`nominal_rate = EXCLUDED.nominal_rate, format = EXCLUDED.format`
	queryStreamByID   = `SELECT source_id, name, type, channel_count, nominal_rate, format FROM streams WHERE source_id = $1`
	queryStreamByName = `SELECT source_id, name, type, channel_count, nominal_rate, format FROM streams WHERE name = $1 ORDER BY seq DESC LIMIT 1`
	queryAllStreams   = `SELECT source_id, name, type, channel_count, nominal_rate, format FROM streams ORDER BY seq`
	querySamples      = `SELECT ts, vals FROM samples WHERE source_id = $1 ORDER BY id`
)

// PostgresStorage implements storage.Storage on a database/sql handle using the pgx driver.
type PostgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage connects to dsn and creates the tables if needed.
func NewPostgresStorage(ctx context.Context, dsn string) (*PostgresStorage, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	store := NewWithDB(db)
	if err := utils.WithRetry(ctx, func() error { return db.PingContext(ctx) }); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewWithDB wraps an open handle.
func NewWithDB(db *sql.DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

// Migrate creates the schema.
func (store *PostgresStorage) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := store.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// StartSession records the recorder session that subsequent streams belong to.
func (store *PostgresStorage) StartSession(ctx context.Context, id string, at time.Time) error {
	return utils.WithRetry(ctx, func() error {
		_, err := store.db.ExecContext(ctx, queryInsertSession, id, at)
		return err
	})
}

func (store *PostgresStorage) RegisterStream(ctx context.Context, info model.StreamInfo) error {
	return utils.WithRetry(ctx, func() error {
		_, err := store.db.ExecContext(ctx, queryUpsertStream,
			info.SourceID, info.Name, info.Type, info.ChannelCount, info.NominalRate, info.Format)
		return err
	})
}

func (store *PostgresStorage) Info(ctx context.Context, sourceID string) (model.StreamInfo, error) {
	return store.scanInfo(store.db.QueryRowContext(ctx, queryStreamByID, sourceID))
}

func (store *PostgresStorage) AppendSamples(ctx context.Context, sourceID string, samples []model.Sample) (model.StreamInfo, error) {
	info, err := store.Info(ctx, sourceID)
	if err != nil {
		return model.StreamInfo{}, err
	}

	for start := 0; start < len(samples); start += insertChunk {
		end := min(start+insertChunk, len(samples))
		query, args, err := insertSamplesQuery(sourceID, samples[start:end])
		if err != nil {
			return model.StreamInfo{}, err
		}
		err = utils.WithRetry(ctx, func() error {
			_, e := store.db.ExecContext(ctx, query, args...)
			return e
		})
		if err != nil {
			return model.StreamInfo{}, fmt.Errorf("insert samples: %w", err)
		}
	}
	return info, nil
}

func insertSamplesQuery(sourceID string, samples []model.Sample) (string, []any, error) {
	var b strings.Builder
	b.WriteString("INSERT INTO samples (source_id, ts, vals) VALUES ")

	args := make([]any, 0, len(samples)*3)
	for i, s := range samples {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "($%d,$%d,$%d)", len(args)+1, len(args)+2, len(args)+3)
		vals, err := json.Marshal(s.Values)
		if err != nil {
			return "", nil, fmt.Errorf("marshal values: %w", err)
		}
		args = append(args, sourceID, s.Timestamp, vals)
	}
	return b.String(), args, nil
}

func (store *PostgresStorage) Streams(ctx context.Context) ([]model.RecordedStream, error) {
	rows, err := store.db.QueryContext(ctx, queryAllStreams)
	if err != nil {
		return nil, fmt.Errorf("query streams: %w", err)
	}
	var infos []model.StreamInfo
	for rows.Next() {
		info, err := store.scanInfo(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	result := make([]model.RecordedStream, 0, len(infos))
	for _, info := range infos {
		samples, err := store.samples(ctx, info.SourceID)
		if err != nil {
			return nil, err
		}
		result = append(result, model.RecordedStream{Info: info, Samples: samples})
	}
	return result, nil
}

func (store *PostgresStorage) Stream(ctx context.Context, name string) (model.RecordedStream, error) {
	info, err := store.scanInfo(store.db.QueryRowContext(ctx, queryStreamByName, name))
	if err != nil {
		return model.RecordedStream{}, err
	}
	samples, err := store.samples(ctx, info.SourceID)
	if err != nil {
		return model.RecordedStream{}, err
	}
	return model.RecordedStream{Info: info, Samples: samples}, nil
}

func (store *PostgresStorage) samples(ctx context.Context, sourceID string) ([]model.Sample, error) {
	rows, err := store.db.QueryContext(ctx, querySamples, sourceID)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var samples []model.Sample
	for rows.Next() {
		var (
			s   model.Sample
			raw []byte
		)
		if err := rows.Scan(&s.Timestamp, &raw); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		if err := json.Unmarshal(raw, &s.Values); err != nil {
			return nil, fmt.Errorf("decode sample values: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (store *PostgresStorage) scanInfo(row scanner) (model.StreamInfo, error) {
	var info model.StreamInfo
	err := row.Scan(&info.SourceID, &info.Name, &info.Type, &info.ChannelCount, &info.NominalRate, &info.Format)
	if errors.Is(err, sql.ErrNoRows) {
		return model.StreamInfo{}, errs.ErrStreamNotFound
	}
	if err != nil {
		return model.StreamInfo{}, fmt.Errorf("scan stream: %w", err)
	}
	return info, nil
}

// Header describes the latest recorder session.
func (store *PostgresStorage) Header(ctx context.Context) (model.Header, error) {
	h := model.Header{Version: "1.0"}
	var created time.Time
	err := store.db.QueryRowContext(ctx, queryLatestSession).Scan(&h.SessionID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return h, nil
	}
	if err != nil {
		return model.Header{}, fmt.Errorf("query session: %w", err)
	}
	h.Datetime = created.UTC().Format(time.RFC3339)
	return h, nil
}

func (store *PostgresStorage) Ping(ctx context.Context) error {
	return store.db.PingContext(ctx)
}

// Close releases the connection pool.
func (store *PostgresStorage) Close() error {
	return store.db.Close()
}
