/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/HamedShams/agile-ingest/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

func Open(ctx context.Context, dsn string, log zerolog.Logger) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	ctx2, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(ctx2); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return &DB{Pool: pool, log: log}, nil
}

func (d *DB) Close() { d.Pool.Close() }

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	partition   text        NOT NULL,
	natural_key text        NOT NULL,
	body        jsonb       NOT NULL,
	updated_at  timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (partition, natural_key)
)`

// PostgresStore keeps every partition in one JSONB table keyed by (partition, natural_key).
type PostgresStore struct {
	db  *DB
	log zerolog.Logger
}

func NewPostgresStore(d *DB, log zerolog.Logger) *PostgresStore {
	return &PostgresStore{db: d, log: log}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Pool.Exec(ctx, schema)
	return err
}

const upsertQ = `
	INSERT INTO documents(partition, natural_key, body, updated_at)
	VALUES($1, $2, $3::jsonb, now())
	ON CONFLICT (partition, natural_key) DO UPDATE SET
		body = EXCLUDED.body,
		updated_at = EXCLUDED.updated_at`

func (s *PostgresStore) Upsert(ctx context.Context, partition string, doc domain.Document) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", partition, doc.Key(), err)
	}
	_, err = s.db.Pool.Exec(ctx, upsertQ, partition, doc.Key(), string(b))
	return err
}

// UpsertMany sends one batch per page. If the batch fails, each document is
// retried on its own so that one bad row does not sink the others.
func (s *PostgresStore) UpsertMany(ctx context.Context, partition string, docs []domain.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	var errs []error
	queued := make([]domain.Document, 0, len(docs))
	for _, d := range docs {
		b, err := json.Marshal(d)
		if err != nil {
			errs = append(errs, fmt.Errorf("encode %s/%s: %w", partition, d.Key(), err))
			continue
		}
		batch.Queue(upsertQ, partition, d.Key(), string(b))
		queued = append(queued, d)
	}
	if len(queued) == 0 {
		return 0, joinErrs(errs)
	}
	err := s.sendBatch(ctx, batch, len(queued))
	if err == nil {
		return len(queued), joinErrs(errs)
	}
	s.log.Warn().Err(err).Str("partition", partition).Int("docs", len(queued)).Msg("batch upsert failed, retrying one by one")
	n := 0
	for _, d := range queued {
		if err := s.Upsert(ctx, partition, d); err != nil {
			errs = append(errs, fmt.Errorf("upsert %s/%s: %w", partition, d.Key(), err))
			continue
		}
		n++
	}
	return n, joinErrs(errs)
}

func (s *PostgresStore) sendBatch(ctx context.Context, batch *pgx.Batch, n int) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Delete(ctx context.Context, partition, key string) (bool, error) {
	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM documents WHERE partition=$1 AND natural_key=$2`, partition, key)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Get returns the stored JSON body, or pgx.ErrNoRows.
func (s *PostgresStore) Get(ctx context.Context, partition, key string) (json.RawMessage, error) {
	var b []byte
	err := s.db.Pool.QueryRow(ctx, `SELECT body FROM documents WHERE partition=$1 AND natural_key=$2`, partition, key).Scan(&b)
	return b, err
}

func (s *PostgresStore) Count(ctx context.Context, partition string) (int, error) {
	var n int
	err := s.db.Pool.QueryRow(ctx, `SELECT count(*) FROM documents WHERE partition=$1`, partition).Scan(&n)
	return n, err
}

// WithAdvisoryLock runs fn while holding a session advisory lock on one
// pooled connection. It returns false without running fn when another
// session holds the lock.
func (s *PostgresStore) WithAdvisoryLock(ctx context.Context, key int64, fn func(context.Context) error) (bool, error) {
	conn, err := s.db.Pool.Acquire(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Release()
	var ok bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok); err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	defer func() {
		var unlocked bool
		if err := conn.QueryRow(context.Background(), "SELECT pg_advisory_unlock($1)", key).Scan(&unlocked); err != nil || !unlocked {
			s.log.Error().Err(err).Int64("key", key).Msg("advisory unlock failed")
		}
	}()
	return true, fn(ctx)
}

func joinErrs(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
