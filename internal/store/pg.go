package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore persists records in a single PostgreSQL key/value table with a
// bigint version column used for conditional writes.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPool opens and pings a PostgreSQL connection pool.
func NewPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}
	return pool, nil
}

// NewPgStore returns a PgStore over pool. The records table must exist
// (see cmd/migrate).
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Get(ctx context.Context, key string) (Record, error) {
	var value []byte
	var version int64
	err := s.pool.QueryRow(ctx,
		`SELECT value, version FROM records WHERE key = $1`, key,
	).Scan(&value, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("%w: get %q: %v", ErrUnavailable, key, err)
	}
	return Record{Key: key, Value: value, Version: strconv.FormatInt(version, 10)}, nil
}

func (s *PgStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO records (key, value, version) VALUES ($1, $2, 1)
		 ON CONFLICT (key) DO UPDATE SET value = $2, version = records.version + 1`,
		key, value)
	if err != nil {
		return fmt.Errorf("%w: put %q: %v", ErrUnavailable, key, err)
	}
	return nil
}

func (s *PgStore) PutIf(ctx context.Context, key string, value []byte, version string) error {
	if version == "" {
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO records (key, value, version) VALUES ($1, $2, 1)
			 ON CONFLICT (key) DO NOTHING`,
			key, value)
		if err != nil {
			return fmt.Errorf("%w: put %q: %v", ErrUnavailable, key, err)
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
		return nil
	}

	v, err := strconv.ParseInt(version, 10, 64)
	if err != nil {
		return ErrConflict
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE records SET value = $2, version = version + 1
		 WHERE key = $1 AND version = $3`,
		key, value, v)
	if err != nil {
		return fmt.Errorf("%w: put %q: %v", ErrUnavailable, key, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (s *PgStore) List(ctx context.Context, prefix string) ([]Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, value, version FROM records
		 WHERE key LIKE $1 || '%' ESCAPE '\' ORDER BY key`,
		escapeLike(prefix))
	if err != nil {
		return nil, fmt.Errorf("%w: list %q: %v", ErrUnavailable, prefix, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var version int64
		if err := rows.Scan(&rec.Key, &rec.Value, &version); err != nil {
			return nil, fmt.Errorf("%w: list %q: %v", ErrUnavailable, prefix, err)
		}
		rec.Version = strconv.FormatInt(version, 10)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list %q: %v", ErrUnavailable, prefix, err)
	}
	return out, nil
}

// escapeLike neutralizes LIKE metacharacters so a prefix matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
