// Command migrate prepares the PostgreSQL schema for the Record Store.
// Only needed with STORE_BACKEND=postgres; the memory and s3 backends are
// schemaless.
package main

import (
	"context"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/takk/backend/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	key     TEXT PRIMARY KEY,
	value   BYTEA NOT NULL,
	version BIGINT NOT NULL DEFAULT 1
);`

func main() {
	_ = godotenv.Load()
	logging.Setup()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logging.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logging.Fatal("connect failed", "error", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, schema); err != nil {
		logging.Fatal("migration failed", "error", err)
	}
}
