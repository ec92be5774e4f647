package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

type DB struct {
	Pool *pgxpool.Pool
}

func NewDB(ctx context.Context, dsn string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func (d *DB) Close() {
	if d != nil && d.Pool != nil {
		d.Pool.Close()
	}
}

// EnsureSchema creates the tables and the pgvector extension on startup.
func (d *DB) EnsureSchema(ctx context.Context, embedDim int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS documents (
  document_id    TEXT PRIMARY KEY,
  source_file    TEXT NOT NULL,
  source_type    TEXT NOT NULL,
  pages          INT NOT NULL DEFAULT 0,
  skipped_pages  INT NOT NULL DEFAULT 0,
  case_name      TEXT,
  bench          TEXT,
  court          TEXT,
  judgement_date TEXT,
  citation       TEXT,
  case_number    TEXT,
  year           TEXT,
  act_name       TEXT,
  url            TEXT,
  status         TEXT NOT NULL,
  fail_reason    TEXT,
  created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
  document_id    TEXT NOT NULL,
  chunk_index    INT NOT NULL,
  text           TEXT NOT NULL,
  token_count    INT NOT NULL,
  page_start     INT NOT NULL,
  page_end       INT NOT NULL,
  source_file    TEXT NOT NULL,
  case_name      TEXT,
  court          TEXT,
  judgement_date TEXT,
  citation       TEXT,
  url            TEXT,
  embed_version  TEXT NOT NULL,
  embedding      vector(%d),
  created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  PRIMARY KEY (document_id, chunk_index)
)`, embedDim),
		`CREATE TABLE IF NOT EXISTS llm_calls (
  call_id       UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  mode          TEXT NOT NULL,
  provider_name TEXT NOT NULL,
  model         TEXT NOT NULL,
  status        TEXT NOT NULL,
  error_type    TEXT,
  attempts      INT NOT NULL DEFAULT 1,
  degraded      BOOLEAN NOT NULL DEFAULT FALSE,
  created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	}
	for _, stmt := range stmts {
		if _, err := d.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
