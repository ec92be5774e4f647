package index

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"lexrag/internal/models"
	"lexrag/internal/util"
)

// PgIndex stores chunks in Postgres with pgvector. Rows are keyed by
// (document_id, chunk_index); re-ingesting a document replaces its rows and
// drops any stale tail from a previous longer version.
type PgIndex struct {
	pool         *pgxpool.Pool
	embedVersion string
}

func NewPgIndex(pool *pgxpool.Pool, embedVersion string) *PgIndex {
	return &PgIndex{pool: pool, embedVersion: embedVersion}
}

func (x *PgIndex) Upsert(ctx context.Context, chunks []models.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := x.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin upsert tx: %v", util.ErrStore, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	maxIndex := map[string]int{}
	for _, c := range chunks {
		if len(c.Vector) == 0 {
			return fmt.Errorf("%w: chunk %s/%d has no vector", util.ErrStore, c.DocumentID, c.ChunkIndex)
		}
		_, err := tx.Exec(ctx, `
INSERT INTO chunks (document_id, chunk_index, text, token_count, page_start, page_end,
                    source_file, case_name, court, judgement_date, citation, url,
                    embed_version, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (document_id, chunk_index)
DO UPDATE SET
  text = EXCLUDED.text,
  token_count = EXCLUDED.token_count,
  page_start = EXCLUDED.page_start,
  page_end = EXCLUDED.page_end,
  source_file = EXCLUDED.source_file,
  case_name = EXCLUDED.case_name,
  court = EXCLUDED.court,
  judgement_date = EXCLUDED.judgement_date,
  citation = EXCLUDED.citation,
  url = EXCLUDED.url,
  embed_version = EXCLUDED.embed_version,
  embedding = EXCLUDED.embedding`,
			c.DocumentID, c.ChunkIndex, c.Text, c.TokenCount, c.PageStart, c.PageEnd,
			c.SourceFile, c.CaseName, c.Court, c.JudgementDate, c.Citation, c.URL,
			x.embedVersion, pgvector.NewVector(c.Vector),
		)
		if err != nil {
			return fmt.Errorf("%w: upsert chunk %s/%d: %v", util.ErrStore, c.DocumentID, c.ChunkIndex, err)
		}
		if c.ChunkIndex >= maxIndex[c.DocumentID] {
			maxIndex[c.DocumentID] = c.ChunkIndex + 1
		}
	}

	// A shorter re-ingest must not leave rows from the longer old version.
	for docID, count := range maxIndex {
		if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id=$1 AND chunk_index >= $2`, docID, count); err != nil {
			return fmt.Errorf("%w: trim stale chunks for %s: %v", util.ErrStore, docID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit upsert tx: %v", util.ErrStore, err)
	}
	return nil
}

func (x *PgIndex) Search(ctx context.Context, vector []float32, topK int) (models.RetrievalResult, error) {
	if topK <= 0 {
		topK = 5
	}
	rows, err := x.pool.Query(ctx, `
SELECT document_id, chunk_index, text, token_count, page_start, page_end,
       source_file, case_name, court, judgement_date, citation, url,
       1 - (embedding <=> $1) AS score
FROM chunks
WHERE embed_version = $2 AND embedding IS NOT NULL
ORDER BY embedding <=> $1, chunk_index ASC, document_id ASC
LIMIT $3`, pgvector.NewVector(vector), x.embedVersion, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %v", util.ErrStore, err)
	}
	defer rows.Close()

	out := make(models.RetrievalResult, 0, topK)
	for rows.Next() {
		var r models.RetrievedChunk
		if err := rows.Scan(&r.DocumentID, &r.ChunkIndex, &r.Text, &r.TokenCount, &r.PageStart, &r.PageEnd,
			&r.SourceFile, &r.CaseName, &r.Court, &r.JudgementDate, &r.Citation, &r.URL, &r.Score); err != nil {
			return nil, fmt.Errorf("%w: scan search row: %v", util.ErrStore, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate search rows: %v", util.ErrStore, err)
	}
	return out, nil
}

func (x *PgIndex) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := x.pool.Exec(ctx, `DELETE FROM chunks WHERE document_id=$1`, documentID); err != nil {
		return fmt.Errorf("%w: delete document %s: %v", util.ErrStore, documentID, err)
	}
	return nil
}

func (x *PgIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := x.pool.QueryRow(ctx, `SELECT COUNT(*) FROM chunks WHERE embed_version=$1`, x.embedVersion).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count chunks: %v", util.ErrStore, err)
	}
	return n, nil
}
