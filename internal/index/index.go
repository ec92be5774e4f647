package index

import (
	"context"

	"lexrag/internal/models"
)

// VectorIndex stores embedded chunks and serves nearest-neighbour queries.
// Upsert is idempotent on (document_id, chunk_index); re-adding a document
// replaces its chunks without duplication. Search against an empty index
// returns an empty result, not an error.
type VectorIndex interface {
	Upsert(ctx context.Context, chunks []models.EmbeddedChunk) error
	Search(ctx context.Context, vector []float32, topK int) (models.RetrievalResult, error)
	DeleteDocument(ctx context.Context, documentID string) error
	Count(ctx context.Context) (int, error)
}
