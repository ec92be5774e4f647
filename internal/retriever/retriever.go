package retriever

import (
	"context"
	"fmt"
	"log"
	"strings"

	"lexrag/internal/index"
	"lexrag/internal/models"
	"lexrag/internal/providers"
	"lexrag/internal/util"
)

// Retriever embeds a query and returns the top-K nearest chunks. Embedding
// tries each configured provider in preferred order and fails over on error,
// so one unavailable backend does not fail the query.
type Retriever struct {
	manager *providers.Manager
	idx     index.VectorIndex
	dim     int
}

func New(manager *providers.Manager, idx index.VectorIndex, dim int) *Retriever {
	return &Retriever{manager: manager, idx: idx, dim: dim}
}

func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) (models.RetrievalResult, error) {
	vec, err := r.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	res, err := r.idx.Search(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	return res, nil
}

// EmbedQuery embeds one query string with provider failover.
func (r *Retriever) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if strings.TrimSpace(query) == "" {
		return nil, util.ErrEmptyEmbedInput
	}
	var lastErr error
	for _, i := range r.manager.PreferredEmbedOrder() {
		p, ref := r.manager.EmbedProviderByIndex(i)
		vecs, info, err := p.Embed(ctx, providers.EmbedRequest{Inputs: []string{query}, Dimension: r.dim})
		if err != nil {
			log.Printf("retriever: embed via %s failed (%s): %v", ref.Raw, providers.ClassifyError(err), err)
			lastErr = err
			continue
		}
		if len(vecs) != 1 {
			lastErr = fmt.Errorf("provider %s returned %d vectors for one input", info.Name, len(vecs))
			continue
		}
		return vecs[0], nil
	}
	return nil, fmt.Errorf("all embedding providers failed: %w", lastErr)
}
