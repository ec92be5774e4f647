package activities

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"lexrag/internal/chunker"
	"lexrag/internal/config"
	"lexrag/internal/index"
	"lexrag/internal/ingest"
	"lexrag/internal/models"
	"lexrag/internal/normalize"
	"lexrag/internal/providers"
	"lexrag/internal/storage"
	"lexrag/internal/util"
)

// Activities are the worker-side implementations the ingestion workflows
// call. The vector index may be Postgres-backed or the persisted local
// store, chosen at worker startup.
type Activities struct {
	cfg       config.Config
	norm      *normalize.Normalizer
	chunks    *chunker.Chunker
	providers *providers.Manager
	idx       index.VectorIndex
	local     *index.LocalIndex
	docRepo   *storage.DocumentRepo
}

func New(cfg config.Config, db *storage.DB) (*Activities, error) {
	pm, err := providers.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	ch, err := chunker.New(cfg.ChunkSizeTokens, cfg.ChunkOverlapTokens)
	if err != nil {
		return nil, err
	}
	var ocr normalize.OCRClient
	if cfg.OCRSvcURL != "" {
		ocr = normalize.NewHTTPOCRClient(cfg.OCRSvcURL)
	}
	a := &Activities{
		cfg:       cfg,
		norm:      normalize.New(ocr),
		chunks:    ch,
		providers: pm,
	}
	if db != nil {
		a.idx = index.NewPgIndex(db.Pool, cfg.EmbedVersion)
		a.docRepo = storage.NewDocumentRepo(db)
		return a, nil
	}
	local := index.NewLocalIndex()
	if err := local.Load(a.indexPath()); err != nil {
		return nil, err
	}
	a.local = local
	a.idx = local
	return a, nil
}

func (a *Activities) indexPath() string {
	return filepath.Join(a.cfg.IndexDir, "legal_judgments.json")
}

func (a *Activities) ListSourceFilesActivity(ctx context.Context, in ListSourceFilesInput) (ListSourceFilesOutput, error) {
	_ = ctx
	paths, err := ingest.ListSourceFiles(in.InputDir)
	if err != nil {
		return ListSourceFilesOutput{}, err
	}
	return ListSourceFilesOutput{Paths: paths}, nil
}

func (a *Activities) NormalizeDocumentActivity(ctx context.Context, in NormalizeDocumentInput) (NormalizeDocumentOutput, error) {
	doc, err := a.norm.NormalizeFile(ctx, in.Path)
	if err != nil {
		return NormalizeDocumentOutput{}, err
	}
	return NormalizeDocumentOutput{Document: doc}, nil
}

func (a *Activities) ChunkDocumentActivity(ctx context.Context, in ChunkDocumentInput) (ChunkDocumentOutput, error) {
	_ = ctx
	chunks, err := a.chunks.Split(in.Document)
	if err != nil {
		return ChunkDocumentOutput{}, err
	}
	return ChunkDocumentOutput{Chunks: chunks}, nil
}

// EmbedChunksActivity embeds with one specific provider; failover across
// providers is workflow-side state.
func (a *Activities) EmbedChunksActivity(ctx context.Context, in EmbedChunksInput) (EmbedChunksOutput, error) {
	inputs := make([]string, 0, len(in.Chunks))
	for _, c := range in.Chunks {
		inputs = append(inputs, c.Text)
	}
	p, _ := a.providers.EmbedProviderByIndex(in.ProviderIndex)
	vecs, info, err := p.Embed(ctx, providers.EmbedRequest{Inputs: inputs, Dimension: a.cfg.EmbedDim})
	if err != nil {
		return EmbedChunksOutput{}, err
	}
	if len(vecs) != len(in.Chunks) {
		return EmbedChunksOutput{}, fmt.Errorf("provider %s returned %d vectors for %d chunks", info.Name, len(vecs), len(in.Chunks))
	}
	return EmbedChunksOutput{Vectors: vecs, ProviderName: info.Name, Model: info.Model}, nil
}

func (a *Activities) UpsertChunksActivity(ctx context.Context, in UpsertChunksInput) error {
	if len(in.Chunks) != len(in.Vectors) {
		return fmt.Errorf("%w: %d chunks, %d vectors", util.ErrStore, len(in.Chunks), len(in.Vectors))
	}
	embedded := make([]models.EmbeddedChunk, len(in.Chunks))
	for i := range in.Chunks {
		embedded[i] = models.EmbeddedChunk{Chunk: in.Chunks[i], Vector: in.Vectors[i]}
	}
	return a.idx.Upsert(ctx, embedded)
}

func (a *Activities) SaveDocumentActivity(ctx context.Context, in SaveDocumentInput) error {
	doc := in.Document
	doc.Status = in.Status
	doc.FailReason = in.FailReason
	doc.UpdatedAt = time.Now().UTC()

	path := filepath.Join(a.cfg.DataRoot, "documents", doc.DocumentID+".json")
	if err := util.WriteJSONAtomic(path, doc); err != nil {
		return fmt.Errorf("write document artifact: %w", err)
	}
	if a.docRepo != nil {
		return a.docRepo.SaveDocument(ctx, doc)
	}
	return nil
}

// PersistIndexActivity snapshots the local index. A no-op with the Postgres
// index, which is durable already.
func (a *Activities) PersistIndexActivity(ctx context.Context) error {
	_ = ctx
	if a.local == nil {
		return nil
	}
	return a.local.Persist(a.indexPath())
}

func (a *Activities) WriteBatchSummaryActivity(ctx context.Context, in WriteBatchSummaryInput) error {
	_ = ctx
	path := filepath.Join(a.cfg.DataRoot, "batches", in.BatchID+".json")
	return util.WriteJSONAtomic(path, in.Summary)
}

