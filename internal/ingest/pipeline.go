package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"lexrag/internal/chunker"
	"lexrag/internal/config"
	"lexrag/internal/index"
	"lexrag/internal/models"
	"lexrag/internal/normalize"
	"lexrag/internal/providers"
	"lexrag/internal/util"
)

// DocumentStore persists document records. The Postgres repo implements it;
// a nil store means documents only live as JSON artifacts under DataRoot.
type DocumentStore interface {
	SaveDocument(ctx context.Context, doc models.Document) error
}

// Report describes one ingested file.
type Report struct {
	DocumentID   string `json:"document_id"`
	SourceFile   string `json:"source_file"`
	Pages        int    `json:"pages"`
	SkippedPages int    `json:"skipped_pages"`
	Chunks       int    `json:"chunks"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
}

type BatchReport struct {
	Total     int      `json:"total"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Reports   []Report `json:"reports"`
}

// Pipeline runs normalize, chunk, embed and index for source files. The same
// steps back both the CLI and the workflow activities.
type Pipeline struct {
	cfg     config.Config
	norm    *normalize.Normalizer
	chunks  *chunker.Chunker
	manager *providers.Manager
	idx     index.VectorIndex
	docs    DocumentStore
}

func NewPipeline(cfg config.Config, norm *normalize.Normalizer, ch *chunker.Chunker, manager *providers.Manager, idx index.VectorIndex, docs DocumentStore) *Pipeline {
	return &Pipeline{cfg: cfg, norm: norm, chunks: ch, manager: manager, idx: idx, docs: docs}
}

// IngestFile runs the full pipeline for one source file. Re-ingesting the
// same content is idempotent: the document id derives from the file bytes and
// the index upsert replaces rather than duplicates.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (Report, error) {
	doc, err := p.norm.NormalizeFile(ctx, path)
	if err != nil {
		return Report{SourceFile: filepath.Base(path), Status: "failed", Error: err.Error()}, err
	}
	rep := Report{
		DocumentID:   doc.DocumentID,
		SourceFile:   doc.SourceFile,
		Pages:        len(doc.Pages),
		SkippedPages: len(doc.Skipped),
	}

	chunks, err := p.chunks.Split(doc)
	if err != nil {
		rep.Status, rep.Error = "failed", err.Error()
		return rep, fmt.Errorf("chunk %s: %w", doc.SourceFile, err)
	}
	rep.Chunks = len(chunks)

	embedded, err := p.EmbedChunks(ctx, chunks)
	if err != nil {
		rep.Status, rep.Error = "failed", err.Error()
		return rep, fmt.Errorf("embed %s: %w", doc.SourceFile, err)
	}

	if err := p.idx.Upsert(ctx, embedded); err != nil {
		rep.Status, rep.Error = "failed", err.Error()
		return rep, fmt.Errorf("index %s: %w", doc.SourceFile, err)
	}

	doc.Status = "indexed"
	if err := p.saveDocument(ctx, doc); err != nil {
		rep.Status, rep.Error = "failed", err.Error()
		return rep, err
	}
	rep.Status = "indexed"
	return rep, nil
}

// EmbedChunks embeds chunk texts in one batch per provider attempt, failing
// over to the next configured provider on error.
func (p *Pipeline) EmbedChunks(ctx context.Context, chunks []models.Chunk) ([]models.EmbeddedChunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	inputs := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c.Text) == "" {
			return nil, fmt.Errorf("chunk %s/%d: %w", c.DocumentID, c.ChunkIndex, util.ErrEmptyEmbedInput)
		}
		inputs = append(inputs, c.Text)
	}

	var lastErr error
	for _, i := range p.manager.PreferredEmbedOrder() {
		prov, ref := p.manager.EmbedProviderByIndex(i)
		vecs, _, err := prov.Embed(ctx, providers.EmbedRequest{Inputs: inputs, Dimension: p.cfg.EmbedDim})
		if err != nil {
			log.Printf("ingest: embed via %s failed (%s): %v", ref.Raw, providers.ClassifyError(err), err)
			lastErr = err
			continue
		}
		if len(vecs) != len(chunks) {
			lastErr = fmt.Errorf("provider %s returned %d vectors for %d inputs", ref.Name, len(vecs), len(chunks))
			continue
		}
		out := make([]models.EmbeddedChunk, len(chunks))
		for j := range chunks {
			out[j] = models.EmbeddedChunk{Chunk: chunks[j], Vector: vecs[j]}
		}
		return out, nil
	}
	return nil, fmt.Errorf("all embedding providers failed: %w", lastErr)
}

// IngestDir walks a directory tree and ingests every PDF and text file.
// Failures are per-file: one bad document never aborts the batch.
func (p *Pipeline) IngestDir(ctx context.Context, dir string) (BatchReport, error) {
	files, err := ListSourceFiles(dir)
	if err != nil {
		return BatchReport{}, err
	}
	batch := BatchReport{Total: len(files)}
	for _, f := range files {
		rep, err := p.IngestFile(ctx, f)
		if err != nil {
			log.Printf("ingest: %s failed: %v", filepath.Base(f), err)
			batch.Failed++
		} else {
			batch.Succeeded++
		}
		batch.Reports = append(batch.Reports, rep)
		if ctx.Err() != nil {
			return batch, ctx.Err()
		}
	}
	return batch, nil
}

// ListSourceFiles finds ingestable files under dir, sorted for stable batch
// order.
func ListSourceFiles(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".pdf", ".txt":
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(out)
	return out, nil
}

// saveDocument records the document both as a JSON artifact and, when a
// store is configured, in the database.
func (p *Pipeline) saveDocument(ctx context.Context, doc models.Document) error {
	path := filepath.Join(p.cfg.DataRoot, "documents", doc.DocumentID+".json")
	if err := util.WriteJSONAtomic(path, doc); err != nil {
		return fmt.Errorf("write document artifact: %w", err)
	}
	if p.docs != nil {
		if err := p.docs.SaveDocument(ctx, doc); err != nil {
			return fmt.Errorf("save document record: %w", err)
		}
	}
	return nil
}
