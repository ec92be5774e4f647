package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"

	"lexrag/internal/models"
	"lexrag/internal/util"
)

// LocalIndex is a brute-force cosine store for single-node use. Vectors are
// assumed L2-normalized, so the dot product is the cosine score. The whole
// index persists as one JSON artifact and loads back on startup.
type LocalIndex struct {
	mu      sync.RWMutex
	dim     int
	entries []models.EmbeddedChunk
	byKey   map[string]int
}

func NewLocalIndex() *LocalIndex {
	return &LocalIndex{byKey: make(map[string]int)}
}

func chunkKey(documentID string, chunkIndex int) string {
	return documentID + "#" + strconv.Itoa(chunkIndex)
}

func (x *LocalIndex) Upsert(ctx context.Context, chunks []models.EmbeddedChunk) error {
	_ = ctx
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, c := range chunks {
		if len(c.Vector) == 0 {
			return fmt.Errorf("%w: chunk %s has no vector", util.ErrStore, chunkKey(c.DocumentID, c.ChunkIndex))
		}
		if x.dim == 0 {
			x.dim = len(c.Vector)
		}
		if len(c.Vector) != x.dim {
			return fmt.Errorf("%w: vector dimension %d, index dimension %d", util.ErrStore, len(c.Vector), x.dim)
		}
		key := chunkKey(c.DocumentID, c.ChunkIndex)
		if i, ok := x.byKey[key]; ok {
			x.entries[i] = c
			continue
		}
		x.byKey[key] = len(x.entries)
		x.entries = append(x.entries, c)
	}
	return nil
}

func (x *LocalIndex) Search(ctx context.Context, vector []float32, topK int) (models.RetrievalResult, error) {
	_ = ctx
	if topK <= 0 {
		topK = 5
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	scored := make(models.RetrievalResult, 0, len(x.entries))
	for _, e := range x.entries {
		scored = append(scored, models.RetrievedChunk{Chunk: e.Chunk, Score: dot(e.Vector, vector)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].ChunkIndex != scored[j].ChunkIndex {
			return scored[i].ChunkIndex < scored[j].ChunkIndex
		}
		return scored[i].DocumentID < scored[j].DocumentID
	})
	if topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK], nil
}

func (x *LocalIndex) DeleteDocument(ctx context.Context, documentID string) error {
	_ = ctx
	x.mu.Lock()
	defer x.mu.Unlock()
	kept := x.entries[:0]
	for _, e := range x.entries {
		if e.DocumentID != documentID {
			kept = append(kept, e)
		}
	}
	x.entries = kept
	x.byKey = make(map[string]int, len(x.entries))
	for i, e := range x.entries {
		x.byKey[chunkKey(e.DocumentID, e.ChunkIndex)] = i
	}
	return nil
}

func (x *LocalIndex) Count(ctx context.Context) (int, error) {
	_ = ctx
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries), nil
}

type localSnapshot struct {
	Dim     int                    `json:"dim"`
	Entries []models.EmbeddedChunk `json:"entries"`
}

// Persist writes the index atomically so a crashed run never leaves a
// truncated artifact behind.
func (x *LocalIndex) Persist(path string) error {
	x.mu.RLock()
	snap := localSnapshot{Dim: x.dim, Entries: append([]models.EmbeddedChunk(nil), x.entries...)}
	x.mu.RUnlock()
	if err := util.WriteJSONAtomic(path, snap); err != nil {
		return fmt.Errorf("%w: %v", util.ErrStore, err)
	}
	return nil
}

// Load replaces the index contents from a persisted snapshot. A missing file
// leaves the index empty.
func (x *LocalIndex) Load(path string) error {
	var snap localSnapshot
	if err := util.ReadJSON(path, &snap); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: %v", util.ErrStore, err)
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.dim = snap.Dim
	x.entries = snap.Entries
	x.byKey = make(map[string]int, len(x.entries))
	for i, e := range x.entries {
		x.byKey[chunkKey(e.DocumentID, e.ChunkIndex)] = i
	}
	return nil
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
