package activities

import "lexrag/internal/models"

type ListSourceFilesInput struct {
	InputDir string `json:"input_dir"`
}

type ListSourceFilesOutput struct {
	Paths []string `json:"paths"`
}

type NormalizeDocumentInput struct {
	Path string `json:"path"`
}

type NormalizeDocumentOutput struct {
	Document models.Document `json:"document"`
}

type ChunkDocumentInput struct {
	Document models.Document `json:"document"`
}

type ChunkDocumentOutput struct {
	Chunks []models.Chunk `json:"chunks"`
}

type EmbedChunksInput struct {
	Chunks        []models.Chunk `json:"chunks"`
	ProviderIndex int            `json:"provider_index"`
}

type EmbedChunksOutput struct {
	Vectors      [][]float32 `json:"vectors"`
	ProviderName string      `json:"provider_name"`
	Model        string      `json:"model"`
}

type UpsertChunksInput struct {
	Chunks  []models.Chunk `json:"chunks"`
	Vectors [][]float32    `json:"vectors"`
}

type SaveDocumentInput struct {
	Document   models.Document `json:"document"`
	Status     string          `json:"status"`
	FailReason string          `json:"fail_reason,omitempty"`
}

type WriteBatchSummaryInput struct {
	BatchID string         `json:"batch_id"`
	Summary map[string]any `json:"summary"`
}

