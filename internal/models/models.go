package models

import "time"

// Document is one ingested source file. Pages are ordered and immutable
// once ingestion finishes.
type Document struct {
	DocumentID string           `json:"document_id"`
	SourceFile string           `json:"source_file"`
	SourceType string           `json:"source_type"`
	Pages      []Page           `json:"pages,omitempty"`
	Skipped    []PageDiagnostic `json:"skipped_pages,omitempty"`
	Meta       DocumentMeta     `json:"meta"`
	Status     string           `json:"status"`
	FailReason string           `json:"fail_reason,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Extraction methods recorded per page.
const (
	ExtractionText = "text"
	ExtractionOCR  = "ocr"
)

type Page struct {
	Number int    `json:"page_number"`
	Text   string `json:"text"`
	Method string `json:"method"`
}

// PageDiagnostic records a page that was neither text-extractable nor
// OCR-able. The document continues without it.
type PageDiagnostic struct {
	Number int    `json:"page_number"`
	Reason string `json:"reason"`
}

// DocumentMeta holds heuristically parsed fields. An empty string means
// the pattern did not match; fields are never guessed.
type DocumentMeta struct {
	CaseName      string `json:"case_name,omitempty"`
	Bench         string `json:"bench,omitempty"`
	Court         string `json:"court,omitempty"`
	JudgementDate string `json:"judgement_date,omitempty"`
	Citation      string `json:"citation,omitempty"`
	CaseNumber    string `json:"case_number,omitempty"`
	Year          string `json:"year,omitempty"`
	ActName       string `json:"act_name,omitempty"`
	URL           string `json:"url,omitempty"`
}

// Chunk is the retrieval unit. Keyed by (DocumentID, ChunkIndex);
// ChunkIndex is strictly increasing within a document.
type Chunk struct {
	DocumentID    string `json:"document_id"`
	ChunkIndex    int    `json:"chunk_index"`
	Text          string `json:"text"`
	TokenCount    int    `json:"token_count"`
	PageStart     int    `json:"page_start"`
	PageEnd       int    `json:"page_end"`
	SourceFile    string `json:"source_file"`
	CaseName      string `json:"case_name,omitempty"`
	Court         string `json:"court,omitempty"`
	JudgementDate string `json:"judgement_date,omitempty"`
	Citation      string `json:"citation,omitempty"`
	URL           string `json:"url,omitempty"`
}

// EmbeddedChunk pairs a chunk with its vector. Vector length is constant
// across one index.
type EmbeddedChunk struct {
	Chunk
	Vector []float32 `json:"vector"`
}

type RetrievedChunk struct {
	Chunk
	Score float64 `json:"score"`
}

// RetrievalResult is ordered by descending score; ties resolve by
// ascending chunk index, then document id.
type RetrievalResult []RetrievedChunk

// VerificationResult partitions every bracket number found in generated
// text into exactly one of Valid or Invalid. Unverified carries bare-text
// reporter citations that matched no retrieved chunk; it is informational
// and never drives retries.
type VerificationResult struct {
	Valid      []int    `json:"valid"`
	Invalid    []int    `json:"invalid"`
	Unverified []string `json:"unverified,omitempty"`
}
