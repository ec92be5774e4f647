package audit

import (
	"log"
	"time"

	"github.com/google/uuid"

	"lexrag/internal/models"
	"lexrag/internal/providers"
	"lexrag/internal/util"
)

// RetrievedSummary is the per-chunk slice of an audit entry. Chunk bodies are
// not logged, only provenance.
type RetrievedSummary struct {
	DocumentID string  `json:"document_id"`
	SourceFile string  `json:"source_file"`
	ChunkIndex int     `json:"chunk_index"`
	PageStart  int     `json:"page_start"`
	CaseName   string  `json:"case_name,omitempty"`
	Score      float64 `json:"score"`
}

// Entry is one audited question/answer exchange. Long free-text fields are
// truncated so audit files stay small.
type Entry struct {
	EntryID            string                    `json:"entry_id"`
	Timestamp          time.Time                 `json:"timestamp"`
	Mode               string                    `json:"mode"`
	UserInput          string                    `json:"user_input"`
	RetrievedCount     int                       `json:"retrieved_count"`
	Retrieved          []RetrievedSummary        `json:"retrieved_metadata"`
	Prompt             string                    `json:"prompt"`
	Temperature        float64                   `json:"temperature"`
	Response           string                    `json:"llm_response"`
	FullResponseLength int                       `json:"full_response_length"`
	Verification       models.VerificationResult `json:"verification"`
	Attempts           int                       `json:"attempts"`
	Degraded           bool                      `json:"degraded"`
	Provider           providers.ProviderInfo    `json:"provider"`
}

// Logger writes one JSON file per exchange under its directory.
type Logger struct {
	dir string
}

func NewLogger(dir string) *Logger {
	return &Logger{dir: dir}
}

func NewEntry(mode, userInput string, retrieved models.RetrievalResult) Entry {
	e := Entry{
		EntryID:        uuid.NewString(),
		Timestamp:      time.Now().UTC(),
		Mode:           mode,
		UserInput:      Truncate(userInput, 1000),
		RetrievedCount: len(retrieved),
	}
	for _, r := range retrieved {
		e.Retrieved = append(e.Retrieved, RetrievedSummary{
			DocumentID: r.DocumentID,
			SourceFile: r.SourceFile,
			ChunkIndex: r.ChunkIndex,
			PageStart:  r.PageStart,
			CaseName:   r.CaseName,
			Score:      r.Score,
		})
	}
	return e
}

// Write persists the entry as {mode}_{timestamp}.json. Failures are logged,
// not returned: auditing never fails the request it describes.
func (l *Logger) Write(e Entry) string {
	name := e.Mode + "_" + e.Timestamp.Format("20060102_150405") + ".json"
	path := util.SafeJoin(l.dir, name)
	if err := util.WriteJSONAtomic(path, e); err != nil {
		log.Printf("audit: write %s failed: %v", path, err)
		return ""
	}
	return path
}

func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
