package chunker

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"lexrag/internal/models"
)

// pageSep joins consecutive pages so chunk text reads continuously across a
// page break.
const pageSep = "\n\n"

// Chunker splits normalized documents into token-bounded overlapping chunks.
// Windows are fixed-size over the document's token stream, so consecutive
// chunks share exactly `overlap` tokens and concatenating the non-overlapping
// spans reproduces the document text.
type Chunker struct {
	enc     *tiktoken.Tiktoken
	size    int
	overlap int
}

// New builds a chunker over the cl100k_base encoding. Overlap must be
// smaller than size.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d out of range for size %d", overlap, size)
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load cl100k_base encoding: %w", err)
	}
	return &Chunker{enc: enc, size: size, overlap: overlap}, nil
}

// Split chunks one document. Page attribution follows token positions: a
// chunk records the first and last page any of its tokens came from. A
// document with at least one page yields at least one chunk.
func (c *Chunker) Split(doc models.Document) ([]models.Chunk, error) {
	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("document %s has no pages", doc.DocumentID)
	}

	// Pages are encoded one at a time so every token keeps its page of
	// origin.
	var tokens []int
	var pageOf []int
	for _, p := range doc.Pages {
		toks := c.enc.Encode(p.Text+pageSep, nil, nil)
		tokens = append(tokens, toks...)
		for range toks {
			pageOf = append(pageOf, p.Number)
		}
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("document %s encoded to zero tokens", doc.DocumentID)
	}

	step := c.size - c.overlap
	out := make([]models.Chunk, 0, len(tokens)/step+1)
	for start := 0; start < len(tokens); start += step {
		end := start + c.size
		if end > len(tokens) {
			end = len(tokens)
		}
		out = append(out, models.Chunk{
			DocumentID:    doc.DocumentID,
			ChunkIndex:    len(out),
			Text:          c.enc.Decode(tokens[start:end]),
			TokenCount:    end - start,
			PageStart:     pageOf[start],
			PageEnd:       pageOf[end-1],
			SourceFile:    doc.SourceFile,
			CaseName:      doc.Meta.CaseName,
			Court:         doc.Meta.Court,
			JudgementDate: doc.Meta.JudgementDate,
			Citation:      doc.Meta.Citation,
			URL:           doc.Meta.URL,
		})
		if end == len(tokens) {
			break
		}
	}
	return out, nil
}

// CountTokens reports the cl100k_base token length of s.
func (c *Chunker) CountTokens(s string) int {
	return len(c.enc.Encode(s, nil, nil))
}
