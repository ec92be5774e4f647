package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexrag/internal/models"
)

func testDoc(pages ...string) models.Document {
	doc := models.Document{DocumentID: "doc-test", SourceFile: "test.pdf"}
	for i, text := range pages {
		doc.Pages = append(doc.Pages, models.Page{Number: i + 1, Text: text, Method: models.ExtractionText})
	}
	return doc
}

// longPage builds a page worth roughly the requested number of tokens.
func longPage(c *Chunker, wantTokens int) string {
	var b strings.Builder
	sentence := "The appellant contends that the conviction under Section 302 cannot be sustained on the evidence led by the prosecution. "
	for c.CountTokens(b.String()) < wantTokens {
		b.WriteString(sentence)
	}
	return strings.TrimSpace(b.String())
}

func TestNewValidatesParams(t *testing.T) {
	_, err := New(0, 0)
	require.Error(t, err)
	_, err = New(100, 100)
	require.Error(t, err)
	_, err = New(100, -1)
	require.Error(t, err)
}

func TestSplitShortDocumentSingleChunk(t *testing.T) {
	c, err := New(800, 160)
	require.NoError(t, err)

	chunks, err := c.Split(testDoc("A short judgment paragraph."))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, 1, chunks[0].PageStart)
	assert.Equal(t, 1, chunks[0].PageEnd)
	assert.LessOrEqual(t, chunks[0].TokenCount, 800)
}

func TestSplitWindowsOverlapAndReconstruct(t *testing.T) {
	c, err := New(800, 160)
	require.NoError(t, err)

	doc := testDoc(longPage(c, 2500))
	chunks, err := c.Split(doc)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 4)

	// Recompute the token stream the way Split does to check windows.
	tokens := c.enc.Encode(doc.Pages[0].Text+pageSep, nil, nil)

	step := 800 - 160
	for i, ch := range chunks {
		start := i * step
		end := start + 800
		if end > len(tokens) {
			end = len(tokens)
		}
		assert.Equal(t, i, ch.ChunkIndex)
		assert.Equal(t, end-start, ch.TokenCount)
		assert.Equal(t, c.enc.Decode(tokens[start:end]), ch.Text)
	}

	// All chunks except the last carry the full window.
	for _, ch := range chunks[:len(chunks)-1] {
		assert.Equal(t, 800, ch.TokenCount)
	}

	// Consecutive chunks share at least 150 tokens of identical text.
	for i := 1; i < len(chunks); i++ {
		start := i * step
		shared := c.enc.Decode(tokens[start : start+160])
		assert.True(t, strings.HasSuffix(chunks[i-1].Text, shared))
		assert.True(t, strings.HasPrefix(chunks[i].Text, shared))
	}

	// Concatenating the non-overlapping spans reproduces the document.
	var b strings.Builder
	b.WriteString(chunks[0].Text)
	for i := 1; i < len(chunks); i++ {
		start := i * step
		end := start + 800
		if end > len(tokens) {
			end = len(tokens)
		}
		prevEnd := (i-1)*step + 800
		b.WriteString(c.enc.Decode(tokens[prevEnd:end]))
	}
	assert.Equal(t, c.enc.Decode(tokens), b.String())
}

func TestSplitPageAttribution(t *testing.T) {
	c, err := New(200, 40)
	require.NoError(t, err)

	doc := testDoc(longPage(c, 150), longPage(c, 150))
	chunks, err := c.Split(doc)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)

	assert.Equal(t, 1, chunks[0].PageStart)
	spansBreak := false
	for _, ch := range chunks {
		assert.LessOrEqual(t, ch.PageStart, ch.PageEnd)
		if ch.PageStart == 1 && ch.PageEnd == 2 {
			spansBreak = true
		}
	}
	assert.True(t, spansBreak, "expected a chunk spanning the page break")
	assert.Equal(t, 2, chunks[len(chunks)-1].PageEnd)
}

func TestSplitEmptyDocumentFails(t *testing.T) {
	c, err := New(800, 160)
	require.NoError(t, err)
	_, err = c.Split(models.Document{DocumentID: "doc-x"})
	require.Error(t, err)
}

func TestSplitCarriesMetadata(t *testing.T) {
	c, err := New(800, 160)
	require.NoError(t, err)

	doc := testDoc("Short body.")
	doc.Meta = models.DocumentMeta{CaseName: "A v. B", Court: "SC", Citation: "(2019) 4 SCC 123"}
	chunks, err := c.Split(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "A v. B", chunks[0].CaseName)
	assert.Equal(t, "SC", chunks[0].Court)
	assert.Equal(t, "(2019) 4 SCC 123", chunks[0].Citation)
}
