package normalize

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexrag/internal/models"
	"lexrag/internal/util"
)

func TestCleanTextStripsPageFurniture(t *testing.T) {
	in := "The appellant appealed.\n 12 \nPage 3\n__________\nThe court held."
	out := CleanText(in)
	assert.NotContains(t, out, "Page 3")
	assert.NotContains(t, out, "_____")
	assert.Contains(t, out, "The appellant appealed.")
	assert.Contains(t, out, "The court held.")
}

func TestCleanTextCollapsesWhitespace(t *testing.T) {
	out := CleanText("a   b\t\tc\n\n\n\nd")
	assert.Equal(t, "a b c\n\nd", out)
}

func TestExtractMetaFromFilename(t *testing.T) {
	meta := ExtractMeta("2019_SC_4502_IPC.pdf", "")
	assert.Equal(t, "SC", meta.Court)
	assert.Equal(t, "2019", meta.Year)
	assert.Equal(t, "2019_SC_4502", meta.CaseNumber)
	assert.Equal(t, "IPC", meta.ActName)
}

func TestExtractMetaFromHeader(t *testing.T) {
	header := "STATE OF MAHARASHTRA vs. RAMESH KUMAR\nBENCH: Sharma J., Gupta J.\nDECIDED ON: 12/03/2019\n(2019) 4 SCC 123\n"
	meta := ExtractMeta("judgment.pdf", header)
	assert.Contains(t, meta.CaseName, "v.")
	assert.Equal(t, "Sharma J., Gupta J.", meta.Bench)
	assert.Equal(t, "12/03/2019", meta.JudgementDate)
	assert.Equal(t, "(2019) 4 SCC 123", meta.Citation)
}

func TestExtractMetaNeverGuesses(t *testing.T) {
	meta := ExtractMeta("notes.pdf", "plain paragraph without any header markers")
	assert.Equal(t, models.DocumentMeta{}, meta)
}

func TestNormalizeTextSinglePage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "2021_HC_77.txt")
	require.NoError(t, os.WriteFile(path, []byte("Section 302 defines murder under the IPC.\n"), 0o644))

	n := New(nil)
	doc, err := n.NormalizeText(path)
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, models.ExtractionText, doc.Pages[0].Method)
	assert.Equal(t, "HC", doc.Meta.Court)
	assert.NotEmpty(t, doc.DocumentID)
}

func TestNormalizeTextDeterministicID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "case.txt")
	require.NoError(t, os.WriteFile(path, []byte("identical content"), 0o644))

	n := New(nil)
	a, err := n.NormalizeText(path)
	require.NoError(t, err)
	b, err := n.NormalizeText(path)
	require.NoError(t, err)
	assert.Equal(t, a.DocumentID, b.DocumentID)
}

func TestNormalizeTextEmptyFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(path, []byte("   \n\n  "), 0o644))

	n := New(nil)
	_, err := n.NormalizeText(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrNoExtractableText))
}

func TestNormalizeFileRejectsUnknownExtension(t *testing.T) {
	n := New(nil)
	_, err := n.NormalizeFile(context.Background(), "whatever.docx")
	require.Error(t, err)
}
