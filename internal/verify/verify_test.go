package verify

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"lexrag/internal/models"
)

func TestBracketCitationsPartition(t *testing.T) {
	text := "The principle is settled [1] and followed [3]. A stray reference [7] appears, as does [0]."
	v := BracketCitations(text, 3)
	assert.Equal(t, []int{1, 3}, v.Valid)
	assert.Equal(t, []int{0, 7}, v.Invalid)
}

func TestBracketCitationsDeduplicatesAndSorts(t *testing.T) {
	text := "[2] then [1] then [2] again [1]."
	v := BracketCitations(text, 5)
	assert.Equal(t, []int{1, 2}, v.Valid)
	assert.Empty(t, v.Invalid)
}

func TestBracketCitationsNoCitations(t *testing.T) {
	v := BracketCitations("plain prose without references", 4)
	assert.Empty(t, v.Valid)
	assert.Empty(t, v.Invalid)
}

func TestBracketCitationsZeroRetrieved(t *testing.T) {
	v := BracketCitations("claims [1] something", 0)
	assert.Empty(t, v.Valid)
	assert.Equal(t, []int{1}, v.Invalid)
}

func TestBracketCitationsOverflowingNumberIsInvalid(t *testing.T) {
	text := "Settled [1], but see [99999999999999999999]."
	v := BracketCitations(text, 2)
	assert.Equal(t, []int{1}, v.Valid)
	assert.Equal(t, []int{math.MaxInt}, v.Invalid)
	assert.True(t, ShouldRetry(v))
}

func TestShouldRetry(t *testing.T) {
	assert.False(t, ShouldRetry(models.VerificationResult{Valid: []int{1, 2}}))
	assert.True(t, ShouldRetry(models.VerificationResult{Valid: []int{1}, Invalid: []int{9}}))
}

func TestUnverifiedReporterCitations(t *testing.T) {
	retrieved := models.RetrievalResult{
		{Chunk: models.Chunk{DocumentID: "doc-a", Citation: "(2019) 4 SCC 123"}},
	}
	text := "As held in (2019) 4 SCC 123 and also (2021) 2 AIR 456, the rule applies."
	out := UnverifiedReporterCitations(text, retrieved)
	assert.Equal(t, []string{"(2021) 2 AIR 456"}, out)
}

func TestUnverifiedReporterCitationsDeduplicates(t *testing.T) {
	text := "(2020) 1 SCC 1 twice: (2020) 1 SCC 1."
	out := UnverifiedReporterCitations(text, nil)
	assert.Equal(t, []string{"(2020) 1 SCC 1"}, out)
}
