package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexrag/internal/config"
	"lexrag/internal/util"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorType
	}{
		{fmt.Errorf("insufficient_quota for project"), ErrorQuota},
		{fmt.Errorf("http 429 too many requests"), ErrorRate},
		{fmt.Errorf("prompt too long for model"), ErrorContext},
		{fmt.Errorf("service temporarily unavailable"), ErrorTransient},
		{fmt.Errorf("invalid api key"), ErrorPermanent},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ClassifyError(c.err), c.err.Error())
	}
	assert.Equal(t, ErrorType(""), ClassifyError(nil))
}

func TestParseProviderList(t *testing.T) {
	refs := ParseProviderList("google:primary | openai |mock")
	require.Len(t, refs, 3)
	assert.Equal(t, "google", refs[0].Name)
	assert.Equal(t, "primary", refs[0].KeyAlias)
	assert.Equal(t, "openai", refs[1].Name)
	assert.Equal(t, "mock", refs[2].Name)

	refs = ParseProviderList("")
	require.Len(t, refs, 1)
	assert.Equal(t, "mock", refs[0].Name)
}

func TestMockEmbedDeterministic(t *testing.T) {
	m := NewMockProvider(64)
	ctx := context.Background()

	a, _, err := m.Embed(ctx, EmbedRequest{Inputs: []string{"Section 302 defines murder"}})
	require.NoError(t, err)
	b, _, err := m.Embed(ctx, EmbedRequest{Inputs: []string{"Section 302 defines murder"}})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a[0], 64)
}

func TestMockEmbedSharedVocabularyIsCloser(t *testing.T) {
	m := NewMockProvider(64)
	ctx := context.Background()

	vecs, _, err := m.Embed(ctx, EmbedRequest{Inputs: []string{
		"what does section 302 define",
		"section 302 defines murder and its punishment",
		"the contract act governs agreements between parties",
	}})
	require.NoError(t, err)

	dot := func(a, b []float32) float64 {
		var s float64
		for i := range a {
			s += float64(a[i]) * float64(b[i])
		}
		return s
	}
	assert.Greater(t, dot(vecs[0], vecs[1]), dot(vecs[0], vecs[2]))
}

func TestMockEmbedRejectsEmptyInput(t *testing.T) {
	m := NewMockProvider(64)
	_, _, err := m.Embed(context.Background(), EmbedRequest{Inputs: []string{"ok", "   "}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrEmptyEmbedInput))
}

func TestMockGenerateCitesEveryContextBlock(t *testing.T) {
	m := NewMockProvider(64)
	resp, _, err := m.Generate(context.Background(), GenerateRequest{
		Mode:    "research",
		Prompt:  "What does Section 302 define?",
		Context: []string{"[1] chunk one", "[2] chunk two"},
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "[1]")
	assert.Contains(t, resp.Text, "[2]")
}

func TestManagerFallsBackToMock(t *testing.T) {
	cfg := config.Config{LLMProviders: "mock", EmbedProviders: "mock", EmbedDim: 64}
	m, err := NewManager(cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, m.LLMCount())
	assert.Equal(t, 1, m.EmbedCount())

	order := m.PreferredLLMOrder()
	require.Len(t, order, 1)
}

func TestManagerPreferredOrderPutsMockLast(t *testing.T) {
	cfg := config.Config{LLMProviders: "mock|google", EmbedProviders: "mock|openai", EmbedDim: 64}
	m, err := NewManager(cfg)
	require.NoError(t, err)

	llmOrder := m.PreferredLLMOrder()
	require.Len(t, llmOrder, 2)
	_, ref := m.LLMProviderByIndex(llmOrder[0])
	assert.Equal(t, "google", ref.Name)

	embedOrder := m.PreferredEmbedOrder()
	_, eref := m.EmbedProviderByIndex(embedOrder[0])
	assert.Equal(t, "openai", eref.Name)
}

func TestManagerRejectsUnknownProvider(t *testing.T) {
	cfg := config.Config{LLMProviders: "cohere", EmbedProviders: "mock", EmbedDim: 64}
	_, err := NewManager(cfg)
	require.Error(t, err)
}
