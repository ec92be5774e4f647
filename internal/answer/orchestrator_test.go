package answer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexrag/internal/audit"
	"lexrag/internal/config"
	"lexrag/internal/index"
	"lexrag/internal/models"
	"lexrag/internal/providers"
	"lexrag/internal/retriever"
	"lexrag/internal/util"
)

const testDim = 64

func testConfig() config.Config {
	return config.Config{
		LLMProviders:        "mock",
		EmbedProviders:      "mock",
		EmbedDim:            testDim,
		ResearchTopK:        6,
		SummarizeTopK:       3,
		JudgmentTemperature: 0.1,
		MaxOutputTokens:     2048,
		MaxCitationRetries:  2,
	}
}

func seededRetriever(t *testing.T, m *providers.Manager, texts ...string) *retriever.Retriever {
	t.Helper()
	x := index.NewLocalIndex()
	p, _ := m.EmbedProviderByIndex(0)
	for i, text := range texts {
		vecs, _, err := p.Embed(context.Background(), providers.EmbedRequest{Inputs: []string{text}, Dimension: testDim})
		require.NoError(t, err)
		require.NoError(t, x.Upsert(context.Background(), []models.EmbeddedChunk{{
			Chunk:  models.Chunk{DocumentID: "doc-" + strings.Repeat("a", i+1), ChunkIndex: 0, Text: text, SourceFile: "seed.pdf", PageStart: 1},
			Vector: vecs[0],
		}}))
	}
	return retriever.New(m, x, testDim)
}

// stubLLM counts calls and replays canned responses, repeating the last one.
type stubLLM struct {
	calls     int
	responses []string
	err       error
	lastReq   providers.GenerateRequest
}

func (s *stubLLM) Generate(ctx context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
	_ = ctx
	s.calls++
	s.lastReq = req
	info := providers.ProviderInfo{Name: "stub", Model: "stub-v1"}
	if s.err != nil {
		return providers.GenerateResponse{}, info, s.err
	}
	i := s.calls - 1
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return providers.GenerateResponse{Text: s.responses[i]}, info, nil
}

type stubSelector struct {
	llm providers.LLMProvider
}

func (s *stubSelector) PreferredLLMOrder() []int { return []int{0} }
func (s *stubSelector) LLMProviderByIndex(int) (providers.LLMProvider, providers.ProviderRef) {
	return s.llm, providers.ProviderRef{Raw: "stub", Name: "stub"}
}

func TestAnswerResearchHappyPath(t *testing.T) {
	cfg := testConfig()
	m, err := providers.NewManager(cfg)
	require.NoError(t, err)
	retr := seededRetriever(t, m,
		"Section 302 of the Indian Penal Code defines the punishment for murder.",
		"The Indian Contract Act governs agreements between parties.")
	o := NewOrchestrator(cfg, m, retr, nil)

	res, err := o.Answer(context.Background(), Request{Mode: ModeResearch, Query: "What does Section 302 define?"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.False(t, res.Degraded)
	assert.NotEmpty(t, res.Verification.Valid)
	assert.Empty(t, res.Verification.Invalid)
	assert.NotEmpty(t, res.Retrieved)
	assert.Contains(t, res.Disclaimer, "not legal advice")
}

func TestAnswerEmptyIndexFailsWithNoRelevantMaterial(t *testing.T) {
	cfg := testConfig()
	m, err := providers.NewManager(cfg)
	require.NoError(t, err)
	retr := retriever.New(m, index.NewLocalIndex(), testDim)
	o := NewOrchestrator(cfg, m, retr, nil)

	_, err = o.Answer(context.Background(), Request{Mode: ModeResearch, Query: "anything"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrNoRelevantMaterial))
}

func TestAnswerRetryBoundExactlyThreeGenerations(t *testing.T) {
	cfg := testConfig()
	m, err := providers.NewManager(cfg)
	require.NoError(t, err)
	retr := seededRetriever(t, m, "Section 302 of the Indian Penal Code defines the punishment for murder.")

	// Every pass cites [99], which can never be valid.
	llm := &stubLLM{responses: []string{"The rule is settled [99]."}}
	o := NewOrchestrator(cfg, &stubSelector{llm: llm}, retr, nil)

	res, err := o.Answer(context.Background(), Request{Mode: ModeResearch, Query: "What does Section 302 define?"})
	require.NoError(t, err)
	assert.Equal(t, 3, llm.calls)
	assert.Equal(t, 3, res.Attempts)
	assert.True(t, res.Degraded)
	assert.Equal(t, []int{99}, res.Verification.Invalid)
}

func TestAnswerRetryRecoversOnSecondPass(t *testing.T) {
	cfg := testConfig()
	m, err := providers.NewManager(cfg)
	require.NoError(t, err)
	retr := seededRetriever(t, m, "Section 302 of the Indian Penal Code defines the punishment for murder.")

	llm := &stubLLM{responses: []string{
		"Bad citation [5].",
		"Corrected citation [1].",
	}}
	o := NewOrchestrator(cfg, &stubSelector{llm: llm}, retr, nil)

	res, err := o.Answer(context.Background(), Request{Mode: ModeResearch, Query: "What does Section 302 define?"})
	require.NoError(t, err)
	assert.Equal(t, 2, llm.calls)
	assert.False(t, res.Degraded)
	assert.Equal(t, []int{1}, res.Verification.Valid)
	assert.Empty(t, res.Verification.Invalid)
}

func TestAnswerPerRequestOverridesTopKAndTemperature(t *testing.T) {
	cfg := testConfig()
	m, err := providers.NewManager(cfg)
	require.NoError(t, err)
	retr := seededRetriever(t, m,
		"Section 302 of the Indian Penal Code defines the punishment for murder.",
		"The Indian Contract Act governs agreements between parties.")

	llm := &stubLLM{responses: []string{"Settled law [1]."}}
	o := NewOrchestrator(cfg, &stubSelector{llm: llm}, retr, nil)

	temp := 0.7
	res, err := o.Answer(context.Background(), Request{
		Mode:        ModeResearch,
		Query:       "What does Section 302 define?",
		TopK:        1,
		Temperature: &temp,
	})
	require.NoError(t, err)
	assert.Len(t, res.Retrieved, 1)
	assert.Equal(t, 0.7, llm.lastReq.Temperature)

	// Without overrides the configured per-mode defaults apply.
	res, err = o.Answer(context.Background(), Request{Mode: ModeResearch, Query: "What does Section 302 define?"})
	require.NoError(t, err)
	assert.Len(t, res.Retrieved, 2)
	assert.Equal(t, cfg.ResearchTemperature, llm.lastReq.Temperature)
}

func TestAnswerReportsUnverifiedReporterCitations(t *testing.T) {
	cfg := testConfig()
	m, err := providers.NewManager(cfg)
	require.NoError(t, err)
	retr := seededRetriever(t, m, "Section 302 of the Indian Penal Code defines the punishment for murder.")

	llm := &stubLLM{responses: []string{"Settled law [1]. See also (2021) 2 AIR 456."}}
	o := NewOrchestrator(cfg, &stubSelector{llm: llm}, retr, nil)

	res, err := o.Answer(context.Background(), Request{Mode: ModeResearch, Query: "What does Section 302 define?"})
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Equal(t, []string{"(2021) 2 AIR 456"}, res.Verification.Unverified)
}

func TestAnswerLLMFailureSurfacesErrLLM(t *testing.T) {
	cfg := testConfig()
	m, err := providers.NewManager(cfg)
	require.NoError(t, err)
	retr := seededRetriever(t, m, "Section 302 of the Indian Penal Code defines the punishment for murder.")

	llm := &stubLLM{err: errors.New("service temporarily unavailable")}
	o := NewOrchestrator(cfg, &stubSelector{llm: llm}, retr, nil)

	_, err = o.Answer(context.Background(), Request{Mode: ModeResearch, Query: "What does Section 302 define?"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrLLM))
}

func TestAnswerSummarizeCaseTextSkipsRetrieval(t *testing.T) {
	cfg := testConfig()
	m, err := providers.NewManager(cfg)
	require.NoError(t, err)
	retr := retriever.New(m, index.NewLocalIndex(), testDim)
	o := NewOrchestrator(cfg, m, retr, nil)

	res, err := o.Answer(context.Background(), Request{
		Mode:     ModeSummarize,
		CaseText: "The appellant was convicted under Section 302. The High Court upheld the conviction.",
	})
	require.NoError(t, err)
	assert.Empty(t, res.Retrieved)
	assert.Empty(t, res.Verification.Valid)
	assert.Empty(t, res.Verification.Invalid)
	assert.False(t, res.Degraded)
}

func TestAnswerValidatesInput(t *testing.T) {
	cfg := testConfig()
	m, err := providers.NewManager(cfg)
	require.NoError(t, err)
	o := NewOrchestrator(cfg, m, retriever.New(m, index.NewLocalIndex(), testDim), nil)

	_, err = o.Answer(context.Background(), Request{Mode: ModeResearch})
	require.Error(t, err)
	_, err = o.Answer(context.Background(), Request{Mode: ModeJudgment})
	require.Error(t, err)
	_, err = o.Answer(context.Background(), Request{Mode: ModeSummarize})
	require.Error(t, err)
	_, err = o.Answer(context.Background(), Request{Mode: "translate", Query: "x"})
	require.Error(t, err)
}

func TestAnswerWritesAuditFile(t *testing.T) {
	cfg := testConfig()
	m, err := providers.NewManager(cfg)
	require.NoError(t, err)
	retr := seededRetriever(t, m, "Section 302 of the Indian Penal Code defines the punishment for murder.")

	dir := t.TempDir()
	o := NewOrchestrator(cfg, m, retr, audit.NewLogger(dir))

	res, err := o.Answer(context.Background(), Request{Mode: ModeResearch, Query: "What does Section 302 define?"})
	require.NoError(t, err)
	require.NotEmpty(t, res.AuditPath)
	assert.True(t, strings.HasPrefix(filepath.Base(res.AuditPath), "research_"))

	b, err := os.ReadFile(res.AuditPath)
	require.NoError(t, err)
	assert.Contains(t, string(b), "\"mode\": \"research\"")
	assert.Contains(t, string(b), "\"retrieved_count\": 1")
}
