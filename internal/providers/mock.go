package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"lexrag/internal/util"
)

// MockProvider is a deterministic offline provider. Embeddings are seeded
// from the input text, so the same text always maps to the same vector, and
// generated answers cite every context block so citation checks hold.
type MockProvider struct {
	dim int
}

func NewMockProvider(dim int) *MockProvider {
	if dim <= 0 {
		dim = 384
	}
	return &MockProvider{dim: dim}
}

func (m *MockProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	_ = ctx
	info := ProviderInfo{Name: "mock", Model: fmt.Sprintf("mock-embed-%d", m.dim), Key: "mock"}
	dim := req.Dimension
	if dim <= 0 {
		dim = m.dim
	}
	vectors := make([][]float32, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		if strings.TrimSpace(input) == "" {
			return nil, info, util.ErrEmptyEmbedInput
		}
		vectors = append(vectors, deterministicVector(input, dim))
	}
	return vectors, info, nil
}

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	_ = ctx
	info := ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}
	b := strings.Builder{}
	switch strings.ToLower(req.Mode) {
	case "summarize":
		b.WriteString("Summary of the retrieved judgment material.")
		for i := range req.Context {
			b.WriteString(" Point " + strconv.Itoa(i+1) + " restated from source [" + strconv.Itoa(i+1) + "].")
		}
	default:
		b.WriteString("Based on the provided sources, the position is as follows.")
		for i := range req.Context {
			b.WriteString(" Source [" + strconv.Itoa(i+1) + "] supports this proposition.")
		}
	}
	if len(req.Context) == 0 {
		b.Reset()
		b.WriteString("No source material was provided for this question.")
	}
	return GenerateResponse{Text: b.String()}, info, nil
}

// deterministicVector hashes each term into a stable direction and sums
// them, so texts sharing vocabulary land near each other under cosine
// similarity. The same text always produces the same vector.
func deterministicVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	for _, term := range strings.Fields(strings.ToLower(input)) {
		term = strings.Trim(term, ",.;:!?()[]{}\"'`")
		if term == "" {
			continue
		}
		seed := []byte(term)
		for i := 0; i < dim; i++ {
			h := sha256.Sum256(append(seed, byte(i%251)))
			u := binary.BigEndian.Uint32(h[:4])
			vec[i] += float32(u%2000)/1000.0 - 1.0
		}
	}
	return l2Normalize(vec)
}

func l2Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}
