package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"lexrag/internal/activities"
	"lexrag/internal/models"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func registerIngestActivities(env *testsuite.TestWorkflowEnvironment) {
	registerActivityName(env, "ListSourceFilesActivity", func(context.Context, activities.ListSourceFilesInput) (activities.ListSourceFilesOutput, error) {
		return activities.ListSourceFilesOutput{}, nil
	})
	registerActivityName(env, "NormalizeDocumentActivity", func(context.Context, activities.NormalizeDocumentInput) (activities.NormalizeDocumentOutput, error) {
		return activities.NormalizeDocumentOutput{}, nil
	})
	registerActivityName(env, "ChunkDocumentActivity", func(context.Context, activities.ChunkDocumentInput) (activities.ChunkDocumentOutput, error) {
		return activities.ChunkDocumentOutput{}, nil
	})
	registerActivityName(env, "EmbedChunksActivity", func(context.Context, activities.EmbedChunksInput) (activities.EmbedChunksOutput, error) {
		return activities.EmbedChunksOutput{}, nil
	})
	registerActivityName(env, "UpsertChunksActivity", func(context.Context, activities.UpsertChunksInput) error { return nil })
	registerActivityName(env, "SaveDocumentActivity", func(context.Context, activities.SaveDocumentInput) error { return nil })
	registerActivityName(env, "PersistIndexActivity", func(context.Context) error { return nil })
	registerActivityName(env, "WriteBatchSummaryActivity", func(context.Context, activities.WriteBatchSummaryInput) error { return nil })
}

func sampleDocument() models.Document {
	return models.Document{
		DocumentID: "doc-abc",
		SourceFile: "judgment.pdf",
		SourceType: "pdf",
		Pages:      []models.Page{{Number: 1, Text: "Section 302 defines murder.", Method: models.ExtractionText}},
		Status:     "normalized",
	}
}

func TestDocumentIngestWorkflowSuccess(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(DocumentIngestWorkflow)
	registerIngestActivities(env)

	doc := sampleDocument()
	env.OnActivity("NormalizeDocumentActivity", mock.Anything, activities.NormalizeDocumentInput{Path: "/data/judgment.pdf"}).
		Return(activities.NormalizeDocumentOutput{Document: doc}, nil)
	env.OnActivity("ChunkDocumentActivity", mock.Anything, mock.Anything).
		Return(activities.ChunkDocumentOutput{Chunks: []models.Chunk{{DocumentID: "doc-abc", ChunkIndex: 0, Text: "Section 302 defines murder."}}}, nil)
	env.OnActivity("EmbedChunksActivity", mock.Anything, mock.Anything).
		Return(activities.EmbedChunksOutput{Vectors: [][]float32{{0.1, 0.2}}, ProviderName: "mock", Model: "mock-embed"}, nil)
	env.OnActivity("UpsertChunksActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("SaveDocumentActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(DocumentIngestWorkflow, DocumentIngestInput{Path: "/data/judgment.pdf", EmbedProviders: 1, CooldownSeconds: 10})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "indexed", out)
}

func TestDocumentIngestWorkflowNoTextFailsGracefully(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(DocumentIngestWorkflow)
	registerIngestActivities(env)

	env.OnActivity("NormalizeDocumentActivity", mock.Anything, mock.Anything).
		Return(activities.NormalizeDocumentOutput{}, errors.New("scan.pdf: no extractable text found in document"))

	env.ExecuteWorkflow(DocumentIngestWorkflow, DocumentIngestInput{Path: "/data/scan.pdf", EmbedProviders: 1, CooldownSeconds: 10})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "failed", out)
}

func TestDocumentIngestWorkflowEmbedFailover(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(DocumentIngestWorkflow)
	registerIngestActivities(env)

	doc := sampleDocument()
	env.OnActivity("NormalizeDocumentActivity", mock.Anything, mock.Anything).
		Return(activities.NormalizeDocumentOutput{Document: doc}, nil)
	env.OnActivity("ChunkDocumentActivity", mock.Anything, mock.Anything).
		Return(activities.ChunkDocumentOutput{Chunks: []models.Chunk{{DocumentID: "doc-abc", ChunkIndex: 0, Text: "body"}}}, nil)

	// Provider 0 is out of quota; provider 1 serves the request.
	env.OnActivity("EmbedChunksActivity", mock.Anything, mock.MatchedBy(func(in activities.EmbedChunksInput) bool {
		return in.ProviderIndex == 0
	})).Return(activities.EmbedChunksOutput{}, errors.New("insufficient_quota"))
	env.OnActivity("EmbedChunksActivity", mock.Anything, mock.MatchedBy(func(in activities.EmbedChunksInput) bool {
		return in.ProviderIndex == 1
	})).Return(activities.EmbedChunksOutput{Vectors: [][]float32{{0.1}}, ProviderName: "ollama", Model: "nomic-embed-text"}, nil)
	env.OnActivity("UpsertChunksActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("SaveDocumentActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(DocumentIngestWorkflow, DocumentIngestInput{Path: "/data/judgment.pdf", EmbedProviders: 2, CooldownSeconds: 10})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "indexed", out)
}

func TestIngestBatchWorkflowRunsChildren(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(IngestBatchWorkflow)
	env.RegisterWorkflow(DocumentIngestWorkflow)
	registerIngestActivities(env)

	doc := sampleDocument()
	env.OnActivity("ListSourceFilesActivity", mock.Anything, activities.ListSourceFilesInput{InputDir: "/data/in"}).
		Return(activities.ListSourceFilesOutput{Paths: []string{"/data/in/a.pdf", "/data/in/b.txt"}}, nil)
	env.OnActivity("NormalizeDocumentActivity", mock.Anything, mock.Anything).
		Return(activities.NormalizeDocumentOutput{Document: doc}, nil)
	env.OnActivity("ChunkDocumentActivity", mock.Anything, mock.Anything).
		Return(activities.ChunkDocumentOutput{Chunks: []models.Chunk{{DocumentID: "doc-abc", ChunkIndex: 0, Text: "body"}}}, nil)
	env.OnActivity("EmbedChunksActivity", mock.Anything, mock.Anything).
		Return(activities.EmbedChunksOutput{Vectors: [][]float32{{0.1}}, ProviderName: "mock", Model: "mock-embed"}, nil)
	env.OnActivity("UpsertChunksActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("SaveDocumentActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("PersistIndexActivity", mock.Anything).Return(nil)
	env.OnActivity("WriteBatchSummaryActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(IngestBatchWorkflow, IngestBatchInput{BatchID: "batch-1", InputDir: "/data/in", MaxConcurrentChildren: 2, EmbedProviders: 1, CooldownSeconds: 10})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "completed", out)
}
