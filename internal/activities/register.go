package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.ListSourceFilesActivity)
	w.RegisterActivity(a.NormalizeDocumentActivity)
	w.RegisterActivity(a.ChunkDocumentActivity)
	w.RegisterActivity(a.EmbedChunksActivity)
	w.RegisterActivity(a.UpsertChunksActivity)
	w.RegisterActivity(a.SaveDocumentActivity)
	w.RegisterActivity(a.PersistIndexActivity)
	w.RegisterActivity(a.WriteBatchSummaryActivity)
}
