package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"lexrag/internal/answer"
	"lexrag/internal/audit"
	"lexrag/internal/config"
	"lexrag/internal/index"
	"lexrag/internal/providers"
	"lexrag/internal/retriever"
	"lexrag/internal/storage"
	"lexrag/internal/util"
	"lexrag/internal/workflows"

	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
)

type Server struct {
	cfg          config.Config
	db           *storage.DB
	docRepo      *storage.DocumentRepo
	llmAuditRepo *storage.LLMAuditRepo
	providers    *providers.Manager
	retr         *retriever.Retriever
	orch         *answer.Orchestrator
	temporal     tclient.Client
}

type retrievedHit struct {
	DocumentID string  `json:"document_id"`
	SourceFile string  `json:"source_file"`
	ChunkIndex int     `json:"chunk_index"`
	PageStart  int     `json:"page_start"`
	PageEnd    int     `json:"page_end"`
	CaseName   string  `json:"case_name,omitempty"`
	Citation   string  `json:"citation,omitempty"`
	Snippet    string  `json:"snippet"`
	Score      float64 `json:"score"`
}

func NewServer(cfg config.Config) *Server {
	pm, err := providers.NewManager(cfg)
	if err != nil {
		panic(err)
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		panic(err)
	}

	s := &Server{cfg: cfg, providers: pm, temporal: tc}

	var idx index.VectorIndex
	if cfg.PostgresURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		db, err := storage.NewDB(ctx, cfg.PostgresURL)
		if err != nil {
			panic(err)
		}
		s.db = db
		s.docRepo = storage.NewDocumentRepo(db)
		s.llmAuditRepo = storage.NewLLMAuditRepo(db)
		idx = index.NewPgIndex(db.Pool, cfg.EmbedVersion)
	} else {
		local := index.NewLocalIndex()
		if err := local.Load(filepath.Join(cfg.IndexDir, "legal_judgments.json")); err != nil {
			panic(err)
		}
		idx = local
	}

	s.retr = retriever.New(pm, idx, cfg.EmbedDim)
	s.orch = answer.NewOrchestrator(cfg, pm, s.retr, audit.NewLogger(cfg.LogsDir))
	return s
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/documents", s.handleDocuments)
	mux.HandleFunc("/documents/", s.handleDocumentsScoped)
	mux.HandleFunc("/ingest", s.handleIngest)
	mux.HandleFunc("/ingest/", s.handleIngestScoped)
	mux.HandleFunc("/retrieve", s.handleRetrieve)
	mux.HandleFunc("/research", s.handleMode(answer.ModeResearch))
	mux.HandleFunc("/judgment", s.handleMode(answer.ModeJudgment))
	mux.HandleFunc("/summarize", s.handleMode(answer.ModeSummarize))
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if s.docRepo == nil {
		writeErr(w, http.StatusNotFound, fmt.Errorf("document listing requires the postgres store"))
		return
	}
	docs, err := s.docRepo.ListDocuments(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleDocumentsScoped(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	documentID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/documents/"), "/")
	if documentID == "" || s.docRepo == nil {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	doc, err := s.docRepo.GetDocument(r.Context(), documentID)
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleIngest starts a batch ingestion workflow over a directory of
// judgments. Progress is queryable at /ingest/{batch_id}/progress.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		BatchID  string `json:"batch_id"`
		InputDir string `json:"input_dir"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.BatchID = strings.TrimSpace(req.BatchID)
	req.InputDir = strings.TrimSpace(req.InputDir)
	if req.BatchID == "" || req.InputDir == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("batch_id and input_dir are required"))
		return
	}

	wfID := "ingest-" + req.BatchID
	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                                       wfID,
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.IngestBatchWorkflow, workflows.IngestBatchInput{
		BatchID:               req.BatchID,
		InputDir:              req.InputDir,
		MaxConcurrentChildren: s.cfg.IngestMaxChildren,
		EmbedProviders:        s.providers.EmbedCount(),
		CooldownSeconds:       s.cfg.ProviderCooldownSecs,
	})
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"workflow_id": we.GetID(), "run_id": we.GetRunID()})
}

func (s *Server) handleIngestScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/ingest/"), "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "progress" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	batchID := parts[0]
	resp, err := s.temporal.QueryWorkflow(r.Context(), "ingest-"+batchID, "", workflows.QueryGetBatchProgress)
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	var prog workflows.IngestBatchProgress
	if err := resp.Get(&prog); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, prog)
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("query is required"))
		return
	}
	if req.TopK <= 0 {
		req.TopK = s.cfg.ResearchTopK
	}

	results, err := s.retr.Retrieve(r.Context(), req.Query, req.TopK)
	if err != nil {
		writeErr(w, http.StatusBadGateway, err)
		return
	}
	hits := make([]retrievedHit, 0, len(results))
	for _, rc := range results {
		hits = append(hits, retrievedHit{
			DocumentID: rc.DocumentID,
			SourceFile: rc.SourceFile,
			ChunkIndex: rc.ChunkIndex,
			PageStart:  rc.PageStart,
			PageEnd:    rc.PageEnd,
			CaseName:   rc.CaseName,
			Citation:   rc.Citation,
			Snippet:    util.DisplaySnippet(rc.Text, 420),
			Score:      rc.Score,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": req.Query, "results": hits, "retrieved_count": len(hits)})
}

// handleMode serves /research, /judgment and /summarize through the shared
// answer orchestrator.
func (s *Server) handleMode(mode answer.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		var req answer.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		req.Mode = mode

		res, err := s.orch.Answer(r.Context(), req)
		s.recordLLMCall(r.Context(), mode, res, err)
		if err != nil {
			switch {
			case errors.Is(err, util.ErrNoRelevantMaterial):
				writeErr(w, http.StatusNotFound, err)
			case errors.Is(err, util.ErrLLM):
				writeErr(w, http.StatusBadGateway, err)
			case errors.Is(err, util.ErrStore):
				writeErr(w, http.StatusInternalServerError, err)
			default:
				writeErr(w, http.StatusBadRequest, err)
			}
			return
		}

		hits := make([]retrievedHit, 0, len(res.Retrieved))
		for _, rc := range res.Retrieved {
			hits = append(hits, retrievedHit{
				DocumentID: rc.DocumentID,
				SourceFile: rc.SourceFile,
				ChunkIndex: rc.ChunkIndex,
				PageStart:  rc.PageStart,
				PageEnd:    rc.PageEnd,
				CaseName:   rc.CaseName,
				Citation:   rc.Citation,
				Snippet:    util.DisplaySnippet(rc.Text, 420),
				Score:      rc.Score,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"mode":                 string(res.Mode),
			"answer":               res.Text,
			"disclaimer":           res.Disclaimer,
			"retrieved":            hits,
			"retrieved_count":      len(hits),
			"verification":         res.Verification,
			"unverified_citations": res.Verification.Unverified,
			"attempts":             res.Attempts,
			"degraded":             res.Degraded,
			"llm_provider":         res.Provider.Name,
			"llm_model":            res.Provider.Model,
		})
	}
}

func (s *Server) recordLLMCall(ctx context.Context, mode answer.Mode, res answer.Result, callErr error) {
	if s.llmAuditRepo == nil {
		return
	}
	rec := storage.LLMCallRecord{
		Mode:         string(mode),
		ProviderName: res.Provider.Name,
		Model:        res.Provider.Model,
		Status:       "ok",
		Attempts:     res.Attempts,
		Degraded:     res.Degraded,
	}
	if callErr != nil {
		rec.Status = "failed"
		rec.ErrorType = string(providers.ClassifyError(callErr))
	}
	_ = s.llmAuditRepo.Insert(ctx, rec)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "LR-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500:
		switch {
		case status == http.StatusBadGateway:
			return apiError{
				Code:    "LR-API-5020",
				Message: "Upstream provider unavailable. Retry shortly.",
			}
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "LR-DB-5001",
				Message: "Database schema is not initialized. Run migrations and retry.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "LR-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "LR-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "LR-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "LR-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "LR-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	case status == http.StatusMethodNotAllowed:
		code = "LR-API-4005"
		msg = "This endpoint does not support the requested method."
	}

	// For 4xx, keep user-safe validation context only.
	if status >= 400 && status < 500 && err != nil {
		switch {
		case strings.Contains(raw, "no relevant material"):
			code = "LR-RAG-4040"
			msg = "No relevant material was found in the index for this request."
		case strings.Contains(raw, "batch_id and input_dir are required"):
			msg = "Both batch_id and input_dir are required."
		case strings.Contains(raw, "query is required"):
			msg = "A query is required."
		case strings.Contains(raw, "requires a query"):
			msg = "This mode requires a query."
		case strings.Contains(raw, "requires case facts"):
			msg = "Judgment mode requires case facts."
		case strings.Contains(raw, "requires a query or case text"):
			msg = "Summarize mode requires a query or pasted case text."
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
