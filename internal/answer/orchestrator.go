package answer

import (
	"context"
	"fmt"
	"log"
	"strings"

	"lexrag/internal/audit"
	"lexrag/internal/config"
	"lexrag/internal/models"
	"lexrag/internal/providers"
	"lexrag/internal/retriever"
	"lexrag/internal/util"
	"lexrag/internal/verify"
)

// Request is one user question in a given mode. Facts feeds judgment mode,
// CaseText lets summarize work on pasted text without retrieval. TopK and
// Temperature override the configured per-mode defaults when set.
type Request struct {
	Mode        Mode     `json:"mode"`
	Query       string   `json:"query,omitempty"`
	Facts       string   `json:"facts,omitempty"`
	CaseText    string   `json:"case_text,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type Result struct {
	Mode         Mode                      `json:"mode"`
	Text         string                    `json:"text"`
	Disclaimer   string                    `json:"disclaimer"`
	Retrieved    models.RetrievalResult    `json:"retrieved"`
	Verification models.VerificationResult `json:"verification"`
	Attempts     int                       `json:"attempts"`
	Degraded     bool                      `json:"degraded"`
	Provider     providers.ProviderInfo    `json:"provider"`
	AuditPath    string                    `json:"audit_path,omitempty"`
}

// generation pass states
type state int

const (
	stateGenerate state = iota
	stateVerify
	stateDecide
	stateDone
)

// LLMSelector yields generation providers in failover order. Satisfied by
// providers.Manager.
type LLMSelector interface {
	PreferredLLMOrder() []int
	LLMProviderByIndex(i int) (providers.LLMProvider, providers.ProviderRef)
}

// Orchestrator runs the retrieve/generate/verify loop. A response with
// invalid bracket citations gets regenerated with a correction prompt, at
// most MaxCitationRetries extra passes; after that the last response is
// accepted and marked degraded.
type Orchestrator struct {
	cfg     config.Config
	llms    LLMSelector
	retr    *retriever.Retriever
	auditor *audit.Logger
}

func NewOrchestrator(cfg config.Config, llms LLMSelector, retr *retriever.Retriever, auditor *audit.Logger) *Orchestrator {
	return &Orchestrator{cfg: cfg, llms: llms, retr: retr, auditor: auditor}
}

func (o *Orchestrator) Answer(ctx context.Context, req Request) (Result, error) {
	input, err := o.validate(req)
	if err != nil {
		return Result{}, err
	}

	retrieved, err := o.retrieveFor(ctx, req, input)
	if err != nil {
		return Result{}, err
	}

	prompt := o.buildPrompt(req, len(retrieved))
	passages := FormatPassages(retrieved)
	temperature := o.temperatureFor(req)

	res := Result{Mode: req.Mode, Disclaimer: disclaimerFor(req.Mode), Retrieved: retrieved}
	maxAttempts := 1 + o.cfg.MaxCitationRetries

	for st := stateGenerate; st != stateDone; {
		switch st {
		case stateGenerate:
			res.Attempts++
			text, info, err := o.generate(ctx, providers.GenerateRequest{
				Mode:            string(req.Mode),
				Prompt:          prompt,
				Context:         passages,
				Temperature:     temperature,
				MaxOutputTokens: o.cfg.MaxOutputTokens,
			})
			if err != nil {
				return Result{}, fmt.Errorf("%w: %v", util.ErrLLM, err)
			}
			res.Text = text
			res.Provider = info
			st = stateVerify

		case stateVerify:
			// Verification only applies when there is source material to
			// cite against.
			if len(retrieved) == 0 {
				res.Verification = models.VerificationResult{}
				st = stateDone
				break
			}
			res.Verification = verify.BracketCitations(res.Text, len(retrieved))
			st = stateDecide

		case stateDecide:
			if !verify.ShouldRetry(res.Verification) {
				st = stateDone
				break
			}
			if res.Attempts >= maxAttempts {
				res.Degraded = true
				st = stateDone
				break
			}
			log.Printf("answer: %s attempt %d had invalid citations %v, retrying", req.Mode, res.Attempts, res.Verification.Invalid)
			prompt = buildRetryPrompt(prompt, len(retrieved), res.Verification.Invalid)
			st = stateGenerate
		}
	}

	res.Verification.Unverified = verify.UnverifiedReporterCitations(res.Text, retrieved)
	res.AuditPath = o.writeAudit(req, input, prompt, temperature, res)
	return res, nil
}

func (o *Orchestrator) validate(req Request) (string, error) {
	switch req.Mode {
	case ModeResearch:
		if strings.TrimSpace(req.Query) == "" {
			return "", fmt.Errorf("research mode requires a query")
		}
		return req.Query, nil
	case ModeJudgment:
		if strings.TrimSpace(req.Facts) == "" {
			return "", fmt.Errorf("judgment mode requires case facts")
		}
		return req.Facts, nil
	case ModeSummarize:
		if strings.TrimSpace(req.Query) == "" && strings.TrimSpace(req.CaseText) == "" {
			return "", fmt.Errorf("summarize mode requires a query or case text")
		}
		if req.CaseText != "" {
			return req.CaseText, nil
		}
		return req.Query, nil
	default:
		return "", fmt.Errorf("unknown mode %q", req.Mode)
	}
}

// retrieveFor fetches context for the request. Summarize over pasted case
// text skips retrieval entirely; every other path with an empty result fails
// with ErrNoRelevantMaterial rather than generating ungrounded text.
func (o *Orchestrator) retrieveFor(ctx context.Context, req Request, input string) (models.RetrievalResult, error) {
	if req.Mode == ModeSummarize && strings.TrimSpace(req.CaseText) != "" {
		return nil, nil
	}
	retrieved, err := o.retr.Retrieve(ctx, input, o.topKFor(req))
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	if len(retrieved) == 0 {
		return nil, util.ErrNoRelevantMaterial
	}
	return retrieved, nil
}

func (o *Orchestrator) buildPrompt(req Request, numRetrieved int) string {
	switch req.Mode {
	case ModeJudgment:
		return buildJudgmentPrompt(req.Facts, numRetrieved)
	case ModeSummarize:
		return buildSummarizePrompt(req.Query, req.CaseText, numRetrieved)
	default:
		return buildResearchPrompt(req.Query, numRetrieved)
	}
}

func (o *Orchestrator) topKFor(req Request) int {
	if req.TopK > 0 {
		return req.TopK
	}
	if req.Mode == ModeSummarize {
		return o.cfg.SummarizeTopK
	}
	return o.cfg.ResearchTopK
}

func (o *Orchestrator) temperatureFor(req Request) float64 {
	if req.Temperature != nil {
		return *req.Temperature
	}
	switch req.Mode {
	case ModeJudgment:
		return o.cfg.JudgmentTemperature
	case ModeSummarize:
		return o.cfg.SummarizeTemperature
	default:
		return o.cfg.ResearchTemperature
	}
}

// generate tries each configured LLM provider in preferred order.
func (o *Orchestrator) generate(ctx context.Context, req providers.GenerateRequest) (string, providers.ProviderInfo, error) {
	var lastErr error
	for _, i := range o.llms.PreferredLLMOrder() {
		p, ref := o.llms.LLMProviderByIndex(i)
		resp, info, err := p.Generate(ctx, req)
		if err != nil {
			log.Printf("answer: generate via %s failed (%s): %v", ref.Raw, providers.ClassifyError(err), err)
			lastErr = err
			continue
		}
		if strings.TrimSpace(resp.Text) == "" {
			lastErr = fmt.Errorf("provider %s returned empty text", info.Name)
			continue
		}
		return resp.Text, info, nil
	}
	return "", providers.ProviderInfo{}, fmt.Errorf("all llm providers failed: %w", lastErr)
}

func (o *Orchestrator) writeAudit(req Request, input, prompt string, temperature float64, res Result) string {
	if o.auditor == nil {
		return ""
	}
	e := audit.NewEntry(string(req.Mode), input, res.Retrieved)
	e.Prompt = audit.Truncate(prompt, 2000)
	e.Temperature = temperature
	e.Response = audit.Truncate(res.Text, 2000)
	e.FullResponseLength = len(res.Text)
	e.Verification = res.Verification
	e.Attempts = res.Attempts
	e.Degraded = res.Degraded
	e.Provider = res.Provider
	return o.auditor.Write(e)
}
