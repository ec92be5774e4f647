package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"lexrag/internal/answer"
	"lexrag/internal/audit"
	"lexrag/internal/chunker"
	"lexrag/internal/config"
	"lexrag/internal/index"
	"lexrag/internal/ingest"
	"lexrag/internal/normalize"
	"lexrag/internal/providers"
	"lexrag/internal/retriever"
	"lexrag/internal/util"
)

// app bundles everything the CLI commands share. The CLI always works
// against the persisted local index; the API and worker are where Postgres
// and Temporal come in.
type app struct {
	cfg      config.Config
	local    *index.LocalIndex
	pipeline *ingest.Pipeline
	retr     *retriever.Retriever
	orch     *answer.Orchestrator
}

func newApp(envFile string) (*app, error) {
	_ = godotenv.Load(envFile)
	cfg := config.Load()

	pm, err := providers.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	ch, err := chunker.New(cfg.ChunkSizeTokens, cfg.ChunkOverlapTokens)
	if err != nil {
		return nil, err
	}
	var ocr normalize.OCRClient
	if cfg.OCRSvcURL != "" {
		ocr = normalize.NewHTTPOCRClient(cfg.OCRSvcURL)
	}
	norm := normalize.New(ocr)

	local := index.NewLocalIndex()
	if err := local.Load(indexPath(cfg)); err != nil {
		return nil, err
	}

	retr := retriever.New(pm, local, cfg.EmbedDim)
	return &app{
		cfg:      cfg,
		local:    local,
		pipeline: ingest.NewPipeline(cfg, norm, ch, pm, local, nil),
		retr:     retr,
		orch:     answer.NewOrchestrator(cfg, pm, retr, audit.NewLogger(cfg.LogsDir)),
	}, nil
}

func indexPath(cfg config.Config) string {
	return filepath.Join(cfg.IndexDir, "legal_judgments.json")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envFlag := &cli.StringFlag{
		Name:  "env",
		Usage: "path to an env file",
		Value: ".env",
	}
	topKFlag := &cli.IntFlag{
		Name:  "top-k",
		Usage: "number of chunks to retrieve (default per mode)",
	}
	temperatureFlag := &cli.FloatFlag{
		Name:  "temperature",
		Usage: "sampling temperature (default per mode)",
	}

	root := &cli.Command{
		Name:  "lexrag",
		Usage: "retrieval-grounded research over Indian legal judgments",
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "normalize, chunk, embed and index a directory of judgments",
				ArgsUsage: "<dir>",
				Flags:     []cli.Flag{envFlag},
				Action:    ingestAction,
			},
			{
				Name:      "retrieve",
				Usage:     "show the top-K chunks for a query without generating",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					envFlag,
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "number of chunks to retrieve",
					},
				},
				Action: retrieveAction,
			},
			{
				Name:      "research",
				Usage:     "answer a legal research question with bracket citations",
				ArgsUsage: "<query>",
				Flags:     []cli.Flag{envFlag, topKFlag, temperatureFlag},
				Action:    modeAction(answer.ModeResearch),
			},
			{
				Name:      "judgment",
				Usage:     "draft a hypothetical analysis from case facts",
				ArgsUsage: "<facts>",
				Flags:     []cli.Flag{envFlag, topKFlag, temperatureFlag},
				Action:    modeAction(answer.ModeJudgment),
			},
			{
				Name:      "summarize",
				Usage:     "summarize an indexed case by query, or pasted text via --file",
				ArgsUsage: "[query]",
				Flags: []cli.Flag{
					envFlag,
					topKFlag,
					temperatureFlag,
					&cli.StringFlag{
						Name:  "file",
						Usage: "path to a text file holding the case text",
					},
				},
				Action: modeAction(answer.ModeSummarize),
			},
		},
	}

	if err := root.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func ingestAction(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.Args().First()
	if dir == "" {
		return fmt.Errorf("usage: lexrag ingest <dir>")
	}
	a, err := newApp(cmd.String("env"))
	if err != nil {
		return err
	}

	report, err := a.pipeline.IngestDir(ctx, dir)
	if err != nil {
		return err
	}
	if err := a.local.Persist(indexPath(a.cfg)); err != nil {
		return err
	}

	for _, r := range report.Reports {
		if r.Status == "indexed" {
			fmt.Printf("  indexed %s (%s): %d pages, %d chunks\n", r.SourceFile, r.DocumentID, r.Pages, r.Chunks)
			continue
		}
		fmt.Printf("  failed  %s: %s\n", r.SourceFile, r.Error)
	}
	fmt.Printf("ingested %d/%d files, index now holds %d chunks\n", report.Succeeded, report.Total, mustCount(ctx, a.local))
	return nil
}

func retrieveAction(ctx context.Context, cmd *cli.Command) error {
	query := cmd.Args().First()
	if query == "" {
		return fmt.Errorf("usage: lexrag retrieve <query>")
	}
	a, err := newApp(cmd.String("env"))
	if err != nil {
		return err
	}
	topK := int(cmd.Int("top-k"))
	if topK <= 0 {
		topK = a.cfg.ResearchTopK
	}

	results, err := a.retr.Retrieve(ctx, query, topK)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("no matching chunks")
		return nil
	}
	for i, r := range results {
		fmt.Printf("[%d] %.4f %s chunk %d page %d", i+1, r.Score, r.SourceFile, r.ChunkIndex, r.PageStart)
		if r.CaseName != "" {
			fmt.Printf(" (%s)", r.CaseName)
		}
		fmt.Printf("\n    %s\n", util.DisplaySnippet(r.Text, 240))
	}
	return nil
}

func modeAction(mode answer.Mode) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		a, err := newApp(cmd.String("env"))
		if err != nil {
			return err
		}

		req := answer.Request{Mode: mode, TopK: int(cmd.Int("top-k"))}
		if cmd.IsSet("temperature") {
			t := cmd.Float("temperature")
			req.Temperature = &t
		}
		arg := cmd.Args().First()
		switch mode {
		case answer.ModeJudgment:
			req.Facts = arg
		case answer.ModeSummarize:
			req.Query = arg
			if path := cmd.String("file"); path != "" {
				b, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read case text: %w", err)
				}
				req.CaseText = string(b)
			}
		default:
			req.Query = arg
		}

		res, err := a.orch.Answer(ctx, req)
		if err != nil {
			return err
		}

		fmt.Println(res.Text)
		fmt.Println()
		fmt.Println(res.Disclaimer)
		if len(res.Retrieved) > 0 {
			fmt.Println("\nSources:")
			for i, r := range res.Retrieved {
				fmt.Printf("  [%d] %s chunk %d page %d", i+1, r.SourceFile, r.ChunkIndex, r.PageStart)
				if r.CaseName != "" {
					fmt.Printf(" (%s)", r.CaseName)
				}
				fmt.Println()
			}
		}
		if res.Degraded {
			fmt.Printf("\nwarning: response still cites invalid sources %v after %d attempts\n", res.Verification.Invalid, res.Attempts)
		}
		if len(res.Verification.Unverified) > 0 {
			fmt.Printf("unverified reporter citations: %v\n", res.Verification.Unverified)
		}
		if res.AuditPath != "" {
			fmt.Printf("audit: %s\n", res.AuditPath)
		}
		return nil
	}
}

func mustCount(ctx context.Context, idx *index.LocalIndex) int {
	n, err := idx.Count(ctx)
	if err != nil {
		return 0
	}
	return n
}
