package answer

import (
	"fmt"
	"strconv"
	"strings"

	"lexrag/internal/models"
)

type Mode string

const (
	ModeResearch  Mode = "research"
	ModeJudgment  Mode = "judgment"
	ModeSummarize Mode = "summarize"
)

const (
	judgmentHeader      = "HYPOTHETICAL ANALYSIS — NOT LEGAL ADVICE"
	generalDisclaimer   = "This output is generated for research support and is not legal advice."
	judgmentDisclaimer  = "This is a simulated analysis for educational purposes and is not legal advice."
	summarizeDisclaimer = "This headnote is machine-generated for study purposes and is not legal advice."
)

func disclaimerFor(mode Mode) string {
	switch mode {
	case ModeJudgment:
		return judgmentDisclaimer
	case ModeSummarize:
		return summarizeDisclaimer
	default:
		return generalDisclaimer
	}
}

// FormatPassages renders retrieved chunks as numbered source blocks. The
// bracket numbers here are the only ones a response may cite.
func FormatPassages(retrieved models.RetrievalResult) []string {
	out := make([]string, 0, len(retrieved))
	for i, r := range retrieved {
		header := "[" + strconv.Itoa(i+1) + "] Source: " + r.SourceFile + ", Page: " + strconv.Itoa(r.PageStart)
		if r.CaseName != "" {
			header += ", Case: " + r.CaseName
		}
		if r.Citation != "" {
			header += ", Citation: " + r.Citation
		}
		out = append(out, header+"\n"+r.Text)
	}
	return out
}

func buildResearchPrompt(query string, numRetrieved int) string {
	return fmt.Sprintf(`You are a legal research assistant for Indian law. Answer ONLY from the numbered source passages provided.

USER QUERY: %s

INSTRUCTIONS:
1. Provide an executive summary (2-4 sentences) answering the query
2. List key points as bullet notes
3. If multiple cases or sections are relevant, compare them briefly
4. Cite sources using ONLY bracket numbers [1], [2], etc. that appear in the passages
5. If the provided passages are insufficient to answer the query, clearly state so
6. End with a numbered sources list matching your bracket citations

CRITICAL: Use ONLY the bracket numbers [1] through [%d] that correspond to the provided passages. Do not invent citations or reference sources not provided.`, query, numRetrieved)
}

func buildJudgmentPrompt(facts string, numRetrieved int) string {
	return fmt.Sprintf(`You are simulating judicial reasoning for educational purposes. Begin your response with the exact header: %q

CASE FACTS:
%s

INSTRUCTIONS:
1. Begin with the exact header: %q
2. Analyze the facts in light of the provided source passages
3. Structure the analysis as Facts, Issues, Reasoning, Hypothetical Holding(s), Sources
4. Use cautious, conditional language throughout (may, could, likely, appears)
5. Cite ONLY using bracket numbers [1] through [%d]. Do not invent case names or citations not present in the passages.`, judgmentHeader, facts, judgmentHeader, numRetrieved)
}

func buildSummarizePrompt(query, caseText string, numRetrieved int) string {
	subject := "the provided source passages"
	if caseText != "" {
		subject = "the case text below"
	}
	var b strings.Builder
	fmt.Fprintf(&b, `You are a legal headnote generator for Indian case law. Generate a headnote with study notes based ONLY on %s.

`, subject)
	if query != "" {
		fmt.Fprintf(&b, "TOPIC: %s\n\n", query)
	}
	if caseText != "" {
		fmt.Fprintf(&b, "CASE TEXT TO SUMMARIZE:\n%s\n\n", caseText)
	}
	b.WriteString(`INSTRUCTIONS:
1. Organize the headnote as Facts, Issue, Holding, Ratio Decidendi
2. Add 5 study notes highlighting important aspects
`)
	if numRetrieved > 0 {
		fmt.Fprintf(&b, "3. Cite passages using ONLY bracket numbers [1] through [%d]\n", numRetrieved)
	}
	b.WriteString("\nCRITICAL: Base the summary ONLY on the provided text. Do not add external information.")
	return b.String()
}

// buildRetryPrompt prepends a correction block after a verification failure.
func buildRetryPrompt(original string, numRetrieved int, invalid []int) string {
	parts := make([]string, 0, len(invalid))
	for _, n := range invalid {
		parts = append(parts, strconv.Itoa(n))
	}
	return fmt.Sprintf(`CRITICAL CORRECTION REQUIRED:
Your previous response contained invalid citations: [%s]
You MUST use ONLY bracket numbers from [1] to [%d].
Do NOT use any other numbers in bracket citations.

%s`, strings.Join(parts, ", "), numRetrieved, original)
}
