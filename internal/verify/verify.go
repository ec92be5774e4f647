package verify

import (
	"math"
	"regexp"
	"sort"
	"strconv"

	"lexrag/internal/models"
)

var (
	bracketRe          = regexp.MustCompile(`\[(\d+)\]`)
	reporterCitationRe = regexp.MustCompile(`\(\d{4}\)\s+\d+\s+[A-Z]+\s+\d+`)
)

// BracketCitations partitions every bracket number in generated text into
// valid (1..numRetrieved) and invalid. Each list is deduplicated and sorted.
func BracketCitations(text string, numRetrieved int) models.VerificationResult {
	seenValid := map[int]bool{}
	seenInvalid := map[int]bool{}
	for _, m := range bracketRe.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			// A digit run too large for int can never reference a retrieved
			// passage; it still counts as a citation the model must correct.
			n = math.MaxInt
		}
		if n >= 1 && n <= numRetrieved {
			seenValid[n] = true
		} else {
			seenInvalid[n] = true
		}
	}
	out := models.VerificationResult{Valid: sortedKeys(seenValid), Invalid: sortedKeys(seenInvalid)}
	return out
}

// UnverifiedReporterCitations finds bare reporter citations, e.g.
// "(2023) 5 SCC 123", that match no retrieved chunk. These are advisory:
// they are logged and surfaced but never drive a retry.
func UnverifiedReporterCitations(text string, retrieved models.RetrievalResult) []string {
	known := map[string]bool{}
	for _, r := range retrieved {
		if r.Citation != "" {
			known[r.Citation] = true
		}
	}
	seen := map[string]bool{}
	var out []string
	for _, c := range reporterCitationRe.FindAllString(text, -1) {
		if known[c] || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// ShouldRetry reports whether a generation pass needs another attempt.
func ShouldRetry(v models.VerificationResult) bool {
	return len(v.Invalid) > 0
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
