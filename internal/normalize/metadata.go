package normalize

import (
	"regexp"
	"strings"

	"lexrag/internal/models"
)

// metaHeaderLimit bounds how much leading text the header heuristics scan.
const metaHeaderLimit = 2000

var (
	courtRe      = regexp.MustCompile(`(?i)\b(SC|HC|DC)\b`)
	yearRe       = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	caseNumberRe = regexp.MustCompile(`\d{4}_[A-Z]+_\d+`)

	actPatterns = []struct {
		name string
		re   *regexp.Regexp
	}{
		{"IPC", regexp.MustCompile(`(?i)\bIPC\b`)},
		{"CrPC", regexp.MustCompile(`(?i)\bCrPC\b`)},
		{"Evidence Act", regexp.MustCompile(`(?i)\bEvidence\s*Act\b`)},
		{"Constitution", regexp.MustCompile(`(?i)\bConstitution\b`)},
	}

	caseNameRe = regexp.MustCompile(`(?m)^([A-Z][A-Z\s&.,()]+)\s+(?:[Vv][Ss]?\.?|versus)\s+([A-Z][A-Z\s&.,()]+)`)
	benchRe    = regexp.MustCompile(`(?i)BENCH:\s*(.+?)(?:\n|$)`)
	dateRe     = regexp.MustCompile(`(?i)(?:DATE|DECIDED ON|JUDGMENT DATE):\s*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`)
	citationRe = regexp.MustCompile(`\((\d{4})\)\s+(\d+)\s+([A-Z]+)\s+(\d+)`)
)

// ExtractMeta combines filename and header-text heuristics. Every field is
// pattern-matched; nothing is inferred, so a miss stays empty.
func ExtractMeta(filename, header string) models.DocumentMeta {
	meta := parseFilenameMeta(filename)
	fillHeaderMeta(&meta, header)
	return meta
}

func parseFilenameMeta(filename string) models.DocumentMeta {
	name := strings.TrimSuffix(filename, pathExt(filename))
	var meta models.DocumentMeta

	if m := caseNumberRe.FindString(name); m != "" {
		meta.CaseNumber = m
	}

	// Underscores are word characters, so boundary matches need them
	// rewritten as separators first.
	spaced := strings.NewReplacer("_", " ", "-", " ").Replace(name)
	if m := courtRe.FindStringSubmatch(spaced); m != nil {
		meta.Court = strings.ToUpper(m[1])
	}
	if m := yearRe.FindString(spaced); m != "" {
		meta.Year = m
	}
	for _, act := range actPatterns {
		if act.re.MatchString(spaced) {
			meta.ActName = act.name
			break
		}
	}
	return meta
}

func fillHeaderMeta(meta *models.DocumentMeta, header string) {
	if len(header) > metaHeaderLimit {
		header = header[:metaHeaderLimit]
	}
	if m := caseNameRe.FindStringSubmatch(header); m != nil {
		meta.CaseName = strings.TrimSpace(m[1]) + " v. " + strings.TrimSpace(m[2])
	}
	if m := benchRe.FindStringSubmatch(header); m != nil {
		meta.Bench = strings.TrimSpace(m[1])
	}
	if m := dateRe.FindStringSubmatch(header); m != nil {
		meta.JudgementDate = m[1]
	}
	if m := citationRe.FindStringSubmatch(header); m != nil {
		meta.Citation = "(" + m[1] + ") " + m[2] + " " + m[3] + " " + m[4]
	}
}

func pathExt(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i:]
	}
	return ""
}
