package normalize

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"lexrag/internal/models"
	"lexrag/internal/util"
)

// OCRClient recognizes the text of a single PDF page. Implementations call
// out to an external OCR service; page numbers are 1-based.
type OCRClient interface {
	Recognize(ctx context.Context, path string, pageNumber int) (string, error)
}

// Normalizer turns source files into normalized page-ordered documents.
// OCR is optional; with a nil client, image-only pages are recorded as
// skipped instead of recognized.
type Normalizer struct {
	OCR OCRClient
}

func New(ocr OCRClient) *Normalizer {
	return &Normalizer{OCR: ocr}
}

// NormalizeFile dispatches on extension. Only ".pdf" and ".txt" sources are
// supported.
func (n *Normalizer) NormalizeFile(ctx context.Context, path string) (models.Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return n.NormalizePDF(ctx, path)
	case ".txt":
		return n.NormalizeText(path)
	default:
		return models.Document{}, fmt.Errorf("unsupported source type %q", filepath.Ext(path))
	}
}

// NormalizePDF extracts text page by page, falling back to OCR for pages with
// no extractable text. Pages that fail both paths are recorded in Skipped and
// the document continues without them. A document with zero usable pages
// fails with ErrNoExtractableText.
func (n *Normalizer) NormalizePDF(ctx context.Context, path string) (models.Document, error) {
	sum, err := hashFile(path)
	if err != nil {
		return models.Document{}, err
	}
	doc := newDocument(path, "pdf", sum)

	f, r, err := pdf.Open(path)
	if err != nil {
		return models.Document{}, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	total := r.NumPage()
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return models.Document{}, err
		}
		text, method, perr := n.extractPage(ctx, r, path, i)
		if perr != nil {
			log.Printf("normalize: %s page %d skipped: %v", filepath.Base(path), i, perr)
			doc.Skipped = append(doc.Skipped, models.PageDiagnostic{Number: i, Reason: perr.Error()})
			continue
		}
		doc.Pages = append(doc.Pages, models.Page{Number: i, Text: text, Method: method})
	}

	if len(doc.Pages) == 0 {
		return models.Document{}, fmt.Errorf("%s: %w", filepath.Base(path), util.ErrNoExtractableText)
	}

	doc.Meta = ExtractMeta(filepath.Base(path), headerText(doc.Pages))
	doc.UpdatedAt = time.Now().UTC()
	return doc, nil
}

// NormalizeText ingests a plain-text judgment as a single page.
func (n *Normalizer) NormalizeText(path string) (models.Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return models.Document{}, fmt.Errorf("read text %s: %w", path, err)
	}
	doc := newDocument(path, "text", util.SHA256Hex(b))
	text := CleanText(string(b))
	if text == "" {
		return models.Document{}, fmt.Errorf("%s: %w", filepath.Base(path), util.ErrNoExtractableText)
	}
	doc.Pages = []models.Page{{Number: 1, Text: text, Method: models.ExtractionText}}
	doc.Meta = ExtractMeta(filepath.Base(path), text)
	doc.UpdatedAt = time.Now().UTC()
	return doc, nil
}

func (n *Normalizer) extractPage(ctx context.Context, r *pdf.Reader, path string, pageNum int) (string, string, error) {
	page := r.Page(pageNum)
	raw := ""
	if !page.V.IsNull() {
		if t, err := page.GetPlainText(nil); err == nil {
			raw = t
		}
	}
	if text := CleanText(raw); text != "" {
		return text, models.ExtractionText, nil
	}

	if n.OCR == nil {
		return "", "", util.ErrPageUnreadable
	}
	recognized, err := n.OCR.Recognize(ctx, path, pageNum)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", util.ErrOCRFailed, err)
	}
	text := CleanText(recognized)
	if text == "" {
		return "", "", util.ErrPageUnreadable
	}
	return text, models.ExtractionOCR, nil
}

// hashFile streams the file through sha256 without loading it whole.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	sum, err := util.SHA256HexFromReader(f)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return sum, nil
}

// newDocument builds the document shell; identity derives from the content
// hash so re-ingesting identical bytes yields the same id.
func newDocument(path, sourceType, sum string) models.Document {
	now := time.Now().UTC()
	return models.Document{
		DocumentID: "doc-" + sum[:16],
		SourceFile: filepath.Base(path),
		SourceType: sourceType,
		Status:     "normalized",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// headerText joins the first pages up to the window metadata parsing scans.
func headerText(pages []models.Page) string {
	var b strings.Builder
	for _, p := range pages {
		b.WriteString(p.Text)
		b.WriteString("\n")
		if b.Len() >= metaHeaderLimit {
			break
		}
	}
	return b.String()
}

var (
	pageNumLineRe  = regexp.MustCompile(`\n\s*\d+\s*\n`)
	pageLabelRe    = regexp.MustCompile(`(?i)\n\s*Page\s+\d+\s*\n`)
	separatorRe    = regexp.MustCompile(`[-_]{5,}`)
	multiSpaceRe   = regexp.MustCompile(`[ \t]+`)
	multiNewlineRe = regexp.MustCompile(`\n\s*\n\s*\n+`)
)

// CleanText normalizes whitespace and strips page furniture: bare page-number
// lines, "Page N" labels and long dash or underscore separators.
func CleanText(text string) string {
	text = util.SanitizeText(text)
	if text == "" {
		return ""
	}
	text = pageNumLineRe.ReplaceAllString(text, "\n")
	text = pageLabelRe.ReplaceAllString(text, "\n")
	text = separatorRe.ReplaceAllString(text, "")
	text = multiSpaceRe.ReplaceAllString(text, " ")
	text = multiNewlineRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
