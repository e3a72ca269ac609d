package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"docai-platform/internal/logger"
	"docai-platform/models"

	"github.com/ledongthuc/pdf"
)

// maxPDFBytes caps in-memory extraction. Larger files fail fast instead
// of exhausting the worker.
const maxPDFBytes = 200 << 20

// ExtractionResult is the output of PDF text extraction.
type ExtractionResult struct {
	Text           string
	Pages          []models.PageText
	PageCount      int
	WordCount      int
	CharacterCount int
	QualityScore   float64
	ProcessingTime time.Duration
}

// PDFExtractor extracts per-page plain text from PDF files.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// ExtractText reads the file and extracts text page by page. Pages that
// fail to decode are skipped with a warning; extraction only fails when
// no page yields text.
func (e *PDFExtractor) ExtractText(ctx context.Context, filePath string) (*ExtractionResult, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stat, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat PDF file: %w", err)
	}
	if stat.Size() > maxPDFBytes {
		return nil, fmt.Errorf("pdf too large for in-memory extraction: %d bytes", stat.Size())
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF file: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	pageCount := reader.NumPage()
	var pages []models.PageText
	var textBuilder strings.Builder

	for i := 1; i <= pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("Failed to extract page text", "page", i, "error", err.Error())
			continue
		}
		text = normalizeExtractedText(text)
		if text == "" {
			continue
		}

		pages = append(pages, models.PageText{Num: i, Text: text})
		if textBuilder.Len() > 0 {
			textBuilder.WriteString("\n\n")
		}
		textBuilder.WriteString(text)
	}

	fullText := textBuilder.String()
	if fullText == "" {
		return nil, fmt.Errorf("no extractable text in PDF")
	}

	result := &ExtractionResult{
		Text:           fullText,
		Pages:          pages,
		PageCount:      pageCount,
		WordCount:      len(strings.Fields(fullText)),
		CharacterCount: len(fullText),
		QualityScore:   textQuality(fullText),
		ProcessingTime: time.Since(start),
	}

	logger.Info("PDF extracted",
		"pages", pageCount,
		"chars", result.CharacterCount,
		"quality", result.QualityScore,
		"duration_ms", result.ProcessingTime.Milliseconds())
	return result, nil
}

var repeatedWhitespace = regexp.MustCompile(`[ \t]{2,}`)

func normalizeExtractedText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = repeatedWhitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// textQuality scores extracted text 0-1. Scanned or corrupted PDFs
// produce replacement runes and low alphanumeric density; callers can
// use a low score to flag documents that need OCR.
func textQuality(text string) float64 {
	runes := []rune(text)
	if len(runes) == 0 {
		return 0
	}

	var alphanumeric, corrupted int
	for _, r := range runes {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			alphanumeric++
		case r == '�':
			corrupted++
		}
	}

	score := float64(alphanumeric)/float64(len(runes)) + 0.35
	score -= float64(corrupted) / float64(len(runes)) * 2.0
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
