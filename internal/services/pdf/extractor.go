// -----------------------------------------------------------------------
// PDF Extractor - read procedure text from PDF documents with pdfcpu
// -----------------------------------------------------------------------

package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recon/internal/interfaces"
)

// Extractor implements the PDFExtractor interface using pdfcpu
type Extractor struct {
	logger arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.PDFExtractor = (*Extractor)(nil)

// NewExtractor creates a new PDF extractor service
func NewExtractor(logger arbor.ILogger) *Extractor {
	return &Extractor{logger: logger}
}

// ExtractText extracts all text content from the PDF at path.
func (e *Extractor) ExtractText(ctx context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF file: %w", err)
	}
	return e.ExtractTextFromBytes(ctx, content)
}

// ExtractTextFromBytes decodes the text shown on every page, in page order.
func (e *Extractor) ExtractTextFromBytes(ctx context.Context, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	conf := model.NewDefaultConfiguration()
	conf.Cmd = model.EXTRACTCONTENT
	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(content), conf)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF context: %w", err)
	}

	var fullText strings.Builder
	pagesWithText := 0
	for pageNum := 1; pageNum <= pdfCtx.PageCount; pageNum++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNum)
		if err != nil {
			return "", fmt.Errorf("failed to extract content of page %d: %w", pageNum, err)
		}
		stream, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("failed to read content of page %d: %w", pageNum, err)
		}

		text := pageText(stream)
		if text == "" {
			continue
		}
		if fullText.Len() > 0 {
			fmt.Fprintf(&fullText, "\n\n--- Page %d ---\n\n", pageNum)
		}
		fullText.WriteString(text)
		pagesWithText++
	}

	e.logger.Debug().
		Int("page_count", pdfCtx.PageCount).
		Int("pages_with_content", pagesWithText).
		Int("text_len", fullText.Len()).
		Msg("Extracted PDF text")

	return fullText.String(), nil
}

// GetMetadata reads page count and encryption state without extracting text.
func (e *Extractor) GetMetadata(ctx context.Context, path string) (*interfaces.PDFMetadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat PDF file: %w", err)
	}

	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}

	return &interfaces.PDFMetadata{
		PageCount:   pdfCtx.PageCount,
		FileSize:    info.Size(),
		IsEncrypted: pdfCtx.Encrypt != nil,
	}, nil
}
