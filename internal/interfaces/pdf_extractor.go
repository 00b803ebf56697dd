// -----------------------------------------------------------------------
// PDF Interfaces - procedure text extraction and summary rendering
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
)

// PDFMetadata contains metadata about a PDF document
type PDFMetadata struct {
	PageCount   int   `json:"page_count"`
	FileSize    int64 `json:"file_size"`
	IsEncrypted bool  `json:"is_encrypted"`
}

// PDFExtractor extracts text from procedure documents supplied as PDF.
type PDFExtractor interface {
	// ExtractText extracts all text content from the PDF at path.
	ExtractText(ctx context.Context, path string) (string, error)

	// ExtractTextFromBytes extracts all text content from an in-memory PDF.
	ExtractTextFromBytes(ctx context.Context, content []byte) (string, error)

	// GetMetadata reads page count and encryption state without extracting text.
	GetMetadata(ctx context.Context, path string) (*PDFMetadata, error)
}

// PDFService renders markdown into a PDF document.
type PDFService interface {
	ConvertMarkdownToPDF(markdown, title string) ([]byte, error)
}
