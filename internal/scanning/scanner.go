package scanning

import (
	"context"
	"fmt"
	"image"
	"strings"
)

// DocumentType tells whether an invoice was received (purchase) or issued (sale).
type DocumentType string

const (
	Purchase DocumentType = "purchase"
	Sale     DocumentType = "sale"
)

// ParseDocumentType parses a document type, case-insensitively.
func ParseDocumentType(s string) (DocumentType, error) {
	t := DocumentType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown document type %q", s)
	}
	return t, nil
}

// Valid reports whether t is purchase or sale.
func (t DocumentType) Valid() bool {
	return t == Purchase || t == Sale
}

// SourceDocument is the caller-owned input. The pipeline never mutates it.
type SourceDocument struct {
	Content   []byte
	MediaType string
}

// Size returns the content length in bytes.
func (d SourceDocument) Size() int64 {
	return int64(len(d.Content))
}

// Confidence holds the per-field confidences, each in [0,100].
type Confidence struct {
	CompanyName int `json:"companyName"`
	Date        int `json:"date"`
	Amount      int `json:"amount"`
}

// ExtractionResult is the only object returned to the caller. Empty
// CompanyName or Date and a zero Amount mean the field is absent.
type ExtractionResult struct {
	CompanyName string     `json:"companyName,omitempty"`
	Date        string     `json:"date,omitempty"` // ISO 8601 (YYYY-MM-DD)
	Amount      float64    `json:"amount,omitempty"`
	FileName    string     `json:"fileName"`
	Confidence  Confidence `json:"confidence"`
}

// degradedResult is the minimal, field-absent result.
func degradedResult(docType DocumentType) *ExtractionResult {
	return &ExtractionResult{FileName: GenerateFileName(docType, "")}
}

// ProgressFunc receives advisory progress updates. Percent is in [0,100].
type ProgressFunc func(percent int, message string)

// Recognition is the plain text recognized in a bitmap and its aggregate
// confidence in [0,100].
type Recognition struct {
	Text       string
	Confidence int
}

// Engine defines the interface for text recognition backends
type Engine interface {
	// Recognize converts a bitmap to plain text. Implementations are not
	// required to be safe for concurrent use.
	Recognize(ctx context.Context, img image.Image) (Recognition, error)
	// Close releases the engine and its resources
	Close() error
}

// EngineFactory constructs an Engine on first use.
type EngineFactory func() (Engine, error)
