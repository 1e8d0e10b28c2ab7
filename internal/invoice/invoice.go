package invoice

import (
	"errors"
	"time"

	"github.com/zombor/invoice-scanner/internal/scanning"
)

var (
	// ErrNotFound is returned when no invoice has the requested ID
	ErrNotFound = errors.New("invoice not found")
	// ErrInvalidDocumentType is returned for a type other than purchase or sale
	ErrInvalidDocumentType = errors.New("invalid document type")
	// ErrInvalidCorrection is returned when a correction carries a malformed field
	ErrInvalidCorrection = errors.New("invalid correction")
)

// Invoice is a scanned source document and the fields extracted from it
type Invoice struct {
	ID               string                    `json:"id"`
	Type             scanning.DocumentType     `json:"type"`
	OriginalFilename string                    `json:"original_filename"`
	StoredFile       string                    `json:"stored_file"`
	ContentType      string                    `json:"content_type"`
	Result           scanning.ExtractionResult `json:"result"`
	Corrected        bool                      `json:"corrected"`
	CreatedAt        time.Time                 `json:"created_at"`
	UpdatedAt        time.Time                 `json:"updated_at"`
}

// Correction holds user-confirmed field values. Nil fields are left
// untouched; an empty company name or date clears the field.
type Correction struct {
	CompanyName *string  `json:"companyName,omitempty"`
	Date        *string  `json:"date,omitempty"`
	Amount      *float64 `json:"amount,omitempty"`
}
