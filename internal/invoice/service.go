package invoice

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/invoice-scanner/internal/extract"
	"github.com/zombor/invoice-scanner/internal/scanning"
)

// Analyzer extracts fields from a source document
type Analyzer interface {
	Preflight(doc scanning.SourceDocument, docType scanning.DocumentType) error
	Analyze(ctx context.Context, doc scanning.SourceDocument, docType scanning.DocumentType, onProgress scanning.ProgressFunc) (*scanning.ExtractionResult, error)
	Limits() extract.Config
}

// IDGenerator generates unique IDs for invoices
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles invoice operations
type Service struct {
	db          DB
	analyzer    Analyzer
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with UUID IDs and the system clock
func NewService(db DB, analyzer Analyzer, storage Storage) *Service {
	return NewServiceWithDeps(db, analyzer, storage, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, analyzer Analyzer, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		analyzer:    analyzer,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	spaceRun            = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a phone-generated upload name, keeping its extension
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(spaceRun.ReplaceAllString(base, " "))
	base = strings.ReplaceAll(base, " ", "_")

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "invoice"
	}
	if unsafeFilenameChars.MatchString(strings.TrimPrefix(ext, ".")) {
		ext = ""
	}
	return base + ext
}

// ProcessInvoice validates, stores and analyzes an uploaded document
func (s *Service) ProcessInvoice(ctx context.Context, filename string, data []byte, contentType string, docType scanning.DocumentType) (*Invoice, error) {
	if !docType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDocumentType, docType)
	}

	doc := scanning.SourceDocument{Content: data, MediaType: contentType}
	if err := s.analyzer.Preflight(doc, docType); err != nil {
		return nil, fmt.Errorf("preflight: %w", err)
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	storedName, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	result, err := s.analyzer.Analyze(ctx, doc, docType, func(percent int, message string) {
		slog.Debug("Analysis progress", "id", id, "percent", percent, "message", message)
	})
	if err != nil {
		slog.Error("Failed to analyze invoice",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.storage.Delete(storedName)
		return nil, fmt.Errorf("analyzing invoice: %w", err)
	}

	invoice := &Invoice{
		ID:               id,
		Type:             docType,
		OriginalFilename: filename,
		StoredFile:       storedName,
		ContentType:      contentType,
		Result:           *result,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.db.SaveInvoice(invoice); err != nil {
		s.storage.Delete(storedName)
		return nil, fmt.Errorf("saving invoice to database: %w", err)
	}

	slog.Info("Invoice processed",
		"id", id,
		"type", docType,
		"file_name", result.FileName,
	)
	return invoice, nil
}

// GetInvoice retrieves an invoice by ID
func (s *Service) GetInvoice(id string) (*Invoice, error) {
	invoice, err := s.db.GetInvoice(id)
	if err != nil {
		return nil, fmt.Errorf("getting invoice: %w", err)
	}
	return invoice, nil
}

// ListInvoices returns all invoices, newest first
func (s *Service) ListInvoices() ([]*Invoice, error) {
	invoices, err := s.db.ListInvoices()
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	return invoices, nil
}

// DeleteInvoice removes an invoice and its source file
func (s *Service) DeleteInvoice(id string) error {
	invoice, err := s.db.GetInvoice(id)
	if err != nil {
		return fmt.Errorf("getting invoice for deletion: %w", err)
	}

	if err := s.storage.Delete(invoice.StoredFile); err != nil {
		slog.Warn("Failed to delete file", "filename", invoice.StoredFile, "error", err)
	}

	if err := s.db.DeleteInvoice(id); err != nil {
		return fmt.Errorf("deleting invoice from database: %w", err)
	}
	return nil
}

// InvoiceFile is a stored source document ready for download
type InvoiceFile struct {
	Data        []byte
	ContentType string
	// Name is the generated file name with the source extension
	Name string
}

// GetInvoiceFile retrieves the source document under its generated name
func (s *Service) GetInvoiceFile(id string) (*InvoiceFile, error) {
	invoice, err := s.db.GetInvoice(id)
	if err != nil {
		return nil, fmt.Errorf("getting invoice: %w", err)
	}

	data, err := s.storage.Get(invoice.StoredFile)
	if err != nil {
		return nil, fmt.Errorf("getting invoice file: %w", err)
	}

	name := invoice.Result.FileName
	if ext := strings.ToLower(filepath.Ext(invoice.StoredFile)); ext != "" && ext != ".pdf" {
		name = strings.TrimSuffix(name, ".pdf") + ext
	}

	return &InvoiceFile{
		Data:        data,
		ContentType: invoice.ContentType,
		Name:        name,
	}, nil
}

// CorrectInvoice overwrites extracted fields with user-confirmed values.
// Confirmed fields get full confidence and the file name is regenerated.
// Values outside the analyzer's extraction bounds are rejected.
func (s *Service) CorrectInvoice(id string, correction Correction) (*Invoice, error) {
	invoice, err := s.db.GetInvoice(id)
	if err != nil {
		return nil, fmt.Errorf("getting invoice: %w", err)
	}

	limits := s.analyzer.Limits()
	result := invoice.Result
	if correction.CompanyName != nil {
		result.CompanyName = extract.SanitizeCompanyName(*correction.CompanyName)
		result.Confidence.CompanyName = confirmed(result.CompanyName != "")
	}
	if correction.Date != nil {
		date := strings.TrimSpace(*correction.Date)
		if date != "" {
			parsed, err := time.Parse("2006-01-02", date)
			if err != nil {
				return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidCorrection)
			}
			if !limits.PlausibleYear(parsed.Year()) {
				return nil, fmt.Errorf("%w: year %d is outside %d-%d", ErrInvalidCorrection, parsed.Year(), limits.MinYear, limits.MaxYear)
			}
			date = parsed.Format("2006-01-02")
		}
		result.Date = date
		result.Confidence.Date = confirmed(date != "")
	}
	if correction.Amount != nil {
		amount := *correction.Amount
		if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
			return nil, fmt.Errorf("%w: amount must be a positive number", ErrInvalidCorrection)
		}
		amount = math.Round(amount*100) / 100
		if amount > 0 && !limits.PlausibleAmount(amount) {
			return nil, fmt.Errorf("%w: amount must be below %.2f", ErrInvalidCorrection, limits.AmountCeiling)
		}
		result.Amount = amount
		result.Confidence.Amount = confirmed(result.Amount > 0)
	}
	result.FileName = scanning.GenerateFileName(invoice.Type, result.CompanyName)

	invoice.Result = result
	invoice.Corrected = true
	invoice.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveInvoice(invoice); err != nil {
		return nil, fmt.Errorf("saving corrected invoice: %w", err)
	}
	return invoice, nil
}

func confirmed(present bool) int {
	if present {
		return 100
	}
	return 0
}
