package scanning

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zombor/invoice-scanner/internal/extract"
)

// Analyzer runs the full pipeline: preflight, preprocessing, OCR, field
// extraction and result assembly.
type Analyzer struct {
	cfg          Config
	preprocessor *Preprocessor
	recognizer   *Recognizer
	extractor    *extract.Extractor
	retry        retrier
	logger       *slog.Logger
}

// NewAnalyzer creates an Analyzer with default dependencies
func NewAnalyzer(cfg Config, newEngine EngineFactory) *Analyzer {
	return NewAnalyzerWithDeps(cfg, newEngine, sleepContext, slog.Default())
}

// NewAnalyzerWithDeps creates an Analyzer with custom dependencies (for testing)
func NewAnalyzerWithDeps(cfg Config, newEngine EngineFactory, sleep Sleeper, logger *slog.Logger) *Analyzer {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		cfg:          cfg,
		preprocessor: NewPreprocessor(cfg),
		recognizer:   NewRecognizer(newEngine, cfg.OCRTimeout, logger),
		extractor:    extract.New(cfg.Extract),
		retry: retrier{
			maxAttempts: cfg.MaxAttempts,
			backoff:     cfg.RetryBackoff,
			sleep:       sleep,
			logger:      logger,
		},
		logger: logger,
	}
}

// Preflight rejects a document before any work is done.
func (a *Analyzer) Preflight(doc SourceDocument, docType DocumentType) error {
	if !docType.Valid() {
		return NewError(KindPreflight, fmt.Sprintf("unsupported document type %q", docType), nil)
	}
	if doc.Size() > a.cfg.MaxFileSize {
		return NewError(KindPreflight, fmt.Sprintf("file size %d exceeds limit of %d bytes", doc.Size(), a.cfg.MaxFileSize), nil)
	}
	return nil
}

// Analyze extracts the company name, date and amount from doc.
//
// Preflight rejections and cancellation are returned as errors. Every other
// failure degrades to a result with all fields absent and the default file
// name; the cause is logged.
func (a *Analyzer) Analyze(ctx context.Context, doc SourceDocument, docType DocumentType, onProgress ProgressFunc) (*ExtractionResult, error) {
	if err := a.Preflight(doc, docType); err != nil {
		return nil, err
	}

	progress := newProgress(onProgress)
	progress(0, "Starting analysis")
	start := time.Now()

	var result *ExtractionResult
	attempts, aerr := a.retry.run(ctx, func(ctx context.Context, attempt int) error {
		r, err := a.attempt(ctx, doc, docType, progress)
		result = r
		return err
	})

	if aerr != nil {
		if aerr.Kind == KindCanceled {
			return nil, aerr
		}
		a.logger.Warn("Analysis degraded to empty result",
			"kind", aerr.Kind,
			"recoverable", aerr.Recoverable,
			"attempts", attempts,
			"error", aerr,
		)
		result = degradedResult(docType)
	}

	progress(100, "Analysis complete")
	a.logger.Info("Analysis finished",
		"type", docType,
		"attempts", attempts,
		"duration", time.Since(start),
		"companyConfidence", result.Confidence.CompanyName,
		"dateConfidence", result.Confidence.Date,
		"amountConfidence", result.Confidence.Amount,
	)
	return result, nil
}

func (a *Analyzer) attempt(ctx context.Context, doc SourceDocument, docType DocumentType, progress ProgressFunc) (*ExtractionResult, error) {
	img, err := a.preprocessor.Prepare(ctx, doc)
	if err != nil {
		return nil, err
	}
	progress(30, "Document prepared")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	progress(50, "Recognizing text")
	rec, err := a.recognizer.Recognize(ctx, img)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("Text recognized", "characters", len(rec.Text), "confidence", rec.Confidence)
	progress(85, "Extracting fields")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := a.extractFields(rec.Text, docType)
	progress(95, "Assembling result")

	if result.Confidence == (Confidence{}) {
		return result, NewError(KindParsing, "no field could be extracted", nil)
	}
	return result, nil
}

// extractFields runs the three extractors concurrently on the same text and
// keeps the best candidate of each.
func (a *Analyzer) extractFields(text string, docType DocumentType) *ExtractionResult {
	var (
		g       errgroup.Group
		company extract.Candidate[string]
		date    extract.Candidate[time.Time]
		amount  extract.Candidate[float64]
		hasName bool
		hasDate bool
		hasSum  bool
	)
	g.Go(func() error {
		company, hasName = extract.Best(a.extractor.CompanyCandidates(text))
		return nil
	})
	g.Go(func() error {
		date, hasDate = extract.Best(a.extractor.DateCandidates(text))
		return nil
	})
	g.Go(func() error {
		amount, hasSum = extract.Best(a.extractor.AmountCandidates(text))
		return nil
	})
	_ = g.Wait()

	result := &ExtractionResult{}
	if hasName {
		result.CompanyName = company.Value
		result.Confidence.CompanyName = company.Confidence
	}
	if hasDate {
		result.Date = date.Value.Format("2006-01-02")
		result.Confidence.Date = date.Confidence
	}
	if hasSum {
		result.Amount = amount.Value
		result.Confidence.Amount = amount.Confidence
	}
	result.FileName = GenerateFileName(docType, result.CompanyName)
	return result
}

// Close releases the OCR engine. It is safe to call more than once.
// Limits returns the effective extraction bounds.
func (a *Analyzer) Limits() extract.Config {
	return a.extractor.Config()
}

func (a *Analyzer) Close() error {
	return a.recognizer.Close()
}

// newProgress wraps an optional callback, clamping percentages and never
// reporting a value lower than one already reported.
func newProgress(fn ProgressFunc) ProgressFunc {
	if fn == nil {
		return func(int, string) {}
	}
	last := -1
	return func(percent int, message string) {
		percent = min(max(percent, 0), 100)
		if percent < last {
			percent = last
		}
		last = percent
		fn(percent, message)
	}
}
