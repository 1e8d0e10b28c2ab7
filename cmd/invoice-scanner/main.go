package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/invoice-scanner/internal/extract"
	"github.com/zombor/invoice-scanner/internal/invoice"
	"github.com/zombor/invoice-scanner/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	defaults := scanning.DefaultConfig()
	extractDefaults := extract.DefaultConfig()

	fs := ff.NewFlagSet("invoice-scanner")
	var (
		port        = fs.IntLong("port", 8080, "HTTP server port")
		dbPath      = fs.StringLong("db", "invoice-scanner.db", "Database file path")
		storagePath = fs.StringLong("storage", "./invoices", "Storage directory path")
		analyzePath = fs.StringLong("analyze", "", "Analyze a single file, print the result as JSON and exit")
		docTypeFlag = fs.StringLong("type", "purchase", "Document type for --analyze: 'purchase' or 'sale'")
		engineType  = fs.StringLong("engine", "tesseract", "OCR engine: 'tesseract', 'gemini' or 'ollama'")
		languages   = fs.StringLong("ocr-languages", "fra+eng", "Tesseract languages, '+' separated")
		whitelist   = fs.StringLong("ocr-whitelist", scanning.DefaultTesseractConfig().Whitelist, "Tesseract character whitelist (empty disables)")
		ocrTimeout  = fs.DurationLong("ocr-timeout", defaults.OCRTimeout, "Maximum time for one recognition (0 disables)")
		maxFileMB   = fs.IntLong("max-file-mb", int(defaults.MaxFileSize>>20), "Maximum upload size in megabytes")
		renderScale = fs.Float64Long("render-scale", defaults.RenderScale, "PDF render scale relative to 72 DPI")
		maxWidth    = fs.IntLong("max-width", defaults.MaxWidth, "Maximum image width before OCR")
		maxHeight   = fs.IntLong("max-height", defaults.MaxHeight, "Maximum image height before OCR")
		threshold   = fs.IntLong("threshold", int(defaults.Threshold), "Binarization threshold (1-255)")
		attempts    = fs.IntLong("max-attempts", defaults.MaxAttempts, "Maximum analysis attempts for transient failures")
		backoff     = fs.DurationLong("retry-backoff", defaults.RetryBackoff, "Linear retry backoff unit")
		ceiling     = fs.Float64Long("amount-ceiling", extractDefaults.AmountCeiling, "Amounts at or above this value are rejected")
		typicalMin  = fs.Float64Long("typical-amount-min", extractDefaults.TypicalAmountMin, "Lower bound of the typical amount range")
		typicalMax  = fs.Float64Long("typical-amount-max", extractDefaults.TypicalAmountMax, "Upper bound of the typical amount range")
		minYear     = fs.IntLong("min-year", extractDefaults.MinYear, "Earliest plausible invoice year")
		maxYear     = fs.IntLong("max-year", extractDefaults.MaxYear, "Latest plausible invoice year")
		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL   = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel = fs.StringLong("ollama-model", "llava", "Ollama vision model name")
		authUser    = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass    = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		debug       = fs.BoolLong("debug", "Enable debug logging")
		_           = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("INVOICE_SCANNER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *debug {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	if *threshold < 1 || *threshold > 255 {
		slog.Error("Invalid threshold", "threshold", *threshold, "valid", "1-255")
		os.Exit(1)
	}

	cfg := scanning.Config{
		MaxFileSize:  int64(*maxFileMB) << 20,
		RenderScale:  *renderScale,
		MaxWidth:     *maxWidth,
		MaxHeight:    *maxHeight,
		Threshold:    uint8(*threshold),
		OCRTimeout:   *ocrTimeout,
		MaxAttempts:  *attempts,
		RetryBackoff: *backoff,
		Extract: extract.Config{
			AmountCeiling:    *ceiling,
			TypicalAmountMin: *typicalMin,
			TypicalAmountMax: *typicalMax,
			MinYear:          *minYear,
			MaxYear:          *maxYear,
		},
	}

	// Select the OCR engine; it is constructed lazily on first use
	var newEngine scanning.EngineFactory
	switch *engineType {
	case "tesseract":
		slog.Info("Using Tesseract engine", "languages", *languages)
		newEngine = scanning.TesseractFactory(scanning.TesseractConfig{
			Languages: strings.Split(*languages, "+"),
			Whitelist: *whitelist,
		})
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Using Gemini engine", "model", *geminiModel)
		newEngine = scanning.GeminiFactory(apiKey, *geminiModel)
	case "ollama":
		slog.Info("Using Ollama engine", "url", *ollamaURL, "model", *ollamaModel)
		newEngine = scanning.OllamaFactory(*ollamaURL, *ollamaModel)
	default:
		slog.Error("Invalid engine type", "type", *engineType, "valid", "tesseract, gemini or ollama")
		os.Exit(1)
	}

	analyzer := scanning.NewAnalyzer(cfg, newEngine)
	defer analyzer.Close()

	if *analyzePath != "" {
		if err := analyzeFile(analyzer, *analyzePath, *docTypeFlag); err != nil {
			slog.Error("Analysis failed", "file", *analyzePath, "error", err)
			analyzer.Close()
			os.Exit(1)
		}
		return
	}

	slog.Info("Initializing database...")
	db, err := invoice.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	slog.Info("Initializing storage...")
	store, err := invoice.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	invoiceService := invoice.NewService(db, analyzer, store)

	basicAuth := invoice.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := invoice.NewServer(invoiceService, basicAuth, cfg.MaxFileSize)

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}

// analyzeFile runs one analysis and prints the result to stdout
func analyzeFile(analyzer *scanning.Analyzer, path, docTypeName string) error {
	docType, err := scanning.ParseDocumentType(docTypeName)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	doc := scanning.SourceDocument{Content: data, MediaType: scanning.MediaTypeFromFilename(path)}
	result, err := analyzer.Analyze(ctx, doc, docType, func(percent int, message string) {
		slog.Info("Progress", "percent", percent, "message", message)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", scanning.UserMessage(err), err)
	}
	slog.Debug("Analysis took", "duration", time.Since(start))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
