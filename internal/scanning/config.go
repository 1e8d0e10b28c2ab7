package scanning

import (
	"time"

	"github.com/zombor/invoice-scanner/internal/extract"
)

// Config holds the pipeline settings.
type Config struct {
	// MaxFileSize is the preflight ceiling in bytes.
	MaxFileSize int64
	// RenderScale multiplies the 72 DPI PDF base resolution.
	RenderScale float64
	// MaxWidth and MaxHeight bound raster inputs before OCR.
	MaxWidth  int
	MaxHeight int
	// Threshold is the binarization cut-off; luminance at or above it is white.
	Threshold uint8
	// OCRTimeout bounds a single recognition. Zero disables the bound.
	OCRTimeout time.Duration
	// MaxAttempts bounds the pipeline attempts for retryable failures.
	MaxAttempts int
	// RetryBackoff is the linear backoff unit: attempt n waits n*RetryBackoff.
	RetryBackoff time.Duration

	Extract extract.Config
}

// DefaultConfig returns the default pipeline settings.
func DefaultConfig() Config {
	return Config{
		MaxFileSize:  50 << 20,
		RenderScale:  2,
		MaxWidth:     1600,
		MaxHeight:    1200,
		Threshold:    128,
		OCRTimeout:   2 * time.Minute,
		MaxAttempts:  3,
		RetryBackoff: time.Second,
		Extract:      extract.DefaultConfig(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = d.MaxFileSize
	}
	if c.RenderScale <= 0 {
		c.RenderScale = d.RenderScale
	}
	if c.MaxWidth <= 0 {
		c.MaxWidth = d.MaxWidth
	}
	if c.MaxHeight <= 0 {
		c.MaxHeight = d.MaxHeight
	}
	if c.Threshold == 0 {
		c.Threshold = d.Threshold
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.RetryBackoff < 0 {
		c.RetryBackoff = 0
	}
	return c
}
