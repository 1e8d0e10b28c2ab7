package scanning

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

const (
	mediaPDF  = "application/pdf"
	mediaHEIC = "image/heic"
)

// Preprocessor turns a source document into a binarized bitmap for OCR.
type Preprocessor struct {
	renderScale float64
	maxWidth    int
	maxHeight   int
	threshold   uint8
}

// NewPreprocessor creates a Preprocessor from the pipeline settings.
func NewPreprocessor(cfg Config) *Preprocessor {
	cfg = cfg.withDefaults()
	return &Preprocessor{
		renderScale: cfg.RenderScale,
		maxWidth:    cfg.MaxWidth,
		maxHeight:   cfg.MaxHeight,
		threshold:   cfg.Threshold,
	}
}

// Prepare decodes doc, renders the first page of a PDF, downscales large
// rasters and binarizes the result. Rendered PDF pages keep their render
// resolution. Any decoding failure is a conversion failure.
func (p *Preprocessor) Prepare(ctx context.Context, doc SourceDocument) (*image.Gray, error) {
	if len(doc.Content) == 0 {
		return nil, NewError(KindConversion, "document is empty", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		img    image.Image
		err    error
		raster = true
	)
	switch detectMediaType(doc.Content, doc.MediaType) {
	case mediaPDF:
		img, err = p.renderPDF(doc.Content)
		raster = false
	case mediaHEIC:
		img, err = heic.Decode(bytes.NewReader(doc.Content))
		if err != nil {
			err = NewError(KindConversion, "decoding HEIC/HEIF image", err)
		}
	default:
		img, _, err = image.Decode(bytes.NewReader(doc.Content))
		if err != nil {
			err = NewError(KindConversion, "unsupported image format. Supported formats: JPEG, PNG, GIF, HEIC, HEIF, PDF", err)
		}
	}
	if err != nil {
		return nil, err
	}

	if b := img.Bounds(); raster && (b.Dx() > p.maxWidth || b.Dy() > p.maxHeight) {
		img = imaging.Fit(img, p.maxWidth, p.maxHeight, imaging.Lanczos)
	}
	return binarize(img, p.threshold), nil
}

// renderPDF rasterizes the first page at 72 DPI times the render scale.
func (p *Preprocessor) renderPDF(data []byte) (image.Image, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, NewError(KindConversion, "invalid PDF signature", nil)
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, NewError(KindConversion, "opening PDF", err)
	}
	defer doc.Close()

	if doc.NumPage() < 1 {
		return nil, NewError(KindConversion, "PDF has no pages", nil)
	}

	img, err := doc.ImageDPI(0, 72*p.renderScale)
	if err != nil {
		return nil, NewError(KindConversion, "rendering PDF page", err)
	}
	return img, nil
}

// binarize converts img to luminance (0.299R + 0.587G + 0.114B) and maps
// every pixel at or above threshold to white, the rest to black.
func binarize(img image.Image, threshold uint8) *image.Gray {
	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := gray.Pix[y*gray.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < b.Dx(); x++ {
			if src[x*4] >= threshold {
				dst[x] = 255
			} else {
				dst[x] = 0
			}
		}
	}
	return out
}

// detectMediaType trusts the content signature over the declared type.
func detectMediaType(data []byte, declared string) string {
	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return mediaPDF
	case isHEICFormat(data):
		return mediaHEIC
	}

	declared = strings.ToLower(strings.TrimSpace(declared))
	switch {
	case declared == mediaPDF || declared == "pdf":
		return mediaPDF
	case isHEICMimeType(declared):
		return mediaHEIC
	case declared != "" && declared != "application/octet-stream":
		return declared
	}
	return http.DetectContentType(data)
}

// isHEICFormat checks for an ftyp box with a HEIC-related brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

// MediaTypeFromFilename maps a file extension to a supported media type,
// or application/octet-stream when the extension is unknown.
func MediaTypeFromFilename(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return mediaPDF
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".heic":
		return mediaHEIC
	case ".heif":
		return "image/heif"
	}
	return "application/octet-stream"
}

func isHEICMimeType(mimeType string) bool {
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// encodePNG serializes a bitmap for engines that take encoded images.
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}
