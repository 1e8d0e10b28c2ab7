package scanning

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"

	"github.com/otiai10/gosseract/v2"
)

// defaultWhitelist restricts recognition to Latin letters (with French
// accents), digits and invoice punctuation.
const defaultWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz" +
	"àâäçéèêëîïôöùûüÿœæÀÂÄÇÉÈÊËÎÏÔÖÙÛÜŸŒÆ" +
	"0123456789" +
	"€$£%.,:;/-'’&()+*#@ "

// lstmOnlyConfig selects the LSTM recognizer. The engine mode is an
// init-only parameter so it is passed as a config file.
const lstmOnlyConfig = "tessedit_ocr_engine_mode 1\n"

// TesseractConfig configures the local Tesseract engine.
type TesseractConfig struct {
	Languages []string
	Whitelist string
}

// DefaultTesseractConfig recognizes French and English.
func DefaultTesseractConfig() TesseractConfig {
	return TesseractConfig{
		Languages: []string{"fra", "eng"},
		Whitelist: defaultWhitelist,
	}
}

// Tesseract implements the Engine interface using libtesseract
type Tesseract struct {
	client     *gosseract.Client
	configPath string
}

// NewTesseract creates and warms up a Tesseract engine so that missing
// language data surfaces here rather than on the first document.
func NewTesseract(cfg TesseractConfig) (*Tesseract, error) {
	if len(cfg.Languages) == 0 {
		cfg.Languages = DefaultTesseractConfig().Languages
	}

	configFile, err := os.CreateTemp("", "tesseract-*.cfg")
	if err != nil {
		return nil, fmt.Errorf("creating tesseract config: %w", err)
	}
	if _, err := configFile.WriteString(lstmOnlyConfig); err != nil {
		configFile.Close()
		os.Remove(configFile.Name())
		return nil, fmt.Errorf("writing tesseract config: %w", err)
	}
	configFile.Close()

	t := &Tesseract{
		client:     gosseract.NewClient(),
		configPath: configFile.Name(),
	}
	if err := t.configure(cfg); err != nil {
		t.Close()
		return nil, err
	}
	if err := t.warmUp(); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

// TesseractFactory returns an EngineFactory for cfg.
func TesseractFactory(cfg TesseractConfig) EngineFactory {
	return func() (Engine, error) {
		return NewTesseract(cfg)
	}
}

func (t *Tesseract) configure(cfg TesseractConfig) error {
	if err := t.client.SetConfigFile(t.configPath); err != nil {
		return fmt.Errorf("setting tesseract config file: %w", err)
	}
	if err := t.client.SetLanguage(cfg.Languages...); err != nil {
		return fmt.Errorf("setting tesseract languages: %w", err)
	}
	if cfg.Whitelist != "" {
		if err := t.client.SetWhitelist(cfg.Whitelist); err != nil {
			return fmt.Errorf("setting tesseract whitelist: %w", err)
		}
	}
	if err := t.client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return fmt.Errorf("setting tesseract page segmentation: %w", err)
	}
	return nil
}

// warmUp forces libtesseract initialization on a blank page.
func (t *Tesseract) warmUp() error {
	blank := image.NewGray(image.Rect(0, 0, 32, 32))
	for i := range blank.Pix {
		blank.Pix[i] = 255
	}
	data, err := encodePNG(blank)
	if err != nil {
		return err
	}
	if err := t.client.SetImageFromBytes(data); err != nil {
		return fmt.Errorf("loading warm-up image: %w", err)
	}
	if _, err := t.client.Text(); err != nil {
		return fmt.Errorf("initializing tesseract: %w", err)
	}
	return nil
}

// Recognize runs Tesseract on img. Confidence is the mean word confidence.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) (Recognition, error) {
	if err := ctx.Err(); err != nil {
		return Recognition{}, err
	}

	data, err := encodePNG(img)
	if err != nil {
		return Recognition{}, err
	}
	if err := t.client.SetImageFromBytes(data); err != nil {
		return Recognition{}, fmt.Errorf("loading image: %w", err)
	}

	text, err := t.client.Text()
	if err != nil {
		return Recognition{}, fmt.Errorf("extracting text: %w", err)
	}

	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return Recognition{}, fmt.Errorf("reading word confidences: %w", err)
	}

	var sum float64
	for _, box := range boxes {
		sum += box.Confidence
	}
	confidence := 0
	if len(boxes) > 0 {
		confidence = int(math.Round(sum / float64(len(boxes))))
	}

	return Recognition{Text: text, Confidence: confidence}, nil
}

// Close releases libtesseract and removes the config file
func (t *Tesseract) Close() error {
	err := t.client.Close()
	os.Remove(t.configPath)
	if err != nil {
		return fmt.Errorf("closing tesseract: %w", err)
	}
	return nil
}
