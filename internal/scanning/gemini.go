package scanning

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// transcribePrompt is the shared prompt used by the vision model engines
const transcribePrompt = `You are an OCR engine. Transcribe all text visible in this invoice image exactly as printed.

Rules:
- Preserve the original line breaks and reading order, top to bottom
- Keep numbers, dates, currency symbols and punctuation exactly as printed
- Do not translate, summarize, correct or interpret anything
- Do not add any text before or after the transcription
- Do not use markdown code blocks`

// Gemini implements the Engine interface using Google Gemini
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a new Gemini engine
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)

	return &Gemini{
		client: client,
		model:  model,
	}, nil
}

// GeminiFactory returns an EngineFactory for the given credentials.
func GeminiFactory(apiKey, modelName string) EngineFactory {
	return func() (Engine, error) {
		return NewGemini(apiKey, modelName)
	}
}

// Recognize transcribes the text in img
func (g *Gemini) Recognize(ctx context.Context, img image.Image) (Recognition, error) {
	data, err := encodePNG(img)
	if err != nil {
		return Recognition{}, err
	}

	// genai.ImageData expects just the format suffix (e.g., "png")
	parts := []genai.Part{
		genai.ImageData("png", data),
		genai.Text(transcribePrompt),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return Recognition{}, fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Recognition{}, fmt.Errorf("no response from gemini")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	text := cleanTranscript(responseText.String())
	return Recognition{Text: text, Confidence: transcriptConfidence(text)}, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
