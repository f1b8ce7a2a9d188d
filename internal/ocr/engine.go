// Package ocr runs a local Tesseract pass as a fallback for when the hosted
// vision endpoint produces nothing, and scores how well two text extractions
// agree.
package ocr

import (
	"context"
	"strings"

	"github.com/arbovm/levenshtein"
	"github.com/otiai10/gosseract/v2"
)

// Engine extracts text from raw image bytes.
type Engine interface {
	ExtractText(ctx context.Context, imageData []byte) (string, error)
}

// TesseractEngine implements Engine over a local Tesseract installation.
type TesseractEngine struct {
	languages []string
}

// NewTesseractEngine creates the local OCR engine. Languages default to
// Portuguese plus English, matching the product's user base.
func NewTesseractEngine(languages ...string) *TesseractEngine {
	if len(languages) == 0 {
		languages = []string{"por", "eng"}
	}
	return &TesseractEngine{languages: languages}
}

// ExtractText runs Tesseract over the image bytes. The context is checked
// before the (non-cancellable) native call starts.
func (e *TesseractEngine) ExtractText(ctx context.Context, imageData []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.languages...); err != nil {
		return "", err
	}
	if err := client.SetImageFromBytes(imageData); err != nil {
		return "", err
	}

	text, err := client.Text()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// DefaultConfidence is stored when only one extraction source is available
// and there is nothing to cross-check against.
const DefaultConfidence = 0.5

// EstimateConfidence scores the agreement between the vision-extracted text
// and the local OCR text as 1 minus the normalized edit distance. Identical
// texts score 1.0; disjoint texts approach 0. With only one source present
// the default confidence applies.
func EstimateConfidence(visionText, localText string) float64 {
	a := normalizeForComparison(visionText)
	b := normalizeForComparison(localText)

	if a == "" || b == "" {
		return DefaultConfidence
	}

	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return DefaultConfidence
	}

	dist := levenshtein.Distance(a, b)
	score := 1.0 - float64(dist)/float64(maxLen)
	if score < 0 {
		return 0
	}
	return score
}

func normalizeForComparison(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
