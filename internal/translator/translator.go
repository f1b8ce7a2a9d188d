package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	apperrors "go-image-transcriber/internal/errors"
	"go-image-transcriber/internal/logger"
	"go-image-transcriber/internal/textnorm"

	"github.com/abadojack/whatlanggo"
	"github.com/sirupsen/logrus"
)

// Translator converts text into the target language.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// HTTPTranslator talks to the external translation endpoint one sentence
// chunk at a time.
type HTTPTranslator struct {
	endpoint string
	client   *http.Client
}

// NewHTTPTranslator creates a translator against the given endpoint.
func NewHTTPTranslator(endpoint string, timeout time.Duration) *HTTPTranslator {
	return &HTTPTranslator{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Sentence-like runs terminated by .!? plus a trailing partial chunk.
var chunkRe = regexp.MustCompile(`[^.!?]+[.!?]+|[^.!?]+`)

var (
	spaceBeforePunctRe = regexp.MustCompile(`\s+([.,;:!?])`)
	missingSpaceRe     = regexp.MustCompile(`([.!?])(\p{Lu})`)
)

type translationRequest struct {
	Texts []string `json:"texts"`
	To    []string `json:"to"`
	From  string   `json:"from"`
}

// The endpoint answers in one of two shapes; both are tried in order.
type translationResponse struct {
	Translations json.RawMessage `json:"translations"`
}

type translationEntry struct {
	Translated []string `json:"translated"`
}

// Translate splits the text into punctuation-bounded chunks, translates each
// through the external endpoint and reassembles the result. The reassembled
// text is re-validated against the lexical heuristics; a wrong-language
// result is an error, never silently returned. Any chunk failure aborts the
// whole translation.
func (t *HTTPTranslator) Translate(ctx context.Context, text, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", apperrors.NewValidationError("translation input is empty", nil)
	}

	source := detectSourceLanguage(text)
	chunks := chunkRe.FindAllString(text, -1)

	translated := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}

		out, err := t.translateChunk(ctx, chunk, targetLang, source)
		if err != nil {
			return "", err
		}
		translated = append(translated, restorePunctuation(chunk, out))
	}

	result := normalizeSpacing(strings.Join(translated, " "))

	if !validForTarget(result, targetLang) {
		logger.WithFields(logrus.Fields{
			"target": targetLang,
			"chunks": len(chunks),
		}).Warn("Translated text failed target-language validation")
		return "", apperrors.NewTranslationError(
			fmt.Sprintf("translation did not produce valid %s text", targetLang), nil)
	}
	return result, nil
}

func (t *HTTPTranslator) translateChunk(ctx context.Context, chunk, targetLang, source string) (string, error) {
	payload, err := json.Marshal(translationRequest{
		Texts: []string{chunk},
		To:    []string{targetLang},
		From:  source,
	})
	if err != nil {
		return "", apperrors.NewInternalError("failed to encode translation request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", apperrors.NewInternalError("failed to build translation request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", apperrors.NewTranslationError("translation call failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", apperrors.NewTranslationError(
			fmt.Sprintf("translation endpoint returned status %d: %s", resp.StatusCode, string(body)), nil)
	}

	var decoded translationResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", apperrors.NewDecodeError("malformed translation response", err)
	}
	return extractTranslation(decoded.Translations)
}

// extractTranslation handles both documented response shapes:
// [{"translated": ["..."]}] and ["..."]. Anything else is a decode error.
func extractTranslation(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", apperrors.NewDecodeError("translation response has no translations field", nil)
	}

	var entries []translationEntry
	if err := json.Unmarshal(raw, &entries); err == nil && len(entries) > 0 && len(entries[0].Translated) > 0 {
		return entries[0].Translated[0], nil
	}

	var plain []string
	if err := json.Unmarshal(raw, &plain); err == nil && len(plain) > 0 {
		return plain[0], nil
	}

	return "", apperrors.NewDecodeError("unrecognized translation response shape", nil)
}

// restorePunctuation re-appends the source chunk's terminal punctuation when
// the endpoint dropped it.
func restorePunctuation(source, translated string) string {
	translated = strings.TrimSpace(translated)
	source = strings.TrimSpace(source)
	if translated == "" || source == "" {
		return translated
	}

	last := source[len(source)-1]
	if last != '.' && last != '!' && last != '?' {
		return translated
	}
	end := translated[len(translated)-1]
	if end == '.' || end == '!' || end == '?' {
		return translated
	}
	return translated + string(last)
}

func normalizeSpacing(text string) string {
	text = spaceBeforePunctRe.ReplaceAllString(text, "$1")
	text = missingSpaceRe.ReplaceAllString(text, "$1 $2")
	return strings.TrimSpace(text)
}

func validForTarget(text, targetLang string) bool {
	switch targetLang {
	case "pt":
		return textnorm.LooksLikePortuguese(text)
	case "en":
		return textnorm.LooksLikeEnglish(text)
	default:
		// No heuristic for other targets; accept as-is.
		return strings.TrimSpace(text) != ""
	}
}

func detectSourceLanguage(text string) string {
	info := whatlanggo.Detect(text)
	if code := info.Lang.Iso6391(); code != "" {
		return code
	}
	return "auto"
}
