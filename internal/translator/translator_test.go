package translator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "go-image-transcriber/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTranslator(t *testing.T, handler http.HandlerFunc) (*HTTPTranslator, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewHTTPTranslator(server.URL, 5*time.Second), server
}

// fixed PT answer regardless of input chunk; re-validation must pass.
func respondWith(t *testing.T, text string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req translationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Texts, 1)
		require.NotEmpty(t, req.To)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"translations": []map[string]interface{}{
				{"translated": []string{text}},
			},
		})
	}
}

func TestTranslate_EmptyInputFailsBeforeNetwork(t *testing.T) {
	calls := 0
	tr, _ := newTestTranslator(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
	})

	_, err := tr.Translate(context.Background(), "   ", "pt")

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Equal(t, 0, calls, "no network call expected for empty input")
}

func TestTranslate_PreservesTerminalPunctuation(t *testing.T) {
	// Endpoint drops the terminal punctuation; the adapter restores it.
	tr, _ := newTestTranslator(t, respondWith(t, "o texto da imagem foi traduzido"))

	out, err := tr.Translate(context.Background(), "The image text was translated!", "pt")

	require.NoError(t, err)
	assert.Equal(t, "o texto da imagem foi traduzido!", out)
}

func TestTranslate_MultipleChunksReassembled(t *testing.T) {
	chunks := []string{}
	tr, _ := newTestTranslator(t, func(w http.ResponseWriter, r *http.Request) {
		var req translationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		chunks = append(chunks, req.Texts[0])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"translations": []string{"uma frase do documento."},
		})
	})

	out, err := tr.Translate(context.Background(), "First sentence. Second one! A trailing bit", "pt")

	require.NoError(t, err)
	assert.Len(t, chunks, 3, "one call per chunk")
	assert.Equal(t, "uma frase do documento. uma frase do documento. uma frase do documento.", out)
}

func TestTranslate_ChunkFailureAbortsWhole(t *testing.T) {
	calls := 0
	tr, _ := newTestTranslator(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"translations": []string{"uma frase do documento."},
		})
	})

	_, err := tr.Translate(context.Background(), "One. Two. Three.", "pt")

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTranslation))
	assert.Equal(t, 2, calls, "no further chunks after a failure")
}

func TestTranslate_UnrecognizedShapeIsDecodeError(t *testing.T) {
	tr, _ := newTestTranslator(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"translations": {"nested": "wrong"}}`))
	})

	_, err := tr.Translate(context.Background(), "Some text to translate.", "pt")

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDecode))
}

func TestTranslate_WrongLanguageResultRejected(t *testing.T) {
	// Endpoint answers gibberish that passes no heuristic for "pt".
	tr, _ := newTestTranslator(t, respondWith(t, "zzkw qqrty plmnb"))

	_, err := tr.Translate(context.Background(), "Translate this sentence.", "pt")

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTranslation))
}

func TestExtractTranslation_BothShapes(t *testing.T) {
	out, err := extractTranslation(json.RawMessage(`[{"translated":["olá"]}]`))
	require.NoError(t, err)
	assert.Equal(t, "olá", out)

	out, err = extractTranslation(json.RawMessage(`["olá"]`))
	require.NoError(t, err)
	assert.Equal(t, "olá", out)

	_, err = extractTranslation(json.RawMessage(`{"x":1}`))
	require.Error(t, err)
}

func TestNormalizeSpacing(t *testing.T) {
	assert.Equal(t, "Primeira frase. Segunda frase!", normalizeSpacing("Primeira frase .Segunda frase !"))
}
