// Package vision talks to the hosted chat-completion endpoint used for both
// image description (OCR + visual description) and text generation.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "go-image-transcriber/internal/errors"
)

// Section labels the model is instructed to emit. Downstream consumers rely
// on these exact markers.
const (
	SectionExtractedText = "=== TEXTO EXTRAÍDO ==="
	SectionVisualDesc    = "=== DESCRIÇÃO VISUAL ==="
	SectionContext       = "=== CONTEXTO ==="
)

const describeInstructions = `Analise a imagem e responda em três seções, exatamente com estes títulos:

` + SectionExtractedText + `
Transcreva todo o texto visível na imagem, preservando a ordem de leitura. Escreva "nenhum texto" se não houver.

` + SectionVisualDesc + `
Descreva objetivamente os elementos visuais: objetos, pessoas, cores e composição.

` + SectionContext + `
Explique o provável contexto ou propósito da imagem.`

const generateInstructions = `Com base na descrição abaixo, produza uma resposta final em português, organizada nas mesmas três seções (%s, %s, %s), revisando o texto extraído e completando a interpretação.

Descrição:
%s`

// Describer is the subset used by the orchestrator's describe step.
type Describer interface {
	DescribeImage(ctx context.Context, imageData []byte, mimeType, colorSummary string) (string, error)
}

// Generator is the subset used by the orchestrator's generate step.
type Generator interface {
	GenerateResponse(ctx context.Context, description string) (string, error)
}

// Client implements Describer and Generator over one chat-completion endpoint.
type Client struct {
	endpoint    string
	apiKey      string
	visionModel string
	textModel   string
	httpClient  *http.Client
}

// NewClient creates a vision/text client. The per-call deadline comes from
// the caller's context; the HTTP timeout is a hard backstop.
func NewClient(endpoint, apiKey, visionModel, textModel string, timeout time.Duration) *Client {
	return &Client{
		endpoint:    endpoint,
		apiKey:      apiKey,
		visionModel: visionModel,
		textModel:   textModel,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []json.RawMessage `json:"choices"`
}

// DescribeImage sends the image as an embedded data URL and asks for the
// three-section answer. The local color summary, when present, is folded into
// the prompt so the model can ground its visual description.
func (c *Client) DescribeImage(ctx context.Context, imageData []byte, mimeType, colorSummary string) (string, error) {
	prompt := describeInstructions
	if colorSummary != "" {
		prompt += "\n\nAnálise local de cores: " + colorSummary
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(imageData))
	req := chatRequest{
		Model: c.visionModel,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
				},
			},
		},
	}
	return c.complete(ctx, req)
}

// GenerateResponse feeds a prior description back through the text model to
// produce the final structured answer.
func (c *Client) GenerateResponse(ctx context.Context, description string) (string, error) {
	req := chatRequest{
		Model: c.textModel,
		Messages: []chatMessage{
			{
				Role:    "user",
				Content: fmt.Sprintf(generateInstructions, SectionExtractedText, SectionVisualDesc, SectionContext, description),
			},
		},
	}
	return c.complete(ctx, req)
}

func (c *Client) complete(ctx context.Context, payload chatRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", apperrors.NewInternalError("failed to encode model request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", apperrors.NewInternalError("failed to build model request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperrors.NewUpstreamError("model call failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", apperrors.NewUpstreamError(
			fmt.Sprintf("model endpoint returned status %d: %s", resp.StatusCode, string(snippet)), nil)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", apperrors.NewDecodeError("malformed model response", err)
	}
	if len(decoded.Choices) == 0 {
		return "", apperrors.NewDecodeError("model response has no choices", nil)
	}
	return extractChoiceContent(decoded.Choices[0])
}

// extractChoiceContent resolves the first choice through the documented
// fallback chain: string | message.content | content | text | response |
// stringified object. Empty content at the end of the chain is an error.
func extractChoiceContent(choice json.RawMessage) (string, error) {
	var asString string
	if err := json.Unmarshal(choice, &asString); err == nil {
		if strings.TrimSpace(asString) == "" {
			return "", apperrors.NewDecodeError("model returned empty content", nil)
		}
		return asString, nil
	}

	var asObject struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Content  string `json:"content"`
		Text     string `json:"text"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(choice, &asObject); err == nil {
		for _, candidate := range []string{asObject.Message.Content, asObject.Content, asObject.Text, asObject.Response} {
			if strings.TrimSpace(candidate) != "" {
				return candidate, nil
			}
		}
	}

	// Last resort: the raw JSON itself, as long as it is not empty.
	raw := strings.TrimSpace(string(choice))
	if raw == "" || raw == "{}" || raw == "null" {
		return "", apperrors.NewDecodeError("model returned empty content", nil)
	}
	return raw, nil
}
