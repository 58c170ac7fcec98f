// Package providers implements vision.Provider adapters for
// OpenAI-compatible vision APIs and a local Ollama daemon, each
// translating vendor-specific output into the canonical
// vision.Response shape.
package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vrtest-dev/vrtest/internal/vision"
)

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider talks to an OpenAI-compatible vision-capable chat
// completion endpoint.
type OpenAIProvider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	log        *zap.SugaredLogger
}

// NewOpenAIProvider constructs an adapter. apiKey must be non-empty;
// model defaults to "gpt-4o" when empty.
func NewOpenAIProvider(apiKey, model string, log *zap.SugaredLogger) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: openai api key is required", vision.ErrConfigInvalid)
	}
	if model == "" {
		model = "gpt-4o"
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &OpenAIProvider{
		apiKey:     apiKey,
		model:      model,
		baseURL:    openAIBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        log,
	}, nil
}

func (p *OpenAIProvider) Name() string         { return "openai" }
func (p *OpenAIProvider) Model() string        { return p.model }
func (p *OpenAIProvider) SupportsVision() bool { return true }

// IsAvailable performs no network probe; an API key configured at
// construction is treated as availability. Genuine outages surface
// as AnalyzeVisualDiff errors and trigger fallback.
func (p *OpenAIProvider) IsAvailable(_ context.Context) bool { return p.apiKey != "" }

type openAIChatRequest struct {
	Model          string              `json:"model"`
	Messages       []openAIChatMessage `json:"messages"`
	ResponseFormat openAIRespFormat    `json:"response_format"`
	MaxTokens      int                 `json:"max_tokens"`
}

type openAIRespFormat struct {
	Type string `json:"type"`
}

type openAIChatMessage struct {
	Role    string             `json:"role"`
	Content []openAIContentPart `json:"content"`
}

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// openAIVerdict is the JSON shape the prompt instructs the model to
// return inside the single assistant message.
type openAIVerdict struct {
	Severity    string   `json:"severity"`
	Confidence  float64  `json:"confidence"`
	Reasoning   string   `json:"reasoning"`
	Categories  []string `json:"categories"`
	Suggestions []string `json:"suggestions"`
}

const analysisPrompt = `Compare the baseline and current screenshots. Respond with JSON only: {"severity": "none|minor|moderate|breaking", "confidence": 0-1, "reasoning": string, "categories": ["layout"|"color"|"content"|"text"], "suggestions": [string]}.`

func (p *OpenAIProvider) AnalyzeVisualDiff(ctx context.Context, req vision.Request) (*vision.Response, error) {
	body := openAIChatRequest{
		Model: p.model,
		Messages: []openAIChatMessage{
			{
				Role: "user",
				Content: []openAIContentPart{
					{Type: "text", Text: analysisPrompt},
					{Type: "image_url", ImageURL: &openAIImageURL{URL: dataURL(req.BaselineImage)}},
					{Type: "image_url", ImageURL: &openAIImageURL{URL: dataURL(req.CurrentImage)}},
				},
			},
		},
		ResponseFormat: openAIRespFormat{Type: "json_object"},
		MaxTokens:      500,
	}

	raw, err := p.doRequest(ctx, "/chat/completions", body)
	if err != nil {
		return nil, err
	}

	var chatResp openAIChatResponse
	if err := json.Unmarshal(raw, &chatResp); err != nil || len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("%w: %v", vision.ErrProviderResponseMalformed, err)
	}

	var verdict openAIVerdict
	if err := json.Unmarshal([]byte(chatResp.Choices[0].Message.Content), &verdict); err != nil {
		return nil, fmt.Errorf("%w: %v", vision.ErrProviderResponseMalformed, err)
	}

	sev := vision.Severity(verdict.Severity)
	switch sev {
	case vision.SeverityNone, vision.SeverityMinor, vision.SeverityModerate, vision.SeverityBreaking:
	default:
		return nil, fmt.Errorf("%w: unknown severity %q", vision.ErrProviderResponseMalformed, verdict.Severity)
	}

	return &vision.Response{
		Severity:    sev,
		Confidence:  verdict.Confidence,
		Reasoning:   verdict.Reasoning,
		Categories:  verdict.Categories,
		Suggestions: verdict.Suggestions,
		Provider:    p.Name(),
		Model:       p.model,
	}, nil
}

func (p *OpenAIProvider) doRequest(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.log.Warnw("openai request failed", "error", err)
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

func dataURL(png []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(png)
}
