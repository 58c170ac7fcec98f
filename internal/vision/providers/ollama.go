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

// OllamaProvider talks to a locally running Ollama daemon serving a
// vision-capable model (llava, bakllava). It is the default head of
// the fallback chain: local, zero marginal cost, tried before any
// cloud provider.
type OllamaProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
	log        *zap.SugaredLogger
}

// NewOllamaProvider constructs an adapter against baseURL (e.g.
// "http://localhost:11434"). model defaults to "llava" when empty.
func NewOllamaProvider(baseURL, model string, log *zap.SugaredLogger) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llava"
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &OllamaProvider{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		log:        log,
	}
}

func (p *OllamaProvider) Name() string         { return "ollama" }
func (p *OllamaProvider) Model() string        { return p.model }
func (p *OllamaProvider) SupportsVision() bool { return true }

// IsAvailable probes the daemon's root endpoint; Ollama is frequently
// not running in CI environments, so unlike the cloud providers this
// adapter does a live reachability check rather than assuming yes.
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL, nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.log.Debugw("ollama unreachable", "error", err)
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

type ollamaGenerateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images"`
	Format string   `json:"format"`
	Stream bool     `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type ollamaVerdict struct {
	Severity    string   `json:"severity"`
	Confidence  float64  `json:"confidence"`
	Reasoning   string   `json:"reasoning"`
	Categories  []string `json:"categories"`
	Suggestions []string `json:"suggestions"`
}

func (p *OllamaProvider) AnalyzeVisualDiff(ctx context.Context, req vision.Request) (*vision.Response, error) {
	body := ollamaGenerateRequest{
		Model:  p.model,
		Prompt: analysisPrompt,
		Images: []string{base64.StdEncoding.EncodeToString(req.BaselineImage), base64.StdEncoding.EncodeToString(req.CurrentImage)},
		Format: "json",
		Stream: false,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ollama request failed with status %d: %s", resp.StatusCode, string(raw))
	}

	var genResp ollamaGenerateResponse
	if err := json.Unmarshal(raw, &genResp); err != nil {
		return nil, fmt.Errorf("%w: %v", vision.ErrProviderResponseMalformed, err)
	}

	var verdict ollamaVerdict
	if err := json.Unmarshal([]byte(genResp.Response), &verdict); err != nil {
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
