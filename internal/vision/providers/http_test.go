package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vrtest-dev/vrtest/internal/vision"
)

func mustQuote(s string) string {
	raw, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	return string(raw)
}

func TestOpenAIProvider_AnalyzeVisualDiff_ParsesWellFormedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		verdict := openAIVerdict{Severity: "moderate", Confidence: 0.77, Reasoning: "layout shifted", Categories: []string{"layout"}}
		raw, _ := json.Marshal(verdict)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":` + mustQuote(string(raw)) + `}}]}`))
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider("sk-test", "gpt-4o", nil)
	require.NoError(t, err)
	p.baseURL = srv.URL

	resp, err := p.AnalyzeVisualDiff(context.Background(), vision.Request{BaselineImage: []byte("a"), CurrentImage: []byte("b")})
	require.NoError(t, err)
	require.Equal(t, vision.SeverityModerate, resp.Severity)
	require.InDelta(t, 0.77, resp.Confidence, 0.0001)
	require.Equal(t, "openai", resp.Provider)
}

func TestOpenAIProvider_AnalyzeVisualDiff_UnknownSeverityIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		verdict := openAIVerdict{Severity: "catastrophic"}
		raw, _ := json.Marshal(verdict)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":` + mustQuote(string(raw)) + `}}]}`))
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider("sk-test", "gpt-4o", nil)
	require.NoError(t, err)
	p.baseURL = srv.URL

	_, err = p.AnalyzeVisualDiff(context.Background(), vision.Request{BaselineImage: []byte("a"), CurrentImage: []byte("b")})
	require.ErrorIs(t, err, vision.ErrProviderResponseMalformed)
}

func TestOpenAIProvider_AnalyzeVisualDiff_HTTPErrorStatusFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider("sk-test", "gpt-4o", nil)
	require.NoError(t, err)
	p.baseURL = srv.URL

	_, err = p.AnalyzeVisualDiff(context.Background(), vision.Request{BaselineImage: []byte("a"), CurrentImage: []byte("b")})
	require.Error(t, err)
}

func TestOllamaProvider_IsAvailableFalseWhenUnreachable(t *testing.T) {
	p := NewOllamaProvider("http://127.0.0.1:1", "llava", nil)
	require.False(t, p.IsAvailable(context.Background()))
}

func TestOllamaProvider_AnalyzeVisualDiff_ParsesWellFormedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		verdict := ollamaVerdict{Severity: "none", Confidence: 0.99}
		raw, _ := json.Marshal(verdict)
		genResp := ollamaGenerateResponse{Response: string(raw), Done: true}
		_ = json.NewEncoder(w).Encode(genResp)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llava", nil)

	resp, err := p.AnalyzeVisualDiff(context.Background(), vision.Request{BaselineImage: []byte("a"), CurrentImage: []byte("b")})
	require.NoError(t, err)
	require.Equal(t, vision.SeverityNone, resp.Severity)
	require.Equal(t, "ollama", resp.Provider)
}
