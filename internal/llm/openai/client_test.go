package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"intellidoc-backend/internal/llm"
)

func TestIsGPT5(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  bool
	}{
		{name: "gpt5", model: "gpt-5", want: true},
		{name: "gpt5 variant", model: "gpt-5-mini", want: true},
		{name: "gpt5 uppercase", model: " GPT-5o ", want: true},
		{name: "gpt4", model: "gpt-4o", want: false},
		{name: "llama", model: "llama-3.3-70b-versatile", want: false},
		{name: "empty", model: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isGPT5(tt.model); got != tt.want {
				t.Fatalf("isGPT5(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestNewClientDefaults(t *testing.T) {
	c, err := NewClient("groq", "key", "", "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.Model() != groqDefaultModel || c.baseURL != groqBaseURL {
		t.Fatalf("unexpected defaults: model=%s url=%s", c.Model(), c.baseURL)
	}
	if c.Provider() != ProviderGroq {
		t.Fatalf("unexpected provider %s", c.Provider())
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient("openai", " ", "", "")
	if !errors.Is(err, llm.ErrMissingCredential) {
		t.Fatalf("expected missing credential, got %v", err)
	}
	if _, err := NewClient("anthropic", "key", "", ""); err == nil {
		t.Fatalf("expected unsupported provider error")
	}
}

func TestCompleteSendsLimits(t *testing.T) {
	var got map[string]any
	var auth, path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		auth, path = r.Header.Get("Authorization"), r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  a summary  "}}],"usage":{"total_tokens":12}}`))
	}))
	defer server.Close()

	c, err := NewClient("groq", "test-key", "", server.URL+"/")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	out, err := c.Complete(context.Background(), llm.Request{Operation: llm.OpSummarize, Prompt: "hello", MaxTokens: 1024, Temperature: 0.3})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "a summary" {
		t.Fatalf("unexpected output %q", out)
	}
	if auth != "Bearer test-key" || path != "/chat/completions" {
		t.Fatalf("unexpected auth=%q path=%q", auth, path)
	}
	if got["model"] != groqDefaultModel || got["max_tokens"].(float64) != 1024 {
		t.Fatalf("unexpected body: %v", got)
	}
	if temp, ok := got["temperature"].(float64); !ok || temp < 0.29 || temp > 0.31 {
		t.Fatalf("expected temperature 0.3, got %v", got["temperature"])
	}
}

func TestCompleteOmitsTemperatureForGPT5(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	c, _ := NewClient("openai", "k", "gpt-5-mini", server.URL)
	if _, err := c.Complete(context.Background(), llm.Request{Prompt: "p", MaxTokens: 500, Temperature: 0.3}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, ok := got["temperature"]; ok {
		t.Fatalf("temperature should be omitted for gpt-5")
	}
	if got["max_completion_tokens"].(float64) != 500 {
		t.Fatalf("expected max_completion_tokens, got %v", got)
	}
}

func TestCompleteMapsErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "unauthorized", status: 401, body: `{"error":{"message":"bad key","type":"invalid_request_error","code":"invalid_api_key"}}`, want: llm.ErrInvalidCredential},
		{name: "rate limited", status: 429, body: `{"error":{"message":"slow down","type":"rate_limit_exceeded"}}`, want: llm.ErrRateLimited},
		{name: "quota", status: 429, body: `{"error":{"message":"no credits","type":"insufficient_quota","code":"insufficient_quota"}}`, want: llm.ErrQuotaExceeded},
		{name: "server", status: 503, body: `upstream down`, want: llm.ErrRemote},
		{name: "error in 200", status: 200, body: `{"error":{"message":"weird","type":"server_error"}}`, want: llm.ErrRemote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c, _ := NewClient("groq", "k", "", server.URL)
			_, err := c.Complete(context.Background(), llm.Request{Prompt: "p"})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCompleteEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"   "}}]}`))
	}))
	defer server.Close()

	c, _ := NewClient("groq", "k", "", server.URL)
	out, err := c.Complete(context.Background(), llm.Request{Prompt: "p"})
	if err != nil || out != "" {
		t.Fatalf("expected empty output without error, got %q %v", out, err)
	}
}
