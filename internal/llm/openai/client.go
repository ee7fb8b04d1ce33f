// Package openai talks to OpenAI-compatible chat completion APIs (OpenAI and
// Groq).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"intellidoc-backend/internal/llm"
	"intellidoc-backend/internal/shared/telemetry"
)

const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"

	groqBaseURL   = "https://api.groq.com/openai/v1"
	openAIBaseURL = "https://api.openai.com/v1"

	groqDefaultModel   = "llama-3.3-70b-versatile"
	openAIDefaultModel = "gpt-4o-mini"

	maxErrorBody = 2048
)

// Client implements llm.Completer using the chat completions endpoint.
type Client struct {
	provider   string
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a client. An empty model or baseURL selects the
// provider default; an empty apiKey fails with llm.ErrMissingCredential.
func NewClient(provider, apiKey, model, baseURL string) (*Client, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	var defModel, defURL, keyName string
	switch provider {
	case ProviderGroq:
		defModel, defURL, keyName = groqDefaultModel, groqBaseURL, "GROQ_API_KEY"
	case ProviderOpenAI:
		defModel, defURL, keyName = openAIDefaultModel, openAIBaseURL, "OPENAI_API_KEY"
	default:
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, llm.NewError(llm.KindMissingCredential, provider, fmt.Errorf("%s is required", keyName))
	}
	if strings.TrimSpace(model) == "" {
		model = defModel
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defURL
	}
	return &Client{
		provider: provider,
		apiKey:   apiKey,
		model:    strings.TrimSpace(model),
		baseURL:  strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeoutFromEnv(),
		},
	}, nil
}

func timeoutFromEnv() time.Duration {
	for _, key := range []string{"LLM_TIMEOUT_SECONDS", "OPENAI_TIMEOUT_SECONDS"} {
		if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				return time.Duration(parsed) * time.Second
			}
		}
	}
	return 120 * time.Second
}

func (c *Client) Provider() string { return c.provider }
func (c *Client) Model() string    { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	Temperature         *float32      `json:"temperature,omitempty"`
	MaxTokens           int           `json:"max_tokens,omitempty"`
	MaxCompletionTokens int           `json:"max_completion_tokens,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

// Complete sends req.Prompt as a single user message. An empty reply is
// returned as "" without error; the adapter decides what that means.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	body := chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: req.Prompt}},
	}
	if isGPT5(c.model) {
		// gpt-5 models reject temperature and max_tokens.
		body.MaxCompletionTokens = req.MaxTokens
	} else {
		temp := req.Temperature
		body.Temperature = &temp
		body.MaxTokens = req.MaxTokens
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return "", llm.NewError(llm.KindRemote, c.provider, fmt.Errorf("request timeout: %w", err))
		}
		return "", llm.NewError(llm.KindRemote, c.provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", llm.NewError(llm.KindRemote, c.provider, err)
	}

	var parsed chatResponse
	parseErr := json.Unmarshal(raw, &parsed)
	if resp.StatusCode >= 400 || parsed.Error != nil {
		return "", c.statusError(resp.StatusCode, parsed.Error, raw)
	}
	if parseErr != nil {
		return "", llm.NewError(llm.KindRemote, c.provider, fmt.Errorf("response parse: %w", parseErr))
	}
	if len(parsed.Choices) == 0 {
		return "", llm.NewError(llm.KindRemote, c.provider, errors.New("response missing choices"))
	}
	if parsed.Usage != nil {
		telemetry.Debug("llm.usage", map[string]any{
			"provider":          c.provider,
			"model":             c.model,
			"operation":         string(req.Operation),
			"prompt_tokens":     parsed.Usage.PromptTokens,
			"completion_tokens": parsed.Usage.CompletionTokens,
			"total_tokens":      parsed.Usage.TotalTokens,
		})
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func (c *Client) statusError(status int, apiErr *apiError, raw []byte) error {
	if status < 400 {
		status = http.StatusBadGateway
	}
	if apiErr == nil {
		msg := strings.TrimSpace(string(raw))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return llm.FromHTTPStatus(c.provider, status, "", errors.New(msg))
	}
	code := apiErr.Type
	if s, ok := apiErr.Code.(string); ok && s != "" {
		code = s
	}
	return llm.FromHTTPStatus(c.provider, status, code, fmt.Errorf("%s (%s)", apiErr.Message, apiErr.Type))
}

func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

var _ llm.Completer = (*Client)(nil)
