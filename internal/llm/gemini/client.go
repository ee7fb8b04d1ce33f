// Package gemini implements llm.Completer on the Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"intellidoc-backend/internal/llm"
)

const (
	Provider     = "gemini"
	DefaultModel = "gemini-2.0-flash"
)

type generateFunc func(ctx context.Context, model, prompt string, cfg *genai.GenerateContentConfig) (string, error)

// Client calls Gemini through the Gemini API backend.
type Client struct {
	model    string
	generate generateFunc
}

// NewClient builds a client. An empty apiKey fails with llm.ErrMissingCredential.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, llm.NewError(llm.KindMissingCredential, Provider, errors.New("GEMINI_API_KEY is required"))
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: client init failed: %w", err)
	}
	return &Client{
		model: strings.TrimSpace(model),
		generate: func(ctx context.Context, model, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
			resp, err := gc.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
			if err != nil {
				return "", err
			}
			return resp.Text(), nil
		},
	}, nil
}

func (c *Client) Provider() string { return Provider }
func (c *Client) Model() string    { return c.model }

func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	out, err := c.generate(ctx, c.model, req.Prompt, cfg)
	if err != nil {
		return "", mapError(err)
	}
	return strings.TrimSpace(out), nil
}

func mapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return fromAPIError(apiErr, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return fromAPIError(*apiErrPtr, err)
	}
	return llm.NewError(llm.KindRemote, Provider, err)
}

const (
	errorInfoType    = "type.googleapis.com/google.rpc.ErrorInfo"
	quotaFailureType = "type.googleapis.com/google.rpc.QuotaFailure"
)

// fromAPIError classifies by the structured google.rpc details first. The
// message text is consulted only when the response carries no details.
func fromAPIError(apiErr genai.APIError, err error) error {
	credential, quota, structured := classifyDetails(apiErr.Details)
	if !structured {
		msg := strings.ToLower(apiErr.Message)
		credential = apiErr.Status == "INVALID_ARGUMENT" && strings.Contains(msg, "api key")
		quota = apiErr.Status == "RESOURCE_EXHAUSTED" && strings.Contains(msg, "quota")
	}
	if credential {
		return &llm.Error{Kind: llm.KindInvalidCredential, Provider: Provider, Status: apiErr.Code, Err: err}
	}
	code := ""
	if quota {
		code = "insufficient_quota"
	}
	return llm.FromHTTPStatus(Provider, apiErr.Code, code, err)
}

// classifyDetails reports whether the details name a key problem or an
// exhausted daily or billing quota. structured is false when no known
// detail type is present.
func classifyDetails(details []map[string]any) (credential, quota, structured bool) {
	for _, d := range details {
		switch d["@type"] {
		case errorInfoType:
			structured = true
			reason, _ := d["reason"].(string)
			switch reason {
			case "API_KEY_INVALID", "API_KEY_EXPIRED", "API_KEY_SERVICE_BLOCKED", "ACCESS_TOKEN_EXPIRED":
				credential = true
			case "BILLING_DISABLED", "INSUFFICIENT_QUOTA":
				quota = true
			}
		case quotaFailureType:
			structured = true
			violations, _ := d["violations"].([]any)
			for _, v := range violations {
				vm, _ := v.(map[string]any)
				quotaID, _ := vm["quotaId"].(string)
				// Per-minute limits refill; per-day limits do not within a request's lifetime.
				if strings.Contains(quotaID, "PerDay") {
					quota = true
				}
			}
		}
	}
	return credential, quota, structured
}

var _ llm.Completer = (*Client)(nil)
