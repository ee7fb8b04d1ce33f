package llm

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"intellidoc-backend/internal/shared/metrics"
	"intellidoc-backend/internal/shared/telemetry"
)

// NotFoundAnswer is returned by AskQuestion when the model has nothing to say.
const NotFoundAnswer = "I couldn't find that information in the document."

const minQuestionRunes = 3

// Adapter runs the document operations against a Completer.
type Adapter struct {
	completer Completer
	prompts   Prompts
}

// NewAdapter returns an adapter using the given prompts.
func NewAdapter(c Completer, p Prompts) *Adapter {
	return &Adapter{completer: c, prompts: p}
}

// Summarize returns a trimmed summary of text.
func (a *Adapter) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", NewError(KindEmptyInput, "", nil)
	}
	spec := a.prompts.Summarize
	out, err := a.complete(ctx, OpSummarize, spec, spec.Render(Truncate(text, spec.MaxInputChars), ""))
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", NewError(KindEmptyResponse, "", nil)
	}
	return out, nil
}

// AskQuestion answers question using only text.
func (a *Adapter) AskQuestion(ctx context.Context, text, question string) (string, error) {
	question = strings.TrimSpace(question)
	if utf8.RuneCountInString(question) < minQuestionRunes {
		return "", NewError(KindInvalidQuestion, "", nil)
	}
	if strings.TrimSpace(text) == "" {
		return "", NewError(KindEmptyInput, "", nil)
	}
	spec := a.prompts.Ask
	out, err := a.complete(ctx, OpAsk, spec, spec.Render(Truncate(text, spec.MaxInputChars), question))
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return NotFoundAnswer, nil
	}
	return out, nil
}

// ExtractKeyPoints returns up to MaxKeyPoints points from text.
func (a *Adapter) ExtractKeyPoints(ctx context.Context, text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, NewError(KindEmptyInput, "", nil)
	}
	spec := a.prompts.KeyPoints
	out, err := a.complete(ctx, OpKeyPoints, spec, spec.Render(Truncate(text, spec.MaxInputChars), ""))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out) == "" {
		return nil, NewError(KindEmptyResponse, "", nil)
	}
	return ParseKeyPoints(out), nil
}

func (a *Adapter) complete(ctx context.Context, op Operation, spec PromptSpec, prompt string) (string, error) {
	if a == nil || a.completer == nil {
		return "", NewError(KindMissingCredential, "", errors.New("no llm provider configured"))
	}
	provider, model := describe(a.completer)
	start := time.Now()
	metrics.IncLLMRequests()
	out, err := a.completer.Complete(ctx, Request{
		Operation:   op,
		Prompt:      prompt,
		MaxTokens:   spec.MaxTokens,
		Temperature: spec.Temperature,
	})
	elapsed := time.Since(start)
	metrics.ObserveLLMDurationMs(float64(elapsed.Milliseconds()))
	fields := map[string]any{
		"operation":    string(op),
		"provider":     provider,
		"model":        model,
		"prompt_runes": utf8.RuneCountInString(prompt),
		"duration_ms":  elapsed.Milliseconds(),
	}
	if err != nil {
		metrics.IncLLMFailed()
		var le *Error
		if !errors.As(err, &le) {
			err = &Error{Kind: KindRemote, Provider: provider, Err: err}
		}
		fields["error_kind"] = string(KindOf(err))
		fields["error"] = err.Error()
		telemetry.Warn("llm.request_failed", fields)
		return "", err
	}
	telemetry.Info("llm.request", fields)
	return out, nil
}
