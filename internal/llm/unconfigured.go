package llm

import (
	"context"
	"errors"
)

// Unconfigured stands in for a provider whose API key is absent. It lets a
// dev server start while every LLM call reports MissingCredential.
type Unconfigured struct {
	ProviderName string
}

func (u Unconfigured) Provider() string { return u.ProviderName }
func (u Unconfigured) Model() string    { return "" }

func (u Unconfigured) Complete(context.Context, Request) (string, error) {
	return "", NewError(KindMissingCredential, u.ProviderName, errors.New("api key not configured"))
}
