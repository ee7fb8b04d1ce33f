package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an LLM failure.
type Kind string

const (
	KindMissingCredential Kind = "missing_credential"
	KindInvalidCredential Kind = "invalid_credential"
	KindRateLimited       Kind = "rate_limited"
	KindQuotaExceeded     Kind = "quota_exceeded"
	KindRemote            Kind = "remote_service_error"
	KindEmptyInput        Kind = "empty_input"
	KindInvalidQuestion   Kind = "invalid_question"
	KindEmptyResponse     Kind = "empty_response"
)

var (
	ErrMissingCredential = errors.New("llm credential missing")
	ErrInvalidCredential = errors.New("llm credential rejected")
	ErrRateLimited       = errors.New("llm rate limited")
	ErrQuotaExceeded     = errors.New("llm quota exceeded")
	ErrRemote            = errors.New("llm remote service error")
	ErrEmptyInput        = errors.New("text is empty")
	ErrInvalidQuestion   = errors.New("question must be at least 3 characters")
	ErrEmptyResponse     = errors.New("llm returned an empty response")
)

var sentinels = map[Kind]error{
	KindMissingCredential: ErrMissingCredential,
	KindInvalidCredential: ErrInvalidCredential,
	KindRateLimited:       ErrRateLimited,
	KindQuotaExceeded:     ErrQuotaExceeded,
	KindRemote:            ErrRemote,
	KindEmptyInput:        ErrEmptyInput,
	KindInvalidQuestion:   ErrInvalidQuestion,
	KindEmptyResponse:     ErrEmptyResponse,
}

// Error is returned by the adapter and provider clients. errors.Is matches it
// against the sentinel for its Kind.
type Error struct {
	Kind     Kind
	Provider string
	Status   int
	Err      error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if s, ok := sentinels[e.Kind]; ok {
		msg = s.Error()
	}
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && target == s
}

// NewError builds an *Error.
func NewError(kind Kind, provider string, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Err: err}
}

// KindOf returns the kind of err, or "" when err is not an LLM error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// FromHTTPStatus maps a provider HTTP failure to an *Error. code is the
// provider's structured error code or type, if any.
func FromHTTPStatus(provider string, status int, code string, err error) *Error {
	kind := KindRemote
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindInvalidCredential
	case status == http.StatusTooManyRequests && code == "insufficient_quota":
		kind = KindQuotaExceeded
	case status == http.StatusTooManyRequests:
		kind = KindRateLimited
	case code == "insufficient_quota":
		kind = KindQuotaExceeded
	}
	return &Error{Kind: kind, Provider: provider, Status: status, Err: err}
}
