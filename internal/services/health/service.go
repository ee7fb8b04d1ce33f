package health

import (
	"context"
	"time"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	Message        = "Intellidoc API is running"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Report is the health payload.
type Report struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// Service encapsulates health-related checks.
type Service struct {
	DB          Pinger
	Storage     string
	LLMProvider string
	OCREnabled  bool
	Timeout     time.Duration
}

// NewService constructs a new health service. db may be nil when running on
// in-memory repositories.
func NewService(db Pinger, storage, llmProvider string, ocrEnabled bool) *Service {
	return &Service{DB: db, Storage: storage, LLMProvider: llmProvider, OCREnabled: ocrEnabled, Timeout: 2 * time.Second}
}

// Liveness returns the static payload served at /api-health.
func (s *Service) Liveness() Report {
	return Report{Status: StatusOK, Message: Message}
}

// Status checks dependencies and reports the configured backends.
func (s *Service) Status(ctx context.Context) Report {
	report := Report{Status: StatusOK, Message: Message, Checks: map[string]string{
		"storage": s.Storage,
		"llm":     s.LLMProvider,
		"ocr":     "disabled",
	}}
	if s.OCREnabled {
		report.Checks["ocr"] = "enabled"
	}
	if s.DB == nil {
		report.Checks["database"] = "memory"
		return report
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.DB.PingContext(pingCtx); err != nil {
		report.Status = StatusDegraded
		report.Checks["database"] = "unreachable"
		return report
	}
	report.Checks["database"] = "ok"
	return report
}
