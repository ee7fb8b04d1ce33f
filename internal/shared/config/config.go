package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"intellidoc-backend/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string
	DatabaseURL     string

	ObjectStoreType string
	LocalStoreDir   string
	PublicBaseURL   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	GCSBucket       string
	GCSPrefix       string

	LLMProvider  string
	LLMModel     string
	LLMBaseURL   string
	GroqAPIKey   string
	OpenAIAPIKey string
	GeminiAPIKey string
	LLMCacheTTL  time.Duration
	RedisURL     string

	OCRProvider string
	OCRMaxPages int
	OCRDPI      int
	OCRTimeout  time.Duration
	OCRWorkers  int
	OCRMaxJobs  int

	SQSQueueURL string

	JWTSecret          string
	JWTTTL             time.Duration
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	UIRedirectURL      string
	ResetPasswordURL   string

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	MailFrom string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	for _, f := range []string{".env", "cmd/.env"} {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		telemetry.Warn("config.database_url_missing", map[string]any{"env": env})
	}

	return Config{
		Port:            getEnv("PORT", "5000"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173,http://localhost:5000")),
		DatabaseURL:     dbURL,

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		PublicBaseURL:   getEnv("PUBLIC_BASE_URL", "http://localhost:5000/files"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", "documents"),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
		GCSBucket:       getEnv("GCS_BUCKET", ""),
		GCSPrefix:       getEnv("GCS_PREFIX", "documents"),

		LLMProvider:  normalizeProvider(getEnv("LLM_PROVIDER", "groq")),
		LLMModel:     getEnv("LLM_MODEL", ""),
		LLMBaseURL:   getEnv("LLM_BASE_URL", ""),
		GroqAPIKey:   getEnv("GROQ_API_KEY", ""),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		LLMCacheTTL:  getDuration("LLM_CACHE_TTL", 24*time.Hour),
		RedisURL:     getEnv("REDIS_URL", ""),

		OCRProvider: normalizeOCRProvider(getEnv("OCR_PROVIDER", "none")),
		OCRMaxPages: getInt("OCR_MAX_PAGES", 10),
		OCRDPI:      getInt("OCR_DPI", 200),
		OCRTimeout:  getDuration("OCR_TIMEOUT", 2*time.Minute),
		OCRWorkers:  getInt("OCR_WORKERS", 2),
		OCRMaxJobs:  getInt("OCR_MAX_JOBS", 2),

		SQSQueueURL: getEnv("SQS_QUEUE_URL", ""),

		JWTSecret:          getEnv("JWT_SECRET", ""),
		JWTTTL:             getDuration("JWT_TTL", time.Hour),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
		UIRedirectURL:      getEnv("UI_REDIRECT_URL", ""),
		ResetPasswordURL:   getEnv("RESET_PASSWORD_URL", "http://localhost:5173/reset-password"),

		SMTPHost: getEnv("SMTP_HOST", ""),
		SMTPPort: getEnv("SMTP_PORT", "587"),
		SMTPUser: getEnv("SMTP_USER", ""),
		SMTPPass: getEnv("SMTP_PASS", ""),
		MailFrom: getEnv("MAIL_FROM", "Intellidoc Support <no-reply@intellidoc.local>"),
	}
}

// IsDevLike reports whether env permits in-memory fallbacks.
func IsDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local", "":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		telemetry.Warn("config.invalid_int", map[string]any{"key": key, "value": raw})
		return def
	}
	return val
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val <= 0 {
		telemetry.Warn("config.invalid_duration", map[string]any{"key": key, "value": raw})
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev", "":
		return "dev"
	default:
		// Unknown names get the strictest settings rather than dev fallbacks.
		telemetry.Warn("config.env_unknown", map[string]any{"env": raw, "using": "production"})
		return "production"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "gcs", "gcp":
		return "gcs"
	default:
		return "local"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "openai":
		return "openai"
	case "gemini", "google":
		return "gemini"
	case "none", "off":
		return "none"
	default:
		return "groq"
	}
}

func normalizeOCRProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "vision", "gcp", "google":
		return "vision"
	default:
		return "none"
	}
}
