package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	googleauth "intellidoc-backend/internal/auth"
	"intellidoc-backend/internal/documents"
	"intellidoc-backend/internal/extract"
	"intellidoc-backend/internal/llm"
	"intellidoc-backend/internal/llm/gemini"
	"intellidoc-backend/internal/llm/openai"
	"intellidoc-backend/internal/ocr"
	"intellidoc-backend/internal/queue"
	"intellidoc-backend/internal/services/health"
	"intellidoc-backend/internal/shared/auth"
	"intellidoc-backend/internal/shared/cache"
	"intellidoc-backend/internal/shared/config"
	"intellidoc-backend/internal/shared/mail"
	"intellidoc-backend/internal/shared/server"
	"intellidoc-backend/internal/shared/storage/db"
	"intellidoc-backend/internal/shared/storage/object"
	gcsstore "intellidoc-backend/internal/shared/storage/object/gcs"
	localstore "intellidoc-backend/internal/shared/storage/object/local"
	s3store "intellidoc-backend/internal/shared/storage/object/s3"
	"intellidoc-backend/internal/shared/telemetry"
	"intellidoc-backend/internal/users"
)

// App holds shared dependencies.
type App struct {
	Config           config.Config
	Router           *gin.Engine
	DB               *sql.DB
	Store            object.ObjectStore
	Queue            queue.Publisher
	OCR              extract.OCR
	Completer        llm.Completer
	Issuer           *auth.Issuer
	DocumentsRepo    documents.DocumentsRepo
	UsersRepo        users.Repo
	DocumentsService *documents.Service
	UsersService     *users.Service
	DocumentsHandler *documents.Handler
	UsersHandler     *users.Handler
	GoogleAuth       *googleauth.GoogleService
	Health           *health.Service

	closers []func() error
}

// Build prepares dependencies and the HTTP router for the API server.
func Build(cfg config.Config) (*App, error) {
	app, err := build(context.Background(), cfg, poolOptions(db.DefaultServerOptions()))
	if err != nil {
		return nil, err
	}
	filesDir := ""
	if local, ok := app.Store.(*localstore.Store); ok {
		filesDir = local.Dir()
	}
	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		Verifier:        app.Issuer,
		Health:          app.Health,
		DocumentHandler: app.DocumentsHandler,
		UserHandler:     app.UsersHandler,
		GoogleAuth:      app.GoogleAuth,
		FilesDir:        filesDir,
	})
	return app, nil
}

// BuildWorker prepares dependencies for the re-extraction worker. No router is built.
func BuildWorker(cfg config.Config) (*App, error) {
	return build(context.Background(), cfg, poolOptions(db.DefaultWorkerOptions()))
}

func poolOptions(def db.Options) db.Options {
	if db.InLambda() {
		return db.DefaultLambdaOptions()
	}
	return def
}

// Close releases clients opened during Build.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func build(ctx context.Context, cfg config.Config, dbOpts db.Options) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	app := &App{Config: cfg}

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL, cfg.Env)
	if err != nil {
		return nil, err
	}
	app.Issuer = issuer

	// A misconfigured LLM is caught before any connection is opened.
	completer, err := buildCompleter(ctx, app)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Completer = completer

	sqlDB, err := buildDB(ctx, cfg, dbOpts)
	if err != nil {
		return nil, err
	}
	if sqlDB != nil {
		app.DB = sqlDB
		app.closers = append(app.closers, sqlDB.Close)
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Store = store
	if c, ok := store.(interface{ Close() error }); ok {
		app.closers = append(app.closers, c.Close)
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Queue = queueClient

	app.OCR = buildOCR(ctx, app)

	prompts, err := llm.DefaultPrompts()
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	if app.DB != nil {
		app.DocumentsRepo = &documents.PGRepo{DB: app.DB}
		app.UsersRepo = &users.PGRepo{DB: app.DB}
	} else {
		app.DocumentsRepo = documents.NewMemoryRepo()
		app.UsersRepo = users.NewMemoryRepo()
	}

	app.DocumentsService = documents.NewService(
		app.Store,
		app.DocumentsRepo,
		extract.New(app.OCR),
		llm.NewAdapter(app.Completer, prompts),
		app.Queue,
	)
	app.UsersService = users.NewService(app.UsersRepo, app.Issuer, buildMailer(cfg), cfg.ResetPasswordURL)
	app.DocumentsHandler = documents.NewHandler(app.DocumentsService)
	app.UsersHandler = users.NewHandler(app.UsersService)
	app.GoogleAuth = googleauth.NewGoogleService(
		cfg.GoogleClientID,
		cfg.GoogleClientSecret,
		cfg.GoogleRedirectURL,
		cfg.UIRedirectURL,
		app.UsersService,
	)

	var pinger health.Pinger
	if app.DB != nil {
		pinger = app.DB
	}
	app.Health = health.NewService(pinger, app.Store.Provider(), cfg.LLMProvider, app.OCR != nil)

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":      cfg.Env,
		"database": app.DB != nil,
		"storage":  app.Store.Provider(),
		"queue":    app.Queue != nil,
		"ocr":      app.OCR != nil,
		"llm":      cfg.LLMProvider,
	})
	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config, opts db.Options) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database_memory", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(opts))
	if err != nil {
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database_memory", map[string]any{"reason": err.Error()})
			return nil, nil
		}
		return nil, err
	}

	// Production schemas are managed by cmd/migrate.
	if config.IsDevLike(cfg.Env) {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "gcs":
		if strings.TrimSpace(cfg.GCSBucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=gcs requires GCS_BUCKET")
		}
		return gcsstore.New(ctx, cfg.GCSBucket, cfg.GCSPrefix)
	default:
		return localstore.New(cfg.LocalStoreDir, cfg.PublicBaseURL), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Publisher, error) {
	if strings.TrimSpace(cfg.SQSQueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSPublisher(ctx, cfg.SQSQueueURL, cfg.AWSRegion)
}

// buildOCR returns nil when OCR is disabled or its dependencies are missing;
// extraction then reports scanned PDFs instead of recognizing them.
func buildOCR(ctx context.Context, app *App) extract.OCR {
	cfg := app.Config
	if cfg.OCRProvider != "vision" {
		return nil
	}
	raster := ocr.Poppler{}
	if err := raster.Ready(); err != nil {
		telemetry.Warn("bootstrap.ocr_disabled", map[string]any{"reason": err.Error()})
		return nil
	}
	engine, err := ocr.NewVisionEngine(ctx)
	if err != nil {
		telemetry.Warn("bootstrap.ocr_disabled", map[string]any{"reason": err.Error()})
		return nil
	}
	app.closers = append(app.closers, engine.Close)
	return ocr.NewPipeline(raster, engine, ocr.Options{
		MaxPages: cfg.OCRMaxPages,
		DPI:      cfg.OCRDPI,
		Timeout:  cfg.OCRTimeout,
		Workers:  cfg.OCRWorkers,
		MaxJobs:  cfg.OCRMaxJobs,
	})
}

// buildCompleter fails outside dev-like environments when the provider cannot
// be constructed. Dev falls back to llm.Unconfigured so the rest of the API
// stays usable.
func buildCompleter(ctx context.Context, app *App) (llm.Completer, error) {
	cfg := app.Config
	var (
		next llm.Completer
		err  error
	)
	switch cfg.LLMProvider {
	case "none":
		err = llm.NewError(llm.KindMissingCredential, "none", errors.New("LLM_PROVIDER=none"))
	case "gemini":
		next, err = gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.LLMModel)
	case "openai":
		next, err = openai.NewClient(openai.ProviderOpenAI, cfg.OpenAIAPIKey, cfg.LLMModel, cfg.LLMBaseURL)
	default:
		next, err = openai.NewClient(openai.ProviderGroq, cfg.GroqAPIKey, cfg.LLMModel, cfg.LLMBaseURL)
	}
	if err != nil {
		if !config.IsDevLike(cfg.Env) {
			return nil, fmt.Errorf("llm provider %s: %w", cfg.LLMProvider, err)
		}
		telemetry.Warn("bootstrap.llm_unconfigured", map[string]any{"provider": cfg.LLMProvider, "reason": err.Error()})
		return llm.Unconfigured{ProviderName: cfg.LLMProvider}, nil
	}

	var store cache.Cache = cache.NewMemory()
	if strings.TrimSpace(cfg.RedisURL) != "" {
		rdb, err := cache.NewRedis(ctx, cfg.RedisURL, "intellidoc:")
		if err != nil {
			telemetry.Warn("bootstrap.redis_unavailable", map[string]any{"error": err.Error()})
		} else {
			store = rdb
			app.closers = append(app.closers, rdb.Close)
		}
	}
	return &llm.CachedCompleter{Next: next, Cache: store, TTL: cfg.LLMCacheTTL}, nil
}

func buildMailer(cfg config.Config) mail.Mailer {
	if strings.TrimSpace(cfg.SMTPHost) == "" {
		return mail.Log{}
	}
	m, err := mail.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	if err != nil {
		telemetry.Warn("bootstrap.smtp_invalid", map[string]any{"error": err.Error()})
		return mail.Log{}
	}
	return m
}
