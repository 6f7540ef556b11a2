package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	"SpeechCorpus/internal/config"
	"SpeechCorpus/internal/infrastructure/inference"
	"SpeechCorpus/internal/infrastructure/nlp"
	"SpeechCorpus/internal/infrastructure/notify"
	"SpeechCorpus/internal/infrastructure/server"
	"SpeechCorpus/internal/infrastructure/storage"
	"SpeechCorpus/internal/logging"
	"SpeechCorpus/internal/match"
	"SpeechCorpus/internal/ports"
	"SpeechCorpus/internal/textstats"
	"SpeechCorpus/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg     config.Config
	logger  *slog.Logger
	handler http.Handler
	db      *sql.DB
}

// New builds a runnable application instance. Matcher construction is the
// only fatal startup step besides the database connection: a broken pattern
// asset must fail fast, not per-request.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	matcher, err := match.New(cfg.Matcher.PatternsPath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("build matcher: %w", err)
	}

	repository := storage.NewPostgresRepository(db)
	nlpClient := nlp.NewClient(cfg.NLP.Endpoint, cfg.NLP.APIKey)
	inferenceClient := inference.NewClient(cfg.Inference.Endpoint, cfg.Inference.APIKey)

	var notifier ports.Notifier
	if cfg.Notifications.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.Notifications.WebhookURL)
	}

	ingestor := usecase.NewIngestor(usecase.IngestDeps{
		Repository: repository,
		Segmenter:  nlpClient,
		Matcher:    matcher,
		Stats:      textstats.NewCalculator(),
		RedLines:   inferenceClient,
		Embedder:   nlpClient,
		Sentiment:  inferenceClient,
		BatchSize:  cfg.Matcher.BatchSize,
		Exclusive:  cfg.Matcher.Exclusive(),
		Logger:     baseLogger.With("component", "ingestor"),
	})

	httpServer := server.New(ingestor, repository, nlpClient, notifier,
		baseLogger.With("component", "server"))

	return &Application{
		cfg:     cfg,
		logger:  baseLogger,
		handler: httpServer.Router(),
		db:      db,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down
// gracefully.
func (a *Application) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.cfg.Server.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
	}

	if err := a.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
