package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/sumire/verdictrelay/internal/artifact"
	"github.com/sumire/verdictrelay/internal/async"
	"github.com/sumire/verdictrelay/internal/billing"
	"github.com/sumire/verdictrelay/internal/config"
	"github.com/sumire/verdictrelay/internal/handler"
	"github.com/sumire/verdictrelay/internal/manychat"
	"github.com/sumire/verdictrelay/internal/openai"
	"github.com/sumire/verdictrelay/internal/repository"
	"github.com/sumire/verdictrelay/internal/service"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()

	db, err := repository.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	slog.Info("database connected", "driver", repository.DriverFor(cfg.DatabaseURL))

	logger := slog.Default()
	jobRepo := repository.NewJobRepository(db)
	runner := async.NewRunner(logger)

	// Tasks do not survive a restart; jobs they owned would poll as processing forever.
	if cfg.StaleJobAfter > 0 {
		n, err := jobRepo.FailStale(ctx, time.Now().Add(-cfg.StaleJobAfter))
		if err != nil {
			return fmt.Errorf("fail stale jobs: %w", err)
		}
		if n > 0 {
			slog.Warn("stale jobs marked failed", "count", n, "older_than", cfg.StaleJobAfter)
		}
	}

	artifacts, staticDir, err := newArtifactStore(cfg)
	if err != nil {
		return err
	}

	ai := openai.NewClient(openai.Config{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		ChatModel:   cfg.OpenAIChatModel,
		ImageModel:  cfg.OpenAIImageModel,
		Temperature: cfg.OpenAITemperature,
		Timeout:     cfg.HTTPClientTimeout,
	}, logger)

	mc := manychat.NewClient(manychat.Config{
		APIKey:  cfg.ManyChatAPIKey,
		BaseURL: cfg.ManyChatBaseURL,
		Timeout: cfg.HTTPClientTimeout,
	}, logger)

	generationSvc := service.NewGenerationService(jobRepo, ai, ai, artifacts, runner, cfg.OpenAIImageSize, logger)
	ledgerSvc := service.NewLedgerService(mc, cfg.ManyChatCreditsFieldID, logger)
	notifier := service.NewNotifier(mc, logger)
	paymentSvc := service.NewPaymentService(
		billing.NewGateway(cfg.StripeSecretKey, nil),
		billing.NewVerifier(cfg.StripeWebhookSecret),
		ledgerSvc,
		notifier,
		runner,
		cfg.BaseURL,
		logger,
	)

	var limiter echo.MiddlewareFunc
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unreachable, rate limiting fails open", "addr", cfg.RedisAddr, "error", err)
		}
		limiter = handler.RateLimit(handler.RateLimitConfig{
			Counter: handler.NewRedisCounter(rdb),
			Limit:   cfg.RateLimit,
			Window:  cfg.RateLimitWindow,
		})
	}

	e := handler.NewRouter(handler.RouterConfig{
		Jobs:          handler.NewJobHandler(generationSvc),
		Payments:      handler.NewPaymentHandler(paymentSvc),
		StaticDir:     staticDir,
		SubmitLimiter: limiter,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port, "prod", cfg.Prod)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := shutdown(shutdownCtx, srv, runner); err != nil {
		return err
	}

	slog.Info("server stopped gracefully")
	return nil
}

type stopper interface {
	Shutdown(ctx context.Context) error
}

// shutdown stops the HTTP server and then drains background tasks. The drain
// runs even when the server did not stop cleanly.
func shutdown(ctx context.Context, srv, tasks stopper) error {
	var errs error
	if err := srv.Shutdown(ctx); err != nil {
		errs = fmt.Errorf("server shutdown: %w", err)
	}
	if err := tasks.Shutdown(ctx); err != nil {
		slog.Warn("background tasks still running at exit", "error", err)
		errs = errors.Join(errs, fmt.Errorf("drain tasks: %w", err))
	}
	return errs
}

// newArtifactStore picks the bucket store when configured, otherwise a local
// directory that is also served under /static.
func newArtifactStore(cfg config.Config) (service.ArtifactStore, string, error) {
	if cfg.ArtifactBucket != "" {
		store, err := artifact.NewMinioStore(artifact.MinioConfig{
			Endpoint:  cfg.ArtifactEndpoint,
			AccessKey: cfg.ArtifactAccessKey,
			SecretKey: cfg.ArtifactSecretKey,
			Bucket:    cfg.ArtifactBucket,
			UseSSL:    cfg.ArtifactUseSSL,
		})
		if err != nil {
			return nil, "", fmt.Errorf("artifact bucket: %w", err)
		}
		slog.Info("artifact store", "bucket", cfg.ArtifactBucket, "endpoint", cfg.ArtifactEndpoint)
		return store, "", nil
	}

	store, err := artifact.NewLocalStore(cfg.ArtifactDir, cfg.BaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("artifact dir: %w", err)
	}
	slog.Info("artifact store", "dir", store.Dir())
	return store, store.Dir(), nil
}
