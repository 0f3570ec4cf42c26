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

	"github.com/hibiken/asynq"

	"github.com/stackit-qa/stackit/cmd/stackit/cli"
	"github.com/stackit-qa/stackit/internal/app"
	"github.com/stackit-qa/stackit/internal/auth"
	"github.com/stackit-qa/stackit/internal/content"
	"github.com/stackit-qa/stackit/internal/moderation"
	"github.com/stackit-qa/stackit/internal/observability"
	"github.com/stackit-qa/stackit/internal/platform/cache"
	"github.com/stackit-qa/stackit/internal/platform/db"
	"github.com/stackit-qa/stackit/internal/rbac"
	"github.com/stackit-qa/stackit/internal/shared"
	"github.com/stackit-qa/stackit/internal/users"
	"github.com/stackit-qa/stackit/internal/view"
	"github.com/stackit-qa/stackit/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
		err := cli.RunJobs(ctx, jobsCLI, os.Args[2:], os.Stdout)
		_ = jobsCLI.Close()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	catalog, err := rbac.LoadCatalogFile(cfg.RBACCatalogFile)
	if err != nil {
		return fmt.Errorf("load rbac catalog: %w", err)
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, MaxConnLifetime: cfg.PGMaxConnLifetime})
	if err != nil {
		return err
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "stackit_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}
	metrics := observability.NewMetrics()

	auditLogger := shared.NewAuditLogger(dbpool)
	userRepo := users.NewCachedRepository(users.NewRepository(dbpool), redisClient, cfg.UserCacheTTL, logger)
	userService := users.NewService(userRepo, auditLogger, logger)

	rbacMiddleware := rbac.Middleware{Catalog: catalog, Users: userService, Logger: logger, Denials: metrics}

	authService := auth.NewService(userService, auth.NewRepository(dbpool), logger)
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		return fmt.Errorf("init job client: %w", err)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	contentService := content.NewService(content.NewRepository(dbpool), logger)
	moderationService := moderation.NewService(moderation.NewRepository(dbpool), contentService, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Templates:          templates,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		RBACMiddleware:     rbacMiddleware,
		Metrics:            metrics,
		AuthHandler:        authHandler,
		UsersHandler:       users.NewHandler(logger, userService, templates, csrfManager, rbacMiddleware),
		ContentHandler:     content.NewHandler(logger, contentService, rbacMiddleware),
		ModerationHandler:  moderation.NewHandler(logger, moderationService, templates, csrfManager, rbacMiddleware),
		PermissionsHandler: rbac.NewPermissionsHandler(logger, catalog, templates, csrfManager, rbacMiddleware),
		JobHandler:         jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
