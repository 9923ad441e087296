package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/roleboard/roleboard/internal/app"
	"github.com/roleboard/roleboard/internal/auth"
	"github.com/roleboard/roleboard/internal/dashboard"
	"github.com/roleboard/roleboard/internal/observability"
	"github.com/roleboard/roleboard/internal/permissions"
	"github.com/roleboard/roleboard/internal/platform/cache"
	"github.com/roleboard/roleboard/internal/platform/db"
	"github.com/roleboard/roleboard/internal/rbac"
	"github.com/roleboard/roleboard/internal/roles"
	"github.com/roleboard/roleboard/internal/settings"
	"github.com/roleboard/roleboard/internal/shared"
	"github.com/roleboard/roleboard/internal/upstream"
	"github.com/roleboard/roleboard/internal/users"
	"github.com/roleboard/roleboard/internal/view"
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
	slog.SetDefault(logger)

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
		if err := db.EnsureAuditSchema(ctx, pool); err != nil {
			logger.Error("audit schema", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("audit trail enabled")
	}

	metrics := observability.NewMetrics()

	client, err := upstream.NewClient(upstream.Options{
		BaseURL:     cfg.APIURL,
		AppURL:      cfg.AppURL,
		Timeout:     cfg.APITimeout,
		CatalogTTL:  cfg.PermissionCacheTTL,
		CatalogSize: cfg.PermissionCacheSize,
		Logger:      logger,
		Observer:    metrics,
	})
	if err != nil {
		logger.Error("upstream client", slog.Any("error", err))
		os.Exit(1)
	}

	sessionManager := shared.NewSessionManager(redisClient, "roleboard_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	cookieStore := shared.NewCookieStore(cfg.IsProduction())
	auditLogger := shared.NewAuditLogger(pool, logger)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	authService := auth.NewService(client, cookieStore, sessionManager, csrfManager, auditLogger, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		Gate: rbac.Middleware{
			Store:      cookieStore,
			Classifier: rbac.DefaultClassifier(),
			Logger:     logger,
			Recorder:   metrics,
		},
		AuthHandler:        auth.NewHandler(logger, authService, templates, csrfManager),
		DashboardHandler:   dashboard.NewHandler(logger, client, templates, csrfManager),
		UsersHandler:       users.NewHandler(logger, users.NewService(client, auditLogger), templates, csrfManager),
		RolesHandler:       roles.NewHandler(logger, roles.NewService(client, auditLogger), templates, csrfManager),
		SettingsHandler:    settings.NewHandler(logger, settings.NewService(client, auditLogger), templates, csrfManager),
		PermissionsHandler: permissions.NewHandler(logger, client, templates, csrfManager),
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: cfg.AppReadTimeout,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("api", cfg.APIURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
