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

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/vitrine-shop/vitrine/internal/app"
	"github.com/vitrine-shop/vitrine/internal/audit"
	"github.com/vitrine-shop/vitrine/internal/auth"
	"github.com/vitrine-shop/vitrine/internal/observability"
	"github.com/vitrine-shop/vitrine/internal/platform/cache"
	"github.com/vitrine-shop/vitrine/internal/platform/db"
	"github.com/vitrine-shop/vitrine/internal/rbac"
	"github.com/vitrine-shop/vitrine/internal/roles"
	"github.com/vitrine-shop/vitrine/internal/shared"
	"github.com/vitrine-shop/vitrine/internal/storage"
	"github.com/vitrine-shop/vitrine/internal/users"
	"github.com/vitrine-shop/vitrine/jobs"
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
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("vitrine exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return err
	}
	defer dbpool.Close()

	applied, err := db.Migrate(ctx, dbpool)
	if err != nil {
		return err
	}
	if len(applied) > 0 {
		logger.Info("migrations applied", slog.Any("names", applied))
	}

	redisOpts := cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	redisClient, err := cache.New(ctx, redisOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "vitrine_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	metrics := observability.NewMetrics()

	usersRepo := users.NewRepository(dbpool)
	authorizer := rbac.NewAuthorizer(usersRepo, cfg.AdminEmail,
		rbac.WithLogger(logger),
		rbac.WithObserver(metrics),
	)

	var tokens *auth.TokenIssuer
	var verifier rbac.TokenVerifier
	if cfg.TokenSecret != "" {
		tokens, err = auth.NewTokenIssuer([]byte(cfg.TokenSecret), cfg.TokenIssuer, cfg.TokenTTL)
		if err != nil {
			return err
		}
		verifier = tokens
	}
	rbacMiddleware := rbac.Middleware{
		Authorizer: authorizer,
		Resolver:   rbac.NewResolver(verifier, logger),
		Logger:     logger,
	}

	var provider auth.IdentityProvider
	if cfg.OAuthEnabled() {
		google, err := auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.OAuthRedirectURL)
		if err != nil {
			return err
		}
		provider = google
	} else {
		logger.Warn("google sign-in disabled: client credentials missing")
	}
	authHandler := auth.NewHandler(auth.HandlerConfig{
		Logger:     logger,
		Service:    auth.NewService(auth.NewRepository(dbpool), cfg.AdminEmail, logger),
		Provider:   provider,
		Sessions:   sessionManager,
		CSRF:       csrfManager,
		Tokens:     tokens,
		RBAC:       rbacMiddleware,
		AfterLogin: "/admin",
	})

	asynqOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	jobClient := jobs.NewClient(asynqOpts, logger)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(asynqOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	usersService := users.NewService(usersRepo, authorizer, users.ServiceConfig{
		Audit:    shared.NewAuditLogger(dbpool),
		Notifier: jobClient,
		Logger:   logger,
	})

	var storageHandler *storage.Handler
	if cfg.StorageEnabled() {
		presigner, err := storage.NewPresigner(ctx, storage.Options{
			Bucket:          cfg.AWSBucketName,
			Region:          cfg.AWSRegion,
			Endpoint:        cfg.AWSEndpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return err
		}
		storageService := storage.NewService(presigner, storage.Config{
			Bucket: cfg.AWSBucketName,
			Region: cfg.AWSRegion,
			TTL:    cfg.PresignTTL,
			Logger: logger,
		})
		storageHandler = storage.NewHandler(logger, storageService, rbacMiddleware)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		RBACMiddleware: rbacMiddleware,
		Metrics:        metrics,
		AuthHandler:    authHandler,
		UsersHandler:   users.NewHandler(logger, usersService),
		RolesHandler:   roles.NewHandler(logger, roles.NewService(), rbacMiddleware),
		StorageHandler: storageHandler,
		AuditHandler:   audit.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool)), rbacMiddleware),
		JobHandler:     jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
