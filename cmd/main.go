package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"

	_ "stitchmart/docs"
	"stitchmart/internal/auth"
	"stitchmart/internal/caching"
	"stitchmart/internal/common"
	"stitchmart/internal/config"
	"stitchmart/internal/handlers"
	"stitchmart/internal/jobs/background"
	"stitchmart/internal/logging"
	"stitchmart/internal/metrics"
	"stitchmart/internal/middleware"
	"stitchmart/internal/payments"
	"stitchmart/internal/repositories"
	"stitchmart/internal/services"
	"stitchmart/internal/storage"
	"stitchmart/pkg/database"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.GeneratedSecret {
		logger.Warn("JWT_SECRET not set, using a generated secret; tokens will not survive a restart")
	}

	// Database
	pool, err := database.NewPool(ctx, cfg.Database.URL, logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	designRepo := repositories.NewDesignRepo(pool)
	categoryRepo := repositories.NewCategoryRepo(pool)
	userRepo := repositories.NewUserRepo(pool)
	transactionRepo := repositories.NewTransactionRepo(pool)

	// Cache
	var cacheSvc caching.CacheService
	if cfg.Cache.Enabled {
		cacheSvc = caching.NewRedisCacheService(cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := cacheSvc.Ping(pingCtx); err != nil {
			logger.Warn("cache unreachable, continuing without it until it recovers",
				zap.String("addr", cfg.Cache.Addr), zap.Error(err))
		}
		cancel()
	}

	// Asset storage
	var assets storage.AssetStore
	switch cfg.Assets.Backend {
	case "minio":
		assets, err = storage.NewMinioStore(cfg.Assets.MinioEndpoint, cfg.Assets.MinioAccessKey,
			cfg.Assets.MinioSecretKey, cfg.Assets.MinioBucket, cfg.Assets.MinioUseSSL, cfg.Assets.MinioPublicURL)
		if err != nil {
			return fmt.Errorf("minio: %w", err)
		}
	default:
		assets = storage.NewLocalStore(cfg.Assets.UploadDir, cfg.Assets.URLPrefix)
	}

	collector := metrics.NewCollector("stitchmart")

	// Authentication: locally issued tokens, plus an external JWKS issuer when configured
	issuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	verifiers := auth.Chain{issuer}
	if cfg.Auth.JWKSURL != "" {
		jwks, err := auth.NewJWKSVerifier(ctx, cfg.Auth.JWKSURL, logger)
		if err != nil {
			return fmt.Errorf("jwks: %w", err)
		}
		defer jwks.Close()
		verifiers = append(verifiers, jwks)
	}

	paypal := payments.NewPayPalClient(payments.PayPalConfig{
		BaseURL:      payments.BaseURL(cfg.PayPal.Mode),
		ClientID:     cfg.PayPal.ClientID,
		ClientSecret: cfg.PayPal.ClientSecret,
		ReturnURL:    cfg.PayPal.ReturnURL,
		CancelURL:    cfg.PayPal.CancelURL,
	}, logger)

	// Services
	querySvc := services.NewDesignQueryService(designRepo, categoryRepo, cacheSvc, cfg.Cache.TTL, collector, logger)
	ingestor := services.NewAssetIngestor(assets, cfg.Assets.ThumbnailSize, collector, logger)
	designSvc := services.NewDesignService(designRepo, querySvc, ingestor, cacheSvc, collector, logger)
	categorySvc := services.NewCategoryService(categoryRepo, cacheSvc, cfg.Cache.TTL, logger)
	userSvc := services.NewUserService(userRepo, designRepo, issuer, logger)
	transactionSvc := services.NewTransactionService(transactionRepo, designRepo, paypal, cacheSvc, collector, logger)
	dashboardSvc := services.NewDashboardService(userRepo, designRepo, transactionRepo)

	router := &handlers.Router{
		Designs:    handlers.NewDesignHandlers(querySvc, designSvc, logger),
		Categories: handlers.NewCategoryHandlers(categorySvc),
		Auth:       handlers.NewAuthHandlers(userSvc),
		Users:      handlers.NewUserHandlers(userSvc, transactionSvc),
		Payments:   handlers.NewPaymentHandlers(transactionSvc),
		Dashboard:  handlers.NewDashboardHandlers(dashboardSvc),
		Health:     handlers.NewHealthHandlers(pool, cacheSvc, version),
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = common.NewHTTPErrorHandler(logger)
	e.Validator = common.NewRequestValidator()

	// Global middleware
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.Metrics(collector))
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.BodyLimit(fmt.Sprintf("%dM", cfg.Assets.MaxUploadMB)))
	e.Use(middleware.APIVersion(version))

	router.Register(e, handlers.Guards{
		Authn: middleware.RequireAuth(verifiers),
		Admin: middleware.RequireAdmin(userRepo, logger),
		Audit: middleware.AuditMutations(logger),
	})
	e.GET("/metrics", echo.WrapHandler(collector.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)
	if cfg.Assets.Backend == "local" {
		e.Static(cfg.Assets.URLPrefix, cfg.Assets.UploadDir)
	}

	scheduler, err := background.NewJobScheduler(designSvc, background.Config{
		SweepInterval: cfg.Jobs.OrphanSweepInterval,
		MaxAge:        cfg.Jobs.OrphanMaxAge,
	}, logger)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			logger.Warn("scheduler shutdown", zap.Error(err))
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("stitchmart server starting",
			zap.String("version", version),
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.String("assets", cfg.Assets.Backend),
			zap.Bool("cache", cfg.Cache.Enabled))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
