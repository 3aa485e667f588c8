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

	"github.com/planix/backend/internal/compliance"
	"github.com/planix/backend/internal/config"
	"github.com/planix/backend/internal/domain"
	"github.com/planix/backend/internal/export"
	"github.com/planix/backend/internal/generation"
	"github.com/planix/backend/internal/handler"
	"github.com/planix/backend/internal/jobqueue"
	"github.com/planix/backend/internal/logging"
	"github.com/planix/backend/internal/quota"
	"github.com/planix/backend/internal/repository"
	"github.com/planix/backend/internal/repository/memory"
	"github.com/planix/backend/internal/service"
	"github.com/planix/backend/internal/ws"
	"github.com/planix/backend/pkg/payment"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser := logging.Setup(cfg.LogLevel, cfg.LogFile)
	defer logCloser.Close()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler.ExposeInternalErrors(!cfg.Production())

	tiers := domain.DefaultTiers()
	if cfg.TiersFile != "" {
		t, err := domain.LoadTiers(cfg.TiersFile)
		if err != nil {
			return fmt.Errorf("tier table: %w", err)
		}
		tiers = t
	}

	// Storage
	var store repository.Store
	if cfg.DatabaseURL != "" {
		db, err := repository.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		if err := repository.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		store = repository.NewPostgres(db)
		logger.Info("database connected and migrated")
	} else {
		store = memory.New()
		logger.Warn("DATABASE_URL not set, using in-memory store (data is lost on restart)")
	}

	var (
		redisClient *redis.Client
		cache       repository.Cache
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		cache = repository.NewRedisCache(redisClient, "planix:")
		logger.Info("redis connected")
	} else {
		cache = memory.NewCache()
	}

	// Generation
	mode, err := compliance.ParseMode(cfg.ComplianceMode)
	if err != nil {
		return err
	}
	gateway := generation.NewGateway(generation.Config{
		APIKey:  cfg.DeepSeekAPIKey,
		BaseURL: cfg.DeepSeekBaseURL,
		Model:   cfg.DeepSeekModel,
		Timeout: cfg.GenerationTimeout,
		Retries: cfg.GenerationRetries,
	}, compliance.NewEvaluator(mode), logger)
	if !gateway.Configured() {
		logger.Warn("DEEPSEEK_API_KEY not set, floor plans use the canned template")
	}

	// Payments
	var payments payment.Gateway
	if cfg.StripeEnabled() {
		payments = payment.NewStripeGateway(payment.StripeConfig{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			Prices: map[string]string{
				domain.TierPro:        cfg.StripePricePro,
				domain.TierEnterprise: cfg.StripePriceEnterprise,
			},
			SuccessURL: cfg.AppURL + "/subscription?checkout=success",
			CancelURL:  cfg.AppURL + "/subscription?checkout=cancelled",
		})
		logger.Info("stripe checkout enabled")
	} else {
		payments = payment.NewMockGateway(cfg.AppURL, cfg.StripeWebhookSecret)
	}

	// Export artifacts
	var artifacts export.ArtifactStore
	s3cfg := export.S3Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		Bucket:    cfg.S3Bucket,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	}
	if s3cfg.Enabled() {
		s3store, err := export.NewS3Store(ctx, s3cfg)
		if err != nil {
			return fmt.Errorf("artifact store: %w", err)
		}
		artifacts = s3store
		logger.Info("export artifact store enabled", "bucket", cfg.S3Bucket)
	}

	// Services
	ledger := quota.NewLedger(store, tiers)
	referralSvc := service.NewReferralService(store, store, cache, cfg.AppURL, logger)
	authSvc := service.NewAuthService(cfg.JWTSecret, cfg.AdminEmail, cfg.AdminPassword, store, referralSvc, ledger, logger)
	if err := authSvc.SeedAdmin(ctx); err != nil {
		return fmt.Errorf("admin seed: %w", err)
	}
	subSvc := service.NewSubscriptionService(store, store, tiers, ledger, payments, logger)
	planSvc := service.NewFloorPlanService(store, ledger, gateway, artifacts, cfg.AppURL, cfg.GenerationTimeout, logger)
	demoSvc := service.NewDemoService(gateway, cfg.GenerationTimeout)
	reconciler := service.NewReconciler(planSvc, cfg.ReconcileInterval, cfg.StaleAfter, logger)

	var (
		queue        jobqueue.Queue
		queueBackend string
		queuePing    handler.Pinger
	)
	if redisClient != nil {
		queue = jobqueue.NewRedis(redisClient, planSvc.Process, jobqueue.RedisOptions{
			Workers:    cfg.Workers,
			StuckAfter: cfg.GenerationTimeout + cfg.StaleAfter,
		}, logger)
		queueBackend = "redis"
		queuePing = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	} else {
		queue = jobqueue.NewLocal(planSvc.Process, cfg.Workers, 0, logger)
		queueBackend = "local"
	}
	planSvc.SetQueue(queue)

	provider := "fallback"
	if gateway.Configured() {
		provider = "configured"
	}
	adminSvc := service.NewAdminService(store, store, reconciler, queueBackend, provider)

	// Background work is stopped after the HTTP server drains.
	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()
	queue.Start(workCtx)
	reconciler.Start(workCtx)

	r := newRouter(ctx, cfg, logger, routes{
		auth:         handler.NewAuthHandler(authSvc),
		plans:        handler.NewFloorPlanHandler(planSvc),
		demo:         handler.NewDemoHandler(demoSvc),
		subscription: handler.NewSubscriptionHandler(subSvc),
		referrals:    handler.NewReferralHandler(referralSvc),
		admin:        handler.NewAdminHandler(adminSvc, authSvc),
		health:       handler.NewHealthHandler(store, queuePing, gateway.Configured()),
		tiers:        handler.NewTiersHandler(tiers),
		status:       ws.NewPlanStatusHandler(authSvc, planSvc, logger),
		verifier:     authSvc,
	})

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// WriteTimeout must be 0 for WebSocket connections (they are long-lived)
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("planix backend listening", "addr", addr, "queue", queueBackend, "provider", provider)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}

	queue.Stop()
	cancelWork()
	return nil
}
