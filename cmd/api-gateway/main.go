package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/campusconnect-api/api/swagger"
	"github.com/noah-isme/campusconnect-api/internal/handler"
	"github.com/noah-isme/campusconnect-api/internal/middleware"
	"github.com/noah-isme/campusconnect-api/internal/repository"
	"github.com/noah-isme/campusconnect-api/internal/router"
	"github.com/noah-isme/campusconnect-api/internal/service"
	"github.com/noah-isme/campusconnect-api/pkg/cache"
	"github.com/noah-isme/campusconnect-api/pkg/config"
	"github.com/noah-isme/campusconnect-api/pkg/database"
	"github.com/noah-isme/campusconnect-api/pkg/export"
	"github.com/noah-isme/campusconnect-api/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

// @title CampusConnect Clearance API
// @version 1.0.0
// @description Student clearance workflow: submission, department approvals and derived status.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, summary cache and notifications disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	validate := validator.New()
	metrics := service.NewMetricsService()
	tokens := service.NewTokenService(service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Expiry: cfg.JWT.Expiration,
	})

	clearanceRepo := repository.NewClearanceRepository(db)
	configRepo := repository.NewConfigurationRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	templates, err := service.NewClearanceTemplateService(configRepo, auditRepo, validate, logr, cfg.Clearance.StepTemplate)
	if err != nil {
		return fmt.Errorf("clearance step template: %w", err)
	}

	opts := []service.ClearanceServiceOption{
		service.WithClearanceMetrics(metrics),
		service.WithClearanceHistory(auditRepo),
		service.WithGlobalDepartments(cfg.Clearance.GlobalDepartments),
	}
	if redisClient != nil {
		cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient), metrics, cfg.Clearance.SummaryCacheTTL, logr, true)
		opts = append(opts, service.WithClearanceCache(cacheSvc, cfg.Clearance.SummaryCacheTTL))
	}
	if cfg.Notifications.Enabled && redisClient != nil {
		dispatcher := service.NewNotificationDispatcher(
			repository.NewNotificationRepository(redisClient, cfg.Notifications.Channel),
			metrics,
			logr,
			service.NotificationDispatcherConfig{
				Workers:    cfg.Notifications.Workers,
				BufferSize: cfg.Notifications.BufferSize,
				Retries:    cfg.Notifications.Retries,
				RetryDelay: cfg.Notifications.RetryDelay,
			},
		)
		dispatcher.Start(context.Background())
		defer dispatcher.Stop()
		opts = append(opts, service.WithClearanceNotifier(dispatcher))
	}
	if cfg.Clearance.CertificatesEnabled {
		opts = append(opts, service.WithCertificateRenderer(export.NewCertificateRenderer(cfg.Clearance.CertificateInstitution)))
	}
	clearances := service.NewClearanceService(clearanceRepo, templates, auditRepo, validate, logr, opts...)

	checks := []handler.ReadinessCheck{{Name: "postgres", Check: db.PingContext}}
	if redisClient != nil {
		checks = append(checks, handler.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}

	engine := router.New(cfg, logr, router.Dependencies{
		Tokens:    tokens,
		Metrics:   metrics,
		Clearance: handler.NewClearanceHandler(clearances),
		Templates: handler.NewClearanceTemplateHandler(templates),
		Ops:       handler.NewMetricsHandler(metrics, checks...),
		Writes:    middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
