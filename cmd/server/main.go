package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LegalDragon/funtime-identity/config"
	"github.com/LegalDragon/funtime-identity/internal/cache"
	"github.com/LegalDragon/funtime-identity/internal/clock"
	"github.com/LegalDragon/funtime-identity/internal/health"
	"github.com/LegalDragon/funtime-identity/internal/infrastructure/postgres"
	ctxlog "github.com/LegalDragon/funtime-identity/internal/log"
	"github.com/LegalDragon/funtime-identity/internal/metrics"
	"github.com/LegalDragon/funtime-identity/internal/notify"
	httptransport "github.com/LegalDragon/funtime-identity/internal/transport/http"
	"github.com/LegalDragon/funtime-identity/internal/transport/http/handler"
	"github.com/LegalDragon/funtime-identity/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	clk := clock.Real()

	// Repositories
	userRepo := postgres.NewUserRepository(pool)
	externalRepo := postgres.NewExternalLoginRepository(pool)
	otpRepo := postgres.NewOtpRepository(pool)
	rateLimitRepo := postgres.NewOtpRateLimitRepository(pool)
	keyRepo := postgres.NewApiKeyRepository(pool)

	// Token service
	tokens, err := usecase.NewTokenService(
		[]byte(cfg.JWTSecret),
		cfg.JWTIssuer,
		cfg.JWTAudience,
		time.Duration(cfg.JWTLifetimeMin)*time.Minute,
		clk,
	)
	if err != nil {
		stop()
		log.Fatalf("token service: %v", err)
	}

	// OTP engine
	sender := notify.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)
	otpCfg := usecase.OtpConfig{
		TTL:          time.Duration(cfg.OtpTTLMin) * time.Minute,
		Window:       time.Duration(cfg.OtpWindowMin) * time.Minute,
		MaxPerWindow: cfg.OtpMaxPerWindow,
		MaxAttempts:  cfg.OtpMaxAttempts,
	}
	otpUsecase := usecase.NewOtpUsecase(otpRepo, rateLimitRepo, userRepo, sender, clk, logger, otpCfg)

	// Linking engine + orchestrator
	linking := usecase.NewLinkingUsecase(userRepo, externalRepo, otpUsecase, tokens, logger)
	authUsecase := usecase.NewAuthUsecase(linking, otpUsecase, tokens, cfg.SharedSecret, logger)

	// API key gate
	keyCache := cache.NewMemory(clk)
	keyUsecase := usecase.NewApiKeyUsecase(keyRepo, keyCache, clk, logger)

	// Handlers
	authHandler := handler.NewAuthHandler(authUsecase, logger)
	linkHandler := handler.NewLinkHandler(authUsecase, logger)
	keyHandler := handler.NewApiKeyHandler(keyUsecase, logger)
	partnerHandler := handler.NewPartnerHandler()

	metrics.Register()
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)

	srv := http.Server{
		Addr: ":" + cfg.Port,
		Handler: httptransport.NewRouter(
			logger, authHandler, linkHandler, keyHandler, partnerHandler,
			tokens, keyUsecase,
		),
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
