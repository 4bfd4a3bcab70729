// sweeper deletes expired OTP requests and stale rate-limit rows on a cron
// schedule. The serving path never cleans up after itself; this binary is
// that external janitor.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LegalDragon/funtime-identity/config"
	"github.com/LegalDragon/funtime-identity/internal/infrastructure/postgres"
	ctxlog "github.com/LegalDragon/funtime-identity/internal/log"
	"github.com/lmittmann/tint"
	"github.com/robfig/cron/v3"
)

// Rows are kept for a day past expiry so support can answer "did the code
// ever arrive" questions before the evidence disappears.
const retention = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	schedule, err := cron.ParseStandard(cfg.SweepSchedule)
	if err != nil {
		log.Fatalf("parse sweep schedule %q: %v", cfg.SweepSchedule, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	otpRepo := postgres.NewOtpRepository(pool)
	rateLimitRepo := postgres.NewOtpRateLimitRepository(pool)

	logger.Info("sweeper started", "schedule", cfg.SweepSchedule)

	for {
		next := schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info("sweeper shut down")
			return
		case <-timer.C:
		}

		cutoff := time.Now().Add(-retention)

		otps, err := otpRepo.DeleteExpired(ctx, cutoff)
		if err != nil {
			logger.Error("sweep otp requests", "error", err)
		}

		limits, err := rateLimitRepo.DeleteStale(ctx, cutoff)
		if err != nil {
			logger.Error("sweep rate limits", "error", err)
		}

		if otps > 0 || limits > 0 {
			logger.Info("sweep complete", "otp_requests", otps, "rate_limits", limits)
		}
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
