// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Riyamaga identity API server.
//
// # Startup Sequence
//
//  1. Load configuration from the environment (and .env in development).
//  2. Initialize structured logger.
//  3. Connect to PostgreSQL (pgxpool) and run migrations.
//  4. Connect to Redis when configured.
//  5. Build token, OTP, SMS and event collaborators.
//  6. Wire HTTP handlers.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
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

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"github.com/taibuivan/riyamaga/internal/api"
	"github.com/taibuivan/riyamaga/internal/platform/config"
	"github.com/taibuivan/riyamaga/internal/platform/constants"
	"github.com/taibuivan/riyamaga/internal/platform/events"
	"github.com/taibuivan/riyamaga/internal/platform/logging"
	"github.com/taibuivan/riyamaga/internal/platform/middleware"
	"github.com/taibuivan/riyamaga/internal/platform/migration"
	pgstore "github.com/taibuivan/riyamaga/internal/platform/postgres"
	"github.com/taibuivan/riyamaga/internal/platform/ratelimit"
	redisstore "github.com/taibuivan/riyamaga/internal/platform/redis"
	"github.com/taibuivan/riyamaga/internal/platform/sec"
	"github.com/taibuivan/riyamaga/internal/platform/sms"
	"github.com/taibuivan/riyamaga/internal/users/account"
	"github.com/taibuivan/riyamaga/internal/users/auth"
)

func main() {
	// ── 1. Configuration ──────────────────────────────────────────────────
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "startup failure:", err)
		os.Exit(1)
	}

	// ── 2. Logger ─────────────────────────────────────────────────────────
	rawLog, flush, err := logging.New(logging.Options{
		Environment: cfg.Environment,
		Format:      cfg.LogFormat,
		Debug:       cfg.Debug,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "startup failure:", err)
		os.Exit(1)
	}
	defer flush()

	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	// Root context for background workers; cancelled on shutdown.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Startup deadline so misconfiguration is caught quickly.
	startupCtx, startupCancel := context.WithTimeout(rootCtx, 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, cfg.DatabaseMaxConns, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	if cfg.MigrationsEnabled {
		must(log, migration.RunUp(cfg.DatabaseURL, log), "run migrations")
	}

	// ── 4. Redis (optional) ───────────────────────────────────────────────
	var (
		rdb        *goredis.Client
		otpLimiter ratelimit.Limiter
	)

	if cfg.RedisURL != "" {
		rdb, err = redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		must(log, err, "connect to redis")
		defer func() {
			log.Info("closing redis client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis close error", slog.Any("error", cerr))
			}
		}()

		otpLimiter = ratelimit.NewRedis(rdb, constants.RedisPrefixOTPLimit, cfg.OTPRateLimit, cfg.OTPRateWindowDuration())
	} else {
		log.Warn("redis_disabled_using_memory_otp_limiter")
		otpLimiter = ratelimit.NewWindow(rootCtx, cfg.OTPRateLimit, cfg.OTPRateWindowDuration())
	}

	trustedProxies, err := cfg.TrustedProxyPrefixes()
	must(log, err, "parse trusted proxies")

	globalLimiter := ratelimit.NewMemory(rootCtx, constants.DefaultRateLimitRPS, constants.DefaultRateLimitBurst)

	// ── 5. Security Collaborators ─────────────────────────────────────────
	tokens, err := sec.NewTokenService(sec.TokenConfig{
		AccessSecret:  cfg.JWTAccessSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.AccessTTL(),
		RefreshTTL:    cfg.RefreshTTL(),
		Issuer:        cfg.JWTIssuer,
	})
	must(log, err, "initialize token service")

	hasher, err := sec.NewOTPHasher(cfg.OTPHashKey)
	must(log, err, "initialize otp hasher")

	var sender sms.Sender = sms.NewLogSender(log)
	if cfg.TwilioEnabled() {
		sender = sms.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, log)
	}

	var publisher events.Publisher = events.NewLogPublisher(log)
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic, log), log)
		defer func() {
			if cerr := kafkaPublisher.Close(); cerr != nil {
				log.Error("kafka close error", slog.Any("error", cerr))
			}
		}()
		publisher = kafkaPublisher
	}

	// ── 6. Health handlers (wired with real dependency checkers) ──────────
	healthDeps := api.HealthDependencies{
		CheckDatabase: func(ctx context.Context) error {
			return pgstore.Ping(ctx, pool)
		},
	}
	if rdb != nil {
		healthDeps.CheckCache = func(ctx context.Context) error {
			return redisstore.Ping(ctx, rdb)
		}
	}
	liveness, readiness := api.NewHealthHandlers(healthDeps, log)

	// ── 7. Domain Wiring ──────────────────────────────────────────────────
	authService := auth.NewService(
		auth.NewOTPRepository(pool),
		auth.NewUserRepository(pool),
		tokens,
		hasher,
		sender,
		publisher,
		auth.Config{
			OTPTTL:           cfg.OTPTTLDuration(),
			OTPCooldown:      cfg.OTPCooldownDuration(),
			DevOTP:           cfg.OTPDevFixed,
			ExposeDevOTP:     !cfg.IsProduction(),
			RotateRefresh:    cfg.JWTRotateRefresh,
			GenericOTPErrors: cfg.OTPGenericErrors,
		},
		log,
	)

	accountRepository := account.NewAccountRepository(pool)
	statusGate := account.NewStatusGate(accountRepository, publisher, log)
	accountService := account.NewService(accountRepository, publisher, log)

	// ── 8. HTTP Server ────────────────────────────────────────────────────
	server := api.NewServer(cfg, log, api.Guards{
		Global:  globalLimiter,
		OTP:     otpLimiter,
		Tokens:  tokens,
		Status:  statusGate,
		Proxies: middleware.TrustedProxies(trustedProxies),
	}, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(authService, tokens.RefreshTTL()),
		Account:   account.NewHandler(accountService),
	})

	// ── 9. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
	}

	log.Info("server stopped cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
