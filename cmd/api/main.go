package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hosted-payment-gateway/config"
	"hosted-payment-gateway/internal/adapter/bank"
	httpHandler "hosted-payment-gateway/internal/adapter/http/handler"
	pgStorage "hosted-payment-gateway/internal/adapter/storage/postgres"
	redisStorage "hosted-payment-gateway/internal/adapter/storage/redis"
	"hosted-payment-gateway/internal/core/ports"
	"hosted-payment-gateway/internal/metrics"
	"hosted-payment-gateway/internal/service"
	"hosted-payment-gateway/pkg/clock"
	"hosted-payment-gateway/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Hosted Payment Gateway")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewPrometheus(registry)

	clk := clock.Real{}

	// Initialize repositories
	teamRepo := pgStorage.NewTeamRepo(pool)
	paymentRepo := pgStorage.NewPaymentRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)

	// Initialize Redis stores
	replayStore := redisStorage.NewReplayStore(rdb)
	statusCache := redisStorage.NewStatusCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewSHA256TokenService()
	sessionSvc := service.NewJWTSessionService(cfg.Auth.FormSessionSecret, "hosted-payment-gateway")

	// Bank adapter behind a circuit breaker
	bankAdapter := bank.NewBreaker(bank.NewStubBank(), m, log, bank.BreakerConfig{
		ConsecutiveFailures: cfg.Bank.BreakerThreshold,
		Timeout:             cfg.Bank.BreakerTimeout,
		Interval:            cfg.Bank.BreakerInterval,
		CallTimeout:         cfg.Bank.Timeout,
	})

	// Initialize business services
	auditSvc := service.NewAuditService(auditRepo, log)
	authSvc := service.NewAuthService(teamRepo, hashSvc, encSvc, tokenSvc, replayStore, m, clk, service.AuthServiceConfig{
		MaxFailedAttempts: cfg.Auth.MaxFailedAttempts,
		LockoutDuration:   cfg.Auth.LockoutDuration,
		ReplayWindow:      cfg.Auth.ReplayWindow,
		AdminToken:        cfg.Auth.AdminToken,
	})
	paymentSvc := service.NewPaymentService(paymentRepo, txRepo, authSvc, bankAdapter, statusCache, auditSvc, m, clk, log, service.PaymentServiceConfig{
		DefaultExpiry:  cfg.Payments.DefaultExpiry,
		MinExpiry:      cfg.Payments.MinExpiry,
		MaxExpiry:      cfg.Payments.MaxExpiry,
		MinAmount:      cfg.Payments.MinAmount,
		MaxAmount:      cfg.Payments.MaxAmount,
		FormBaseURL:    cfg.Payments.FormBaseURL,
		IdempotencyTTL: cfg.Cache.IdempotencyTTL,
	})
	statusSvc := service.NewStatusService(paymentRepo, txRepo, authSvc, statusCache, m, clk, log, service.StatusServiceConfig{
		NonTerminalTTL: cfg.Cache.NonTerminalTTL,
		TerminalTTL:    cfg.Cache.TerminalTTL,
	})
	formSvc := service.NewFormService(paymentRepo, txRepo, sessionSvc, bankAdapter, statusCache, auditSvc, m, clk, log, service.FormServiceConfig{
		SessionTTL: cfg.Auth.FormSessionTTL,
	})
	teamSvc := service.NewTeamService(teamRepo, hashSvc, encSvc, auditSvc, clk, log, service.TeamServiceConfig{
		DefaultMinAmount: cfg.Payments.MinAmount,
		DefaultMaxAmount: cfg.Payments.MaxAmount,
	})

	// Expiry sweeper: moves overdue payments to DEADLINE_EXPIRED in the background.
	sweeper := service.NewExpirySweeper(paymentRepo, statusCache, auditSvc, m, clk, log,
		cfg.Payments.SweepInterval, cfg.Payments.SweepBatch)
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	go sweeper.Run(sweepCtx)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:            authSvc,
		PaymentSvc:         paymentSvc,
		StatusSvc:          statusSvc,
		FormSvc:            formSvc,
		TeamSvc:            teamSvc,
		RateLimitStore:     rateLimitStore,
		RateLimitPerMinute: cfg.Auth.RateLimitPerMin,
		HealthCheckers:     []ports.HealthChecker{pgHealth, redisHealth},
		Metrics:            m,
		Registry:           registry,
		Logger:             log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	stopSweeper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
