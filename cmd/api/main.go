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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/wolfman30/lead-chat-agent/internal/api/router"
	"github.com/wolfman30/lead-chat-agent/internal/app/bootstrap"
	"github.com/wolfman30/lead-chat-agent/internal/assistant"
	"github.com/wolfman30/lead-chat-agent/internal/chatbot"
	appconfig "github.com/wolfman30/lead-chat-agent/internal/config"
	"github.com/wolfman30/lead-chat-agent/internal/events"
	httpmiddleware "github.com/wolfman30/lead-chat-agent/internal/http/middleware"
	"github.com/wolfman30/lead-chat-agent/internal/leads"
	"github.com/wolfman30/lead-chat-agent/internal/notify"
	"github.com/wolfman30/lead-chat-agent/internal/observability/metrics"
	"github.com/wolfman30/lead-chat-agent/internal/webchat"
	"github.com/wolfman30/lead-chat-agent/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting lead-chat-agent API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	app.run(ctx)

	// Hijacked WebSocket connections keep the server's deadlines, so only
	// the header read is bounded here.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	cancel()
	app.close(shutdownCtx)

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

type application struct {
	handler   http.Handler
	manager   *chatbot.Manager
	limiter   *httpmiddleware.RateLimiter
	deliverer *events.Deliverer
	redis     *redis.Client
	pool      *pgxpool.Pool
	logger    *logging.Logger
}

// run starts the background loops; they stop when ctx is cancelled.
func (a *application) run(ctx context.Context) {
	go a.limiter.Run(ctx)
	go a.manager.Run(ctx)
	if a.deliverer != nil {
		go a.deliverer.Start(ctx)
	}
}

func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*application, error) {
	metricsHandler, chatMetrics := setupMetrics()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	pool := bootstrap.BuildPostgresPool(ctx, cfg, logger)

	leadRepo := bootstrap.BuildLeadRepository(pool, logger)
	emailSender, provider, reason := bootstrap.BuildEmailSender(ctx, cfg, logger)
	if reason != "" {
		logger.Warn("lead notification email disabled", "provider", provider, "reason", reason)
	} else {
		logger.Info("lead notification email enabled", "provider", provider, "recipients", len(cfg.LeadNotifyEmails))
	}
	leadNotifier := notify.NewLeadNotifier(emailSender, cfg.LeadNotifyEmails, logger)

	var notifier leads.Notifier = leadNotifier
	var deliverer *events.Deliverer
	if pool != nil {
		outbox := events.NewOutboxStore(pool)
		notifier = events.NewLeadOutbox(outbox)
		deliverer = events.NewDeliverer(outbox, events.NewLeadNotificationHandler(leadNotifier), logger)
	}
	leadsHandler := leads.NewHandler(leadRepo, notifier, logger)

	assistantClient, err := assistant.New(assistant.Config{
		BaseURL:    cfg.AssistantBaseURL,
		Timeout:    cfg.HTTPClientTimeout,
		MaxRetries: cfg.HTTPMaxRetries,
		Logger:     logger,
		Tracer:     otel.Tracer("leadchat.internal.assistant"),
	})
	if err != nil {
		return nil, err
	}
	submitter, err := leads.NewSubmitter(leads.SubmitterConfig{
		BaseURL: cfg.LeadsBaseURL,
		Timeout: cfg.HTTPClientTimeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	manager := chatbot.NewManager(chatbot.Config{
		Gateway:    assistantClient,
		Extractor:  assistantClient,
		Submitter:  submitter,
		IdleDelay:  cfg.IdleNudgeDelay,
		SessionTTL: cfg.SessionTTL,
		LeadSource: cfg.LeadSource,
		Metrics:    chatMetrics,
		Logger:     logger,
	}, bootstrap.BuildSessionStore(redisClient, cfg, logger))

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	webchatHandler := webchat.NewHandler(manager, httpmiddleware.OriginMatcher(cfg.CORSAllowedOrigins), logger)

	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set; lead inspection endpoints disabled")
	}

	handler := router.New(&router.Config{
		Logger:             logger,
		LeadsHandler:       leadsHandler,
		WebchatHandler:     webchatHandler,
		MetricsHandler:     metricsHandler,
		HealthChecks:       healthChecks(redisClient, pool),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		WebchatLimiter:     limiter,
		AdminAuthSecret:    cfg.AdminJWTSecret,
	})

	return &application{
		handler:   handler,
		manager:   manager,
		limiter:   limiter,
		deliverer: deliverer,
		redis:     redisClient,
		pool:      pool,
		logger:    logger,
	}, nil
}

func (a *application) close(ctx context.Context) {
	if err := a.manager.Shutdown(ctx); err != nil {
		a.logger.Error("failed to flush chat sessions", "error", err)
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// setupMetrics builds a dedicated registry so /metrics only shows this service.
func setupMetrics() (http.Handler, *metrics.ChatMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewChatMetrics(reg)
}

func healthChecks(redisClient *redis.Client, pool *pgxpool.Pool) map[string]router.HealthCheck {
	checks := map[string]router.HealthCheck{}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if pool != nil {
		checks["postgres"] = pool.Ping
	}
	return checks
}
