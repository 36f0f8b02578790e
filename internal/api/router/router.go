package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpmiddleware "github.com/wolfman30/lead-chat-agent/internal/http/middleware"
	"github.com/wolfman30/lead-chat-agent/internal/leads"
	"github.com/wolfman30/lead-chat-agent/internal/webchat"
	"github.com/wolfman30/lead-chat-agent/pkg/logging"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	LeadsHandler   *leads.Handler
	WebchatHandler *webchat.Handler
	MetricsHandler http.Handler
	// HealthChecks are probed by /health; any failure reports 503.
	HealthChecks map[string]HealthCheck

	CORSAllowedOrigins []string
	// WebchatLimiter throttles session traffic per client IP. Nil disables it.
	WebchatLimiter  *httpmiddleware.RateLimiter
	AdminAuthSecret string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Get("/health", healthHandler(cfg.HealthChecks))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.WebchatHandler != nil {
		r.Route("/webchat", func(chat chi.Router) {
			if cfg.WebchatLimiter != nil {
				chat.Use(httpmiddleware.RateLimit(cfg.WebchatLimiter))
			}
			chat.Mount("/", cfg.WebchatHandler.Routes())
		})
	}

	if cfg.LeadsHandler != nil {
		// Lead intake is what the submission pipeline posts to.
		r.With(middleware.AllowContentType("application/json")).Post("/api/leads", cfg.LeadsHandler.CreateLead)

		if cfg.AdminAuthSecret != "" {
			r.Route("/admin/leads", func(admin chi.Router) {
				admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret, httpmiddleware.RoleLeadsReader))
				admin.Get("/", cfg.LeadsHandler.ListLeads)
				admin.Get("/{leadID}", cfg.LeadsHandler.GetLead)
			})
		}
	}

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		status := http.StatusOK
		response := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				response["status"] = "degraded"
				response[name] = err.Error()
				continue
			}
			response[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(response)
	}
}
