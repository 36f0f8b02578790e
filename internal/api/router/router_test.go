package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/lead-chat-agent/internal/assistant"
	"github.com/wolfman30/lead-chat-agent/internal/chatbot"
	httpmiddleware "github.com/wolfman30/lead-chat-agent/internal/http/middleware"
	"github.com/wolfman30/lead-chat-agent/internal/leads"
	"github.com/wolfman30/lead-chat-agent/internal/webchat"
	"github.com/wolfman30/lead-chat-agent/pkg/logging"
)

const adminSecret = "router-test-secret"

type staticGateway struct{}

func (staticGateway) Chat(ctx context.Context, message string, history []assistant.Turn) (*assistant.ChatResponse, error) {
	return &assistant.ChatResponse{Message: "בשמחה", ConversationHistory: assistant.CloneHistory(history)}, nil
}

type nopSubmitter struct{}

func (nopSubmitter) Submit(ctx context.Context, req leads.CreateLeadRequest) error { return nil }

type routerFixture struct {
	repo    *leads.InMemoryRepository
	handler http.Handler
}

func newTestRouter(t *testing.T, mutate func(*Config)) *routerFixture {
	t.Helper()

	logger := logging.Discard()
	repo := leads.NewInMemoryRepository()
	leadsHandler := leads.NewHandler(repo, nil, logger)

	manager := chatbot.NewManager(chatbot.Config{
		Gateway:   staticGateway{},
		Submitter: nopSubmitter{},
		IdleDelay: time.Hour,
		Logger:    logger,
	}, nil)
	t.Cleanup(func() { _ = manager.Shutdown(context.Background()) })

	cfg := &Config{
		Logger:          logger,
		LeadsHandler:    leadsHandler,
		WebchatHandler:  webchat.NewHandler(manager, nil, logger),
		AdminAuthSecret: adminSecret,
	}
	if mutate != nil {
		mutate(cfg)
	}
	return &routerFixture{repo: repo, handler: New(cfg)}
}

func (f *routerFixture) serve(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealthEndpoint(t *testing.T) {
	f := newTestRouter(t, nil)

	rr := f.serve(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestRouterHealthReportsFailingDependency(t *testing.T) {
	f := newTestRouter(t, func(cfg *Config) {
		cfg.HealthChecks = map[string]HealthCheck{
			"redis":    func(ctx context.Context) error { return nil },
			"postgres": func(ctx context.Context) error { return errors.New("connection refused") },
		}
	})

	rr := f.serve(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "degraded", resp["status"])
	assert.Equal(t, "ok", resp["redis"])
	assert.Equal(t, "connection refused", resp["postgres"])
}

func TestRouterLeadIntake(t *testing.T) {
	f := newTestRouter(t, nil)

	body := `{"name":"דנה","phone":"0501234567","email":"לא צוין","source":"website-chat","conversationSummary":"בקשה לחזרה"}`
	req := httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := f.serve(req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(body))
	req.Header.Set("Content-Type", "text/plain")
	assert.Equal(t, http.StatusUnsupportedMediaType, f.serve(req).Code)
}

func TestRouterAdminLeadsRequireToken(t *testing.T) {
	f := newTestRouter(t, nil)
	_, err := f.repo.Create(context.Background(), &leads.CreateLeadRequest{Phone: "0501234567", Source: "website-chat"})
	require.NoError(t, err)

	rr := f.serve(httptest.NewRequest(http.MethodGet, "/admin/leads", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	token, err := httpmiddleware.IssueAdminToken(adminSecret, "ops", httpmiddleware.RoleLeadsReader, time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/admin/leads", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = f.serve(req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "0501234567")
}

func TestRouterAdminRoutesAbsentWithoutSecret(t *testing.T) {
	f := newTestRouter(t, func(cfg *Config) { cfg.AdminAuthSecret = "" })

	rr := f.serve(httptest.NewRequest(http.MethodGet, "/admin/leads", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouterWebchatSessions(t *testing.T) {
	f := newTestRouter(t, nil)

	rr := f.serve(httptest.NewRequest(http.MethodPost, "/webchat/sessions", nil))
	require.Equal(t, http.StatusCreated, rr.Code)

	var snap chatbot.Snapshot
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&snap))
	rr = f.serve(httptest.NewRequest(http.MethodGet, "/webchat/sessions/"+snap.ID, nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouterWebchatRateLimited(t *testing.T) {
	f := newTestRouter(t, func(cfg *Config) {
		cfg.WebchatLimiter = httpmiddleware.NewRateLimiter(0.01, 1)
	})

	req := httptest.NewRequest(http.MethodPost, "/webchat/sessions", nil)
	require.Equal(t, http.StatusCreated, f.serve(req).Code)

	req = httptest.NewRequest(http.MethodPost, "/webchat/sessions", nil)
	rr := f.serve(req)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, f.serve(httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
}

func TestRouterCORSPreflight(t *testing.T) {
	f := newTestRouter(t, func(cfg *Config) {
		cfg.CORSAllowedOrigins = []string{"https://clinic.example"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/webchat/sessions", nil)
	req.Header.Set("Origin", "https://clinic.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := f.serve(req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://clinic.example", rr.Header().Get("Access-Control-Allow-Origin"))
}
