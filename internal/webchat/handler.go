package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/lead-chat-agent/internal/chatbot"
	"github.com/wolfman30/lead-chat-agent/pkg/logging"
	"golang.org/x/net/websocket"
)

// SessionManager is the part of chatbot.Manager the transport needs.
type SessionManager interface {
	Start(ctx context.Context) (*chatbot.Session, error)
	Get(ctx context.Context, id string) (*chatbot.Session, error)
	Subscribe(id string) (<-chan chatbot.Snapshot, func())
}

// Handler serves the chat widget over WebSocket with an HTTP fallback.
type Handler struct {
	sessions    SessionManager
	allowOrigin func(origin string) bool
	logger      *logging.Logger
}

// Inbound message types sent by the widget.
const (
	TypeMessage    = "message"
	TypePrompt     = "prompt"
	TypeFormUpdate = "form_update"
	TypeFormSubmit = "form_submit"
	TypeFormCancel = "form_cancel"
	TypePing       = "ping"
)

// Outbound message types.
const (
	TypeSession  = "session"
	TypeSnapshot = "snapshot"
	TypeError    = "error"
	TypePong     = "pong"
)

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	PromptID string `json:"prompt_id,omitempty"`
	Field    string `json:"field,omitempty"`
	Value    string `json:"value,omitempty"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string            `json:"type"`
	SessionID string            `json:"session_id,omitempty"`
	Snapshot  *chatbot.Snapshot `json:"snapshot,omitempty"`
	Error     string            `json:"error,omitempty"`
	Code      int               `json:"code,omitempty"`
}

// NewHandler creates a web chat handler. allowOrigin vets the WebSocket
// Origin header; nil accepts any origin.
func NewHandler(sessions SessionManager, allowOrigin func(string) bool, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		sessions:    sessions,
		allowOrigin: allowOrigin,
		logger:      logger,
	}
}

// Routes mounts the widget endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/ws", h.HandleWebSocket)
	r.Post("/sessions", h.CreateSession)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Post("/messages", h.SendMessage)
		r.Post("/prompts/{promptID}", h.SelectPrompt)
		r.Patch("/draft", h.UpdateDraft)
		r.Post("/draft/submit", h.SubmitDraft)
		r.Delete("/draft", h.CancelDraft)
	})
	return r
}

// HandleWebSocket upgrades to WebSocket and handles real-time messaging.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	srv := websocket.Server{
		Handshake: h.checkOrigin,
		Handler: func(conn *websocket.Conn) {
			h.serveWS(conn, r)
		},
	}
	srv.ServeHTTP(w, r)
}

func (h *Handler) checkOrigin(cfg *websocket.Config, r *http.Request) error {
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowOrigin == nil {
		return nil
	}
	if !h.allowOrigin(origin) {
		return errors.New("webchat: origin not allowed")
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return err
	}
	cfg.Origin = parsed
	return nil
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	// Turns keep running after a disconnect so the stored snapshot has the reply.
	ctx := context.WithoutCancel(r.Context())

	sess, err := h.resolveSession(ctx, r.URL.Query().Get("session"))
	if err != nil {
		h.logger.Error("webchat: failed to open session", "error", err)
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: TypeError, Error: "session unavailable", Code: http.StatusInternalServerError})
		return
	}
	logger := h.logger.With("session_id", sess.ID())

	updates, cancel := h.sessions.Subscribe(sess.ID())
	defer cancel()

	_ = websocket.JSON.Send(conn, OutboundMessage{Type: TypeSession, SessionID: sess.ID()})
	snap := sess.Snapshot()
	_ = websocket.JSON.Send(conn, OutboundMessage{Type: TypeSnapshot, Snapshot: &snap})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for snap := range updates {
			snap := snap
			if err := websocket.JSON.Send(conn, OutboundMessage{Type: TypeSnapshot, Snapshot: &snap}); err != nil {
				logger.Debug("webchat: snapshot push failed", "error", err)
			}
		}
	}()

	logger.Info("webchat: connection opened")

	var turns sync.WaitGroup
	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			logger.Debug("webchat: connection closed", "error", err)
			break
		}

		switch msg.Type {
		case TypePing:
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: TypePong})
		case TypeMessage, TypePrompt, TypeFormSubmit:
			// Long running: never hold up form edits behind a backend call.
			turns.Add(1)
			go func(msg InboundMessage) {
				defer turns.Done()
				if err := h.dispatch(ctx, sess, msg); err != nil {
					h.sendError(conn, err)
				}
			}(msg)
		default:
			if err := h.dispatch(ctx, sess, msg); err != nil {
				h.sendError(conn, err)
			}
		}
	}

	turns.Wait()
	cancel()
	wg.Wait()
}

func (h *Handler) resolveSession(ctx context.Context, id string) (*chatbot.Session, error) {
	if id != "" {
		sess, err := h.sessions.Get(ctx, id)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, chatbot.ErrSessionNotFound) {
			return nil, err
		}
		h.logger.Info("webchat: unknown session, starting a new one", "requested_id", id)
	}
	return h.sessions.Start(ctx)
}

var errUnknownType = errors.New("webchat: unknown message type")

func (h *Handler) dispatch(ctx context.Context, sess *chatbot.Session, msg InboundMessage) error {
	switch msg.Type {
	case TypeMessage:
		return sess.Send(ctx, msg.Text)
	case TypePrompt:
		return sess.SelectPrompt(ctx, msg.PromptID)
	case TypeFormUpdate:
		return sess.UpdateDraft(msg.Field, msg.Value)
	case TypeFormSubmit:
		return sess.SubmitLead(ctx)
	case TypeFormCancel:
		return sess.CancelForm()
	default:
		return errUnknownType
	}
}

func (h *Handler) sendError(conn *websocket.Conn, err error) {
	_ = websocket.JSON.Send(conn, OutboundMessage{Type: TypeError, Error: err.Error(), Code: statusFor(err)})
}

// statusFor maps session errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, chatbot.ErrBusy),
		errors.Is(err, chatbot.ErrFormClosed),
		errors.Is(err, chatbot.ErrPromptNotOffered):
		return http.StatusConflict
	case errors.Is(err, chatbot.ErrPhoneRequired):
		return http.StatusUnprocessableEntity
	case errors.Is(err, chatbot.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatbot.ErrSessionClosed):
		return http.StatusGone
	case errors.Is(err, chatbot.ErrEmptyMessage),
		errors.Is(err, chatbot.ErrUnknownPrompt),
		errors.Is(err, chatbot.ErrUnknownField),
		errors.Is(err, errUnknownType):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// CreateSession handles POST /webchat/sessions.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Start(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

// GetSession handles GET /webchat/sessions/{sessionID}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// SendMessage handles POST /webchat/sessions/{sessionID}/messages.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	h.apply(w, r, func(ctx context.Context, sess *chatbot.Session) error {
		return sess.Send(ctx, req.Text)
	})
}

// SelectPrompt handles POST /webchat/sessions/{sessionID}/prompts/{promptID}.
func (h *Handler) SelectPrompt(w http.ResponseWriter, r *http.Request) {
	promptID := chi.URLParam(r, "promptID")
	h.apply(w, r, func(ctx context.Context, sess *chatbot.Session) error {
		return sess.SelectPrompt(ctx, promptID)
	})
}

// UpdateDraft handles PATCH /webchat/sessions/{sessionID}/draft.
func (h *Handler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	h.apply(w, r, func(_ context.Context, sess *chatbot.Session) error {
		return sess.UpdateDraft(req.Field, req.Value)
	})
}

// SubmitDraft handles POST /webchat/sessions/{sessionID}/draft/submit.
func (h *Handler) SubmitDraft(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, func(ctx context.Context, sess *chatbot.Session) error {
		return sess.SubmitLead(ctx)
	})
}

// CancelDraft handles DELETE /webchat/sessions/{sessionID}/draft.
func (h *Handler) CancelDraft(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, func(_ context.Context, sess *chatbot.Session) error {
		return sess.CancelForm()
	})
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request, op func(context.Context, *chatbot.Session) error) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	// A turn outlives a dropped request so the reply still lands in the transcript.
	if err := op(context.WithoutCancel(r.Context()), sess); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*chatbot.Session, bool) {
	sess, err := h.sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return sess, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("webchat: request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
