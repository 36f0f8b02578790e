package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/lead-chat-agent/internal/assistant"
	"github.com/wolfman30/lead-chat-agent/internal/chatbot"
	"github.com/wolfman30/lead-chat-agent/internal/leads"
	"github.com/wolfman30/lead-chat-agent/pkg/logging"
	"golang.org/x/net/websocket"
)

type echoGateway struct {
	mu    sync.Mutex
	reply string
	block chan struct{}
}

func (g *echoGateway) Chat(ctx context.Context, message string, history []assistant.Turn) (*assistant.ChatResponse, error) {
	g.mu.Lock()
	reply, block := g.reply, g.block
	g.mu.Unlock()
	if block != nil {
		<-block
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if reply == "" {
		reply = "echo: " + message
	}
	out := append(assistant.CloneHistory(history),
		assistant.Turn{Role: assistant.RoleUser, Content: message},
		assistant.Turn{Role: assistant.RoleAssistant, Content: reply},
	)
	return &assistant.ChatResponse{Message: reply, ConversationHistory: out}, nil
}

type recordingSubmitter struct {
	mu   sync.Mutex
	reqs []leads.CreateLeadRequest
}

func (s *recordingSubmitter) Submit(ctx context.Context, req leads.CreateLeadRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	return nil
}

type fixture struct {
	gateway   *echoGateway
	submitter *recordingSubmitter
	manager   *chatbot.Manager
	router    http.Handler
}

func newFixture(t *testing.T, allowOrigin func(string) bool) *fixture {
	t.Helper()
	f := &fixture{gateway: &echoGateway{}, submitter: &recordingSubmitter{}}
	f.manager = chatbot.NewManager(chatbot.Config{
		Gateway:   f.gateway,
		Submitter: f.submitter,
		IdleDelay: time.Hour,
		Logger:    logging.Discard(),
	}, nil)
	t.Cleanup(func() { _ = f.manager.Shutdown(context.Background()) })

	h := NewHandler(f.manager, allowOrigin, logging.Discard())
	r := chi.NewRouter()
	r.Mount("/webchat", h.Routes())
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, chatbot.Snapshot) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var snap chatbot.Snapshot
	if w.Code < 300 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	}
	return w, snap
}

func TestHTTPFallbackFlow(t *testing.T) {
	f := newFixture(t, nil)

	w, snap := f.do(t, http.MethodPost, "/webchat/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotEmpty(t, snap.ID)
	require.Len(t, snap.Messages, 1)
	assert.NotEmpty(t, snap.Prompts)
	base := "/webchat/sessions/" + snap.ID

	w, snap = f.do(t, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, snap.Messages, 1)

	w, snap = f.do(t, http.MethodPost, base+"/prompts/exosomes", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "echo: מהם אקסוזומים?", snap.Messages[len(snap.Messages)-1].Content)
	assert.Equal(t, []string{"exosomes"}, snap.UsedPrompts)

	w, _ = f.do(t, http.MethodPost, base+"/prompts/exosomes", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	w, _ = f.do(t, http.MethodPost, base+"/prompts/pricing", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w, snap = f.do(t, http.MethodPost, base+"/messages", `{"text":"שמי דנה 0501234567"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, snap.Draft)
	assert.True(t, snap.ShowContactForm)

	w, snap = f.do(t, http.MethodPatch, base+"/draft", `{"field":"email","value":"dana@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dana@example.com", snap.Draft.Email)

	w, snap = f.do(t, http.MethodPost, base+"/draft/submit", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, snap.Draft)
	require.Len(t, f.submitter.reqs, 1)
	assert.Equal(t, "dana@example.com", f.submitter.reqs[0].Email)
	assert.Equal(t, "0501234567", f.submitter.reqs[0].Phone)
}

func TestHTTPErrorMapping(t *testing.T) {
	f := newFixture(t, nil)
	_, snap := f.do(t, http.MethodPost, "/webchat/sessions", "")
	base := "/webchat/sessions/" + snap.ID

	w, _ := f.do(t, http.MethodGet, "/webchat/sessions/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = f.do(t, http.MethodPost, base+"/messages", `{"text":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodPost, base+"/messages", `{`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodPost, base+"/prompts/nope", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodPost, base+"/draft/submit", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Empty(t, f.submitter.reqs)

	w, _ = f.do(t, http.MethodPatch, base+"/draft", `{"field":"name","value":"x"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, snap = f.do(t, http.MethodDelete, base+"/draft", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, snap.ShowContactForm)
}

func TestHTTPBusyReturnsConflict(t *testing.T) {
	f := newFixture(t, nil)
	_, snap := f.do(t, http.MethodPost, "/webchat/sessions", "")
	base := "/webchat/sessions/" + snap.ID

	f.gateway.mu.Lock()
	f.gateway.block = make(chan struct{})
	f.gateway.mu.Unlock()

	done := make(chan int, 1)
	go func() {
		req := httptest.NewRequest(http.MethodPost, base+"/messages", strings.NewReader(`{"text":"שאלה"}`))
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		done <- w.Code
	}()

	sess, err := f.manager.Get(context.Background(), snap.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return sess.Snapshot().Busy }, time.Second, time.Millisecond)

	w, _ := f.do(t, http.MethodPost, base+"/messages", `{"text":"עוד"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	close(f.gateway.block)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestHTTPTurnSurvivesCanceledRequest(t *testing.T) {
	f := newFixture(t, nil)
	_, snap := f.do(t, http.MethodPost, "/webchat/sessions", "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/webchat/sessions/"+snap.ID+"/messages", strings.NewReader(`{"text":"שאלה"}`)).WithContext(ctx)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	sess, err := f.manager.Get(context.Background(), snap.ID)
	require.NoError(t, err)
	got := sess.Snapshot()
	assert.Equal(t, "echo: שאלה", got.Messages[len(got.Messages)-1].Content)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(chatbot.ErrPromptNotOffered))
	assert.Equal(t, http.StatusGone, statusFor(chatbot.ErrSessionClosed))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("redis down")))
}

func dialWS(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/webchat/ws" + query
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func receive(t *testing.T, conn *websocket.Conn) OutboundMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &msg))
	return msg
}

// receiveUntil reads until match returns true.
func receiveUntil(t *testing.T, conn *websocket.Conn, match func(OutboundMessage) bool) OutboundMessage {
	t.Helper()
	for i := 0; i < 50; i++ {
		msg := receive(t, conn)
		if match(msg) {
			return msg
		}
	}
	t.Fatal("expected message never arrived")
	return OutboundMessage{}
}

func TestWebSocketConversation(t *testing.T) {
	f := newFixture(t, nil)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	conn := dialWS(t, srv, "")

	hello := receive(t, conn)
	require.Equal(t, TypeSession, hello.Type)
	require.NotEmpty(t, hello.SessionID)

	first := receive(t, conn)
	require.Equal(t, TypeSnapshot, first.Type)
	require.Len(t, first.Snapshot.Messages, 1)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: TypePing}))
	receiveUntil(t, conn, func(m OutboundMessage) bool { return m.Type == TypePong })

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: TypeMessage, Text: "שלום"}))
	reply := receiveUntil(t, conn, func(m OutboundMessage) bool {
		return m.Type == TypeSnapshot && len(m.Snapshot.Messages) == 3
	})
	assert.Equal(t, "echo: שלום", reply.Snapshot.Messages[2].Content)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: TypeFormSubmit}))
	errMsg := receiveUntil(t, conn, func(m OutboundMessage) bool { return m.Type == TypeError })
	assert.Equal(t, http.StatusUnprocessableEntity, errMsg.Code)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "bogus"}))
	errMsg = receiveUntil(t, conn, func(m OutboundMessage) bool { return m.Type == TypeError })
	assert.Equal(t, http.StatusBadRequest, errMsg.Code)
}

func TestWebSocketResumesSession(t *testing.T) {
	f := newFixture(t, nil)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	_, snap := f.do(t, http.MethodPost, "/webchat/sessions", "")
	_, _ = f.do(t, http.MethodPost, "/webchat/sessions/"+snap.ID+"/messages", `{"text":"0501234567"}`)

	conn := dialWS(t, srv, "?session="+snap.ID)
	hello := receive(t, conn)
	assert.Equal(t, snap.ID, hello.SessionID)

	state := receive(t, conn)
	require.NotNil(t, state.Snapshot.Draft)
	assert.Equal(t, "0501234567", state.Snapshot.Draft.Phone)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: TypeFormUpdate, Field: "name", Value: "דנה"}))
	updated := receiveUntil(t, conn, func(m OutboundMessage) bool {
		return m.Type == TypeSnapshot && m.Snapshot.Draft != nil && m.Snapshot.Draft.Name == "דנה"
	})
	assert.True(t, updated.Snapshot.CanSubmit)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: TypeFormCancel}))
	receiveUntil(t, conn, func(m OutboundMessage) bool {
		return m.Type == TypeSnapshot && !m.Snapshot.ShowContactForm
	})
}

func TestWebSocketUnknownSessionStartsFresh(t *testing.T) {
	f := newFixture(t, nil)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	conn := dialWS(t, srv, "?session=gone")
	hello := receive(t, conn)
	assert.NotEqual(t, "gone", hello.SessionID)
}

func TestWebSocketRejectsOrigin(t *testing.T) {
	f := newFixture(t, func(origin string) bool { return origin == "https://allowed.example" })
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/webchat/ws"
	_, err := websocket.Dial(wsURL, "", "https://evil.example")
	assert.Error(t, err)

	conn, err := websocket.Dial(wsURL, "", "https://allowed.example")
	require.NoError(t, err)
	_ = conn.Close()
}
