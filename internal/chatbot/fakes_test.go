package chatbot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/lead-chat-agent/internal/assistant"
	"github.com/wolfman30/lead-chat-agent/internal/leads"
	"github.com/wolfman30/lead-chat-agent/pkg/logging"
)

type fakeGateway struct {
	mu      sync.Mutex
	replies []string
	err     error
	block   chan struct{}
	calls   []assistant.ChatRequest
}

func (g *fakeGateway) Chat(ctx context.Context, message string, history []assistant.Turn) (*assistant.ChatResponse, error) {
	g.mu.Lock()
	g.calls = append(g.calls, assistant.ChatRequest{Message: message, ConversationHistory: assistant.CloneHistory(history)})
	block := g.block
	g.mu.Unlock()

	if block != nil {
		<-block
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	reply := "תשובה"
	if len(g.replies) > 0 {
		reply = g.replies[0]
		g.replies = g.replies[1:]
	}
	out := append(assistant.CloneHistory(history),
		assistant.Turn{Role: assistant.RoleUser, Content: message},
		assistant.Turn{Role: assistant.RoleAssistant, Content: reply},
	)
	return &assistant.ChatResponse{Message: reply, ConversationHistory: out}, nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type fakeExtractor struct {
	mu    sync.Mutex
	info  *assistant.ExtractedInfo
	err   error
	block chan struct{}
	calls [][]assistant.Turn
}

func (e *fakeExtractor) ExtractInfo(ctx context.Context, history []assistant.Turn) (*assistant.ExtractedInfo, error) {
	e.mu.Lock()
	e.calls = append(e.calls, assistant.CloneHistory(history))
	block := e.block
	e.mu.Unlock()

	if block != nil {
		<-block
	}
	if e.err != nil {
		return nil, e.err
	}
	if e.info == nil {
		return nil, assistant.ErrEmptyResult
	}
	info := *e.info
	return &info, nil
}

func (e *fakeExtractor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

type fakeSubmitter struct {
	mu       sync.Mutex
	requests []leads.CreateLeadRequest
	err      error
}

func (s *fakeSubmitter) Submit(ctx context.Context, req leads.CreateLeadRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return s.err
}

func (s *fakeSubmitter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

var errBackendDown = errors.New("connection refused")

type harness struct {
	gateway   *fakeGateway
	extractor *fakeExtractor
	submitter *fakeSubmitter
	session   *Session

	mu    sync.Mutex
	snaps []Snapshot
}

func newHarness(idle time.Duration) *harness {
	h := &harness{
		gateway:   &fakeGateway{},
		extractor: &fakeExtractor{},
		submitter: &fakeSubmitter{},
	}
	cfg := Config{
		Gateway:   h.gateway,
		Extractor: h.extractor,
		Submitter: h.submitter,
		IdleDelay: idle,
		Logger:    logging.Discard(),
	}
	h.session = NewSession("sess-1", cfg, func(s Snapshot) {
		h.mu.Lock()
		h.snaps = append(h.snaps, s)
		h.mu.Unlock()
	})
	if err := h.session.Start(); err != nil {
		panic(err)
	}
	return h
}

func (h *harness) published() []Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Snapshot(nil), h.snaps...)
}

func lastMessage(s Snapshot) Message {
	return s.Messages[len(s.Messages)-1]
}

func countContent(s Snapshot, content string) int {
	n := 0
	for _, m := range s.Messages {
		if m.Content == content {
			n++
		}
	}
	return n
}
