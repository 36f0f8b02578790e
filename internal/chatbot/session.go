package chatbot

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/lead-chat-agent/internal/assistant"
	"github.com/wolfman30/lead-chat-agent/internal/contact"
	"github.com/wolfman30/lead-chat-agent/internal/directive"
	"github.com/wolfman30/lead-chat-agent/internal/extract"
	"github.com/wolfman30/lead-chat-agent/internal/leads"
	"github.com/wolfman30/lead-chat-agent/internal/observability/metrics"
	"github.com/wolfman30/lead-chat-agent/internal/prompts"
	"github.com/wolfman30/lead-chat-agent/internal/watchdog"
	"github.com/wolfman30/lead-chat-agent/pkg/logging"
)

const defaultIdleDelay = 8 * time.Second

// Origin tags where a user turn came from.
type Origin string

const (
	OriginTyped  Origin = "typed"
	OriginPrompt Origin = "prompt"
)

// Gateway sends one chat turn to the assistant backend.
type Gateway interface {
	Chat(ctx context.Context, message string, history []assistant.Turn) (*assistant.ChatResponse, error)
}

// InfoExtractor asks the backend to pull contact details out of a conversation.
type InfoExtractor interface {
	ExtractInfo(ctx context.Context, history []assistant.Turn) (*assistant.ExtractedInfo, error)
}

// LeadSubmitter delivers a confirmed draft.
type LeadSubmitter interface {
	Submit(ctx context.Context, req leads.CreateLeadRequest) error
}

// Config wires a session to its collaborators. Gateway and Submitter are
// required; a nil Extractor skips the fallback extraction call.
type Config struct {
	Gateway   Gateway
	Extractor InfoExtractor
	Submitter LeadSubmitter
	Catalog   []prompts.Prompt
	IdleDelay time.Duration
	// SessionTTL is how long an untouched session stays in memory and in the
	// in-memory store.
	SessionTTL time.Duration
	// LeadSource is sent as the lead's source.
	LeadSource string
	Metrics    *metrics.ChatMetrics
	Logger     *logging.Logger
	Now        func() time.Time
}

func (c Config) withDefaults() Config {
	if c.IdleDelay <= 0 {
		c.IdleDelay = defaultIdleDelay
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = defaultSessionTTL
	}
	if c.LeadSource == "" {
		c.LeadSource = DefaultLeadSource
	}
	if c.Logger == nil {
		c.Logger = logging.Default()
	}
	if c.Now == nil {
		c.Now = func() time.Time { return time.Now().UTC() }
	}
	return c
}

// Session is one visitor's conversation. Every exported method is safe for
// concurrent use. Network calls run with the lock released; the busy flag
// keeps chat turns and lead submissions from overlapping, while form edits
// are never blocked.
type Session struct {
	id     string
	cfg    Config
	logger *logging.Logger

	mu       sync.Mutex
	state    State
	tracker  *prompts.Tracker
	watchdog *watchdog.Watchdog
	version  uint64
	closed   bool

	publishMu     sync.Mutex
	lastPublished uint64
	onChange      func(Snapshot)
}

// NewSession builds an empty session. Call Start to post the welcome message.
func NewSession(id string, cfg Config, onChange func(Snapshot)) *Session {
	cfg = cfg.withDefaults()
	return &Session{
		id:       id,
		cfg:      cfg,
		logger:   cfg.Logger.With("session_id", id),
		tracker:  prompts.NewTracker(cfg.Catalog),
		watchdog: watchdog.New(),
		onChange: onChange,
	}
}

// RestoreSession rebuilds a session from a stored snapshot. In-flight work is
// not resumed: the busy flag is cleared and no idle timer is armed.
func RestoreSession(snap Snapshot, cfg Config, onChange func(Snapshot)) *Session {
	s := NewSession(snap.ID, cfg, onChange)
	s.state = State{
		Messages:           append([]Message(nil), snap.Messages...),
		History:            assistant.CloneHistory(snap.History),
		DraftGeneration:    snap.DraftGeneration,
		HasAskedForContact: snap.HasAskedForContact,
		ShowContactForm:    snap.ShowContactForm,
	}
	if snap.Draft != nil {
		d := *snap.Draft
		s.state.Draft = &d
	}
	s.tracker.Restore(snap.UsedPrompts)
	s.version = snap.Version
	s.lastPublished = snap.Version
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Start posts the welcome message to an empty transcript.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if len(s.state.Messages) > 0 {
		s.mu.Unlock()
		return nil
	}
	s.appendAssistant(welcomeMessage, false)
	snap := s.commitLocked()
	s.mu.Unlock()

	s.publish(snap)
	return nil
}

// Send submits typed user text.
func (s *Session) Send(ctx context.Context, text string) error {
	return s.submit(ctx, turn{text: text, origin: OriginTyped})
}

// SelectPrompt sends a predefined question. The prompt is marked used before
// the backend is contacted.
func (s *Session) SelectPrompt(ctx context.Context, promptID string) error {
	return s.submit(ctx, turn{promptID: promptID, origin: OriginPrompt})
}

type turn struct {
	text     string
	promptID string
	origin   Origin
}

func (s *Session) submit(ctx context.Context, t turn) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if err := s.state.BeginBusy(); err != nil {
		s.mu.Unlock()
		return err
	}
	if t.promptID != "" {
		p, err := s.offeredPromptLocked(t.promptID)
		if err != nil {
			s.state.EndBusy()
			s.mu.Unlock()
			return err
		}
		s.tracker.Use(p.ID)
		t.text = p.Text
	}
	if strings.TrimSpace(t.text) == "" {
		s.state.EndBusy()
		s.mu.Unlock()
		return ErrEmptyMessage
	}

	s.watchdog.Disarm()
	affirmed := extract.IsCallbackQuestion(s.state.LastAssistantMessage()) && extract.IsAffirmative(t.text)
	s.appendUser(t.text)

	if handled := s.shortCircuitLocked(t); handled {
		s.state.EndBusy()
		snap := s.commitLocked()
		s.mu.Unlock()
		s.publish(snap)
		return nil
	}

	history := assistant.CloneHistory(s.state.History)
	snap := s.commitLocked()
	s.mu.Unlock()
	s.publish(snap)

	started := time.Now()
	resp, err := s.cfg.Gateway.Chat(ctx, t.text, history)
	s.cfg.Metrics.ObserveAssistantLatency("chat", time.Since(started).Seconds())

	s.mu.Lock()
	if err != nil {
		s.logger.Warn("assistant chat failed", "error", err, "origin", string(t.origin))
		s.cfg.Metrics.ObserveTurn(string(t.origin), "gateway_error")
		s.appendAssistant(connectionErrorMessage, false)
		s.state.EndBusy()
		snap = s.commitLocked()
		s.mu.Unlock()
		s.publish(snap)
		return nil
	}

	fallback, generation := s.applyReplyLocked(resp, affirmed)
	s.cfg.Metrics.ObserveTurn(string(t.origin), "reply")
	if !fallback || s.cfg.Extractor == nil {
		s.state.EndBusy()
		snap = s.commitLocked()
		s.mu.Unlock()
		s.publish(snap)
		return nil
	}

	// The form is already visible with defaults; extraction only improves the prefill.
	history = assistant.CloneHistory(s.state.History)
	snap = s.commitLocked()
	s.mu.Unlock()
	s.publish(snap)

	s.runFallbackExtraction(ctx, history, generation)
	return nil
}

// offeredPromptLocked resolves a prompt the visitor may pick right now: one
// from the catalog, not used before, while only the welcome has been posted.
func (s *Session) offeredPromptLocked(id string) (prompts.Prompt, error) {
	p, ok := s.tracker.Lookup(id)
	if !ok {
		return prompts.Prompt{}, ErrUnknownPrompt
	}
	for _, offered := range s.tracker.Offers(s.state.Counts()) {
		if offered.ID == id {
			return p, nil
		}
	}
	return prompts.Prompt{}, ErrPromptNotOffered
}

// Busy reports whether a chat turn or lead submission is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Busy
}

// shortCircuitLocked answers turns carrying a phone number or an explicit
// callback request without contacting the backend.
func (s *Session) shortCircuitLocked(t turn) bool {
	res := extract.Extract(t.text)

	if s.state.ShowContactForm && res.HasPhone() {
		s.state.OpenForm(contact.FromExtraction(res, contact.ConfidenceConfirmed), contact.Merger{DefaultSubject: contact.SubjectGeneral})
		s.appendAssistant(formUpdatedMessage, true)
		s.state.ExtendHistory(t.text, formUpdatedMessage)
		s.state.MarkAskedForContact()
		s.cfg.Metrics.ObserveTurn(string(t.origin), "phone_update")
		return true
	}

	if !res.HasPhone() && !res.ContactIntent {
		return false
	}

	reply := askForPhoneMessage
	outcome := "contact_intent"
	if res.HasPhone() {
		reply = phoneCapturedMessage
		outcome = "phone_captured"
		s.state.OpenForm(contact.FromExtraction(res, contact.ConfidenceExtracted), contact.Merger{DefaultSubject: contact.SubjectCallbackRequest})
	}
	s.appendAssistant(reply, res.HasPhone())
	s.state.ExtendHistory(t.text, reply)
	s.state.MarkAskedForContact()
	s.cfg.Metrics.ObserveTurn(string(t.origin), outcome)
	return true
}

// applyReplyLocked folds a successful chat reply into the state. It reports
// whether a fallback extraction should run and for which draft generation.
func (s *Session) applyReplyLocked(resp *assistant.ChatResponse, affirmed bool) (bool, uint64) {
	d := directive.Parse(resp.Message)
	if d.Dropped > 0 {
		s.logger.Warn("dropped malformed directive params", "dropped", d.Dropped)
	}
	show := d.Show || affirmed

	s.state.ReplaceHistory(resp.ConversationHistory)

	fallback := false
	if show {
		s.state.MarkAskedForContact()
		switch {
		case d.HasParams():
			s.state.OpenForm(contact.FromParams(d.Params), contact.Merger{DefaultSubject: contact.SubjectDirective})
			s.cfg.Metrics.ObserveDirective("params")
		default:
			s.state.OpenForm(contact.Draft{}, contact.Merger{DefaultSubject: contact.SubjectGeneral})
			fallback = true
			if d.Show {
				s.cfg.Metrics.ObserveDirective("bare")
			} else {
				s.cfg.Metrics.ObserveDirective("affirmation")
			}
		}
	}

	s.appendAssistant(d.Text, show)

	if !show && s.state.IdleEligible() {
		s.watchdog.Arm(s.cfg.IdleDelay, s.onIdle)
	}
	return fallback, s.state.DraftGeneration
}

func (s *Session) runFallbackExtraction(ctx context.Context, history []assistant.Turn, generation uint64) {
	started := time.Now()
	info, err := s.cfg.Extractor.ExtractInfo(ctx, history)
	s.cfg.Metrics.ObserveAssistantLatency("extract_info", time.Since(started).Seconds())

	s.mu.Lock()
	status := "merged"
	switch {
	case err != nil || info == nil:
		status = "error"
		s.logger.Info("fallback extraction unavailable", "error", err)
	case !s.state.MergeDraft(contact.Draft{
		Name:       info.Name,
		Phone:      info.Phone,
		Email:      info.Email,
		Subject:    info.Subject,
		Confidence: contact.ConfidenceExtracted,
	}, generation, contact.Merger{DefaultSubject: contact.SubjectGeneral}):
		status = "stale"
	}
	s.cfg.Metrics.ObserveFallback(status)
	s.state.EndBusy()
	snap := s.commitLocked()
	s.mu.Unlock()
	s.publish(snap)
}

func (s *Session) onIdle(token uint64) {
	s.mu.Lock()
	if s.closed || !s.watchdog.Claim(token) || !s.state.IdleEligible() {
		s.mu.Unlock()
		return
	}
	s.appendAssistant(idleNudgeMessage, false)
	s.state.MarkAskedForContact()
	s.cfg.Metrics.ObserveIdleNudge()
	snap := s.commitLocked()
	s.mu.Unlock()

	s.logger.Debug("idle nudge delivered")
	s.publish(snap)
}

// UpdateDraft applies a direct form edit. It is allowed while busy.
func (s *Session) UpdateDraft(field, value string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if !s.state.ShowContactForm || s.state.Draft == nil {
		s.mu.Unlock()
		return ErrFormClosed
	}
	if !s.state.Draft.Set(field, value) {
		s.mu.Unlock()
		return ErrUnknownField
	}
	snap := s.commitLocked()
	s.mu.Unlock()

	s.publish(snap)
	return nil
}

// CancelForm hides the form and discards the draft.
func (s *Session) CancelForm() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.state.ClearDraft()
	snap := s.commitLocked()
	s.mu.Unlock()

	s.publish(snap)
	return nil
}

// SubmitLead posts the draft. Without a phone nothing is sent. Delivery
// failures are reported in the transcript and keep the draft for a retry.
func (s *Session) SubmitLead(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state.Draft == nil || !s.state.Draft.Submittable() {
		s.mu.Unlock()
		return ErrPhoneRequired
	}
	if err := s.state.BeginBusy(); err != nil {
		s.mu.Unlock()
		return err
	}
	req := s.leadRequestLocked()
	snap := s.commitLocked()
	s.mu.Unlock()
	s.publish(snap)

	err := s.cfg.Submitter.Submit(ctx, req)

	s.mu.Lock()
	if err != nil {
		s.logger.Warn("lead submission failed", "error", err)
		s.cfg.Metrics.ObserveLeadSubmission("failure")
		s.appendAssistant(leadFailureMessage, false)
	} else {
		s.logger.Info("lead submitted")
		s.cfg.Metrics.ObserveLeadSubmission("success")
		s.state.ClearDraft()
		s.appendAssistant(leadSuccessMessage, false)
	}
	s.state.EndBusy()
	snap = s.commitLocked()
	s.mu.Unlock()

	s.publish(snap)
	return nil
}

func (s *Session) leadRequestLocked() leads.CreateLeadRequest {
	d := s.state.Draft
	return leads.CreateLeadRequest{
		Name:                orPlaceholder(d.Name, PlaceholderNotProvided),
		Phone:               d.Phone,
		Email:               orPlaceholder(d.Email, PlaceholderNotProvided),
		Source:              s.cfg.LeadSource,
		ConversationSummary: orPlaceholder(d.Subject, DefaultConversationSummary),
	}
}

func orPlaceholder(value, placeholder string) string {
	if strings.TrimSpace(value) == "" {
		return placeholder
	}
	return value
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Close cancels the idle timer. Later calls return ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.watchdog.Disarm()
}

func (s *Session) appendUser(text string) {
	s.state.AppendMessage(Message{Role: assistant.RoleUser, Content: text, Timestamp: s.cfg.Now()})
}

func (s *Session) appendAssistant(text string, showForm bool) {
	s.state.AppendMessage(Message{Role: assistant.RoleAssistant, Content: text, Timestamp: s.cfg.Now(), ShowForm: showForm})
}

func (s *Session) commitLocked() Snapshot {
	s.version++
	return s.snapshotLocked()
}

// publish delivers snapshots in version order; a snapshot overtaken by a
// newer one is dropped.
func (s *Session) publish(snap Snapshot) {
	if s.onChange == nil {
		return
	}
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	if snap.Version <= s.lastPublished {
		return
	}
	s.lastPublished = snap.Version
	s.onChange(snap)
}
