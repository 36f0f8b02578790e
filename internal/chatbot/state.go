package chatbot

import (
	"time"

	"github.com/wolfman30/lead-chat-agent/internal/assistant"
	"github.com/wolfman30/lead-chat-agent/internal/contact"
)

// Message is one transcript entry. ShowForm marks the message the contact
// form renders under.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	ShowForm  bool      `json:"showForm,omitempty"`
}

// State holds every flag of a chat session. All mutation goes through the
// transition methods so the form and one-shot rules live in one place.
// It is not safe for concurrent use; Session guards it with its mutex.
type State struct {
	Messages []Message
	// History is the backend-facing conversation, replaced by every chat reply.
	History []assistant.Turn
	// Draft is nil while no contact draft exists.
	Draft *contact.Draft
	// DraftGeneration increments every time the draft is cleared.
	DraftGeneration    uint64
	HasAskedForContact bool
	ShowContactForm    bool
	Busy               bool
}

// AppendMessage adds to the transcript and returns the new message index.
func (s *State) AppendMessage(m Message) int {
	s.Messages = append(s.Messages, m)
	return len(s.Messages) - 1
}

// ReplaceHistory adopts the backend's history wholesale.
func (s *State) ReplaceHistory(history []assistant.Turn) {
	s.History = assistant.CloneHistory(history)
}

// ExtendHistory appends a locally answered exchange that never reached the backend.
func (s *State) ExtendHistory(userText, assistantText string) {
	s.History = append(s.History,
		assistant.Turn{Role: assistant.RoleUser, Content: userText},
		assistant.Turn{Role: assistant.RoleAssistant, Content: assistantText},
	)
}

// MarkAskedForContact sets the one-shot flag. It is never cleared.
func (s *State) MarkAskedForContact() {
	s.HasAskedForContact = true
}

// OpenForm merges partial into the draft (creating it if needed) and shows the form.
func (s *State) OpenForm(partial contact.Draft, merger contact.Merger) {
	var current contact.Draft
	if s.Draft != nil {
		current = *s.Draft
	}
	merged := merger.Merge(current, partial)
	s.Draft = &merged
	s.ShowContactForm = true
}

// MergeDraft merges partial into the current draft if generation still
// matches. Late results for a cleared draft report false and change nothing.
func (s *State) MergeDraft(partial contact.Draft, generation uint64, merger contact.Merger) bool {
	if s.Draft == nil || generation != s.DraftGeneration {
		return false
	}
	merged := merger.Merge(*s.Draft, partial)
	s.Draft = &merged
	return true
}

// ClearDraft drops the draft and hides the form.
func (s *State) ClearDraft() {
	s.Draft = nil
	s.ShowContactForm = false
	s.DraftGeneration++
}

// BeginBusy claims the session for one network round trip.
func (s *State) BeginBusy() error {
	if s.Busy {
		return ErrBusy
	}
	s.Busy = true
	return nil
}

func (s *State) EndBusy() {
	s.Busy = false
}

// IdleEligible reports whether an idle nudge may be scheduled or delivered.
func (s *State) IdleEligible() bool {
	return len(s.Messages) > 1 && !s.ShowContactForm && !s.HasAskedForContact
}

// FormMessageIndex is the most recent message flagged ShowForm while the form
// is open, or -1.
func (s *State) FormMessageIndex() int {
	if !s.ShowContactForm {
		return -1
	}
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].ShowForm {
			return i
		}
	}
	return -1
}

// LastAssistantMessage returns the content of the latest assistant message.
func (s *State) LastAssistantMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == assistant.RoleAssistant {
			return s.Messages[i].Content
		}
	}
	return ""
}

// Counts returns the number of assistant and user messages.
func (s *State) Counts() (assistantMessages, userMessages int) {
	for _, m := range s.Messages {
		switch m.Role {
		case assistant.RoleAssistant:
			assistantMessages++
		case assistant.RoleUser:
			userMessages++
		}
	}
	return assistantMessages, userMessages
}

func (s *State) clone() State {
	out := *s
	out.Messages = append([]Message(nil), s.Messages...)
	out.History = assistant.CloneHistory(s.History)
	if s.Draft != nil {
		d := *s.Draft
		out.Draft = &d
	}
	return out
}
