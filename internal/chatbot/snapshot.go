package chatbot

import (
	"time"

	"github.com/wolfman30/lead-chat-agent/internal/assistant"
	"github.com/wolfman30/lead-chat-agent/internal/contact"
	"github.com/wolfman30/lead-chat-agent/internal/prompts"
)

// Snapshot is the serializable view of a session: what the widget renders
// and what the store persists. Version grows with every change.
type Snapshot struct {
	ID                 string           `json:"id"`
	Version            uint64           `json:"version"`
	Messages           []Message        `json:"messages"`
	History            []assistant.Turn `json:"conversationHistory"`
	Draft              *contact.Draft   `json:"draft,omitempty"`
	DraftGeneration    uint64           `json:"draftGeneration"`
	HasAskedForContact bool             `json:"hasAskedForContact"`
	ShowContactForm    bool             `json:"showContactForm"`
	// FormMessageIndex is the message the form renders under, or -1.
	FormMessageIndex int              `json:"formMessageIndex"`
	CanSubmit        bool             `json:"canSubmit"`
	Busy             bool             `json:"busy"`
	Prompts          []prompts.Prompt `json:"prompts"`
	UsedPrompts      []string         `json:"usedPrompts"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

func (s *Session) snapshotLocked() Snapshot {
	st := s.state.clone()
	assistantCount, userCount := st.Counts()
	offers := s.tracker.Offers(assistantCount, userCount)
	if offers == nil {
		offers = []prompts.Prompt{}
	}
	if st.Messages == nil {
		st.Messages = []Message{}
	}
	return Snapshot{
		ID:                 s.id,
		Version:            s.version,
		Messages:           st.Messages,
		History:            st.History,
		Draft:              st.Draft,
		DraftGeneration:    st.DraftGeneration,
		HasAskedForContact: st.HasAskedForContact,
		ShowContactForm:    st.ShowContactForm,
		FormMessageIndex:   st.FormMessageIndex(),
		CanSubmit:          st.Draft != nil && st.Draft.Submittable() && !st.Busy,
		Busy:               st.Busy,
		Prompts:            offers,
		UsedPrompts:        s.tracker.Used(),
		UpdatedAt:          s.cfg.Now(),
	}
}
