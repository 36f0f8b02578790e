package leads

import (
	"strings"
	"time"
)

// Lead is a confirmed contact request captured by the chat agent.
type Lead struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Phone               string    `json:"phone"`
	Email               string    `json:"email"`
	Source              string    `json:"source"`
	ConversationSummary string    `json:"conversationSummary"`
	CreatedAt           time.Time `json:"createdAt"`
}

// CreateLeadRequest is the body of POST /api/leads. The chat session sends it
// with placeholders in place of empty optional fields.
type CreateLeadRequest struct {
	Name                string `json:"name"`
	Phone               string `json:"phone"`
	Email               string `json:"email"`
	Source              string `json:"source"`
	ConversationSummary string `json:"conversationSummary"`
}

// Validate validates the create lead request
func (r *CreateLeadRequest) Validate() error {
	if strings.TrimSpace(r.Phone) == "" {
		return ErrMissingPhone
	}
	if len(r.ConversationSummary) > maxSummaryLength {
		return ErrSummaryTooLong
	}
	return nil
}

const maxSummaryLength = 4000

// ListLeadsFilter pages through stored leads, newest first.
type ListLeadsFilter struct {
	Limit  int
	Offset int
}
