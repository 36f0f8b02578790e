package events

import "time"

// TypeLeadCreated is emitted once per stored lead.
const TypeLeadCreated = "lead.created.v1"

type LeadCreatedV1 struct {
	EventID             string    `json:"event_id"`
	LeadID              string    `json:"lead_id"`
	Name                string    `json:"name"`
	Phone               string    `json:"phone"`
	Email               string    `json:"email"`
	Source              string    `json:"source"`
	ConversationSummary string    `json:"conversation_summary"`
	CreatedAt           time.Time `json:"created_at"`
}
