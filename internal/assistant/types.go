package assistant

// Conversation roles shared by the transcript and the backend history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one entry of the backend-facing conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message             string `json:"message"`
	ConversationHistory []Turn `json:"conversationHistory"`
}

// ChatResponse is the reply of POST /api/chat. Message may embed a form directive.
type ChatResponse struct {
	Message             string `json:"message"`
	ConversationHistory []Turn `json:"conversationHistory"`
}

// ExtractRequest is the body of POST /api/extract-info.
type ExtractRequest struct {
	ConversationHistory []Turn `json:"conversationHistory"`
}

// ExtractResponse is the reply of POST /api/extract-info.
type ExtractResponse struct {
	Success bool          `json:"success"`
	Data    ExtractedInfo `json:"data"`
}

// ExtractedInfo is the contact data the backend pulled out of a conversation.
type ExtractedInfo struct {
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Subject string `json:"subject,omitempty"`
}

// Usable reports whether at least one contact field is present.
func (i ExtractedInfo) Usable() bool {
	return i.Name != "" || i.Phone != "" || i.Email != ""
}

// CloneHistory returns a copy that is never nil, so it encodes as [].
func CloneHistory(history []Turn) []Turn {
	out := make([]Turn, len(history))
	copy(out, history)
	return out
}
