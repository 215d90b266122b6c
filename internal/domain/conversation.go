package domain

// Conversation roles as supplied by the caller.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ConversationTurn is one message of the caller-supplied history.
// The discovery core reads history, never mutates it.
type ConversationTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}
