package domain

import "time"

// Role identifies who produced a chat turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultSessionID is the session id offered to a user who has not picked one
const DefaultSessionID = "default_session"

// Turn is one message in a session's history
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// UserTurn builds a user turn
func UserTurn(text string) Turn {
	return Turn{Role: RoleUser, Text: text}
}

// AssistantTurn builds an assistant turn
func AssistantTurn(text string) Turn {
	return Turn{Role: RoleAssistant, Text: text}
}

// Source represents a citation source
type Source struct {
	Filename   string  `json:"filename"`
	Page       int     `json:"page"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// ChatRequest is the request to send a chat message
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message" binding:"required"`
}

// ChatResponse is the response from a chat message
type ChatResponse struct {
	SessionID          string   `json:"session_id"`
	Answer             string   `json:"answer"`
	StandaloneQuestion string   `json:"standalone_question"`
	Sources            []Source `json:"sources,omitempty"`
}

// HistoryResponse lists the turns of one session
type HistoryResponse struct {
	SessionID string `json:"session_id"`
	Turns     []Turn `json:"turns"`
}
