package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatSession is a conversation scoped to a fixed set of files.
// An empty FileIDs means ungrounded chat.
type ChatSession struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	FileIDs   []string  `json:"file_ids"`
	Messages  []Message `json:"messages"`
}
