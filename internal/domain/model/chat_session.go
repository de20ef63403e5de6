package model

import "time"

// ResourceConfig describes one deployed resource attached to a chat session.
// The core treats it as opaque context; drivers interpret it by Type.
type ResourceConfig struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
	Path string `json:"path,omitempty"`
}

// ChatSession is a stored conversation plus its attached resources.
// The JSON shape is the wire format the browser reads and writes.
type ChatSession struct {
	ID                string                    `json:"id"`
	Title             string                    `json:"title"`
	Messages          []Message                 `json:"messages"`
	CreatedAt         time.Time                 `json:"createdAt"`
	DeployedResources map[string]ResourceConfig `json:"deployed_resources"`
}

func NewChatSession(id, title string, createdAt time.Time) *ChatSession {
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return &ChatSession{
		ID:                id,
		Title:             title,
		Messages:          make([]Message, 0, 8),
		CreatedAt:         createdAt,
		DeployedResources: map[string]ResourceConfig{},
	}
}

func (s *ChatSession) AddMessage(role, content string) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content})
}

func (s *ChatSession) GetRecentMessages(n int) []Message {
	if n <= 0 || len(s.Messages) <= n {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}
