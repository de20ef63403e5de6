package repository

import (
	"context"

	"llm-chat-gateway/internal/domain/model"
)

// ChatStore persists chat sessions. Best-effort, single-process semantics:
// implementations may lose writes on crash but must never corrupt reads.
type ChatStore interface {
	List(ctx context.Context) ([]*model.ChatSession, error)
	Create(ctx context.Context, s *model.ChatSession) error
	Get(ctx context.Context, id string) (*model.ChatSession, error)
	Update(ctx context.Context, s *model.ChatSession) error
	Delete(ctx context.Context, id string) error
}
