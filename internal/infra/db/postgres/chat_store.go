package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"llm-chat-gateway/internal/domain"
	"llm-chat-gateway/internal/domain/model"
	"llm-chat-gateway/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

var _ repository.ChatStore = (*ChatStore)(nil)

// ChatStore persists chat sessions in Postgres. Message history and deployed
// resources are stored as JSONB, matching the browser wire format.
type ChatStore struct {
	pool *pgxpool.Pool
}

func NewChatStore(pool *pgxpool.Pool) *ChatStore {
	return &ChatStore{pool: pool}
}

// EnsureSchema creates the backing table when it does not exist yet.
func (s *ChatStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS chat_sessions (
			id                 TEXT PRIMARY KEY,
			title              TEXT NOT NULL DEFAULT '',
			messages           JSONB NOT NULL DEFAULT '[]',
			deployed_resources JSONB NOT NULL DEFAULT '{}',
			created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("ensure chat_sessions schema: %w", err)
	}
	return nil
}

func (s *ChatStore) List(ctx context.Context) ([]*model.ChatSession, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, messages, deployed_resources, created_at
		FROM chat_sessions ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*model.ChatSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *ChatStore) Create(ctx context.Context, sess *model.ChatSession) error {
	if sess == nil || sess.ID == "" {
		return domain.ErrInvalidArgument
	}
	msgs, res, err := encodeSession(sess)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO chat_sessions (id, title, messages, deployed_resources, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`,
		sess.ID, sess.Title, msgs, res, sess.CreatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (s *ChatStore) Get(ctx context.Context, id string) (*model.ChatSession, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, title, messages, deployed_resources, created_at
		FROM chat_sessions WHERE id = $1`, id)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return sess, err
}

func (s *ChatStore) Update(ctx context.Context, sess *model.ChatSession) error {
	if sess == nil || sess.ID == "" {
		return domain.ErrInvalidArgument
	}
	msgs, res, err := encodeSession(sess)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE chat_sessions
		SET title = $2, messages = $3, deployed_resources = $4
		WHERE id = $1`,
		sess.ID, sess.Title, msgs, res)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *ChatStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chat_sessions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func encodeSession(sess *model.ChatSession) ([]byte, []byte, error) {
	msgs, err := json.Marshal(sess.Messages)
	if err != nil {
		return nil, nil, err
	}
	res, err := json.Marshal(sess.DeployedResources)
	if err != nil {
		return nil, nil, err
	}
	return msgs, res, nil
}

func scanSession(row pgx.Row) (*model.ChatSession, error) {
	var (
		sess model.ChatSession
		msgs []byte
		res  []byte
	)
	if err := row.Scan(&sess.ID, &sess.Title, &msgs, &res, &sess.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(msgs, &sess.Messages); err != nil {
		return nil, fmt.Errorf("decode messages for %s: %w", sess.ID, err)
	}
	if err := json.Unmarshal(res, &sess.DeployedResources); err != nil {
		return nil, fmt.Errorf("decode resources for %s: %w", sess.ID, err)
	}
	return &sess, nil
}
