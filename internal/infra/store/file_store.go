// File: internal/infra/store/file_store.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"llm-chat-gateway/internal/domain"
	"llm-chat-gateway/internal/domain/model"
	"llm-chat-gateway/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

var _ repository.ChatStore = (*FileStore)(nil)

// FileStore keeps chat sessions in a single JSON file. Sessions live in
// memory; every mutation rewrites the file atomically (temp file + rename).
// Good enough for the single-process default deployment.
type FileStore struct {
	mu       sync.RWMutex
	path     string
	sessions map[string]*model.ChatSession
	log      *zerolog.Logger
}

func NewFileStore(path string, log *zerolog.Logger) (*FileStore, error) {
	s := &FileStore{
		path:     path,
		sessions: make(map[string]*model.ChatSession),
		log:      log,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	b, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil // fresh store
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", s.path, err)
	}

	var sessions []*model.ChatSession
	if err := json.Unmarshal(b, &sessions); err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}
	for _, sess := range sessions {
		s.sessions[sess.ID] = sess
	}
	s.log.Info().Int("sessions", len(s.sessions)).Str("path", s.path).Msg("chat store loaded")
	return nil
}

// persist writes the full session list. Caller holds the lock.
func (s *FileStore) persist() error {
	sessions := s.sortedLocked()
	b, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".chats-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// sortedLocked returns sessions newest-first. Caller holds the lock.
func (s *FileStore) sortedLocked() []*model.ChatSession {
	sessions := make([]*model.ChatSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
		}
		return sessions[i].ID < sessions[j].ID
	})
	return sessions
}

func (s *FileStore) List(ctx context.Context) ([]*model.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.ChatSession, 0, len(s.sessions))
	for _, sess := range s.sortedLocked() {
		out = append(out, clone(sess))
	}
	return out, nil
}

func (s *FileStore) Create(ctx context.Context, sess *model.ChatSession) error {
	if sess == nil || sess.ID == "" {
		return domain.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.sessions[sess.ID] = clone(sess)
	return s.persist()
}

func (s *FileStore) Get(ctx context.Context, id string) (*model.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(sess), nil
}

func (s *FileStore) Update(ctx context.Context, sess *model.ChatSession) error {
	if sess == nil || sess.ID == "" {
		return domain.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; !ok {
		return domain.ErrNotFound
	}
	s.sessions[sess.ID] = clone(sess)
	return s.persist()
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.sessions, id)
	return s.persist()
}

// clone deep-copies a session so callers never alias store-owned state.
func clone(in *model.ChatSession) *model.ChatSession {
	out := *in
	out.Messages = append([]model.Message(nil), in.Messages...)
	out.DeployedResources = make(map[string]model.ResourceConfig, len(in.DeployedResources))
	for k, v := range in.DeployedResources {
		out.DeployedResources[k] = v
	}
	return &out
}
