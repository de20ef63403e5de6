package redis

import (
	"context"
	"encoding/json"
	"time"

	"llm-chat-gateway/internal/domain/model"
	"llm-chat-gateway/internal/domain/ports/repository"
	"llm-chat-gateway/internal/infra/metrics"
)

var _ repository.ChatStore = (*chatStoreCacheDecorator)(nil)

// chatStoreCacheDecorator adds a read-through Redis cache in front of another
// ChatStore. Writes invalidate; only Get is cached, List always hits the
// inner store so cross-instance updates stay visible.
type chatStoreCacheDecorator struct {
	inner repository.ChatStore
	cache RedisClient
	ttl   time.Duration
}

func NewChatStoreCacheDecorator(inner repository.ChatStore, cache RedisClient, ttl time.Duration) repository.ChatStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &chatStoreCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func chatKey(id string) string { return "chat_session:" + id }

func (d *chatStoreCacheDecorator) List(ctx context.Context) ([]*model.ChatSession, error) {
	return d.inner.List(ctx)
}

func (d *chatStoreCacheDecorator) Create(ctx context.Context, s *model.ChatSession) error {
	if err := d.inner.Create(ctx, s); err != nil {
		return err
	}
	if b, err := json.Marshal(s); err == nil {
		_ = d.cache.Set(ctx, chatKey(s.ID), b, d.ttl)
	}
	return nil
}

func (d *chatStoreCacheDecorator) Get(ctx context.Context, id string) (*model.ChatSession, error) {
	if val, err := d.cache.Get(ctx, chatKey(id)); err == nil {
		var sess model.ChatSession
		if json.Unmarshal([]byte(val), &sess) == nil {
			metrics.IncCacheRequest("chat_session", "hit")
			return &sess, nil
		}
	}

	metrics.IncCacheRequest("chat_session", "miss")
	sess, err := d.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(sess); err == nil {
		_ = d.cache.Set(ctx, chatKey(id), b, d.ttl)
	}
	return sess, nil
}

func (d *chatStoreCacheDecorator) Update(ctx context.Context, s *model.ChatSession) error {
	_ = d.cache.Del(ctx, chatKey(s.ID))
	return d.inner.Update(ctx, s)
}

func (d *chatStoreCacheDecorator) Delete(ctx context.Context, id string) error {
	_ = d.cache.Del(ctx, chatKey(id))
	return d.inner.Delete(ctx, id)
}
