// File: internal/infra/queue/queue.go
package queue

import (
	"context"

	"llm-chat-gateway/internal/domain"
	"llm-chat-gateway/internal/domain/model"
	"llm-chat-gateway/internal/infra/metrics"
)

// Queue is the FIFO hand-off between the HTTP layer and the worker pool.
// Bounded: Enqueue fails fast when saturated so the HTTP server never blocks
// on a slow consumer. Each job is delivered to exactly one Dequeue caller.
type Queue struct {
	jobs chan *model.Job
}

func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue{jobs: make(chan *model.Job, capacity)}
}

// Enqueue makes a pending job visible to one future Dequeue.
func (q *Queue) Enqueue(job *model.Job) error {
	if job == nil {
		return domain.ErrInvalidArgument
	}
	select {
	case q.jobs <- job:
		metrics.SetQueueDepth(len(q.jobs))
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Dequeue blocks until a job is available or ctx is done.
func (q *Queue) Dequeue(ctx context.Context) (*model.Job, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case job := <-q.jobs:
		metrics.SetQueueDepth(len(q.jobs))
		return job, nil
	}
}

// Len reports jobs currently waiting.
func (q *Queue) Len() int { return len(q.jobs) }
