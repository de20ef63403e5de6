// File: internal/infra/stream/registry.go
package stream

import (
	"context"
	"sync"
	"time"

	"llm-chat-gateway/internal/domain"
	"llm-chat-gateway/internal/domain/model"

	"github.com/rs/zerolog"
)

// Stream is the ordered output channel of one job: the worker publishes into
// it, exactly one SSE relay drains it.
type Stream struct {
	events chan model.OutputEvent
}

// Events exposes the receive side for the relay.
func (s *Stream) Events() <-chan model.OutputEvent { return s.events }

type entry struct {
	st     *Stream
	cancel context.CancelFunc // aborts the worker's upstream call
	done   bool               // terminal event published
	opened time.Time
}

// Registry is the process-wide job id -> output channel table. Starts empty;
// entries are created at submission and dropped once the relay drains a
// terminal event (or the janitor sweeps an abandoned one).
type Registry struct {
	mu      sync.Mutex
	streams map[string]*entry
	buffer  int
}

func NewRegistry(buffer int) *Registry {
	if buffer <= 0 {
		buffer = 256
	}
	return &Registry{streams: make(map[string]*entry), buffer: buffer}
}

// Open allocates the output channel for a freshly submitted job.
func (r *Registry) Open(jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.streams[jobID]; ok {
		return domain.ErrAlreadyExists
	}
	r.streams[jobID] = &entry{
		st:     &Stream{events: make(chan model.OutputEvent, r.buffer)},
		opened: time.Now(),
	}
	return nil
}

// Lookup returns the stream for a job id, if it is still registered.
func (r *Registry) Lookup(jobID string) (*Stream, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.streams[jobID]
	if !ok {
		return nil, false
	}
	return e.st, true
}

// Publish appends one event to the job's channel, blocking only when the
// buffer is full. Events after a terminal one are dropped; publishing to a
// removed job returns ErrUnknownJob so the producer can stop early.
func (r *Registry) Publish(ctx context.Context, jobID string, ev model.OutputEvent) error {
	r.mu.Lock()
	e, ok := r.streams[jobID]
	if !ok {
		r.mu.Unlock()
		return domain.ErrUnknownJob
	}
	if e.done {
		r.mu.Unlock()
		return domain.ErrStreamClosed
	}
	if ev.Terminal() {
		e.done = true
	}
	ch := e.st.events
	r.mu.Unlock()

	select {
	case ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BindCancel registers the abort hook for the job's in-flight upstream call.
func (r *Registry) BindCancel(jobID string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.streams[jobID]; ok {
		e.cancel = cancel
	}
}

// CancelJob fires the abort hook, if any. Called by the relay when the
// browser disconnects before the terminal event.
func (r *Registry) CancelJob(jobID string) {
	r.mu.Lock()
	e, ok := r.streams[jobID]
	var cancel context.CancelFunc
	if ok && e.cancel != nil {
		cancel = e.cancel
		e.cancel = nil
	}
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Remove drops a drained job. Subsequent Lookup and Publish calls fail.
func (r *Registry) Remove(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.streams, jobID)
}

// Len reports registered streams.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}

// Sweep removes entries older than maxAge, cancelling any still-running
// upstream call. Covers jobs whose stream was never opened by a browser.
func (r *Registry) Sweep(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	var cancels []context.CancelFunc

	r.mu.Lock()
	removed := 0
	for id, e := range r.streams {
		if e.opened.Before(cutoff) {
			if e.cancel != nil {
				cancels = append(cancels, e.cancel)
			}
			delete(r.streams, id)
			removed++
		}
	}
	r.mu.Unlock()

	for _, c := range cancels {
		c()
	}
	return removed
}

// RunJanitor periodically sweeps abandoned streams until ctx is done.
func (r *Registry) RunJanitor(ctx context.Context, interval, maxAge time.Duration, log *zerolog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := r.Sweep(maxAge); n > 0 {
				log.Info().Int("count", n).Msg("swept abandoned job streams")
			}
		}
	}
}
