package stream

import (
	"context"
	"testing"
	"time"

	"llm-chat-gateway/internal/domain"
	"llm-chat-gateway/internal/domain/model"
)

func TestRegistry_OpenLookupRemove(t *testing.T) {
	t.Parallel()

	r := NewRegistry(4)
	if _, ok := r.Lookup("j1"); ok {
		t.Fatalf("expected no stream before Open")
	}

	if err := r.Open("j1"); err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if err := r.Open("j1"); err != domain.ErrAlreadyExists {
		t.Fatalf("expected ErrAlreadyExists got %v", err)
	}
	if _, ok := r.Lookup("j1"); !ok {
		t.Fatalf("expected stream after Open")
	}

	r.Remove("j1")
	if _, ok := r.Lookup("j1"); ok {
		t.Fatalf("expected no stream after Remove")
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}
}

func TestRegistry_PublishOrderAndTerminal(t *testing.T) {
	t.Parallel()

	r := NewRegistry(8)
	if err := r.Open("j1"); err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	ctx := context.Background()
	for _, text := range []string{"a", "b", "c"} {
		if err := r.Publish(ctx, "j1", model.ChunkEvent(text)); err != nil {
			t.Fatalf("Publish(%s) returned error: %v", text, err)
		}
	}
	if err := r.Publish(ctx, "j1", model.DoneEvent()); err != nil {
		t.Fatalf("Publish(done) returned error: %v", err)
	}

	// Nothing may follow the terminal event.
	if err := r.Publish(ctx, "j1", model.ChunkEvent("late")); err != domain.ErrStreamClosed {
		t.Fatalf("expected ErrStreamClosed got %v", err)
	}

	st, _ := r.Lookup("j1")
	want := []model.OutputEvent{
		model.ChunkEvent("a"), model.ChunkEvent("b"), model.ChunkEvent("c"), model.DoneEvent(),
	}
	for i, w := range want {
		got := <-st.Events()
		if got != w {
			t.Fatalf("event %d: expected %+v got %+v", i, w, got)
		}
	}
}

func TestRegistry_PublishUnknownJob(t *testing.T) {
	t.Parallel()

	r := NewRegistry(4)
	err := r.Publish(context.Background(), "nope", model.ChunkEvent("x"))
	if err != domain.ErrUnknownJob {
		t.Fatalf("expected ErrUnknownJob got %v", err)
	}
}

func TestRegistry_PublishBlocksUntilCtxDone(t *testing.T) {
	t.Parallel()

	r := NewRegistry(1)
	if err := r.Open("j1"); err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	ctx := context.Background()
	if err := r.Publish(ctx, "j1", model.ChunkEvent("fill")); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	// Buffer full and nobody draining: publish must respect cancellation.
	cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := r.Publish(cctx, "j1", model.ChunkEvent("stuck")); err != context.DeadlineExceeded {
		t.Fatalf("expected DeadlineExceeded got %v", err)
	}
}

func TestRegistry_CancelJob(t *testing.T) {
	t.Parallel()

	r := NewRegistry(4)
	if err := r.Open("j1"); err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.BindCancel("j1", cancel)

	r.CancelJob("j1")
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatalf("cancel hook did not fire")
	}

	// Firing again is a no-op.
	r.CancelJob("j1")
	r.CancelJob("unknown")
}

func TestRegistry_SweepRemovesStaleEntries(t *testing.T) {
	t.Parallel()

	r := NewRegistry(4)
	if err := r.Open("old"); err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	cancelled := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	r.BindCancel("old", cancel)
	go func() {
		<-ctx.Done()
		close(cancelled)
	}()

	time.Sleep(20 * time.Millisecond)
	if n := r.Sweep(time.Hour); n != 0 {
		t.Fatalf("expected no sweep for young entry, removed %d", n)
	}
	if n := r.Sweep(10 * time.Millisecond); n != 1 {
		t.Fatalf("expected 1 swept entry, removed %d", n)
	}
	if _, ok := r.Lookup("old"); ok {
		t.Fatalf("expected entry gone after sweep")
	}

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatalf("sweep did not cancel the in-flight job")
	}
}
