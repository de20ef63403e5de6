package worker

import (
	"context"
	"sync"

	"llm-chat-gateway/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*fakeAI)(nil)

// fakeAI scripts per-model behavior so tests can drive success and failure
// paths deterministically. It records every request it receives.
type fakeAI struct {
	mu          sync.Mutex
	requests    []adapter.ChatRequest
	toolResults []string

	chunks map[string][]string // model -> deltas to emit
	errs   map[string]error    // model -> error after emitting
}

func newFakeAI() *fakeAI {
	return &fakeAI{
		chunks: map[string][]string{},
		errs:   map[string]error{},
	}
}

func (f *fakeAI) ListModels(ctx context.Context) ([]string, error) {
	return []string{"fake-model"}, nil
}

func (f *fakeAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return len(messages), nil
}

func (f *fakeAI) StreamChat(ctx context.Context, req adapter.ChatRequest, emit func(delta string) error) error {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	chunks := f.chunks[req.Model]
	err := f.errs[req.Model]
	f.mu.Unlock()

	if len(req.Tools) > 0 && req.RunTool != nil {
		result := req.RunTool(ctx, adapter.ToolCall{ID: "t0", Name: req.Tools[0].Name, Arguments: `{}`})
		f.mu.Lock()
		f.toolResults = append(f.toolResults, result)
		f.mu.Unlock()
	}

	for _, c := range chunks {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if eerr := emit(c); eerr != nil {
			return eerr
		}
	}
	return err
}

func (f *fakeAI) lastRequest() (adapter.ChatRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return adapter.ChatRequest{}, false
	}
	return f.requests[len(f.requests)-1], true
}
