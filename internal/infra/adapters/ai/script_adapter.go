// File: internal/infra/adapters/ai/script_adapter.go
package ai

import (
	"context"
	"strings"
	"time"

	"llm-chat-gateway/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*ScriptAdapter)(nil)

// ScriptAdapter implements adapter.AIServiceAdapter for local/dev runs and
// tests. It replays a fixed sequence of chunks instead of calling a real
// endpoint, optionally failing or delaying to exercise error paths.
type ScriptAdapter struct {
	Chunks []string      // emitted in order; default one canned reply
	Err    error         // returned after emitting Chunks, if set
	Delay  time.Duration // pause before each chunk
	Models []string
}

func NewScriptAdapter() *ScriptAdapter {
	return &ScriptAdapter{
		Chunks: []string{"This is a scripted reply."},
		Models: []string{"script-model"},
	}
}

func (a *ScriptAdapter) ListModels(ctx context.Context) ([]string, error) {
	if len(a.Models) == 0 {
		return []string{"script-model"}, nil
	}
	return a.Models, nil
}

// CountTokens approximates one token per whitespace-separated word.
func (a *ScriptAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	n := 0
	for _, m := range messages {
		n += len(strings.Fields(m.Content))
	}
	return n, nil
}

func (a *ScriptAdapter) StreamChat(ctx context.Context, req adapter.ChatRequest, emit func(delta string) error) error {
	// Drive the tool runner once so wiring above it stays honest in dev.
	if len(req.Tools) > 0 && req.RunTool != nil {
		_ = req.RunTool(ctx, adapter.ToolCall{
			ID:        "script-call-0",
			Name:      req.Tools[0].Name,
			Arguments: "{}",
		})
	}

	for _, chunk := range a.Chunks {
		if a.Delay > 0 {
			select {
			case <-time.After(a.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(chunk); err != nil {
			return err
		}
	}
	return a.Err
}
