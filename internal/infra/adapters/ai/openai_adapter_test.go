package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"llm-chat-gateway/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

// fakeUpstream is a minimal OpenAI-compatible endpoint: streaming chat
// completions, a one-round tool call flow, and a model listing.
func fakeUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[
			{"id":"m-alpha","object":"model","created":1,"owned_by":"test"},
			{"id":"m-beta","object":"model","created":2,"owned_by":"test"}
		]}`)
	})

	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Stream   bool `json:"stream"`
			Messages []struct {
				Role    string `json:"role"`
				Content any    `json:"content"`
			} `json:"messages"`
			Tools []any `json:"tools"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if req.Stream {
			w.Header().Set("Content-Type", "text/event-stream")
			flusher := w.(http.Flusher)
			for _, delta := range []string{"Hel", "lo"} {
				fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"m-alpha\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q},\"finish_reason\":null}]}\n\n", delta)
				flusher.Flush()
			}
			fmt.Fprint(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"m-alpha\",\"choices\":[{\"index\":0,\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
			fmt.Fprint(w, "data: [DONE]\n\n")
			flusher.Flush()
			return
		}

		// Non-streaming: request a tool call first, answer once the tool
		// result message comes back.
		sawToolResult := false
		for _, m := range req.Messages {
			if m.Role == "tool" {
				sawToolResult = true
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if len(req.Tools) > 0 && !sawToolResult {
			fmt.Fprint(w, `{"id":"c2","object":"chat.completion","created":1,"model":"m-alpha",
				"choices":[{"index":0,"finish_reason":"tool_calls","message":{
					"role":"assistant","content":null,
					"tool_calls":[{"id":"call_1","type":"function",
						"function":{"name":"list_files","arguments":"{\"resource_id\":\"r1\"}"}}]}}]}`)
			return
		}
		fmt.Fprint(w, `{"id":"c3","object":"chat.completion","created":1,"model":"m-alpha",
			"choices":[{"index":0,"finish_reason":"stop","message":{
				"role":"assistant","content":"There are 2 files."}}]}`)
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func newAdapter(t *testing.T, baseURL string) *OpenAIAdapter {
	t.Helper()
	log := zerolog.Nop()
	a, err := NewOpenAIAdapter("sk-test", baseURL, "m-alpha", 10*time.Second, 4, &log)
	if err != nil {
		t.Fatalf("NewOpenAIAdapter returned error: %v", err)
	}
	return a
}

func TestOpenAIAdapter_RequiresKey(t *testing.T) {
	t.Parallel()
	log := zerolog.Nop()
	if _, err := NewOpenAIAdapter("", "", "m", 0, 0, &log); err == nil {
		t.Fatalf("expected error for empty api key")
	}
}

func TestOpenAIAdapter_StreamChat(t *testing.T) {
	t.Parallel()
	ts := fakeUpstream(t)
	a := newAdapter(t, ts.URL)

	var got []string
	err := a.StreamChat(t.Context(), adapter.ChatRequest{
		Model:    "m-alpha",
		Messages: []adapter.Message{{Role: "user", Content: "greet"}},
	}, func(delta string) error {
		got = append(got, delta)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamChat returned error: %v", err)
	}
	if strings.Join(got, "") != "Hello" {
		t.Fatalf("expected streamed 'Hello', got %+v", got)
	}
}

func TestOpenAIAdapter_ToolLoop(t *testing.T) {
	t.Parallel()
	ts := fakeUpstream(t)
	a := newAdapter(t, ts.URL)

	var toolCalls []adapter.ToolCall
	var got []string
	err := a.StreamChat(t.Context(), adapter.ChatRequest{
		Model:    "m-alpha",
		Messages: []adapter.Message{{Role: "user", Content: "how many files?"}},
		Tools: []adapter.ToolDefinition{{
			Name:        "list_files",
			Description: "List files in a folder.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"resource_id": map[string]any{"type": "string"}},
			},
		}},
		RunTool: func(ctx context.Context, call adapter.ToolCall) string {
			toolCalls = append(toolCalls, call)
			return `{"entries":[]}`
		},
	}, func(delta string) error {
		got = append(got, delta)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamChat returned error: %v", err)
	}

	if len(toolCalls) != 1 {
		t.Fatalf("expected 1 tool call got %+v", toolCalls)
	}
	if toolCalls[0].Name != "list_files" || !strings.Contains(toolCalls[0].Arguments, "r1") {
		t.Fatalf("unexpected tool call %+v", toolCalls[0])
	}
	if len(got) != 1 || got[0] != "There are 2 files." {
		t.Fatalf("expected final content as single chunk, got %+v", got)
	}
}

func TestOpenAIAdapter_ToolsWithoutRunner(t *testing.T) {
	t.Parallel()
	ts := fakeUpstream(t)
	a := newAdapter(t, ts.URL)

	err := a.StreamChat(t.Context(), adapter.ChatRequest{
		Model:    "m-alpha",
		Messages: []adapter.Message{{Role: "user", Content: "x"}},
		Tools:    []adapter.ToolDefinition{{Name: "list_files"}},
	}, func(string) error { return nil })
	if err == nil {
		t.Fatalf("expected error when tools come without a runner")
	}
}

func TestOpenAIAdapter_ListModels(t *testing.T) {
	t.Parallel()
	ts := fakeUpstream(t)
	a := newAdapter(t, ts.URL)

	models, err := a.ListModels(t.Context())
	if err != nil {
		t.Fatalf("ListModels returned error: %v", err)
	}
	if len(models) != 2 || models[0] != "m-alpha" || models[1] != "m-beta" {
		t.Fatalf("unexpected models %+v", models)
	}
}
