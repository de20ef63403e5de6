package resource

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"llm-chat-gateway/internal/domain/model"
	"llm-chat-gateway/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

func newFolderFixture(t *testing.T) (*Registry, string) {
	t.Helper()
	log := zerolog.Nop()
	reg := NewRegistry(&log)
	reg.Register(NewFolderDriver(&log))

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("MkdirAll returned error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.txt"), []byte("bee"), 0o644); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("ay"), 0o644); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}
	return reg, dir
}

func listCall(resourceID, subpath string) adapter.ToolCall {
	args := map[string]string{"resource_id": resourceID}
	if subpath != "" {
		args["subpath"] = subpath
	}
	b, _ := json.Marshal(args)
	return adapter.ToolCall{ID: "t1", Name: "list_files", Arguments: string(b)}
}

func TestFolderDriver_ListFiles(t *testing.T) {
	t.Parallel()

	reg, dir := newFolderFixture(t)
	resources := map[string]model.ResourceConfig{
		"r1": {Type: "folder", Name: "docs", Path: dir},
	}

	result := reg.ExecuteTool(context.Background(), listCall("r1", ""), resources)
	var payload struct {
		Path    string `json:"path"`
		Entries []struct {
			Name string `json:"name"`
			Type string `json:"type"`
			Size *int64 `json:"size"`
		} `json:"entries"`
	}
	if err := json.Unmarshal([]byte(result), &payload); err != nil {
		t.Fatalf("bad result %q: %v", result, err)
	}
	if payload.Path != "." {
		t.Fatalf("expected path '.', got %q", payload.Path)
	}
	if len(payload.Entries) != 3 {
		t.Fatalf("expected 3 entries got %+v", payload.Entries)
	}
	// Directories first, then files sorted by name.
	if payload.Entries[0].Name != "sub" || payload.Entries[0].Type != "directory" {
		t.Fatalf("expected directory first, got %+v", payload.Entries[0])
	}
	if payload.Entries[1].Name != "a.txt" || payload.Entries[2].Name != "b.txt" {
		t.Fatalf("files not sorted: %+v", payload.Entries)
	}
	if payload.Entries[1].Size == nil || *payload.Entries[1].Size != 2 {
		t.Fatalf("expected file size, got %+v", payload.Entries[1])
	}
}

func TestFolderDriver_PathConfinement(t *testing.T) {
	t.Parallel()

	reg, dir := newFolderFixture(t)
	resources := map[string]model.ResourceConfig{
		"r1": {Type: "folder", Name: "docs", Path: dir},
	}

	for _, escape := range []string{"..", "../..", "sub/../../etc"} {
		result := reg.ExecuteTool(context.Background(), listCall("r1", escape), resources)
		if !strings.Contains(result, "Access denied") {
			t.Fatalf("escape %q not denied: %q", escape, result)
		}
	}

	// Inside the root is fine.
	result := reg.ExecuteTool(context.Background(), listCall("r1", "sub"), resources)
	if strings.Contains(result, "error") {
		t.Fatalf("legitimate subpath rejected: %q", result)
	}
}

func TestFolderDriver_BadCalls(t *testing.T) {
	t.Parallel()

	reg, dir := newFolderFixture(t)
	resources := map[string]model.ResourceConfig{
		"r1": {Type: "folder", Name: "docs", Path: dir},
	}
	ctx := context.Background()

	t.Run("missing resource_id", func(t *testing.T) {
		result := reg.ExecuteTool(ctx, adapter.ToolCall{Name: "list_files", Arguments: `{}`}, resources)
		if !strings.Contains(result, "resource_id") {
			t.Fatalf("expected missing-parameter error, got %q", result)
		}
	})

	t.Run("unknown resource", func(t *testing.T) {
		result := reg.ExecuteTool(ctx, listCall("ghost", ""), resources)
		if !strings.Contains(result, "No folder path configured") {
			t.Fatalf("expected config error, got %q", result)
		}
	})

	t.Run("missing subpath", func(t *testing.T) {
		result := reg.ExecuteTool(ctx, listCall("r1", "nope"), resources)
		if !strings.Contains(result, "does not exist") {
			t.Fatalf("expected not-exist error, got %q", result)
		}
	})

	t.Run("unknown function", func(t *testing.T) {
		result := reg.ExecuteTool(ctx, adapter.ToolCall{Name: "rm_rf", Arguments: `{}`}, resources)
		if !strings.Contains(result, "Unknown function") {
			t.Fatalf("expected unknown-function error, got %q", result)
		}
	})
}

func TestRegistry_SystemPromptAndTools(t *testing.T) {
	t.Parallel()

	reg, dir := newFolderFixture(t)
	resources := map[string]model.ResourceConfig{
		"r2": {Type: "folder", Name: "second", Path: dir},
		"r1": {Type: "folder", Name: "first", Path: dir},
		"rx": {Type: "martian", Name: "opaque"},
	}

	prompt := reg.BuildSystemPrompt(resources)
	// Stable id order regardless of map iteration.
	if !strings.Contains(prompt, "first") || !strings.Contains(prompt, "second") {
		t.Fatalf("prompt missing resources: %q", prompt)
	}
	if strings.Index(prompt, "first") > strings.Index(prompt, "second") {
		t.Fatalf("prompt not in id order: %q", prompt)
	}
	if strings.Contains(prompt, "martian") {
		t.Fatalf("unknown type leaked into prompt: %q", prompt)
	}

	// One capability contributes its tools once, not per resource.
	tools := reg.BuildTools(resources)
	if len(tools) != 1 || tools[0].Name != "list_files" {
		t.Fatalf("unexpected tools %+v", tools)
	}

	if p := reg.BuildSystemPrompt(nil); p != "" {
		t.Fatalf("expected empty prompt for no resources, got %q", p)
	}
}

func TestRegistry_AttachValidation(t *testing.T) {
	t.Parallel()

	log := zerolog.Nop()
	reg := NewRegistry(&log)
	reg.Register(NewFolderDriver(&log))
	ctx := context.Background()

	dir := t.TempDir()
	ok := map[string]model.ResourceConfig{
		"r1": {Type: "folder", Name: "docs", Path: dir},
		"rx": {Type: "martian"}, // no driver, stored as-is
	}
	if err := reg.Attach(ctx, ok); err != nil {
		t.Fatalf("Attach returned error: %v", err)
	}

	bad := map[string]model.ResourceConfig{
		"r1": {Type: "folder", Name: "ghost", Path: filepath.Join(dir, "missing")},
	}
	if err := reg.Attach(ctx, bad); err == nil {
		t.Fatalf("expected error for missing directory")
	}

	noPath := map[string]model.ResourceConfig{
		"r1": {Type: "folder", Name: "empty"},
	}
	if err := reg.Attach(ctx, noPath); err == nil {
		t.Fatalf("expected error for missing path")
	}
}
