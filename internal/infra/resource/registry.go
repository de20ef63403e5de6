// File: internal/infra/resource/registry.go
package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"llm-chat-gateway/internal/domain/model"
	"llm-chat-gateway/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

// DriverInfo describes one resource capability.
type DriverInfo struct {
	Capability  string
	Description string
}

// Driver is the plugin contract for one resource capability. A driver turns
// deployed resource configs into prompt context and function tools, and owns
// the attach/detach lifecycle for its resource type.
type Driver interface {
	Describe() DriverInfo
	OnAttach(ctx context.Context, id string, cfg model.ResourceConfig) error
	OnDetach(ctx context.Context, id string, cfg model.ResourceConfig) error
	Serialize(cfg model.ResourceConfig) (json.RawMessage, error)

	// SystemPrompt returns the context line injected for one deployed
	// resource, or "" when the config is unusable.
	SystemPrompt(id string, cfg model.ResourceConfig) string

	// Tools returns the function tools this capability contributes.
	// Called once per capability, not per resource.
	Tools() []adapter.ToolDefinition

	// ExecTool runs one of this driver's tools. handled is false when the
	// function name belongs to another driver. The result is always a JSON
	// string; tool failures are encoded as {"error": ...}, never returned
	// as Go errors, so a bad tool call cannot fail the job.
	ExecTool(ctx context.Context, call adapter.ToolCall, resources map[string]model.ResourceConfig) (result string, handled bool)
}

// Registry maps capability ids to drivers. Static table, filled at startup.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Driver
	log     *zerolog.Logger
}

func NewRegistry(log *zerolog.Logger) *Registry {
	return &Registry{drivers: make(map[string]Driver), log: log}
}

func (r *Registry) Register(d Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[d.Describe().Capability] = d
}

func (r *Registry) Get(capability string) (Driver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[capability]
	return d, ok
}

// BuildSystemPrompt assembles the injected context for a job's deployed
// resources, in stable id order.
func (r *Registry) BuildSystemPrompt(resources map[string]model.ResourceConfig) string {
	if len(resources) == 0 {
		return ""
	}
	ids := make([]string, 0, len(resources))
	for id := range resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var prompts []string
	for _, id := range ids {
		cfg := resources[id]
		d, ok := r.Get(cfg.Type)
		if !ok {
			r.log.Warn().Str("resource_id", id).Str("type", cfg.Type).Msg("no driver for resource type")
			continue
		}
		if p := d.SystemPrompt(id, cfg); p != "" {
			prompts = append(prompts, p)
		}
	}
	return strings.Join(prompts, "\n\n")
}

// BuildTools collects function tools for the capabilities present in the
// deployed resources. Each capability contributes its tools once.
func (r *Registry) BuildTools(resources map[string]model.ResourceConfig) []adapter.ToolDefinition {
	var tools []adapter.ToolDefinition
	seen := map[string]bool{}
	ids := make([]string, 0, len(resources))
	for id := range resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		cfg := resources[id]
		if seen[cfg.Type] {
			continue
		}
		seen[cfg.Type] = true
		if d, ok := r.Get(cfg.Type); ok {
			tools = append(tools, d.Tools()...)
		}
	}
	return tools
}

// ExecuteTool routes a model-requested tool call to the owning driver.
// Unknown functions come back as a JSON error payload for the model to read.
func (r *Registry) ExecuteTool(ctx context.Context, call adapter.ToolCall, resources map[string]model.ResourceConfig) string {
	r.mu.RLock()
	drivers := make([]Driver, 0, len(r.drivers))
	for _, d := range r.drivers {
		drivers = append(drivers, d)
	}
	r.mu.RUnlock()

	for _, d := range drivers {
		if result, handled := d.ExecTool(ctx, call, resources); handled {
			return result
		}
	}
	r.log.Warn().Str("function", call.Name).Msg("unknown tool function")
	return jsonError(fmt.Sprintf("Unknown function: %s", call.Name))
}

// Attach runs OnAttach for every resource with a known driver.
func (r *Registry) Attach(ctx context.Context, resources map[string]model.ResourceConfig) error {
	for id, cfg := range resources {
		d, ok := r.Get(cfg.Type)
		if !ok {
			continue // opaque to the core, stored as-is
		}
		if err := d.OnAttach(ctx, id, cfg); err != nil {
			return fmt.Errorf("attach %s: %w", id, err)
		}
	}
	return nil
}

// Detach runs OnDetach for every resource with a known driver.
func (r *Registry) Detach(ctx context.Context, resources map[string]model.ResourceConfig) {
	for id, cfg := range resources {
		if d, ok := r.Get(cfg.Type); ok {
			if err := d.OnDetach(ctx, id, cfg); err != nil {
				r.log.Warn().Err(err).Str("resource_id", id).Msg("detach failed")
			}
		}
	}
}

func jsonError(msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}
