// File: internal/infra/resource/folder.go
package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"llm-chat-gateway/internal/domain/model"
	"llm-chat-gateway/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

var _ Driver = (*FolderDriver)(nil)

// FolderDriver exposes a user-attached directory to the model through a
// list_files function tool. All access is confined to the configured root.
type FolderDriver struct {
	log *zerolog.Logger
}

func NewFolderDriver(log *zerolog.Logger) *FolderDriver {
	return &FolderDriver{log: log}
}

func (d *FolderDriver) Describe() DriverInfo {
	return DriverInfo{
		Capability:  "folder",
		Description: "Attaches a local folder and lets the model list its contents.",
	}
}

func (d *FolderDriver) OnAttach(ctx context.Context, id string, cfg model.ResourceConfig) error {
	if cfg.Path == "" {
		return fmt.Errorf("folder resource %s has no path", id)
	}
	info, err := os.Stat(cfg.Path)
	if err != nil {
		return fmt.Errorf("folder resource %s: %w", id, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("folder resource %s: %s is not a directory", id, cfg.Path)
	}
	d.log.Info().Str("resource_id", id).Str("path", cfg.Path).Msg("folder attached")
	return nil
}

func (d *FolderDriver) OnDetach(ctx context.Context, id string, cfg model.ResourceConfig) error {
	d.log.Info().Str("resource_id", id).Msg("folder detached")
	return nil
}

func (d *FolderDriver) Serialize(cfg model.ResourceConfig) (json.RawMessage, error) {
	return json.Marshal(cfg)
}

func (d *FolderDriver) SystemPrompt(id string, cfg model.ResourceConfig) string {
	if cfg.Path == "" {
		return ""
	}
	name := cfg.Name
	if name == "" {
		name = id
	}
	return fmt.Sprintf("You have access to folder '%s' (resource_id: %s) at path: %s", name, id, cfg.Path)
}

func (d *FolderDriver) Tools() []adapter.ToolDefinition {
	return []adapter.ToolDefinition{
		{
			Name:        "list_files",
			Description: "List files and directories in a folder. Use the resource_id parameter to specify which folder to access.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"resource_id": map[string]any{
						"type":        "string",
						"description": "The resource ID of the folder to list.",
					},
					"subpath": map[string]any{
						"type":        "string",
						"description": "Optional subdirectory path relative to the root folder. If not provided, lists the root folder contents.",
					},
				},
				"required":             []string{"resource_id"},
				"additionalProperties": false,
			},
		},
	}
}

func (d *FolderDriver) ExecTool(ctx context.Context, call adapter.ToolCall, resources map[string]model.ResourceConfig) (string, bool) {
	if call.Name != "list_files" {
		return "", false
	}

	var args struct {
		ResourceID string `json:"resource_id"`
		Subpath    string `json:"subpath"`
	}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			d.log.Error().Str("arguments", call.Arguments).Msg("failed to parse tool arguments")
			return jsonError("Invalid arguments"), true
		}
	}
	if args.ResourceID == "" {
		return jsonError("Missing required parameter: resource_id"), true
	}

	base := resources[args.ResourceID].Path
	if base == "" {
		return jsonError("No folder path configured"), true
	}
	return d.listFiles(base, args.Subpath), true
}

type folderEntry struct {
	Name string `json:"name"`
	Type string `json:"type"` // "directory" | "file"
	Size *int64 `json:"size"`
}

func (d *FolderDriver) listFiles(base, subpath string) string {
	target := base
	if subpath != "" {
		target = filepath.Join(base, subpath)
	}

	baseAbs, err := filepath.Abs(filepath.Clean(base))
	if err != nil {
		return jsonError(err.Error())
	}
	targetAbs, err := filepath.Abs(filepath.Clean(target))
	if err != nil {
		return jsonError(err.Error())
	}
	// Confinement: the resolved target must stay under the attached root.
	if targetAbs != baseAbs && !strings.HasPrefix(targetAbs, baseAbs+string(filepath.Separator)) {
		return jsonError("Access denied: path outside of allowed folder")
	}

	info, err := os.Stat(targetAbs)
	if os.IsNotExist(err) {
		return jsonError(fmt.Sprintf("Path does not exist: %s", orDot(subpath)))
	}
	if err != nil {
		return jsonError(err.Error())
	}
	if !info.IsDir() {
		return jsonError(fmt.Sprintf("Path is not a directory: %s", orDot(subpath)))
	}

	dirents, err := os.ReadDir(targetAbs)
	if err != nil {
		return jsonError(err.Error())
	}

	entries := make([]folderEntry, 0, len(dirents))
	for _, de := range dirents {
		e := folderEntry{Name: de.Name(), Type: "file"}
		if de.IsDir() {
			e.Type = "directory"
		} else if fi, err := de.Info(); err == nil {
			size := fi.Size()
			e.Size = &size
		}
		entries = append(entries, e)
	}
	// Directories first, then files, each group case-insensitively by name.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Type != entries[j].Type {
			return entries[i].Type == "directory"
		}
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})

	b, err := json.MarshalIndent(map[string]any{
		"path":      orDot(subpath),
		"full_path": targetAbs,
		"entries":   entries,
	}, "", "  ")
	if err != nil {
		return jsonError(err.Error())
	}
	d.log.Debug().Str("path", targetAbs).Int("entries", len(entries)).Msg("list_files")
	return string(b)
}

func orDot(s string) string {
	if s == "" {
		return "."
	}
	return s
}
