package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/vines90/mcp-prompt-server/internal/toolhost"
)

// ToolDefinition models MCP tool metadata.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

func toolDefinitions(set *toolhost.ToolSet) []ToolDefinition {
	tools := set.List()
	defs := make([]ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return defs
}

func (s *Server) handleToolCall(ctx context.Context, params json.RawMessage) (map[string]any, error) {
	var p struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid tools/call params: %w", err)
	}

	tool, ok := s.tools.Current().Lookup(p.Name)
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", p.Name)
	}

	args := map[string]any{}
	if raw := bytes.TrimSpace(p.Arguments); len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("invalid %s arguments: %w", p.Name, err)
		}
	}

	return toolResult(tool.Handler(ctx, args)), nil
}

func toolResult(res toolhost.Result) map[string]any {
	out := map[string]any{
		"content": []map[string]any{{"type": "text", "text": res.Text}},
		"isError": res.IsError,
	}
	if res.Structured != nil {
		out["structuredContent"] = structuredObject(res.Structured)
	}
	return out
}

// structuredObject wraps list results, since structuredContent must be a
// JSON object.
func structuredObject(v any) any {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return map[string]any{"items": v}
	default:
		return v
	}
}
