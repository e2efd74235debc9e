package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/vines90/mcp-prompt-server/internal/catalog"
	"github.com/vines90/mcp-prompt-server/internal/toolhost"
)

// PromptDefinition models MCP prompt metadata.
type PromptDefinition struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// PromptArgument is one declared prompt input.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

func promptDefinitions(snap *catalog.Snapshot) []PromptDefinition {
	prompts := snap.Prompts()
	defs := make([]PromptDefinition, 0, len(prompts))
	for _, p := range prompts {
		def := PromptDefinition{Name: p.ToolName, Description: p.Description}
		for _, param := range p.Parameters {
			def.Arguments = append(def.Arguments, PromptArgument{
				Name:        param.Name,
				Description: param.Description,
				Required:    param.IsRequired(),
			})
		}
		defs = append(defs, def)
	}
	return defs
}

// handlePromptGet renders a prompt the same way its tool would. The name may
// be the tool name or the display name.
func (s *Server) handlePromptGet(params json.RawMessage) (map[string]any, error) {
	var p struct {
		Name      string            `json:"name"`
		Arguments map[string]string `json:"arguments"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid prompts/get params: %w", err)
	}

	prompt, ok := s.prompts.Snapshot().Find(p.Name)
	if !ok {
		return nil, fmt.Errorf("unknown prompt %q", p.Name)
	}
	text := toolhost.Render(prompt.Body, prompt.Parameters, p.Arguments)
	return map[string]any{
		"description": prompt.Description,
		"messages": []map[string]any{{
			"role":    "user",
			"content": map[string]any{"type": "text", "text": text},
		}},
	}, nil
}
