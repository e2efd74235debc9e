package toolhost

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/vines90/mcp-prompt-server/pkg/types"
)

var placeholderRE = regexp.MustCompile(`\{\{\s*([^{}\s]+)\s*\}\}|\{([^{}\s]+)\}`)

// UsageReporter receives best-effort usage notifications. Report must not block.
type UsageReporter interface {
	Report(id string)
}

// Bind turns a catalog prompt into a callable tool.
func Bind(logger *log.Logger, p types.Prompt, usage UsageReporter) Tool {
	return Tool{
		Name:        p.ToolName,
		Description: p.Description,
		InputSchema: ParameterSchema(p.Parameters),
		Kind:        KindPrompt,
		Handler: func(_ context.Context, args map[string]any) (res Result) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("prompt tool panicked", "tool", p.ToolName, "panic", r)
					res = Result{Text: fmt.Sprintf("prompt %s failed: %v", p.ToolName, r), IsError: true}
				}
			}()

			text := Render(p.Body, p.Parameters, StringArgs(args))
			if usage != nil && p.ReportsUsage() {
				usage.Report(p.ID)
			}
			return Result{Text: text}
		},
	}
}

// ParameterSchema builds a JSON schema with one string property per parameter.
func ParameterSchema(params []types.Parameter) map[string]any {
	properties := make(map[string]any, len(params))
	required := make([]string, 0, len(params))
	for _, p := range params {
		desc := p.Description
		if desc == "" {
			desc = "Value for " + p.Name
		}
		properties[p.Name] = propString(desc)
		if p.IsRequired() {
			required = append(required, p.Name)
		}
	}
	return jsonSchema(properties, required)
}

// Render substitutes {name} and {{name}} placeholders in one pass. Supplied
// arguments win; declared parameters without a value render as [name];
// any other placeholder is left untouched.
func Render(body string, params []types.Parameter, args map[string]string) string {
	declared := make(map[string]struct{}, len(params))
	for _, p := range params {
		declared[p.Name] = struct{}{}
	}
	return placeholderRE.ReplaceAllStringFunc(body, func(match string) string {
		sub := placeholderRE.FindStringSubmatch(match)
		name := sub[1]
		if name == "" {
			name = sub[2]
		}
		if v, ok := args[name]; ok {
			return v
		}
		if _, ok := declared[name]; ok {
			return "[" + name + "]"
		}
		return match
	})
}

// StringArgs flattens decoded JSON arguments to strings.
func StringArgs(args map[string]any) map[string]string {
	out := make(map[string]string, len(args))
	for k, v := range args {
		switch x := v.(type) {
		case nil:
			continue
		case string:
			out[k] = x
		case float64:
			out[k] = strconv.FormatFloat(x, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(x)
		default:
			b, err := json.Marshal(x)
			if err != nil {
				out[k] = fmt.Sprint(x)
				continue
			}
			out[k] = string(b)
		}
	}
	return out
}

func jsonSchema(properties map[string]any, required []string) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func propString(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func propNumber(description string) map[string]any {
	return map[string]any{"type": "number", "description": description}
}
