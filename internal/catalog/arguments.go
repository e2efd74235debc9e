package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vines90/mcp-prompt-server/pkg/types"
)

// DecodeKind is the outcome of decoding an argument field.
type DecodeKind int

const (
	// DecodeEmpty means the field carried no parameters.
	DecodeEmpty DecodeKind = iota
	// DecodeParsed means Params holds the decoded parameter list.
	DecodeParsed
	// DecodeInvalid means the field looked structured but could not be parsed.
	DecodeInvalid
)

func (k DecodeKind) String() string {
	switch k {
	case DecodeParsed:
		return "parsed"
	case DecodeInvalid:
		return "invalid"
	default:
		return "empty"
	}
}

// Decoded is the sum type produced by DecodeArguments.
type Decoded struct {
	Kind   DecodeKind
	Params []types.Parameter
	Err    error
}

var errUnnamedParameter = errors.New("parameter object has no name")

// DecodeArguments interprets a record's argument field. It never fails: text
// that does not start with a bracket, or a JSON array of strings, is tag text
// and yields DecodeEmpty, and malformed JSON yields DecodeInvalid with Err set.
func DecodeArguments(field types.ArgumentField) Decoded {
	switch field.Kind {
	case types.ArgumentList:
		if len(field.List) == 0 {
			return Decoded{Kind: DecodeEmpty}
		}
		return Decoded{Kind: DecodeParsed, Params: field.List}
	case types.ArgumentText:
		return decodeText(field.Text)
	default:
		return Decoded{Kind: DecodeEmpty}
	}
}

func decodeText(text string) Decoded {
	text = strings.TrimSpace(text)
	if text == "" {
		return Decoded{Kind: DecodeEmpty}
	}
	switch text[0] {
	case '[':
		var tags []string
		if err := json.Unmarshal([]byte(text), &tags); err == nil {
			// A JSON array of strings is a tag list.
			return Decoded{Kind: DecodeEmpty}
		}
		var params []types.Parameter
		if err := json.Unmarshal([]byte(text), &params); err != nil {
			return Decoded{Kind: DecodeInvalid, Err: fmt.Errorf("decode argument list: %w", err)}
		}
		for i, p := range params {
			if strings.TrimSpace(p.Name) == "" {
				return Decoded{Kind: DecodeInvalid, Err: fmt.Errorf("argument %d: %w", i, errUnnamedParameter)}
			}
		}
		if len(params) == 0 {
			return Decoded{Kind: DecodeEmpty}
		}
		return Decoded{Kind: DecodeParsed, Params: params}
	case '{':
		var p types.Parameter
		if err := json.Unmarshal([]byte(text), &p); err != nil {
			return Decoded{Kind: DecodeInvalid, Err: fmt.Errorf("decode argument object: %w", err)}
		}
		if strings.TrimSpace(p.Name) == "" {
			return Decoded{Kind: DecodeInvalid, Err: errUnnamedParameter}
		}
		return Decoded{Kind: DecodeParsed, Params: []types.Parameter{p}}
	default:
		// Comma-separated tag text is metadata, not invocation parameters.
		return Decoded{Kind: DecodeEmpty}
	}
}

// uniqueParameters drops unnamed entries and repeated names, keeping the
// first occurrence of each.
func uniqueParameters(params []types.Parameter) []types.Parameter {
	out := make([]types.Parameter, 0, len(params))
	seen := make(map[string]struct{}, len(params))
	for _, p := range params {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			continue
		}
		if _, ok := seen[p.Name]; ok {
			continue
		}
		seen[p.Name] = struct{}{}
		out = append(out, p)
	}
	return out
}
