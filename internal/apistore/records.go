package apistore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vines90/mcp-prompt-server/internal/catalog"
	"github.com/vines90/mcp-prompt-server/pkg/types"
)

// envelope is the {success,data,message} wrapper most endpoints use.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// unwrap returns the payload of an enveloped response, or body itself when the
// server answered with a bare value.
func unwrap(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty response: %w", catalog.ErrInvalidRecords)
	}
	if trimmed[0] != '{' {
		return trimmed, nil
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, err
	}
	if env.Success != nil && !*env.Success {
		msg := firstNonEmpty(env.Message, env.Error, "request rejected")
		return nil, errors.New(msg)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return trimmed, nil
	}
	return env.Data, nil
}

// decodeList extracts the record array from a list response. Besides bare
// arrays and {data:[...]} it accepts {data:{prompts:[...]}} pagination shapes.
func decodeList(body []byte) ([]apiRecord, error) {
	payload, err := unwrap(body)
	if err != nil {
		return nil, err
	}
	if len(payload) > 0 && payload[0] == '{' {
		var page map[string]json.RawMessage
		if err := json.Unmarshal(payload, &page); err != nil {
			return nil, err
		}
		found := false
		for _, key := range []string{"prompts", "items", "data"} {
			if raw, ok := page[key]; ok {
				payload, found = raw, true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("no record list in response: %w", catalog.ErrInvalidRecords)
		}
	}
	var records []apiRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// apiRecord is one prompt as the remote service serialized it. Field names
// may be snake_case or camelCase depending on the endpoint.
type apiRecord map[string]json.RawMessage

func (r apiRecord) raw(keys ...string) json.RawMessage {
	for _, k := range keys {
		if v, ok := r[k]; ok && len(v) > 0 && string(v) != "null" {
			return v
		}
	}
	return nil
}

func (r apiRecord) str(keys ...string) string {
	v := r.raw(keys...)
	if v == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(v))
}

func (r apiRecord) num(keys ...string) float64 {
	v := r.raw(keys...)
	if v == nil {
		return 0
	}
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return f
	}
	f, _ = strconv.ParseFloat(r.str(keys...), 64)
	return f
}

func (r apiRecord) boolean(keys ...string) bool {
	v := r.raw(keys...)
	if v == nil {
		return false
	}
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return b
	}
	if f := r.num(keys...); f != 0 {
		return true
	}
	b, _ = strconv.ParseBool(r.str(keys...))
	return b
}

func (r apiRecord) toRaw() types.RawRecord {
	rec := types.RawRecord{
		ID:             r.str("id", "prompt_id", "promptId"),
		Name:           r.str("name"),
		Title:          r.str("title"),
		Content:        r.str("content"),
		Description:    r.str("description"),
		Arguments:      r.arguments(),
		Category:       r.str("category"),
		UsageCount:     int64(r.num("usage_count", "usageCount")),
		LikesCount:     int64(r.num("likes_count", "likesCount")),
		FavoritesCount: int64(r.num("favorites_count", "favoritesCount")),
		Hotness:        r.num("hotness"),
		Difficulty:     r.str("difficulty_level", "difficultyLevel", "difficulty"),
		OwnerID:        r.str("user_id", "userId", "owner_id", "ownerId"),
		CreatedAt:      parseTime(r.str("created_at", "createdAt")),
		Source:         types.SourceStore,
	}
	if r.raw("is_public", "isPublic") == nil {
		rec.IsPublic = true
	} else {
		rec.IsPublic = r.boolean("is_public", "isPublic")
	}
	return rec
}

// arguments maps the remote tags/arguments field onto an ArgumentField. A
// string is passed through for the decoder; a list of strings is a tag list;
// a list of objects is a structured parameter list.
func (r apiRecord) arguments() types.ArgumentField {
	v := r.raw("arguments", "tags")
	if v == nil {
		return types.ArgumentField{}
	}
	switch v[0] {
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return types.TextArguments(s)
		}
	case '[':
		var tags []string
		if err := json.Unmarshal(v, &tags); err == nil {
			return types.TextArguments(strings.Join(tags, ", "))
		}
		var params []types.Parameter
		if err := json.Unmarshal(v, &params); err == nil {
			return types.ListArguments(params)
		}
	}
	return types.TextArguments(string(v))
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
