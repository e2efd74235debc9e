package catalog

import (
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vines90/mcp-prompt-server/pkg/types"
)

// Snapshot is one immutable catalog generation. Callers must not modify the
// returned prompts.
type Snapshot struct {
	Generation uint64
	Source     string
	Total      int
	Failures   []*SourceError
	LoadedAt   time.Time

	prompts []types.Prompt
	byTool  map[string]int
}

func newSnapshot(gen uint64, res Result, now time.Time) *Snapshot {
	s := &Snapshot{
		Generation: gen,
		Source:     res.Source,
		Total:      res.Total,
		Failures:   res.Failures,
		LoadedAt:   now,
		prompts:    res.Prompts,
		byTool:     make(map[string]int, len(res.Prompts)),
	}
	for i, p := range res.Prompts {
		s.byTool[p.ToolName] = i
	}
	return s
}

// Prompts returns the ranked catalog.
func (s *Snapshot) Prompts() []types.Prompt { return s.prompts }

// Len returns the number of prompts.
func (s *Snapshot) Len() int { return len(s.prompts) }

// Lookup finds a prompt by tool name.
func (s *Snapshot) Lookup(toolName string) (types.Prompt, bool) {
	i, ok := s.byTool[toolName]
	if !ok {
		return types.Prompt{}, false
	}
	return s.prompts[i], true
}

// Find resolves a prompt by tool name, then by display name.
func (s *Snapshot) Find(name string) (types.Prompt, bool) {
	name = strings.TrimSpace(name)
	if p, ok := s.Lookup(name); ok {
		return p, true
	}
	for _, p := range s.prompts {
		if p.DisplayName == name {
			return p, true
		}
	}
	return types.Prompt{}, false
}

// Categories returns the distinct non-empty categories, sorted.
func (s *Snapshot) Categories() []string {
	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, p := range s.prompts {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	sort.Strings(out)
	return out
}

// Filter returns prompts for which keep is true, in rank order.
func (s *Snapshot) Filter(keep func(types.Prompt) bool) []types.Prompt {
	out := make([]types.Prompt, 0)
	for _, p := range s.prompts {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// Search matches query case-insensitively against names, description,
// category, tags and body.
func (s *Snapshot) Search(query string) []types.Prompt {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	return s.Filter(func(p types.Prompt) bool {
		for _, field := range []string{p.ToolName, p.DisplayName, p.Description, p.Category, p.Tags, p.Body} {
			if strings.Contains(strings.ToLower(field), q) {
				return true
			}
		}
		return false
	})
}

// Holder owns the current snapshot. Readers never block and always observe
// one complete generation.
type Holder struct {
	cur atomic.Pointer[Snapshot]
}

// NewHolder returns a Holder containing an empty generation-zero snapshot.
func NewHolder() *Holder {
	h := &Holder{}
	h.cur.Store(newSnapshot(0, Result{}, time.Now().UTC()))
	return h
}

// Load returns the current snapshot.
func (h *Holder) Load() *Snapshot { return h.cur.Load() }

func (h *Holder) swap(next *Snapshot) *Snapshot { return h.cur.Swap(next) }
