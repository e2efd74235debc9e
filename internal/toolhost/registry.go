package toolhost

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/vines90/mcp-prompt-server/internal/catalog"
)

var (
	// ErrDuplicateTool is returned when a name is registered twice in one set.
	ErrDuplicateTool = errors.New("duplicate tool name")
	// ErrInvalidToolName is returned for names outside the identifier grammar.
	ErrInvalidToolName = errors.New("invalid tool name")
)

// Tool kinds, used for metrics and listings.
const (
	KindPrompt     = "prompt"
	KindManagement = "management"
)

// Result is the text outcome of one tool call. Structured, when set, is
// returned alongside the text.
type Result struct {
	Text       string
	Structured any
	IsError    bool
}

// Handler runs a tool call.
type Handler func(ctx context.Context, args map[string]any) Result

// Tool is one invocable endpoint.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
	Kind        string
	Handler     Handler
}

// ToolSet is an ordered, name-unique collection of tools. A published set
// is never modified.
type ToolSet struct {
	tools  []Tool
	byName map[string]int
}

// NewToolSet returns an empty set.
func NewToolSet() *ToolSet {
	return &ToolSet{byName: map[string]int{}}
}

// Register adds t, rejecting invalid and duplicate names.
func (s *ToolSet) Register(t Tool) error {
	if !catalog.ValidToolName(t.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidToolName, t.Name)
	}
	if _, ok := s.byName[t.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, t.Name)
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %q has no handler", t.Name)
	}
	s.byName[t.Name] = len(s.tools)
	s.tools = append(s.tools, t)
	return nil
}

// Lookup finds a tool by name.
func (s *ToolSet) Lookup(name string) (Tool, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Tool{}, false
	}
	return s.tools[i], true
}

// List returns tools in registration order.
func (s *ToolSet) List() []Tool { return s.tools }

// Len returns the number of tools.
func (s *ToolSet) Len() int { return len(s.tools) }

// Count returns the number of tools of the given kind.
func (s *ToolSet) Count(kind string) int {
	n := 0
	for _, t := range s.tools {
		if t.Kind == kind {
			n++
		}
	}
	return n
}

// Registry holds the published tool set. Publishing swaps the whole set.
type Registry struct {
	cur atomic.Pointer[ToolSet]
	gen atomic.Uint64
}

// NewRegistry returns a registry with an empty published set.
func NewRegistry() *Registry {
	r := &Registry{}
	r.cur.Store(NewToolSet())
	return r
}

// Publish makes set current and returns the new generation.
func (r *Registry) Publish(set *ToolSet) uint64 {
	r.cur.Store(set)
	return r.gen.Add(1)
}

// Current returns the published set.
func (r *Registry) Current() *ToolSet { return r.cur.Load() }

// Generation counts publishes.
func (r *Registry) Generation() uint64 { return r.gen.Load() }
