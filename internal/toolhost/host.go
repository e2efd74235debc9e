package toolhost

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/vines90/mcp-prompt-server/internal/catalog"
	"github.com/vines90/mcp-prompt-server/internal/metrics"
)

// Limits are the soft bounds on the total number of registered tools.
type Limits struct {
	SoftLimit int
	Ceiling   int
}

// Host binds catalog generations into published tool sets.
type Host struct {
	registry   *Registry
	management []Tool
	usage      UsageReporter
	limits     Limits
	logger     *log.Logger
}

// NewHost creates a Host publishing into registry. usage may be nil.
func NewHost(logger *log.Logger, registry *Registry, usage UsageReporter, limits Limits, management []Tool) *Host {
	for i := range management {
		management[i].Kind = KindManagement
	}
	return &Host{
		registry:   registry,
		management: management,
		usage:      usage,
		limits:     limits,
		logger:     logger,
	}
}

// Install registers management tools followed by one tool per prompt of
// snap, publishes the set and returns its generation. A prompt whose name
// cannot be registered is skipped with a warning.
func (h *Host) Install(snap *catalog.Snapshot) uint64 {
	set := NewToolSet()
	for _, t := range h.management {
		if err := set.Register(instrument(t)); err != nil {
			h.logger.Error("management tool rejected", "tool", t.Name, "error", err)
		}
	}
	for _, p := range snap.Prompts() {
		if err := set.Register(instrument(Bind(h.logger, p, h.usage))); err != nil {
			h.logger.Warn("prompt tool rejected", "tool", p.ToolName, "id", p.ID, "error", err)
		}
	}

	total := set.Len()
	switch {
	case h.limits.Ceiling > 0 && total > h.limits.Ceiling:
		h.logger.Warn("registered tools exceed client ceiling", "tools", total, "ceiling", h.limits.Ceiling)
	case h.limits.SoftLimit > 0 && total > h.limits.SoftLimit:
		h.logger.Info("registered tools above soft limit", "tools", total, "soft_limit", h.limits.SoftLimit)
	}

	gen := h.registry.Publish(set)
	h.logger.Debug("tool set published", "generation", gen, "tools", total, "prompts", set.Count(KindPrompt))
	return gen
}

func instrument(t Tool) Tool {
	if t.Handler == nil {
		return t
	}
	next := t.Handler
	kind := t.Kind
	t.Handler = func(ctx context.Context, args map[string]any) Result {
		res := next(ctx, args)
		metrics.RecordToolCall(kind, res.IsError)
		return res
	}
	return t
}
