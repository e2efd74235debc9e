package catalog

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vines90/mcp-prompt-server/internal/metrics"
	"github.com/vines90/mcp-prompt-server/pkg/types"
)

// DefaultBudget is the prompt tool budget used when none is configured.
const DefaultBudget = 25

// DuplicateNote is appended to the description of a prompt whose display
// name repeats an earlier prompt's.
const DuplicateNote = " [duplicate name renamed]"

// Options configure a Builder.
type Options struct {
	// Budget caps the number of prompts in one catalog. Negative means zero.
	Budget int
	// Reserved names are never assigned to prompts.
	Reserved []string
}

// Result is the outcome of one build.
type Result struct {
	Prompts  []types.Prompt
	Source   string
	Total    int
	Failures []*SourceError
}

// Builder turns raw records from an ordered source chain into a ranked,
// bounded, uniquely named catalog.
type Builder struct {
	sources []Source
	opts    Options
	logger  *log.Logger
}

// NewBuilder creates a Builder that tries sources in the given order.
func NewBuilder(logger *log.Logger, opts Options, sources ...Source) *Builder {
	if opts.Budget < 0 {
		opts.Budget = 0
	}
	return &Builder{sources: sources, opts: opts, logger: logger}
}

// Budget returns the configured prompt budget.
func (b *Builder) Budget() int { return b.opts.Budget }

// Build fetches from the first source that succeeds and assembles a catalog.
// It never fails: when every source fails the catalog is empty.
func (b *Builder) Build(ctx context.Context, ownerID string) Result {
	started := time.Now()
	var res Result
	for i, src := range b.sources {
		records, err := src.Fetch(ctx, ownerID)
		if err != nil {
			se := classify(src.Name(), err)
			res.Failures = append(res.Failures, se)
			metrics.RecordSourceFailure(se.Source, string(se.Reason))
			b.logger.Warn("prompt source failed", "source", se.Source, "reason", se.Reason, "error", se.Err)
			continue
		}
		if i > 0 {
			b.logger.Info("using fallback prompt source", "source", src.Name(), "records", len(records))
		}
		res.Source = src.Name()
		res.Total = len(records)
		res.Prompts = b.Assemble(records, ownerID)
		break
	}

	status := "ok"
	switch {
	case res.Source == "":
		status = "empty"
		b.logger.Warn("no prompt source available; serving an empty catalog", "sources", len(b.sources))
	case len(res.Failures) > 0:
		status = "fallback"
	}
	metrics.RecordCatalogBuild(res.Source, status, time.Since(started), len(res.Prompts))
	return res
}

// Assemble normalizes, ranks, truncates and names records.
func (b *Builder) Assemble(records []types.RawRecord, ownerID string) []types.Prompt {
	return b.assemble(records, ownerID, b.opts.Budget)
}

// AssembleAll is Assemble without the budget, for listings that are not
// registered as tools.
func (b *Builder) AssembleAll(records []types.RawRecord, ownerID string) []types.Prompt {
	return b.assemble(records, ownerID, len(records))
}

func (b *Builder) assemble(records []types.RawRecord, ownerID string, budget int) []types.Prompt {
	prompts := make([]types.Prompt, 0, len(records))
	for _, raw := range records {
		prompts = append(prompts, Normalize(b.logger, raw, ownerID))
	}
	Rank(prompts)
	if len(prompts) > budget {
		b.logger.Info("prompt catalog truncated", "total", len(prompts), "budget", budget)
		prompts = prompts[:budget]
	}
	named := ResolveNames(prompts, b.opts.Reserved)
	for i := range named {
		if named[i].Description != prompts[i].Description {
			b.logger.Warn("duplicate prompt name renamed", "name", named[i].DisplayName, "tool", named[i].ToolName)
		}
	}
	return named
}

// Rank orders prompts by descending popularity. Ties keep store order.
func Rank(prompts []types.Prompt) {
	sort.SliceStable(prompts, func(i, j int) bool {
		return prompts[i].PopularityScore > prompts[j].PopularityScore
	})
}

// ResolveNames assigns every prompt a unique tool name derived from its
// display name. Collisions get "_1", "_2", ... in rank order. The input slice
// is not modified.
func ResolveNames(prompts []types.Prompt, reserved []string) []types.Prompt {
	out := make([]types.Prompt, len(prompts))
	used := make(map[string]struct{}, len(prompts)+len(reserved))
	for _, name := range reserved {
		used[name] = struct{}{}
	}
	displayNames := make(map[string]struct{}, len(prompts))

	for i, p := range prompts {
		base := Sanitize(p.DisplayName)
		name := base
		for n := 1; ; n++ {
			if _, taken := used[name]; !taken {
				break
			}
			name = withSuffix(base, n)
		}
		used[name] = struct{}{}

		if _, seen := displayNames[p.DisplayName]; seen {
			p.Description += DuplicateNote
		}
		displayNames[p.DisplayName] = struct{}{}

		p.ToolName = name
		p.Parameters = slices.Clone(p.Parameters)
		out[i] = p
	}
	return out
}

func withSuffix(base string, n int) string {
	suffix := fmt.Sprintf("_%d", n)
	if len(base)+len(suffix) > MaxToolNameLen {
		base = truncateName(base, MaxToolNameLen-len(suffix))
	}
	return base + suffix
}
