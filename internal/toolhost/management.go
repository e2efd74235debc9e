package toolhost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vines90/mcp-prompt-server/internal/catalog"
	"github.com/vines90/mcp-prompt-server/pkg/types"
)

// Management tool names. They are reserved and never assigned to prompts.
const (
	ToolReloadPrompts          = "reload_prompts"
	ToolGetPromptNames         = "get_prompt_names"
	ToolGetPromptsByCategory   = "get_prompts_by_category"
	ToolGetAllCategories       = "get_all_categories"
	ToolSearchPrompts          = "search_prompts"
	ToolGetPromptInfo          = "get_prompt_info"
	ToolGetHotPrompts          = "get_hot_prompts"
	ToolGetPromptsByDifficulty = "get_prompts_by_difficulty"
	ToolGetDatabaseStats       = "get_database_stats"
)

const (
	defaultHotLimit  = 10
	maxHotLimit      = 50
	maxSearchResults = 50
)

// ManagementToolNames lists every management tool name.
func ManagementToolNames() []string {
	return []string{
		ToolReloadPrompts,
		ToolGetPromptNames,
		ToolGetPromptsByCategory,
		ToolGetAllCategories,
		ToolSearchPrompts,
		ToolGetPromptInfo,
		ToolGetHotPrompts,
		ToolGetPromptsByDifficulty,
		ToolGetDatabaseStats,
	}
}

// Catalog is the catalog surface management tools work on.
type Catalog interface {
	Snapshot() *catalog.Snapshot
	Reload(ctx context.Context) (*catalog.Snapshot, error)
}

// Insights are optional backing store queries.
type Insights interface {
	HotPrompts(ctx context.Context, limit int) ([]types.RawRecord, error)
	Stats(ctx context.Context) (types.StoreStats, error)
}

// ErrNoInsights is reported when the backing store offers no statistics.
var ErrNoInsights = errors.New("backing store statistics are not available")

type reloadSummary struct {
	Generation uint64   `json:"generation"`
	Source     string   `json:"source"`
	Prompts    int      `json:"prompts"`
	Records    int      `json:"records"`
	Failures   []string `json:"failures,omitempty"`
}

type hotPrompt struct {
	ID              string  `json:"id"`
	ToolName        string  `json:"tool_name,omitempty"`
	Title           string  `json:"title"`
	Category        string  `json:"category,omitempty"`
	Hotness         float64 `json:"hotness"`
	UsageCount      int64   `json:"usage_count"`
	LikesCount      int64   `json:"likes_count"`
	PopularityScore float64 `json:"popularity_score"`
}

// ManagementTools returns the catalog management tools. insights may be nil.
func ManagementTools(cat Catalog, insights Insights) []Tool {
	m := &management{cat: cat, insights: insights}
	return []Tool{
		{
			Name:        ToolReloadPrompts,
			Description: "Reload the prompt catalog from the backing store and re-register prompt tools.",
			InputSchema: jsonSchema(map[string]any{}, []string{}),
			Handler:     m.reload,
		},
		{
			Name:        ToolGetPromptNames,
			Description: "List every prompt tool in the current catalog, in rank order.",
			InputSchema: jsonSchema(map[string]any{}, []string{}),
			Handler:     m.names,
		},
		{
			Name:        ToolGetPromptsByCategory,
			Description: "List prompts in one category.",
			InputSchema: jsonSchema(map[string]any{
				"category": propString("Category name."),
			}, []string{"category"}),
			Handler: m.byCategory,
		},
		{
			Name:        ToolGetAllCategories,
			Description: "List the categories present in the current catalog.",
			InputSchema: jsonSchema(map[string]any{}, []string{}),
			Handler:     m.categories,
		},
		{
			Name:        ToolSearchPrompts,
			Description: "Search prompts by name, description, category, tags or content.",
			InputSchema: jsonSchema(map[string]any{
				"query": propString("Case-insensitive search text."),
			}, []string{"query"}),
			Handler: m.search,
		},
		{
			Name:        ToolGetPromptInfo,
			Description: "Show the full definition of one prompt.",
			InputSchema: jsonSchema(map[string]any{
				"name": propString("Tool name or display name of the prompt."),
			}, []string{"name"}),
			Handler: m.info,
		},
		{
			Name:        ToolGetHotPrompts,
			Description: "List the most popular prompts.",
			InputSchema: jsonSchema(map[string]any{
				"limit": propNumber("Maximum results (default 10, max 50)."),
			}, []string{}),
			Handler: m.hot,
		},
		{
			Name:        ToolGetPromptsByDifficulty,
			Description: "List prompts with one difficulty level.",
			InputSchema: jsonSchema(map[string]any{
				"difficulty": propString("Difficulty level, e.g. beginner, intermediate, advanced or expert."),
			}, []string{"difficulty"}),
			Handler: m.byDifficulty,
		},
		{
			Name:        ToolGetDatabaseStats,
			Description: "Show backing store statistics.",
			InputSchema: jsonSchema(map[string]any{}, []string{}),
			Handler:     m.stats,
		},
	}
}

type management struct {
	cat      Catalog
	insights Insights
}

func (m *management) reload(ctx context.Context, _ map[string]any) Result {
	snap, err := m.cat.Reload(ctx)
	if err != nil {
		return errorResult(fmt.Errorf("reload prompts: %w", err))
	}
	summary := reloadSummary{
		Generation: snap.Generation,
		Source:     snap.Source,
		Prompts:    snap.Len(),
		Records:    snap.Total,
	}
	for _, f := range snap.Failures {
		summary.Failures = append(summary.Failures, f.Error())
	}
	return jsonResult(summary)
}

func (m *management) names(_ context.Context, _ map[string]any) Result {
	return jsonResult(summaries(m.cat.Snapshot().Prompts()))
}

func (m *management) byCategory(_ context.Context, args map[string]any) Result {
	category := stringArg(args, "category")
	if category == "" {
		return errorResult(errors.New("category is required"))
	}
	return jsonResult(summaries(m.cat.Snapshot().Filter(func(p types.Prompt) bool {
		return strings.EqualFold(p.Category, category)
	})))
}

func (m *management) categories(_ context.Context, _ map[string]any) Result {
	return jsonResult(m.cat.Snapshot().Categories())
}

func (m *management) search(_ context.Context, args map[string]any) Result {
	query := stringArg(args, "query")
	if query == "" {
		return errorResult(errors.New("query is required"))
	}
	found := m.cat.Snapshot().Search(query)
	if len(found) > maxSearchResults {
		found = found[:maxSearchResults]
	}
	return jsonResult(summaries(found))
}

func (m *management) info(_ context.Context, args map[string]any) Result {
	name := stringArg(args, "name")
	if name == "" {
		return errorResult(errors.New("name is required"))
	}
	p, ok := m.cat.Snapshot().Find(name)
	if !ok {
		return errorResult(fmt.Errorf("prompt %q not found", name))
	}
	return jsonResult(p)
}

func (m *management) hot(ctx context.Context, args map[string]any) Result {
	limit := intArg(args, "limit", defaultHotLimit)
	if limit <= 0 {
		limit = defaultHotLimit
	}
	limit = min(limit, maxHotLimit)

	snap := m.cat.Snapshot()
	if m.insights == nil {
		prompts := snap.Prompts()
		out := make([]hotPrompt, 0, min(limit, len(prompts)))
		for _, p := range prompts[:min(limit, len(prompts))] {
			out = append(out, hotPrompt{
				ID:              p.ID,
				ToolName:        p.ToolName,
				Title:           p.DisplayName,
				Category:        p.Category,
				Hotness:         p.Hotness,
				UsageCount:      p.UsageCount,
				LikesCount:      p.LikesCount,
				PopularityScore: p.PopularityScore,
			})
		}
		return jsonResult(out)
	}

	records, err := m.insights.HotPrompts(ctx, limit)
	if err != nil {
		return errorResult(fmt.Errorf("load hot prompts: %w", err))
	}
	toolByID := make(map[string]string, snap.Len())
	for _, p := range snap.Prompts() {
		if p.ID != "" {
			toolByID[p.ID] = p.ToolName
		}
	}
	out := make([]hotPrompt, 0, len(records))
	for _, r := range records {
		title := r.Name
		if title == "" {
			title = r.Title
		}
		out = append(out, hotPrompt{
			ID:              r.ID,
			ToolName:        toolByID[r.ID],
			Title:           title,
			Category:        r.Category,
			Hotness:         r.Hotness,
			UsageCount:      r.UsageCount,
			LikesCount:      r.LikesCount,
			PopularityScore: catalog.PopularityScore(r),
		})
	}
	return jsonResult(out)
}

func (m *management) byDifficulty(_ context.Context, args map[string]any) Result {
	difficulty := stringArg(args, "difficulty")
	if difficulty == "" {
		return errorResult(errors.New("difficulty is required"))
	}
	return jsonResult(summaries(m.cat.Snapshot().Filter(func(p types.Prompt) bool {
		return strings.EqualFold(p.Difficulty, difficulty)
	})))
}

func (m *management) stats(ctx context.Context, _ map[string]any) Result {
	if m.insights == nil {
		return errorResult(ErrNoInsights)
	}
	st, err := m.insights.Stats(ctx)
	if err != nil {
		return errorResult(fmt.Errorf("load stats: %w", err))
	}
	return jsonResult(st)
}

func summaries(prompts []types.Prompt) []types.PromptSummary {
	out := make([]types.PromptSummary, 0, len(prompts))
	for _, p := range prompts {
		out = append(out, types.Summarize(p))
	}
	return out
}

func jsonResult(v any) Result {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(err)
	}
	return Result{Text: string(b), Structured: v}
}

func errorResult(err error) Result {
	return Result{Text: err.Error(), IsError: true}
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return def
		}
		return int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return def
		}
		return n
	default:
		return def
	}
}
