package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vines90/mcp-prompt-server/pkg/types"
)

type staticSource struct {
	name    string
	records []types.RawRecord
	err     error
	calls   int
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) Fetch(_ context.Context, _ string) ([]types.RawRecord, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

func toolNames(prompts []types.Prompt) []string {
	out := make([]string, 0, len(prompts))
	for _, p := range prompts {
		out = append(out, p.ToolName)
	}
	return out
}

func TestBuild_DuplicateDisplayNames(t *testing.T) {
	t.Parallel()
	src := &staticSource{name: "sql", records: []types.RawRecord{
		{ID: "1", Title: "设计助手", Hotness: 10},
		{ID: "2", Title: "设计助手", Hotness: 5},
		{ID: "3", Title: "Code Review", Hotness: 1},
	}}
	b := NewBuilder(quietLogger(), Options{Budget: 2}, src)

	res := b.Build(context.Background(), "")
	if len(res.Prompts) != 2 {
		t.Fatalf("expected 2 prompts, got %d", len(res.Prompts))
	}
	first, second := res.Prompts[0], res.Prompts[1]
	if first.ID != "1" || second.ID != "2" {
		t.Fatalf("expected rank order [1 2], got [%s %s]", first.ID, second.ID)
	}
	base := Sanitize("设计助手")
	if first.ToolName != base || second.ToolName != base+"_1" {
		t.Fatalf("unexpected tool names %q, %q", first.ToolName, second.ToolName)
	}
	if strings.HasSuffix(first.Description, DuplicateNote) {
		t.Fatalf("first occurrence must not carry the duplicate note: %q", first.Description)
	}
	if !strings.HasSuffix(second.Description, DuplicateNote) {
		t.Fatalf("expected duplicate note on second prompt, got %q", second.Description)
	}
	if res.Total != 3 || res.Source != "sql" {
		t.Fatalf("unexpected result metadata: total=%d source=%q", res.Total, res.Source)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	t.Parallel()
	records := make([]types.RawRecord, 0, 30)
	for i := 0; i < 30; i++ {
		records = append(records, types.RawRecord{
			ID:         fmt.Sprint(i),
			Title:      []string{"数据分析", "Data", "写作助手", "data", "🎉"}[i%5],
			Hotness:    float64(i % 3),
			UsageCount: int64(i % 4),
		})
	}
	b := NewBuilder(quietLogger(), Options{Budget: 25}, &staticSource{name: "sql", records: records})

	a := toolNames(b.Build(context.Background(), "").Prompts)
	c := toolNames(b.Build(context.Background(), "").Prompts)
	if diff := cmp.Diff(a, c); diff != "" {
		t.Fatalf("builds differ (-first +second):\n%s", diff)
	}
}

func TestBuild_UniqueAndValidNames(t *testing.T) {
	t.Parallel()
	records := []types.RawRecord{
		{Title: "a b"}, {Title: "a_b"}, {Title: "a-b"}, {Title: "a b"}, {Title: "a_b_1"},
		{Title: ""}, {Title: "🎉"}, {Title: "!!"}, {Title: "reload_prompts"},
	}
	b := NewBuilder(quietLogger(), Options{Budget: 50, Reserved: []string{"reload_prompts"}}, &staticSource{name: "sql", records: records})

	res := b.Build(context.Background(), "")
	seen := map[string]bool{}
	for _, p := range res.Prompts {
		if !ValidToolName(p.ToolName) {
			t.Fatalf("invalid tool name %q", p.ToolName)
		}
		if seen[p.ToolName] {
			t.Fatalf("duplicate tool name %q in %v", p.ToolName, toolNames(res.Prompts))
		}
		seen[p.ToolName] = true
	}
	if seen["reload_prompts"] {
		t.Fatal("reserved name assigned to a prompt")
	}
	if !seen["reload_prompts_1"] {
		t.Fatalf("expected reserved collision to be suffixed, got %v", toolNames(res.Prompts))
	}
}

func TestBuild_Truncation(t *testing.T) {
	t.Parallel()
	records := []types.RawRecord{{Title: "a"}, {Title: "b"}, {Title: "c"}, {Title: "d"}}
	for _, budget := range []int{-1, 0, 1, 3, 4, 10} {
		b := NewBuilder(quietLogger(), Options{Budget: budget}, &staticSource{name: "sql", records: records})
		got := len(b.Build(context.Background(), "").Prompts)
		limit := max(budget, 0)
		if got > limit {
			t.Fatalf("budget %d: got %d prompts", budget, got)
		}
		if want := min(limit, len(records)); got != want {
			t.Fatalf("budget %d: expected %d prompts, got %d", budget, want, got)
		}
	}
}

func TestAssembleAll_IgnoresBudget(t *testing.T) {
	t.Parallel()
	records := []types.RawRecord{{Title: "a"}, {Title: "b", Hotness: 2}, {Title: "a"}, {Title: "d"}}
	b := NewBuilder(quietLogger(), Options{Budget: 1}, &staticSource{name: "sql", records: records})

	if got := len(b.Assemble(records, "")); got != 1 {
		t.Fatalf("Assemble() kept %d prompts, want 1", got)
	}
	all := b.AssembleAll(records, "")
	got := make([]string, 0, len(all))
	for _, p := range all {
		got = append(got, p.ToolName)
	}
	if diff := cmp.Diff([]string{"b", "a", "a_1", "d"}, got); diff != "" {
		t.Fatalf("tool names mismatch (-want +got):\n%s", diff)
	}
}

func TestRank_StableTies(t *testing.T) {
	t.Parallel()
	prompts := []types.Prompt{
		{ID: "a", PopularityScore: 1},
		{ID: "b", PopularityScore: 5},
		{ID: "c", PopularityScore: 1},
		{ID: "d", PopularityScore: 5},
	}
	Rank(prompts)
	got := []string{prompts[0].ID, prompts[1].ID, prompts[2].ID, prompts[3].ID}
	if diff := cmp.Diff([]string{"b", "d", "a", "c"}, got); diff != "" {
		t.Fatalf("rank mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveNames_DoesNotMutateInput(t *testing.T) {
	t.Parallel()
	in := []types.Prompt{{DisplayName: "x", Description: "d"}, {DisplayName: "x", Description: "d"}}
	out := ResolveNames(in, nil)
	if in[1].Description != "d" || in[1].ToolName != "" {
		t.Fatalf("input modified: %+v", in[1])
	}
	if out[1].ToolName != "x_1" {
		t.Fatalf("expected x_1, got %q", out[1].ToolName)
	}
}

func TestResolveNames_SanitizeCollisionHasNoNote(t *testing.T) {
	t.Parallel()
	out := ResolveNames([]types.Prompt{{DisplayName: "a b"}, {DisplayName: "a-b"}}, nil)
	if out[1].ToolName != "a_b_1" {
		t.Fatalf("expected a_b_1, got %q", out[1].ToolName)
	}
	if strings.Contains(out[1].Description, DuplicateNote) {
		t.Fatalf("sanitization collision must not be noted: %q", out[1].Description)
	}
}

func TestBuild_FallbackChain(t *testing.T) {
	t.Parallel()
	primary := &staticSource{name: "sql", err: fmt.Errorf("query prompts: %w", context.DeadlineExceeded)}
	fallback := &staticSource{name: "file", records: []types.RawRecord{{Title: "Local", Source: types.SourceFile}}}
	b := NewBuilder(quietLogger(), Options{Budget: 5}, primary, fallback)

	res := b.Build(context.Background(), "")
	if res.Source != "file" || len(res.Prompts) != 1 {
		t.Fatalf("expected fallback catalog, got source=%q prompts=%d", res.Source, len(res.Prompts))
	}
	if len(res.Failures) != 1 || res.Failures[0].Reason != ReasonTimeout {
		t.Fatalf("expected one timeout failure, got %+v", res.Failures)
	}
	if !errors.Is(res.Failures[0], context.DeadlineExceeded) {
		t.Fatal("expected failure to unwrap to the cause")
	}
	if res.Prompts[0].ReportsUsage() {
		t.Fatal("file prompts must not report usage")
	}
}

func TestBuild_EmptyPrimaryDoesNotFallBack(t *testing.T) {
	t.Parallel()
	primary := &staticSource{name: "sql"}
	fallback := &staticSource{name: "file", records: []types.RawRecord{{Title: "Local"}}}
	res := NewBuilder(quietLogger(), Options{Budget: 5}, primary, fallback).Build(context.Background(), "")
	if res.Source != "sql" || len(res.Prompts) != 0 || fallback.calls != 0 {
		t.Fatalf("expected empty primary catalog, got source=%q prompts=%d fallback calls=%d", res.Source, len(res.Prompts), fallback.calls)
	}
}

func TestBuild_AllSourcesFail(t *testing.T) {
	t.Parallel()
	b := NewBuilder(quietLogger(), Options{Budget: 5},
		&staticSource{name: "api", err: errors.New("connection refused")},
		&staticSource{name: "file", err: fmt.Errorf("read prompts dir: %w", ErrNoRecords)},
	)
	res := b.Build(context.Background(), "")
	if len(res.Prompts) != 0 || res.Source != "" {
		t.Fatalf("expected empty catalog, got %+v", res)
	}
	reasons := []FailureReason{res.Failures[0].Reason, res.Failures[1].Reason}
	if diff := cmp.Diff([]FailureReason{ReasonUnavailable, ReasonEmpty}, reasons); diff != "" {
		t.Fatalf("reasons mismatch (-want +got):\n%s", diff)
	}
}

type ownerFetcher struct {
	public, owned []types.RawRecord
}

func (f ownerFetcher) FetchActivePrompts(context.Context) ([]types.RawRecord, error) {
	return f.public, nil
}

func (f ownerFetcher) FetchForOwner(_ context.Context, ownerID string) ([]types.RawRecord, error) {
	return append(append([]types.RawRecord{}, f.owned...), f.public...), nil
}

func TestFetcherSource_Owner(t *testing.T) {
	t.Parallel()
	f := ownerFetcher{
		public: []types.RawRecord{{ID: "1", Title: "pub", OwnerID: "2"}},
		owned:  []types.RawRecord{{ID: "9", Title: "mine", OwnerID: "5"}},
	}
	b := NewBuilder(quietLogger(), Options{Budget: 5}, NewFetcherSource("sql", f, 0))

	public := b.Build(context.Background(), "")
	if len(public.Prompts) != 1 || public.Prompts[0].Ownership != "" {
		t.Fatalf("unexpected public catalog %+v", public.Prompts)
	}
	owned := b.Build(context.Background(), "5")
	if len(owned.Prompts) != 2 {
		t.Fatalf("expected 2 prompts for owner, got %d", len(owned.Prompts))
	}
	if owned.Prompts[0].Ownership != types.OwnershipOwned || owned.Prompts[1].Ownership != types.OwnershipPublic {
		t.Fatalf("unexpected ownership %q, %q", owned.Prompts[0].Ownership, owned.Prompts[1].Ownership)
	}
	if !owned.Prompts[0].ReportsUsage() {
		t.Fatal("store prompts should report usage")
	}
}
