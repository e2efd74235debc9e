package admin

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vines90/mcp-prompt-server/internal/store"
	"github.com/vines90/mcp-prompt-server/pkg/types"
)

type fakeDashboard struct {
	statsErr error
}

func (f fakeDashboard) Stats(context.Context) (types.StoreStats, error) {
	if f.statsErr != nil {
		return types.StoreStats{}, f.statsErr
	}
	return types.StoreStats{TotalPrompts: 3, UniqueOwners: 2, Categories: 2, TotalUsage: 60, AverageUsage: 20}, nil
}

func (fakeDashboard) HotPrompts(_ context.Context, limit int) ([]types.RawRecord, error) {
	rows := []types.RawRecord{
		{ID: "2", Title: "Code Reviewer", Category: "coding", Hotness: 9, UsageCount: 50},
		{ID: "1", Title: "Writer", Hotness: 5, UsageCount: 10},
	}
	return rows[:min(limit, len(rows))], nil
}

func (fakeDashboard) RecentMCPRequestLogs(context.Context, int) ([]store.MCPRequestLog, error) {
	return []store.MCPRequestLog{
		{Method: "tools/call", ToolName: "writer", Success: true, DurationMS: 4, CreatedAt: time.Now()},
		{Method: "tools/call", ToolName: "get_database_stats", ErrorText: "backing store statistics are not available"},
	}, nil
}

func TestDashboardRefresh(t *testing.T) {
	t.Parallel()
	m := newModel(context.Background(), fakeDashboard{})

	msg := fetchDashboardCmd(m.ctx, m.st, m.requestsLimit, m.hotLimit)()
	next, _ := m.Update(msg)
	view := next.(model).View()

	for _, want := range []string{"Public prompts:  3", "Code Reviewer", "tools/call:writer", "err"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestDashboardRefreshError(t *testing.T) {
	t.Parallel()
	m := newModel(context.Background(), fakeDashboard{statsErr: errors.New("database is locked")})

	next, _ := m.Update(fetchDashboardCmd(m.ctx, m.st, 8, 8)())
	got := next.(model)
	if got.lastErr == nil {
		t.Fatalf("expected refresh error to be kept")
	}
	if !strings.Contains(got.View(), "database is locked") {
		t.Fatalf("error missing from view")
	}
}

func TestDashboardQuit(t *testing.T) {
	t.Parallel()
	m := newModel(context.Background(), fakeDashboard{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}

func TestTruncateText(t *testing.T) {
	t.Parallel()
	if got := truncateText("设计助手提示词模板", 6); got != "设计助..." {
		t.Fatalf("truncateText() = %q", got)
	}
	if got := truncateText("  short ", 10); got != "short" {
		t.Fatalf("truncateText() = %q", got)
	}
}
