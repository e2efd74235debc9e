package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vines90/mcp-prompt-server/internal/store"
	"github.com/vines90/mcp-prompt-server/pkg/types"
)

const refreshEvery = 2 * time.Second

type tickMsg time.Time
type dashboardMsg struct {
	stats    types.StoreStats
	reqLogs  []store.MCPRequestLog
	hot      []types.RawRecord
	err      error
	duration time.Duration
}

// DashboardStore is what the dashboard polls.
type DashboardStore interface {
	Stats(ctx context.Context) (types.StoreStats, error)
	HotPrompts(ctx context.Context, limit int) ([]types.RawRecord, error)
	RecentMCPRequestLogs(ctx context.Context, limit int) ([]store.MCPRequestLog, error)
}

type model struct {
	ctx           context.Context
	st            DashboardStore
	stats         types.StoreStats
	reqLogs       []store.MCPRequestLog
	hot           []types.RawRecord
	lastErr       error
	lastTick      time.Time
	logLines      []string
	maxLogs       int
	requestsLimit int
	hotLimit      int
	width         int
	height        int
}

func newModel(ctx context.Context, st DashboardStore) model {
	m := model{
		ctx:           ctx,
		st:            st,
		maxLogs:       10,
		requestsLimit: 8,
		hotLimit:      8,
	}
	return m.appendLog("admin UI started")
}

// Run starts a lightweight local admin dashboard over the prompt database.
func Run(ctx context.Context, st DashboardStore) error {
	p := tea.NewProgram(newModel(ctx, st), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (m model) Init() tea.Cmd {
	return tea.Batch(fetchDashboardCmd(m.ctx, m.st, m.requestsLimit, m.hotLimit), tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m = m.appendLog("received quit signal")
			return m, tea.Quit
		case "r":
			m = m.appendLog("manual refresh")
			return m, fetchDashboardCmd(m.ctx, m.st, m.requestsLimit, m.hotLimit)
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.lastTick = time.Time(msg)
		return m, tea.Batch(fetchDashboardCmd(m.ctx, m.st, m.requestsLimit, m.hotLimit), tickCmd())
	case dashboardMsg:
		m.lastErr = msg.err
		if msg.err == nil {
			m.stats = msg.stats
			m.reqLogs = msg.reqLogs
			m.hot = msg.hot
			m = m.appendLog(fmt.Sprintf(
				"refresh ok prompts=%d usage=%d req=%d hot=%d (%s)",
				msg.stats.TotalPrompts,
				msg.stats.TotalUsage,
				len(msg.reqLogs),
				len(msg.hot),
				formatDuration(msg.duration),
			))
		} else {
			m = m.appendLog(fmt.Sprintf("refresh error: %v", msg.err))
		}
	}
	return m, nil
}

func (m model) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Render("prompt-mcp admin")
	meta := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("q to quit • r to refresh • auto refresh every 2s")

	logBody := "(no log events yet)"
	if len(m.logLines) > 0 {
		logBody = strings.Join(m.logLines, "\n")
	}

	paneWidth := 54
	if m.width > 0 {
		paneWidth = max(38, (m.width-3)/2)
	}
	paneHeight := 9
	if m.height > 0 {
		paneHeight = max(8, (m.height-8)/2)
	}

	topRow := joinColumns(
		renderPane("Catalog", m.renderStats(), paneWidth, paneHeight),
		renderPane("General Logs", logBody, paneWidth, paneHeight),
	)
	bottomRow := joinColumns(
		renderPane("MCP Requests", formatRequestPane(m.reqLogs), paneWidth, paneHeight),
		renderPane("Hot Prompts", formatHotPane(m.hot), paneWidth, paneHeight),
	)

	return lipgloss.JoinVertical(lipgloss.Left, title, meta, "", topRow, bottomRow)
}

func (m model) renderStats() string {
	body := fmt.Sprintf(
		"Public prompts:  %d\nOwners:          %d\nCategories:      %d\nTotal usage:     %d\nAverage usage:   %.1f\nLast refresh:    %s",
		m.stats.TotalPrompts,
		m.stats.UniqueOwners,
		m.stats.Categories,
		m.stats.TotalUsage,
		m.stats.AverageUsage,
		formatTime(m.lastTick),
	)
	if m.lastErr != nil {
		body += "\n\nLast error: " + truncateText(compactWhitespace(m.lastErr.Error()), 120)
	}
	return body
}

func fetchDashboardCmd(ctx context.Context, st DashboardStore, reqLimit, hotLimit int) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		s, err := st.Stats(ctx)
		if err != nil {
			return dashboardMsg{err: err, duration: time.Since(start)}
		}

		reqLogs, err := st.RecentMCPRequestLogs(ctx, reqLimit)
		if err != nil {
			return dashboardMsg{stats: s, err: err, duration: time.Since(start)}
		}

		hot, err := st.HotPrompts(ctx, hotLimit)
		if err != nil {
			return dashboardMsg{stats: s, reqLogs: reqLogs, err: err, duration: time.Since(start)}
		}

		return dashboardMsg{stats: s, reqLogs: reqLogs, hot: hot, duration: time.Since(start)}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func (m model) appendLog(line string) model {
	if strings.TrimSpace(line) == "" {
		return m
	}
	entry := fmt.Sprintf("[%s] %s", time.Now().UTC().Format("15:04:05"), line)
	m.logLines = append(m.logLines, entry)
	if m.maxLogs <= 0 {
		m.maxLogs = 10
	}
	if len(m.logLines) > m.maxLogs {
		m.logLines = m.logLines[len(m.logLines)-m.maxLogs:]
	}
	return m
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return d.String()
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(10 * time.Millisecond).String()
}

func renderPane(title, body string, width, height int) string {
	style := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 2)
	if width > 0 {
		style = style.Width(width)
	}
	if height > 0 {
		style = style.Height(height)
	}
	return style.Render(title + "\n\n" + body)
}

func joinColumns(left, right string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
}

func formatRequestPane(rows []store.MCPRequestLog) string {
	if len(rows) == 0 {
		return "(no MCP requests yet)"
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		method := strings.TrimSpace(row.Method)
		if row.ToolName != "" {
			method += ":" + strings.TrimSpace(row.ToolName)
		}
		status := "ok"
		if !row.Success {
			status = "err"
		}
		line := fmt.Sprintf(
			"[%s] %-3s %-24s %4dms",
			formatClock(row.CreatedAt),
			status,
			truncateText(method, 24),
			max(0, row.DurationMS),
		)
		if !row.Success && strings.TrimSpace(row.ErrorText) != "" {
			line += " " + truncateText(compactWhitespace(row.ErrorText), 52)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatHotPane(rows []types.RawRecord) string {
	if len(rows) == 0 {
		return "(no public prompts yet)"
	}
	lines := make([]string, 0, len(rows))
	for i, row := range rows {
		name := row.Title
		if strings.TrimSpace(name) == "" {
			name = row.Name
		}
		category := row.Category
		if category == "" {
			category = "-"
		}
		lines = append(lines, fmt.Sprintf(
			"%2d. %-28s %6.1f  %5d uses  %s",
			i+1,
			truncateText(compactWhitespace(name), 28),
			row.Hotness,
			row.UsageCount,
			truncateText(category, 12),
		))
	}
	return strings.Join(lines, "\n")
}

func formatClock(t time.Time) string {
	if t.IsZero() {
		return "--:--:--"
	}
	return t.UTC().Format("15:04:05")
}

func truncateText(s string, limit int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 3 {
		return string(r[:limit])
	}
	return string(r[:limit-3]) + "..."
}

func compactWhitespace(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}
