package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MCPRequestLog captures one incoming MCP request handled by the server.
type MCPRequestLog struct {
	ID         int64
	Method     string
	ToolName   string
	Success    bool
	ErrorText  string
	DurationMS int64
	CreatedAt  time.Time
}

// InsertMCPRequestLog stores one request event for admin observability.
func (s *SQLStore) InsertMCPRequestLog(ctx context.Context, rec MCPRequestLog) error {
	ts := rec.CreatedAt.UTC()
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.exec(ctx, `INSERT INTO mcp_requests (
		method, tool_name, success, error_text, duration_ms, created_at
	) VALUES (?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(rec.Method),
		strings.TrimSpace(rec.ToolName),
		rec.Success,
		strings.TrimSpace(rec.ErrorText),
		rec.DurationMS,
		ts.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert mcp request log: %w", err)
	}
	return nil
}

// RecentMCPRequestLogs returns most recent request events in newest-first order.
func (s *SQLStore) RecentMCPRequestLogs(ctx context.Context, limit int) ([]MCPRequestLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.query(ctx, `SELECT id, method, tool_name, success, error_text, duration_ms, created_at
FROM mcp_requests
ORDER BY created_at DESC, id DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list mcp request logs: %w", err)
	}
	defer rows.Close()

	items := make([]MCPRequestLog, 0, limit)
	for rows.Next() {
		var (
			row       MCPRequestLog
			success   any
			createdAt string
		)
		if err := rows.Scan(
			&row.ID,
			&row.Method,
			&row.ToolName,
			&success,
			&row.ErrorText,
			&row.DurationMS,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan mcp request log: %w", err)
		}
		row.Success = asBool(success)
		row.CreatedAt = asTime(createdAt)
		items = append(items, row)
	}
	return items, rows.Err()
}
