package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vines90/mcp-prompt-server/pkg/types"
)

const promptColumns = `id, title, content, description, tags, category,
       COALESCE(usage_count, 0), COALESCE(likes_count, 0), COALESCE(favorites_count, 0),
       COALESCE(hotness, 0), difficulty_level, is_public, user_id, created_at`

const rankOrder = `COALESCE(hotness, 0) DESC, COALESCE(usage_count, 0) DESC, title`

// FetchActivePrompts returns every public prompt, hottest first.
func (s *SQLStore) FetchActivePrompts(ctx context.Context) ([]types.RawRecord, error) {
	q := `SELECT ` + promptColumns + `
FROM prompts
WHERE is_public = TRUE
ORDER BY ` + rankOrder
	return s.queryPrompts(ctx, "fetch active prompts", q)
}

// FetchForOwner returns the owner's prompts followed by every other public
// prompt. A non-numeric owner id has no prompts of its own.
func (s *SQLStore) FetchForOwner(ctx context.Context, ownerID string) ([]types.RawRecord, error) {
	uid, err := strconv.ParseInt(strings.TrimSpace(ownerID), 10, 64)
	if err != nil {
		s.logger.Debug("owner id is not numeric; loading public prompts", "owner", ownerID)
		return s.FetchActivePrompts(ctx)
	}
	q := `SELECT ` + promptColumns + `
FROM prompts
WHERE user_id = ? OR is_public = TRUE
ORDER BY CASE WHEN user_id = ? THEN 0 ELSE 1 END, ` + rankOrder
	return s.queryPrompts(ctx, "fetch owner prompts", q, uid, uid)
}

// HotPrompts returns the hottest public prompts.
func (s *SQLStore) HotPrompts(ctx context.Context, limit int) ([]types.RawRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT ` + promptColumns + `
FROM prompts
WHERE is_public = TRUE
ORDER BY COALESCE(hotness, 0) DESC, COALESCE(usage_count, 0) DESC, COALESCE(likes_count, 0) DESC
LIMIT ?`
	return s.queryPrompts(ctx, "fetch hot prompts", q, limit)
}

// Categories lists distinct non-empty public categories in sorted order.
func (s *SQLStore) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.query(ctx, `SELECT DISTINCT category FROM prompts
WHERE is_public = TRUE AND category IS NOT NULL AND category <> ''
ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SearchPrompts matches term against title, content, description and
// category of public prompts, case-insensitively.
func (s *SQLStore) SearchPrompts(ctx context.Context, term string, limit int) ([]types.RawRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + strings.ToLower(strings.TrimSpace(term)) + "%"
	q := `SELECT ` + promptColumns + `
FROM prompts
WHERE is_public = TRUE AND (
  LOWER(title) LIKE ? OR LOWER(content) LIKE ? OR
  LOWER(COALESCE(description, '')) LIKE ? OR LOWER(COALESCE(category, '')) LIKE ?
)
ORDER BY ` + rankOrder + `
LIMIT ?`
	return s.queryPrompts(ctx, "search prompts", q, pattern, pattern, pattern, pattern, limit)
}

// IncrementUsage bumps a prompt's usage counter.
func (s *SQLStore) IncrementUsage(ctx context.Context, id string) error {
	pid, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid prompt id %q: %w", id, err)
	}
	res, err := s.exec(ctx, `UPDATE prompts SET usage_count = COALESCE(usage_count, 0) + 1 WHERE id = ?`, pid)
	if err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment usage rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("prompt %s: %w", id, ErrNotFound)
	}
	return nil
}

// Stats summarizes the public catalog.
func (s *SQLStore) Stats(ctx context.Context) (types.StoreStats, error) {
	var st types.StoreStats
	err := s.queryRow(ctx, `SELECT
  COUNT(*),
  COUNT(DISTINCT user_id),
  COUNT(DISTINCT category),
  COALESCE(SUM(usage_count), 0),
  COALESCE(AVG(usage_count), 0)
FROM prompts
WHERE is_public = TRUE`).Scan(&st.TotalPrompts, &st.UniqueOwners, &st.Categories, &st.TotalUsage, &st.AverageUsage)
	if err != nil {
		return st, fmt.Errorf("prompt stats: %w", err)
	}
	return st, nil
}

func (s *SQLStore) queryPrompts(ctx context.Context, op, q string, args ...any) ([]types.RawRecord, error) {
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	items := make([]types.RawRecord, 0, 32)
	for rows.Next() {
		rec, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return items, nil
}

func scanPrompt(sc scanner) (types.RawRecord, error) {
	var (
		rec        types.RawRecord
		id         int64
		title      sql.NullString
		content    sql.NullString
		desc       sql.NullString
		category   sql.NullString
		difficulty sql.NullString
		tags       any
		isPublic   any
		createdAt  any
		userID     sql.NullInt64
	)
	if err := sc.Scan(
		&id,
		&title,
		&content,
		&desc,
		&tags,
		&category,
		&rec.UsageCount,
		&rec.LikesCount,
		&rec.FavoritesCount,
		&rec.Hotness,
		&difficulty,
		&isPublic,
		&userID,
		&createdAt,
	); err != nil {
		return rec, err
	}

	rec.ID = strconv.FormatInt(id, 10)
	rec.Name = title.String
	rec.Content = content.String
	rec.Description = desc.String
	rec.Arguments = asArguments(tags)
	rec.Category = category.String
	rec.Difficulty = difficulty.String
	rec.IsPublic = asBool(isPublic)
	if userID.Valid {
		rec.OwnerID = strconv.FormatInt(userID.Int64, 10)
	}
	rec.CreatedAt = asTime(createdAt)
	rec.Source = types.SourceStore
	return rec, nil
}

func asArguments(v any) types.ArgumentField {
	switch x := v.(type) {
	case nil:
		return types.ArgumentField{}
	case string:
		return types.TextArguments(x)
	case []byte:
		return types.TextArguments(string(x))
	case []any:
		tags := make([]string, 0, len(x))
		for _, t := range x {
			tags = append(tags, fmt.Sprint(t))
		}
		return types.TextArguments(strings.Join(tags, ", "))
	default:
		return types.TextArguments(fmt.Sprint(x))
	}
}

func asBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int64:
		return x != 0
	case string:
		b, _ := strconv.ParseBool(x)
		return b
	case []byte:
		b, _ := strconv.ParseBool(string(x))
		return b
	default:
		return false
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func asTime(v any) time.Time {
	var s string
	switch x := v.(type) {
	case time.Time:
		return x.UTC()
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
