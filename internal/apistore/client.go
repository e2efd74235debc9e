package apistore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/vines90/mcp-prompt-server/internal/catalog"
	"github.com/vines90/mcp-prompt-server/pkg/types"
)

const (
	defaultTimeout  = 3 * time.Second
	defaultPageSize = 100
	maxPages        = 20
	maxErrorBody    = 512
)

// ErrNotFound is returned when the service answers 404.
var ErrNotFound = errors.New("not found")

// ErrUnauthorized is returned when the service rejects the credentials.
var ErrUnauthorized = errors.New("unauthorized")

// Options configures a Client.
type Options struct {
	BaseURL   string
	SecretKey string
	Token     string
	Timeout   time.Duration
	PageSize  int
}

// Profile is the authenticated user as reported by the service.
type Profile struct {
	ID       string
	Username string
}

// Client reads the prompt catalog from a remote prompt-manager service.
type Client struct {
	base     string
	secret   string
	token    string
	pageSize int
	http     *http.Client
	logger   *log.Logger
}

// New builds a client. The base URL must be absolute.
func New(opts Options, logger *log.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api url %q", opts.BaseURL)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Client{
		base:     base,
		secret:   strings.TrimSpace(opts.SecretKey),
		token:    strings.TrimSpace(opts.Token),
		pageSize: pageSize,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}, nil
}

// Authenticated reports whether the client carries credentials.
func (c *Client) Authenticated() bool {
	return c.secret != "" || c.token != ""
}

// Health checks that the service answers.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/api/health", nil, nil)
	return err
}

// Profile returns the user the configured credentials belong to.
func (c *Client) Profile(ctx context.Context) (Profile, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/user/profile", nil, nil)
	if err != nil {
		return Profile{}, err
	}
	payload, err := unwrap(body)
	if err != nil {
		return Profile{}, fmt.Errorf("user profile: %w", err)
	}
	var rec apiRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Profile{}, fmt.Errorf("decode user profile: %w", err)
	}
	p := Profile{ID: rec.str("id", "user_id", "userId"), Username: rec.str("username", "name")}
	if p.ID == "" {
		return p, fmt.Errorf("user profile has no id: %w", catalog.ErrInvalidRecords)
	}
	return p, nil
}

// FetchActivePrompts pages through the public catalog.
func (c *Client) FetchActivePrompts(ctx context.Context) ([]types.RawRecord, error) {
	return c.fetchAll(ctx, "/api/prompts/public", url.Values{"sortBy": {"hotness"}})
}

// FetchForOwner merges the caller's private prompts with the public catalog.
// Both lists are fetched concurrently. A failing private list is logged and
// skipped so that the public catalog still loads.
func (c *Client) FetchForOwner(ctx context.Context, ownerID string) ([]types.RawRecord, error) {
	if !c.Authenticated() {
		return c.FetchActivePrompts(ctx)
	}

	var public, private []types.RawRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := c.FetchActivePrompts(gctx)
		if err != nil {
			return fmt.Errorf("public prompts: %w", err)
		}
		public = recs
		return nil
	})
	g.Go(func() error {
		recs, err := c.fetchAll(gctx, "/api/prompts", nil)
		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() == nil {
				return nil
			}
			c.logger.Warn("private prompts unavailable", "err", err)
			return nil
		}
		private = recs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(private)+len(public))
	out := make([]types.RawRecord, 0, len(private)+len(public))
	for _, rec := range private {
		if rec.OwnerID == "" {
			rec.OwnerID = ownerID
		}
		if rec.ID != "" {
			seen[rec.ID] = struct{}{}
		}
		out = append(out, rec)
	}
	for _, rec := range public {
		if _, dup := seen[rec.ID]; dup && rec.ID != "" {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// HotPrompts returns the hottest public prompts.
func (c *Client) HotPrompts(ctx context.Context, limit int) ([]types.RawRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	q := url.Values{
		"limit":  {strconv.Itoa(limit)},
		"offset": {"0"},
		"sortBy": {"hotness"},
	}
	recs, err := c.fetchPage(ctx, "/api/prompts/public", q)
	if err != nil {
		return nil, err
	}
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// Categories lists the category names the service knows about.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/prompts/categories", nil, nil)
	if err != nil {
		return nil, err
	}
	payload, err := unwrap(body)
	if err != nil {
		return nil, fmt.Errorf("categories: %w", err)
	}
	var plain []string
	if err := json.Unmarshal(payload, &plain); err == nil {
		return plain, nil
	}
	var objs []apiRecord
	if err := json.Unmarshal(payload, &objs); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	names := make([]string, 0, len(objs))
	for _, o := range objs {
		if n := o.str("name", "category"); n != "" {
			names = append(names, n)
		}
	}
	return names, nil
}

// Stats returns the service's catalog statistics.
func (c *Client) Stats(ctx context.Context) (types.StoreStats, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/stats", nil, nil)
	if err != nil {
		return types.StoreStats{}, err
	}
	payload, err := unwrap(body)
	if err != nil {
		return types.StoreStats{}, fmt.Errorf("stats: %w", err)
	}
	var rec apiRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return types.StoreStats{}, fmt.Errorf("decode stats: %w", err)
	}
	return types.StoreStats{
		TotalPrompts: int64(rec.num("total_prompts", "totalPrompts", "publicPrompts")),
		UniqueOwners: int64(rec.num("unique_users", "uniqueUsers", "unique_owners")),
		Categories:   int64(rec.num("categories", "total_categories", "totalCategories")),
		TotalUsage:   int64(rec.num("total_usage", "totalUsage")),
		AverageUsage: rec.num("avg_usage", "avgUsage", "average_usage"),
	}, nil
}

// IncrementUsage records one use of a prompt.
func (c *Client) IncrementUsage(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("prompt id must not be empty")
	}
	_, err := c.do(ctx, http.MethodPost, "/api/prompts/"+url.PathEscape(id)+"/usage", nil, map[string]string{"source": "mcp"})
	return err
}

func (c *Client) fetchAll(ctx context.Context, path string, extra url.Values) ([]types.RawRecord, error) {
	var out []types.RawRecord
	for page := 0; page < maxPages; page++ {
		q := url.Values{}
		for k, v := range extra {
			q[k] = v
		}
		q.Set("limit", strconv.Itoa(c.pageSize))
		q.Set("offset", strconv.Itoa(page*c.pageSize))

		recs, err := c.fetchPage(ctx, path, q)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
		if len(recs) < c.pageSize {
			break
		}
	}
	return out, nil
}

func (c *Client) fetchPage(ctx context.Context, path string, q url.Values) ([]types.RawRecord, error) {
	body, err := c.do(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return nil, err
	}
	items, err := decodeList(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	recs := make([]types.RawRecord, 0, len(items))
	for _, item := range items {
		recs = append(recs, item.toRaw())
	}
	return recs, nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, payload any) ([]byte, error) {
	target := c.base + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case c.secret != "":
		req.Header.Set("X-Secret-Key", c.secret)
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, ctx.Err())
		}
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, fmt.Errorf("%s %s returned status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
