package apistore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"github.com/vines90/mcp-prompt-server/internal/catalog"
	"github.com/vines90/mcp-prompt-server/pkg/types"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func newTestClient(t *testing.T, srv *httptest.Server, opts Options) *Client {
	t.Helper()
	opts.BaseURL = srv.URL
	c, err := New(opts, quietLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	t.Parallel()
	if _, err := New(Options{BaseURL: "localhost:3000"}, quietLogger()); err == nil {
		t.Fatalf("expected error for url without scheme")
	}
}

func TestClient_AuthHeaders(t *testing.T) {
	t.Parallel()
	var secret, bearer atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret.Store(r.Header.Get("X-Secret-Key"))
		bearer.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, Options{SecretKey: "sk-1", Token: "tok"})
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if secret.Load() != "sk-1" || bearer.Load() != "" {
		t.Fatalf("secret key should win: secret=%v bearer=%v", secret.Load(), bearer.Load())
	}

	c = newTestClient(t, srv, Options{Token: "tok"})
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if bearer.Load() != "Bearer tok" {
		t.Fatalf("Authorization = %v", bearer.Load())
	}
}

func TestClient_FetchActivePrompts_Envelope(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/prompts/public" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("sortBy") != "hotness" {
			t.Errorf("sortBy = %q", r.URL.Query().Get("sortBy"))
		}
		_, _ = io.WriteString(w, `{"success":true,"data":[
			{"id":7,"title":"写作助手","content":"Write {topic}","tags":["writing","blog"],"usage_count":3,"hotness":"4.5","is_public":1,"user_id":9,"created_at":"2026-01-02T03:04:05Z"},
			{"id":"8","title":"coder","content":"Code","tags":[{"name":"lang","required":false}],"likesCount":2,"difficultyLevel":"expert","isPublic":true}
		]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, Options{})
	recs, err := c.FetchActivePrompts(context.Background())
	if err != nil {
		t.Fatalf("FetchActivePrompts() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}

	first := recs[0]
	if first.ID != "7" || first.Title != "写作助手" || first.Hotness != 4.5 || first.UsageCount != 3 {
		t.Fatalf("unexpected first record %+v", first)
	}
	if first.Arguments.Kind != types.ArgumentText || first.Arguments.Text != "writing, blog" {
		t.Fatalf("tag list arguments = %+v", first.Arguments)
	}
	if !first.IsPublic || first.OwnerID != "9" || first.CreatedAt.IsZero() || first.Source != types.SourceStore {
		t.Fatalf("unexpected metadata %+v", first)
	}

	second := recs[1]
	if second.Arguments.Kind != types.ArgumentList || len(second.Arguments.List) != 1 || second.Arguments.List[0].Name != "lang" {
		t.Fatalf("structured arguments = %+v", second.Arguments)
	}
	if second.Arguments.List[0].IsRequired() {
		t.Fatalf("lang should be optional")
	}
	if second.LikesCount != 2 || second.Difficulty != "expert" {
		t.Fatalf("camelCase fields not decoded: %+v", second)
	}
}

func TestClient_FetchActivePrompts_BareArrayAndPaging(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Query().Get("offset") {
		case "0":
			_, _ = io.WriteString(w, `[{"id":1,"title":"a"},{"id":2,"title":"b"}]`)
		default:
			_, _ = io.WriteString(w, `[{"id":3,"title":"c"}]`)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, Options{PageSize: 2})
	recs, err := c.FetchActivePrompts(context.Background())
	if err != nil {
		t.Fatalf("FetchActivePrompts() error = %v", err)
	}
	var ids []string
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	if diff := cmp.Diff([]string{"1", "2", "3"}, ids); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 page requests, got %d", calls.Load())
	}
}

func TestClient_FetchForOwner_MergesPrivateFirst(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/prompts/public":
			_, _ = io.WriteString(w, `{"success":true,"data":[{"id":1,"title":"pub"},{"id":2,"title":"shared"}]}`)
		case "/api/prompts":
			_, _ = io.WriteString(w, `{"success":true,"data":{"prompts":[{"id":2,"title":"shared","is_public":false},{"id":5,"title":"mine","is_public":false}]}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, Options{SecretKey: "sk"})
	recs, err := c.FetchForOwner(context.Background(), "42")
	if err != nil {
		t.Fatalf("FetchForOwner() error = %v", err)
	}
	var got []string
	for _, r := range recs {
		got = append(got, r.ID+":"+r.OwnerID)
	}
	if diff := cmp.Diff([]string{"2:42", "5:42", "1:"}, got); diff != "" {
		t.Fatalf("merge mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_FetchForOwner_PrivateFailureKeepsPublic(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/prompts" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `[{"id":1,"title":"pub"}]`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, Options{Token: "expired"})
	recs, err := c.FetchForOwner(context.Background(), "42")
	if err != nil {
		t.Fatalf("FetchForOwner() error = %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "1" {
		t.Fatalf("expected only the public record, got %+v", recs)
	}
}

func TestClient_Errors(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/prompts/public":
			_, _ = io.WriteString(w, `{"success":false,"message":"maintenance"}`)
		case "/api/prompts/3/usage":
			http.NotFound(w, r)
		case "/api/stats":
			_, _ = io.WriteString(w, `not json`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, "boom")
		}
	}))
	defer srv.Close()
	c := newTestClient(t, srv, Options{})
	ctx := context.Background()

	if _, err := c.FetchActivePrompts(ctx); err == nil || !strings.Contains(err.Error(), "maintenance") {
		t.Fatalf("expected envelope error, got %v", err)
	}
	if err := c.IncrementUsage(ctx, "3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("IncrementUsage() error = %v, want ErrNotFound", err)
	}
	if err := c.Health(ctx); err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected status error, got %v", err)
	}
	if _, err := c.Stats(ctx); err == nil {
		t.Fatalf("expected decode error for stats")
	}
}

func TestClient_TimeoutClassifiesAsTimeout(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(t, srv, Options{Timeout: 5 * time.Second})
	src := catalog.NewFetcherSource("api", c, 30*time.Millisecond)
	_, err := src.Fetch(context.Background(), "")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestClient_ProfileStatsCategoriesHot(t *testing.T) {
	t.Parallel()
	var usagePosted atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/user/profile":
			_, _ = io.WriteString(w, `{"success":true,"data":{"id":42,"username":"alice"}}`)
		case "/api/stats":
			_, _ = io.WriteString(w, `{"success":true,"data":{"totalPrompts":10,"uniqueUsers":3,"categories":4,"totalUsage":100,"avgUsage":10}}`)
		case "/api/prompts/categories":
			_, _ = io.WriteString(w, `{"success":true,"data":[{"name":"写作"},{"category":"编程"}]}`)
		case "/api/prompts/public":
			_, _ = io.WriteString(w, `[{"id":1},{"id":2},{"id":3}]`)
		case "/api/prompts/9/usage":
			if r.Method == http.MethodPost {
				usagePosted.Store(true)
			}
			_, _ = io.WriteString(w, `{"success":true}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	c := newTestClient(t, srv, Options{Token: "tok"})
	ctx := context.Background()

	p, err := c.Profile(ctx)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if diff := cmp.Diff(Profile{ID: "42", Username: "alice"}, p); diff != "" {
		t.Fatalf("profile mismatch (-want +got):\n%s", diff)
	}

	st, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	want := types.StoreStats{TotalPrompts: 10, UniqueOwners: 3, Categories: 4, TotalUsage: 100, AverageUsage: 10}
	if diff := cmp.Diff(want, st); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}

	cats, err := c.Categories(ctx)
	if err != nil {
		t.Fatalf("Categories() error = %v", err)
	}
	if diff := cmp.Diff([]string{"写作", "编程"}, cats); diff != "" {
		t.Fatalf("categories mismatch (-want +got):\n%s", diff)
	}

	hot, err := c.HotPrompts(ctx, 2)
	if err != nil {
		t.Fatalf("HotPrompts() error = %v", err)
	}
	if len(hot) != 2 {
		t.Fatalf("HotPrompts() returned %d records, want 2", len(hot))
	}

	if err := c.IncrementUsage(ctx, "9"); err != nil {
		t.Fatalf("IncrementUsage() error = %v", err)
	}
	if !usagePosted.Load() {
		t.Fatalf("expected usage POST")
	}
}

func TestClient_CategoriesShapes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
		want []string
	}{
		{name: "strings", body: `{"success":true,"data":["A","B"]}`, want: []string{"A", "B"}},
		{name: "single object", body: `{"success":true,"data":[{"name":"A"}]}`, want: []string{"A"}},
		{name: "unnamed objects skipped", body: `[{"name":"A"},{"count":3}]`, want: []string{"A"}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			c, err := New(Options{BaseURL: srv.URL}, quietLogger())
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			got, err := c.Categories(context.Background())
			if err != nil {
				t.Fatalf("Categories() error = %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("categories mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
