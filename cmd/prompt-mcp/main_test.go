package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vines90/mcp-prompt-server/pkg/types"
)

func writeConfig(t *testing.T, apiURL string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`server_name: prompt-server
log_level: error
backend: api
api_url: %s
fallback_dir: %s
max_prompt_tools: 10
`, apiURL, filepath.Join(dir, "prompts"))
	path := filepath.Join(dir, "prompt-mcp.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("execute %v: %v", args, err)
	}
	return out.String()
}

func TestCatalogCommand_JSON(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":true,"data":[
			{"id":1,"title":"Writer","content":"Write about {topic}","hotness":3,"category":"writing"},
			{"id":2,"title":"Reviewer","content":"Review {code}","hotness":8,"category":"coding"}
		]}`)
	}))
	defer api.Close()

	out := execute(t, "catalog", "--json", "--config", writeConfig(t, api.URL))

	var rows []types.PromptSummary
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("json.Unmarshal(%q) error = %v", out, err)
	}
	if len(rows) != 2 || rows[0].ToolName != "Reviewer" || rows[1].ToolName != "Writer" {
		t.Fatalf("unexpected catalog %+v", rows)
	}
}

func TestVersionCommand(t *testing.T) {
	out := execute(t, "version")
	if !strings.HasPrefix(out, "prompt-mcp v") {
		t.Fatalf("version output = %q", out)
	}
}

func TestRenderCatalog(t *testing.T) {
	t.Parallel()
	got := renderCatalog([]types.Prompt{
		{ToolName: "prompt_design_1a2b", DisplayName: "设计助手", PopularityScore: 12.5, Category: "设计"},
	})
	for _, want := range []string{"TOOL", "prompt_design_1a2b", "12.5", "设计助手"} {
		if !strings.Contains(got, want) {
			t.Fatalf("table missing %q:\n%s", want, got)
		}
	}
}
