package filesource

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
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

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestSource_Fetch(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "a_writer.yaml", `
name: writer
description: Writes things
category: 写作
arguments:
  - name: topic
    description: what to write about
  - name: tone
    required: false
messages:
  - role: system
    content:
      type: text
      text: ignored system text
  - role: user
    content:
      type: text
      text: "Write about {{topic}}"
  - role: user
    content: "Use a {{tone}} tone"
`)
	writeFile(t, dir, "b_coder.json", `{"title":"coder","content":"Code in {lang}","arguments":[{"name":"lang"}]}`)
	writeFile(t, dir, "c_nameless.yml", "description: no name here\ncontent: x\n")
	writeFile(t, dir, "d_broken.yaml", "name: [unterminated\n")
	writeFile(t, dir, "notes.txt", "name: not a prompt\n")

	src := New(dir, quietLogger())
	if src.Name() != "file" {
		t.Fatalf("Name() = %q", src.Name())
	}
	recs, err := src.Fetch(context.Background(), "")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(recs), recs)
	}

	writer := recs[0]
	if writer.Name != "writer" || writer.Category != "写作" || writer.Source != types.SourceFile {
		t.Fatalf("unexpected writer record %+v", writer)
	}
	if writer.Content != "Write about {{topic}}\n\nUse a {{tone}} tone" {
		t.Fatalf("writer body = %q", writer.Content)
	}
	if writer.Arguments.Kind != types.ArgumentList {
		t.Fatalf("expected structured arguments, got %+v", writer.Arguments)
	}
	var names []string
	for _, p := range writer.Arguments.List {
		names = append(names, p.Name)
	}
	if diff := cmp.Diff([]string{"topic", "tone"}, names); diff != "" {
		t.Fatalf("argument names mismatch (-want +got):\n%s", diff)
	}
	if writer.Arguments.List[1].IsRequired() {
		t.Fatalf("tone should be optional")
	}

	coder := recs[1]
	if coder.Name != "coder" || coder.Content != "Code in {lang}" {
		t.Fatalf("unexpected coder record %+v", coder)
	}
	if coder.Description != "File-based prompt: coder" {
		t.Fatalf("coder description = %q", coder.Description)
	}
}

func TestSource_FetchMissingOrEmptyDir(t *testing.T) {
	t.Parallel()
	src := New(filepath.Join(t.TempDir(), "missing"), quietLogger())
	if _, err := src.Fetch(context.Background(), ""); !errors.Is(err, catalog.ErrNoRecords) {
		t.Fatalf("missing dir error = %v, want ErrNoRecords", err)
	}

	empty := New(t.TempDir(), quietLogger())
	if _, err := empty.Fetch(context.Background(), ""); !errors.Is(err, catalog.ErrNoRecords) {
		t.Fatalf("empty dir error = %v, want ErrNoRecords", err)
	}
}

func TestSource_FilePromptsNeverReportUsage(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "p.yaml", "name: 翻译助手\ncontent: Translate {text}\n")

	b := catalog.NewBuilder(quietLogger(), catalog.Options{Budget: 10}, New(dir, quietLogger()))
	res := b.Build(context.Background(), "")
	if res.Source != Name || len(res.Prompts) != 1 {
		t.Fatalf("unexpected build result %+v", res)
	}
	p := res.Prompts[0]
	if p.ReportsUsage() {
		t.Fatalf("file prompt should not report usage")
	}
	if !catalog.ValidToolName(p.ToolName) {
		t.Fatalf("invalid tool name %q", p.ToolName)
	}
}

func TestIsPromptFile(t *testing.T) {
	t.Parallel()
	for name, want := range map[string]bool{
		"a.yaml": true, "b.YML": true, "c.json": true, "d.txt": false, "e": false,
	} {
		if got := IsPromptFile(name); got != want {
			t.Errorf("IsPromptFile(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	w, err := NewWatcher(dir, 150*time.Millisecond, quietLogger())
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	for i := 0; i < 5; i++ {
		writeFile(t, dir, "burst.yaml", "name: burst\ncontent: v\n")
	}
	writeFile(t, dir, "ignored.txt", "noise")

	select {
	case name := <-w.Changes():
		if name != "burst.yaml" {
			t.Fatalf("change = %q, want burst.yaml", name)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for change notification")
	}

	select {
	case name := <-w.Changes():
		t.Fatalf("unexpected second notification %q", name)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestWatcher_StartFailsForMissingDir(t *testing.T) {
	t.Parallel()
	w, err := NewWatcher(filepath.Join(t.TempDir(), "nope"), 0, quietLogger())
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()
	if err := w.Start(context.Background()); err == nil {
		t.Fatalf("expected error watching a missing dir")
	}
}
