package filesource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/vines90/mcp-prompt-server/internal/catalog"
	"github.com/vines90/mcp-prompt-server/pkg/types"
)

// Name identifies this source in logs and metrics.
const Name = "file"

// promptFile is the on-disk prompt layout. JSON files decode through the
// same YAML decoder.
type promptFile struct {
	Name        string            `yaml:"name"`
	Title       string            `yaml:"title"`
	Description string            `yaml:"description"`
	Category    string            `yaml:"category"`
	Difficulty  string            `yaml:"difficulty"`
	Arguments   []types.Parameter `yaml:"arguments"`
	Content     string            `yaml:"content"`
	Messages    []fileMessage     `yaml:"messages"`
}

type fileMessage struct {
	Role    string         `yaml:"role"`
	Content messageContent `yaml:"content"`
}

// messageContent accepts either {type, text} or a plain string.
type messageContent struct {
	Type string `yaml:"type"`
	Text string `yaml:"text"`
}

func (m *messageContent) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		m.Type = "text"
		m.Text = value.Value
		return nil
	}
	type plain messageContent
	return value.Decode((*plain)(m))
}

// Source loads prompt definitions from a directory of YAML and JSON files.
type Source struct {
	dir    string
	logger *log.Logger
}

// New returns a Source reading dir.
func New(dir string, logger *log.Logger) *Source {
	return &Source{dir: dir, logger: logger}
}

// Dir returns the watched directory.
func (s *Source) Dir() string { return s.dir }

func (s *Source) Name() string { return Name }

// Fetch reads every prompt file in the directory. A missing directory or one
// without usable prompts yields catalog.ErrNoRecords.
func (s *Source) Fetch(ctx context.Context, _ string) ([]types.RawRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("prompt dir %s: %w", s.dir, catalog.ErrNoRecords)
		}
		return nil, fmt.Errorf("read prompt dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	records := make([]types.RawRecord, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !IsPromptFile(e.Name()) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		rec, err := loadFile(path)
		if err != nil {
			s.logger.Warn("skipping prompt file", "file", path, "err", err)
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("prompt dir %s: %w", s.dir, catalog.ErrNoRecords)
	}
	s.logger.Debug("loaded file prompts", "dir", s.dir, "count", len(records))
	return records, nil
}

// IsPromptFile reports whether name has a prompt file extension.
func IsPromptFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	default:
		return false
	}
}

func loadFile(path string) (types.RawRecord, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return types.RawRecord{}, err
	}
	var pf promptFile
	if err := yaml.Unmarshal(b, &pf); err != nil {
		return types.RawRecord{}, fmt.Errorf("decode: %w", err)
	}
	name := strings.TrimSpace(pf.Name)
	if name == "" {
		name = strings.TrimSpace(pf.Title)
	}
	if name == "" {
		return types.RawRecord{}, errors.New("missing name field")
	}

	desc := strings.TrimSpace(pf.Description)
	if desc == "" {
		desc = "File-based prompt: " + name
	}

	rec := types.RawRecord{
		ID:          filepath.Base(path),
		Name:        name,
		Content:     pf.body(),
		Description: desc,
		Category:    pf.Category,
		Difficulty:  pf.Difficulty,
		IsPublic:    true,
		Source:      types.SourceFile,
	}
	if len(pf.Arguments) > 0 {
		rec.Arguments = types.ListArguments(pf.Arguments)
	}
	return rec, nil
}

// body is the prompt text: content when present, otherwise the user
// messages joined by a blank line.
func (pf promptFile) body() string {
	if strings.TrimSpace(pf.Content) != "" {
		return pf.Content
	}
	parts := make([]string, 0, len(pf.Messages))
	for _, m := range pf.Messages {
		if m.Role != "user" || m.Content.Text == "" {
			continue
		}
		parts = append(parts, m.Content.Text)
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}
