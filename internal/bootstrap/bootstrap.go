package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const (
	defaultServerName = "prompt-server"
	defaultServeCmd   = "prompt-mcp serve"
)

var lookPath = exec.LookPath

// Options control CLI bootstrap behavior.
type Options struct {
	ConfigPath string
	Scope      string
	ServerName string
	ServeCmd   string
	// Env holds KEY=VALUE pairs passed to the server process, e.g. the
	// database URL or the owner token.
	Env      []string
	AuditDir string
	All      bool
	Codex    bool
	Claude   bool
	Gemini   bool
	DryRun   bool
}

// Command captures an executable command.
type Command struct {
	Name string
	Args []string
}

func (c Command) String() string {
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Runner executes system commands.
type Runner interface {
	Run(name string, args ...string) error
}

// OSRunner executes commands via os/exec.
type OSRunner struct{}

func (OSRunner) Run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Bootstrap registers the prompt server with installed agent CLIs.
func Bootstrap(logger *log.Logger, opts Options, runner Runner) error {
	if runner == nil {
		runner = OSRunner{}
	}
	if opts.Scope == "" {
		opts.Scope = "user"
	}
	if opts.ServerName == "" {
		opts.ServerName = defaultServerName
	}
	if strings.TrimSpace(opts.ServeCmd) == "" {
		opts.ServeCmd = defaultServeCmd
	}
	if !opts.All && !opts.Codex && !opts.Claude && !opts.Gemini {
		opts.All = true
	}

	cmds, err := BuildCommands(opts)
	if err != nil {
		return err
	}
	if len(cmds) == 0 {
		return errors.New("no agent CLIs found (looked for codex, claude, gemini)")
	}

	auditPath, err := auditLogPath(opts.AuditDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(auditPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(auditPath)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintf(f, "# prompt-mcp bootstrap %s\n", time.Now().UTC().Format(time.RFC3339))
	for _, c := range cmds {
		line := c.String()
		fmt.Fprintln(f, redactEnv(line, opts.Env))
		logger.Info("bootstrap command", "cmd", redactEnv(line, opts.Env), "dry_run", opts.DryRun)
		if opts.DryRun {
			continue
		}
		if err := runner.Run(c.Name, c.Args...); err != nil {
			// remove fails when nothing was registered yet
			if len(c.Args) > 1 && c.Args[1] == "remove" {
				logger.Debug("ignoring remove error", "cmd", line, "error", err)
				continue
			}
			return fmt.Errorf("run %q: %w", redactEnv(line, opts.Env), err)
		}
	}

	logger.Info("bootstrap complete", "audit_log", auditPath)
	return nil
}

// BuildCommands builds a deterministic bootstrap command list.
func BuildCommands(opts Options) ([]Command, error) {
	if opts.Scope != "user" && opts.Scope != "project" {
		return nil, fmt.Errorf("invalid scope %q (expected user or project)", opts.Scope)
	}
	if strings.TrimSpace(opts.ConfigPath) == "" {
		return nil, errors.New("config path is required")
	}
	if strings.TrimSpace(opts.ServeCmd) == "" {
		opts.ServeCmd = defaultServeCmd
	}
	env, err := normalizeEnv(opts.Env)
	if err != nil {
		return nil, err
	}

	cmdParts := strings.Fields(opts.ServeCmd)
	if len(cmdParts) == 0 {
		return nil, errors.New("serve command is required")
	}
	serverCmd := append(cmdParts, "--config", opts.ConfigPath)
	cmds := make([]Command, 0, 6)

	if (opts.All || opts.Codex) && commandExists("codex") {
		add := []string{"mcp", "add", opts.ServerName}
		add = append(add, envFlags("--env", env)...)
		cmds = append(cmds,
			Command{Name: "codex", Args: []string{"mcp", "remove", opts.ServerName}},
			Command{Name: "codex", Args: append(append(add, "--"), serverCmd...)},
		)
	}
	if (opts.All || opts.Claude) && commandExists("claude") {
		add := []string{"mcp", "add", "-s", opts.Scope}
		add = append(add, envFlags("-e", env)...)
		add = append(add, opts.ServerName, "--")
		cmds = append(cmds,
			Command{Name: "claude", Args: []string{"mcp", "remove", "-s", opts.Scope, opts.ServerName}},
			Command{Name: "claude", Args: append(add, serverCmd...)},
		)
	}
	if (opts.All || opts.Gemini) && commandExists("gemini") {
		add := []string{"mcp", "add", "-s", opts.Scope}
		add = append(add, envFlags("-e", env)...)
		add = append(add, opts.ServerName)
		cmds = append(cmds,
			Command{Name: "gemini", Args: []string{"mcp", "remove", "-s", opts.Scope, opts.ServerName}},
			Command{Name: "gemini", Args: append(add, serverCmd...)},
		)
	}
	return cmds, nil
}

// normalizeEnv validates KEY=VALUE pairs and sorts them by key.
func normalizeEnv(pairs []string) ([]string, error) {
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		key, _, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok || strings.TrimSpace(key) == "" || strings.ContainsAny(key, " \t") {
			return nil, fmt.Errorf("invalid env pair %q (expected KEY=VALUE)", p)
		}
		out = append(out, strings.TrimSpace(p))
	}
	sort.SliceStable(out, func(i, j int) bool {
		ki, _, _ := strings.Cut(out[i], "=")
		kj, _, _ := strings.Cut(out[j], "=")
		return ki < kj
	})
	return out, nil
}

func envFlags(flag string, env []string) []string {
	out := make([]string, 0, len(env)*2)
	for _, kv := range env {
		out = append(out, flag, kv)
	}
	return out
}

// redactEnv hides env values in logged command lines.
func redactEnv(line string, env []string) string {
	for _, kv := range env {
		key, val, _ := strings.Cut(strings.TrimSpace(kv), "=")
		if val == "" {
			continue
		}
		line = strings.ReplaceAll(line, key+"="+val, key+"=***")
	}
	return line
}

func commandExists(name string) bool {
	_, err := lookPath(name)
	return err == nil
}

func auditLogPath(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".prompt-mcp")
	}
	return filepath.Join(dir, "bootstrap-last.log"), nil
}
