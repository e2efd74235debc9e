package main

import (
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vines90/mcp-prompt-server/internal/admin"
	"github.com/vines90/mcp-prompt-server/internal/bootstrap"
	"github.com/vines90/mcp-prompt-server/internal/config"
	"github.com/vines90/mcp-prompt-server/internal/logging"
	"github.com/vines90/mcp-prompt-server/internal/store"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Open a terminal dashboard over the prompt database",
	RunE:  runAdmin,
}

var bootstrapOpts bootstrap.Options

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap-clis",
	Short: "Register this server with installed agent CLIs",
	Long: `Register prompt-mcp with codex, claude and gemini. Each CLI's existing
registration under the same name is removed first.

Use --env KEY=VALUE (repeatable) to pass settings such as DATABASE_URL or
USER_TOKEN to the launched server.`,
	RunE: runBootstrap,
}

func init() {
	f := bootstrapCmd.Flags()
	f.StringVar(&bootstrapOpts.Scope, "scope", "user", "Config scope: user or project")
	f.StringVar(&bootstrapOpts.ServerName, "server-name", "prompt-server", "MCP server registration name")
	f.StringVar(&bootstrapOpts.ServeCmd, "serve-command", "prompt-mcp serve", "Command used by MCP clients to launch the stdio server")
	f.StringArrayVar(&bootstrapOpts.Env, "env", nil, "KEY=VALUE passed to the server (repeatable)")
	f.BoolVar(&bootstrapOpts.All, "all", false, "Configure all available CLIs")
	f.BoolVar(&bootstrapOpts.Codex, "codex", false, "Configure Codex CLI")
	f.BoolVar(&bootstrapOpts.Claude, "claude", false, "Configure Claude CLI")
	f.BoolVar(&bootstrapOpts.Gemini, "gemini", false, "Configure Gemini CLI")
	f.BoolVar(&bootstrapOpts.DryRun, "dry-run", false, "Print intended commands without executing")
}

func runAdmin(cmd *cobra.Command, _ []string) error {
	cfg, logger, closer, err := loadConfig()
	if err != nil {
		return err
	}
	defer closer.Close()
	if cfg.Backend != config.BackendSQL {
		return errors.New("admin dashboard requires the sql backend")
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	return admin.Run(ctx, st)
}

func runBootstrap(_ *cobra.Command, _ []string) error {
	opts := bootstrapOpts
	abs, err := filepath.Abs(config.ExpandPath(configPath))
	if err != nil {
		return err
	}
	opts.ConfigPath = abs
	logger := logging.NewWithWriter(os.Stderr, "bootstrap", logLevel)
	return bootstrap.Bootstrap(logger, opts, nil)
}
