package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vines90/mcp-prompt-server/internal/config"
	"github.com/vines90/mcp-prompt-server/internal/mcp"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "prompt-mcp",
	Short: "Serve a prompt catalog as dynamically registered MCP tools",
	Long: `prompt-mcp loads prompts from a SQL database, a prompt-manager API or a
directory of YAML/JSON files, and exposes each prompt as an MCP tool.

The catalog is rebuilt on demand (reload_prompts tool, SIGHUP, file changes
or a timer) and connected clients are told when the tool list changes.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "prompt-mcp v%s\n", mcp.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(serveHTTPCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(adminCmd)
	rootCmd.AddCommand(bootstrapCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
