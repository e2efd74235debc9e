package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/vines90/mcp-prompt-server/pkg/types"
)

var (
	catalogJSON       bool
	catalogSearch     string
	catalogCategories bool
	catalogLimit      int
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Build the prompt catalog once and print it",
	Long: `Build the catalog the server would publish and print one row per tool:
tool name, popularity score and display name.

--search queries the whole prompt database rather than the budgeted catalog
when the SQL backend is reachable.`,
	RunE: runCatalog,
}

func init() {
	catalogCmd.Flags().BoolVar(&catalogJSON, "json", false, "Print JSON instead of a table")
	catalogCmd.Flags().StringVar(&catalogSearch, "search", "", "Only show prompts matching this text")
	catalogCmd.Flags().BoolVar(&catalogCategories, "categories", false, "List categories instead of prompts")
	catalogCmd.Flags().IntVar(&catalogLimit, "limit", 50, "Maximum search results")
}

func runCatalog(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()
	snap := rt.catalog.Snapshot()

	if catalogCategories {
		categories := snap.Categories()
		if rt.backend != nil {
			if all, err := rt.backend.Categories(ctx); err != nil {
				rt.logger.Warn("category query failed, using catalog categories", "error", err)
			} else {
				categories = all
			}
		}
		if catalogJSON {
			return writeJSON(out, categories)
		}
		for _, c := range categories {
			fmt.Fprintln(out, c)
		}
		return nil
	}

	prompts := snap.Prompts()
	if q := strings.TrimSpace(catalogSearch); q != "" {
		prompts = snap.Search(q)
		if rt.sql != nil {
			records, err := rt.sql.SearchPrompts(ctx, q, catalogLimit)
			if err != nil {
				rt.logger.Warn("database search failed, using catalog search", "error", err)
			} else {
				prompts = rt.builder.AssembleAll(records, rt.catalog.OwnerID())
			}
		}
	}

	if catalogJSON {
		rows := make([]types.PromptSummary, 0, len(prompts))
		for _, p := range prompts {
			rows = append(rows, types.Summarize(p))
		}
		return writeJSON(out, rows)
	}
	fmt.Fprintln(out, renderCatalog(prompts))
	fmt.Fprintf(out, "%d prompts from %s (generation %d)\n", len(prompts), snap.Source, snap.Generation)
	return nil
}

func renderCatalog(prompts []types.Prompt) string {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("TOOL", "SCORE", "NAME", "CATEGORY").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	for _, p := range prompts {
		t.Row(p.ToolName, strconv.FormatFloat(p.PopularityScore, 'f', 1, 64), p.DisplayName, p.Category)
	}
	return t.String()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
