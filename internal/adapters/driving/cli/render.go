package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/graphloom/internal/core/domain"
)

// maxDescription truncates descriptions in table output.
const maxDescription = 48

// printResult writes a result as JSON or as styled tables.
func printResult(cmd *cobra.Command, res *domain.KnowledgeGraphResult) error {
	if jsonOutput {
		return printJSON(cmd, res)
	}
	if res == nil {
		cmd.Println(warningStyle.Render("No result: no backend returned data. Re-run with --verbose for details."))
		return nil
	}

	cmd.Println(titleStyle.Render(fmt.Sprintf("%d entities, %d relationships",
		len(res.Entities), len(res.Relationships))))
	cmd.Println(mutedStyle.Render(formatMetadata(res.Metadata)))
	cmd.Println()

	if len(res.Entities) > 0 {
		rows := make([][]string, 0, len(res.Entities))
		for _, e := range res.Entities {
			rows = append(rows, []string{
				e.Name,
				string(e.Type),
				provenanceStyle(string(e.Provenance)).Render(string(e.Provenance)),
				truncate(e.Description, maxDescription),
			})
		}
		cmd.Println(renderTable([]string{"NAME", "TYPE", "PROVENANCE", "DESCRIPTION"}, rows))
	}

	if len(res.Relationships) > 0 {
		cmd.Println()
		rows := make([][]string, 0, len(res.Relationships))
		for _, r := range res.Relationships {
			rows = append(rows, []string{r.Source, r.Label, r.Target})
		}
		cmd.Println(renderTable([]string{"SOURCE", "LABEL", "TARGET"}, rows))
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// renderTable lays out rows in padded columns under a styled header.
func renderTable(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var b strings.Builder
	b.WriteString(renderRow(header, widths, headerStyle))
	for _, row := range rows {
		b.WriteString("\n")
		b.WriteString(renderRow(row, widths, lipgloss.NewStyle()))
	}
	return b.String()
}

func renderRow(cells []string, widths []int, style lipgloss.Style) string {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = cellStyle.Width(widths[i] + 2).Render(style.Render(cell))
	}
	return strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, parts...), " ")
}

// formatMetadata renders metadata as sorted key=value pairs.
func formatMetadata(m domain.Metadata) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return strings.Join(parts, " ")
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
