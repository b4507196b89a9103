package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/harun/memindex/pkg/memory"
)

const maxDescriptionWidth = 100

var (
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("76")).Bold(true)
	pathStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	headerStyle  = lipgloss.NewStyle().Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

func printSearchResults(w io.Writer, query string, results []memory.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintf(w, "No relevant memories found for: %q\n", query)
		fmt.Fprintln(w, mutedStyle.Render("Tip: run `memindex rebuild --embed` if notes were added without embeddings."))
		return
	}

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Found %d relevant memories", len(results))))
	fmt.Fprintln(w)
	for i, r := range results {
		fmt.Fprintf(w, "%d. %s %s\n", i+1,
			scoreStyle.Render(fmt.Sprintf("[%.2f]", r.Score)),
			pathStyle.Render(r.GroupName+"/"+r.FileName))
		if r.Description != "" {
			fmt.Fprintf(w, "   %s\n", truncate(r.Description, maxDescriptionWidth))
		}
		if len(r.Tags) > 0 {
			fmt.Fprintf(w, "   %s\n", mutedStyle.Render("Tags: "+strings.Join(r.Tags, ", ")))
		}
	}
}

func printRelated(w io.Writer, path string, matches []memory.RelatedMatch) {
	if len(matches) == 0 {
		fmt.Fprintf(w, "No related memories found for: %s\n", path)
		return
	}

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Found %d related memories", len(matches))))
	fmt.Fprintln(w)
	for i, m := range matches {
		fmt.Fprintf(w, "%d. %s %s\n", i+1,
			scoreStyle.Render(fmt.Sprintf("[%d]", m.Score)),
			pathStyle.Render(m.Entry.GroupName+"/"+m.Entry.FileName))
		if len(m.SharedTags) > 0 {
			fmt.Fprintf(w, "   %s\n", mutedStyle.Render("Shared tags: "+strings.Join(m.SharedTags, ", ")))
		}
		if len(m.SharedKeywords) > 0 {
			fmt.Fprintf(w, "   %s\n", mutedStyle.Render("Shared keywords: "+strings.Join(m.SharedKeywords, ", ")))
		}
	}
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width]) + "..."
}
