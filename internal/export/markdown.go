package export

import (
	"fmt"
	"strings"
)

// Markdown formats a report as a markdown document.
func Markdown(r *Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Tab order: %s\n", r.Profile)
	fmt.Fprintf(&b, "> Generated %s, %d tabs, %d moves\n", r.GeneratedAt.Format("2006-01-02 15:04"), r.tabCount(), len(r.Moves))

	for _, g := range r.Groups {
		n := len(g.Tabs)
		noun := "tabs"
		if n == 1 {
			noun = "tab"
		}
		fmt.Fprintf(&b, "\n## %s (%d %s)\n\n", groupTitle(g), n, noun)

		for _, tab := range g.Tabs {
			title := tab.Title
			if title == "" {
				title = tab.URL
			}
			if tab.URL == "" {
				fmt.Fprintf(&b, "- %s (no address)\n", orUntitled(title))
				continue
			}
			fmt.Fprintf(&b, "- [%s](%s) (%s)\n", title, tab.URL, r.host(tab.URL))
		}
	}

	if len(r.Moves) == 0 {
		b.WriteString("\nAlready in order.\n")
		return b.String()
	}
	b.WriteString("\n## Moves\n\n")
	for i, m := range r.Moves {
		if m.WindowID != nil {
			fmt.Fprintf(&b, "%d. tab %d -> window %d, end\n", i+1, m.TabID, *m.WindowID)
			continue
		}
		fmt.Fprintf(&b, "%d. tab %d -> index %d\n", i+1, m.TabID, m.Index)
	}
	return b.String()
}

func orUntitled(s string) string {
	if s == "" {
		return "untitled"
	}
	return s
}
