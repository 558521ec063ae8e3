package organizer

import (
	"fmt"

	"github.com/gobwas/glob"
	"github.com/lotas/tabsort/internal/types"
)

// Excludes is a compiled list of URL glob patterns.
type Excludes []glob.Glob

// CompileExcludes compiles URL patterns such as "chrome://*" or
// "*://mail.google.com/*".
func CompileExcludes(patterns []string) (Excludes, error) {
	out := make(Excludes, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile exclude pattern %q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// Match reports whether url matches any pattern.
func (e Excludes) Match(url string) bool {
	for _, g := range e {
		if g.Match(url) {
			return true
		}
	}
	return false
}

// Filter drops pinned tabs and tabs matching an exclude pattern. The result
// is the candidate list the pipeline may reorder.
func Filter(tabs []types.Tab, exclude Excludes) []types.Tab {
	out := make([]types.Tab, 0, len(tabs))
	for _, tab := range tabs {
		if tab.Pinned {
			continue
		}
		if tab.URL != "" && exclude.Match(tab.URL) {
			continue
		}
		out = append(out, tab)
	}
	return out
}
