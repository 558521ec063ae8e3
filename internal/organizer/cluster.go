package organizer

import (
	"fmt"

	"github.com/lotas/tabsort/internal/types"
)

// Cluster moves tabs that share a group with at least one other tab ahead of
// orphans. Both partitions keep their input order.
func Cluster(tabs []types.Tab, opts Options) ([]types.Tab, error) {
	categorized := Categorize(tabs, opts)

	grouped := make([]types.Tab, 0, len(tabs))
	var orphans []types.Tab
	for _, tab := range tabs {
		key := opts.groupKey(tab)
		win := opts.windowFor(tab, tabs)
		members, ok := categorized.Members(key, win)
		if !ok {
			return nil, fmt.Errorf("tab %d in %q/window %d: %w", tab.ID, key, win, ErrUnregisteredGroup)
		}
		if len(members) < 2 {
			orphans = append(orphans, tab)
		} else {
			grouped = append(grouped, tab)
		}
	}
	return append(grouped, orphans...), nil
}

// Group is one cluster in output order.
type Group struct {
	Key      string
	WindowID int
	Tabs     []types.Tab
}

// Groups lists the multi-member clusters of tabs in first-appearance order,
// followed by a single orphan bucket with an empty key when any exist.
func Groups(tabs []types.Tab, opts Options) []Group {
	categorized := Categorize(tabs, opts)

	type slot struct {
		key string
		win int
	}
	seen := make(map[slot]bool)
	var groups []Group
	var orphans []types.Tab
	for _, tab := range tabs {
		s := slot{opts.groupKey(tab), opts.windowFor(tab, tabs)}
		members, _ := categorized.Members(s.key, s.win)
		if len(members) < 2 {
			orphans = append(orphans, tab)
			continue
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		groups = append(groups, Group{Key: s.key, WindowID: s.win, Tabs: members})
	}
	if len(orphans) > 0 {
		groups = append(groups, Group{Tabs: orphans})
	}
	return groups
}
