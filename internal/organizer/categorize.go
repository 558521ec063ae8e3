package organizer

import (
	"strconv"
	"strings"

	"github.com/lotas/tabsort/internal/types"
)

const unknownPrefix = "\x00unknown:"

// Categorized maps group key -> window id -> member tabs in input order.
type Categorized map[string]map[int][]types.Tab

// UnknownGroupKey is the reserved key for a tab whose URL yields no group.
// It is unique per tab, so such tabs never form a multi-member group.
func UnknownGroupKey(tabID int) string {
	return unknownPrefix + strconv.Itoa(tabID)
}

// IsUnknownGroupKey reports whether key was made by UnknownGroupKey.
func IsUnknownGroupKey(key string) bool {
	return strings.HasPrefix(key, unknownPrefix)
}

// Categorize buckets tabs by group key and effective window.
func Categorize(tabs []types.Tab, opts Options) Categorized {
	out := make(Categorized)
	for _, tab := range tabs {
		key := opts.groupKey(tab)
		win := opts.windowFor(tab, tabs)
		byWindow, ok := out[key]
		if !ok {
			byWindow = make(map[int][]types.Tab)
			out[key] = byWindow
		}
		byWindow[win] = append(byWindow[win], tab)
	}
	return out
}

// Members returns the tabs sharing key in window.
func (c Categorized) Members(key string, window int) ([]types.Tab, bool) {
	byWindow, ok := c[key]
	if !ok {
		return nil, false
	}
	tabs, ok := byWindow[window]
	return tabs, ok
}
