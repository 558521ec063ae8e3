package organizer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lotas/tabsort/internal/settings"
	"github.com/lotas/tabsort/internal/types"
)

// fakeBrowser keeps ordered windows and applies moves the way the browser
// does: remove the tab, then insert it at the index (-1 appends).
type fakeBrowser struct {
	mu      sync.Mutex
	windows map[int][]types.Tab
	current int
	moves   []Move
	failOn  int // tab id whose move fails
}

func newFakeBrowser(current int, tabs ...types.Tab) *fakeBrowser {
	b := &fakeBrowser{windows: make(map[int][]types.Tab), current: current}
	for _, t := range tabs {
		b.windows[t.WindowID] = append(b.windows[t.WindowID], t)
	}
	return b
}

func (b *fakeBrowser) windowIDs() []int {
	ids := make([]int, 0, len(b.windows))
	for id := range b.windows {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (b *fakeBrowser) QueryTabs(_ context.Context, q types.TabQuery) ([]types.Tab, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []types.Tab
	for _, win := range b.windowIDs() {
		for i, t := range b.windows[win] {
			t.Index = i
			t.WindowID = win
			if q.Pinned != nil && t.Pinned != *q.Pinned {
				continue
			}
			if q.CurrentWindow != nil && *q.CurrentWindow && win != b.current {
				continue
			}
			if q.WindowID != nil && win != *q.WindowID {
				continue
			}
			out = append(out, t)
		}
	}
	return out, nil
}

func (b *fakeBrowser) MoveTab(_ context.Context, id int, props types.MoveProperties) (types.Tab, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id == b.failOn {
		return types.Tab{}, fmt.Errorf("No tab with id: %d.", id)
	}
	for win, tabs := range b.windows {
		for i, t := range tabs {
			if t.ID != id {
				continue
			}
			b.windows[win] = append(tabs[:i:i], tabs[i+1:]...)
			target := win
			if props.WindowID != nil {
				target = *props.WindowID
			}
			dst := b.windows[target]
			idx := props.Index
			if idx < 0 || idx > len(dst) {
				idx = len(dst)
			}
			t.WindowID = target
			dst = append(dst[:idx:idx], append([]types.Tab{t}, dst[idx:]...)...)
			b.windows[target] = dst
			b.moves = append(b.moves, Move{TabID: id, Index: props.Index, WindowID: props.WindowID})
			t.Index = idx
			return t, nil
		}
	}
	return types.Tab{}, fmt.Errorf("No tab with id: %d.", id)
}

func (b *fakeBrowser) order(win int) []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return types.IDs(b.windows[win])
}

func (b *fakeBrowser) resetMoves() {
	b.mu.Lock()
	b.moves = nil
	b.mu.Unlock()
}

type staticSettings settings.Settings

func (s staticSettings) State() settings.Settings { return settings.Settings(s) }

func tab(id int, url string, window int) types.Tab {
	return types.Tab{ID: id, URL: url, WindowID: window}
}

func indexed(tabs ...types.Tab) []types.Tab {
	pos := make(map[int]int)
	out := make([]types.Tab, len(tabs))
	for i, t := range tabs {
		t.Index = pos[t.WindowID]
		pos[t.WindowID]++
		out[i] = t
	}
	return out
}

func equalIDs(a []int, b ...int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
