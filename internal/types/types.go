package types

// Tab is a read-only snapshot of a browser tab. The browser owns the tab;
// its ID may become invalid at any time.
type Tab struct {
	ID       int    `json:"id"`
	URL      string `json:"url,omitempty"` // empty for privileged pages
	Title    string `json:"title,omitempty"`
	WindowID int    `json:"windowId"`
	Pinned   bool   `json:"pinned,omitempty"`
	Index    int    `json:"index"`
}

// TabQuery filters a tab query. Nil fields are not filtered on.
type TabQuery struct {
	Pinned        *bool `json:"pinned,omitempty"`
	CurrentWindow *bool `json:"currentWindow,omitempty"`
	WindowID      *int  `json:"windowId,omitempty"`
}

// MoveProperties mirrors the browser's tab move options.
// Index -1 appends to the end of the window.
type MoveProperties struct {
	Index    int  `json:"index"`
	WindowID *int `json:"windowId,omitempty"`
}

// Profile represents a Firefox profile.
type Profile struct {
	Name       string
	Path       string // absolute path to profile directory
	IsDefault  bool
	IsRelative bool
}

// IDs returns the tab ids in order.
func IDs(tabs []Tab) []int {
	ids := make([]int, len(tabs))
	for i, t := range tabs {
		ids[i] = t.ID
	}
	return ids
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// Int returns a pointer to i.
func Int(i int) *int { return &i }
