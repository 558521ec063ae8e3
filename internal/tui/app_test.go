package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lotas/tabsort/internal/applog"
	"github.com/lotas/tabsort/internal/organizer"
	"github.com/lotas/tabsort/internal/settings"
	"github.com/lotas/tabsort/internal/types"
)

func newTestModel(t *testing.T) (Model, *settings.Store, *settings.MemoryStorage) {
	t.Helper()
	storage := settings.NewMemoryStorage(nil)
	store := settings.NewStore(storage, applog.Discard())
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	org := organizer.New(nil, store, applog.Discard())
	tabs := []types.Tab{
		{ID: 1, URL: "https://github.com/b", Title: "repo b", WindowID: 1, Index: 0},
		{ID: 2, URL: "https://news.ycombinator.com/", Title: "hn", WindowID: 1, Index: 1},
		{ID: 3, URL: "https://github.com/a", Title: "repo a", WindowID: 1, Index: 2},
	}
	m := NewModel(store, org, nil).WithTabs(tabs)
	m.width, m.height = 120, 30
	return m, store, storage
}

func key(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends a key and feeds any resulting message back into the model.
func press(t *testing.T, m Model, s string) Model {
	t.Helper()
	next, cmd := m.Update(key(s))
	m = next.(Model)
	if cmd != nil {
		if msg := cmd(); msg != nil {
			next, _ = m.Update(msg)
			m = next.(Model)
		}
	}
	return m
}

func TestModelInitWithoutProfiles(t *testing.T) {
	m, _, _ := newTestModel(t)
	if cmd := m.Init(); cmd != nil {
		t.Error("Init should not load a session without profiles")
	}
}

func TestModelPreviewGroupsTabs(t *testing.T) {
	m, _, _ := newTestModel(t)
	ids := types.IDs(m.sorted)
	want := []int{3, 1, 2}
	if len(ids) != len(want) {
		t.Fatalf("sorted = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("sorted = %v, want %v", ids, want)
		}
	}
	view := m.View()
	if !strings.Contains(view, "(2)") {
		t.Errorf("view should show the group count:\n%s", view)
	}
	if !strings.Contains(view, "repo a") {
		t.Errorf("view should list tab titles:\n%s", view)
	}
}

func TestModelToggleSavesSetting(t *testing.T) {
	m, store, storage := newTestModel(t)

	m = press(t, m, " ")
	if store.State().ClusterGroupedTabs {
		t.Fatal("space should turn clusterGroupedTabs off")
	}
	if storage.Sets() != 1 {
		t.Errorf("storage written %d times, want 1", storage.Sets())
	}
	if m.status != "saved" {
		t.Errorf("status = %q, want saved", m.status)
	}

	// Cursor to showGroupTabCount and turn it off.
	for i := 0; i < 5; i++ {
		m = press(t, m, "j")
	}
	if got := m.list.SelectedKey(); got != "showGroupTabCount" {
		t.Fatalf("cursor on %s", got)
	}
	m = press(t, m, "enter")
	if store.State().ShowGroupTabCount {
		t.Fatal("enter should turn showGroupTabCount off")
	}
	if strings.Contains(m.View(), "(2)") {
		t.Error("group counts should be hidden")
	}

	m = press(t, m, "d")
	if store.State() != settings.Defaults() {
		t.Errorf("d should restore defaults, got %+v", store.State())
	}
}

type failingStore struct{ state settings.Settings }

func (f *failingStore) State() settings.Settings { return f.state }

func (f *failingStore) SetState(context.Context, settings.Settings) error {
	return errors.New("disk full")
}

func TestModelSaveError(t *testing.T) {
	store := &failingStore{state: settings.Defaults()}
	m := NewModel(store, organizer.New(nil, store, applog.Discard()), nil)
	m = press(t, m, " ")
	if m.err == nil || !strings.Contains(m.View(), "disk full") {
		t.Errorf("save error not shown: err=%v", m.err)
	}
}

func TestModelProfilePicker(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.profiles = []types.Profile{
		{Name: "default-release", Path: t.TempDir(), IsDefault: true},
		{Name: "work", Path: t.TempDir()},
	}

	m = press(t, m, "p")
	if !m.showPicker {
		t.Fatal("p should open the profile picker")
	}
	if !strings.Contains(m.View(), "Preview tabs from profile:") {
		t.Error("picker not rendered")
	}
	m = press(t, m, "esc")
	if m.showPicker {
		t.Fatal("esc should close the picker")
	}

	// Selecting a profile without a session file reports the read error.
	m = press(t, m, "p")
	m = press(t, m, "j")
	m = press(t, m, "enter")
	if m.err == nil || !strings.Contains(m.err.Error(), "load work") {
		t.Errorf("err = %v, want load error for work", m.err)
	}
	if m.loading {
		t.Error("loading should be cleared after the session message")
	}
}

func TestModelSessionLoaded(t *testing.T) {
	m, _, _ := newTestModel(t)
	next, _ := m.Update(sessionLoadedMsg{
		profile: types.Profile{Name: "work"},
		tabs:    []types.Tab{{ID: 9, URL: "https://example.com/", Title: "example", WindowID: 1}},
	})
	m = next.(Model)
	if m.profile.Name != "work" || len(m.sorted) != 1 {
		t.Errorf("profile=%q sorted=%v", m.profile.Name, m.sorted)
	}
	if !strings.Contains(m.View(), "Profile: work") {
		t.Error("top bar should name the profile")
	}
}

func TestModelShowsSortError(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = m.WithTabs([]types.Tab{{ID: 4, Title: "about", WindowID: 1}})
	if m.sortErr == nil {
		t.Fatal("a tab without a URL should fail alphabetic sorting")
	}
	if !strings.Contains(m.View(), "cannot sort") {
		t.Error("sort error not shown in preview")
	}
}

func TestModelQuit(t *testing.T) {
	m, _, _ := newTestModel(t)
	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}
