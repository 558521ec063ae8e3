package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/tabsort/internal/firefox"
	"github.com/lotas/tabsort/internal/organizer"
	"github.com/lotas/tabsort/internal/settings"
	"github.com/lotas/tabsort/internal/types"
)

// --- Messages ---

type sessionLoadedMsg struct {
	profile types.Profile
	tabs    []types.Tab
	err     error
}

type savedMsg struct {
	state settings.Settings
	err   error
}

// Store is the settings surface the TUI edits.
type Store interface {
	State() settings.Settings
	SetState(ctx context.Context, s settings.Settings) error
}

// --- Commands ---

func loadSession(p types.Profile) tea.Cmd {
	return func() tea.Msg {
		sess, err := firefox.ReadSessionFile(p.Path)
		if err != nil {
			return sessionLoadedMsg{profile: p, err: err}
		}
		return sessionLoadedMsg{profile: p, tabs: sess.CurrentFirst()}
	}
}

func saveSettings(store Store, s settings.Settings) tea.Cmd {
	return func() tea.Msg {
		return savedMsg{state: s, err: store.SetState(context.Background(), s)}
	}
}

// --- Model ---

// Model toggles settings and previews the resulting tab order.
type Model struct {
	store     Store
	organizer *organizer.Organizer

	// Preview data
	profiles []types.Profile
	profile  types.Profile
	tabs     []types.Tab
	sorted   []types.Tab
	sortErr  error

	// UI state
	list       SettingsList
	picker     ProfilePicker
	showPicker bool
	loading    bool
	status     string
	err        error
	width      int
	height     int
}

// NewModel builds the settings screen. org must read its settings from
// store. With profiles, the preview starts from the default profile.
func NewModel(store Store, org *organizer.Organizer, profiles []types.Profile) Model {
	m := Model{
		store:     store,
		organizer: org,
		profiles:  profiles,
		list:      NewSettingsList(),
	}
	if p, err := firefox.PickProfile(profiles, ""); err == nil {
		m.profile = p
		m.loading = true
	}
	return m
}

// WithTabs sets the preview input directly.
func (m Model) WithTabs(tabs []types.Tab) Model {
	m.tabs = tabs
	m.loading = false
	m.refreshPreview()
	return m
}

func (m Model) Init() tea.Cmd {
	if m.loading {
		return loadSession(m.profile)
	}
	return nil
}

func (m *Model) refreshPreview() {
	m.sorted, m.sortErr = nil, nil
	if len(m.tabs) == 0 {
		return
	}
	m.sorted, m.sortErr = m.organizer.Sort(context.Background(), organizer.Filter(m.tabs, nil))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.Width = msg.Width * 2 / 5
		return m, nil

	case sessionLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = fmt.Errorf("load %s: %w", msg.profile.Name, msg.err)
			return m, nil
		}
		m.err = nil
		m.profile = msg.profile
		m.tabs = msg.tabs
		m.refreshPreview()
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
		} else {
			m.err = nil
			m.status = "saved"
		}
		m.refreshPreview()
		return m, nil

	case tea.KeyMsg:
		if m.showPicker {
			switch msg.String() {
			case "up", "k":
				m.picker.MoveUp()
			case "down", "j":
				m.picker.MoveDown()
			case "enter":
				m.showPicker = false
				if p, ok := m.picker.Selected(); ok {
					m.loading = true
					return m, loadSession(p)
				}
			case "esc":
				m.showPicker = false
			case "ctrl+c":
				return m, tea.Quit
			}
			return m, nil
		}

		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			m.list.MoveUp()
		case "down", "j":
			m.list.MoveDown()
		case " ", "enter":
			key := m.list.SelectedKey()
			current := m.store.State()
			v, _ := current.Get(key)
			next, err := current.With(key, !v)
			if err != nil {
				m.err = err
				return m, nil
			}
			m.status = "saving..."
			return m, saveSettings(m.store, next)
		case "d":
			m.status = "saving..."
			return m, saveSettings(m.store, settings.Defaults())
		case "p":
			m.picker = NewProfilePicker(m.profiles, m.profile.Name)
			m.showPicker = true
		case "r":
			if m.profile.Path != "" {
				m.loading = true
				return m, loadSession(m.profile)
			}
		}
	}
	return m, nil
}

func (m Model) View() string {
	if m.showPicker {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.picker.View())
	}

	topBarStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	source := "no preview source"
	if m.profile.Name != "" {
		source = "Profile: " + m.profile.Name
	}
	top := topBarStyle.Render(fmt.Sprintf("tabsort settings · %s", source))

	paneHeight := m.height - 4
	if paneHeight < 5 {
		paneHeight = 5
	}
	leftWidth := m.list.Width
	if leftWidth < 30 {
		leftWidth = 40
	}
	rightWidth := m.width - leftWidth - 4
	if rightWidth < 30 {
		rightWidth = 50
	}

	listBorder := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Width(leftWidth).
		Height(paneHeight)
	previewBorder := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(rightWidth).
		Height(paneHeight)

	state := m.store.State()
	panes := lipgloss.JoinHorizontal(lipgloss.Top,
		listBorder.Render(m.list.View(state)),
		previewBorder.Render(m.previewView(state, rightWidth, paneHeight)),
	)

	bottomBarStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)
	bottom := "↑↓ navigate · space toggle · d defaults · p profile · r reload · q quit"
	if m.err != nil {
		bottom = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("error: "+m.err.Error()) + "  " + bottom
	} else if m.status != "" {
		bottom = m.status + "  " + bottom
	}

	return top + "\n" + panes + "\n" + bottomBarStyle.Render(bottom)
}

func (m Model) previewView(state settings.Settings, width, height int) string {
	headerStyle := lipgloss.NewStyle().Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)

	switch {
	case m.loading:
		return dimStyle.Render("loading session...")
	case len(m.tabs) == 0:
		return dimStyle.Render("no tabs to preview")
	case m.sortErr != nil:
		return warnStyle.Render("cannot sort: " + m.sortErr.Error())
	}

	var lines []string
	for _, g := range organizer.Groups(m.sorted, m.organizer.Options()) {
		title := g.Key
		if title == "" {
			title = "other"
		}
		if state.ShowGroupTabCount {
			title = fmt.Sprintf("%s (%d)", title, len(g.Tabs))
		}
		lines = append(lines, headerStyle.Render(title))
		for _, t := range g.Tabs {
			label := t.Title
			if label == "" {
				label = t.URL
			}
			lines = append(lines, "  "+truncate(label, width-4))
		}
	}
	if len(lines) > height {
		more := len(lines) - height + 1
		lines = append(lines[:height-1], dimStyle.Render(fmt.Sprintf("… %d more", more)))
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	if n <= 1 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
