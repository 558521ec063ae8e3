package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/tabsort/internal/settings"
)

var settingLabels = map[string]string{
	"clusterGroupedTabs":       "Cluster tabs that share a site",
	"enableAutomaticGrouping":  "Organize on tab events",
	"enableAlphabeticSorting":  "Sort alphabetically by address",
	"enableSubdomainFiltering": "Treat subdomains as separate sites",
	"forceWindowConsolidation": "Gather tabs into one window",
	"showGroupTabCount":        "Show tab counts on groups",
	"suspendCollapsedGroups":   "Suspend tabs in collapsed groups",
}

// SettingsList is the toggle list on the left.
type SettingsList struct {
	Keys   []string
	Cursor int
	Width  int
}

func NewSettingsList() SettingsList {
	return SettingsList{Keys: settings.Keys()}
}

func (l *SettingsList) MoveUp() {
	if l.Cursor > 0 {
		l.Cursor--
	}
}

func (l *SettingsList) MoveDown() {
	if l.Cursor < len(l.Keys)-1 {
		l.Cursor++
	}
}

func (l SettingsList) SelectedKey() string {
	return l.Keys[l.Cursor]
}

func (l SettingsList) View(s settings.Settings) string {
	cursorStyle := lipgloss.NewStyle().Bold(true).Reverse(true)
	onStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	offStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	var b strings.Builder
	for i, key := range l.Keys {
		v, _ := s.Get(key)
		mark := offStyle.Render("[ ]")
		if v {
			mark = onStyle.Render("[x]")
		}
		label := settingLabels[key]
		if i == l.Cursor {
			label = cursorStyle.Render(label)
		}
		b.WriteString(mark + " " + label + "\n")
		b.WriteString("    " + keyStyle.Render(key) + "\n")
	}
	return b.String()
}
