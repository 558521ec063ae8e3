package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/tabsort/internal/types"
)

// ProfilePicker is an overlay for choosing which Firefox profile's session
// feeds the order preview.
type ProfilePicker struct {
	Profiles []types.Profile
	Cursor   int
}

func NewProfilePicker(profiles []types.Profile, current string) ProfilePicker {
	cursor := 0
	for i, p := range profiles {
		if p.Name == current || (current == "" && p.IsDefault) {
			cursor = i
			break
		}
	}
	return ProfilePicker{Profiles: profiles, Cursor: cursor}
}

func (m *ProfilePicker) MoveUp() {
	if m.Cursor > 0 {
		m.Cursor--
	}
}

func (m *ProfilePicker) MoveDown() {
	if m.Cursor < len(m.Profiles)-1 {
		m.Cursor++
	}
}

func (m ProfilePicker) Selected() (types.Profile, bool) {
	if len(m.Profiles) == 0 {
		return types.Profile{}, false
	}
	return m.Profiles[m.Cursor], true
}

func (m ProfilePicker) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	selectedStyle := lipgloss.NewStyle().Bold(true).Reverse(true).Padding(0, 1)
	normalStyle := lipgloss.NewStyle().Padding(0, 1)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Preview tabs from profile:") + "\n\n")

	if len(m.Profiles) == 0 {
		b.WriteString(dimStyle.Render("no profiles with a session file") + "\n")
	}
	for i, p := range m.Profiles {
		label := p.Name
		if p.IsDefault {
			label += " (default)"
		}
		if i == m.Cursor {
			b.WriteString(selectedStyle.Render("> "+label) + "\n")
		} else {
			b.WriteString(normalStyle.Render(fmt.Sprintf("  %s", label)) + "\n")
		}
	}

	b.WriteString("\n" + normalStyle.Render("↑↓ navigate · enter select · esc cancel"))

	return boxStyle.Render(b.String())
}
