package export

import (
	"encoding/json"
	"time"

	"github.com/lotas/tabsort/internal/organizer"
)

type jsonExport struct {
	Profile     string             `json:"profile"`
	GeneratedAt time.Time          `json:"generated_at"`
	TabCount    int                `json:"tab_count"`
	Groups      []jsonGroup        `json:"groups"`
	Moves       organizer.MovePlan `json:"moves"`
}

type jsonGroup struct {
	Name     string    `json:"name"`
	WindowID int       `json:"window_id,omitempty"`
	Orphans  bool      `json:"orphans,omitempty"`
	Tabs     []jsonTab `json:"tabs"`
}

type jsonTab struct {
	ID       int    `json:"id"`
	Title    string `json:"title,omitempty"`
	URL      string `json:"url,omitempty"`
	Host     string `json:"host,omitempty"`
	WindowID int    `json:"window_id"`
	Index    int    `json:"index"`
}

// JSON formats a report as a JSON document.
func JSON(r *Report) (string, error) {
	out := jsonExport{
		Profile:     r.Profile,
		GeneratedAt: r.GeneratedAt,
		TabCount:    r.tabCount(),
		Groups:      make([]jsonGroup, 0, len(r.Groups)),
		Moves:       r.Moves,
	}
	if out.Moves == nil {
		out.Moves = organizer.MovePlan{}
	}

	for _, g := range r.Groups {
		group := jsonGroup{
			Name:     groupTitle(g),
			WindowID: g.WindowID,
			Orphans:  g.Key == "",
			Tabs:     make([]jsonTab, 0, len(g.Tabs)),
		}
		for _, tab := range g.Tabs {
			jt := jsonTab{
				ID:       tab.ID,
				Title:    tab.Title,
				URL:      tab.URL,
				WindowID: tab.WindowID,
				Index:    tab.Index,
			}
			if tab.URL != "" {
				jt.Host = r.host(tab.URL)
			}
			group.Tabs = append(group.Tabs, jt)
		}
		out.Groups = append(out.Groups, group)
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}
