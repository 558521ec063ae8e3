package export

import (
	"time"

	"github.com/lotas/tabsort/internal/naming"
	"github.com/lotas/tabsort/internal/organizer"
	"github.com/lotas/tabsort/internal/types"
)

// Report is a sorted tab list with its clusters and the moves that would
// produce it.
type Report struct {
	Profile     string
	GeneratedAt time.Time
	Groups      []organizer.Group
	Moves       organizer.MovePlan
	opts        organizer.Options
}

// NewReport groups sorted for display. Clusters are listed even when the
// clustering stage is disabled, so the preview shows what it would join.
func NewReport(profile string, sorted []types.Tab, opts organizer.Options, moves organizer.MovePlan) *Report {
	return &Report{
		Profile:     profile,
		GeneratedAt: time.Now(),
		Groups:      organizer.Groups(sorted, opts),
		Moves:       moves,
		opts:        opts,
	}
}

func (r *Report) tabCount() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Tabs)
	}
	return n
}

func groupTitle(g organizer.Group) string {
	if g.Key == "" {
		return "Ungrouped"
	}
	return g.Key
}

func (r *Report) host(rawURL string) string {
	name, err := r.opts.Deriver.GroupName(naming.Granular, rawURL)
	if err != nil {
		return rawURL
	}
	return name
}
