package organizer

import (
	"github.com/lotas/tabsort/internal/naming"
	"github.com/lotas/tabsort/internal/settings"
	"github.com/lotas/tabsort/internal/types"
	"golang.org/x/text/language"
)

// Options is the part of a settings snapshot the engine stages read.
type Options struct {
	Mode                     naming.Mode
	ForceWindowConsolidation bool
	Deriver                  naming.Deriver
	Locale                   language.Tag
}

// OptionsFrom derives stage options from a settings snapshot.
func OptionsFrom(s settings.Settings) Options {
	return Options{
		Mode:                     naming.ModeFor(s.EnableSubdomainFiltering),
		ForceWindowConsolidation: s.ForceWindowConsolidation,
		Deriver:                  naming.Default,
		Locale:                   language.English,
	}
}

// groupKey never fails: tabs without a usable URL get a key of their own.
func (o Options) groupKey(tab types.Tab) string {
	name, err := o.Deriver.GroupName(o.Mode, tab.URL)
	if err != nil {
		return UnknownGroupKey(tab.ID)
	}
	return name
}

// windowFor returns the window a tab is grouped and rendered in. With
// consolidation forced, that is the first tab's window for every tab.
func (o Options) windowFor(tab types.Tab, tabs []types.Tab) int {
	if o.ForceWindowConsolidation && len(tabs) > 0 {
		return tabs[0].WindowID
	}
	return tab.WindowID
}
