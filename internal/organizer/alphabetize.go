package organizer

import (
	"sort"

	"github.com/lotas/tabsort/internal/types"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Alphabetize returns a copy of tabs ordered by sort key with a locale-aware
// collator. Equal keys keep their input order. Every tab must have a URL;
// callers drop URL-less tabs first if they want them sorted around.
func Alphabetize(tabs []types.Tab, opts Options) ([]types.Tab, error) {
	type keyed struct {
		tab types.Tab
		key string
	}
	items := make([]keyed, len(tabs))
	for i, tab := range tabs {
		if tab.URL == "" {
			return nil, &InputError{TabID: tab.ID, Reason: "no url for sorted tab"}
		}
		key, err := opts.Deriver.SortName(opts.Mode, tab.URL)
		if err != nil {
			// Unparsable but present: order by the raw address.
			key = tab.URL
		}
		items[i] = keyed{tab, key}
	}

	locale := opts.Locale
	if locale == language.Und {
		locale = language.English
	}
	c := collate.New(locale)
	sort.SliceStable(items, func(i, j int) bool {
		return c.CompareString(items[i].key, items[j].key) < 0
	})

	out := make([]types.Tab, len(items))
	for i, it := range items {
		out[i] = it.tab
	}
	return out, nil
}
