package organizer

import (
	"sort"

	"github.com/lotas/tabsort/internal/types"
)

// Move repositions one tab. WindowID is set only when the tab must change
// windows; Index -1 appends.
type Move struct {
	TabID    int  `json:"tabId"`
	Index    int  `json:"index"`
	WindowID *int `json:"windowId,omitempty"`
}

// MovePlan is consumed by Render and then discarded.
type MovePlan []Move

// PlanMoves turns a desired order into moves.
//
// With consolidation every tab is appended, in order, to the first tab's
// window. Otherwise each window is laid out from its lowest candidate index
// and windows already in the desired order produce no moves.
func PlanMoves(tabs []types.Tab, consolidate bool) MovePlan {
	if len(tabs) == 0 {
		return nil
	}
	if consolidate {
		return PlanConsolidation(tabs, tabs[0].WindowID)
	}

	var order []int
	byWindow := make(map[int][]types.Tab)
	for _, tab := range tabs {
		if _, ok := byWindow[tab.WindowID]; !ok {
			order = append(order, tab.WindowID)
		}
		byWindow[tab.WindowID] = append(byWindow[tab.WindowID], tab)
	}

	var plan MovePlan
	for _, win := range order {
		desired := byWindow[win]
		if inOrder(desired) {
			continue
		}
		base := desired[0].Index
		for _, tab := range desired {
			if tab.Index < base {
				base = tab.Index
			}
		}
		for i, tab := range desired {
			plan = append(plan, Move{TabID: tab.ID, Index: base + i})
		}
	}
	return plan
}

// PlanConsolidation appends every tab, in order, to window target. Nothing
// moves when all tabs already sit in target in the desired order.
func PlanConsolidation(tabs []types.Tab, target int) MovePlan {
	if len(tabs) == 0 {
		return nil
	}
	settled := true
	for _, tab := range tabs {
		if tab.WindowID != target {
			settled = false
			break
		}
	}
	if settled && inOrder(tabs) {
		return nil
	}
	plan := make(MovePlan, 0, len(tabs))
	for _, tab := range tabs {
		win := target
		plan = append(plan, Move{TabID: tab.ID, Index: -1, WindowID: &win})
	}
	return plan
}

// inOrder reports whether the tabs' current positions already follow the
// slice order.
func inOrder(desired []types.Tab) bool {
	current := make([]types.Tab, len(desired))
	copy(current, desired)
	sort.SliceStable(current, func(i, j int) bool { return current[i].Index < current[j].Index })
	for i := range current {
		if current[i].ID != desired[i].ID {
			return false
		}
	}
	return true
}
