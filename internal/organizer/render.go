package organizer

import (
	"context"
	"fmt"

	"github.com/lotas/tabsort/internal/types"
)

// Browser is the tab surface the organizer drives.
type Browser interface {
	QueryTabs(ctx context.Context, q types.TabQuery) ([]types.Tab, error)
	MoveTab(ctx context.Context, tabID int, props types.MoveProperties) (types.Tab, error)
}

// Render executes plan one move at a time. The first failed move stops the
// run and is returned; tabs that vanished are not skipped or retried.
func Render(ctx context.Context, b Browser, plan MovePlan) error {
	for _, m := range plan {
		if err := ctx.Err(); err != nil {
			return err
		}
		props := types.MoveProperties{Index: m.Index, WindowID: m.WindowID}
		if _, err := b.MoveTab(ctx, m.TabID, props); err != nil {
			return fmt.Errorf("move tab %d: %w", m.TabID, err)
		}
	}
	return nil
}
