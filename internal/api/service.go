package api

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lotas/tabsort/internal/applog"
	"github.com/lotas/tabsort/internal/organizer"
	"github.com/lotas/tabsort/internal/settings"
	"github.com/lotas/tabsort/internal/storage"
	"github.com/lotas/tabsort/internal/types"
)

// Backend implements Service over the running organizer, settings store
// and run history.
type Backend struct {
	Organizer *organizer.Organizer
	Store     *settings.Store
	DB        *sql.DB
	Browser   interface{ Connected() bool }
	Log       applog.Logger
}

func (b *Backend) Connected() bool {
	return b.Browser != nil && b.Browser.Connected()
}

func (b *Backend) Sort(ctx context.Context, tabs []types.Tab) ([]types.Tab, error) {
	return b.Organizer.Sort(ctx, organizer.Filter(tabs, nil))
}

func (b *Backend) Plan(ctx context.Context, tabs []types.Tab) ([]types.Tab, organizer.MovePlan, error) {
	return b.Organizer.Plan(ctx, organizer.Filter(tabs, nil))
}

// Organize runs the pipeline and records the outcome, failed or not.
func (b *Backend) Organize(ctx context.Context) (organizer.Run, error) {
	run, err := b.Organizer.Organize(ctx)
	if b.DB != nil {
		if _, recErr := storage.RecordRun(ctx, b.DB, storage.FromRun("api", run)); recErr != nil {
			b.Log.Error("api.record_run", recErr)
		}
	}
	return run, err
}

func (b *Backend) Settings() settings.Settings {
	return b.Store.State()
}

// UpdateSettings applies every change or none of them.
func (b *Backend) UpdateSettings(ctx context.Context, changes map[string]bool) (settings.Settings, error) {
	next := b.Store.State()
	for key, v := range changes {
		var err error
		if next, err = next.With(key, v); err != nil {
			return settings.Settings{}, err
		}
	}
	if err := b.Store.SetState(ctx, next); err != nil {
		return next, fmt.Errorf("save settings: %w", err)
	}
	return next, nil
}

func (b *Backend) Runs(ctx context.Context, limit int) ([]storage.RunRecord, error) {
	if b.DB == nil {
		return nil, nil
	}
	return storage.ListRuns(ctx, b.DB, limit)
}
