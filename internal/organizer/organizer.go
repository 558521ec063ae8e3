// Package organizer sorts and clusters browser tabs and moves them into the
// computed order.
//
// A run reads one settings snapshot and works on one tab snapshot:
//
//	Idle -> Alphabetizing? -> Clustering? -> Rendering -> Done | Failed
//
// Alphabetizing runs before clustering so that tabs inside a cluster keep
// alphabetic order. Any failing stage aborts the run; the error is logged
// with the stage name and returned to the caller, which does not retry.
package organizer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lotas/tabsort/internal/applog"
	"github.com/lotas/tabsort/internal/naming"
	"github.com/lotas/tabsort/internal/settings"
	"github.com/lotas/tabsort/internal/types"
	"golang.org/x/text/language"
)

// Stage is a step of one organize run.
type Stage int

const (
	StageIdle Stage = iota
	StageQuerying
	StageAlphabetizing
	StageClustering
	StageRendering
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageQuerying:
		return "query"
	case StageAlphabetizing:
		return "alphabetize"
	case StageClustering:
		return "cluster"
	case StageRendering:
		return "render"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SettingsSource supplies the current settings snapshot.
type SettingsSource interface {
	State() settings.Settings
}

// Run records the outcome of the latest organize run.
type Run struct {
	Stage    Stage     `json:"stage"`
	Failed   Stage     `json:"failedStage,omitempty"`
	Err      string    `json:"error,omitempty"`
	Tabs     int       `json:"tabs"`
	Moves    int       `json:"moves"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// Organizer wires the sort pipeline to a browser and a settings store.
type Organizer struct {
	browser  Browser
	settings SettingsSource
	log      applog.Logger
	deriver  naming.Deriver
	locale   language.Tag
	exclude  Excludes

	// cpu keeps two runs from computing an order at the same time.
	cpu sync.Mutex

	mu   sync.Mutex
	last Run
}

// Option configures an Organizer.
type Option func(*Organizer)

// WithDeriver sets the naming policy.
func WithDeriver(d naming.Deriver) Option {
	return func(o *Organizer) { o.deriver = d }
}

// WithLocale sets the collation locale used by alphabetic sorting.
func WithLocale(tag language.Tag) Option {
	return func(o *Organizer) { o.locale = tag }
}

// WithExcludes keeps tabs matching these patterns out of every run.
func WithExcludes(e Excludes) Option {
	return func(o *Organizer) { o.exclude = e }
}

// New creates an Organizer. browser may be nil for sort-only use.
func New(browser Browser, source SettingsSource, log applog.Logger, opts ...Option) *Organizer {
	o := &Organizer{
		browser:  browser,
		settings: source,
		log:      log,
		deriver:  naming.Default,
		locale:   language.English,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Organizer) options(s settings.Settings) Options {
	opts := OptionsFrom(s)
	opts.Deriver = o.deriver
	opts.Locale = o.locale
	return opts
}

// Options returns the stage options for the current settings snapshot.
func (o *Organizer) Options() Options {
	return o.options(o.settings.State())
}

// LastRun returns the record of the most recent Organize call.
func (o *Organizer) LastRun() Run {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

func (o *Organizer) record(r Run) {
	o.mu.Lock()
	o.last = r
	o.mu.Unlock()
}

// Sort orders tabs according to the current settings without touching the
// browser. Pinned tabs must already be removed.
func (o *Organizer) Sort(ctx context.Context, tabs []types.Tab) ([]types.Tab, error) {
	snap := o.settings.State()
	sorted, _, err := o.sort(ctx, snap, tabs)
	return sorted, err
}

// Plan sorts tabs and returns the moves Render would issue.
func (o *Organizer) Plan(ctx context.Context, tabs []types.Tab) ([]types.Tab, MovePlan, error) {
	snap := o.settings.State()
	sorted, _, err := o.sort(ctx, snap, tabs)
	if err != nil {
		return nil, nil, err
	}
	return sorted, PlanMoves(sorted, snap.ForceWindowConsolidation), nil
}

// Render moves the browser's tabs into the order of tabs.
func (o *Organizer) Render(ctx context.Context, tabs []types.Tab) error {
	snap := o.settings.State()
	_, err := o.render(ctx, snap, tabs)
	return err
}

func (o *Organizer) sort(ctx context.Context, snap settings.Settings, tabs []types.Tab) ([]types.Tab, Stage, error) {
	o.cpu.Lock()
	defer o.cpu.Unlock()

	o.log.Debug("sort", "tabs", len(tabs))
	opts := o.options(snap)
	out := tabs

	if snap.EnableAlphabeticSorting {
		if err := ctx.Err(); err != nil {
			return nil, StageAlphabetizing, o.fail(StageAlphabetizing, err)
		}
		sorted, err := Alphabetize(out, opts)
		if err != nil {
			return nil, StageAlphabetizing, o.fail(StageAlphabetizing, err)
		}
		out = sorted
	}

	if snap.ClusterGroupedTabs {
		if err := ctx.Err(); err != nil {
			return nil, StageClustering, o.fail(StageClustering, err)
		}
		o.log.Debug("cluster", "tabs", len(out), "mode", opts.Mode, "consolidate", opts.ForceWindowConsolidation)
		clustered, err := Cluster(out, opts)
		if err != nil {
			return nil, StageClustering, o.fail(StageClustering, err)
		}
		out = clustered
	}

	return out, StageDone, nil
}

// render moves tabs into their given order. With consolidation forced,
// every tab goes to the window of the first tab in that order.
func (o *Organizer) render(ctx context.Context, snap settings.Settings, tabs []types.Tab) (int, error) {
	if o.browser == nil {
		return 0, o.fail(StageRendering, fmt.Errorf("no browser connected"))
	}
	plan := PlanMoves(tabs, snap.ForceWindowConsolidation)
	o.log.Debug("render", "tabs", len(tabs), "moves", len(plan))
	if err := Render(ctx, o.browser, plan); err != nil {
		return 0, o.fail(StageRendering, err)
	}
	return len(plan), nil
}

func (o *Organizer) fail(stage Stage, err error) error {
	o.log.Error(stage.String(), err)
	return &StageError{Stage: stage, Err: err}
}

// Organize runs the full pipeline against the live browser: query, filter,
// sort, render. Rendering always runs, even when both optional stages are
// disabled.
func (o *Organizer) Organize(ctx context.Context) (Run, error) {
	snap := o.settings.State()
	run := Run{Stage: StageQuerying, Started: time.Now()}

	finish := func(stage Stage, err error) (Run, error) {
		run.Finished = time.Now()
		if err != nil {
			run.Stage = StageFailed
			run.Failed = stage
			run.Err = err.Error()
		} else {
			run.Stage = StageDone
		}
		o.record(run)
		return run, err
	}

	tabs, err := o.candidates(ctx)
	if err != nil {
		return finish(StageQuerying, o.fail(StageQuerying, err))
	}
	run.Tabs = len(tabs)

	sorted, stage, err := o.sort(ctx, snap, tabs)
	if err != nil {
		return finish(stage, err)
	}

	moves, err := o.render(ctx, snap, sorted)
	run.Moves = moves
	if err != nil {
		return finish(StageRendering, err)
	}
	o.log.Info("organize.done", "tabs", run.Tabs, "moves", moves)
	return finish(StageDone, nil)
}

// candidates queries the browser and drops pinned and excluded tabs.
func (o *Organizer) candidates(ctx context.Context) ([]types.Tab, error) {
	if o.browser == nil {
		return nil, fmt.Errorf("no browser connected")
	}
	all, err := o.browser.QueryTabs(ctx, types.TabQuery{Pinned: types.Bool(false)})
	if err != nil {
		return nil, fmt.Errorf("query tabs: %w", err)
	}
	return o.Filter(all), nil
}

// Filter drops pinned tabs and tabs matching the organizer's excludes.
func (o *Organizer) Filter(tabs []types.Tab) []types.Tab {
	return Filter(tabs, o.exclude)
}
