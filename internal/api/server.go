package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lotas/tabsort/internal/applog"
	"github.com/lotas/tabsort/internal/bridge"
	"github.com/lotas/tabsort/internal/organizer"
	"github.com/lotas/tabsort/internal/settings"
	"github.com/lotas/tabsort/internal/storage"
	"github.com/lotas/tabsort/internal/types"
)

// Service is what the HTTP API drives.
type Service interface {
	Connected() bool
	Sort(ctx context.Context, tabs []types.Tab) ([]types.Tab, error)
	Plan(ctx context.Context, tabs []types.Tab) ([]types.Tab, organizer.MovePlan, error)
	Organize(ctx context.Context) (organizer.Run, error)
	Settings() settings.Settings
	UpdateSettings(ctx context.Context, changes map[string]bool) (settings.Settings, error)
	Runs(ctx context.Context, limit int) ([]storage.RunRecord, error)
}

type tabsInput struct {
	Body struct {
		Tabs []types.Tab `json:"tabs" doc:"Unpinned tabs in current browser order"`
	}
}

type tabsOutput struct {
	Body struct {
		Tabs []types.Tab `json:"tabs"`
	}
}

type planOutput struct {
	Body struct {
		Tabs  []types.Tab        `json:"tabs"`
		Moves organizer.MovePlan `json:"moves"`
	}
}

// runBody is organizer.Run with stage names spelled out.
type runBody struct {
	Stage       string    `json:"stage" example:"done"`
	FailedStage string    `json:"failedStage,omitempty"`
	Error       string    `json:"error,omitempty"`
	Tabs        int       `json:"tabs"`
	Moves       int       `json:"moves"`
	Started     time.Time `json:"started"`
	Finished    time.Time `json:"finished"`
}

func toRunBody(r organizer.Run) runBody {
	body := runBody{
		Stage:    r.Stage.String(),
		Error:    r.Err,
		Tabs:     r.Tabs,
		Moves:    r.Moves,
		Started:  r.Started,
		Finished: r.Finished,
	}
	if r.Stage == organizer.StageFailed {
		body.FailedStage = r.Failed.String()
	}
	return body
}

type settingsOutput struct {
	Body settings.Settings
}

type settingsInput struct {
	Body map[string]bool `doc:"Flags to change, keyed by setting name"`
}

type runsOutput struct {
	Body struct {
		Runs []storage.RunRecord `json:"runs"`
	}
}

// NewServer builds the control API router.
func NewServer(svc Service, log applog.Logger) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger(log))
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("tabsort control API", "1.0.0")
	api := humachi.New(router, cfg)

	type healthOutput struct {
		Body struct {
			Status           string `json:"status"`
			BrowserConnected bool   `json:"browserConnected"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			out.Body.BrowserConnected = svc.Connected()
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "sort-tabs", Method: http.MethodPost, Path: "/api/v1/sort", Summary: "Order tabs with the current settings", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *tabsInput) (*tabsOutput, error) {
			sorted, err := svc.Sort(ctx, input.Body.Tabs)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &tabsOutput{}
			out.Body.Tabs = nonNil(sorted)
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "plan-tabs", Method: http.MethodPost, Path: "/api/v1/plan", Summary: "Compute the moves that would order tabs", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *tabsInput) (*planOutput, error) {
			sorted, moves, err := svc.Plan(ctx, input.Body.Tabs)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &planOutput{}
			out.Body.Tabs = nonNil(sorted)
			out.Body.Moves = moves
			if out.Body.Moves == nil {
				out.Body.Moves = organizer.MovePlan{}
			}
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "organize", Method: http.MethodPost, Path: "/api/v1/organize", Summary: "Organize the connected browser's tabs", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *struct{}) (*struct{ Body runBody }, error) {
			run, err := svc.Organize(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &struct{ Body runBody }{Body: toRunBody(run)}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-settings", Method: http.MethodGet, Path: "/api/v1/settings", Summary: "Current settings", Tags: []string{"Settings"}},
		func(ctx context.Context, input *struct{}) (*settingsOutput, error) {
			return &settingsOutput{Body: svc.Settings()}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "update-settings", Method: http.MethodPut, Path: "/api/v1/settings", Summary: "Change settings", Tags: []string{"Settings"}},
		func(ctx context.Context, input *settingsInput) (*settingsOutput, error) {
			updated, err := svc.UpdateSettings(ctx, input.Body)
			if err != nil {
				return nil, mapErr(err)
			}
			return &settingsOutput{Body: updated}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "list-runs", Method: http.MethodGet, Path: "/api/v1/runs", Summary: "Recorded organize runs, newest first", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *struct {
			Limit int `query:"limit" default:"20" minimum:"1" maximum:"500"`
		}) (*runsOutput, error) {
			runs, err := svc.Runs(ctx, input.Limit)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &runsOutput{}
			out.Body.Runs = runs
			if out.Body.Runs == nil {
				out.Body.Runs = []storage.RunRecord{}
			}
			return out, nil
		})

	return router
}

func nonNil(tabs []types.Tab) []types.Tab {
	if tabs == nil {
		return []types.Tab{}
	}
	return tabs
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var inputErr *organizer.InputError
	var callErr *bridge.CallError
	switch {
	case errors.As(err, &inputErr), errors.Is(err, settings.ErrUnknownSetting):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, bridge.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return huma.Error504GatewayTimeout(err.Error())
	case errors.As(err, &callErr), errors.Is(err, bridge.ErrNotConnected):
		return huma.Error502BadGateway(err.Error())
	}
	return huma.Error500InternalServerError(err.Error())
}
