package organizer

import (
	"context"
)

// EventKind names a browser event that may trigger a run.
type EventKind string

const (
	EventTabActivated EventKind = "tab-activated"
	EventTabUpdated   EventKind = "tab-updated"
	EventInstalled    EventKind = "installed"
	EventStartup      EventKind = "startup"
)

// Event is a browser notification. URLChanged and StatusComplete are only
// meaningful for EventTabUpdated.
type Event struct {
	Kind           EventKind
	TabID          int
	URLChanged     bool
	StatusComplete bool
}

// triggers reports whether ev should start a run.
func (ev Event) triggers() bool {
	switch ev.Kind {
	case EventTabActivated, EventInstalled, EventStartup:
		return true
	case EventTabUpdated:
		return ev.URLChanged || ev.StatusComplete
	default:
		return false
	}
}

// HandleEvent organizes tabs in response to ev when automatic grouping is
// enabled. It reports whether a run happened.
func (o *Organizer) HandleEvent(ctx context.Context, ev Event) (bool, error) {
	if !ev.triggers() {
		return false, nil
	}
	if !o.settings.State().EnableAutomaticGrouping {
		o.log.Debug("event.skipped", "kind", ev.Kind, "reason", "automatic grouping disabled")
		return false, nil
	}
	o.log.Debug("event", "kind", ev.Kind, "tab", ev.TabID)
	if _, err := o.Organize(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// Watch handles events one at a time until ctx is done or events closes.
// Failed runs are logged and dropped; the next event starts a fresh run.
func (o *Organizer) Watch(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if _, err := o.HandleEvent(ctx, ev); err != nil {
				o.log.Error("event.organize", err, "kind", ev.Kind)
			}
		}
	}
}
