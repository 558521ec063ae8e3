// Package bridge connects to the browser extension over a WebSocket. The
// extension owns the tabs; the bridge forwards tab queries, tab moves and
// storage calls to it and publishes the tab events it reports.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lotas/tabsort/internal/applog"
	"github.com/lotas/tabsort/internal/organizer"
	"github.com/lotas/tabsort/internal/types"
	"nhooyr.io/websocket"
)

// Actions the extension understands.
const (
	ActionQueryTabs  = "query-tabs"
	ActionMoveTab    = "move-tab"
	ActionStorageGet = "storage-get"
	ActionStorageSet = "storage-set"
)

const (
	msgResponse     = "response"
	msgTabActivated = "tab-activated"
	msgTabUpdated   = "tab-updated"
	msgInstalled    = "installed"
)

var (
	// ErrNotConnected is returned by calls made while no extension is
	// connected, or whose connection dropped before the reply arrived.
	ErrNotConnected = errors.New("browser extension not connected")

	// ErrTimeout is returned when the extension does not answer in time.
	ErrTimeout = errors.New("browser call timed out")
)

// CallError carries the error the extension reported for one call.
type CallError struct {
	Action  string
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}

// ChangeInfo is the subset of a tab update the organizer cares about.
type ChangeInfo struct {
	URL    string `json:"url,omitempty"`
	Status string `json:"status,omitempty"`
}

// IncomingMsg is a message from the extension: a call response or an event.
type IncomingMsg struct {
	Type string `json:"type"`
	// Response fields
	ID    string                     `json:"id,omitempty"`
	OK    *bool                      `json:"ok,omitempty"`
	Error string                     `json:"error,omitempty"`
	Tabs  []types.Tab                `json:"tabs,omitempty"`
	Tab   *types.Tab                 `json:"tab,omitempty"`
	Items map[string]json.RawMessage `json:"items,omitempty"`
	// Event fields
	TabID      int         `json:"tabId,omitempty"`
	ChangeInfo *ChangeInfo `json:"changeInfo,omitempty"`
	Reason     string      `json:"reason,omitempty"`
}

// OutgoingMsg is a call to the extension.
type OutgoingMsg struct {
	ID       string                     `json:"id"`
	Action   string                     `json:"action"`
	Query    *types.TabQuery            `json:"query,omitempty"`
	TabID    int                        `json:"tabId,omitempty"`
	Index    *int                       `json:"index,omitempty"`
	WindowID *int                       `json:"windowId,omitempty"`
	Keys     []string                   `json:"keys,omitempty"`
	Items    map[string]json.RawMessage `json:"items,omitempty"`
}

// Server manages the WebSocket connection to the extension.
type Server struct {
	port    int
	timeout time.Duration
	log     applog.Logger
	events  chan organizer.Event

	mu      sync.Mutex
	conn    *websocket.Conn
	connCtx context.Context
	closed  chan struct{}
	pending map[string]chan IncomingMsg
}

// New creates a new Server. Port 0 means the caller manages the listener.
// timeout bounds every browser call; zero means five seconds.
func New(port int, timeout time.Duration, log applog.Logger) *Server {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Server{
		port:    port,
		timeout: timeout,
		log:     log,
		events:  make(chan organizer.Event, 64),
		pending: make(map[string]chan IncomingMsg),
	}
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Events returns the channel of tab events reported by the extension.
func (s *Server) Events() <-chan organizer.Event {
	return s.events
}

// Connected reports whether an extension is connected.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// QueryTabs returns the tabs matching q in browser order.
func (s *Server) QueryTabs(ctx context.Context, q types.TabQuery) ([]types.Tab, error) {
	resp, err := s.call(ctx, OutgoingMsg{Action: ActionQueryTabs, Query: &q})
	if err != nil {
		return nil, err
	}
	return resp.Tabs, nil
}

// MoveTab moves one tab and returns it at its new position.
func (s *Server) MoveTab(ctx context.Context, tabID int, props types.MoveProperties) (types.Tab, error) {
	index := props.Index
	resp, err := s.call(ctx, OutgoingMsg{
		Action:   ActionMoveTab,
		TabID:    tabID,
		Index:    &index,
		WindowID: props.WindowID,
	})
	if err != nil {
		return types.Tab{}, err
	}
	if resp.Tab == nil {
		return types.Tab{ID: tabID, Index: props.Index}, nil
	}
	return *resp.Tab, nil
}

// Get reads keys from the extension's synced storage.
func (s *Server) Get(ctx context.Context, keys []string) (map[string]json.RawMessage, error) {
	resp, err := s.call(ctx, OutgoingMsg{Action: ActionStorageGet, Keys: keys})
	if err != nil {
		return nil, err
	}
	if resp.Items == nil {
		return map[string]json.RawMessage{}, nil
	}
	return resp.Items, nil
}

// Set writes items to the extension's synced storage.
func (s *Server) Set(ctx context.Context, items map[string]json.RawMessage) error {
	_, err := s.call(ctx, OutgoingMsg{Action: ActionStorageSet, Items: items})
	return err
}

// call sends msg with a fresh id and waits for the matching response.
func (s *Server) call(ctx context.Context, msg OutgoingMsg) (IncomingMsg, error) {
	msg.ID = uuid.NewString()
	reply := make(chan IncomingMsg, 1)

	s.mu.Lock()
	conn, connCtx, closed := s.conn, s.connCtx, s.closed
	if conn == nil {
		s.mu.Unlock()
		return IncomingMsg{}, fmt.Errorf("%s: %w", msg.Action, ErrNotConnected)
	}
	s.pending[msg.ID] = reply
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, msg.ID)
		s.mu.Unlock()
	}()

	data, err := json.Marshal(msg)
	if err != nil {
		return IncomingMsg{}, fmt.Errorf("marshal %s: %w", msg.Action, err)
	}
	s.log.Debug("ws.send", "action", msg.Action, "id", msg.ID)
	if err := conn.Write(connCtx, websocket.MessageText, data); err != nil {
		return IncomingMsg{}, fmt.Errorf("send %s: %w", msg.Action, err)
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case resp := <-reply:
		if resp.OK != nil && !*resp.OK {
			return IncomingMsg{}, &CallError{Action: msg.Action, Message: resp.Error}
		}
		return resp, nil
	case <-closed:
		return IncomingMsg{}, fmt.Errorf("%s: %w", msg.Action, ErrNotConnected)
	case <-timer.C:
		s.log.Warn("ws.timeout", "action", msg.Action, "id", msg.ID)
		return IncomingMsg{}, fmt.Errorf("%s after %s: %w", msg.Action, s.timeout, ErrTimeout)
	case <-ctx.Done():
		return IncomingMsg{}, ctx.Err()
	}
}

// Handler returns an http.Handler that accepts WebSocket upgrades.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			s.log.Error("ws.accept", err)
			return
		}

		conn.SetReadLimit(8 << 20) // query-tabs replies list every open tab

		ctx := r.Context()
		closed := make(chan struct{})
		s.mu.Lock()
		if s.conn != nil {
			s.log.Info("ws.replaced")
			s.conn.CloseNow()
		}
		s.conn = conn
		s.connCtx = ctx
		s.closed = closed
		s.mu.Unlock()

		s.log.Info("ws.connected", "remote", r.RemoteAddr)

		defer func() {
			s.mu.Lock()
			if s.conn == conn {
				s.conn = nil
				s.connCtx = nil
				s.closed = nil
			}
			s.mu.Unlock()
			close(closed)
			conn.CloseNow()
			s.log.Info("ws.disconnected")
		}()

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg IncomingMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				s.log.Error("ws.parse", err)
				continue
			}
			s.dispatch(msg)
		}
	})
}

func (s *Server) dispatch(msg IncomingMsg) {
	if msg.Type == msgResponse {
		s.mu.Lock()
		reply, ok := s.pending[msg.ID]
		s.mu.Unlock()
		if !ok {
			s.log.Warn("ws.orphan_response", "id", msg.ID)
			return
		}
		select {
		case reply <- msg:
		default:
		}
		return
	}

	ev, ok := toEvent(msg)
	if !ok {
		s.log.Debug("ws.ignored", "type", msg.Type)
		return
	}
	s.log.Debug("ws.event", "type", msg.Type, "tab", msg.TabID)
	select {
	case s.events <- ev:
	default:
		s.log.Warn("ws.event_dropped", "type", msg.Type)
	}
}

func toEvent(msg IncomingMsg) (organizer.Event, bool) {
	switch msg.Type {
	case msgTabActivated:
		return organizer.Event{Kind: organizer.EventTabActivated, TabID: msg.TabID}, true
	case msgTabUpdated:
		ev := organizer.Event{Kind: organizer.EventTabUpdated, TabID: msg.TabID}
		if msg.ChangeInfo != nil {
			ev.URLChanged = msg.ChangeInfo.URL != ""
			ev.StatusComplete = msg.ChangeInfo.Status == "complete"
		}
		return ev, true
	case msgInstalled:
		return organizer.Event{Kind: organizer.EventInstalled}, true
	default:
		return organizer.Event{}, false
	}
}

// ListenAndServe starts the WebSocket server on the configured port.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/", s.Handler())

	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	s.log.Info("bridge.start", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
