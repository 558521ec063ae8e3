package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lotas/tabsort/internal/applog"
)

// StorageKey is the single key the settings blob is stored under.
const StorageKey = "settings"

// ErrUnknownSetting is returned when a flag name is not a known setting.
var ErrUnknownSetting = errors.New("unknown setting")

// Settings is the user configuration the organizer reads once per run.
type Settings struct {
	ClusterGroupedTabs       bool `json:"clusterGroupedTabs"`
	EnableAutomaticGrouping  bool `json:"enableAutomaticGrouping"`
	EnableAlphabeticSorting  bool `json:"enableAlphabeticSorting"`
	EnableSubdomainFiltering bool `json:"enableSubdomainFiltering"`
	ForceWindowConsolidation bool `json:"forceWindowConsolidation"`
	ShowGroupTabCount        bool `json:"showGroupTabCount"`
	SuspendCollapsedGroups   bool `json:"suspendCollapsedGroups"`
}

// Defaults returns the settings used for missing or corrupt fields.
func Defaults() Settings {
	return Settings{
		ClusterGroupedTabs:       true,
		EnableAutomaticGrouping:  true,
		EnableAlphabeticSorting:  true,
		EnableSubdomainFiltering: false,
		ForceWindowConsolidation: false,
		ShowGroupTabCount:        true,
		SuspendCollapsedGroups:   false,
	}
}

type field struct {
	key string
	ptr func(*Settings) *bool
}

var fields = []field{
	{"clusterGroupedTabs", func(s *Settings) *bool { return &s.ClusterGroupedTabs }},
	{"enableAutomaticGrouping", func(s *Settings) *bool { return &s.EnableAutomaticGrouping }},
	{"enableAlphabeticSorting", func(s *Settings) *bool { return &s.EnableAlphabeticSorting }},
	{"enableSubdomainFiltering", func(s *Settings) *bool { return &s.EnableSubdomainFiltering }},
	{"forceWindowConsolidation", func(s *Settings) *bool { return &s.ForceWindowConsolidation }},
	{"showGroupTabCount", func(s *Settings) *bool { return &s.ShowGroupTabCount }},
	{"suspendCollapsedGroups", func(s *Settings) *bool { return &s.SuspendCollapsedGroups }},
}

// legacyKeys maps retired key names to their current name.
var legacyKeys = map[string]string{
	"enableAutomaticSorting": "enableAutomaticGrouping",
}

// Keys returns the known setting names in display order.
func Keys() []string {
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.key
	}
	return keys
}

// Get returns the named flag.
func (s Settings) Get(key string) (bool, bool) {
	for _, f := range fields {
		if f.key == key {
			return *f.ptr(&s), true
		}
	}
	return false, false
}

// With returns a copy with the named flag set.
func (s Settings) With(key string, v bool) (Settings, error) {
	for _, f := range fields {
		if f.key == key {
			*f.ptr(&s) = v
			return s, nil
		}
	}
	return s, fmt.Errorf("%w %q", ErrUnknownSetting, key)
}

// SyncStorage is the browser's synced key-value storage.
type SyncStorage interface {
	Get(ctx context.Context, keys []string) (map[string]json.RawMessage, error)
	Set(ctx context.Context, items map[string]json.RawMessage) error
}

// Store caches settings in memory and writes changes through to storage.
type Store struct {
	storage SyncStorage
	log     applog.Logger

	mu    sync.RWMutex
	state Settings
	subs  map[int]chan Settings
	next  int
}

// NewStore creates a store holding the defaults until Load is called.
func NewStore(storage SyncStorage, log applog.Logger) *Store {
	return &Store{
		storage: storage,
		log:     log,
		state:   Defaults(),
		subs:    make(map[int]chan Settings),
	}
}

// Load reads the persisted blob into memory. Corrupt content never fails the
// load: corrupt fields fall back to their defaults. A storage call failure
// is returned and leaves the defaults in place.
func (s *Store) Load(ctx context.Context) error {
	items, err := s.storage.Get(ctx, []string{StorageKey})
	if err != nil {
		s.log.Error("settings.load", err)
		return fmt.Errorf("load settings: %w", err)
	}

	state, migrated := s.decode(items[StorageKey])

	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.log.Info("settings.loaded", "migrated", migrated)

	if migrated {
		if err := s.persist(ctx, state); err != nil {
			s.log.Error("settings.migrate.persist", err)
		}
	}
	return nil
}

// decode parses the stored blob. It reports whether a legacy key was renamed.
func (s *Store) decode(raw json.RawMessage) (Settings, bool) {
	state := Defaults()
	if len(raw) == 0 || string(raw) == "null" {
		return state, false
	}

	var blob string
	if err := json.Unmarshal(raw, &blob); err != nil {
		s.log.Warn("settings.corrupt", "reason", "blob is not a string")
		return state, false
	}
	var values map[string]json.RawMessage
	if err := json.Unmarshal([]byte(blob), &values); err != nil || values == nil {
		s.log.Warn("settings.corrupt", "reason", "blob is not a JSON object")
		return state, false
	}

	migrated := false
	for old, current := range legacyKeys {
		v, ok := values[old]
		if !ok {
			continue
		}
		if _, set := values[current]; !set {
			values[current] = v
		}
		delete(values, old)
		migrated = true
		s.log.Info("settings.migrated", "from", old, "to", current)
	}

	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f.key] = true
		v, ok := values[f.key]
		if !ok {
			continue
		}
		var b bool
		if err := json.Unmarshal(v, &b); err != nil {
			s.log.Warn("settings.corrupt", "key", f.key, "value", string(v))
			continue
		}
		*f.ptr(&state) = b
	}

	var dropped []string
	for k := range values {
		if !known[k] {
			dropped = append(dropped, k)
		}
	}
	if len(dropped) > 0 {
		sort.Strings(dropped)
		s.log.Debug("settings.dropped", "keys", strings.Join(dropped, ","))
	}
	return state, migrated
}

// State returns a copy of the cached settings.
func (s *Store) State() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetState replaces the cached settings and writes them to storage.
func (s *Store) SetState(ctx context.Context, state Settings) error {
	s.mu.Lock()
	s.state = state
	subs := make([]chan Settings, 0, len(s.subs))
	for _, ch := range s.subs {
		subs = append(subs, ch)
	}
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- state:
		default:
		}
	}

	if err := s.persist(ctx, state); err != nil {
		s.log.Error("settings.persist", err)
		return err
	}
	return nil
}

// Update applies fn to a copy of the current settings and stores the result.
func (s *Store) Update(ctx context.Context, fn func(*Settings)) (Settings, error) {
	state := s.State()
	fn(&state)
	return state, s.SetState(ctx, state)
}

// Subscribe returns a channel that receives the latest settings after each
// SetState. Slow readers only see the most recent value.
func (s *Store) Subscribe() (<-chan Settings, func()) {
	ch := make(chan Settings, 1)
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()
	return ch, func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) persist(ctx context.Context, state Settings) error {
	items, err := Encode(state)
	if err != nil {
		return err
	}
	if err := s.storage.Set(ctx, items); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Encode builds the storage items for state: {"settings": "<json>"}.
func Encode(state Settings) (map[string]json.RawMessage, error) {
	blob, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	value, err := json.Marshal(string(blob))
	if err != nil {
		return nil, fmt.Errorf("marshal settings blob: %w", err)
	}
	return map[string]json.RawMessage{StorageKey: value}, nil
}
