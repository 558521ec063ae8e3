package settings

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/lotas/tabsort/internal/applog"
)

func loadStore(t *testing.T, storage SyncStorage) *Store {
	t.Helper()
	s := NewStore(storage, applog.Discard())
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s
}

func TestLoadCachesStoredSettings(t *testing.T) {
	storage := NewMemoryStorageWithBlob(`{
		"clusterGroupedTabs": false,
		"enableAutomaticGrouping": false,
		"enableAlphabeticSorting": false,
		"enableSubdomainFiltering": true,
		"forceWindowConsolidation": true,
		"showGroupTabCount": false,
		"suspendCollapsedGroups": true,
		"invalidSetting": true
	}`)
	got := loadStore(t, storage).State()
	want := Settings{
		EnableSubdomainFiltering: true,
		ForceWindowConsolidation: true,
		SuspendCollapsedGroups:   true,
	}
	if got != want {
		t.Errorf("State() = %+v, want %+v", got, want)
	}
	if storage.Sets() != 0 {
		t.Errorf("Load wrote to storage %d times without a migration", storage.Sets())
	}
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	tests := []struct {
		name  string
		items map[string]json.RawMessage
	}{
		{"not persisted", nil},
		{"null blob", map[string]json.RawMessage{StorageKey: json.RawMessage(`null`)}},
		{"wrong typed blob", map[string]json.RawMessage{StorageKey: json.RawMessage(`true`)}},
		{"invalid content", map[string]json.RawMessage{StorageKey: json.RawMessage(`"invalidContent"`)}},
		{"empty object", map[string]json.RawMessage{StorageKey: json.RawMessage(`"{}"`)}},
		{"array blob", map[string]json.RawMessage{StorageKey: json.RawMessage(`"[1,2]"`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := loadStore(t, NewMemoryStorage(tt.items)).State()
			if got != Defaults() {
				t.Errorf("State() = %+v, want defaults %+v", got, Defaults())
			}
		})
	}
}

func TestLoadRecoversCorruptFields(t *testing.T) {
	storage := NewMemoryStorageWithBlob(`{"clusterGroupedTabs": "yes", "forceWindowConsolidation": true}`)
	got := loadStore(t, storage).State()
	want := Defaults()
	want.ForceWindowConsolidation = true
	if got != want {
		t.Errorf("State() = %+v, want %+v", got, want)
	}
}

func TestLoadMigratesLegacyKey(t *testing.T) {
	storage := NewMemoryStorageWithBlob(`{"enableAutomaticSorting": false}`)
	s := loadStore(t, storage)

	if s.State().EnableAutomaticGrouping {
		t.Error("enableAutomaticGrouping should take the legacy value false")
	}
	blob := storage.Blob()
	if strings.Contains(blob, "enableAutomaticSorting") {
		t.Errorf("legacy key still persisted: %s", blob)
	}
	if !strings.Contains(blob, `"enableAutomaticGrouping":false`) {
		t.Errorf("migrated key not persisted: %s", blob)
	}
	if storage.Sets() != 1 {
		t.Errorf("migration persisted %d times, want 1", storage.Sets())
	}
}

func TestLoadKeepsExplicitNewKeyOverLegacy(t *testing.T) {
	storage := NewMemoryStorageWithBlob(`{"enableAutomaticSorting": false, "enableAutomaticGrouping": true}`)
	if !loadStore(t, storage).State().EnableAutomaticGrouping {
		t.Error("explicit enableAutomaticGrouping should win over the legacy key")
	}
}

type failingStorage struct{}

func (failingStorage) Get(context.Context, []string) (map[string]json.RawMessage, error) {
	return nil, errors.New("storage unavailable")
}

func (failingStorage) Set(context.Context, map[string]json.RawMessage) error {
	return errors.New("storage unavailable")
}

func TestLoadStorageFailureKeepsDefaults(t *testing.T) {
	s := NewStore(failingStorage{}, applog.Discard())
	if err := s.Load(context.Background()); err == nil {
		t.Fatal("expected error from failing storage")
	}
	if s.State() != Defaults() {
		t.Errorf("State() = %+v, want defaults", s.State())
	}
}

func TestSetStateWritesThrough(t *testing.T) {
	storage := NewMemoryStorage(nil)
	s := loadStore(t, storage)

	first := Settings{EnableSubdomainFiltering: true, ForceWindowConsolidation: true, SuspendCollapsedGroups: true}
	if err := s.SetState(context.Background(), first); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	if s.State() != first {
		t.Errorf("State() = %+v, want %+v", s.State(), first)
	}
	want, _ := json.Marshal(first)
	if storage.Blob() != string(want) {
		t.Errorf("stored %s, want %s", storage.Blob(), want)
	}

	second := Defaults()
	if err := s.SetState(context.Background(), second); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	reloaded := loadStore(t, storage)
	if reloaded.State() != second {
		t.Errorf("reloaded %+v, want %+v", reloaded.State(), second)
	}
}

func TestSetStateStorageFailure(t *testing.T) {
	s := NewStore(failingStorage{}, applog.Discard())
	state := Defaults()
	state.ClusterGroupedTabs = false
	if err := s.SetState(context.Background(), state); err == nil {
		t.Fatal("expected error")
	}
	if s.State() != state {
		t.Error("cache should hold the new state even when the write fails")
	}
}

func TestUpdateAndSubscribe(t *testing.T) {
	s := loadStore(t, NewMemoryStorage(nil))
	ch, cancel := s.Subscribe()
	defer cancel()

	got, err := s.Update(context.Background(), func(st *Settings) { st.EnableAlphabeticSorting = false })
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.EnableAlphabeticSorting {
		t.Error("Update did not apply")
	}
	select {
	case st := <-ch:
		if st.EnableAlphabeticSorting {
			t.Error("subscriber saw stale settings")
		}
	default:
		t.Fatal("subscriber not notified")
	}
}

func TestGetAndWith(t *testing.T) {
	s := Defaults()
	v, ok := s.Get("clusterGroupedTabs")
	if !ok || !v {
		t.Errorf("Get(clusterGroupedTabs) = %v, %v", v, ok)
	}
	s2, err := s.With("showGroupTabCount", false)
	if err != nil {
		t.Fatalf("With: %v", err)
	}
	if s2.ShowGroupTabCount || !s.ShowGroupTabCount {
		t.Error("With should return a modified copy")
	}
	if _, err := s.With("nope", true); !errors.Is(err, ErrUnknownSetting) {
		t.Errorf("got %v, want ErrUnknownSetting", err)
	}
	if len(Keys()) != 7 {
		t.Errorf("Keys() has %d entries, want 7", len(Keys()))
	}
}
