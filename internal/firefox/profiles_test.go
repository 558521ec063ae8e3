package firefox

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lotas/tabsort/internal/types"
)

const oneTabSession = `{"windows": [{"tabs": [{"entries": [{"url": "https://example.com/", "title": "Example"}], "index": 1}]}]}`

// newFirefoxRoot writes profiles.ini into a temp root. Profiles named in
// withSession get a session file.
func newFirefoxRoot(t *testing.T, ini string, withSession ...string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "profiles.ini"), []byte(ini), 0644); err != nil {
		t.Fatal(err)
	}
	for _, rel := range withSession {
		path := rel
		if !filepath.IsAbs(rel) {
			path = filepath.Join(dir, rel)
		}
		writeSessionFile(t, path, "recovery.jsonlz4", oneTabSession)
	}
	return dir
}

func TestProfilesList(t *testing.T) {
	absProfileDir := t.TempDir()
	dir := newFirefoxRoot(t, `[General]
StartWithLastProfile=1
Version=2

; comment lines are ignored
[Profile0]
Name=default-release
IsRelative=1
Path=abc123.default-release
Default=1

[Profile1]
Name = dev-edition
IsRelative=0
Path=`+absProfileDir+`

[Profile2]
Name=no-session
IsRelative=1
Path=zzz.empty

[Install308046B0AF4A39CB]
Default=abc123.default-release
Locked=1
`, "abc123.default-release", absProfileDir)

	profiles, err := Profiles{Dir: dir}.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []types.Profile{
		{Name: "default-release", Path: filepath.Join(dir, "abc123.default-release"), IsDefault: true, IsRelative: true},
		{Name: "dev-edition", Path: absProfileDir},
	}
	if len(profiles) != len(want) {
		t.Fatalf("List = %+v, want %d profiles", profiles, len(want))
	}
	for i := range want {
		if profiles[i] != want[i] {
			t.Errorf("profile %d = %+v, want %+v", i, profiles[i], want[i])
		}
	}
}

func TestProfilesListMissingINI(t *testing.T) {
	if _, err := (Profiles{Dir: t.TempDir()}).List(); err == nil {
		t.Fatal("expected error without profiles.ini")
	}
}

func TestProfilesLoad(t *testing.T) {
	dir := newFirefoxRoot(t, `[Profile0]
Name=work
IsRelative=1
Path=w.work

[Profile1]
Name=home
IsRelative=1
Path=h.home
Default=1
`, "w.work", "h.home")
	src := Profiles{Dir: dir}

	prof, sess, err := src.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if prof.Name != "home" {
		t.Errorf("Load picked %q, want the default profile", prof.Name)
	}
	if len(sess.Tabs) != 1 || sess.Tabs[0].URL != "https://example.com/" {
		t.Errorf("session tabs = %+v", sess.Tabs)
	}

	if prof, _, err = src.Load("work"); err != nil || prof.Name != "work" {
		t.Errorf("Load(work) = %q, %v", prof.Name, err)
	}
	if _, _, err := src.Load("missing"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Load(missing) err = %v", err)
	}
}

func TestReadSessionFilePrefersRecovery(t *testing.T) {
	profileDir := t.TempDir()
	writeSessionFile(t, profileDir, "previous.jsonlz4",
		`{"windows": [{"tabs": [{"entries": [{"url": "https://old.example/"}], "index": 1}]}]}`)
	sess, err := ReadSessionFile(profileDir)
	if err != nil {
		t.Fatalf("previous only: %v", err)
	}
	if sess.Tabs[0].URL != "https://old.example/" {
		t.Errorf("read %q from previous.jsonlz4", sess.Tabs[0].URL)
	}

	writeSessionFile(t, profileDir, "recovery.jsonlz4", oneTabSession)
	if sess, err = ReadSessionFile(profileDir); err != nil || sess.Tabs[0].URL != "https://example.com/" {
		t.Errorf("with recovery: %v, %+v", err, sess)
	}
}

func TestDefaultProfiles(t *testing.T) {
	src, err := DefaultProfiles()
	if errors.Is(err, ErrNoFirefoxDir) {
		t.Skip("no Firefox directory convention for this platform")
	}
	if err != nil {
		t.Fatalf("DefaultProfiles: %v", err)
	}
	if src.Dir != FindFirefoxDir() {
		t.Errorf("Dir = %q, want %q", src.Dir, FindFirefoxDir())
	}
}

func TestPickProfile(t *testing.T) {
	profiles := []types.Profile{
		{Name: "work", Path: "/p/work"},
		{Name: "default-release", Path: "/p/default", IsDefault: true},
	}
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"", "default-release", false},
		{"work", "work", false},
		{"missing", "", true},
	}
	for _, tt := range tests {
		got, err := PickProfile(profiles, tt.name)
		if tt.wantErr {
			if err == nil {
				t.Errorf("PickProfile(%q): expected error", tt.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("PickProfile(%q): %v", tt.name, err)
			continue
		}
		if got.Name != tt.want {
			t.Errorf("PickProfile(%q) = %q, want %q", tt.name, got.Name, tt.want)
		}
	}

	if p, _ := PickProfile(profiles[:1], ""); p.Name != "work" {
		t.Errorf("without a default, got %q, want first profile", p.Name)
	}
	if _, err := PickProfile(nil, ""); err == nil {
		t.Error("expected error for no profiles")
	}
}
