package firefox

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/lotas/tabsort/internal/types"
)

// sessionFiles are tried in order: the running session, then the last
// closed one.
var sessionFiles = []string{"recovery.jsonlz4", "previous.jsonlz4"}

// ErrNoFirefoxDir is returned when the platform has no known profile root.
var ErrNoFirefoxDir = errors.New("no Firefox profile directory for this platform")

// Profiles is a Firefox root directory, the one holding profiles.ini.
// It is the offline tab source: profiles resolve to session snapshots.
type Profiles struct {
	Dir string
}

// DefaultProfiles locates the Firefox root for the current user.
func DefaultProfiles() (Profiles, error) {
	dir := FindFirefoxDir()
	if dir == "" {
		return Profiles{}, fmt.Errorf("%w (%s)", ErrNoFirefoxDir, runtime.GOOS)
	}
	return Profiles{Dir: dir}, nil
}

// FindFirefoxDir returns the platform-specific Firefox root, or "".
func FindFirefoxDir() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Mozilla", "Firefox")
		}
		return ""
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	switch runtime.GOOS {
	case "linux":
		return filepath.Join(home, ".mozilla", "firefox")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Firefox")
	default:
		return ""
	}
}

// List returns the profiles in profiles.ini that have a session file to
// read tabs from.
func (p Profiles) List() ([]types.Profile, error) {
	f, err := os.Open(filepath.Join(p.Dir, "profiles.ini"))
	if err != nil {
		return nil, fmt.Errorf("open profiles.ini: %w", err)
	}
	defer f.Close()

	all, err := parseProfiles(f)
	if err != nil {
		return nil, err
	}
	usable := all[:0]
	for _, prof := range all {
		if prof.IsRelative {
			prof.Path = filepath.Join(p.Dir, prof.Path)
		}
		if sessionFile(prof.Path) != "" {
			usable = append(usable, prof)
		}
	}
	return usable, nil
}

// Pick lists the profiles and selects one; see PickProfile.
func (p Profiles) Pick(name string) (types.Profile, error) {
	profiles, err := p.List()
	if err != nil {
		return types.Profile{}, err
	}
	return PickProfile(profiles, name)
}

// Load picks a profile and reads its session.
func (p Profiles) Load(name string) (types.Profile, *Session, error) {
	prof, err := p.Pick(name)
	if err != nil {
		return types.Profile{}, nil, err
	}
	sess, err := ReadSessionFile(prof.Path)
	if err != nil {
		return prof, nil, fmt.Errorf("profile %s: %w", prof.Name, err)
	}
	return prof, sess, nil
}

// PickProfile returns the profile called name, or the default profile when
// name is empty. With no default marked, the first profile wins.
func PickProfile(profiles []types.Profile, name string) (types.Profile, error) {
	if len(profiles) == 0 {
		return types.Profile{}, fmt.Errorf("no Firefox profiles with a session file")
	}
	if name != "" {
		for _, p := range profiles {
			if p.Name == name {
				return p, nil
			}
		}
		return types.Profile{}, fmt.Errorf("profile %q not found", name)
	}
	for _, p := range profiles {
		if p.IsDefault {
			return p, nil
		}
	}
	return profiles[0], nil
}

// parseProfiles reads the [ProfileN] sections of a profiles.ini stream.
// Paths are returned as written.
func parseProfiles(r io.Reader) ([]types.Profile, error) {
	var (
		out     []types.Profile
		section string
		fields  map[string]string
	)
	flush := func() {
		if strings.HasPrefix(section, "Profile") && fields["Path"] != "" {
			out = append(out, types.Profile{
				Name:       fields["Name"],
				Path:       fields["Path"],
				IsRelative: fields["IsRelative"] == "1",
				IsDefault:  fields["Default"] == "1",
			})
		}
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "" || line[0] == ';' || line[0] == '#':
		case line[0] == '[' && line[len(line)-1] == ']':
			flush()
			section = line[1 : len(line)-1]
			fields = make(map[string]string)
		case fields != nil:
			if key, value, ok := strings.Cut(line, "="); ok {
				fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan profiles.ini: %w", err)
	}
	flush()
	return out, nil
}

// sessionFile returns the first session file present in profileDir, or "".
func sessionFile(profileDir string) string {
	for _, name := range sessionFiles {
		path := filepath.Join(profileDir, "sessionstore-backups", name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
