package firefox

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lotas/tabsort/internal/types"
	"github.com/pierrec/lz4/v4"
)

// mozlz4 header: 8-byte magic "mozLz40\x00"
var mozLz4Magic = []byte("mozLz40\x00")

// DecompressMozLz4 decompresses data in Mozilla's mozlz4 format.
// The format is: 8-byte magic "mozLz40\x00" + 4-byte LE uint32 uncompressed size + lz4 block data.
func DecompressMozLz4(data []byte) ([]byte, error) {
	const headerSize = 12 // 8 magic + 4 size

	if len(data) < headerSize {
		return nil, fmt.Errorf("mozlz4: data too short (%d bytes)", len(data))
	}

	// Verify magic header.
	for i := 0; i < len(mozLz4Magic); i++ {
		if data[i] != mozLz4Magic[i] {
			return nil, fmt.Errorf("mozlz4: invalid header magic")
		}
	}

	// Read uncompressed size (4-byte little-endian uint32).
	uncompressedSize := binary.LittleEndian.Uint32(data[8:12])

	// Decompress using raw lz4 block decompression.
	dst := make([]byte, uncompressedSize)
	n, err := lz4.UncompressBlock(data[headerSize:], dst)
	if err != nil {
		return nil, fmt.Errorf("mozlz4: decompress failed: %w", err)
	}

	return dst[:n], nil
}

// Raw JSON types for Firefox session file parsing.
type rawEntry struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type rawTab struct {
	Entries []rawEntry `json:"entries"`
	Index   int        `json:"index"`
	Pinned  bool       `json:"pinned"`
	Hidden  bool       `json:"hidden"`
}

type rawWindow struct {
	Tabs     []rawTab `json:"tabs"`
	Selected int      `json:"selected"`
}

type rawSession struct {
	Windows        []rawWindow `json:"windows"`
	SelectedWindow int         `json:"selectedWindow"`
}

// Session is the tab layout recorded in a session file. Firefox does not
// persist runtime tab or window ids, so both are synthesized: windows are
// numbered from 1 in file order and tabs from 1 across all windows.
type Session struct {
	Tabs          []types.Tab
	CurrentWindow int
	ParsedAt      time.Time
}

// Window returns the tabs of one window in strip order.
func (s *Session) Window(id int) []types.Tab {
	var out []types.Tab
	for _, t := range s.Tabs {
		if t.WindowID == id {
			out = append(out, t)
		}
	}
	return out
}

// CurrentFirst returns the tabs with the selected window's tabs first.
func (s *Session) CurrentFirst() []types.Tab {
	out := s.Window(s.CurrentWindow)
	for _, t := range s.Tabs {
		if t.WindowID != s.CurrentWindow {
			out = append(out, t)
		}
	}
	return out
}

// ParseSession parses raw JSON session data.
func ParseSession(data []byte) (*Session, error) {
	var raw rawSession
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse session JSON: %w", err)
	}

	sess := &Session{ParsedAt: time.Now(), CurrentWindow: 1}
	if raw.SelectedWindow >= 1 && raw.SelectedWindow <= len(raw.Windows) {
		sess.CurrentWindow = raw.SelectedWindow
	}

	nextID := 1
	for winIdx, window := range raw.Windows {
		windowID := winIdx + 1
		index := 0
		for _, rt := range window.Tabs {
			if rt.Hidden {
				continue
			}
			tab := types.Tab{
				ID:       nextID,
				WindowID: windowID,
				Pinned:   rt.Pinned,
				Index:    index,
			}
			nextID++
			index++

			if len(rt.Entries) > 0 {
				// index is 1-based; current page is entries[index-1].
				entryIdx := rt.Index - 1
				if entryIdx < 0 || entryIdx >= len(rt.Entries) {
					entryIdx = len(rt.Entries) - 1
				}
				tab.URL = rt.Entries[entryIdx].URL
				tab.Title = rt.Entries[entryIdx].Title
			}
			sess.Tabs = append(sess.Tabs, tab)
		}
	}

	return sess, nil
}

// ReadSessionFile reads and parses the session file of a profile directory,
// preferring the running session over the last closed one.
func ReadSessionFile(profileDir string) (*Session, error) {
	path := sessionFile(profileDir)
	if path == "" {
		return nil, fmt.Errorf("no session file found in %s", filepath.Join(profileDir, "sessionstore-backups"))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	decompressed, err := DecompressMozLz4(data)
	if err != nil {
		return nil, fmt.Errorf("decompress session file: %w", err)
	}

	return ParseSession(decompressed)
}
