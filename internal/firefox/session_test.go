package firefox

import (
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/pierrec/lz4/v4"
)

func TestDecompressMozLz4(t *testing.T) {
	t.Run("valid mozlz4 payload", func(t *testing.T) {
		original := []byte(`{"windows":[{"tabs":[]}]}`)

		// Compress with lz4 block compression.
		dst := make([]byte, lz4.CompressBlockBound(len(original)))
		n, err := lz4.CompressBlock(original, dst, nil)
		if err != nil {
			t.Fatalf("lz4.CompressBlock failed: %v", err)
		}
		compressed := dst[:n]

		// Build mozlz4 payload: 8-byte magic + 4-byte LE uint32 size + compressed data.
		magic := []byte("mozLz40\x00")
		sizeBytes := make([]byte, 4)
		binary.LittleEndian.PutUint32(sizeBytes, uint32(len(original)))

		payload := make([]byte, 0, len(magic)+len(sizeBytes)+len(compressed))
		payload = append(payload, magic...)
		payload = append(payload, sizeBytes...)
		payload = append(payload, compressed...)

		result, err := DecompressMozLz4(payload)
		if err != nil {
			t.Fatalf("DecompressMozLz4 returned error: %v", err)
		}
		if string(result) != string(original) {
			t.Errorf("expected %q, got %q", string(original), string(result))
		}
	})

	t.Run("invalid header returns error", func(t *testing.T) {
		// Wrong magic bytes.
		bad := []byte("BADMAGIC\x00\x00\x00\x00some data here")
		_, err := DecompressMozLz4(bad)
		if err == nil {
			t.Fatal("expected error for invalid header, got nil")
		}
	})

	t.Run("too short data returns error", func(t *testing.T) {
		short := []byte("mozLz40")
		_, err := DecompressMozLz4(short)
		if err == nil {
			t.Fatal("expected error for too-short data, got nil")
		}
	})
}

func TestParseSession(t *testing.T) {
	// Window 1: pinned tab, a tab with history (index=2 selects entries[1]),
	// a hidden tab and a tab without entries. Window 2: one tab, selected.
	session := map[string]interface{}{
		"selectedWindow": 2,
		"windows": []map[string]interface{}{
			{
				"tabs": []map[string]interface{}{
					{
						"entries": []map[string]interface{}{
							{"url": "https://mail.example.com", "title": "Mail"},
						},
						"index":  1,
						"pinned": true,
					},
					{
						"entries": []map[string]interface{}{
							{"url": "https://old.com", "title": "Old Page"},
							{"url": "https://current.com", "title": "Current Page"},
						},
						"index": 2,
					},
					{
						"entries": []map[string]interface{}{
							{"url": "https://hidden.com", "title": "Hidden"},
						},
						"index":  1,
						"hidden": true,
					},
					{
						"entries": []map[string]interface{}{},
					},
				},
			},
			{
				"tabs": []map[string]interface{}{
					{
						"entries": []map[string]interface{}{
							{"url": "https://go.dev", "title": "Go"},
						},
						"index": 1,
					},
				},
			},
		},
	}

	data, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}

	sess, err := ParseSession(data)
	if err != nil {
		t.Fatalf("ParseSession returned error: %v", err)
	}

	if len(sess.Tabs) != 4 {
		t.Fatalf("expected 4 tabs, got %d", len(sess.Tabs))
	}
	if sess.CurrentWindow != 2 {
		t.Errorf("CurrentWindow = %d, want 2", sess.CurrentWindow)
	}

	pinned := sess.Tabs[0]
	if !pinned.Pinned || pinned.ID != 1 || pinned.WindowID != 1 || pinned.Index != 0 {
		t.Errorf("pinned tab = %+v", pinned)
	}

	current := sess.Tabs[1]
	if current.URL != "https://current.com" || current.Title != "Current Page" {
		t.Errorf("tab with history = %+v", current)
	}
	if current.Index != 1 {
		t.Errorf("tab index = %d, want 1", current.Index)
	}

	blank := sess.Tabs[2]
	if blank.URL != "" || blank.Index != 2 {
		t.Errorf("tab without entries = %+v", blank)
	}

	other := sess.Tabs[3]
	if other.ID != 4 || other.WindowID != 2 || other.Index != 0 {
		t.Errorf("second window tab = %+v", other)
	}

	first := sess.CurrentFirst()
	if first[0].ID != 4 || len(first) != 4 {
		t.Errorf("CurrentFirst starts with %+v", first[0])
	}
	if got := sess.Window(1); len(got) != 3 {
		t.Errorf("Window(1) has %d tabs, want 3", len(got))
	}
}

func TestParseSessionDefaultsSelectedWindow(t *testing.T) {
	sess, err := ParseSession([]byte(`{"selectedWindow": 9, "windows": [{"tabs": []}]}`))
	if err != nil {
		t.Fatalf("ParseSession: %v", err)
	}
	if sess.CurrentWindow != 1 {
		t.Errorf("CurrentWindow = %d, want 1", sess.CurrentWindow)
	}
	if _, err := ParseSession([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
