package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newFileTestStore(t *testing.T, path string, size int, ttl time.Duration) Store {
	t.Helper()
	s, err := New("file", Options{Size: size, TTL: ttl, Path: path})
	if err != nil {
		t.Fatalf("New file store: %v", err)
	}
	return s
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "checksums.json")
	ctx := context.Background()

	s := newFileTestStore(t, path, 10, time.Hour)
	if s.Len() != 0 {
		t.Fatalf("Expected empty store without snapshot, got Len %d", s.Len())
	}
	s.Set(ctx, "a", "1")
	s.Set(ctx, "b", "2")
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := newFileTestStore(t, path, 10, time.Hour)
	defer reopened.Close()
	if reopened.Len() != 2 {
		t.Fatalf("Expected 2 entries after reopen, got %d", reopened.Len())
	}
	if checksum, ok := reopened.Get(ctx, "b"); !ok || checksum != "2" {
		t.Errorf("Expected b=2, got %q (ok=%v)", checksum, ok)
	}
}

func TestFileStore_DropsExpiredSnapshotEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checksums.json")
	snap := snapshot{Version: snapshotVersion, Entries: []fileEntry{
		{Key: "old", Checksum: "1", StoredAt: time.Now().Add(-2 * time.Hour)},
		{Key: "fresh", Checksum: "2", StoredAt: time.Now().Add(-time.Minute)},
	}}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s := newFileTestStore(t, path, 10, time.Hour)
	defer s.Close()
	ctx := context.Background()

	if _, ok := s.Get(ctx, "old"); ok {
		t.Error("Expected entry older than the TTL to be dropped")
	}
	if checksum, ok := s.Get(ctx, "fresh"); !ok || checksum != "2" {
		t.Errorf("Expected fresh=2, got %q (ok=%v)", checksum, ok)
	}
}

func TestFileStore_UnreadableSnapshotStartsEmpty(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "{checksums"},
		{"unknown version", `{"version":99,"entries":[{"key":"k","checksum":"v"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "checksums.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}

			s := newFileTestStore(t, path, 10, time.Hour)
			if s.Len() != 0 {
				t.Errorf("Expected empty store, got Len %d", s.Len())
			}
			s.Set(context.Background(), "k", "v")
			if err := s.Close(); err != nil {
				t.Fatalf("Close failed: %v", err)
			}

			// The next close replaces the unreadable file
			reopened := newFileTestStore(t, path, 10, time.Hour)
			defer reopened.Close()
			if checksum, ok := reopened.Get(context.Background(), "k"); !ok || checksum != "v" {
				t.Errorf("Expected k=v after rewrite, got %q (ok=%v)", checksum, ok)
			}
		})
	}
}

func TestFileStore_KeepsRecencyOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checksums.json")
	ctx := context.Background()

	s := newFileTestStore(t, path, 3, time.Hour)
	s.Set(ctx, "k0", "v")
	s.Set(ctx, "k1", "v")
	s.Set(ctx, "k2", "v")
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	var evicted []string
	reopened, err := New("file", Options{
		Size:    3,
		TTL:     time.Hour,
		Path:    path,
		OnEvict: func(key, _ string) { evicted = append(evicted, key) },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer reopened.Close()

	reopened.Set(ctx, "k3", "v")
	if len(evicted) != 1 || evicted[0] != "k0" {
		t.Errorf("Expected oldest entry k0 to be evicted, got %v", evicted)
	}
}

func TestFileStore_RequiresPath(t *testing.T) {
	if _, err := New("file", Options{TTL: time.Hour}); err == nil {
		t.Fatal("Expected error without a snapshot path")
	}
}
