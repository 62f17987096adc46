package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
)

func init() {
	Register("file", newFileStore)
}

const snapshotVersion = 1

// fileEntry is a checksum with the time it was first stored. The time
// survives reloads so TTL counts from the original download.
type fileEntry struct {
	Key      string    `json:"key"`
	Checksum string    `json:"checksum"`
	StoredAt time.Time `json:"stored_at"`
}

type snapshot struct {
	Version int         `json:"version"`
	Entries []fileEntry `json:"entries"`
}

// fileStore is an expirable LRU loaded from a JSON snapshot on open and
// written back on Close, so checksums carry over between runs.
type fileStore struct {
	inner  *lru.LRU[string, fileEntry]
	path   string
	ttl    time.Duration
	logger *zerolog.Logger
}

func newFileStore(opts Options) (Store, error) {
	if opts.Path == "" {
		return nil, errors.New("cache: file provider requires a path")
	}

	var onEvict func(string, fileEntry)
	if opts.OnEvict != nil {
		onEvict = func(key string, entry fileEntry) {
			opts.OnEvict(key, entry.Checksum)
		}
	}

	s := &fileStore{
		inner:  lru.NewLRU[string, fileEntry](opts.Size, onEvict, opts.TTL),
		path:   opts.Path,
		ttl:    opts.TTL,
		logger: opts.Logger,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load fills the LRU from the snapshot, oldest entry first. A missing file is
// an empty store; an unreadable snapshot is discarded with a warning.
func (s *fileStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cache: read snapshot %s: %w", s.path, err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil || snap.Version != snapshotVersion {
		if s.logger != nil {
			s.logger.Warn().Err(err).Str("path", s.path).Int("version", snap.Version).Msg("Discarding unreadable checksum snapshot")
		}
		return nil
	}

	now := time.Now()
	for _, entry := range snap.Entries {
		if entry.Key == "" || s.ttl > 0 && now.Sub(entry.StoredAt) >= s.ttl {
			continue
		}
		s.inner.Add(entry.Key, entry)
	}
	return nil
}

func (s *fileStore) Get(_ context.Context, key string) (string, bool) {
	entry, ok := s.inner.Get(key)
	if !ok {
		return "", false
	}
	return entry.Checksum, true
}

func (s *fileStore) Set(_ context.Context, key, checksum string) {
	s.inner.Add(key, fileEntry{Key: key, Checksum: checksum, StoredAt: time.Now()})
}

func (s *fileStore) Len() int {
	return s.inner.Len()
}

// Close writes the snapshot next to its final path and renames it into place.
func (s *fileStore) Close() error {
	snap := snapshot{Version: snapshotVersion}
	for _, entry := range s.inner.Values() {
		// Values pads the slice with zero entries in place of expired ones
		if entry.Key != "" {
			snap.Entries = append(snap.Entries, entry)
		}
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("cache: encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cache: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("cache: create snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("cache: write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("cache: write snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("cache: replace snapshot: %w", err)
	}
	return nil
}
