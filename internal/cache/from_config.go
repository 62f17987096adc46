package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Belphemur/ZeitDownloader/internal/config"
)

const defaultTTL = 720 * time.Hour

// FromConfig creates the checksum store selected by cfg.Cache, instrumented
// under the "checksum" group.
func FromConfig(cfg *config.Config) (Store, error) {
	logger := config.GetLogger()

	ttl := defaultTTL
	if cfg.Cache.TTL != "" {
		parsed, err := time.ParseDuration(cfg.Cache.TTL)
		if err != nil || parsed <= 0 {
			logger.Warn().Err(err).Str("ttl", cfg.Cache.TTL).Dur("default", defaultTTL).Msg("Invalid cache TTL, using default")
		} else {
			ttl = parsed
		}
	}

	provider := cfg.Cache.Provider
	if provider == "" {
		provider = "file"
	}

	path := cfg.Cache.Path
	if provider == "file" && path == "" {
		var err error
		if path, err = DefaultSnapshotPath(); err != nil {
			return nil, err
		}
	}

	store, err := New(provider, Options{
		Size:          cfg.Cache.Size,
		TTL:           ttl,
		Logger:        &logger,
		RedisAddress:  cfg.Cache.RedisAddress,
		RedisPassword: cfg.Cache.RedisPassword,
		RedisDB:       cfg.Cache.RedisDB,
		Path:          path,
		Group:         "checksum",
	})
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("provider", provider).Str("path", path).Dur("ttl", ttl).Int("entries", store.Len()).Msg("Checksum cache ready")
	return store, nil
}

// DefaultSnapshotPath is where the file provider keeps checksums when
// cache.path is not set: zeitdownload/checksums.json in the user cache directory.
func DefaultSnapshotPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("cache: locate user cache directory: %w", err)
	}
	return filepath.Join(dir, "zeitdownload", "checksums.json"), nil
}
