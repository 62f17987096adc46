package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Belphemur/ZeitDownloader/internal/cache"
	"github.com/Belphemur/ZeitDownloader/internal/config"
)

// checksumChunkSize bounds memory use while hashing large PDF editions
const checksumChunkSize = 4 << 20

// Checksummer computes the MD5 checksum of local edition files, memoizing
// results in a cache.Store keyed by the file's identity.
type Checksummer struct {
	store cache.Store
}

// NewChecksummer creates a checksummer. A nil store disables memoization.
func NewChecksummer(store cache.Store) *Checksummer {
	return &Checksummer{store: store}
}

// Checksum returns the hex-encoded MD5 digest of the file at path
func (c *Checksummer) Checksum(ctx context.Context, path string) (string, error) {
	logger := config.GetLogger()

	key, err := fileKey(path)
	if err != nil {
		return "", err
	}
	if c.store != nil {
		if checksum, ok := c.store.Get(ctx, key); ok {
			logger.Debug().Str("path", path).Str("checksum", checksum).Msg("Checksum cache hit")
			return checksum, nil
		}
	}

	checksum, err := fileMD5(ctx, path)
	if err != nil {
		return "", err
	}
	c.Remember(ctx, path, checksum)
	return checksum, nil
}

// Remember records checksum for the file currently at path
func (c *Checksummer) Remember(ctx context.Context, path, checksum string) {
	if c.store == nil {
		return
	}
	key, err := fileKey(path)
	if err != nil {
		logger := config.GetLogger()
		logger.Debug().Err(err).Str("path", path).Msg("Cannot key checksum, not caching it")
		return
	}
	c.store.Set(ctx, key, checksum)
}

// fileKey identifies a file version by absolute path, size and modification time
func fileKey(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	return fmt.Sprintf("%s:%d:%d", abs, info.Size(), info.ModTime().UnixNano()), nil
}

// fileMD5 hashes the file in checksumChunkSize reads, checking ctx between chunks
func fileMD5(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	hash := md5.New()
	buf := make([]byte, checksumChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := f.Read(buf)
		if n > 0 {
			hash.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
